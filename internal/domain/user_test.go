package domain

import (
	"testing"
	"time"
)

func TestUserHasPendingReset(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(5 * time.Minute)
	past := now.Add(-time.Minute)

	if (User{}).HasPendingReset(now) {
		t.Fatalf("expected no pending reset on empty user")
	}
	if !(User{PasswordResetTokenHash: "h", PasswordResetExpiresAt: &future}).HasPendingReset(now) {
		t.Fatalf("expected pending reset with future expiry")
	}
	if (User{PasswordResetTokenHash: "h", PasswordResetExpiresAt: &past}).HasPendingReset(now) {
		t.Fatalf("expected expired reset to be ignored")
	}
	if (User{PasswordResetTokenHash: "h"}).HasPendingReset(now) {
		t.Fatalf("expected token without expiry to be ignored")
	}
}

func TestUserHasPendingChange(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(5 * time.Minute)

	staged := User{
		PasswordChangeTokenHash: "h",
		PasswordChangeExpiresAt: &future,
		PendingPasswordHash:     "pending",
	}
	if !staged.HasPendingChange(now) {
		t.Fatalf("expected pending change")
	}

	staged.PendingPasswordHash = ""
	if staged.HasPendingChange(now) {
		t.Fatalf("expected change without pending hash to be ignored")
	}

	if staged.HasPendingChange(future.Add(time.Second)) {
		t.Fatalf("expected change to expire")
	}
}
