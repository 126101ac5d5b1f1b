package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const passwordTokenBytes = 32

// generatePasswordToken devuelve el token crudo (solo viaja al usuario) y su hash (solo se persiste).
func generatePasswordToken() (raw, hash string, err error) {
	b := make([]byte, passwordTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, HashPasswordToken(raw), nil
}

// HashPasswordToken es el hash deterministico con el que se busca el token presentado.
func HashPasswordToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
