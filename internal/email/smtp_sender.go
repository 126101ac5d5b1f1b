package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// defaultSMTPTimeout acota toda la conversacion SMTP cuando el ctx no trae deadline.
const defaultSMTPTimeout = 30 * time.Second

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
	timeout  time.Duration
}

func NewSMTPSender(host string, port int, username, password, from, fromName string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		useTLS:   useTLS,
		timeout:  defaultSMTPTimeout,
	}, nil
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, toEmail, name, link string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received a request to reset your password.\n"+
			"Use the link below to choose a new one:\n\n%s\n\n"+
			"The link expires at %s UTC. If you did not ask for this, you can ignore this email.\n",
		greetingName(name, toEmail),
		link,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return s.send(ctx, toEmail, "Reset your password", body)
}

func (s *SMTPSender) SendPasswordChangeConfirmation(ctx context.Context, toEmail, name, link string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nConfirm your new password by opening the link below:\n\n%s\n\n"+
			"The link expires at %s UTC. Your current password stays active until you confirm.\n",
		greetingName(name, toEmail),
		link,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return s.send(ctx, toEmail, "Confirm your password change", body)
}

func (s *SMTPSender) SendPasswordChanged(ctx context.Context, toEmail, name string, changedAt time.Time) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour password was changed at %s UTC.\n"+
			"If this was not you, reset your password immediately and contact support.\n",
		greetingName(name, toEmail),
		changedAt.UTC().Format(time.RFC3339),
	)
	return s.send(ctx, toEmail, "Your password was changed", body)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}

	msg := buildMessage(s.from, s.fromName, toEmail, subject, body)
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: s.timeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer rawConn.Close()

	// Un servidor colgado no puede retener el worker mas alla del ctx.
	deadline, _ := ctx.Deadline()
	if err := rawConn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = rawConn.SetDeadline(time.Now()) })
	defer stop()

	tlsConfig := &tls.Config{ServerName: s.host}
	conn := rawConn
	if s.useTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Close()

	if !s.useTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(toEmail); err != nil {
		return err
	}
	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		_ = writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func greetingName(name, toEmail string) string {
	if strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return toEmail
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
