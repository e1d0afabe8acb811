package notification

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/streamhub-io/streamhub/config"
)

// EmailService sends account-security emails over SMTP.
type EmailService struct {
	config config.SMTPConfig
}

func NewEmailService(config config.SMTPConfig) *EmailService {
	return &EmailService{config: config}
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, to, username, verifyURL string) error {
	subject := "Verify Your Email Address"
	body := fmt.Sprintf(`<html><body>
		<h2>Verify Your Email Address</h2>
		<p>Hi %s,</p>
		<p>Thank you for registering! Please verify your email address to complete your registration.</p>
		<p><a href="%s">Click here to verify your email</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link will expire in 24 hours.</p>
	</body></html>`, username, verifyURL, verifyURL)
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) SendPasswordResetEmail(ctx context.Context, to, username, resetURL string) error {
	subject := "Reset Your Password"
	body := fmt.Sprintf(`<html><body>
		<h2>Reset Your Password</h2>
		<p>Hi %s,</p>
		<p>A password reset has been requested for your account.</p>
		<p><a href="%s">Click here to reset your password</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link will expire in 10 minutes.</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`, username, resetURL, resetURL)
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) SendPasswordChangedEmail(ctx context.Context, to, username string) error {
	subject := "Your Password Was Changed"
	body := fmt.Sprintf(`<html><body>
		<h2>Your Password Was Changed</h2>
		<p>Hi %s,</p>
		<p>This is a confirmation that the password for your account was just changed.</p>
		<p>If you did not make this change, please reset your password immediately.</p>
	</body></html>`, username)
	return s.sendEmail(ctx, to, subject, body)
}

func (s *EmailService) sendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return smtp.SendMail(addr, auth, s.config.From, []string{to}, []byte(msg))
}
