package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/redmonkez12/otp-auth-api/internal/logging"
)

// ErrNotConfigured is returned outside development when no SMTP relay is set
var ErrNotConfigured = errors.New("smtp relay not configured")

const otpSubject = "Your OTP Code"

type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	isDev        bool
	logger       *logging.Logger

	// send delivers a fully built message; swapped out in tests
	send func(ctx context.Context, to string, msg []byte) error
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword, fromEmail string, isDev bool, logger *logging.Logger) *Service {
	if fromEmail == "" {
		fromEmail = smtpUser
	}
	s := &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    fromEmail,
		isDev:        isDev,
		logger:       logger,
	}
	s.send = s.sendSMTP
	return s
}

// SendOTP delivers a one-time passcode to toEmail.
// Without an SMTP host the code is only logged, and only in development.
func (s *Service) SendOTP(ctx context.Context, toEmail, code string, ttl time.Duration) error {
	logger := logging.GetLoggerFromContext(ctx)

	if s.smtpHost == "" {
		if !s.isDev {
			return ErrNotConfigured
		}
		s.logger.Info("smtp not configured, otp delivery logged instead", "email", toEmail, "otp", code)
		return nil
	}

	data := otpTemplateData{Code: code, Minutes: int(ttl.Round(time.Minute) / time.Minute)}

	msg, err := s.buildMessage(toEmail, otpSubject, data)
	if err != nil {
		logger.Error("failed to render otp email", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.send(ctx, toEmail, msg); err != nil {
		logger.Error("failed to send otp email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("otp email sent", "email", toEmail)
	return nil
}

type otpTemplateData struct {
	Code    string
	Minutes int
}

var textTmpl = texttemplate.Must(texttemplate.New("otpText").Parse(
	"Your OTP is {{.Code}}. Valid for {{.Minutes}} minutes.\r\n\r\n" +
		"If you did not request this code, you can safely ignore this email.\r\n"))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("otpHTML").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #4F46E5; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Confirm your email</h1>
    </div>
    <div class="content">
        <p>Use the code below to finish creating your account.</p>
        <div class="code">{{.Code}}</div>
        <p style="margin-top: 30px;">If you didn't request this code, you can safely ignore this email.</p>
    </div>
    <div class="footer">
        <p>This code will expire in {{.Minutes}} minutes.</p>
    </div>
</body>
</html>
`))

// buildMessage renders a multipart/alternative message with text and HTML parts
func (s *Service) buildMessage(to, subject string, data otpTemplateData) ([]byte, error) {
	var textBody, htmlBody bytes.Buffer
	if err := textTmpl.Execute(&textBody, data); err != nil {
		return nil, fmt.Errorf("execute text template: %w", err)
	}
	if err := htmlTmpl.Execute(&htmlBody, data); err != nil {
		return nil, fmt.Errorf("execute html template: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=UTF-8", textBody.Bytes()},
		{"text/html; charset=UTF-8", htmlBody.Bytes()},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.contentType}})
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, fmt.Errorf("write mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}

// sendSMTP talks to the relay directly so the whole exchange honours ctx.
// Port 465 uses implicit TLS, anything else upgrades with STARTTLS when offered.
func (s *Service) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.smtpHost, s.smtpPort)

	var (
		conn net.Conn
		err  error
	)
	if s.smtpPort == "465" {
		d := &tls.Dialer{Config: &tls.Config{ServerName: s.smtpHost}}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	c, err := smtp.NewClient(conn, s.smtpHost)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.smtpHost}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.smtpUser != "" {
		if err := c.Auth(smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(s.fromEmail); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	if err := c.Quit(); err != nil && !strings.Contains(err.Error(), "closed") {
		return fmt.Errorf("quit: %w", err)
	}
	return nil
}
