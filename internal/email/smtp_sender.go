package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
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
	}, nil
}

func (s *SMTPSender) SendVerificationCode(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	subject, body := verificationMessage(code, expiresAt)
	return s.send(ctx, toEmail, subject, body)
}

func (s *SMTPSender) SendPasswordReset(ctx context.Context, toEmail string, resetURL string, expiresAt time.Time) error {
	subject, body := passwordResetMessage(resetURL, expiresAt)
	return s.send(ctx, toEmail, subject, body)
}

func (s *SMTPSender) SendReminder(ctx context.Context, reminder ReminderEmail) error {
	subject, body := reminderMessage(reminder)
	return s.send(ctx, reminder.ToEmail, subject, body)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.from, s.fromName, toEmail, subject, body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{
			ServerName: s.host,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if auth != nil {
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
		return writer.Close()
	}

	return smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(msg))
}

func verificationMessage(code string, expiresAt time.Time) (string, string) {
	subject := "Your Candidash verification code"
	body := fmt.Sprintf(
		"Welcome to Candidash!\n\nYour verification code is %s.\nIt expires at %s UTC.\n\nIf you did not create an account, you can ignore this email.\n",
		code,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return subject, body
}

func passwordResetMessage(resetURL string, expiresAt time.Time) (string, string) {
	subject := "Reset your Candidash password"
	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\nOpen this link to choose a new password:\n%s\n\nThe link expires at %s UTC. If you did not ask for it, ignore this email.\n",
		resetURL,
		expiresAt.UTC().Format(time.RFC3339),
	)
	return subject, body
}

func reminderMessage(r ReminderEmail) (string, string) {
	company := r.Company
	if company == "" {
		company = "the company"
	}
	name := r.UserName
	if name == "" {
		name = "there"
	}
	applied := "recently"
	if r.AppliedAt != nil {
		applied = "on " + r.AppliedAt.UTC().Format("2006-01-02")
	}
	subject := fmt.Sprintf("Follow-up reminder: %s at %s", r.JobTitle, company)
	body := fmt.Sprintf(
		"Hello %s,\n\nIt is time to follow up on your application:\n\n- Position: %s\n- Company: %s\n- Applied %s\n\nConsider sending a short follow-up email to the recruiter and checking the status of your application.\n\nGood luck!\n",
		name,
		r.JobTitle,
		company,
		applied,
	)
	return subject, body
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
