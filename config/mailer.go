package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"

	mail "github.com/go-mail/mail/v2"
)

type smtpSettings struct {
	host          string
	port          int
	user          string
	pass          string
	from          string
	skipTLSVerify bool
}

// smtpFromEnv is read on each send so values loaded from .env after package
// init are honoured.
func smtpFromEnv() smtpSettings {
	port, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if port == 0 {
		port = 587
	}
	return smtpSettings{
		host:          os.Getenv("SMTP_HOST"),
		port:          port,
		user:          os.Getenv("SMTP_USER"),
		pass:          os.Getenv("SMTP_PASS"),
		from:          os.Getenv("SMTP_FROM"), // e.g. "Dispatch Desk <no-reply@your.org>"
		skipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
	}
}

// SendMail delivers an HTML mail to the staff recipients.
func SendMail(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	cfg := smtpFromEnv()
	if cfg.host == "" || cfg.from == "" {
		return fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	m := mail.NewMessage()
	m.SetHeader("From", cfg.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	d := mail.NewDialer(cfg.host, cfg.port, cfg.user, cfg.pass)

	// STARTTLS is mandatory on 587.
	d.StartTLSPolicy = mail.MandatoryStartTLS

	d.TLSConfig = &tls.Config{
		ServerName:         cfg.host,
		InsecureSkipVerify: cfg.skipTLSVerify, // dev only
	}

	return d.DialAndSend(m)
}
