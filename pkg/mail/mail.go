// Package mail sends plain-text or HTML e-mail over SMTP.
//
//	err := mail.Send(ctx, mail.Message{
//	    To:      []string{"jana@example.cz"},
//	    Subject: "Objednávka ES-1a2b3c4d byla zaplacena",
//	    Body:    body,
//	})
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/eshop/config"
)

// ErrNotConfigured is returned when no SMTP credentials are set.
var ErrNotConfigured = errors.New("mail: MAIL_USERNAME not configured")

// Message is one outgoing e-mail.
type Message struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
	HTML    bool
}

// Sender delivers messages. SMTPSender is the production implementation;
// tests substitute testkit.MailSpy.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP holds connection credentials.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPFromConfig reads MAIL_* keys.
func SMTPFromConfig() SMTP {
	return SMTP{
		Host:     config.Get("MAIL_HOST", "smtp.mailtrap.io"),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", "obchod@eshop.local"),
		FromName: config.Get("MAIL_FROM_NAME", "eshop"),
	}
}

// SMTPSender sends through an SMTP relay: implicit TLS on port 465,
// STARTTLS (negotiated by net/smtp) otherwise.
type SMTPSender struct {
	cfg SMTP
}

func NewSMTPSender(cfg SMTP) *SMTPSender { return &SMTPSender{cfg: cfg} }

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	cfg := s.cfg
	if cfg.Username == "" {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}

	from := fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	rcpt := append(append([]string{}, msg.To...), msg.Cc...)
	raw := buildRaw(from, msg)
	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)

	done := make(chan error, 1)
	go func() {
		if cfg.Port == "465" {
			done <- sendTLS(addr, auth, cfg.From, rcpt, raw, cfg.Host)
			return
		}
		done <- smtp.SendMail(addr, auth, cfg.From, rcpt, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sendTLS(addr string, auth smtp.Auth, from string, to []string, raw []byte, host string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if err := client.Auth(auth); err != nil {
		return err
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, a := range to {
		if err := client.Rcpt(a); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func buildRaw(from string, m Message) []byte {
	contentType := "text/plain"
	if m.HTML {
		contentType = "text/html"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	if len(m.Cc) > 0 {
		b.WriteString("Cc: " + strings.Join(m.Cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + encodeHeader(m.Subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: %s; charset=\"UTF-8\"\r\n", contentType))
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// encodeHeader RFC 2047-encodes non-ASCII subjects (Czech diacritics).
func encodeHeader(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return mimeWordEncoder.Encode("UTF-8", s)
		}
	}
	return s
}

var mimeWordEncoder = mime.QEncoding

var (
	mu            sync.RWMutex
	defaultSender Sender
)

// SetDefault replaces the process-wide sender.
func SetDefault(s Sender) {
	mu.Lock()
	defer mu.Unlock()
	defaultSender = s
}

// Default returns the process-wide sender, building an SMTPSender from
// config on first use.
func Default() Sender {
	mu.RLock()
	s := defaultSender
	mu.RUnlock()
	if s != nil {
		return s
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultSender == nil {
		defaultSender = NewSMTPSender(SMTPFromConfig())
	}
	return defaultSender
}

// Send delivers msg through the default sender.
func Send(ctx context.Context, msg Message) error { return Default().Send(ctx, msg) }
