// Package notification posts operational alerts (low stock, failed
// shipments) to a Slack incoming webhook.
//
//	notification.Default().Alert(ctx, notification.Alert{
//	    Title: "Poslední kusy",
//	    Text:  "tee-classic (velikost XL), skladem 2",
//	    Level: notification.Warning,
//	})
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/eshop/config"
	shophttp "github.com/shashiranjanraj/eshop/pkg/http"
	"github.com/shashiranjanraj/eshop/pkg/logger"
)

// Level maps to the Slack attachment colour.
type Level string

const (
	Info    Level = "good"
	Warning Level = "warning"
	Danger  Level = "danger"
)

// Alert is one operational message.
type Alert struct {
	Title  string
	Text   string
	Level  Level
	Fields map[string]string
}

// Alerter delivers alerts.
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
}

type slackPayload struct {
	Text        string            `json:"text,omitempty"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

// Slack posts to an incoming webhook. An empty URL only logs the alert.
type Slack struct {
	WebhookURL string
	Attempts   int
	Backoff    time.Duration
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{WebhookURL: webhookURL, Attempts: 3, Backoff: 500 * time.Millisecond}
}

func (s *Slack) Alert(ctx context.Context, a Alert) error {
	log := logger.WithCtx(ctx)
	if s.WebhookURL == "" {
		log.Warn("notification: alert (slack not configured)", "title", a.Title, "text", a.Text)
		return nil
	}

	att := slackAttachment{
		Color:  string(a.Level),
		Title:  a.Title,
		Text:   a.Text,
		Footer: "eshop",
		Ts:     time.Now().Unix(),
	}
	for k, v := range a.Fields {
		att.Fields = append(att.Fields, slackField{Title: k, Value: v, Short: true})
	}

	resp, err := shophttp.Post(s.WebhookURL).
		Body(slackPayload{Text: a.Title, Attachments: []slackAttachment{att}}).
		Timeout(5 * time.Second).
		Retry(s.Attempts, s.Backoff).
		WithContext(ctx).
		Send()
	if err != nil {
		return fmt.Errorf("notification: slack post: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return fmt.Errorf("notification: slack: %w", err)
	}
	return nil
}

var (
	mu       sync.RWMutex
	fallback Alerter
)

// SetDefault replaces the process-wide alerter.
func SetDefault(a Alerter) {
	mu.Lock()
	fallback = a
	mu.Unlock()
}

// Default returns the configured alerter (Slack from SLACK_WEBHOOK_URL).
func Default() Alerter {
	mu.RLock()
	a := fallback
	mu.RUnlock()
	if a != nil {
		return a
	}
	return NewSlack(config.SlackWebhookURL())
}
