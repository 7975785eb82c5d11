package testkit

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/shashiranjanraj/eshop/pkg/mail"
)

// MailSpy is a testify mock satisfying mail.Sender. By default it accepts
// every message; tests can add their own expectations on Mock.
type MailSpy struct {
	mock.Mock

	mu   sync.Mutex
	sent []mail.Message
}

func NewMailSpy() *MailSpy {
	s := &MailSpy{}
	s.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()
	return s
}

func (s *MailSpy) Send(ctx context.Context, msg mail.Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return s.Called(ctx, msg).Error(0)
}

// Sent returns every message passed to Send.
func (s *MailSpy) Sent() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mail.Message, len(s.sent))
	copy(out, s.sent)
	return out
}
