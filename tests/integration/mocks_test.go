//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"

	"github.com/sis-teknik/servicedesk/internal/notifications"
)

type sentSMS struct {
	Phone string
	Text  string
}

// recordingSender is a notifications.Sender that keeps every accepted
// message and can be told to fail.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentSMS
	fail error
}

func (s *recordingSender) Send(_ context.Context, phone, text string) (*notifications.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return nil, s.fail
	}
	s.sent = append(s.sent, sentSMS{Phone: phone, Text: text})
	return &notifications.Receipt{Status: "OK", Message: "accepted", MessageID: "test-1"}, nil
}

func (s *recordingSender) Sent() []sentSMS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentSMS(nil), s.sent...)
}

var errGatewayDown = errors.New("gateway down")
