// Package mailer delivers receipt emails.
package mailer

import (
	"context"
	"errors"
	"sync"

	"github.com/kiwari-pos/terminal/internal/receipt"
	log "github.com/sirupsen/logrus"
)

var ErrNoRecipient = errors.New("mailer: message has no recipient")

// Sender delivers a formatted email.
type Sender interface {
	Send(ctx context.Context, msg *receipt.EmailMessage) error
}

// LogSender records messages in the log instead of delivering them. It
// stands in for a real provider until one is configured for the chain.
type LogSender struct {
	mu   sync.Mutex
	sent int
}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, msg *receipt.EmailMessage) error {
	if msg == nil || msg.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.sent++
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"to":         msg.To,
		"subject":    msg.Subject,
		"html_bytes": len(msg.HTML),
		"text_bytes": len(msg.Text),
	}).Info("receipt email queued (log sender)")
	log.Debug(msg.Text)
	return nil
}

// Sent reports how many messages were accepted.
func (s *LogSender) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}
