package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/tokenauth/internal/auth/domain"
)

// Message is a transactional email carrying a single-use token.
type Message struct {
	To      string
	Subject string
	Kind    domain.TokenKind
	Token   string
}

// Mailer delivers account emails. Delivery itself is somebody else's job;
// the service only hands over the message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them. The token
// is only logged at debug level.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	l := m.Logger
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "mail queued", "to", msg.To, "subject", msg.Subject, "kind", msg.Kind)
	l.DebugContext(ctx, "mail token", "to", msg.To, "kind", msg.Kind, "token", msg.Token)
	return nil
}
