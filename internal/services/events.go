package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/librarium/usermanagement/types"
)

const (
	EventAccountRegistered = "account.registered"
	EventAccountDeleted    = "account.deleted"

	publishTimeout = 5 * time.Second
)

// EventPublisher delivers account events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AccountEvent is the payload published on account lifecycle changes.
type AccountEvent struct {
	Type       string     `json:"type"`
	AccountID  string     `json:"account_id"`
	Email      string     `json:"email,omitempty"`
	Name       string     `json:"name,omitempty"`
	Role       types.Role `json:"role,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// publish sends event best effort. The account change has already been
// committed, so failures are logged and never returned.
func (s *AccountService) publish(ctx context.Context, event AccountEvent) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode account event", slog.String("type", event.Type), slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	attrs := map[string]string{
		"event_type": event.Type,
		"account_id": event.AccountID,
	}
	id, err := s.events.Publish(ctx, event.Type, data, attrs)
	if err != nil {
		s.logger.WarnContext(ctx, "publish account event failed",
			slog.String("type", event.Type),
			slog.String("account_id", event.AccountID),
			slog.Any("error", err),
		)
		return
	}
	s.logger.DebugContext(ctx, "account event published",
		slog.String("type", event.Type),
		slog.String("message_id", id),
	)
}
