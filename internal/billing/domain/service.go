package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	HandleWebhookEvent(ctx context.Context, provider string, event WebhookEvent) error
	GetEntitlements(ctx context.Context, userID snowflake.ID) Entitlements
}

// WebhookEvent is the normalized shape of a provider subscription event. The
// handler decodes provider payloads into this before the service sees them.
type WebhookEvent struct {
	Type              string     `json:"type"`
	ReferenceID       string     `json:"reference_id"`
	SubscriptionID    string     `json:"subscription_id"`
	PriceID           string     `json:"price_id"`
	Status            string     `json:"status"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

var (
	ErrUnknownPrice    = errors.New("unknown_price")
	ErrInvalidEvent    = errors.New("invalid_event")
	ErrInvalidProvider = errors.New("invalid_provider")
)

type Repository interface {
	Upsert(ctx context.Context, subscription *Subscription) error
	FindByUser(ctx context.Context, userID snowflake.ID) (*Subscription, error)
}
