// Package domain contains the subscription read-model maintained from
// payment-provider webhooks.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Subscription statuses as reported by the payment provider.
const (
	StatusIncomplete = "incomplete"
	StatusTrialing   = "trialing"
	StatusActive     = "active"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
)

// ActiveStatus reports whether a status grants paid entitlements. Past-due
// subscriptions keep access during the dunning window.
func ActiveStatus(status string) bool {
	switch status {
	case StatusTrialing, StatusActive, StatusPastDue:
		return true
	default:
		return false
	}
}

// Subscription is one user's subscription as last reported by the provider.
// It is a read-model: webhook events overwrite it, nothing else mutates it.
type Subscription struct {
	ID                     snowflake.ID `gorm:"primaryKey"`
	UserID                 snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:ux_subscriptions_user"`
	Provider               string       `gorm:"type:text;not null"`
	ProviderSubscriptionID string       `gorm:"column:provider_subscription_id;type:text;not null;index"`
	PriceID                string       `gorm:"column:price_id;type:text;not null"`
	Plan                   string       `gorm:"type:text;not null"`
	Interval               string       `gorm:"type:text;not null"`
	Status                 string       `gorm:"type:text;not null"`
	CurrentPeriodEnd       *time.Time   `gorm:"column:current_period_end"`
	CancelAtPeriodEnd      bool         `gorm:"column:cancel_at_period_end;not null;default:false"`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Entitlements is the billing view handed to the dashboard and the
// entitlements endpoint.
type Entitlements struct {
	IsActive          bool       `json:"is_active"`
	Plan              string     `json:"plan"`
	Interval          string     `json:"interval,omitempty"`
	Status            string     `json:"status,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

// FreeEntitlements is what every account gets without a subscription row.
func FreeEntitlements() Entitlements {
	return Entitlements{IsActive: false, Plan: "starter"}
}
