package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tenantry/internal/billing/domain"
	"github.com/smallbiznis/tenantry/internal/billing/repository"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Subscription{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}
	holder, err := config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalog())
	if err != nil {
		t.Fatalf("plan catalog: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	svc := NewService(zap.NewNop(), repository.NewRepository(dbConn), holder, nil, node, clk)
	return svc, clk
}

func event(userID snowflake.ID, priceID, status string) domain.WebhookEvent {
	return domain.WebhookEvent{
		Type:           "subscription.updated",
		ReferenceID:    userID.String(),
		SubscriptionID: "sub_123",
		PriceID:        priceID,
		Status:         status,
	}
}

func TestWebhookCreatesEntitlements(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := snowflake.ID(10)

	if err := svc.HandleWebhookEvent(ctx, "stripe", event(userID, "price_pro_month", domain.StatusActive)); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	entitlements := svc.GetEntitlements(ctx, userID)
	if !entitlements.IsActive {
		t.Fatal("expected active entitlements")
	}
	if entitlements.Plan != "pro" || entitlements.Interval != "month" {
		t.Fatalf("plan/interval = %s/%s", entitlements.Plan, entitlements.Interval)
	}
}

func TestWebhookUpsertsByUser(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := snowflake.ID(10)

	if err := svc.HandleWebhookEvent(ctx, "stripe", event(userID, "price_starter_month", domain.StatusTrialing)); err != nil {
		t.Fatalf("first webhook: %v", err)
	}
	if err := svc.HandleWebhookEvent(ctx, "stripe", event(userID, "price_pro_year", domain.StatusActive)); err != nil {
		t.Fatalf("second webhook: %v", err)
	}

	entitlements := svc.GetEntitlements(ctx, userID)
	if entitlements.Plan != "pro" || entitlements.Interval != "year" {
		t.Fatalf("expected upgraded plan, got %s/%s", entitlements.Plan, entitlements.Interval)
	}
}

func TestEntitlementStatuses(t *testing.T) {
	cases := []struct {
		status     string
		wantActive bool
	}{
		{domain.StatusTrialing, true},
		{domain.StatusActive, true},
		{domain.StatusPastDue, true},
		{domain.StatusIncomplete, false},
		{domain.StatusCanceled, false},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			svc, _ := setup(t)
			ctx := context.Background()
			userID := snowflake.ID(10)

			if err := svc.HandleWebhookEvent(ctx, "stripe", event(userID, "price_pro_month", tc.status)); err != nil {
				t.Fatalf("webhook: %v", err)
			}
			entitlements := svc.GetEntitlements(ctx, userID)
			if entitlements.IsActive != tc.wantActive {
				t.Fatalf("status %s: IsActive = %v, want %v", tc.status, entitlements.IsActive, tc.wantActive)
			}
			if !tc.wantActive && entitlements.Plan != "starter" {
				t.Fatalf("inactive subscription must degrade to starter, got %s", entitlements.Plan)
			}
		})
	}
}

func TestNoSubscriptionIsFreeTier(t *testing.T) {
	svc, _ := setup(t)

	entitlements := svc.GetEntitlements(context.Background(), snowflake.ID(999))
	if entitlements.IsActive || entitlements.Plan != "starter" {
		t.Fatalf("expected free tier, got %+v", entitlements)
	}
}

func TestWebhookValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	userID := snowflake.ID(10)

	if err := svc.HandleWebhookEvent(ctx, "stripe", event(userID, "price_unknown", domain.StatusActive)); !errors.Is(err, domain.ErrUnknownPrice) {
		t.Fatalf("unknown price: got %v", err)
	}

	bad := event(userID, "price_pro_month", domain.StatusActive)
	bad.ReferenceID = "not-a-snowflake"
	if err := svc.HandleWebhookEvent(ctx, "stripe", bad); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("bad reference: got %v", err)
	}

	empty := event(userID, "price_pro_month", "")
	if err := svc.HandleWebhookEvent(ctx, "stripe", empty); !errors.Is(err, domain.ErrInvalidEvent) {
		t.Fatalf("empty status: got %v", err)
	}

	if err := svc.HandleWebhookEvent(ctx, "  ", event(userID, "price_pro_month", domain.StatusActive)); !errors.Is(err, domain.ErrInvalidProvider) {
		t.Fatalf("empty provider: got %v", err)
	}
}
