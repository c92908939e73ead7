package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/billing/domain"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/config"
	"github.com/smallbiznis/tenantry/internal/observability/metrics"
	"go.uber.org/zap"
)

type service struct {
	log     *zap.Logger
	repo    domain.Repository
	catalog *config.PlanCatalogHolder
	metrics *metrics.Metrics
	genID   *snowflake.Node
	clock   clock.Clock
}

func NewService(
	log *zap.Logger,
	repo domain.Repository,
	catalog *config.PlanCatalogHolder,
	m *metrics.Metrics,
	genID *snowflake.Node,
	clk clock.Clock,
) domain.Service {
	return &service{
		log:     log,
		repo:    repo,
		catalog: catalog,
		metrics: m,
		genID:   genID,
		clock:   clk,
	}
}

// HandleWebhookEvent applies one normalized provider event to the
// subscription read-model. Events are applied last-writer-wins per user;
// providers deliver them at-least-once, and the upsert makes replays
// harmless.
func (s *service) HandleWebhookEvent(ctx context.Context, provider string, event domain.WebhookEvent) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return domain.ErrInvalidProvider
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(event.ReferenceID))
	if err != nil || userID == 0 {
		return domain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.SubscriptionID) == "" || strings.TrimSpace(event.Status) == "" {
		return domain.ErrInvalidEvent
	}

	plan, interval, ok := s.catalog.Get().Resolve(event.PriceID)
	if !ok {
		s.log.Warn("webhook references unknown price",
			zap.String("provider", provider),
			zap.String("price_id", event.PriceID),
		)
		return domain.ErrUnknownPrice
	}

	now := s.clock.Now()
	subscription := &domain.Subscription{
		ID:                     s.genID.Generate(),
		UserID:                 userID,
		Provider:               provider,
		ProviderSubscriptionID: strings.TrimSpace(event.SubscriptionID),
		PriceID:                strings.TrimSpace(event.PriceID),
		Plan:                   plan,
		Interval:               interval,
		Status:                 strings.TrimSpace(event.Status),
		CurrentPeriodEnd:       event.CurrentPeriodEnd,
		CancelAtPeriodEnd:      event.CancelAtPeriodEnd,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.repo.Upsert(ctx, subscription); err != nil {
		return err
	}

	s.metrics.RecordWebhookEvent(ctx, provider, event.Type)
	s.log.Info("subscription updated from webhook",
		zap.String("provider", provider),
		zap.String("event_type", event.Type),
		zap.String("user_id", userID.String()),
		zap.String("status", subscription.Status),
	)
	return nil
}

// GetEntitlements never fails: lookup errors degrade to the free tier so a
// billing outage cannot take down dashboard rendering.
func (s *service) GetEntitlements(ctx context.Context, userID snowflake.ID) domain.Entitlements {
	subscription, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		s.log.Error("entitlements lookup failed, serving free tier",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return domain.FreeEntitlements()
	}
	if subscription == nil {
		return domain.FreeEntitlements()
	}

	if !domain.ActiveStatus(subscription.Status) {
		entitlements := domain.FreeEntitlements()
		entitlements.Status = subscription.Status
		return entitlements
	}

	return domain.Entitlements{
		IsActive:          true,
		Plan:              subscription.Plan,
		Interval:          subscription.Interval,
		Status:            subscription.Status,
		CurrentPeriodEnd:  subscription.CurrentPeriodEnd,
		CancelAtPeriodEnd: subscription.CancelAtPeriodEnd,
	}
}
