package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	signIns         metric.Int64Counter
	invitationsSent metric.Int64Counter
	accessDenied    metric.Int64Counter
	webhookEvents   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("metrics exporter endpoint is required")
	}

	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, errors.New("unsupported metrics exporter protocol")
	}
}

// New configures the domain metric instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tenantry"
	}
	meter := provider.Meter(name)

	signIns, err := meter.Int64Counter("auth_sign_ins_total",
		metric.WithDescription("Completed OTP sign-ins."))
	if err != nil {
		return nil, err
	}
	invitationsSent, err := meter.Int64Counter("invitations_sent_total",
		metric.WithDescription("Workspace invitations sent, including resends."))
	if err != nil {
		return nil, err
	}
	accessDenied, err := meter.Int64Counter("access_denied_total",
		metric.WithDescription("Requests rejected by authorization checks."))
	if err != nil {
		return nil, err
	}
	webhookEvents, err := meter.Int64Counter("billing_webhook_events_total",
		metric.WithDescription("Payment provider webhook events processed."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		signIns:         signIns,
		invitationsSent: invitationsSent,
		accessDenied:    accessDenied,
		webhookEvents:   webhookEvents,
	}, nil
}

func (m *Metrics) RecordSignIn(ctx context.Context) {
	if m == nil {
		return
	}
	m.signIns.Add(ctx, 1)
}

func (m *Metrics) RecordInvitationSent(ctx context.Context, resend bool) {
	if m == nil {
		return
	}
	m.invitationsSent.Add(ctx, 1, metric.WithAttributes(attribute.Bool("resend", resend)))
}

func (m *Metrics) RecordAccessDenied(ctx context.Context, object, action string) {
	if m == nil {
		return
	}
	m.accessDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("object", object),
		attribute.String("action", action),
	))
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("event_type", eventType),
	))
}
