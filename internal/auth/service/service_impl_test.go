package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/tenantry/internal/auth/domain"
	authrepository "github.com/smallbiznis/tenantry/internal/auth/repository"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/config"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	workspacerepository "github.com/smallbiznis/tenantry/internal/workspace/repository"
	workspaceservice "github.com/smallbiznis/tenantry/internal/workspace/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type captureMailer struct {
	mu    sync.Mutex
	sends []map[string]any
	err   error
}

func (m *captureMailer) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return m.err
}

func (m *captureMailer) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, data)
	return nil
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sends) == 0 {
		t.Fatal("no email sent")
	}
	code, ok := m.sends[len(m.sends)-1]["code"].(string)
	if !ok {
		t.Fatal("login code email missing code field")
	}
	return code
}

func setupAuth(t *testing.T) (domain.Service, *captureMailer, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&domain.User{},
		&domain.Session{},
		&domain.LoginCode{},
		&workspacedomain.Organization{},
		&workspacedomain.OrganizationMember{},
		&workspacedomain.OrganizationInvitation{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	mailer := &captureMailer{}

	cfg := config.Config{
		AppName:         "tenantry",
		LoginCodeTTLMin: 10,
		SessionTTLHours: 168,
	}

	wsRepo := workspacerepository.NewRepository(dbConn)
	wsService := workspaceservice.NewService(dbConn, wsRepo, node, clk)

	svc := New(
		zap.NewNop(),
		cfg,
		authrepository.NewRepository(dbConn),
		authrepository.NewSessionRepository(dbConn),
		authrepository.NewLoginCodeRepository(dbConn),
		wsService,
		mailer,
		nil,
		node,
		clk,
	)
	return svc, mailer, clk
}

func TestSignInFlowCreatesUserAndPersonalWorkspace(t *testing.T) {
	svc, mailer, _ := setupAuth(t)
	ctx := context.Background()

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: "New@Example.com"}); err != nil {
		t.Fatalf("request code: %v", err)
	}

	result, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{
		Email: "new@example.com",
		Code:  mailer.lastCode(t),
	})
	if err != nil {
		t.Fatalf("verify code: %v", err)
	}
	if !result.NewUser {
		t.Fatal("first verification must create the account")
	}
	if result.User.Email != "new@example.com" {
		t.Fatalf("email = %q, must be normalized", result.User.Email)
	}
	if result.RawToken == "" {
		t.Fatal("expected session token")
	}

	session, err := svc.Authenticate(ctx, result.RawToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.UserID != result.User.ID {
		t.Fatal("session bound to wrong user")
	}
}

func TestVerifyCodeRejectsWrongAndConsumedCodes(t *testing.T) {
	svc, mailer, _ := setupAuth(t)
	ctx := context.Background()
	email := "user@example.com"

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: email}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: wrong}); !errors.Is(err, domain.ErrInvalidCode) {
		t.Fatalf("wrong code: expected ErrInvalidCode, got %v", err)
	}

	if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: code}); err != nil {
		t.Fatalf("correct code: %v", err)
	}

	// The code is consumed; replay must fail.
	if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: code}); !errors.Is(err, domain.ErrCodeExpired) {
		t.Fatalf("replay: expected ErrCodeExpired, got %v", err)
	}
}

func TestVerifyCodeExpires(t *testing.T) {
	svc, mailer, clk := setupAuth(t)
	ctx := context.Background()
	email := "user@example.com"

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: email}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := mailer.lastCode(t)

	clk.Advance(11 * time.Minute)

	if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: code}); !errors.Is(err, domain.ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}

func TestVerifyCodeAttemptLimit(t *testing.T) {
	svc, mailer, _ := setupAuth(t)
	ctx := context.Background()
	email := "user@example.com"

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: email}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	for i := 0; i < maxCodeAttempts; i++ {
		if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: wrong}); !errors.Is(err, domain.ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
		}
	}

	// Even the right code is rejected once the attempt budget is spent.
	if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: code}); !errors.Is(err, domain.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestRequestCodeInvalidatesOlderCodes(t *testing.T) {
	svc, mailer, _ := setupAuth(t)
	ctx := context.Background()
	email := "user@example.com"

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: email}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	first := mailer.lastCode(t)

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: email}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	second := mailer.lastCode(t)

	if first != second {
		if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: first}); err == nil {
			t.Fatal("stale code must not verify")
		}
	}
	if _, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: second}); err != nil {
		t.Fatalf("fresh code: %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, mailer, _ := setupAuth(t)
	ctx := context.Background()
	email := "user@example.com"

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: email}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	result, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: mailer.lastCode(t)})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := svc.Logout(ctx, result.RawToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, result.RawToken); !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	svc, mailer, clk := setupAuth(t)
	ctx := context.Background()
	email := "user@example.com"

	if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: email}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	result, err := svc.VerifyCode(ctx, domain.VerifyCodeRequest{Email: email, Code: mailer.lastCode(t)})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	clk.Advance(169 * time.Hour)

	if _, err := svc.Authenticate(ctx, result.RawToken); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRequestCodeValidation(t *testing.T) {
	svc, _, _ := setupAuth(t)
	ctx := context.Background()

	for _, bad := range []string{"", "   ", "not-an-email", "a b@example.com"} {
		if err := svc.RequestCode(ctx, domain.RequestCodeRequest{Email: bad}); !errors.Is(err, domain.ErrInvalidEmail) {
			t.Fatalf("email %q: expected ErrInvalidEmail, got %v", bad, err)
		}
	}
}
