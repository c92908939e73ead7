package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tenantry/internal/auth/domain"
	"github.com/smallbiznis/tenantry/internal/auth/otp"
	"github.com/smallbiznis/tenantry/internal/clock"
	"github.com/smallbiznis/tenantry/internal/config"
	"github.com/smallbiznis/tenantry/internal/observability/metrics"
	"github.com/smallbiznis/tenantry/internal/providers/email"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const maxCodeAttempts = 5

type Service struct {
	log        *zap.Logger
	repo       domain.Repository
	sessions   domain.SessionRepository
	codes      domain.LoginCodeRepository
	workspaces workspacedomain.Service
	mailer     email.Provider
	metrics    *metrics.Metrics
	genID      *snowflake.Node
	clock      clock.Clock

	appName    string
	codeTTL    time.Duration
	sessionTTL time.Duration
}

func New(
	log *zap.Logger,
	cfg config.Config,
	repo domain.Repository,
	sessions domain.SessionRepository,
	codes domain.LoginCodeRepository,
	workspaces workspacedomain.Service,
	mailer email.Provider,
	m *metrics.Metrics,
	genID *snowflake.Node,
	clk clock.Clock,
) domain.Service {
	return &Service{
		log:        log,
		repo:       repo,
		sessions:   sessions,
		codes:      codes,
		workspaces: workspaces,
		mailer:     mailer,
		metrics:    m,
		genID:      genID,
		clock:      clk,

		appName:    cfg.AppName,
		codeTTL:    time.Duration(cfg.LoginCodeTTLMin) * time.Minute,
		sessionTTL: time.Duration(cfg.SessionTTLHours) * time.Hour,
	}
}

// RequestCode issues a fresh sign-in code for the email and invalidates any
// earlier outstanding codes. It does not reveal whether an account exists.
func (s *Service) RequestCode(ctx context.Context, req domain.RequestCodeRequest) error {
	emailAddr, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	if err := s.codes.InvalidateCodes(ctx, emailAddr, now); err != nil {
		return err
	}

	code, err := otp.Generate()
	if err != nil {
		return err
	}
	codeHash, err := otp.Hash(code)
	if err != nil {
		return err
	}

	record := &domain.LoginCode{
		ID:        s.genID.Generate(),
		Email:     emailAddr,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(s.codeTTL),
		CreatedAt: now,
	}
	if err := s.codes.CreateCode(ctx, record); err != nil {
		return err
	}

	if err := s.mailer.SendTemplate(ctx, []string{emailAddr}, "login_code", map[string]any{
		"app_name":    s.appName,
		"code":        code,
		"ttl_minutes": int(s.codeTTL.Minutes()),
	}); err != nil {
		s.log.Error("failed to send login code", zap.Error(err))
		return err
	}

	s.log.Info("login code issued", zap.String("email", emailAddr))
	return nil
}

// VerifyCode exchanges a valid code for a session, creating the user account
// and its personal workspace on first sign-in.
func (s *Service) VerifyCode(ctx context.Context, req domain.VerifyCodeRequest) (*domain.LoginResult, error) {
	emailAddr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	codeInput := strings.TrimSpace(req.Code)
	if codeInput == "" {
		return nil, domain.ErrInvalidCode
	}

	now := s.clock.Now()
	record, err := s.codes.LatestActiveCode(ctx, emailAddr, now)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrCodeExpired
	}
	if record.Attempts >= maxCodeAttempts {
		return nil, domain.ErrTooManyAttempts
	}

	if !otp.Verify(codeInput, record.CodeHash) {
		if err := s.codes.IncrementAttempts(ctx, record.ID); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidCode
	}

	if err := s.codes.ConsumeCode(ctx, record.ID, now); err != nil {
		return nil, err
	}

	user, newUser, err := s.ensureUser(ctx, emailAddr, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.workspaces.EnsurePersonalWorkspace(ctx, user.ID); err != nil {
		return nil, err
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(s.sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.metrics.RecordSignIn(ctx)
	s.log.Info("user signed in",
		zap.String("user_id", user.ID.String()),
		zap.Bool("new_user", newUser),
	)

	return &domain.LoginResult{
		User:      user,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
		NewUser:   newUser,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	return s.sessions.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) UpdateSessionActiveOrg(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64) error {
	return s.sessions.UpdateActiveOrg(ctx, sessionID, activeOrgID)
}

func (s *Service) ensureUser(ctx context.Context, emailAddr string, now time.Time) (*domain.User, bool, error) {
	user, err := s.repo.FindByEmail(ctx, emailAddr)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	user = &domain.User{
		ID:        s.genID.Generate(),
		Email:     emailAddr,
		Name:      defaultDisplayName(emailAddr),
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", domain.ErrInvalidEmail
	}
	return trimmed, nil
}

func defaultDisplayName(emailAddr string) string {
	local, _, _ := strings.Cut(emailAddr, "@")
	if local == "" {
		return emailAddr
	}
	return local
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
