package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	UpdateActiveOrg(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
}

type LoginCodeRepository interface {
	CreateCode(ctx context.Context, code *LoginCode) error
	LatestActiveCode(ctx context.Context, email string, now time.Time) (*LoginCode, error)
	IncrementAttempts(ctx context.Context, codeID snowflake.ID) error
	ConsumeCode(ctx context.Context, codeID snowflake.ID, consumedAt time.Time) error
	InvalidateCodes(ctx context.Context, email string, consumedAt time.Time) error
}
