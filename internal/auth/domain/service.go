package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	RequestCode(ctx context.Context, req RequestCodeRequest) error
	VerifyCode(ctx context.Context, req VerifyCodeRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	CurrentUser(ctx context.Context, userID snowflake.ID) (*User, error)
	UpdateSessionActiveOrg(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64) error
}

type RequestCodeRequest struct {
	Email string
}

type VerifyCodeRequest struct {
	Email     string
	Code      string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
	// NewUser reports whether this verification created the account.
	NewUser bool
}
