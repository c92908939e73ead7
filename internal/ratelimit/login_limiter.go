package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tenantry/internal/config"
	"go.uber.org/zap"
)

const (
	keyLoginCodeEmail = "auth:code:email:%s"
	keyLoginCodeIP    = "auth:code:ip:%s"
	keyInvitationOrg  = "invitation:send:org:%s"
)

// LoginLimiter throttles outbound email actions (sign-in codes, invitation
// sends). Disabled when redis is not configured; in that mode every request
// is allowed, which is acceptable for single-instance development setups.
type LoginLimiter struct {
	log    *zap.Logger
	bucket *TokenBucket
}

func NewLoginLimiter(cfg config.Config, log *zap.Logger) *LoginLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Warn("redis not configured, email rate limiting disabled")
		return &LoginLimiter{log: log}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
	return &LoginLimiter{log: log, bucket: NewTokenBucket(client)}
}

// AllowCodeRequest gates sign-in code issuance per email address and per
// client IP. One code per 30s with a small burst per email; a looser per-IP
// bucket catches address-rotation abuse.
func (l *LoginLimiter) AllowCodeRequest(ctx context.Context, email, ip string) bool {
	if l == nil || l.bucket == nil {
		return true
	}
	if !l.allow(ctx, fmt.Sprintf(keyLoginCodeEmail, email), 1.0/30.0, 3) {
		return false
	}
	if strings.TrimSpace(ip) == "" {
		return true
	}
	return l.allow(ctx, fmt.Sprintf(keyLoginCodeIP, ip), 0.5, 10)
}

// AllowInvitationSend gates invitation email volume per organization.
func (l *LoginLimiter) AllowInvitationSend(ctx context.Context, orgID string) bool {
	if l == nil || l.bucket == nil {
		return true
	}
	return l.allow(ctx, fmt.Sprintf(keyInvitationOrg, orgID), 0.2, 20)
}

func (l *LoginLimiter) allow(ctx context.Context, key string, rate float64, burst int) bool {
	result, err := l.bucket.Allow(ctx, key, rate, burst)
	if err != nil {
		// Fail open: a redis outage must not lock everyone out of sign-in.
		l.log.Error("rate limiter check failed", zap.String("key", key), zap.Error(err))
		return true
	}
	return result.Allowed
}
