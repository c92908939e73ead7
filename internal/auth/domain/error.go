package domain

import "errors"

var (
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidCode     = errors.New("invalid_code")
	ErrCodeExpired     = errors.New("code_expired")
	ErrTooManyAttempts = errors.New("too_many_attempts")
	ErrUserNotFound    = errors.New("user_not_found")
	ErrSessionNotFound = errors.New("session_not_found")
	ErrSessionExpired  = errors.New("session_expired")
	ErrSessionRevoked  = errors.New("session_revoked")
	ErrInvalidSession  = errors.New("invalid_session")
)
