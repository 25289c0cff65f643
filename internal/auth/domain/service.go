package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*userdomain.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	// Authenticate resolves a raw session token to the logged-in user,
	// bumping the session's last-seen time.
	Authenticate(ctx context.Context, rawToken string) (*userdomain.User, error)
}

type RegisterRequest struct {
	Email    string
	Name     string
	Password string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	UserID    snowflake.ID
	RawToken  string
	ExpiresAt time.Time
}
