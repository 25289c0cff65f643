package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
}
