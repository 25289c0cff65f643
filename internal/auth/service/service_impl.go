package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/steadfastapp/steadfast/internal/auth/domain"
	"github.com/steadfastapp/steadfast/internal/auth/password"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/config"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	"github.com/steadfastapp/steadfast/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sessionTokenBytes = 32
	minPasswordLength = 8
)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	users    userdomain.Repository
	sessions authdomain.SessionRepository
	ttl      time.Duration
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Users    userdomain.Repository
	Sessions authdomain.SessionRepository
}

func NewService(p ServiceParam) authdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("auth.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		users:    p.Users,
		sessions: p.Sessions,
		ttl:      time.Duration(p.Cfg.SessionTTLHours) * time.Hour,
	}
}

// Register implements domain.Service.
func (s *Service) Register(ctx context.Context, req authdomain.RegisterRequest) (*userdomain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, authdomain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, authdomain.ErrInvalidCredentials
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user := &userdomain.User{
		ID:                 s.genID.Generate(),
		Email:              email,
		Name:               name,
		Role:               userdomain.RoleNormal,
		PasswordHash:       hashed,
		ComplianceScore:    100,
		SubscriptionStatus: userdomain.SubscriptionNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.users.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, authdomain.ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

// Login implements domain.Service.
func (s *Service) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, authdomain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, authdomain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || !password.Verify(req.Password, user.PasswordHash) {
		return nil, authdomain.ErrInvalidCredentials
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &authdomain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(s.ttl),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("login", zap.Int64("user_id", int64(user.ID)))
	return &authdomain.LoginResult{
		UserID:    user.ID,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout implements domain.Service. Unknown tokens succeed silently.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}
	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		if err == authdomain.ErrSessionNotFound {
			return nil
		}
		return err
	}
	return s.sessions.RevokeSession(ctx, session.ID, s.clock.Now())
}

// Authenticate implements domain.Service.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*userdomain.User, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, authdomain.ErrSessionNotFound
	}
	session, err := s.sessions.GetSessionByTokenHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, authdomain.ErrSessionRevoked
	}
	if !session.ExpiresAt.After(now) {
		return nil, authdomain.ErrSessionExpired
	}

	user, err := s.users.FindByID(ctx, s.db, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrSessionNotFound
	}

	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.log.Warn("session last-seen update failed", zap.Error(err))
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
