package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/steadfastapp/steadfast/internal/auth/domain"
	authrepo "github.com/steadfastapp/steadfast/internal/auth/repository"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/config"
	userdomain "github.com/steadfastapp/steadfast/internal/user/domain"
	userrepo "github.com/steadfastapp/steadfast/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNode = func() *snowflake.Node {
	node, err := snowflake.NewNode(5)
	if err != nil {
		panic(err)
	}
	return node
}()

func setupAuthService(t *testing.T) (authdomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}, &authdomain.Session{}))

	fake := clock.NewFakeClock(time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    testNode,
		Clock:    fake,
		Cfg:      config.Config{SessionTTLHours: 720},
		Users:    userrepo.Provide(),
		Sessions: authrepo.New(db),
	})
	return svc, fake
}

func uniqueEmail() string {
	return "user" + testNode.Generate().String() + "@example.com"
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()
	email := uniqueEmail()

	user, err := svc.Register(ctx, authdomain.RegisterRequest{
		Email:    "  " + email + " ",
		Name:     "Pat",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, email, user.Email)
	assert.Equal(t, "Pat", user.Name)
	assert.Equal(t, 100, user.ComplianceScore)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)

	result, err := svc.Login(ctx, authdomain.LoginRequest{
		Email:    email,
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.UserID)
	assert.NotEmpty(t, result.RawToken)

	authed, err := svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
}

func TestRegisterNameFallsBackToLocalPart(t *testing.T) {
	svc, _ := setupAuthService(t)

	email := uniqueEmail()
	user, err := svc.Register(context.Background(), authdomain.RegisterRequest{
		Email:    email,
		Password: "long enough password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.Name)
	assert.NotContains(t, user.Name, "@")
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, authdomain.RegisterRequest{Email: "not-an-email", Password: "long enough"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Register(ctx, authdomain.RegisterRequest{Email: uniqueEmail(), Password: "short"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()
	email := uniqueEmail()

	_, err := svc.Register(ctx, authdomain.RegisterRequest{Email: email, Password: "long enough password"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, authdomain.RegisterRequest{Email: email, Password: "long enough password"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()
	email := uniqueEmail()

	_, err := svc.Register(ctx, authdomain.RegisterRequest{Email: email, Password: "the right password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: email, Password: "the wrong password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: uniqueEmail(), Password: "whatever works"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, fake := setupAuthService(t)
	ctx := context.Background()
	email := uniqueEmail()

	_, err := svc.Register(ctx, authdomain.RegisterRequest{Email: email, Password: "long enough password"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, authdomain.LoginRequest{Email: email, Password: "long enough password"})
	require.NoError(t, err)

	fake.Advance(721 * time.Hour)

	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := setupAuthService(t)
	ctx := context.Background()
	email := uniqueEmail()

	_, err := svc.Register(ctx, authdomain.RegisterRequest{Email: email, Password: "long enough password"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, authdomain.LoginRequest{Email: email, Password: "long enough password"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.RawToken))

	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)

	// Logging out an unknown token is not an error.
	require.NoError(t, svc.Logout(ctx, "no-such-token"))
}

func TestAuthenticateUnknownToken(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Authenticate(context.Background(), "bogus-token")
	assert.ErrorIs(t, err, authdomain.ErrSessionNotFound)

	_, err = svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, authdomain.ErrSessionNotFound)
}
