package auth

import (
	"github.com/steadfastapp/steadfast/internal/auth/repository"
	"github.com/steadfastapp/steadfast/internal/auth/service"
	"github.com/steadfastapp/steadfast/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
	fx.Provide(session.NewManager),
)
