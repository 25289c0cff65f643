package user

import (
	"github.com/steadfastapp/steadfast/internal/user/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.Provide),
)
