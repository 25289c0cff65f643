package giftcode

import (
	"github.com/steadfastapp/steadfast/internal/giftcode/repository"
	"github.com/steadfastapp/steadfast/internal/giftcode/service"
	"go.uber.org/fx"
)

var Module = fx.Module("giftcode.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
