package blockrule

import (
	"github.com/steadfastapp/steadfast/internal/blockrule/repository"
	"github.com/steadfastapp/steadfast/internal/blockrule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("blockrule.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
