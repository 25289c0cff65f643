package affiliate

import (
	"github.com/steadfastapp/steadfast/internal/affiliate/repository"
	"github.com/steadfastapp/steadfast/internal/affiliate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("affiliate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
