package compliance

import (
	"github.com/steadfastapp/steadfast/internal/compliance/repository"
	"github.com/steadfastapp/steadfast/internal/compliance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("compliance.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
