package payment

import (
	"github.com/steadfastapp/steadfast/internal/payment/repository"
	"github.com/steadfastapp/steadfast/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
