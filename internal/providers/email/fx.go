package email

import (
	"github.com/steadfastapp/steadfast/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if !cfg.Email.Enabled {
		return &NoOpProvider{}
	}
	return NewSMTP(cfg.Email)
}
