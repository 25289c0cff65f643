package dns

import (
	"github.com/steadfastapp/steadfast/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.dns",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Client {
	if !cfg.DNS.Enabled || cfg.DNS.APIKey == "" {
		return &NoOpClient{}
	}
	return NewHTTPClient(cfg.DNS.BaseURL, cfg.DNS.APIKey)
}
