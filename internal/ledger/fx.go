package ledger

import (
	"github.com/steadfastapp/steadfast/internal/ledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(repository.Provide),
)
