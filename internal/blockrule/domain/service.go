package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	LatestActive(ctx context.Context, platform Platform) (*BlockRule, error)
	GetByID(ctx context.Context, id snowflake.ID) (*BlockRule, error)
	ListActive(ctx context.Context) ([]BlockRule, error)
}
