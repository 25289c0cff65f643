package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/steadfastapp/steadfast/internal/clock"
	"github.com/steadfastapp/steadfast/internal/migration"
	"github.com/steadfastapp/steadfast/internal/server"
	"github.com/steadfastapp/steadfast/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
