package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/kadkita/kadkita/internal/migration"
	"github.com/kadkita/kadkita/internal/observability"
	"github.com/kadkita/kadkita/internal/server"
	"github.com/kadkita/kadkita/pkg/db"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
