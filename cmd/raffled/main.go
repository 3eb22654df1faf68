package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/winwai/raffled/internal/clock"
	"github.com/winwai/raffled/internal/config"
	"github.com/winwai/raffled/internal/logger"
	"github.com/winwai/raffled/internal/migration"
	"github.com/winwai/raffled/internal/observability/metrics"
	"github.com/winwai/raffled/internal/raffle"
	"github.com/winwai/raffled/internal/scheduler"
	"github.com/winwai/raffled/internal/seed"
	"github.com/winwai/raffled/internal/server"
	"github.com/winwai/raffled/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		metrics.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(1)
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsureAdminUser(conn, cfg, genID)
		}),
		raffle.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
