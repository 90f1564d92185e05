package main

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/targc/servio/pkg/api"
	"github.com/targc/servio/pkg/config"
	"github.com/targc/servio/pkg/database"
	"github.com/targc/servio/pkg/directory"
	"github.com/targc/servio/pkg/engine"
	"github.com/targc/servio/pkg/gateway"
	"github.com/targc/servio/pkg/logging"
	"github.com/targc/servio/pkg/metrics"
	"github.com/targc/servio/pkg/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)

	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogConsole)

	db, err := database.Connect(cfg.DBURL)

	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.AutoMigrate {
		err = database.AutoMigrate(db)

		if err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	m := metrics.New()

	eng := engine.NewEngine(
		store.NewStore(db),
		gateway.NewClient(cfg.GatewayURL, cfg.UpstreamTimeout),
		directory.NewClient(cfg.DirectoryURL, cfg.UpstreamTimeout),
		logger,
		m,
	)

	app := fiber.New(fiber.Config{
		AppName: "Servio API Server",
	})

	server := api.NewServer(db, eng, m, logger)
	server.SetupRoutes(app)

	logger.Info().Str("port", cfg.ServerPort).Msg("starting API server")

	err = app.Listen(":" + cfg.ServerPort)

	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
