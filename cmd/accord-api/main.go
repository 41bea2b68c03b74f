package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/accord-chat/accord-server/internal/api"
	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/config"
	"github.com/accord-chat/accord-server/internal/httputil"
	"github.com/accord-chat/accord-server/internal/postgres"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("API stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Info().Msg("Starting Accord API")

	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := postgres.Migrate(cfg.Database.DSN()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	rdb, err := broker.Connect(ctx, cfg.Broker)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer rdb.Close()
	log.Info().Str("queue", cfg.Broker.Queue).Msg("Broker connected")

	events := broker.NewPublisher(rdb, cfg.Broker.Queue, log.Logger)
	repos := api.NewRepositories(db)

	app := fiber.New(fiber.Config{
		AppName:               "Accord API",
		DisableStartupMessage: true,
	})
	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger))
	app.Use(cors.New(cors.Config{
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization",
		ExposeHeaders: "X-Request-ID",
	}))

	api.RegisterRoutes(app, repos, events, db, rdb, cfg.Application.JWTSecret, log.Logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("Shutting down API")
		_ = app.Shutdown()
	}()

	addr := cfg.Application.Addr()
	log.Info().Str("addr", addr).Msg("API listening")
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
