package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/accord-chat/accord-server/internal/broker"
	"github.com/accord-chat/accord-server/internal/channel"
	"github.com/accord-chat/accord-server/internal/config"
	"github.com/accord-chat/accord-server/internal/gateway"
	"github.com/accord-chat/accord-server/internal/httputil"
	"github.com/accord-chat/accord-server/internal/member"
	"github.com/accord-chat/accord-server/internal/message"
	"github.com/accord-chat/accord-server/internal/postgres"
	"github.com/accord-chat/accord-server/internal/server"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Gateway stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Info().Msg("Starting Accord Gateway")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := broker.Connect(ctx, cfg.Broker)
	if err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	defer rdb.Close()
	log.Info().Str("queue", cfg.Broker.Queue).Msg("Broker connected")

	store := gateway.NewRepoStore(
		channel.NewPGRepository(db),
		server.NewPGRepository(db),
		member.NewPGRepository(db),
		message.NewPGRepository(db),
	)
	hub := gateway.NewHub(store, log.Logger)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "gateway"
	}
	consumer := broker.NewConsumer(rdb, cfg.Broker.Queue, hostname, hub.HandleEvent, log.Logger)

	app := fiber.New(fiber.Config{
		AppName:               "Accord Gateway",
		DisableStartupMessage: true,
	})
	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger))

	listener := gateway.NewListener(hub, cfg.Application.JWTSecret, log.Logger)
	app.Get("/gateway", listener.Upgrade)

	// Broker loss is fatal; the supervisor restarts the process and the
	// durable queue replays unacknowledged events.
	errs := make(chan error, 2)
	go func() { errs <- hub.Run(ctx) }()
	go func() { errs <- consumer.Run(ctx) }()

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down gateway")
		_ = app.Shutdown()
	}()

	addr := cfg.Application.Addr()
	log.Info().Str("addr", addr).Msg("Gateway listening")
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	cancel()
	return <-errs
}
