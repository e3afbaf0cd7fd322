package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"motodean/internal/config"
	"motodean/internal/http/handlers"
	applog "motodean/internal/log"
	"motodean/internal/outbox"
	"motodean/internal/repos"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Optional file logging
	var sinks []io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not open log file %s: %v\n", cfg.LogFile, err)
		} else {
			defer f.Close()
			sinks = append(sinks, f)
		}
	}
	lg := applog.New(cfg.LogLevel, sinks...)
	defer func() { _ = lg.Sync() }()
	applog.SetDefault(lg)

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedDemo {
		if err := repos.SeedDemo(ctx, db); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	var pub outbox.Publisher = outbox.LogPublisher{Log: lg.Named("outbox")}
	if len(cfg.KafkaBrokers) > 0 {
		pub = outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		lg.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer pub.Close()
	relay := outbox.NewRelay(repos.NewOutboxRepo(db), pub, lg.Named("outbox"), cfg.OutboxInterval)
	relayDone := make(chan error, 1)
	go func() { relayDone <- relay.Run(ctx) }()

	deps := handlers.NewDeps(db, cfg, lg)
	app := handlers.NewApp(deps, handlers.AppOptions{
		CSRF:       true,
		RateLimit:  120,
		LoginLimit: 5,
		Middleware: []fiber.Handler{logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		})},
	})

	listenErr := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DBDriver))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		stop()
		<-relayDone
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownErr := app.ShutdownWithTimeout(10 * time.Second)
	if err := <-relayDone; err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("outbox relay stopped", zap.Error(err))
	}
	return shutdownErr
}
