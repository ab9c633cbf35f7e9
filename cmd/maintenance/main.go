// Command maintenance runs one batch job and exits, for use from cron or a
// Kubernetes CronJob.
//
//	maintenance settle       settle every attempt whose window has closed
//	maintenance reattribute  rebuild expense links for users with active attempts
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"geumjjoki/internal/clock"
	"geumjjoki/internal/config"
	"geumjjoki/internal/database"
	"geumjjoki/internal/events"
	"geumjjoki/internal/logger"
	"geumjjoki/internal/maintenance"
	"geumjjoki/internal/services"
	"geumjjoki/internal/telemetry"
)

func main() {
	logger.Init(os.Getenv("ENV"))

	code, err := run()
	if err != nil {
		logger.Get().Errorf("Maintenance error: %v", err)
		code = 1
	}
	logger.Sync()
	os.Exit(code)
}

// run returns exit code 2 when the job finished but some users failed.
func run() (int, error) {
	if len(os.Args) < 2 {
		return 0, fmt.Errorf("usage: maintenance <settle|reattribute>")
	}

	cfg, err := config.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "geumjjoki-maintenance", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.Get().Warnw("tracing disabled", "error", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqp, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Get().Warnw("event publishing disabled", "error", err)
		} else {
			publisher = amqp
		}
	}
	defer publisher.Close()

	db := dbManager.DB()
	clk := clock.New(cfg.Location())
	locks := services.NewUserLocks()
	profiles := services.NewProfileService(db)

	runner := maintenance.NewRunner(
		maintenance.NewUserSource(db),
		services.NewUserChallengeService(db, clk, profiles, publisher, locks),
		services.NewAttributionService(db, clk, locks),
		cfg.MaintenanceConcurrency,
		logger.Named("maintenance"),
	)

	switch command := os.Args[1]; command {
	case "settle":
		result, err := runner.Settle(ctx)
		if err != nil {
			return 0, err
		}
		if result.Errors > 0 {
			return 2, nil
		}
	case "reattribute":
		result, err := runner.Reattribute(ctx)
		if err != nil {
			return 0, err
		}
		if len(result.Errors) > 0 {
			return 2, nil
		}
	default:
		return 0, fmt.Errorf("unknown command: %s (use settle or reattribute)", command)
	}
	return 0, nil
}
