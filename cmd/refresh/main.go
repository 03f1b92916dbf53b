// Command refresh runs the bulk price-refresh daemon. On an interval it
// revalues every investment account from live prices and reconciles the
// ledgers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/go-co-op/gocron/v2"

	"moneta/internal/config"
	"moneta/internal/database"
	"moneta/internal/logger"
	"moneta/internal/prices"
	"moneta/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	priceService := prices.NewService(appConfig)
	investmentService := services.NewInvestmentService(dbManager.DB(), priceService)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(appConfig.RefreshInterval),
		gocron.NewTask(refreshTask(investmentService)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh job: %w", err)
	}

	logger.Get().Infof("Starting refresh daemon, interval %s", appConfig.RefreshInterval)
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down refresh daemon")
	return scheduler.Shutdown()
}

func refreshTask(investmentService services.InvestmentServicer) func(ctx context.Context) {
	log := logger.Get()
	return func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("panic recovered in refresh job",
					"panic", r,
					"stacktrace", string(debug.Stack()),
				)
			}
		}()

		result, err := investmentService.RefreshAllAccounts(ctx)
		if err != nil {
			log.Errorw("refresh failed", "error", err.Error())
			return
		}

		log.Infow("refresh completed",
			"processed", result.Processed,
			"updated", result.Updated,
			"errors", len(result.Errors),
			"warnings", len(result.Warnings),
		)
		for _, e := range result.Errors {
			log.Warnw("refresh account error", "detail", e)
		}
	}
}
