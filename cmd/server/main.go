// Package main is the entry point for Lookout, a batch analysis coordinator
// for portfolio tickers. It fetches market data from Finnhub, computes
// technical indicators, optionally asks a Bedrock model for a trading
// decision, and exposes the runs over an HTTP API plus a daily schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/lookout/internal/analysis"
	"github.com/aristath/lookout/internal/batch"
	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/clients/finnhub"
	"github.com/aristath/lookout/internal/config"
	"github.com/aristath/lookout/internal/llm"
	"github.com/aristath/lookout/internal/market"
	"github.com/aristath/lookout/internal/portfolio"
	"github.com/aristath/lookout/internal/schedule"
	"github.com/aristath/lookout/internal/server"
	"github.com/aristath/lookout/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Lookout")

	hours, err := market.NewHours(cfg.Market)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load market hours")
	}

	store, err := cache.NewSQLiteStore(filepath.Join(cfg.DataDir, "cache.db"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache store")
	}
	defer store.Close()

	tiered := cache.New(cfg.Cache, hours, store, log)

	if cfg.FinnhubAPIKey == "" {
		log.Warn().Msg("FINNHUB_API_KEY not set - market data requests will be rejected upstream")
	}
	dataClient := finnhub.NewClient(cfg.FinnhubAPIKey, tiered, log)

	var model llm.ChatModel
	if cfg.LLM.Enabled {
		bedrock, err := llm.NewBedrockModel(context.Background(), cfg.LLM, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Bedrock model")
		}
		model = bedrock
		log.Info().Str("model_id", cfg.LLM.ModelID).Msg("Bedrock model enabled")
	} else {
		log.Info().Msg("LLM disabled, using rule-based decisions")
	}

	pipeline := analysis.NewPipeline(dataClient, model, log)
	coordinator := batch.NewCoordinator(pipeline, cfg.Batch, log)

	tickerSource := func() ([]string, error) {
		return portfolio.LoadTickers(cfg.DailyRun.PortfolioFile)
	}

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		Batch:   server.NewBatchHandlers(coordinator, tickerSource, log),
		System:  server.NewSystemHandlers(log, hours, tiered),
	})

	sched := schedule.New(log)
	if cfg.DailyRun.Enabled {
		job := schedule.NewDailyBatchJob(coordinator, tickerSource, log)
		if err := sched.Register(cfg.DailyRun.Schedule, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register daily batch job")
		}
	}
	if cfg.Cache.SweepInterval > 0 {
		sweep := schedule.NewCacheSweepJob(tiered, log)
		spec := "@every " + cfg.Cache.SweepInterval.String()
		if err := sched.Register(spec, sweep); err != nil {
			log.Fatal().Err(err).Msg("Failed to register cache sweep job")
		}
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
