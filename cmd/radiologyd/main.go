package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
	"github.com/RaphaelThineyUE/radiology-insight/internal/consolidate"
	"github.com/RaphaelThineyUE/radiology-insight/internal/export"
	"github.com/RaphaelThineyUE/radiology-insight/internal/extract"
	"github.com/RaphaelThineyUE/radiology-insight/internal/llm"
	"github.com/RaphaelThineyUE/radiology-insight/internal/pipeline"
	"github.com/RaphaelThineyUE/radiology-insight/internal/repository"
	"github.com/RaphaelThineyUE/radiology-insight/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		docs        repository.DocumentStore
		extractions repository.ExtractionStore
		logs        repository.LogStore
		pinger      server.PingFunc
	)

	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, log)
		if err != nil {
			log.Error("database open failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout); err != nil {
			log.Error("database health failed", "error", err)
			os.Exit(1)
		}
		log.Info("database health OK")

		docs = repository.NewPostgresDocumentStore(pool, log)
		extractions = repository.NewPostgresExtractionStore(pool, log)
		logs = repository.NewPostgresLogStore(pool, log)
		pinger = func(ctx context.Context) error {
			return repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout)
		}
	} else {
		stores, err := repository.OpenSQLite(ctx, cfg.Database.SQLitePath, log)
		if err != nil {
			log.Error("sqlite open failed", "error", err)
			os.Exit(1)
		}
		defer stores.Close()

		docs = stores.Documents
		extractions = stores.Extractions
		logs = stores.Logs
		pinger = stores.Ping
	}

	chat := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, log)

	orch := pipeline.NewOrchestrator(
		docs, extractions, logs,
		extract.NewHeuristicExtractor(log),
		chat,
		pipeline.Options{
			MaxInputChars: cfg.Extract.MaxInputChars,
			ModelTimeout:  cfg.LLM.Timeout,
		},
		log,
	)

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(cfg, docs, logs, orch,
		consolidate.NewComposer(chat, log),
		export.NewService(extractions, log),
		pinger, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 180 * time.Second,
	}

	go func() {
		log.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
	log.Info("stopped")
}
