package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/meditwin-platform/meditwin/internal/api"
	"github.com/meditwin-platform/meditwin/internal/auth"
	"github.com/meditwin-platform/meditwin/internal/biomarkers"
	"github.com/meditwin-platform/meditwin/internal/compressor"
	"github.com/meditwin-platform/meditwin/internal/config"
	"github.com/meditwin-platform/meditwin/internal/database"
	"github.com/meditwin-platform/meditwin/internal/documents"
	"github.com/meditwin-platform/meditwin/internal/extraction"
	"github.com/meditwin-platform/meditwin/internal/feedback"
	"github.com/meditwin-platform/meditwin/internal/inference"
	"github.com/meditwin-platform/meditwin/internal/memory"
	"github.com/meditwin-platform/meditwin/internal/middleware"
	inats "github.com/meditwin-platform/meditwin/internal/nats"
	"github.com/meditwin-platform/meditwin/internal/orchestrator"
	iredis "github.com/meditwin-platform/meditwin/internal/redis"
	"github.com/meditwin-platform/meditwin/internal/server"
)

const trackerWarmLimit = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.MigrateOnStart {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional; without it feedback is applied synchronously and no
	// audit events are published.
	var natsClient *inats.Client
	var publisher *inats.Publisher
	if cfg.NATS.Enabled {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = inats.NewPublisher(natsClient.JetStream())
	}

	// Auth
	verifier := auth.NewVerifier(cfg.Auth.TokenSecret)

	// Memory
	memoryRepo := memory.NewPostgresRepository(pool)
	shortTerm := memory.NewShortTermStore(redisClient)
	memorySvc := memory.NewService(memoryRepo, shortTerm, cfg.Pipeline)
	memoryHandler := memory.NewHandler(memorySvc)

	// Biomarkers
	biomarkerRepo := biomarkers.NewPostgresRepository(pool)
	biomarkerHandler := biomarkers.NewHandler(biomarkerRepo)

	// Analysis results
	documentRepo := documents.NewPostgresRepository(pool)
	documentSvc := documents.NewService(documentRepo, documents.NewLatestCache(redisClient))
	documentHandler := documents.NewHandler(documentSvc)

	// Feedback
	tracker := feedback.NewTracker()
	feedbackRepo := feedback.NewPostgresRepository(pool)
	processor := feedback.NewProcessor(feedbackRepo, tracker)
	processor.Warm(ctx, trackerWarmLimit)
	feedbackHandler := feedback.NewHandler(feedbackPublisher(publisher), processor, tracker)

	if natsClient != nil {
		consumerMgr := inats.NewConsumerManager(natsClient.JetStream())
		consumer := feedback.NewConsumer(processor, consumerMgr)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("feedback consumer stopped", "error", err)
			}
		}()
	}

	// Pipeline
	extractor := extraction.NewClient(cfg.Extraction)
	analyzer := inference.NewAdapter(inference.NewClient(cfg.Inference))
	builder := compressor.NewBuilder(cfg.Pipeline.TokenBudget, cfg.Pipeline.RecentTurns)
	orch := orchestrator.New(memorySvc, extractor, biomarkerRepo, builder, analyzer,
		documentSvc, tracker, auditPublisher(publisher), orchestrator.Options{
			BasePolicy:          inference.PolicyFromConfig(cfg.Inference),
			SimilarFindings:     cfg.Pipeline.SimilarFindings,
			SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
		})
	orchHandler := orchestrator.NewHandler(orch)

	// Rate limiting on the pipeline entry
	var analyzeRateLimiter func(h http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		analyzeRateLimiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit.MaxReqs, cfg.RateLimit.WindowSec).Middleware
	}

	router := api.NewRouter(pool, redisClient, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AnalyzeRateLimiter: analyzeRateLimiter,
	}, api.HandlerSet{
		Analyze: orchHandler.Analyze,

		GetProfile:    memoryHandler.GetProfile,
		UpdateProfile: memoryHandler.UpdateProfile,
		History:       memoryHandler.History,
		GetSummary:    memoryHandler.GetSummary,

		GetBiomarkers:     biomarkerHandler.Get,
		ReplaceBiomarkers: biomarkerHandler.Replace,

		LatestAnalysis: documentHandler.Latest,
		ListAnalyses:   documentHandler.List,

		SubmitFeedback: feedbackHandler.Submit,
		FeedbackBias:   feedbackHandler.Bias,

		AuthMiddleware: auth.Middleware(verifier),
	})

	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// feedbackPublisher converts a possibly nil *Publisher into the handler's
// interface without producing a non-nil interface wrapping a nil pointer.
func feedbackPublisher(p *inats.Publisher) feedback.FeedbackPublisher {
	if p == nil {
		return nil
	}
	return p
}

func auditPublisher(p *inats.Publisher) orchestrator.AuditPublisher {
	if p == nil {
		return nil
	}
	return p
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
