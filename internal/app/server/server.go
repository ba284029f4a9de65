package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic/internal/domain/audit"
	"clinic/internal/domain/compliance"
	"clinic/internal/platform/config"
	cryptoutil "clinic/internal/platform/crypto"
	"clinic/internal/platform/db"
	"clinic/internal/platform/email"
	"clinic/internal/platform/jobs"
	"clinic/internal/platform/metrics"
	audithandler "clinic/internal/transport/http/handlers/audit"
	compliancehandler "clinic/internal/transport/http/handlers/compliance"
	"clinic/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	policies := compliance.DefaultPolicies()
	if cfg.PolicyFile != "" {
		policies, err = compliance.LoadPolicies(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("retention policy file invalid: %v", err)
		}
	}

	encryptor, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		log.Fatalf("encryption key invalid: %v", err)
	}

	collector := metrics.New()
	auditor := audit.New(pool)
	store := compliance.NewStore(pool)
	engine := compliance.NewService(store, policies, email.New(cfg), collector, encryptor, compliance.Options{
		ExportDir:       cfg.ExportDir,
		DownloadBaseURL: cfg.DownloadBaseURL,
		ExportTokenTTL:  cfg.ExportTokenTTL,
	})

	scheduler := jobs.New(engine, cfg.RetentionSchedule)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("retention scheduler failed: %v", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		complianceHandler := compliancehandler.NewHandler(engine, auditor)
		complianceHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditor)
		auditHandler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "err", err)
		}
	}()

	slog.Info("compliance console listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
