package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"selfid/internal/auth"
	"selfid/internal/did"
	"selfid/internal/editor"
	editorHandler "selfid/internal/editor/handler"
	"selfid/internal/idx"
	idxHandler "selfid/internal/idx/handler"
	"selfid/internal/idx/setup"
	"selfid/internal/platform/bg"
	"selfid/internal/platform/config"
	"selfid/internal/platform/httpserver"
	"selfid/internal/platform/logger"
	"selfid/internal/platform/metrics"
	"selfid/internal/platform/middleware"
	"selfid/internal/profile"
	"selfid/pkg/platform/httputil"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	keyring, err := did.NewKeyringFromHex(cfg.Auth.WalletSeeds)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	tokens := auth.NewTokenService(cfg.Auth.TokenAudience, cfg.Auth.TokenTTL)
	provider := auth.NewKeyringProvider(keyring, tokens, log)

	infra, err := setup.Build(ctx, cfg, provider, m, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	client := idx.NewClient(infra.Store, provider, log)
	runner := &bg.Tracked{Logger: log}
	editors := editorHandler.New(editor.Deps{
		Auth:     provider,
		Profiles: profile.NewRepository(client),
		Runner:   runner,
		Logger:   log,
		Metrics:  m,
	}, provider, log, m, editorHandler.WithIdleTTL(cfg.SessionIdleTTL))

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := infra.Health(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	editors.Register(r)
	if infra.Local {
		idxHandler.New(infra.Store, log, m, auth.NewTokenServiceAdapter(tokens)).Register(r)
	}

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		editors.RunSweeper(gctx, cfg.SessionSweepInterval)
		return nil
	})
	g.Go(func() error {
		log.Info("starting selfid",
			"addr", cfg.Addr,
			"environment", cfg.Environment,
			"index_backend", cfg.Index.Backend,
			"identities", len(provider.KnownDIDs()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		editors.Close()
		runner.Wait()
		log.Info("server stopped")
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
