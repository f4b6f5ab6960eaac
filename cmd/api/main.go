package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lumashop/api/internal/di"
	"github.com/lumashop/api/internal/handlers"
	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/config"
	"github.com/lumashop/api/internal/platform/idempotency"
	"github.com/lumashop/api/internal/platform/observability"
	"github.com/lumashop/api/internal/services"
)

const (
	startTimeout    = 15 * time.Second
	drainTimeout    = 10 * time.Second
	closeTimeout    = 5 * time.Second
	cleanupDeadline = time.Minute
)

func main() {
	base, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger := base.Named("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(observability.WithLogger(ctx, logger), logger, time.Now().UTC())
	stop()
	_ = base.Sync()
	if err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

// run wires the process and blocks until ctx is cancelled or the listener fails. Resources
// are released in reverse order of acquisition.
func run(ctx context.Context, logger *zap.Logger, startedAt time.Time) error {
	env, err := config.EnvironmentValues()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	fetcher, err := newSecretFetcher(ctx, logger, env)
	if err != nil {
		return fmt.Errorf("secret fetcher: %w", err)
	}
	defer closeLogged(logger, "secret fetcher", fetcher.Close)

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(env)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Error("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		return fmt.Errorf("load configuration: %w", err)
	}

	infra, err := openInfrastructure(ctx, logger, cfg, fetcher)
	defer infra.close()
	if err != nil {
		return err
	}

	build := buildInfo(env, cfg, startedAt)
	effects := services.NewSideEffects()
	container, err := di.NewContainer(cfg, infra.registry, di.Infrastructure{
		Logger:          logger,
		Metrics:         infra.metrics,
		Mail:            infra.mail,
		Uploads:         infra.uploads,
		Publisher:       infra.publisher,
		PaymentVerifier: infra.payments,
		Build:           build,
		SideEffects:     effects.Go,
		// Analytics publishing and secret refresh degrade gracefully.
		OptionalDependencies: []string{"pubsub", "secretManager"},
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer closeLogged(logger, "repositories", func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		return container.Close(closeCtx)
	})
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	err = container.Start(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("order numbering: %w", err)
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return fmt.Errorf("firebase verifier: %w", err)
	}
	router := newRouter(cfg, logger, infra, container.Services, auth.NewAuthenticator(verifier), build)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("lumashop api listening", zap.String("addr", server.Addr), zap.String("version", build.Version))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	// Post-commit emails and analytics publishes finish before repositories close.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("draining requests")
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		shutdownErr := server.Shutdown(drainCtx)
		if err := effects.Wait(drainCtx); err != nil {
			logger.Warn("side effects still running at shutdown", zap.Error(err))
		}
		return shutdownErr
	})
	// Redis expires keys itself; only the Firestore-backed store needs sweeping.
	if every := cfg.Idempotency.CleanupInterval; every > 0 && infra.redis == nil {
		g.Go(func() error {
			sweepIdempotency(gctx, logger.Named("idempotency"), infra.idempotency, every, cfg.Idempotency.CleanupBatchSize)
			return nil
		})
	}
	return g.Wait()
}

func newRouter(cfg config.Config, logger *zap.Logger, infra *infrastructure, svc di.Services, authn *auth.Authenticator, build services.BuildInfo) http.Handler {
	idem := idempotency.Middleware(infra.idempotency,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)
	httpLogger := logger.Named("http")

	orders := handlers.NewOrderHandlers(authn, svc.Orders,
		handlers.WithOrderIdempotency(idem),
		handlers.WithOrderPageSize(cfg.Orders.PageSize, cfg.Orders.MaxPageSize),
	)
	admin := handlers.NewAdminHandlers(authn, handlers.AdminDeps{
		Catalog:    svc.Catalog,
		Promotions: svc.Promotions,
		Media:      svc.Media,
		Analytics:  svc.Analytics,
	})
	internal := handlers.NewInternalHandlers(svc.Promotions,
		handlers.WithInternalIdempotencyStore(infra.idempotency, cfg.Idempotency.CleanupBatchSize),
	)

	return handlers.NewRouter(
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(httpLogger),
			observability.TraceMiddleware(firstNonEmpty(cfg.Firebase.ProjectID, cfg.Firestore.ProjectID)),
			observability.RecoveryMiddleware(httpLogger),
			observability.RequestLoggerMiddleware(infra.metrics),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(build),
			handlers.WithHealthSystemService(svc.System),
		)),
		handlers.WithMetricsHandler(infra.metrics.Handler()),
		handlers.WithPublicRoutes(
			handlers.NewCatalogHandlers(svc.Catalog, svc.Promotions, svc.Media).Routes,
			handlers.NewReviewHandlers(authn, svc.Reviews).Routes,
			handlers.NewAnalyticsHandlers(authn, svc.Analytics).Routes,
		),
		handlers.WithOrderRoutes(orders.Routes),
		handlers.WithCartRoutes(handlers.NewCartHandlers(authn, svc.Cart).Routes),
		handlers.WithMeRoutes(handlers.NewMeHandlers(authn, svc.Users, handlers.WithMeWishlist(svc.Wishlist)).Routes),
		handlers.WithAdminRoutes(admin.Routes),
		handlers.WithWebhookRoutes(handlers.NewWebhookHandlers(svc.Orders).Routes),
		handlers.WithWebhookMiddlewares(paymentWebhookGuard(cfg)),
		handlers.WithInternalRoutes(internal.Routes),
		handlers.WithInternalMiddlewares(internalCallerGuard(logger.Named("auth"), cfg)),
	)
}

func sweepIdempotency(ctx context.Context, logger *zap.Logger, store idempotency.Store, every time.Duration, batch int) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		sweepCtx, cancel := context.WithTimeout(ctx, cleanupDeadline)
		removed, err := store.CleanupExpired(sweepCtx, time.Now().UTC(), batch)
		cancel()
		switch {
		case err != nil:
			logger.Error("idempotency cleanup failed", zap.Error(err))
		case removed > 0:
			logger.Info("idempotency records expired", zap.Int("count", removed))
		}
	}
}

func buildInfo(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	return services.BuildInfo{
		Version:     firstNonEmpty(env["API_BUILD_VERSION"], "dev"),
		CommitSHA:   firstNonEmpty(env["API_BUILD_COMMIT_SHA"], "unknown"),
		Environment: firstNonEmpty(cfg.Security.Environment, "local"),
		StartedAt:   started,
	}
}

func closeLogged(logger *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("close failed", zap.String("resource", what), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
