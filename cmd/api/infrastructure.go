package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lumashop/api/internal/payments"
	"github.com/lumashop/api/internal/platform/config"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
	"github.com/lumashop/api/internal/platform/idempotency"
	"github.com/lumashop/api/internal/platform/jobs"
	"github.com/lumashop/api/internal/platform/mail"
	"github.com/lumashop/api/internal/platform/observability"
	"github.com/lumashop/api/internal/platform/secrets"
	platformstorage "github.com/lumashop/api/internal/platform/storage"
	"github.com/lumashop/api/internal/repositories"
	firestorerepo "github.com/lumashop/api/internal/repositories/firestore"
	"github.com/lumashop/api/internal/services"
)

// Probe that only proves Secret Manager answers; the secret itself need not exist.
const secretProbeReference = "secret://system/healthz"

// infrastructure holds the external clients the services run on. Optional adapters are nil
// when their configuration is absent.
type infrastructure struct {
	metrics     *observability.Metrics
	mail        mail.Sender
	firestore   *pfirestore.Provider
	redis       *redis.Client
	topic       *pubsub.Topic
	idempotency idempotency.Store
	registry    repositories.Registry
	publisher   services.AnalyticsPublisher
	uploads     services.UploadSigner
	payments    services.PaymentMethodVerifier

	closers []func()
}

func (i *infrastructure) onClose(fn func()) { i.closers = append(i.closers, fn) }

func (i *infrastructure) close() {
	for _, fn := range slices.Backward(i.closers) {
		fn()
	}
}

// openInfrastructure always returns a value whose close releases whatever was opened, even
// when it also returns an error.
func openInfrastructure(ctx context.Context, logger *zap.Logger, cfg config.Config, fetcher *secrets.Fetcher) (*infrastructure, error) {
	infra := &infrastructure{
		metrics: observability.NewMetrics(),
		mail:    mail.NewSender(cfg.Mail, logger.Named("mail")),
	}

	var fsOpts []pfirestore.ProviderOption
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
		fsOpts = append(fsOpts, pfirestore.WithClientOptions(option.WithCredentialsFile(file)))
	}
	// Closed through the repository registry.
	infra.firestore = pfirestore.NewProvider(cfg.Firestore, fsOpts...)
	fsClient, err := infra.firestore.Client(ctx)
	if err != nil {
		return infra, fmt.Errorf("firestore: %w", err)
	}

	if err := infra.openAnalytics(ctx, logger, cfg); err != nil {
		return infra, err
	}

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client, err := idempotency.NewRedisClient(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return infra, fmt.Errorf("redis: %w", err)
		}
		infra.redis = client
		infra.onClose(func() { closeLogged(logger, "redis", client.Close) })
		infra.idempotency = idempotency.NewRedisStore(client)
	} else {
		infra.idempotency = idempotency.NewFirestoreStore(fsClient, "")
	}

	health, err := repositories.NewDependencyHealthRepository(infra.healthChecks(fetcher))
	if err != nil {
		return infra, fmt.Errorf("health checks: %w", err)
	}
	registry, err := firestorerepo.NewRegistry(infra.firestore, health)
	if err != nil {
		return infra, fmt.Errorf("repositories: %w", err)
	}
	infra.registry = registry

	if infra.uploads, err = openUploads(cfg.Storage); err != nil {
		return infra, err
	}
	if infra.uploads == nil {
		logger.Warn("storage signer not configured; media uploads disabled")
	}
	if verifier := payments.NewStripeVerifier(payments.StripeConfig{APIKey: cfg.PSP.StripeAPIKey}); verifier != nil {
		infra.payments = verifier
	} else {
		logger.Warn("stripe api key not configured; payment methods are stored without card metadata")
	}
	return infra, nil
}

// openAnalytics connects the event topic. Pub/Sub is optional: a client failure is logged
// and events stay in Firestore only.
func (i *infrastructure) openAnalytics(ctx context.Context, logger *zap.Logger, cfg config.Config) error {
	project := firstNonEmpty(cfg.PubSub.ProjectID, cfg.Firestore.ProjectID)
	if project == "" || cfg.PubSub.AnalyticsTopic == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		logger.Warn("pubsub unavailable; analytics events stay in firestore only", zap.Error(err))
		return nil
	}
	i.onClose(func() { closeLogged(logger, "pubsub", client.Close) })

	topic := client.Topic(cfg.PubSub.AnalyticsTopic)
	i.onClose(topic.Stop)
	publisher, err := jobs.NewPubSubEventPublisher(topic)
	if err != nil {
		return fmt.Errorf("analytics publisher: %w", err)
	}
	i.topic, i.publisher = topic, publisher
	return nil
}

func openUploads(cfg config.StorageConfig) (services.UploadSigner, error) {
	key := strings.TrimSpace(cfg.SignerKey)
	if key == "" || cfg.MediaBucket == "" {
		return nil, nil
	}
	signer, err := platformstorage.NewKeySigner([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("storage signer key: %w", err)
	}
	client, err := platformstorage.NewClient(signer, cfg.MediaBucket, platformstorage.WithPublicBaseURL(cfg.MediaBaseURL))
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}
	return client, nil
}

func (i *infrastructure) healthChecks(fetcher *secrets.Fetcher) []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{
		{Name: "firestore", Timeout: 1500 * time.Millisecond, Check: i.firestore.Ping},
	}
	if client := i.redis; client != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: 500 * time.Millisecond,
			Check:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	}
	if topic := i.topic; topic != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err == nil && !exists {
					err = fmt.Errorf("topic %s does not exist", topic.ID())
				}
				return err
			},
		})
	}
	if fetcher != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretProbeReference)
				if status.Code(err) == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	return checks
}
