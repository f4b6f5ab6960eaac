package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumashop/api/internal/platform/config"
	"github.com/lumashop/api/internal/platform/mail"
	"github.com/lumashop/api/internal/platform/observability"
	"github.com/lumashop/api/internal/repositories"
	"github.com/lumashop/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders        services.OrderService
	Counters      services.CounterService
	Cart          services.CartService
	Catalog       services.CatalogService
	Promotions    services.PromotionService
	Reviews       services.ReviewService
	Users         services.UserService
	Wishlist      services.WishlistService
	Analytics     services.AnalyticsService
	Media         services.MediaService
	Notifications services.NotificationService
	System        services.SystemService
}

// Infrastructure carries the external adapters services depend on. A nil Uploads or
// PaymentVerifier disables signed uploads or saved cards; a nil Mail skips order emails.
type Infrastructure struct {
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	Mail            mail.Sender
	Uploads         services.UploadSigner
	Publisher       services.AnalyticsPublisher
	PaymentVerifier services.PaymentMethodVerifier
	Build           services.BuildInfo
	// OptionalDependencies are health probes that report but never fail readiness.
	OptionalDependencies []string
	Clock                func() time.Time
	// SideEffects runs post-commit order and analytics work. Nil detaches it untracked.
	SideEffects func(func())
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Tests can supply in-memory registries.
func NewContainer(cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	svc, err := buildServices(cfg, reg, infra)
	if err != nil {
		return nil, err
	}
	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Start runs one-off initialisation that must complete before serving traffic.
func (c *Container) Start(ctx context.Context) error {
	if c == nil || c.Services.Counters == nil {
		return nil
	}
	if err := c.Services.Counters.EnsureOrderSequence(ctx); err != nil {
		return fmt.Errorf("ensure order sequence: %w", err)
	}
	return nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, infra Infrastructure) (Services, error) {
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}
	events := func(name string) func(context.Context, string, map[string]any) {
		return observability.EventLogger(logger.Named(name))
	}

	var svc Services
	var err error

	svc.Analytics, err = services.NewAnalyticsService(services.AnalyticsServiceDeps{
		Events:      reg.Analytics(),
		Publisher:   infra.Publisher,
		SideEffects: infra.SideEffects,
		Clock:       clock,
		Logger:      events("analytics"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build analytics service: %w", err)
	}

	svc.Counters, err = services.NewCounterService(services.CounterServiceDeps{
		Repository: reg.Counters(),
		OrderSeed:  cfg.Orders.NumberSeed,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build counter service: %w", err)
	}

	if infra.Mail != nil {
		adminEmail := ""
		if cfg.Orders.NotifyAdmins {
			adminEmail = cfg.Mail.AdminEmail
		}
		svc.Notifications, err = services.NewNotificationService(services.NotificationServiceDeps{
			Sender:     infra.Mail,
			Users:      reg.Users(),
			AdminEmail: adminEmail,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build notification service: %w", err)
		}
	}

	orderDeps := services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Carts:       reg.Carts(),
		Counters:    svc.Counters,
		UnitOfWork:  reg,
		Notifier:    svc.Notifications,
		Analytics:   svc.Analytics,
		SideEffects: infra.SideEffects,
		Clock:       clock,
		Logger:      events("orders"),
		PageSize:    cfg.Orders.PageSize,
		MaxPageSize: cfg.Orders.MaxPageSize,
	}
	if infra.Metrics != nil {
		orderDeps.Metrics = infra.Metrics
	}
	svc.Orders, err = services.NewOrderService(orderDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	svc.Cart, err = services.NewCartService(services.CartServiceDeps{
		Carts:     reg.Carts(),
		Products:  reg.Products(),
		Analytics: svc.Analytics,
		Clock:     clock,
		Logger:    events("cart"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	svc.Catalog, err = services.NewCatalogService(services.CatalogServiceDeps{
		Categories: reg.Categories(),
		Products:   reg.Products(),
		Sales:      reg.Sales(),
		Analytics:  svc.Analytics,
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}

	svc.Promotions, err = services.NewPromotionService(services.PromotionServiceDeps{
		Sales:    reg.Sales(),
		Products: reg.Products(),
		Clock:    clock,
		Logger:   events("promotions"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build promotion service: %w", err)
	}

	svc.Reviews, err = services.NewReviewService(services.ReviewServiceDeps{
		Reviews:    reg.Reviews(),
		Products:   reg.Products(),
		UnitOfWork: reg,
		Clock:      clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}

	svc.Users, err = services.NewUserService(services.UserServiceDeps{
		Users:           reg.Users(),
		Addresses:       reg.Addresses(),
		PaymentMethods:  reg.PaymentMethods(),
		PaymentVerifier: infra.PaymentVerifier,
		UnitOfWork:      reg,
		Clock:           clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}

	svc.Wishlist, err = services.NewWishlistService(services.WishlistServiceDeps{
		Wishlist: reg.Wishlist(),
		Products: reg.Products(),
		Clock:    clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wishlist service: %w", err)
	}

	svc.Media, err = services.NewMediaService(services.MediaServiceDeps{
		Signer:         infra.Uploads,
		Banners:        reg.Banners(),
		MaxUploadBytes: cfg.Storage.MediaMaxUploadBytes,
		UploadExpiry:   cfg.Storage.MediaUploadExpiry,
		Clock:          clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build media service: %w", err)
	}

	if health := reg.Health(); health != nil {
		svc.System, err = services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: health,
			Clock:            clock,
			Build:            infra.Build,
			Optional:         infra.OptionalDependencies,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
	}

	return svc, nil
}
