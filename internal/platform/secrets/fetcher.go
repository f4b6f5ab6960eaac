package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const instrumentationName = "github.com/lumashop/api/internal/platform/secrets"

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (secretManagerClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Transient or credential failures that send Resolve to the fallback file. Anything else,
// NotFound in particular, is returned to the caller.
var fallbackCodes = map[codes.Code]bool{
	codes.PermissionDenied: true,
	codes.Unauthenticated:  true,
	codes.Unavailable:      true,
	codes.DeadlineExceeded: true,
}

// Fetcher resolves secret:// references against Secret Manager with an in-process cache and
// a local file for development machines without cloud credentials.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	clientOpts []option.ClientOption
	project    string
	logger     *zap.Logger
	meter      metric.Meter
	latency    metric.Float64Histogram
	retry      gax.CallOption

	fallbackPath string
	fallback     func() map[string]string

	mu    sync.RWMutex
	cache map[string]string
}

type Option func(*Fetcher)

func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDefaultProject names the project for references without ?project=.
func WithDefaultProject(projectID string) Option {
	return func(f *Fetcher) { f.project = strings.TrimSpace(projectID) }
}

func WithFallbackFile(path string) Option {
	return func(f *Fetcher) { f.fallbackPath = strings.TrimSpace(path) }
}

func WithSecretManagerClient(client secretManagerClient) Option {
	return func(f *Fetcher) { f.client = client }
}

func WithClientOptions(opts ...option.ClientOption) Option {
	return func(f *Fetcher) { f.clientOpts = append(f.clientOpts, opts...) }
}

func WithMeter(m metric.Meter) Option {
	return func(f *Fetcher) { f.meter = m }
}

// NewFetcher never fails for lack of credentials: without a Secret Manager client it serves
// the fallback file alone.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		logger:       zap.NewNop(),
		fallbackPath: ".secrets.local",
		cache:        map[string]string{},
		retry: gax.WithRetry(func() gax.Retryer {
			return gax.OnCodes([]codes.Code{codes.Unavailable, codes.DeadlineExceeded}, gax.Backoff{
				Initial:    100 * time.Millisecond,
				Max:        2 * time.Second,
				Multiplier: 2,
			})
		}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.fallback = sync.OnceValue(func() map[string]string { return loadFallback(f.fallbackPath, f.logger) })

	if f.meter == nil {
		f.meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	latency, err := f.meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Secret resolution latency by source"),
	)
	if err != nil {
		f.logger.Warn("secrets: latency histogram not registered", zap.Error(err))
	}
	f.latency = latency

	if f.client == nil {
		client, err := secretManagerClientFactory(ctx, f.clientOpts...)
		if err != nil {
			f.logger.Warn("secrets: no secret manager client, serving fallback file only", zap.Error(err))
			return f, nil
		}
		f.client, f.ownsClient = client, true
	}
	return f, nil
}

func (f *Fetcher) Close() error {
	if !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret lets a Fetcher stand in for config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f.Resolve(ctx, ref)
}

// Resolve looks ref up in the cache, then Secret Manager, then the fallback file.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (string, error) {
	start := time.Now()
	ref, err := parseReference(raw)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	value, ok := f.cache[ref.cacheKey()]
	f.mu.RUnlock()
	if ok {
		f.observe(ctx, start, "cache")
		return value, nil
	}

	value, source, err := f.lookup(ctx, ref)
	f.observe(ctx, start, source)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.cache[ref.cacheKey()] = value
	f.mu.Unlock()
	return value, nil
}

func (f *Fetcher) lookup(ctx context.Context, ref reference) (string, string, error) {
	if name, ok := ref.resourceName(f.project); ok && f.client != nil {
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name}, f.retry)
		switch {
		case err == nil && resp.GetPayload() != nil:
			return string(resp.GetPayload().GetData()), "remote", nil
		case err == nil:
			return "", "error", fmt.Errorf("secrets: %s has an empty payload", name)
		case !fallbackCodes[status.Code(err)]:
			return "", "error", fmt.Errorf("secrets: fetch %s: %w", ref, err)
		}
		f.logger.Debug("secrets: using fallback file", zap.Stringer("ref", ref), zap.Error(err))
	}
	if value, ok := f.fallback()[ref.String()]; ok {
		return value, "fallback", nil
	}
	return "", "error", fmt.Errorf("secrets: %s not available from secret manager or %s", ref, f.fallbackPath)
}

// Invalidate forgets every cached version of ref.
func (f *Fetcher) Invalidate(raw string) {
	ref, err := parseReference(raw)
	if err != nil {
		return
	}
	prefix := ref.String() + "@"
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.cache {
		if strings.HasPrefix(key, prefix) {
			delete(f.cache, key)
		}
	}
}

func (f *Fetcher) observe(ctx context.Context, start time.Time, source string) {
	if f.latency == nil {
		return
	}
	ms := float64(time.Since(start).Microseconds()) / 1000
	f.latency.Record(ctx, ms, metric.WithAttributes(attribute.String("source", source)))
}
