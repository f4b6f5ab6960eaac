package config

import (
	"context"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 30 * time.Second
	defaultAnalyticsTopic       = "analytics-events"
	defaultMailPort             = 587
	defaultMailFrom             = "orders@lumashop.local"
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultHMACSignatureHeader  = "X-Signature"
	defaultHMACTimestampHeader  = "X-Signature-Timestamp"
	defaultHMACClockSkew        = 5 * time.Minute
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultOrderNumberSeed      = 1000
	defaultOrderPageSize        = 10
	defaultOrderMaxPageSize     = 100
	defaultMediaUploadExpiry    = 15 * time.Minute
	defaultMediaMaxUploadBytes  = 10 << 20
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	PubSub      PubSubConfig
	Mail        MailConfig
	Redis       RedisConfig
	PSP         PSPConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
	Orders      OrderConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig describes where uploaded media lives and how it is served.
type StorageConfig struct {
	MediaBucket         string
	MediaBaseURL        string
	MediaUploadExpiry   time.Duration
	MediaMaxUploadBytes int64
	SignerKey           string
}

// PubSubConfig configures the analytics sink.
type PubSubConfig struct {
	ProjectID      string
	AnalyticsTopic string
}

// MailConfig configures the outbound SMTP relay. Empty Host disables delivery.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// RedisConfig enables the Redis idempotency store when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PSPConfig collects secrets for payment providers.
type PSPConfig struct {
	StripeAPIKey string
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
	HMAC        HMACConfig
}

// OIDCConfig controls Google-signed token verification for scheduler callbacks.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// HMACConfig captures webhook signing expectations.
type HMACConfig struct {
	Secrets         map[string]string
	SignatureHeader string
	TimestampHeader string
	ClockSkew       time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// OrderConfig tunes order numbering and listing defaults.
type OrderConfig struct {
	NumberSeed   int64
	PageSize     int
	MaxPageSize  int
	NotifyAdmins bool
}

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

func defaultLoaderOptions(opts []Option) loaderOptions {
	o := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEnvFile overrides the dotenv path. An empty path skips dotenv.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects values that win over the process environment and dotenv.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver resolves secret:// and sm:// values.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets names secret fields, e.g. "PSP.StripeAPIKey", that must resolve non-empty.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// Load reads API_* settings with precedence explicit map > process env > dotenv > defaults,
// resolves secret references and validates the result. Malformed numbers, durations and
// booleans are reported as validation failures instead of silently using the default.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := defaultLoaderOptions(opts)
	env, err := newEnvReader(o)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:    env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: env.duration("API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			MediaBucket:         env.str("API_STORAGE_MEDIA_BUCKET", ""),
			MediaBaseURL:        env.str("API_STORAGE_MEDIA_BASE_URL", ""),
			MediaUploadExpiry:   env.duration("API_STORAGE_MEDIA_UPLOAD_EXPIRY", defaultMediaUploadExpiry),
			MediaMaxUploadBytes: int64(env.integer("API_STORAGE_MEDIA_MAX_BYTES", defaultMediaMaxUploadBytes)),
			SignerKey:           env.str("API_STORAGE_SIGNER_KEY", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:      env.str("API_PUBSUB_PROJECT_ID", ""),
			AnalyticsTopic: env.str("API_PUBSUB_ANALYTICS_TOPIC", defaultAnalyticsTopic),
		},
		Mail: MailConfig{
			Host:       env.str("API_MAIL_SMTP_HOST", ""),
			Port:       env.integer("API_MAIL_SMTP_PORT", defaultMailPort),
			Username:   env.str("API_MAIL_SMTP_USERNAME", ""),
			Password:   env.str("API_MAIL_SMTP_PASSWORD", ""),
			From:       env.str("API_MAIL_FROM", defaultMailFrom),
			AdminEmail: env.str("API_MAIL_ADMIN_EMAIL", ""),
		},
		Redis: RedisConfig{
			Addr:     env.str("API_REDIS_ADDR", ""),
			Password: env.str("API_REDIS_PASSWORD", ""),
			DB:       env.integer("API_REDIS_DB", 0),
		},
		PSP: PSPConfig{
			StripeAPIKey: env.str("API_PSP_STRIPE_API_KEY", ""),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(env.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:  env.str("API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: env.str("API_SECURITY_OIDC_AUDIENCE", ""),
				Issuers:  env.list("API_SECURITY_OIDC_ISSUERS", defaultSecurityIssuer),
			},
			HMAC: HMACConfig{
				Secrets:         env.pairs("API_SECURITY_HMAC_SECRETS"),
				SignatureHeader: env.str("API_SECURITY_HMAC_HEADER_SIGNATURE", defaultHMACSignatureHeader),
				TimestampHeader: env.str("API_SECURITY_HMAC_HEADER_TIMESTAMP", defaultHMACTimestampHeader),
				ClockSkew:       env.duration("API_SECURITY_HMAC_CLOCK_SKEW", defaultHMACClockSkew),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           env.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Orders: OrderConfig{
			NumberSeed:   int64(env.integer("API_ORDERS_NUMBER_SEED", defaultOrderNumberSeed)),
			PageSize:     env.integer("API_ORDERS_PAGE_SIZE", defaultOrderPageSize),
			MaxPageSize:  env.integer("API_ORDERS_MAX_PAGE_SIZE", defaultOrderMaxPageSize),
			NotifyAdmins: env.flag("API_ORDERS_NOTIFY_ADMINS", true),
		},
	}
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	resolved, err := resolveSecrets(ctx, &cfg, o.secret)
	if err != nil {
		return Config{}, err
	}
	if invalid := append(env.invalid, cfg.validate()...); len(invalid) > 0 {
		return Config{}, &ValidationError{fields: invalid}
	}
	if missing := findMissingSecrets(o.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

// ValidationError lists fields that are missing, out of range or malformed.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return "config: missing or invalid [" + strings.Join(e.fields, ", ") + "]"
}

func (e *ValidationError) Fields() []string { return append([]string(nil), e.fields...) }

func (cfg Config) validate() []string {
	checks := []struct {
		field string
		bad   bool
	}{
		{"Server.Port", cfg.Server.Port == ""},
		{"Firebase.ProjectID", cfg.Firebase.ProjectID == ""},
		{"Firestore.ProjectID", cfg.Firestore.ProjectID == ""},
		{"Storage.MediaBucket", cfg.Storage.MediaBucket == ""},
		{"Idempotency.Header", strings.TrimSpace(cfg.Idempotency.Header) == ""},
		{"Idempotency.TTL", cfg.Idempotency.TTL <= 0},
		{"Idempotency.CleanupInterval", cfg.Idempotency.CleanupInterval <= 0},
		{"Idempotency.CleanupBatchSize", cfg.Idempotency.CleanupBatchSize <= 0},
		{"Orders.NumberSeed", cfg.Orders.NumberSeed < 0},
		{"Orders.PageSize", cfg.Orders.PageSize <= 0},
		{"Orders.MaxPageSize", cfg.Orders.MaxPageSize < cfg.Orders.PageSize},
		{"Mail.Port", cfg.Mail.Host != "" && cfg.Mail.Port <= 0},
	}
	var failed []string
	for _, c := range checks {
		if c.bad {
			failed = append(failed, c.field)
		}
	}
	return failed
}
