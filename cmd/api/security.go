package main

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/config"
	"github.com/lumashop/api/internal/platform/secrets"
)

// paymentWebhookGuard always guards the webhook group; without a "payments" secret every
// call is rejected.
func paymentWebhookGuard(cfg config.Config) func(http.Handler) http.Handler {
	hmac := cfg.Security.HMAC
	keys := make(map[string]string, len(hmac.Secrets))
	for name, value := range hmac.Secrets {
		if strings.TrimSpace(value) != "" {
			keys[strings.ToLower(name)] = value
		}
	}
	return auth.NewHMACValidator(keys,
		auth.WithHMACHeaders(hmac.SignatureHeader, hmac.TimestampHeader),
		auth.WithHMACClockSkew(hmac.ClockSkew),
	).RequireHMAC("payments")
}

// internalCallerGuard returns nil, leaving /internal unguarded, when no JWKS URL is set.
func internalCallerGuard(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	oidc := cfg.Security.OIDC
	if strings.TrimSpace(oidc.JWKSURL) == "" {
		return nil
	}
	if strings.TrimSpace(oidc.Audience) == "" || len(oidc.Issuers) == 0 {
		logger.Warn("oidc audience or issuers missing; internal routes will reject requests",
			zap.Bool("audience_set", strings.TrimSpace(oidc.Audience) != ""),
			zap.Int("issuers", len(oidc.Issuers)),
		)
	}
	return auth.NewOIDCValidator(auth.NewJWKSCache(oidc.JWKSURL), logger).RequireOIDC(oidc.Audience, oidc.Issuers)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(firstNonEmpty(env["API_SECRET_FALLBACK_FILE"], ".secrets.local")),
		secrets.WithMeter(otel.GetMeterProvider().Meter("github.com/lumashop/api/secrets")),
	}
	if project := firstNonEmpty(env["API_SECRET_DEFAULT_PROJECT_ID"], env["API_FIREBASE_PROJECT_ID"]); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if file := firstNonEmpty(env["API_FIREBASE_CREDENTIALS_FILE"]); file != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(file)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields whose secret references must resolve. Local
// runs may leave payments and media unconfigured; HMAC keys are always required once named.
func requiredSecretNames(env map[string]string) []string {
	required := map[string]struct{}{}
	if environment := strings.ToLower(strings.TrimSpace(env["API_SECURITY_ENVIRONMENT"])); environment != "" && environment != "local" {
		required["PSP.StripeAPIKey"] = struct{}{}
		required["Storage.SignerKey"] = struct{}{}
	}
	for _, entry := range strings.Split(env["API_SECURITY_HMAC_SECRETS"], ",") {
		name, value, ok := strings.Cut(entry, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if ok && name != "" && strings.TrimSpace(value) != "" {
			required[fmt.Sprintf("Security.HMAC.Secrets[%s]", name)] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(required))
}
