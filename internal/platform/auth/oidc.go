package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/lumashop/api/internal/platform/httpx"
)

var (
	ErrJWKSKeyNotFound = errors.New("auth: jwks key not found")
	// ErrJWKSFetchFailed covers transport, status and decode failures of the key endpoint.
	ErrJWKSFetchFailed = errors.New("auth: jwks fetch failed")

	errAudienceMismatch = errors.New("auth: oidc audience mismatch")
	errIssuerMismatch   = errors.New("auth: oidc issuer mismatch")
	errMissingKeyID     = errors.New("auth: token missing kid header")
)

const (
	jwksRefreshInterval = 15 * time.Minute
	jwksFetchTimeout    = 10 * time.Second
)

// JWKSCache holds the signing keys published at url. Keys are refetched after
// jwksRefreshInterval, or immediately when a token names a kid the cache has not seen.
type JWKSCache struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]any
	fetchedAt time.Time
}

type JWKSOption func(*JWKSCache)

func WithJWKSHTTPClient(client *http.Client) JWKSOption {
	return func(c *JWKSCache) {
		if client != nil {
			c.client = client
		}
	}
}

func WithJWKSClock(now func() time.Time) JWKSOption {
	return func(c *JWKSCache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewJWKSCache(url string, opts ...JWKSOption) *JWKSCache {
	c := &JWKSCache{url: url, client: &http.Client{Timeout: jwksFetchTimeout}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := c.keys == nil || c.now().Sub(c.fetchedAt) >= jwksRefreshInterval
	if !stale {
		if key, ok := c.keys[kid]; ok {
			return key, nil
		}
	}
	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.keys, c.fetchedAt = keys, c.now()
	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrJWKSKeyNotFound, kid)
}

func (c *JWKSCache) fetch(ctx context.Context) (map[string]any, error) {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrJWKSFetchFailed, fmt.Sprintf(format, args...))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fail("build request: %v", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fail("%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fail("status %d from %s", resp.StatusCode, c.url)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fail("decode: %v", err)
	}
	keys := make(map[string]any, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID == "" || !jwk.Valid() {
			continue
		}
		keys[jwk.KeyID] = jwk.Key
	}
	if len(keys) == 0 {
		return nil, fail("no usable keys")
	}
	return keys, nil
}

// ServiceIdentity is the workload (scheduler, task queue, pub/sub push) calling /internal.
type ServiceIdentity struct {
	Subject string
	Email   string
	Issuer  string
}

type serviceIdentityKey struct{}

func ServiceIdentityFromContext(ctx context.Context) (*ServiceIdentity, bool) {
	identity, _ := ctx.Value(serviceIdentityKey{}).(*ServiceIdentity)
	return identity, identity != nil
}

type serviceClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type OIDCValidator struct {
	keys   *JWKSCache
	logger *zap.Logger
}

func NewOIDCValidator(keys *JWKSCache, logger *zap.Logger) *OIDCValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OIDCValidator{keys: keys, logger: logger}
}

// verify checks an RS256 token against the key set, audience and, when any are
// configured, the allowed issuers.
func (v *OIDCValidator) verify(ctx context.Context, raw, audience string, issuers []string) (*ServiceIdentity, error) {
	var claims serviceClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if _, err := parser.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKeyID
		}
		return v.keys.Key(ctx, kid)
	}); err != nil {
		return nil, err
	}
	if !claims.VerifyAudience(audience, true) {
		return nil, errAudienceMismatch
	}
	if len(issuers) > 0 && !slices.ContainsFunc(issuers, func(iss string) bool { return strings.TrimSpace(iss) == claims.Issuer }) {
		return nil, errIssuerMismatch
	}
	return &ServiceIdentity{Subject: claims.Subject, Email: claims.Email, Issuer: claims.Issuer}, nil
}

// RequireOIDC guards internal endpoints. Missing configuration and unreachable key
// endpoints answer 503; every other verification failure is a 401.
func (v *OIDCValidator) RequireOIDC(audience string, issuers []string) func(http.Handler) http.Handler {
	audience = strings.TrimSpace(audience)
	unavailable := func(msg string) httpx.Error {
		return httpx.NewError("verification_unavailable", msg, http.StatusServiceUnavailable)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if audience == "" || v.keys == nil {
				httpx.WriteError(ctx, w, unavailable("oidc verification not configured"))
				return
			}
			raw, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(ctx, w, httpx.Unauthorized("unauthenticated", "oidc token missing"))
				return
			}
			identity, err := v.verify(ctx, raw, audience, issuers)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, serviceIdentityKey{}, identity)))
			case errors.Is(err, ErrJWKSFetchFailed):
				v.logger.Error("oidc keys unavailable", zap.Error(err))
				httpx.WriteError(ctx, w, unavailable("oidc keys unavailable"))
			default:
				v.logger.Warn("oidc token rejected", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.Unauthorized("invalid_token", "oidc token verification failed"))
			}
		})
	}
}
