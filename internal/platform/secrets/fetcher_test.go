package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const stripeLatest = "projects/shop/secrets/stripe_api_key/versions/latest"

func writeFallback(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}
	return path
}

func newTestFetcher(t *testing.T, client *fakeSecretClient, opts ...Option) *Fetcher {
	t.Helper()
	opts = append([]Option{WithSecretManagerClient(client), WithDefaultProject("shop")}, opts...)
	fetcher, err := NewFetcher(context.Background(), opts...)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	t.Cleanup(func() { _ = fetcher.Close() })
	return fetcher
}

func TestResolveSources(t *testing.T) {
	fallback := "# local overrides\nsecret://stripe_api_key=sk_local\n"
	cases := []struct {
		name      string
		remote    map[string]string
		remoteErr map[string]error
		ref       string
		want      string
		wantErr   bool
	}{
		{
			name:   "remote value",
			remote: map[string]string{stripeLatest: "sk_live"},
			ref:    "secret://stripe_api_key",
			want:   "sk_live",
		},
		{
			name:   "pinned version in another project",
			remote: map[string]string{"projects/ops/secrets/smtp_password/versions/3": "hunter2"},
			ref:    "secret://smtp_password?version=3&project=ops",
			want:   "hunter2",
		},
		{
			name:      "permission denied falls back to local file",
			remoteErr: map[string]error{stripeLatest: status.Error(codes.PermissionDenied, "denied")},
			ref:       "secret://stripe_api_key",
			want:      "sk_local",
		},
		{
			name:      "not found is authoritative",
			remoteErr: map[string]error{stripeLatest: status.Error(codes.NotFound, "missing")},
			ref:       "secret://stripe_api_key",
			wantErr:   true,
		},
		{
			name:    "malformed reference",
			ref:     "secret://",
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newFakeSecretClient()
			for k, v := range tc.remote {
				client.values[k] = v
			}
			for k, v := range tc.remoteErr {
				client.errors[k] = v
			}
			fetcher := newTestFetcher(t, client, WithFallbackFile(writeFallback(t, fallback)))
			got, err := fetcher.Resolve(context.Background(), tc.ref)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Resolve(%s) = %q, want %q", tc.ref, got, tc.want)
			}
		})
	}
}

func TestResolveCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values[stripeLatest] = "sk_first"
	fetcher := newTestFetcher(t, client)

	for i := 0; i < 3; i++ {
		if got, err := fetcher.ResolveSecret(ctx, "secret://stripe_api_key"); err != nil || got != "sk_first" {
			t.Fatalf("resolve %d: %q, %v", i, got, err)
		}
	}
	if calls := client.callCount(stripeLatest); calls != 1 {
		t.Fatalf("expected one remote call, got %d", calls)
	}

	client.set(stripeLatest, "sk_rotated")
	fetcher.Invalidate("secret://stripe_api_key")
	if got, _ := fetcher.Resolve(ctx, "secret://stripe_api_key"); got != "sk_rotated" {
		t.Fatalf("expected rotated key after invalidate, got %q", got)
	}
	if calls := client.callCount(stripeLatest); calls != 2 {
		t.Fatalf("expected a refetch, got %d calls", calls)
	}
}

func TestNewFetcherWithoutCredentialsServesFallbackOnly(t *testing.T) {
	original := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (secretManagerClient, error) {
		return nil, errors.New("no application default credentials")
	}
	t.Cleanup(func() { secretManagerClientFactory = original })

	fetcher, err := NewFetcher(context.Background(),
		WithDefaultProject("shop"),
		WithFallbackFile(writeFallback(t, "secret://redis_password=local-redis\n")),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	if got, err := fetcher.Resolve(context.Background(), "secret://redis_password"); err != nil || got != "local-redis" {
		t.Fatalf("expected fallback value, got %q (%v)", got, err)
	}
	if _, err := fetcher.Resolve(context.Background(), "secret://storage_signer_key"); err == nil {
		t.Fatalf("expected error for a secret absent from the fallback file")
	}
}

type fakeSecretClient struct {
	mu     sync.Mutex
	values map[string]string
	errors map[string]error
	calls  map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values: map[string]string{},
		errors: map[string]error{},
		calls:  map[string]int{},
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.GetName()
	f.calls[name]++
	if err := f.errors[name]; err != nil {
		return nil, err
	}
	value, ok := f.values[name]
	if !ok {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)}}, nil
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
}

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}
