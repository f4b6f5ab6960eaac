package secrets

import (
	"strings"
	"testing"
)

func TestReferenceResourceName(t *testing.T) {
	cases := []struct {
		raw, project, want string
		ok                 bool
	}{
		{"secret://stripe_api_key", "shop", "projects/shop/secrets/stripe_api_key/versions/latest", true},
		{"secret://stripe_api_key?version=7", "shop", "projects/shop/secrets/stripe_api_key/versions/7", true},
		{"secret://smtp?project=ops", "", "projects/ops/secrets/smtp/versions/latest", true},
		{"secret://smtp", "", "", false},
	}
	for _, tc := range cases {
		ref, err := parseReference(tc.raw)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.raw, err)
		}
		got, ok := ref.resourceName(tc.project)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: got (%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}

	for _, bad := range []string{"", "  ", "sm://x", "secret://", "https://vault/x"} {
		if _, err := parseReference(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestParseFallback(t *testing.T) {
	input := `
# comment
secret://redis_password = local-redis
secret://webhook_secret=whsec_a=b
not a reference=1
secret://broken
`
	got, err := parseFallback(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseFallback: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got["secret://redis_password"] != "local-redis" || got["secret://webhook_secret"] != "whsec_a=b" {
		t.Fatalf("unexpected values %v", got)
	}
}
