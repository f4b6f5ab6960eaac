package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/lumashop/api/internal/platform/config"
)

func TestRequiredSecretNames(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want []string
	}{
		{name: "local", env: map[string]string{"API_SECURITY_ENVIRONMENT": "local"}, want: []string{}},
		{
			name: "production with hmac keys",
			env: map[string]string{
				"API_SECURITY_ENVIRONMENT":  "Production",
				"API_SECURITY_HMAC_SECRETS": "Payments=secret://psp_webhook, ops= ,payments=secret://dup",
			},
			want: []string{"PSP.StripeAPIKey", "Security.HMAC.Secrets[payments]", "Storage.SignerKey"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := requiredSecretNames(tc.env)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildInfoDefaults(t *testing.T) {
	started := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	got := buildInfo(map[string]string{"API_BUILD_VERSION": " 1.8.0 "}, config.Config{}, started)
	if got.Version != "1.8.0" || got.CommitSHA != "unknown" || got.Environment != "local" || !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected build info %+v", got)
	}
}
