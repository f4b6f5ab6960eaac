package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/services"
)

type stubSystemService struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubSystemService) Health(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

type readyBody struct {
	Status string `json:"status"`
	Checks map[string]struct {
		Status    string `json:"status"`
		LatencyMS int64  `json:"latencyMs"`
	} `json:"checks"`
	Details []string `json:"details"`
}

func TestHealthzReportsBuildAndUptime(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "2.4.0", CommitSHA: "9f1c2e", Environment: "staging", StartedAt: started}),
		WithHealthClock(func() time.Time { return started.Add(90 * time.Second) }),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	var got healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != "2.4.0" || got.CommitSHA != "9f1c2e" || got.Environment != "staging" || got.Uptime != "1m30s" {
		t.Fatalf("unexpected liveness body %+v", got)
	}
}

func TestReadyzStatusMapping(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	cases := []struct {
		name        string
		report      domain.SystemHealthReport
		wantCode    int
		wantDetails []string
	}{
		{
			name: "all ok",
			report: domain.SystemHealthReport{Status: domain.HealthStatusOK, GeneratedAt: at, Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
			}},
			wantCode: http.StatusOK,
		},
		{
			name: "optional pubsub down still ready",
			report: domain.SystemHealthReport{Status: domain.HealthStatusOK, GeneratedAt: at, Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusError, Error: "topic missing"},
			}},
			wantCode:    http.StatusOK,
			wantDetails: []string{"pubsub: topic missing"},
		},
		{
			name: "redis degraded",
			report: domain.SystemHealthReport{Status: domain.HealthStatusDegraded, Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"redis":     {Status: domain.HealthStatusDegraded},
			}},
			wantCode:    http.StatusServiceUnavailable,
			wantDetails: []string{"redis: degraded"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: tc.report}), WithHealthClock(func() time.Time { return at }))
			rr := httptest.NewRecorder()
			h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
			var body readyBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tc.report.Status {
				t.Fatalf("status %q, want %q", body.Status, tc.report.Status)
			}
			if len(body.Details) != 0 || len(tc.wantDetails) != 0 {
				if !reflect.DeepEqual(body.Details, tc.wantDetails) {
					t.Fatalf("details %v, want %v", body.Details, tc.wantDetails)
				}
			}
			if want := tc.report.Checks["firestore"].Latency.Milliseconds(); body.Checks["firestore"].LatencyMS != want {
				t.Fatalf("firestore latency %d, want %d", body.Checks["firestore"].LatencyMS, want)
			}
		})
	}
}

func TestReadyzWhenProbesFail(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("collect: context deadline exceeded")}))
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !json.Valid(rr.Body.Bytes()) {
		t.Fatalf("expected JSON error envelope, got %s", rr.Body.String())
	}
}

func TestReadyzWithoutSystemServiceFallsBackToLiveness(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHealthHandlers().Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
