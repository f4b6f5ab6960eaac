// Package firestoretest starts a Firestore emulator for integration tests.
package firestoretest

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/lumashop/api/internal/platform/config"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const (
	image        = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
	readyTimeout = 30 * time.Second
)

// Endpoint returns a reachable emulator address. An emulator already named by
// FIRESTORE_EMULATOR_HOST is reused; otherwise a throwaway docker container is started and
// stopped when the test ends. The test is skipped in -short mode or without docker.
func Endpoint(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("firestore emulator tests skipped in short mode")
	}
	if host := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST")); host != "" {
		return host
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	if err := docker(5*time.Second, "info"); err != nil {
		t.Skipf("docker daemon not available: %v", err)
	}

	port := freePort(t)
	out, err := exec.Command("docker", "run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port), image,
		"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet",
	).CombinedOutput()
	if err != nil {
		t.Fatalf("start firestore emulator: %v: %s", err, out)
	}
	container := strings.TrimSpace(string(out))
	if container == "" {
		t.Fatal("docker run returned no container id")
	}
	t.Cleanup(func() { _ = docker(10*time.Second, "stop", container) })

	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	awaitListener(t, endpoint)
	return endpoint
}

// NewProvider returns a provider bound to the emulator and closed with the test.
func NewProvider(t testing.TB, projectID string) *pfirestore.Provider {
	t.Helper()
	provider := pfirestore.NewProvider(config.FirestoreConfig{ProjectID: projectID, EmulatorHost: Endpoint(t)})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func docker(timeout time.Duration, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return exec.CommandContext(ctx, "docker", args...).Run()
}

func freePort(t testing.TB) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("allocate port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func awaitListener(t testing.TB, endpoint string) {
	t.Helper()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(readyTimeout)
	for {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		select {
		case <-deadline:
			t.Fatalf("emulator at %s not ready after %s: %v", endpoint, readyTimeout, err)
		case <-ticker.C:
		}
	}
}
