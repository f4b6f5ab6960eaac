package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
}

func (f *fakeSigner) Email() string { return f.email }

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

func TestSignUpload(t *testing.T) {
	signer := &fakeSigner{email: "media@lumashop.iam.gserviceaccount.com"}
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	client, err := NewClient(signer, "lumashop-media", WithClock(func() time.Time { return now }), WithPublicBaseURL("https://cdn.lumashop.test/"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	res, err := client.SignUpload(context.Background(), "media/products/01HX.png", UploadOptions{
		ContentType:  "image/PNG",
		AllowedTypes: ImageTypes,
		Size:         2048,
		MaxSize:      1 << 20,
		ExpiresIn:    10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("sign upload: %v", err)
	}
	if res.Method != "PUT" {
		t.Fatalf("expected PUT, got %s", res.Method)
	}
	if !res.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}
	if res.Headers["Content-Type"] != "image/png" || res.Headers["x-goog-content-length-range"] != "0,1048576" {
		t.Fatalf("unexpected headers %v", res.Headers)
	}
	if res.PublicURL != "https://cdn.lumashop.test/media/products/01HX.png" {
		t.Fatalf("unexpected public url %s", res.PublicURL)
	}
	parsed, err := url.Parse(res.UploadURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.RawQuery, "X-Goog-Signature=") {
		t.Fatalf("expected signature in query: %s", parsed.RawQuery)
	}
	if len(signer.payloads) != 1 {
		t.Fatalf("expected signer to run once, got %d", len(signer.payloads))
	}
}

func TestSignUploadRejections(t *testing.T) {
	client, err := NewClient(&fakeSigner{email: "media@example.com"}, "bucket")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	if _, err := client.SignUpload(ctx, "media/x.pdf", UploadOptions{ContentType: "application/pdf", AllowedTypes: ImageTypes}); !errors.Is(err, ErrContentTypeDenied) {
		t.Fatalf("expected content type rejection, got %v", err)
	}
	if _, err := client.SignUpload(ctx, "media/x.png", UploadOptions{ContentType: "image/png", Size: 11, MaxSize: 10}); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected size rejection, got %v", err)
	}
	if _, err := client.SignUpload(ctx, "media/x.png", UploadOptions{ContentType: "image/png", AllowedTypes: []string{"image/*"}}); err != nil {
		t.Fatalf("wildcard type should pass: %v", err)
	}
}

func TestNewClientRequiresSigner(t *testing.T) {
	if _, err := NewClient(nil, "bucket"); err == nil {
		t.Fatal("expected error without signer")
	}
	if _, err := NewClient(&fakeSigner{email: "a@b"}, " "); err == nil {
		t.Fatal("expected error without bucket")
	}
	client, _ := NewClient(&fakeSigner{email: "a@b"}, "bucket")
	if got := client.PublicURL("media/banners/a b.png"); got != "https://storage.googleapis.com/bucket/media/banners/a%20b.png" {
		t.Fatalf("unexpected default public url %s", got)
	}
}

func TestKeySigner(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	raw, _ := json.Marshal(map[string]string{
		"client_email": "media@lumashop.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})

	signer, err := NewKeySigner(raw)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	if signer.Email() != "media@lumashop.iam.gserviceaccount.com" {
		t.Fatalf("unexpected email %s", signer.Email())
	}
	sig, err := signer.SignBytes(context.Background(), []byte("payload"))
	if err != nil || len(sig) != 256 {
		t.Fatalf("unexpected signature len=%d err=%v", len(sig), err)
	}

	if _, err := NewKeySigner([]byte(`{"client_email":"x@y"}`)); err == nil {
		t.Fatal("expected error for missing private key")
	}
}
