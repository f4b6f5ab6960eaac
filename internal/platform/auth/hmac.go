package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumashop/api/internal/platform/httpx"
)

const (
	defaultSignatureHeader = "X-Signature"
	defaultTimestampHeader = "X-Signature-Timestamp"
	defaultClockSkew       = 5 * time.Minute
	maxSignedBodyBytes     = 1 << 20
)

// HMACValidator verifies webhook callbacks signed as
// hex(HMAC-SHA256(secret, timestamp + "." + body)).
type HMACValidator struct {
	secrets         map[string]string
	signatureHeader string
	timestampHeader string
	clockSkew       time.Duration
	now             func() time.Time
}

// HMACOption customises the validator.
type HMACOption func(*HMACValidator)

// WithHMACHeaders overrides the signature and timestamp header names.
func WithHMACHeaders(signature, timestamp string) HMACOption {
	return func(v *HMACValidator) {
		if s := strings.TrimSpace(signature); s != "" {
			v.signatureHeader = s
		}
		if s := strings.TrimSpace(timestamp); s != "" {
			v.timestampHeader = s
		}
	}
}

// WithHMACClockSkew sets the accepted distance between the signed timestamp and now.
func WithHMACClockSkew(d time.Duration) HMACOption {
	return func(v *HMACValidator) {
		if d > 0 {
			v.clockSkew = d
		}
	}
}

// WithHMACClock injects a time source.
func WithHMACClock(now func() time.Time) HMACOption {
	return func(v *HMACValidator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewHMACValidator builds a validator over named secrets.
func NewHMACValidator(secrets map[string]string, opts ...HMACOption) *HMACValidator {
	v := &HMACValidator{
		secrets:         secrets,
		signatureHeader: defaultSignatureHeader,
		timestampHeader: defaultTimestampHeader,
		clockSkew:       defaultClockSkew,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// RequireHMAC rejects requests whose signature does not match the secret registered under name.
// The body is restored for downstream handlers.
func (v *HMACValidator) RequireHMAC(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			secret := strings.TrimSpace(v.secrets[name])
			if secret == "" {
				httpx.WriteError(ctx, w, httpx.NewError("signature_unavailable", "webhook verification unavailable", http.StatusServiceUnavailable))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
			if err != nil {
				httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "unable to read body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			timestamp := strings.TrimSpace(r.Header.Get(v.timestampHeader))
			if err := v.checkTimestamp(timestamp); err != nil {
				httpx.WriteError(ctx, w, httpx.Unauthorized("invalid_signature", err.Error()))
				return
			}
			provided, err := hex.DecodeString(strings.TrimSpace(r.Header.Get(v.signatureHeader)))
			if err != nil || len(provided) == 0 {
				httpx.WriteError(ctx, w, httpx.Unauthorized("invalid_signature", "signature missing or malformed"))
				return
			}
			if !hmac.Equal(provided, Sign([]byte(secret), timestamp, body)) {
				httpx.WriteError(ctx, w, httpx.Unauthorized("invalid_signature", "signature mismatch"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (v *HMACValidator) checkTimestamp(value string) error {
	if value == "" {
		return errors.New("signature timestamp missing")
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return errors.New("signature timestamp malformed")
	}
	delta := v.now().Sub(time.Unix(seconds, 0))
	if delta < 0 {
		delta = -delta
	}
	if delta > v.clockSkew {
		return errors.New("signature timestamp outside allowed window")
	}
	return nil
}

// Sign computes the raw signature for body at timestamp (unix seconds).
func Sign(secret []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}
