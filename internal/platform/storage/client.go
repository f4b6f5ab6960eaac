package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const defaultUploadExpiry = 15 * time.Minute

var (
	ErrContentTypeDenied = errors.New("storage: content type not allowed")
	ErrTooLarge          = errors.New("storage: declared size exceeds limit")
	errNoSigner          = errors.New("storage: signer is required")
)

// Client issues V4 signed upload URLs for the media bucket.
type Client struct {
	signer  Signer
	bucket  string
	baseURL string
	now     func() time.Time
}

// ClientOption customises the client.
type ClientOption func(*Client)

// WithClock injects a time source.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithPublicBaseURL serves objects from a CDN host instead of storage.googleapis.com.
func WithPublicBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// NewClient builds a signed URL client for bucket.
func NewClient(signer Signer, bucket string, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	c := &Client{signer: signer, bucket: bucket, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.baseURL == "" {
		c.baseURL = "https://storage.googleapis.com/" + bucket
	}
	return c, nil
}

// UploadOptions constrain what the browser may PUT.
type UploadOptions struct {
	ContentType  string
	AllowedTypes []string
	Size         int64
	MaxSize      int64
	ExpiresIn    time.Duration
}

// SignedUpload is handed to the admin UI, which PUTs the file with Headers.
type SignedUpload struct {
	UploadURL string
	PublicURL string
	Object    string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignUpload signs a PUT for object.
func (c *Client) SignUpload(ctx context.Context, object string, opts UploadOptions) (SignedUpload, error) {
	if c == nil {
		return SignedUpload{}, errNoSigner
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedUpload{}, errors.New("storage: object is required")
	}
	contentType := strings.ToLower(strings.TrimSpace(opts.ContentType))
	if contentType == "" || (len(opts.AllowedTypes) > 0 && !typeAllowed(contentType, opts.AllowedTypes)) {
		return SignedUpload{}, fmt.Errorf("%w: %q", ErrContentTypeDenied, opts.ContentType)
	}
	if opts.MaxSize > 0 && opts.Size > opts.MaxSize {
		return SignedUpload{}, fmt.Errorf("%w: %d > %d", ErrTooLarge, opts.Size, opts.MaxSize)
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	expiresAt := c.now().UTC().Add(expiry)

	headers := map[string]string{"Content-Type": contentType}
	var extra []string
	if opts.MaxSize > 0 {
		rangeValue := fmt.Sprintf("0,%d", opts.MaxSize)
		extra = append(extra, "x-goog-content-length-range:"+rangeValue)
		headers["x-goog-content-length-range"] = rangeValue
	}

	signed, err := gcs.SignedURL(c.bucket, object, &gcs.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         gcs.SigningSchemeV4,
		Method:         http.MethodPut,
		ContentType:    contentType,
		Headers:        extra,
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return SignedUpload{}, fmt.Errorf("storage: sign upload url: %w", err)
	}
	return SignedUpload{
		UploadURL: signed,
		PublicURL: c.PublicURL(object),
		Object:    object,
		Method:    http.MethodPut,
		ExpiresAt: expiresAt,
		Headers:   headers,
	}, nil
}

// PublicURL is where the object is served once uploaded.
func (c *Client) PublicURL(object string) string {
	segments := strings.Split(strings.TrimLeft(object, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(segments, "/")
}

func typeAllowed(contentType string, allowed []string) bool {
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		switch {
		case candidate == "":
		case candidate == "*" || candidate == contentType:
			return true
		case strings.HasSuffix(candidate, "/*") && strings.HasPrefix(contentType, strings.TrimSuffix(candidate, "*")):
			return true
		}
	}
	return false
}
