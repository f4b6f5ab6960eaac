package storage

import (
	"errors"
	"testing"
)

func TestMediaObjectPath(t *testing.T) {
	tests := []struct {
		name        string
		kind        MediaKind
		id          string
		contentType string
		want        string
		wantErr     bool
	}{
		{name: "product png", kind: MediaProduct, id: "01HXYZ", contentType: "image/png", want: "media/products/01HXYZ.png"},
		{name: "banner jpeg", kind: MediaBanner, id: "01HXYZ", contentType: "image/jpeg", want: "media/banners/01HXYZ.jpg"},
		{name: "traversal", kind: MediaBanner, id: "../etc", contentType: "image/jpeg", wantErr: true},
		{name: "unknown kind", kind: MediaKind("avatars"), id: "a", contentType: "image/png", wantErr: true},
		{name: "unsupported type", kind: MediaCategory, id: "a", contentType: "image/tiff", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MediaObjectPath(tc.kind, tc.id, tc.contentType)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %q (%v), want %q", got, err, tc.want)
			}
		})
	}

	if _, err := MediaObjectPath(MediaProduct, "a", "text/plain"); !errors.Is(err, ErrContentTypeDenied) {
		t.Fatalf("expected ErrContentTypeDenied, got %v", err)
	}
}

func TestParseMediaKind(t *testing.T) {
	for raw, want := range map[string]MediaKind{"product": MediaProduct, "Products": MediaProduct, "category": MediaCategory, "categories": MediaCategory, "banner": MediaBanner} {
		got, err := ParseMediaKind(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMediaKind(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseMediaKind("avatar"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
