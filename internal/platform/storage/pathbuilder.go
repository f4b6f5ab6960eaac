package storage

import (
	"fmt"
	"strings"
)

// MediaKind groups uploads by what they illustrate.
type MediaKind string

const (
	MediaProduct  MediaKind = "products"
	MediaCategory MediaKind = "categories"
	MediaBanner   MediaKind = "banners"
)

// ImageTypes is the content-type allowlist for admin uploads.
var ImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif", "image/avif"}

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/avif": "avif",
}

// ParseMediaKind accepts singular or plural forms ("product", "products").
func ParseMediaKind(raw string) (MediaKind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s") {
	case "product":
		return MediaProduct, nil
	case "categorie", "category":
		return MediaCategory, nil
	case "banner":
		return MediaBanner, nil
	}
	return "", fmt.Errorf("storage: unknown media kind %q", raw)
}

// MediaObjectPath returns media/{kind}/{id}.{ext}.
func MediaObjectPath(kind MediaKind, id, contentType string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("storage: invalid object id %q", id)
	}
	switch kind {
	case MediaProduct, MediaCategory, MediaBanner:
	default:
		return "", fmt.Errorf("storage: unknown media kind %q", kind)
	}
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrContentTypeDenied, contentType)
	}
	return fmt.Sprintf("media/%s/%s.%s", kind, id, ext), nil
}
