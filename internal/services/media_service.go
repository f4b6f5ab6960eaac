package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/storage"
	"github.com/lumashop/api/internal/repositories"
)

const defaultMaxUploadBytes = 10 << 20

var (
	// ErrMediaInvalidInput covers unknown media kinds, disallowed content types, and oversize uploads.
	ErrMediaInvalidInput = fmt.Errorf("media: %w", ErrInvalidInput)
	// ErrMediaUnavailable indicates uploads are not configured.
	ErrMediaUnavailable = fmt.Errorf("media: %w", ErrUnavailable)
)

// UploadSigner issues signed upload URLs. *storage.Client satisfies it.
type UploadSigner interface {
	SignUpload(ctx context.Context, object string, opts storage.UploadOptions) (storage.SignedUpload, error)
}

type MediaServiceDeps struct {
	Signer         UploadSigner
	Banners        repositories.BannerRepository
	MaxUploadBytes int64
	UploadExpiry   time.Duration
	Clock          func() time.Time
	IDGenerator    func() string
}

type mediaService struct {
	signer   UploadSigner
	banners  repositories.BannerRepository
	maxBytes int64
	expiry   time.Duration
	clock    func() time.Time
	newID    func() string
}

func NewMediaService(deps MediaServiceDeps) (MediaService, error) {
	if deps.Banners == nil {
		return nil, errors.New("media service: banner repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	maxBytes := deps.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &mediaService{
		signer:   deps.Signer,
		banners:  deps.Banners,
		maxBytes: maxBytes,
		expiry:   deps.UploadExpiry,
		clock:    func() time.Time { return clock().UTC() },
		newID:    idGen,
	}, nil
}

// SignUpload returns a V4 signed PUT URL for media/{kind}/{id}.{ext}.
func (s *mediaService) SignUpload(ctx context.Context, cmd SignUploadCommand) (domain.SignedUpload, error) {
	if s.signer == nil {
		return domain.SignedUpload{}, fmt.Errorf("%w: uploads are not configured", ErrMediaUnavailable)
	}
	kind, err := storage.ParseMediaKind(cmd.Kind)
	if err != nil {
		return domain.SignedUpload{}, fmt.Errorf("%w: unknown media kind", ErrMediaInvalidInput)
	}
	if cmd.Size <= 0 {
		return domain.SignedUpload{}, fmt.Errorf("%w: size is required", ErrMediaInvalidInput)
	}
	object, err := storage.MediaObjectPath(kind, s.newID(), cmd.ContentType)
	if err != nil {
		return domain.SignedUpload{}, fmt.Errorf("%w: unsupported content type", ErrMediaInvalidInput)
	}

	signed, err := s.signer.SignUpload(ctx, object, storage.UploadOptions{
		ContentType:  cmd.ContentType,
		AllowedTypes: storage.ImageTypes,
		Size:         cmd.Size,
		MaxSize:      s.maxBytes,
		ExpiresIn:    s.expiry,
	})
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return domain.SignedUpload{}, fmt.Errorf("%w: file exceeds %d bytes", ErrMediaInvalidInput, s.maxBytes)
	case errors.Is(err, storage.ErrContentTypeDenied):
		return domain.SignedUpload{}, fmt.Errorf("%w: unsupported content type", ErrMediaInvalidInput)
	case err != nil:
		return domain.SignedUpload{}, fmt.Errorf("%w: %w", ErrMediaUnavailable, err)
	}
	return domain.SignedUpload{
		UploadURL: signed.UploadURL,
		PublicURL: signed.PublicURL,
		Object:    signed.Object,
		Method:    signed.Method,
		Headers:   signed.Headers,
		ExpiresAt: signed.ExpiresAt,
	}, nil
}

func (s *mediaService) ListBanners(ctx context.Context, activeOnly bool) ([]Banner, error) {
	banners, err := s.banners.List(ctx, activeOnly)
	if err != nil {
		return nil, kindOf(err, "media")
	}
	if banners == nil {
		banners = []Banner{}
	}
	return banners, nil
}

func (s *mediaService) SaveBanner(ctx context.Context, cmd SaveBannerCommand) (Banner, error) {
	banner := Banner{
		ID:        strings.TrimSpace(cmd.ID),
		Title:     strings.TrimSpace(cmd.Title),
		Subtitle:  strings.TrimSpace(cmd.Subtitle),
		Image:     strings.TrimSpace(cmd.Image),
		Link:      strings.TrimSpace(cmd.Link),
		Active:    cmd.Active,
		SortOrder: cmd.SortOrder,
	}
	if banner.Title == "" || banner.Image == "" {
		return Banner{}, fmt.Errorf("%w: banner title and image are required", ErrMediaInvalidInput)
	}
	now := s.clock()
	banner.UpdatedAt = now
	if banner.ID == "" {
		banner.ID = s.newID()
		banner.CreatedAt = now
		if err := s.banners.Insert(ctx, banner); err != nil {
			return Banner{}, kindOf(err, "media")
		}
		return banner, nil
	}
	existing, err := s.banners.FindByID(ctx, banner.ID)
	if err != nil {
		return Banner{}, kindOf(err, "media")
	}
	banner.CreatedAt = existing.CreatedAt
	if err := s.banners.Update(ctx, banner); err != nil {
		return Banner{}, kindOf(err, "media")
	}
	return banner, nil
}

func (s *mediaService) DeleteBanner(ctx context.Context, bannerID string) error {
	bannerID = strings.TrimSpace(bannerID)
	if bannerID == "" {
		return fmt.Errorf("%w: banner id is required", ErrMediaInvalidInput)
	}
	return kindOf(s.banners.Delete(ctx, bannerID), "media")
}
