package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/dealdesk/dealdesk-backend/internal/repository/storage"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageSize  = 5 * 1024 * 1024
	MinImageSide  = 50
	MaxImageSide  = 8000
	LogoSize      = 256
	JPEGQuality   = 85
	LogoURLExpiry = time.Hour
	logoMediaType = "image/jpeg"
)

// ImageError rejects an uploaded file. Message is safe to show the user.
type ImageError struct {
	Message string
}

func (e *ImageError) Error() string { return e.Message }

func (e *ImageError) Unwrap() error { return domain.ErrInvalidInput }

var (
	ErrImageTooLarge    = &ImageError{"File too large. Maximum size is 5MB"}
	ErrInvalidFormat    = &ImageError{"Invalid format. Supported: JPEG, PNG, WebP"}
	ErrImageTooSmall    = &ImageError{"Image too small. Minimum 50x50 pixels"}
	ErrImageDimensions  = &ImageError{"Image too large. Maximum 8000x8000 pixels"}
	ErrInvalidImageData = &ImageError{"Invalid image data"}

	ErrImageStorageNotConfigured = errors.New("image storage not configured")
)

// logoFormats maps accepted file extensions to the decoder name image.Decode
// reports for them
var logoFormats = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
	".webp": "webp",
}

// ImageService turns uploads into square JPEG logos in object storage
type ImageService struct {
	storage storage.ObjectStorage
}

// NewImageService creates an ImageService. A nil storage disables uploads.
func NewImageService(storage storage.ObjectStorage) *ImageService {
	return &ImageService{storage: storage}
}

func (s *ImageService) IsEnabled() bool {
	return s != nil && s.storage != nil
}

// ValidateImage checks data without storing it
func (s *ImageService) ValidateImage(data []byte, filename string) error {
	_, err := decodeLogo(data, filename)
	return err
}

// decodeLogo reads the header first so oversized images are refused before
// their pixels are allocated
func decodeLogo(data []byte, filename string) (image.Image, error) {
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	want, ok := logoFormats[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return nil, ErrInvalidFormat
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	switch {
	case errors.Is(err, image.ErrFormat):
		return nil, ErrInvalidFormat
	case err != nil:
		return nil, ErrInvalidImageData
	case format != want:
		return nil, ErrInvalidFormat
	case cfg.Width < MinImageSide || cfg.Height < MinImageSide:
		return nil, ErrImageTooSmall
	case cfg.Width > MaxImageSide || cfg.Height > MaxImageSide:
		return nil, ErrImageDimensions
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImageData
	}
	return img, nil
}

// StoreLogo center-crops the image to a LogoSize square, re-encodes it as
// JPEG and returns the new object key
func (s *ImageService) StoreLogo(ctx context.Context, workspaceID int32, data []byte, filename string) (string, error) {
	if !s.IsEnabled() {
		return "", ErrImageStorageNotConfigured
	}

	img, err := decodeLogo(data, filename)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	logo := imaging.Fill(img, LogoSize, LogoSize, imaging.Center, imaging.Lanczos)
	if err := jpeg.Encode(&buf, logo, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", fmt.Errorf("encode logo: %w", err)
	}

	key := storage.LogoKey(workspaceID)
	if err := s.storage.Put(ctx, key, buf.Bytes(), logoMediaType); err != nil {
		return "", fmt.Errorf("store logo: %w", err)
	}
	return key, nil
}

// Delete removes a stored object; an empty key is a no-op
func (s *ImageService) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if !s.IsEnabled() {
		return ErrImageStorageNotConfigured
	}
	return s.storage.Remove(ctx, key)
}

// URL returns a signed URL for key, or "" when none can be made
func (s *ImageService) URL(ctx context.Context, key string) string {
	if key == "" || !s.IsEnabled() {
		return ""
	}
	u, err := s.storage.SignedURL(ctx, key, LogoURLExpiry)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to sign logo URL")
		return ""
	}
	return u
}
