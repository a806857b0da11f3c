package service

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/models"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultImageMaxUploadSizeMB caps featured image uploads when config is absent.
const DefaultImageMaxUploadSizeMB = 5

// ImageUpload is a raw file part as received from the client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageStore validates featured image uploads. Bytes are stored as received;
// no re-encoding or resizing happens here.
type ImageStore struct {
	maxUploadSizeBytes int64
}

func NewImageStore(cfg *config.Config) *ImageStore {
	maxUploadSizeMB := DefaultImageMaxUploadSizeMB
	if cfg != nil && cfg.ImageMaxUploadSizeMB > 0 {
		maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
	}
	return &ImageStore{maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024}
}

// Validate checks size, sniffed type, filename extension and the declared
// Content-Type against each other and returns the attachment to persist. The
// stored content type is always the sniffed one, never what the client claimed.
func (s *ImageStore) Validate(in ImageUpload) (*models.Attachment, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewPayloadTooLargeError(s.maxUploadSizeBytes)
	}

	detectedType := normalizeContentType(http.DetectContentType(in.Content))
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewUnsupportedMediaTypeError(fmt.Sprintf("Unsupported image type %q", detectedType))
	}

	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.Filename)), "."); ext != "" {
		extMime := extensionToMime(ext)
		if extMime == "" {
			return nil, models.NewUnsupportedMediaTypeError(fmt.Sprintf("Unsupported image extension %q", ext))
		}
		if !isMatchingContentType(extMime, detectedType) {
			return nil, models.NewUnsupportedMediaTypeError("Image content does not match file extension")
		}
	}

	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, detectedType) {
		return nil, models.NewUnsupportedMediaTypeError("Image content does not match declared content type")
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(in.Content)); err != nil {
		return nil, models.NewUnsupportedMediaTypeError("Corrupt or undecodable image file")
	}

	return &models.Attachment{
		Content:     in.Content,
		ContentType: detectedType,
		Filename:    filepath.Base(in.Filename),
	}, nil
}

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(normalized, ";"); idx != -1 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	return normalized
}

// isMatchingContentType treats image/jpg and image/jpeg as the same family.
func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == "image/jpg" {
		p = "image/jpeg"
	}
	if d == "image/jpg" {
		d = "image/jpeg"
	}
	return p == d
}

func extensionToMime(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
