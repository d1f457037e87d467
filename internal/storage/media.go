package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxUploadBytes caps profile images and identity documents.
const MaxUploadBytes = 10 << 20

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file exceeds the 10 MB limit")
	ErrEmptyFile       = errors.New("file is empty")
)

var allowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// MediaStore persists user uploads and returns a URL clients can fetch.
type MediaStore interface {
	Store(ctx context.Context, folder, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, objectURL string) error
}

// ValidateUpload checks the declared content type and size.
func ValidateUpload(contentType string, size int64) error {
	if _, ok := allowedContentTypes[normalizeContentType(contentType)]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxUploadBytes {
		return ErrTooLarge
	}
	return nil
}

func normalizeContentType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectName builds a collision-free key under folder that keeps a readable
// form of the original filename.
func ObjectName(folder, filename, contentType string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.Trim(unsafeNameChars.ReplaceAllString(stem, "-"), "-.")
	if stem == "" {
		stem = "upload"
	}
	if len(stem) > 60 {
		stem = stem[:60]
	}
	if mapped, ok := allowedContentTypes[normalizeContentType(contentType)]; ok {
		ext = mapped
	}
	folder = strings.Trim(folder, "/")
	return fmt.Sprintf("%s/%s-%s%s", folder, uuid.NewString(), stem, strings.ToLower(ext))
}
