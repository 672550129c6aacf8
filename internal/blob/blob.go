// Package blob issues presigned upload URLs and turns storage keys into
// public URLs.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"photomemo/internal/apperr"
)

// KeyPrefix is the folder new uploads land in.
const KeyPrefix = "uploads/"

var allowedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// Presigner signs a PUT of key with the given content type.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
}

type Upload struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	PublicURL string `json:"publicUrl"`
}

type Uploads struct {
	Presigner Presigner
	BaseURL   string
	Now       func() time.Time
}

// Presign validates the file name and returns where the client should PUT
// the bytes and where they will be readable afterwards.
func (u *Uploads) Presign(ctx context.Context, filename, contentType string) (*Upload, error) {
	var fields []string
	if strings.TrimSpace(filename) == "" {
		fields = append(fields, "filename")
	}
	if strings.TrimSpace(contentType) == "" {
		fields = append(fields, "contentType")
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("filename and contentType are required", fields...)
	}

	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	key, err := NewUploadKey(filename, now())
	if err != nil {
		return nil, err
	}

	url, err := u.Presigner.PresignPut(ctx, key, contentType)
	if err != nil {
		return nil, apperr.Dependency("object storage", err)
	}
	return &Upload{URL: url, Key: key, PublicURL: PublicURL(u.BaseURL, key)}, nil
}

// NewUploadKey builds uploads/<unix-ms>-<uuid><ext>. Only image extensions
// are accepted.
func NewUploadKey(filename string, at time.Time) (string, error) {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if !allowedExt[ext] {
		return "", apperr.Validation(fmt.Sprintf("file type %q is not allowed", ext), "filename")
	}
	return fmt.Sprintf("%s%d-%s%s", KeyPrefix, at.UnixMilli(), uuid.NewString(), ext), nil
}

// PublicURL joins a bare key onto base. Absolute URLs are returned as is.
func PublicURL(base, key string) string {
	if key == "" || base == "" || strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
