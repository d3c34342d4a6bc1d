package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ObjectStorage holds workspace logos in a private bucket. Objects are only
// readable through signed URLs.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// LogoKey returns a fresh key for a workspace logo. Keys are never reused so
// a cached signed URL can't serve a replaced logo.
func LogoKey(workspaceID int32) string {
	return strconv.FormatInt(int64(workspaceID), 10) + "/logo/" + uuid.NewString() + ".jpg"
}
