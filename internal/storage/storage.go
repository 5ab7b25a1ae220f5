package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// ImageStore keeps enrollment reference images. They are never used for
// matching.
type ImageStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// ReferenceKey builds a unique key per upload, so a re-enrollment never
// overwrites the image still referenced by the current row.
func ReferenceKey(employeeID uuid.UUID, at time.Time, contentType string) string {
	return path.Join("enrollments", employeeID.String(),
		fmt.Sprintf("%d%s", at.UnixNano(), extension(contentType)))
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// NoOpStore discards images. Used when no object store is configured.
type NoOpStore struct{}

func (NoOpStore) PutObject(context.Context, string, []byte, string) error { return nil }
func (NoOpStore) DeleteObject(context.Context, string) error               { return nil }
