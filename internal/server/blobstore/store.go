// Package blobstore stores user assets in an S3-compatible object store
// (AWS S3 or MinIO).
package blobstore

import (
	"context"

	"github.com/dmitrijs2005/gophtube/internal/server/models"
)

// Store uploads local files and deletes or lists stored objects.
type Store interface {
	Upload(ctx context.Context, localPath string) (models.Blob, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]models.StoredObject, error)
}
