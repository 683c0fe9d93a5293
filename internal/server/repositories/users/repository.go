// Package users is the user directory: persistent user records, looked up
// by id or login and updated field by field.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophtube/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID and timestamps. A duplicate
	// username or email yields common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByLogin finds a user whose username or email matches.
	GetByLogin(ctx context.Context, userName, email string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetAvatar(ctx context.Context, id string, blob models.Blob) (*models.User, error)
	SetCoverImage(ctx context.Context, id string, blob models.Blob) (*models.User, error)
	// AssetKeys returns every blob key referenced by a user record.
	AssetKeys(ctx context.Context) ([]string, error)
}
