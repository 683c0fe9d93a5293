package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/cryptox"
	"github.com/dmitrijs2005/gophtube/internal/dbx"
	"github.com/dmitrijs2005/gophtube/internal/server/blobstore"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	"github.com/dmitrijs2005/gophtube/internal/server/repositories/repomanager"
)

// Asset names used by registration.
const (
	AssetAvatar     = "avatar"
	AssetCoverImage = "coverImage"
)

type RegisterInput struct {
	FullName       string
	Email          string
	UserName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// UserService manages user accounts and their avatar and cover images.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	uploads     *UploadCoordinator
	store       blobstore.Store
	options
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, uploads *UploadCoordinator, store blobstore.Store, opts ...Option) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		uploads:     uploads,
		store:       store,
		options:     newOptions("users", opts),
	}
}

// Register creates a user with an avatar and an optional cover image. The
// images are uploaded first and the user row is written afterwards; if the
// row cannot be written the uploaded images are deleted.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	staged := []string{in.AvatarPath, in.CoverImagePath}

	for _, f := range []string{in.FullName, in.Email, in.UserName, in.Password} {
		if strings.TrimSpace(f) == "" {
			s.uploads.Discard(ctx, staged...)
			return nil, fmt.Errorf("%w: all fields are required", common.ErrValidation)
		}
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	_, err := s.repomanager.Users(s.db).GetByLogin(lookupCtx, in.UserName, in.Email)
	cancel()
	switch {
	case err == nil:
		s.uploads.Discard(ctx, staged...)
		return nil, fmt.Errorf("%w: username or email is taken", common.ErrAlreadyExists)
	case !errors.Is(err, common.ErrorNotFound):
		s.uploads.Discard(ctx, staged...)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		s.uploads.Discard(ctx, staged...)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	assets := []Asset{
		{Name: AssetAvatar, Path: in.AvatarPath, Required: true},
		{Name: AssetCoverImage, Path: in.CoverImagePath},
	}

	return UploadAllAndBind(ctx, s.uploads, assets, func(ctx context.Context, blobs map[string]models.Blob) (*models.User, error) {
		avatar := blobs[AssetAvatar]
		cover := blobs[AssetCoverImage]

		user := &models.User{
			UserName:      in.UserName,
			Email:         in.Email,
			FullName:      in.FullName,
			PasswordHash:  hash,
			Avatar:        avatar.URL,
			AvatarKey:     avatar.Key,
			CoverImage:    cover.URL,
			CoverImageKey: cover.Key,
		}

		var created *models.User
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.Users(tx)
			u, err := repo.Create(ctx, user)
			if err != nil {
				return err
			}
			created, err = repo.GetByID(ctx, u.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		return created, nil
	})
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

func (s *UserService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)
	if fullName == "" || email == "" {
		return nil, fmt.Errorf("%w: fullName and email are required", common.ErrValidation)
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.repomanager.Users(s.db).UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", common.ErrValidation)
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return mapUserErr(err)
	}

	ok, err := cryptox.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return common.ErrInvalidCredential
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return mapUserErr(err)
	}
	return nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.User, error) {
	return s.replaceAsset(ctx, userID, localPath,
		func(u *models.User) string { return u.AvatarKey },
		func(ctx context.Context, blob models.Blob) (*models.User, error) {
			return s.repomanager.Users(s.db).SetAvatar(ctx, userID, blob)
		})
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.User, error) {
	return s.replaceAsset(ctx, userID, localPath,
		func(u *models.User) string { return u.CoverImageKey },
		func(ctx context.Context, blob models.Blob) (*models.User, error) {
			return s.repomanager.Users(s.db).SetCoverImage(ctx, userID, blob)
		})
}

// replaceAsset uploads a new image, binds it to the user and then deletes the
// image it replaced. A failed delete of the old image leaves it to the sweeper.
func (s *UserService) replaceAsset(
	ctx context.Context,
	userID, localPath string,
	currentKey func(*models.User) string,
	bind func(context.Context, models.Blob) (*models.User, error),
) (*models.User, error) {
	if localPath == "" {
		return nil, fmt.Errorf("%w: file is required", common.ErrMissingInput)
	}

	prev, err := s.CurrentUser(ctx, userID)
	if err != nil {
		s.uploads.Discard(ctx, localPath)
		return nil, err
	}

	user, err := UploadAndBind(ctx, s.uploads, localPath, func(ctx context.Context, blob models.Blob) (*models.User, error) {
		u, err := bind(ctx, blob)
		if err != nil {
			return nil, mapUserErr(err)
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	if old := currentKey(prev); old != "" && old != currentKey(user) {
		dctx, cancel := s.storeCtx(context.WithoutCancel(ctx))
		defer cancel()
		if err := s.store.Delete(dctx, old); err != nil {
			s.log.Warn(ctx, "failed to delete replaced asset", "key", old, "error", err)
		}
	}
	return user, nil
}

func mapUserErr(err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrIdentityNotFound
	case errors.Is(err, common.ErrAlreadyExists):
		return err
	default:
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
}
