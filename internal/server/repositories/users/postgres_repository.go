package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/dbx"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const userColumns = `id, username, email, full_name, password_hash,
		avatar, avatar_key, cover_image, cover_image_key, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, full_name, password_hash, avatar, avatar_key, cover_image, cover_image_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		strings.ToLower(user.UserName), user.Email, user.FullName, user.PasswordHash,
		user.Avatar, user.AvatarKey, user.CoverImage, user.CoverImageKey,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.UserName = strings.ToLower(user.UserName)
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryUser(ctx, query, id)
}

func (r *PostgresRepository) GetByLogin(ctx context.Context, userName, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE username = $1 OR email = $2
		 LIMIT 1`
	return r.queryUser(ctx, query, strings.ToLower(userName), email)
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error) {
	query := `UPDATE users SET full_name = $2, email = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns
	return r.queryUser(ctx, query, id, fullName, email)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) SetAvatar(ctx context.Context, id string, blob models.Blob) (*models.User, error) {
	query := `UPDATE users SET avatar = $2, avatar_key = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns
	return r.queryUser(ctx, query, id, blob.URL, blob.Key)
}

func (r *PostgresRepository) SetCoverImage(ctx context.Context, id string, blob models.Blob) (*models.User, error) {
	query := `UPDATE users SET cover_image = $2, cover_image_key = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns
	return r.queryUser(ctx, query, id, blob.URL, blob.Key)
}

func (r *PostgresRepository) AssetKeys(ctx context.Context) ([]string, error) {
	query := `SELECT avatar_key FROM users WHERE avatar_key <> ''
		 UNION
		 SELECT cover_image_key FROM users WHERE cover_image_key <> ''`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return keys, nil
}

func (r *PostgresRepository) queryUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.UserName, &user.Email, &user.FullName, &user.PasswordHash,
		&user.Avatar, &user.AvatarKey, &user.CoverImage, &user.CoverImageKey,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if isUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
