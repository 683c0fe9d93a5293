package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/dbx"
)

// PostgresRepository stores the refresh token in the users.refresh_token
// column. It works over dbx.DBTX (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Set(ctx context.Context, userID, token string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, userID, token)
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

func (r *PostgresRepository) Get(ctx context.Context, userID string) (string, error) {
	query := `SELECT refresh_token FROM users WHERE id = $1`

	var token sql.NullString
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return token.String, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID string) error {
	query := `UPDATE users SET refresh_token = NULL WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
