// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/dbx"
	"github.com/dmitrijs2005/gophtube/internal/server/migrations"
	"github.com/dmitrijs2005/gophtube/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophtube/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook. Refresh tokens may live in Redis
// instead, see WithRedisSessions.
type PostgresRepositoryManager struct {
	redis      redis.UniversalClient
	sessionTTL time.Duration
}

type Option func(*PostgresRepositoryManager)

// WithRedisSessions keeps refresh tokens in Redis with the given TTL. User
// existence is still checked against PostgreSQL.
func WithRedisSessions(client redis.UniversalClient, ttl time.Duration) Option {
	return func(m *PostgresRepositoryManager) {
		m.redis = client
		m.sessionTTL = ttl
	}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	if m.redis != nil {
		return refreshtokens.NewRedisRepository(m.redis, m.sessionTTL, m.Users(db).Exists)
	}
	return refreshtokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(opts ...Option) RepositoryManager {
	m := &PostgresRepositoryManager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
