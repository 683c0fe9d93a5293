package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/server/blobstore"
	"github.com/dmitrijs2005/gophtube/internal/server/repositories/repomanager"
)

// Sweeper deletes blobs that no user references. Blobs younger than the grace
// period are kept so uploads whose bind is still running are not raced.
type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       blobstore.Store
	interval    time.Duration
	grace       time.Duration
	now         func() time.Time
	options
}

func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, store blobstore.Store, interval, grace time.Duration, opts ...Option) *Sweeper {
	return &Sweeper{
		db:          db,
		repomanager: m,
		store:       store,
		interval:    interval,
		grace:       grace,
		now:         time.Now,
		options:     newOptions("sweeper", opts),
	}
}

// Sweep runs one pass and returns the number of deleted blobs. Individual
// delete failures do not stop the pass; they are joined into the error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	deleted, err := s.sweep(ctx)
	s.metrics.Swept(deleted, err)
	return deleted, err
}

func (s *Sweeper) sweep(ctx context.Context) (int, error) {
	// Objects are listed before references so a blob bound in between is
	// seen as referenced.
	listCtx, cancel := s.storeCtx(ctx)
	objects, err := s.store.List(listCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}

	refCtx, cancel := s.storeCtx(ctx)
	keys, err := s.repomanager.Users(s.db).AssetKeys(refCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list referenced keys: %w", err)
	}

	referenced := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		referenced[k] = struct{}{}
	}

	cutoff := s.now().Add(-s.grace)
	var (
		deleted int
		errs    []error
	)
	for _, obj := range objects {
		if _, ok := referenced[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}

		dctx, cancel := s.storeCtx(ctx)
		err := s.store.Delete(dctx, obj.Key)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", obj.Key, err))
			continue
		}
		deleted++
		s.log.Info(ctx, "orphaned blob deleted", "key", obj.Key)
	}

	return deleted, errors.Join(errs...)
}

// Run sweeps every interval until ctx is done. A zero interval disables it.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info(ctx, "sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error(ctx, "sweep failed", "deleted", n, "error", err)
				continue
			}
			s.log.Debug(ctx, "sweep finished", "deleted", n)
		}
	}
}
