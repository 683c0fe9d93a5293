package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dmitrijs2005/gophtube/internal/common"
	"github.com/dmitrijs2005/gophtube/internal/filex"
	"github.com/dmitrijs2005/gophtube/internal/server/blobstore"
	"github.com/dmitrijs2005/gophtube/internal/server/metrics"
	"github.com/dmitrijs2005/gophtube/internal/server/models"
	"golang.org/x/sync/errgroup"
)

// UploadCoordinator stores local files in the blob store and hands the
// resulting blobs to a bind step. If binding does not complete, every blob
// uploaded for the operation is deleted again.
type UploadCoordinator struct {
	store blobstore.Store
	options
}

func NewUploadCoordinator(store blobstore.Store, opts ...Option) *UploadCoordinator {
	return &UploadCoordinator{store: store, options: newOptions("uploads", opts)}
}

// Asset is one local file taking part in UploadAllAndBind.
type Asset struct {
	Name     string
	Path     string
	Required bool
}

// UploadAndBind uploads the file at localPath and passes the blob to bind.
//
// An empty localPath fails with common.ErrMissingInput before any store call.
// A failed upload yields common.ErrUploadFailed. A failed, panicking or
// cancelled bind deletes the blob once and yields common.ErrBindFailed.
// The local file is removed in every case.
func UploadAndBind[T any](ctx context.Context, c *UploadCoordinator, localPath string, bind func(ctx context.Context, blob models.Blob) (T, error)) (T, error) {
	var zero T

	if localPath == "" {
		c.metrics.Upload(metrics.UploadMissingInput)
		return zero, common.ErrMissingInput
	}
	defer c.Discard(ctx, localPath)

	blob, err := c.upload(ctx, localPath)
	if err != nil {
		c.metrics.Upload(metrics.UploadFailed)
		return zero, fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}

	res, err := runBind(ctx, c, blob, bind)
	if err != nil {
		c.compensate(ctx, blob)
		c.metrics.Upload(metrics.UploadBindFailed)
		return zero, fmt.Errorf("%w: %w", common.ErrBindFailed, err)
	}

	c.metrics.Upload(metrics.UploadBound)
	return res, nil
}

// UploadAllAndBind uploads several assets concurrently and binds them in one
// step. bind receives the blobs keyed by Asset.Name; optional assets with an
// empty path are absent from the map.
//
// If any upload fails, or bind fails, every blob uploaded so far is deleted,
// so a record never keeps a subset of the assets.
func UploadAllAndBind[T any](ctx context.Context, c *UploadCoordinator, assets []Asset, bind func(ctx context.Context, blobs map[string]models.Blob) (T, error)) (T, error) {
	var zero T

	paths := make([]string, 0, len(assets))
	for _, a := range assets {
		if a.Path != "" {
			paths = append(paths, a.Path)
		}
	}
	defer c.Discard(ctx, paths...)

	for _, a := range assets {
		if a.Required && a.Path == "" {
			c.metrics.Upload(metrics.UploadMissingInput)
			return zero, fmt.Errorf("%w: %s", common.ErrMissingInput, a.Name)
		}
	}

	var (
		mu    sync.Mutex
		blobs = make(map[string]models.Blob, len(assets))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range assets {
		if a.Path == "" {
			continue
		}
		g.Go(func() error {
			blob, err := c.upload(gctx, a.Path)
			if err != nil {
				return fmt.Errorf("%s: %w", a.Name, err)
			}
			mu.Lock()
			blobs[a.Name] = blob
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.compensate(ctx, slices.Collect(maps.Values(blobs))...)
		c.metrics.Upload(metrics.UploadFailed)
		return zero, fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}

	res, err := runBind(ctx, c, blobs, bind)
	if err != nil {
		c.compensate(ctx, slices.Collect(maps.Values(blobs))...)
		c.metrics.Upload(metrics.UploadBindFailed)
		return zero, fmt.Errorf("%w: %w", common.ErrBindFailed, err)
	}

	c.metrics.Upload(metrics.UploadBound)
	return res, nil
}

// runBind calls bind unless ctx is already done. A panic in bind is turned
// into an error.
func runBind[B, T any](ctx context.Context, c *UploadCoordinator, blobs B, bind func(context.Context, B) (T, error)) (res T, err error) {
	if err := ctx.Err(); err != nil {
		return res, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bind panicked: %v", r)
		}
	}()

	bctx, cancel := c.storeCtx(ctx)
	defer cancel()
	return bind(bctx, blobs)
}

func (c *UploadCoordinator) upload(ctx context.Context, localPath string) (models.Blob, error) {
	ctx, cancel := c.storeCtx(ctx)
	defer cancel()
	return c.store.Upload(ctx, localPath)
}

// compensate deletes blobs on a context that outlives the request, so a
// cancelled caller still gets its uploads cleaned up. Failures are logged
// and counted only.
func (c *UploadCoordinator) compensate(ctx context.Context, blobs ...models.Blob) {
	for _, b := range blobs {
		dctx, cancel := c.storeCtx(context.WithoutCancel(ctx))
		err := c.store.Delete(dctx, b.Key)
		cancel()

		c.metrics.Compensation(err)
		if err != nil {
			c.log.Error(ctx, "compensating delete failed, blob orphaned", "key", b.Key, "error", err)
			continue
		}
		c.log.Info(ctx, "uploaded blob deleted after failed bind", "key", b.Key)
	}
}

// Discard removes staged local files. Errors are logged.
func (c *UploadCoordinator) Discard(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := filex.Remove(p); err != nil {
			c.log.Warn(ctx, "failed to remove staged file", "path", p, "error", err)
		}
	}
}
