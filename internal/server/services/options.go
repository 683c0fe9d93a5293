// Package services contains the server-side business logic: the session
// credential lifecycle, transactional asset uploads, user account operations
// and the orphaned blob sweeper.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/logging"
	"github.com/dmitrijs2005/gophtube/internal/server/locks"
	"github.com/dmitrijs2005/gophtube/internal/server/metrics"
)

const defaultStoreTimeout = 5 * time.Second

type options struct {
	log          logging.Logger
	metrics      *metrics.Metrics
	locker       locks.Locker
	storeTimeout time.Duration
}

// Option configures a service.
type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLocker serializes refresh token rotation per user.
func WithLocker(l locks.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithStoreTimeout bounds every directory and blob store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.storeTimeout = d
		}
	}
}

func newOptions(module string, opts []Option) options {
	o := options{
		log:          logging.NewNop(),
		locker:       locks.Nop{},
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With("module", module)
	return o
}

func (o options) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.storeTimeout)
}
