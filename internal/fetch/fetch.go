// Package fetch runs best-effort batches of downloads. Individual failures shrink the
// result instead of failing the batch.
package fetch

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/model-health/modelhealth-go/internal/observability"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

// DefaultConcurrency bounds in-flight downloads when no limit is configured.
const DefaultConcurrency = 4

var (
	// ErrMissingURL marks an item the service has no media link for yet.
	ErrMissingURL = errors.New("no media url")
	// ErrEmptyPayload marks a download that returned zero bytes.
	ErrEmptyPayload = errors.New("empty payload")
)

// Item is one successful download.
type Item[K any] struct {
	Key  K
	Data []byte
}

// Option configures optional behaviour for the Fetcher.
type Option func(*Fetcher)

// WithLogger overrides the logger used to report dropped items.
func WithLogger(logger *log.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithConcurrency bounds the number of downloads in flight per batch.
func WithConcurrency(limit int) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.limit = limit
		}
	}
}

// Fetcher holds the batch policy shared by all batches of a client.
type Fetcher struct {
	limit  int
	logger *log.Logger
}

// New constructs a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		limit:  DefaultConcurrency,
		logger: log.New(log.Writer(), "[fetch] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Limit returns the per-batch concurrency bound.
func (f *Fetcher) Limit() int {
	return f.limit
}

// All runs fn for every key concurrently and joins them before returning. Failed and
// empty items are logged, counted under kind and left out, including items that hit a
// per-request timeout. The only errors returned are the end of ctx and
// domain.ErrClosed, which abort the whole batch.
func All[K any](ctx context.Context, f *Fetcher, kind string, keys []K, fn func(context.Context, K) ([]byte, error)) ([]Item[K], error) {
	if len(keys) == 0 {
		return []Item[K]{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)

	slots := make([][]byte, len(keys))
	for i, key := range keys {
		g.Go(func() error {
			data, err := fn(gctx, key)
			if err == nil && len(data) == 0 {
				err = ErrEmptyPayload
			}
			if err != nil {
				// A timeout on one item still matches context.DeadlineExceeded, so only
				// the batch context decides whether the whole batch is over.
				if errors.Is(err, domain.ErrClosed) || gctx.Err() != nil {
					return err
				}
				f.drop(kind, key, err)
				return nil
			}
			slots[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	items := make([]Item[K], 0, len(keys))
	for i, data := range slots {
		if data != nil {
			items = append(items, Item[K]{Key: keys[i], Data: data})
		}
	}
	return items, nil
}

func (f *Fetcher) drop(kind string, key any, err error) {
	reason := Reason(err)
	observability.RecordFetchDropped(kind, reason)
	f.logger.Printf("dropped %s item %v (%s): %v", kind, key, reason, err)
}

// Reason labels a dropped item for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingURL):
		return "missing_url"
	case errors.Is(err, ErrEmptyPayload):
		return "empty"
	case errors.Is(err, domain.ErrConversion):
		return "conversion"
	case errors.Is(err, domain.ErrClientStatus), errors.Is(err, domain.ErrServerStatus), errors.Is(err, domain.ErrUnexpectedStatus):
		return "status"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	case errors.Is(err, domain.ErrInternal):
		return "decode"
	}
	return "error"
}
