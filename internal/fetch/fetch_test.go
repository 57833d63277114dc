package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/model-health/modelhealth-go/internal/observability"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

func newTestFetcher(t *testing.T, opts ...Option) *Fetcher {
	return New(append([]Option{WithLogger(log.New(testWriter{t}, "", 0))}, opts...)...)
}

func TestAllDropsFailedItems(t *testing.T) {
	before := testutil.ToFloat64(observability.FetchDropped("test", "status"))

	items, err := All(context.Background(), newTestFetcher(t), "test", []string{"a", "b", "c"},
		func(_ context.Context, key string) ([]byte, error) {
			if key == "b" {
				return nil, &domain.HTTPError{Op: "download", StatusCode: 500}
			}
			return []byte(key), nil
		})
	require.NoError(t, err)
	require.ElementsMatch(t, []Item[string]{{Key: "a", Data: []byte("a")}, {Key: "c", Data: []byte("c")}}, items)
	require.Equal(t, before+1, testutil.ToFloat64(observability.FetchDropped("test", "status")))
}

func TestAllDropsEmptyAndMissing(t *testing.T) {
	items, err := All(context.Background(), newTestFetcher(t), "test", []int{1, 2, 3},
		func(_ context.Context, key int) ([]byte, error) {
			switch key {
			case 1:
				return []byte{}, nil
			case 2:
				return nil, ErrMissingURL
			}
			return []byte("ok"), nil
		})
	require.NoError(t, err)
	require.Equal(t, []Item[int]{{Key: 3, Data: []byte("ok")}}, items)
}

func TestAllWithNoKeysDoesNothing(t *testing.T) {
	var calls atomic.Int32
	items, err := All(context.Background(), newTestFetcher(t), "test", nil, func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		return nil, nil
	})
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
	require.Zero(t, calls.Load())
}

func TestAllBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	keys := make([]int, 12)
	for i := range keys {
		keys[i] = i
	}

	items, err := All(context.Background(), newTestFetcher(t, WithConcurrency(3)), "test", keys,
		func(context.Context, int) ([]byte, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return []byte("x"), nil
		})
	require.NoError(t, err)
	require.Len(t, items, 12)
	require.LessOrEqual(t, peak.Load(), int32(3))
}

func TestAllAbortsOnClosedClient(t *testing.T) {
	_, err := All(context.Background(), newTestFetcher(t), "test", []string{"a", "b"},
		func(context.Context, string) ([]byte, error) {
			return nil, domain.ErrClosed
		})
	require.ErrorIs(t, err, domain.ErrClosed)
}

func TestAllReturnsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := All(ctx, newTestFetcher(t), "test", []string{"a"},
		func(ctx context.Context, _ string) ([]byte, error) {
			return nil, ctx.Err()
		})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAllDropsItemThatTimedOut(t *testing.T) {
	timeout := &domain.TransportError{Op: "download", Err: fmt.Errorf("client timeout: %w", context.DeadlineExceeded)}

	items, err := All(context.Background(), newTestFetcher(t), "test", []string{"a", "slow", "c"},
		func(_ context.Context, key string) ([]byte, error) {
			if key == "slow" {
				return nil, timeout
			}
			return []byte(key), nil
		})
	require.NoError(t, err)
	require.ElementsMatch(t, []Item[string]{{Key: "a", Data: []byte("a")}, {Key: "c", Data: []byte("c")}}, items)
}

func TestReason(t *testing.T) {
	require.Equal(t, "missing_url", Reason(ErrMissingURL))
	require.Equal(t, "conversion", Reason(&domain.ConversionError{Kind: domain.ConversionEmptyFile}))
	require.Equal(t, "transport", Reason(&domain.TransportError{Op: "x", Err: errors.New("dial")}))
	require.Equal(t, "status", Reason(&domain.HTTPError{StatusCode: 404}))
	require.Equal(t, "error", Reason(errors.New("other")))
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
