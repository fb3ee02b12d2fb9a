package central

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/starkware-libs/starksync-go/starknetapi"
)

// streamOrdered fetches every block number in [lo, hi) with up to
// `concurrency` fetches in flight, but emits results on out strictly in
// ascending number order — a pre-numbered pipeline / reorder buffer, the
// Go shape of the original's `stream::iter(...).buffered(concurrent_requests)`
// (central.rs). Bounding concurrency while preserving order means a fetch
// that finishes early has to wait in the buffer for its predecessors.
//
// fetch does the actual per-number work; wrapErr builds the error variant
// of T so a failure still produces exactly one ordered emission instead of
// silently truncating the stream.
func streamOrdered[T any](
	ctx context.Context,
	lo, hi starknetapi.BlockNumber,
	concurrency int,
	out chan<- T,
	fetch func(ctx context.Context, n starknetapi.BlockNumber) (T, error),
	wrapErr func(n starknetapi.BlockNumber, err error) T,
) {
	defer close(out)
	if hi <= lo {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	total := int(hi - lo)
	results := make([]chan T, total)
	for i := range results {
		results[i] = make(chan T, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for i := 0; i < total; i++ {
		i := i
		n := lo + starknetapi.BlockNumber(i)
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				results[i] <- wrapErr(n, gctx.Err())
				return nil
			}
			defer func() { <-sem }()

			v, err := fetch(gctx, n)
			if err != nil {
				v = wrapErr(n, err)
			}
			results[i] <- v
			return nil
		})
	}

	// Drain in order regardless of completion order; a slot that errors
	// does not cancel its siblings; only context cancellation does.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for i := 0; i < total; i++ {
			select {
			case v := <-results[i]:
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	_ = g.Wait()
	<-drained
}
