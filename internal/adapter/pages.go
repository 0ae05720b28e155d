package adapter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Page fetch pacing shared by adapters that walk per-venue or per-race
// detail pages. The stagger keeps request bursts from looking scripted.
const (
	pageConcurrency = 5
	staggerMin      = 500 * time.Millisecond
	staggerMax      = 1500 * time.Millisecond
)

// PageResult pairs a fetched page body with the URL it came from. Err is
// set for pages that failed; callers decide whether partial results are
// acceptable.
type PageResult struct {
	URL  string
	Body string
	Err  error
}

// FetchPages retrieves a set of detail pages through the given fetch
// function with bounded concurrency and a randomized delay before each
// request. Results come back in input order regardless of completion
// order.
func FetchPages(ctx context.Context, urls []string, get func(ctx context.Context, url string) (string, error)) []PageResult {
	results := make([]PageResult, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageConcurrency)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			if err := staggerSleep(gctx); err != nil {
				mu.Lock()
				results[i] = PageResult{URL: url, Err: err}
				mu.Unlock()
				return nil
			}
			body, err := get(gctx, url)
			mu.Lock()
			results[i] = PageResult{URL: url, Body: body, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func staggerSleep(ctx context.Context) error {
	d := staggerMin + time.Duration(rand.Int63n(int64(staggerMax-staggerMin)))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
