package cache

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/salesync/observe"
	"github.com/jonwraymond/salesync/tags"
)

// InvalidationResult reports what one invalidation batch touched.
type InvalidationResult struct {
	Refetched []string
	Evicted   []string
}

// Invalidate resolves tags to query keys. Each subscribed key is marked stale
// and refetched once; unsubscribed keys are evicted without a fetch. Tags with
// no providers are ignored. Invalidate waits for the refetches to land or for
// ctx to end; refetch failures are recorded on their entries.
func (e *Engine) Invalidate(ctx context.Context, invalidated ...tags.Tag) (InvalidationResult, error) {
	var res InvalidationResult
	if len(invalidated) == 0 {
		return res, nil
	}
	e.mu.Lock()
	keys := e.index.KeysForTags(invalidated...)
	if e.closed {
		e.mu.Unlock()
		return res, ErrClosed
	}
	var pending []<-chan singleflight.Result
	ents, violations := e.checkIndexLocked(ctx, keys)
	for _, ent := range ents {
		if len(ent.subs) == 0 {
			e.evictLocked(ent)
			res.Evicted = append(res.Evicted, ent.key)
			continue
		}
		ent.stale = true
		pending = append(pending, e.startFetchLocked(ent, true))
		res.Refetched = append(res.Refetched, ent.key)
	}
	e.mu.Unlock()

	for _, v := range violations {
		e.reportError(ctx, "", v)
	}
	e.metrics.RecordInvalidation(ctx, len(res.Refetched), len(res.Evicted))
	e.logger.Debug(ctx, "tags invalidated",
		observe.F("tags", tagStrings(invalidated)),
		observe.F("refetched", len(res.Refetched)),
		observe.F("evicted", len(res.Evicted)))

	return res, wait(ctx, pending)
}

// Mutate runs a write. On success it invalidates the tags the mutation
// declares for its result; on failure nothing is invalidated and the error is
// passed to the error handler before being returned.
func (e *Engine) Mutate(ctx context.Context, m Mutation) (any, error) {
	if m.Run == nil {
		return nil, ErrNilMutation
	}

	result, err := m.Run(ctx)
	if err != nil {
		e.logger.Warn(ctx, "mutation failed", observe.F("endpoint", m.Endpoint), observe.Err(err))
		e.reportError(ctx, m.Endpoint, err)
		return nil, err
	}

	if m.Invalidates == nil {
		return result, nil
	}
	if _, err := e.Invalidate(ctx, m.Invalidates(result)...); err != nil {
		return result, err
	}
	return result, nil
}

// Reconnected refetches every subscribed entry whose subscribers asked for
// refetch on reconnect, and waits for the fetches to land. Fetches started
// while offline are superseded.
func (e *Engine) Reconnected(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	var pending []<-chan singleflight.Result
	for _, ent := range e.entries {
		if len(ent.subs) > 0 && ent.wantsReconnectLocked() {
			pending = append(pending, e.startFetchLocked(ent, true))
		}
	}
	e.mu.Unlock()

	e.logger.Info(ctx, "connectivity restored", observe.F("refetching", len(pending)))
	return wait(ctx, pending)
}

func wait(ctx context.Context, pending []<-chan singleflight.Result) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range pending {
		g.Go(func() error {
			select {
			case <-ch:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}

func tagStrings(ts []tags.Tag) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
