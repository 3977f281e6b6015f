package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marselab/equalizerd/internal/eq"
)

// Gateway serializes persistence traffic. At most one save is in flight at
// a time and a newer save cancels and supersedes an older one; that is the
// only cancellation path. A load or teardown never aborts a pending
// snapshot, it waits for it to land, so the view-exit write is durable.
// Failures are held as a retryable error state instead of being swallowed.
type Gateway struct {
	client *Client
	log    *zap.SugaredLogger

	mu         sync.Mutex
	saveCancel context.CancelFunc // pending save, superseded only by a newer save
	saveSeq    uint64
	lastErr    error

	wg sync.WaitGroup
}

// NewGateway wraps a store client.
func NewGateway(client *Client, log *zap.SugaredLogger) *Gateway {
	return &Gateway{client: client, log: log}
}

// beginSave supersedes any pending save and registers a new one.
func (g *Gateway) beginSave(parent context.Context) (context.Context, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveCancel != nil {
		g.saveCancel() // the older snapshot is stale, a newer one replaces it
	}
	ctx, cancel := context.WithCancel(parent)
	g.saveCancel = cancel
	g.saveSeq++
	return ctx, g.saveSeq
}

// finishSave records the result unless a newer save superseded this one.
// The completed request's cancel is invoked to release its context; a
// superseded request's cancel was already invoked by beginSave.
func (g *Gateway) finishSave(seq uint64, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.saveSeq {
		return false // stale result, a newer save owns the state
	}
	if g.saveCancel != nil {
		g.saveCancel()
		g.saveCancel = nil
	}
	g.lastErr = err
	return true
}

// Load fetches the vector stored for the account. A pending snapshot save
// is flushed first so a re-attach reads its own write. ErrNotFound is a
// valid outcome (never saved) and does not set the error state.
func (g *Gateway) Load(ctx context.Context, key uuid.UUID) (eq.GainVector, error) {
	g.wg.Wait()
	v, err := g.client.Load(ctx, key)

	recorded := err
	if errors.Is(err, ErrNotFound) {
		recorded = nil
	}
	g.mu.Lock()
	g.lastErr = recorded
	g.mu.Unlock()
	return v, err
}

// Save writes synchronously, superseding any pending async save. Used by
// the retry path.
func (g *Gateway) Save(ctx context.Context, key uuid.UUID, v eq.GainVector) error {
	opCtx, seq := g.beginSave(ctx)
	err := g.client.Save(opCtx, key, v.Clone())
	g.finishSave(seq, err)
	return err
}

// SaveAsync requests a background save, the snapshot-on-exit path. A save
// already in flight is cancelled and superseded.
func (g *Gateway) SaveAsync(key uuid.UUID, v eq.GainVector) {
	opCtx, seq := g.beginSave(context.Background())
	snapshot := v.Clone()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := g.client.Save(opCtx, key, snapshot)
		if g.finishSave(seq, err) && err != nil {
			g.log.Warnw("gain save failed, state kept for retry", "user", key, "error", err)
		}
	}()
}

// LastError returns the retryable error state from the most recent
// completed request, nil when it succeeded.
func (g *Gateway) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Close drains pending background saves. The final snapshot is never
// cancelled on teardown; the client's request timeout bounds the wait.
func (g *Gateway) Close() {
	g.wg.Wait()
}
