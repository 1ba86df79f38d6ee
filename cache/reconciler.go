// Package cache implements the client-side optimistic cache
// reconciler: mutations are mirrored into local snapshots immediately,
// rolled back verbatim when the server rejects them, and always
// settled with a consistency-restoring refetch.
package cache

import (
	"context"
	"sync"
)

// Command is one optimistic mutation over a snapshot. Apply returns
// the optimistic next snapshot; Affected names the query groups the
// mutation touches.
type Command[S any] interface {
	Affected() []string
	Apply(snapshot S) S
}

// Rollbacker lets a command customize what is restored on failure.
// Commands without it get the pre-mutation snapshot back verbatim.
type Rollbacker[S any] interface {
	Rollback(prev S) S
}

// FetchFunc loads the authoritative snapshot for a query group.
type FetchFunc[S any] func(ctx context.Context) (S, error)

type query[S any] struct {
	snapshot S
	fetch    FetchFunc[S]
	// cancel aborts the in-flight refetch so a stale response cannot
	// overwrite an optimistic write.
	cancel context.CancelFunc
	stale  bool
}

// Reconciler executes commands against registered query groups. It is
// single-threaded from the caller's perspective: Run applies, commits,
// and settles before returning; refetches happen synchronously through
// Refetch so tests and UI loops stay deterministic.
type Reconciler[S any] struct {
	mu      sync.Mutex
	queries map[string]*query[S]
}

func NewReconciler[S any]() *Reconciler[S] {
	return &Reconciler[S]{queries: make(map[string]*query[S])}
}

// Register adds a query group with its initial snapshot and fetch
// function. Re-registering replaces both.
func (r *Reconciler[S]) Register(group string, initial S, fetch FetchFunc[S]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queries[group]; ok && q.cancel != nil {
		q.cancel()
	}
	r.queries[group] = &query[S]{snapshot: initial, fetch: fetch}
}

// Snapshot returns the current local snapshot for a group.
func (r *Reconciler[S]) Snapshot(group string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queries[group]
	if !ok {
		var zero S
		return zero, false
	}
	return q.snapshot, true
}

// Stale reports whether a group needs a refetch to be authoritative.
func (r *Reconciler[S]) Stale(group string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queries[group]
	return ok && q.stale
}

// Run executes one optimistic mutation: cancel in-flight refetches for
// the affected groups, apply the command locally, run commit against
// the server, restore the previous snapshots if it fails, and mark the
// groups stale either way so the next Refetch restores consistency.
func (r *Reconciler[S]) Run(ctx context.Context, cmd Command[S], commit func(ctx context.Context) error) error {
	affected := cmd.Affected()

	r.mu.Lock()
	prev := make(map[string]S, len(affected))
	for _, group := range affected {
		q, ok := r.queries[group]
		if !ok {
			continue
		}
		if q.cancel != nil {
			q.cancel()
			q.cancel = nil
		}
		prev[group] = q.snapshot
		q.snapshot = cmd.Apply(q.snapshot)
	}
	r.mu.Unlock()

	err := commit(ctx)

	r.mu.Lock()
	if err != nil {
		for group, snapshot := range prev {
			q, ok := r.queries[group]
			if !ok {
				continue
			}
			if rb, ok := any(cmd).(Rollbacker[S]); ok {
				q.snapshot = rb.Rollback(snapshot)
			} else {
				q.snapshot = snapshot
			}
		}
	}
	// Settled: force a refetch whether the commit succeeded or not, so
	// the local cache converges on the authoritative state.
	for _, group := range affected {
		if q, ok := r.queries[group]; ok {
			q.stale = true
		}
	}
	r.mu.Unlock()

	return err
}

// Refetch reloads a stale group from its fetch function. A concurrent
// Run against the same group cancels this fetch; the cancelled result
// is discarded.
func (r *Reconciler[S]) Refetch(ctx context.Context, group string) error {
	r.mu.Lock()
	q, ok := r.queries[group]
	if !ok || q.fetch == nil {
		r.mu.Unlock()
		return nil
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	fetch := q.fetch
	r.mu.Unlock()

	snapshot, err := fetch(fetchCtx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if fetchCtx.Err() != nil {
		// A newer mutation cancelled this fetch; its result is stale.
		return fetchCtx.Err()
	}
	q.snapshot = snapshot
	q.stale = false
	q.cancel = nil
	return nil
}
