package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appendCmd struct {
	groups []string
	item   string
}

func (c appendCmd) Affected() []string { return c.groups }

func (c appendCmd) Apply(snapshot []string) []string {
	out := make([]string, len(snapshot), len(snapshot)+1)
	copy(out, snapshot)
	return append(out, c.item)
}

type markerCmd struct {
	appendCmd
}

func (c markerCmd) Rollback(prev []string) []string {
	out := make([]string, len(prev), len(prev)+1)
	copy(out, prev)
	return append(out, "send-failed")
}

func staticFetch(items ...string) FetchFunc[[]string] {
	return func(ctx context.Context) ([]string, error) {
		return items, nil
	}
}

func TestRunCommitsOptimistically(t *testing.T) {
	r := NewReconciler[[]string]()
	r.Register("messages", []string{"a"}, staticFetch("a", "b"))

	var sawDuringCommit []string
	err := r.Run(context.Background(), appendCmd{groups: []string{"messages"}, item: "b"}, func(ctx context.Context) error {
		// The optimistic write is visible before the server confirms.
		sawDuringCommit, _ = r.Snapshot("messages")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sawDuringCommit)

	snapshot, ok := r.Snapshot("messages")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, snapshot)

	// Even success leaves the group stale until the next refetch.
	assert.True(t, r.Stale("messages"))
	require.NoError(t, r.Refetch(context.Background(), "messages"))
	assert.False(t, r.Stale("messages"))
}

func TestRunRollsBackOnFailure(t *testing.T) {
	r := NewReconciler[[]string]()
	r.Register("messages", []string{"a"}, staticFetch("a"))

	commitErr := errors.New("server rejected")
	err := r.Run(context.Background(), appendCmd{groups: []string{"messages"}, item: "b"}, func(ctx context.Context) error {
		return commitErr
	})
	assert.ErrorIs(t, err, commitErr)

	// The previous snapshot comes back verbatim.
	snapshot, _ := r.Snapshot("messages")
	assert.Equal(t, []string{"a"}, snapshot)
	assert.True(t, r.Stale("messages"))
}

func TestRunCustomRollback(t *testing.T) {
	r := NewReconciler[[]string]()
	r.Register("messages", []string{"a"}, staticFetch("a"))

	cmd := markerCmd{appendCmd{groups: []string{"messages"}, item: "b"}}
	err := r.Run(context.Background(), cmd, func(ctx context.Context) error {
		return errors.New("offline")
	})
	require.Error(t, err)

	snapshot, _ := r.Snapshot("messages")
	assert.Equal(t, []string{"a", "send-failed"}, snapshot)
}

func TestRunTouchesOnlyAffectedGroups(t *testing.T) {
	r := NewReconciler[[]string]()
	r.Register("messages", []string{"m"}, staticFetch("m"))
	r.Register("conversations", []string{"c"}, staticFetch("c"))

	err := r.Run(context.Background(), appendCmd{groups: []string{"messages"}, item: "x"}, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	assert.True(t, r.Stale("messages"))
	assert.False(t, r.Stale("conversations"))
	untouched, _ := r.Snapshot("conversations")
	assert.Equal(t, []string{"c"}, untouched)
}

func TestMutationCancelsInFlightRefetch(t *testing.T) {
	r := NewReconciler[[]string]()

	started := make(chan struct{})
	release := make(chan struct{})
	r.Register("messages", []string{"a"}, func(ctx context.Context) ([]string, error) {
		close(started)
		<-release
		return []string{"from-server"}, nil
	})

	refetchDone := make(chan error, 1)
	go func() {
		refetchDone <- r.Refetch(context.Background(), "messages")
	}()

	<-started
	err := r.Run(context.Background(), appendCmd{groups: []string{"messages"}, item: "b"}, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	close(release)

	// The cancelled fetch must not clobber the optimistic write.
	assert.Error(t, <-refetchDone)
	snapshot, _ := r.Snapshot("messages")
	assert.Equal(t, []string{"a", "b"}, snapshot)

	// A fresh refetch settles on the server state.
	r.Register("messages", snapshot, staticFetch("from-server"))
	require.NoError(t, r.Refetch(context.Background(), "messages"))
	snapshot, _ = r.Snapshot("messages")
	assert.Equal(t, []string{"from-server"}, snapshot)
}

func TestSnapshotUnknownGroup(t *testing.T) {
	r := NewReconciler[[]string]()
	snapshot, ok := r.Snapshot("missing")
	assert.False(t, ok)
	assert.Nil(t, snapshot)
	assert.False(t, r.Stale("missing"))
	assert.NoError(t, r.Refetch(context.Background(), "missing"))
}
