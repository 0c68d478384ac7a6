package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateGetCancel(t *testing.T) {
	reg := NewRegistry(10 * time.Minute)
	job := reg.Create("req1", "page1", time.Now().Add(time.Minute))

	got, ok := reg.Get("req1")
	require.True(t, ok)
	assert.Equal(t, job, got)
	assert.False(t, got.Cancelled())

	assert.True(t, reg.Cancel("req1"))
	assert.True(t, got.Cancelled())

	assert.False(t, reg.Cancel("unknown"))
}

func TestRegistry_EachJobCancelledIndependently(t *testing.T) {
	reg := NewRegistry(10 * time.Minute)
	reg.Create("a", "pageA", time.Now().Add(time.Minute))
	reg.Create("b", "pageB", time.Now().Add(time.Minute))

	reg.Cancel("a")

	jobA, _ := reg.Get("a")
	jobB, _ := reg.Get("b")
	assert.True(t, jobA.Cancelled())
	assert.False(t, jobB.Cancelled())
}

func TestRegistry_SweepEvictsOnlyTerminalExpired(t *testing.T) {
	reg := NewRegistry(10 * time.Millisecond)
	job := reg.Create("req1", "page1", time.Now().Add(time.Minute))
	job.UpdateProgress(PhaseDone, 1, 1, time.Now().Add(-time.Hour))

	active := reg.Create("req2", "page2", time.Now().Add(time.Minute))
	active.UpdateProgress(PhaseUploading, 1, 2, time.Now())

	reg.sweep()

	_, ok := reg.Get("req1")
	assert.False(t, ok, "terminal expired job should be evicted")

	_, ok2 := reg.Get("req2")
	assert.True(t, ok2, "active job should not be evicted")
}

func TestJob_SnapshotIsValueCopy(t *testing.T) {
	job := &Job{RequestID: "r1", Phase: PhaseUploading}
	job.AddWarning("w1")

	snap := job.Snapshot()
	job.AddWarning("w2")

	assert.Equal(t, []string{"w1"}, snap.Warnings)
}

func TestStore_UpsertAndGet(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	rec := Record{
		RequestID:    "req1",
		TargetPageID: "page1",
		Phase:        PhaseDone,
		SourceCounts: map[string]int{"tables": 1},
		NotionCounts: map[string]int{"tables": 1},
		Coverage:     0.995,
		HasErrors:    false,
		Warnings:     []string{"w1"},
	}
	require.NoError(t, store.Upsert(context.Background(), rec))

	got, err := store.Get(context.Background(), "req1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Coverage, got.Coverage)
	assert.Equal(t, rec.SourceCounts, got.SourceCounts)

	count, err := store.CountByPhase(context.Background(), PhaseDone)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
