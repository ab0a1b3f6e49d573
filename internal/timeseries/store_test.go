package timeseries

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func sampleAt(i int) Sample {
	return Sample{
		Timestamp: base.Add(time.Duration(i) * time.Minute),
		Price:     decimal.NewFromInt(int64(2_900_000 + i*1000)),
	}
}

func TestEmptyStore(t *testing.T) {
	store := NewStore(10)

	assert.True(t, store.IsEmpty())
	assert.Empty(t, store.Recent(5))
	assert.NotNil(t, store.Recent(5))

	_, err := store.Latest()
	assert.ErrorIs(t, err, ErrEmptyStore)

	_, err = store.OldestInWindow()
	assert.ErrorIs(t, err, ErrEmptyStore)
}

func TestAppendBelowCapacity(t *testing.T) {
	store := NewStore(5)
	for i := 0; i < 3; i++ {
		store.Append(sampleAt(i))
	}

	assert.Equal(t, 3, store.Len())
	got := store.Recent(10)
	require.Len(t, got, 3)
	for i, s := range got {
		assert.True(t, s.Timestamp.Equal(sampleAt(i).Timestamp))
	}

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.True(t, latest.Price.Equal(sampleAt(2).Price))

	oldest, err := store.OldestInWindow()
	require.NoError(t, err)
	assert.True(t, oldest.Price.Equal(sampleAt(0).Price))
}

func TestCapacityBoundAndFIFO(t *testing.T) {
	const capacity = 7
	store := NewStore(capacity)

	for i := 0; i < 40; i++ {
		store.Append(sampleAt(i))
		assert.LessOrEqual(t, store.Len(), capacity)

		got := store.Snapshot()
		first := i + 1 - len(got)
		for j, s := range got {
			assert.True(t, s.Price.Equal(sampleAt(first+j).Price), "step %d index %d", i, j)
		}
	}
}

func TestRetentionIgnoresTimestamps(t *testing.T) {
	store := NewStore(3)
	// arrival order wins even when timestamps go backwards
	store.Append(sampleAt(5))
	store.Append(sampleAt(1))
	store.Append(sampleAt(9))
	store.Append(sampleAt(0))

	got := store.Recent(3)
	require.Len(t, got, 3)
	assert.True(t, got[0].Price.Equal(sampleAt(1).Price))
	assert.True(t, got[1].Price.Equal(sampleAt(9).Price))
	assert.True(t, got[2].Price.Equal(sampleAt(0).Price))
}

func TestRecentDoesNotMutate(t *testing.T) {
	store := NewStore(4)
	for i := 0; i < 4; i++ {
		store.Append(sampleAt(i))
	}

	got := store.Recent(2)
	got[0] = Sample{}

	again := store.Recent(2)
	assert.True(t, again[0].Price.Equal(sampleAt(2).Price))
	assert.Equal(t, 4, store.Len())
}

func TestEndToEndWindow(t *testing.T) {
	store := NewStore(100)
	for i := 0; i < 120; i++ {
		store.Append(sampleAt(i))
	}

	got := store.Recent(200)
	require.Len(t, got, 100)
	for i, s := range got {
		assert.True(t, s.Timestamp.Equal(sampleAt(20+i).Timestamp))
	}
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewStore(0).Capacity())
}

func TestConcurrentAppendAndRead(t *testing.T) {
	store := NewStore(16)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			store.Append(sampleAt(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			got := store.Recent(16)
			assert.LessOrEqual(t, len(got), 16)
		}
	}()
	wg.Wait()

	assert.Equal(t, 16, store.Len())
}
