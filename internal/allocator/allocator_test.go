package allocator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/printhub/internal/apperr"
)

type counterStub struct {
	mu            sync.Mutex
	photographers int64
	orders        map[string]int64
	codes         map[string]string

	conflicts int
	failWith  error
	calls     int
}

func newCounterStub() *counterStub {
	return &counterStub{
		orders: map[string]int64{"p1": 0},
		codes:  map[string]string{"p1": "JOHN001"},
	}
}

func (s *counterStub) fail() error {
	s.calls++
	if s.failWith != nil {
		return s.failWith
	}
	if s.conflicts > 0 {
		s.conflicts--
		return apperr.ErrConflict
	}
	return nil
}

func (s *counterStub) NextPhotographerSeq(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	s.photographers++
	return s.photographers, nil
}

func (s *counterStub) NextOrderSeq(ctx context.Context, photographerID string) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return "", 0, err
	}
	code, ok := s.codes[photographerID]
	if !ok {
		return "", 0, apperr.NotFound("photographer", photographerID)
	}
	s.orders[photographerID]++
	return code, s.orders[photographerID], nil
}

func newTestAllocator(store CounterStore) *Allocator {
	return New(store, Config{MaxRetries: 3, Backoff: time.Millisecond}, nil)
}

func TestFormatPhotographerID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int64
		want  string
	}{
		{name: "long name", input: "John Smith", count: 7, want: "JOHN007"},
		{name: "short name", input: "Al", count: 12, want: "AL012"},
		{name: "trimmed", input: "  maria ", count: 1, want: "MARI001"},
		{name: "large count", input: "Ravi", count: 1234, want: "RAVI1234"},
		{name: "unicode", input: "Ðorđe", count: 3, want: "ÐORĐ003"},
		{name: "empty falls back", input: "   ", count: 5, want: "PH005"},
		{name: "symbols fall back", input: "--", count: 9, want: "PH009"},
		{name: "path segments dropped", input: "../evil", count: 1, want: "EVIL001"},
		{name: "slash and space dropped", input: "A/B Photo", count: 1, want: "ABPH001"},
		{name: "inner space dropped", input: "Jo Smith", count: 2, want: "JOSM002"},
		{name: "digits kept", input: "Studio 54", count: 3, want: "STUD003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPhotographerID(tt.input, tt.count))
		})
	}
}

func TestFormatOrderID(t *testing.T) {
	assert.Equal(t, "JOHN001_008", FormatOrderID("JOHN001", 8))
	assert.Equal(t, "JOHN001_1000", FormatOrderID("JOHN001", 1000))
}

func TestOrderIDContinuesFromStoredCounter(t *testing.T) {
	store := newCounterStub()
	store.orders["p1"] = 7
	a := newTestAllocator(store)

	first, err := a.OrderID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, OrderID{ID: "JOHN001_008", Code: "JOHN001", Seq: 8}, first)
	assert.Equal(t, int64(8), store.orders["p1"])

	second, err := a.OrderID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), second.Seq)
}

func TestOrderIDConcurrentCallsAreUniqueAndGapFree(t *testing.T) {
	const n = 64
	store := newCounterStub()
	a := newTestAllocator(store)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []int64
		ids  = make(map[string]struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.OrderID(context.Background(), "p1")
			if err != nil {
				t.Errorf("OrderID: %v", err)
				return
			}
			mu.Lock()
			seqs = append(seqs, id.Seq)
			ids[id.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seqs, n)
	assert.Len(t, ids, n)
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, s := range seqs {
		assert.Equal(t, int64(i+1), s)
	}
}

func TestRetriesTransientConflicts(t *testing.T) {
	store := newCounterStub()
	store.conflicts = 2
	a := newTestAllocator(store)

	id, err := a.PhotographerID(context.Background(), "John")
	require.NoError(t, err)
	assert.Equal(t, "JOHN001", id)
	assert.Equal(t, 3, store.calls)
}

func TestSurfacesAllocationFailedAfterBoundedRetries(t *testing.T) {
	store := newCounterStub()
	store.conflicts = 100
	a := newTestAllocator(store)

	_, err := a.OrderID(context.Background(), "p1")

	require.ErrorIs(t, err, apperr.ErrAllocationFailed)
	var ae *apperr.AllocationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 4, ae.Attempts)
	assert.Equal(t, 4, store.calls)
	assert.Equal(t, int64(0), store.orders["p1"])
}

func TestMissingPhotographerIsNotRetried(t *testing.T) {
	store := newCounterStub()
	a := newTestAllocator(store)

	_, err := a.OrderID(context.Background(), "ghost")

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrAllocationFailed)
	assert.Equal(t, 1, store.calls)
}

func TestNonRetryableErrorFailsImmediately(t *testing.T) {
	store := newCounterStub()
	store.failWith = errors.New("disk full")
	a := newTestAllocator(store)

	_, err := a.PhotographerID(context.Background(), "John")

	assert.ErrorIs(t, err, apperr.ErrAllocationFailed)
	assert.Equal(t, 1, store.calls)
}

func TestRespectsCancellation(t *testing.T) {
	store := newCounterStub()
	store.conflicts = 100
	a := New(store, Config{MaxRetries: 100, Backoff: 50 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.OrderID(ctx, "p1")

	assert.ErrorIs(t, err, apperr.ErrAllocationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
