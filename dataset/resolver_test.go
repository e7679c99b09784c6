package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

type stubQuerier struct {
	rows  []Row
	err   error
	calls int
}

func (s *stubQuerier) GroupBy(ctx context.Context, q GroupQuery) ([]Row, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func TestResolveSingleColumn(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := &stubQuerier{rows: []Row{
		{"team": "Chelsea"},
		{"team": "Arsenal"},
		{"team": "Arsenal"},
		{"team": ""},
		{"team": "__pending__"},
	}}
	r := NewResolver(q, nil, 0, logger)

	res := r.Resolve(context.Background(), "sql:matches", nil, []string{"team"}, nil)

	if diff := cmp.Diff([]string{"Arsenal", "Chelsea"}, res.Combinations); diff != "" {
		t.Errorf("combinations mismatch (-want +got):\n%s", diff)
	}
	if res.Truncated {
		t.Error("small result reported as truncated")
	}
}

func TestResolveMultiColumnTuples(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := &stubQuerier{rows: []Row{
		{"team": "Arsenal", "season": "2023", "venue": "Home"},
		{"team": "Arsenal", "season": "2023", "venue": "Away"},
		{"team": "Chelsea", "season": "2022", "venue": "Home"},
		{"team": "Chelsea", "season": ""},
	}}
	r := NewResolver(q, nil, 0, logger)

	res := r.Resolve(context.Background(), "sql:matches", nil, []string{"team", "season"}, []string{"venue"})

	if diff := cmp.Diff([]string{"Arsenal, 2023", "Chelsea, 2022"}, res.Combinations); diff != "" {
		t.Errorf("combinations mismatch (-want +got):\n%s", diff)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	// First seen display value wins for a repeated tuple.
	if got := res.Rows[0].DisplayValues["venue"]; got != "Home" {
		t.Errorf("display value = %q, want %q", got, "Home")
	}
	if got := res.Rows[0].GroupValues["team"]; got != "Arsenal" {
		t.Errorf("group value = %q, want %q", got, "Arsenal")
	}
}

func TestResolveCapTruncates(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	rows := make([]Row, 0, 10)
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		rows = append(rows, Row{"team": v})
	}
	q := &stubQuerier{rows: rows}
	r := NewResolver(q, nil, 3, logger)

	res := r.Resolve(context.Background(), "sql:matches", nil, []string{"team"}, nil)

	if len(res.Combinations) != 3 {
		t.Errorf("combinations = %d, want 3", len(res.Combinations))
	}
	if !res.Truncated {
		t.Error("capped result not flagged truncated")
	}
}

func TestResolveQueryErrorYieldsEmpty(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := &stubQuerier{err: errors.New("connection refused")}
	r := NewResolver(q, nil, 0, logger)

	res := r.Resolve(context.Background(), "sql:matches", nil, []string{"team"}, nil)

	if len(res.Combinations) != 0 || len(res.Rows) != 0 {
		t.Errorf("error resolution not empty: %+v", res)
	}
}

func TestResolveNoGroupColumns(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := &stubQuerier{rows: []Row{{"team": "Arsenal"}}}
	r := NewResolver(q, nil, 0, logger)

	res := r.Resolve(context.Background(), "sql:matches", nil, nil, nil)

	if len(res.Combinations) != 0 {
		t.Error("resolution without group columns must be empty")
	}
	if q.calls != 0 {
		t.Error("querier must not be hit without group columns")
	}
}

func TestResolveCachesSuccessesOnly(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := &stubQuerier{err: errors.New("down")}
	cache := NewCache(time.Minute, 8)
	r := NewResolver(q, cache, 0, logger)

	r.Resolve(context.Background(), "sql:matches", nil, []string{"team"}, nil)
	if q.calls != 1 {
		t.Fatalf("calls = %d, want 1", q.calls)
	}

	// The failure must not be cached; recovery hits the querier again.
	q.err = nil
	q.rows = []Row{{"team": "Arsenal"}}
	res := r.Resolve(context.Background(), "sql:matches", nil, []string{"team"}, nil)
	if q.calls != 2 {
		t.Fatalf("calls = %d, want 2 after failure", q.calls)
	}
	if diff := cmp.Diff([]string{"Arsenal"}, res.Combinations); diff != "" {
		t.Errorf("combinations mismatch (-want +got):\n%s", diff)
	}

	// Now the success is cached.
	r.Resolve(context.Background(), "sql:matches", nil, []string{"team"}, nil)
	if q.calls != 2 {
		t.Errorf("calls = %d, want 2 after cached success", q.calls)
	}

	// A different selection key misses the cache.
	r.Resolve(context.Background(), "sql:matches,extra", nil, []string{"team"}, nil)
	if q.calls != 3 {
		t.Errorf("calls = %d, want 3 for a new source key", q.calls)
	}
}

// blockingQuerier holds every GroupBy call until release is closed, so a
// test can pile up concurrent resolves against one pending call.
type blockingQuerier struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	calls   int32
	rows    []Row
}

func (b *blockingQuerier) GroupBy(ctx context.Context, q GroupQuery) ([]Row, error) {
	atomic.AddInt32(&b.calls, 1)
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.rows, nil
}

func TestConcurrentResolvesShareOnePendingCall(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	q := &blockingQuerier{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		rows:    []Row{{"team": "Arsenal"}, {"team": "Chelsea"}},
	}
	cache := NewCache(time.Minute, 8)
	r := NewResolver(q, cache, 0, logger)

	const callers = 8
	results := make([]Resolution, callers)
	var wg sync.WaitGroup
	resolve := func(i int) {
		defer wg.Done()
		results[i] = r.Resolve(context.Background(), "sql:matches", nil, []string{"team"}, nil)
	}

	// First caller owns the pending call; the rest pile up behind it while
	// the querier is held open.
	wg.Add(1)
	go resolve(0)
	<-q.entered
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go resolve(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(q.release)
	wg.Wait()

	if got := atomic.LoadInt32(&q.calls); got != 1 {
		t.Errorf("GroupBy calls = %d, want 1", got)
	}
	want := []string{"Arsenal", "Chelsea"}
	for i, res := range results {
		if diff := cmp.Diff(want, res.Combinations); diff != "" {
			t.Errorf("caller %d combinations mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestIsInternalMarker(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"__pending__", true},
		{"__select_all__", true},
		{"regular", false},
		{"__", true},
		{"__this_is_a_very_long_marker_name__", false},
		{"_single_", false},
	}
	for _, tt := range tests {
		if got := isInternalMarker(tt.value); got != tt.want {
			t.Errorf("isInternalMarker(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
