package results

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/retreat-client/internal/apitest"
	"github.com/and161185/retreat-client/internal/clock"
	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/gateway"
	"github.com/and161185/retreat-client/internal/model"
	"github.com/and161185/retreat-client/internal/query"
)

// scriptedFetcher returns per-term results; terms listed in block wait for release first,
// ignoring cancellation, so a superseded response really does arrive late.
type scriptedFetcher struct {
	mu      sync.Mutex
	calls   []model.SearchQuery
	block   map[string]chan struct{}
	entered chan string
	fail    error
}

func newScripted() *scriptedFetcher {
	return &scriptedFetcher{block: map[string]chan struct{}{}, entered: make(chan string, 16)}
}

func (f *scriptedFetcher) Retreats(ctx context.Context, q model.SearchQuery) (model.ResultPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	ch := f.block[q.Term]
	fail := f.fail
	f.mu.Unlock()
	f.entered <- q.Term
	if ch != nil {
		<-ch
	}
	if fail != nil {
		return model.ResultPage{}, fail
	}
	return model.ResultPage{
		Items:      []model.Listing{{ID: len(q.Term), Title: q.Term}},
		TotalPages: 2,
	}, nil
}

func (f *scriptedFetcher) Calls() []model.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SearchQuery(nil), f.calls...)
}

func settled(seq uint64, term string, page int) query.Settled {
	return query.Settled{Seq: seq, Query: model.SearchQuery{Term: term, Page: page, PageSize: model.DefaultPageSize}}
}

func waitFor(t *testing.T, st *Store, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = st.Snapshot()
		return cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestSetQuery_AppliesResult(t *testing.T) {
	t.Parallel()

	f := newScripted()
	var changes atomic.Int32
	st := New(f, zaptest.NewLogger(t), func() { changes.Add(1) })
	t.Cleanup(st.Close)

	st.SetQuery(context.Background(), settled(1, "yoga", 1))
	snap := waitFor(t, st, func(s Snapshot) bool { return !s.Loading && s.Seq == 1 })
	require.Equal(t, "yoga", snap.Page.Items[0].Title)
	require.Equal(t, 2, snap.Page.TotalPages)
	require.True(t, snap.HasQuery)
	require.NoError(t, st.LastError())
	require.GreaterOrEqual(t, changes.Load(), int32(2), "loading and ready both notify")
}

func TestTotalPagesFor_OnlyCountsPagesOfThatTerm(t *testing.T) {
	t.Parallel()

	f := newScripted()
	st := New(f, zaptest.NewLogger(t), nil)
	t.Cleanup(st.Close)

	require.Equal(t, 1, st.Snapshot().TotalPagesFor(""))

	st.SetQuery(context.Background(), settled(1, "yoga", 1))
	snap := waitFor(t, st, func(s Snapshot) bool { return !s.Loading && s.Seq == 1 })
	require.Equal(t, "yoga", snap.PageTerm)
	require.Equal(t, 2, snap.TotalPagesFor("yoga"))
	require.Equal(t, 1, snap.TotalPagesFor("zen"), "typed but not settled yet")

	release := make(chan struct{})
	f.mu.Lock()
	f.block["zen"] = release
	f.mu.Unlock()
	st.SetQuery(context.Background(), settled(2, "zen", 1))
	waitFor(t, st, func(s Snapshot) bool { return s.Query.Term == "zen" && s.Loading })
	for term := range f.entered {
		if term == "zen" {
			break
		}
	}
	snap = st.Snapshot()
	require.Equal(t, "yoga", snap.PageTerm, "old page stays visible while loading")
	require.Equal(t, 1, snap.TotalPagesFor("zen"))

	close(release)
	snap = waitFor(t, st, func(s Snapshot) bool { return !s.Loading && s.Seq == 2 })
	require.Equal(t, 2, snap.TotalPagesFor("zen"))
}

func TestSetQuery_SupersededResponseIsNeverApplied(t *testing.T) {
	t.Parallel()

	f := newScripted()
	releaseA := make(chan struct{})
	f.block["slow"] = releaseA
	st := New(f, zaptest.NewLogger(t), nil)

	st.SetQuery(context.Background(), settled(1, "slow", 1))
	require.Equal(t, "slow", <-f.entered)

	st.SetQuery(context.Background(), settled(2, "fast", 1))
	waitFor(t, st, func(s Snapshot) bool { return !s.Loading && s.Seq == 2 })

	close(releaseA)
	st.Close() // waits for the late goroutine

	snap := st.Snapshot()
	require.Equal(t, uint64(2), snap.Seq)
	require.Equal(t, "fast", snap.Page.Items[0].Title)
	require.Equal(t, "fast", snap.Query.Term)
}

func TestSetQuery_OlderSeqIgnored(t *testing.T) {
	t.Parallel()

	f := newScripted()
	st := New(f, nil, nil)
	t.Cleanup(st.Close)

	st.SetQuery(context.Background(), settled(5, "new", 1))
	waitFor(t, st, func(s Snapshot) bool { return s.Seq == 5 })
	st.SetQuery(context.Background(), settled(4, "old", 1))

	require.Len(t, f.Calls(), 1)
	require.Equal(t, "new", st.Snapshot().Query.Term)
}

func TestSetQuery_UnchangedTupleIsNotRefetched(t *testing.T) {
	t.Parallel()

	f := newScripted()
	st := New(f, nil, nil)
	t.Cleanup(st.Close)

	st.SetQuery(context.Background(), settled(1, "x", 1))
	waitFor(t, st, func(s Snapshot) bool { return s.Seq == 1 })
	st.SetQuery(context.Background(), settled(2, "x", 1))
	require.Len(t, f.Calls(), 1)

	forced := settled(3, "x", 1)
	forced.Forced = true
	st.SetQuery(context.Background(), forced)
	waitFor(t, st, func(s Snapshot) bool { return s.Seq == 3 })
	require.Len(t, f.Calls(), 2)
}

func TestFetchError_KeepsPreviousPage(t *testing.T) {
	t.Parallel()

	f := newScripted()
	st := New(f, zaptest.NewLogger(t), nil)
	t.Cleanup(st.Close)

	st.SetQuery(context.Background(), settled(1, "ok", 1))
	waitFor(t, st, func(s Snapshot) bool { return s.Seq == 1 && !s.Loading })

	f.mu.Lock()
	f.fail = errs.ErrNetwork
	f.mu.Unlock()
	st.SetQuery(context.Background(), settled(2, "broken", 1))

	snap := waitFor(t, st, func(s Snapshot) bool { return !s.Loading && s.Err != nil })
	require.ErrorIs(t, snap.Err, errs.ErrNetwork)
	require.Equal(t, "ok", snap.Page.Items[0].Title, "stale data survives the error")
	require.Equal(t, uint64(1), snap.Seq)
	require.ErrorIs(t, st.LastError(), errs.ErrNetwork)
}

func TestCancelHandle_ReturnsToReadyWithStaleData(t *testing.T) {
	t.Parallel()

	f := newScripted()
	release := make(chan struct{})
	f.block["hang"] = release
	st := New(f, nil, nil)

	st.SetQuery(context.Background(), settled(1, "ok", 1))
	waitFor(t, st, func(s Snapshot) bool { return s.Seq == 1 && !s.Loading })

	cancel := st.SetQuery(context.Background(), settled(2, "hang", 1))
	<-f.entered // "ok"
	require.Equal(t, "hang", <-f.entered)
	require.True(t, st.Snapshot().Loading)

	cancel()
	snap := st.Snapshot()
	require.False(t, snap.Loading)
	require.Equal(t, "ok", snap.Page.Items[0].Title)

	close(release)
	st.Close()
	require.Equal(t, uint64(1), st.Snapshot().Seq)
	require.NoError(t, st.LastError())
}

func TestRefresh_ReissuesCurrentQuery(t *testing.T) {
	t.Parallel()

	f := newScripted()
	st := New(f, nil, nil)
	t.Cleanup(st.Close)

	st.Refresh(context.Background())
	require.Empty(t, f.Calls(), "nothing to refresh before the first query")

	st.SetQuery(context.Background(), settled(1, "x", 2))
	waitFor(t, st, func(s Snapshot) bool { return s.Seq == 1 && !s.Loading })
	st.Refresh(context.Background())
	require.Eventually(t, func() bool { return len(f.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, f.Calls()[0], f.Calls()[1])
}

func TestAtMostOneFetchInFlight(t *testing.T) {
	t.Parallel()

	f := newScripted()
	gate := make(chan struct{})
	for _, term := range []string{"a", "b", "c", "d"} {
		f.block[term] = gate
	}
	st := New(f, nil, nil)

	for i, term := range []string{"a", "b", "c", "d"} {
		st.SetQuery(context.Background(), settled(uint64(i+1), term, 1))
		<-f.entered
	}
	close(gate)
	st.Close()

	// the fake ignores cancellation, so the four calls overlap at the fetcher; only the
	// latest may change state
	require.Equal(t, "d", st.Snapshot().Query.Term)
	require.False(t, st.Snapshot().Loading)
}

// Scenario: typing "yoga" and waiting past the debounce produces exactly one search request
// for page 1 and a ready result.
func TestDebouncedSearchAgainstAPI(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)
	gw, err := gateway.New(srv.URL, gateway.WithHTTPClient(srv.Client()), gateway.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	st := New(gw, zaptest.NewLogger(t), nil)
	t.Cleanup(st.Close)
	clk := clock.Fake(time.Now())
	ctrl := query.New(clk, func(s query.Settled) { st.SetQuery(context.Background(), s) })
	t.Cleanup(ctrl.Stop)

	for _, r := range "yoga" {
		ctrl.SetTerm(ctrl.Term() + string(r))
		clk.Advance(50 * time.Millisecond)
	}
	clk.Advance(500 * time.Millisecond)

	snap := waitFor(t, st, func(s Snapshot) bool { return s.Seq == 1 && !s.Loading })
	require.Len(t, snap.Page.Items, 3)
	require.Equal(t, 1, snap.Page.TotalPages)

	reqs := srv.RequestsTo("GET", "/api/retreats")
	require.Len(t, reqs, 1)
	require.Equal(t, "/api/retreats/search", reqs[0].Path)
	require.Equal(t, "yoga", reqs[0].Query.Get("search"))
	require.Equal(t, "1", reqs[0].Query.Get("page"))
}

func TestCancelledFetchAgainstAPI(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)
	entered := make(chan struct{}, 1)
	srv.SetSearchHook(func(ctx context.Context, term string, _ int) {
		if term != "slow" {
			return
		}
		entered <- struct{}{}
		<-ctx.Done()
	})
	gw, err := gateway.New(srv.URL, gateway.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	st := New(gw, zaptest.NewLogger(t), nil)
	t.Cleanup(st.Close)

	cancel := st.SetQuery(context.Background(), settled(1, "slow", 1))
	<-entered
	cancel()
	st.Close()

	snap := st.Snapshot()
	require.False(t, snap.Loading)
	require.Empty(t, snap.Page.Items)
	require.False(t, errors.Is(st.LastError(), errs.ErrCancelled), "cancellation is never surfaced")
}
