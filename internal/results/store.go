// Package results holds the page of listings currently on screen and the fetch that produces it.
package results

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/model"
	"github.com/and161185/retreat-client/internal/query"
)

// Fetcher loads one page of listings. *gateway.Client implements it.
type Fetcher interface {
	Retreats(ctx context.Context, q model.SearchQuery) (model.ResultPage, error)
}

// Snapshot is a copy of the store state.
type Snapshot struct {
	// Query is the last issued query; zero until HasQuery.
	Query    model.SearchQuery
	HasQuery bool
	// Page is the last successfully fetched page. It survives failed and cancelled fetches.
	Page    model.ResultPage
	Loading bool
	// Seq is the settle sequence number Page was fetched for.
	Seq uint64
	// PageTerm is the search term Page was fetched for.
	PageTerm string
	// Err is the latest fetch error, cleared by the next success.
	Err error
}

// TotalPagesFor is the page count to navigate by for term. Until a page of term has arrived
// the count of an older term says nothing about it, so only page 1 is known to exist.
func (s Snapshot) TotalPagesFor(term string) int {
	if s.PageTerm != term {
		return 1
	}
	return max(1, s.Page.TotalPages)
}

// Store owns SearchQuery and ResultPage. At most one fetch is in flight; issuing a new one
// cancels the previous, and a response is applied only if it belongs to the latest fetch.
type Store struct {
	fetch    Fetcher
	log      *zap.Logger
	onChange func()

	mu       sync.Mutex
	snap     Snapshot
	lastSeq  uint64 // highest settle seq accepted
	fetchID  uint64
	issued   query.Settled
	cancelFn context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// New returns an idle Store. onChange (may be nil) runs after every state change, outside the
// store lock; call Snapshot to read the new state.
func New(fetch Fetcher, log *zap.Logger, onChange func()) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Store{
		fetch:    fetch,
		log:      log,
		onChange: onChange,
		snap:     Snapshot{Page: model.ResultPage{Items: []model.Listing{}, TotalPages: 1}},
	}
}

// SetQuery issues a fetch for s unless it is older than a query already seen or, when not
// forced, equal to the last issued one. The returned func cancels that fetch; it is a no-op
// when nothing was issued or the fetch has already been superseded.
func (st *Store) SetQuery(ctx context.Context, s query.Settled) (cancel func()) {
	st.mu.Lock()
	if st.closed || (st.lastSeq != 0 && s.Seq <= st.lastSeq) {
		st.mu.Unlock()
		return func() {}
	}
	st.lastSeq = s.Seq
	if !s.Forced && st.snap.HasQuery && st.snap.Query == s.Query {
		st.mu.Unlock()
		return func() {}
	}
	id := st.issueLocked(ctx, s)
	st.mu.Unlock()
	st.onChange()
	return func() { st.cancel(id) }
}

// Refresh re-issues the last query unconditionally. No-op before the first query.
func (st *Store) Refresh(ctx context.Context) (cancel func()) {
	st.mu.Lock()
	if st.closed || !st.snap.HasQuery {
		st.mu.Unlock()
		return func() {}
	}
	id := st.issueLocked(ctx, st.issued)
	st.mu.Unlock()
	st.onChange()
	return func() { st.cancel(id) }
}

// Snapshot returns the current state.
func (st *Store) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.snap
	s.Page.Items = append([]model.Listing(nil), st.snap.Page.Items...)
	return s
}

// LastError returns the error of the latest failed fetch, nil after a success.
func (st *Store) LastError() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snap.Err
}

// Close cancels the in-flight fetch and waits for its goroutine. Later calls are no-ops.
func (st *Store) Close() {
	st.mu.Lock()
	st.closed = true
	if st.cancelFn != nil {
		st.cancelFn()
		st.cancelFn = nil
	}
	st.fetchID++
	st.snap.Loading = false
	st.mu.Unlock()
	st.wg.Wait()
}

func (st *Store) issueLocked(parent context.Context, s query.Settled) uint64 {
	if st.cancelFn != nil {
		st.cancelFn()
	}
	ctx, cancel := context.WithCancel(parent)
	st.fetchID++
	id := st.fetchID
	st.cancelFn = cancel
	st.issued = s
	st.snap.Query = s.Query
	st.snap.HasQuery = true
	st.snap.Loading = true

	st.wg.Add(1)
	go st.run(ctx, cancel, id, s)
	return id
}

func (st *Store) run(ctx context.Context, cancel context.CancelFunc, id uint64, s query.Settled) {
	defer st.wg.Done()
	defer cancel()

	page, err := st.fetch.Retreats(ctx, s.Query)

	st.mu.Lock()
	if id != st.fetchID || ctx.Err() != nil {
		st.mu.Unlock()
		return
	}
	st.cancelFn = nil
	st.snap.Loading = false
	if err != nil {
		st.snap.Err = err
		st.mu.Unlock()
		if !errors.Is(err, errs.ErrCancelled) {
			st.log.Warn("fetch listings",
				zap.String("term", s.Query.Term),
				zap.Int("page", s.Query.Page),
				zap.Uint64("seq", s.Seq),
				zap.Error(err),
			)
		}
		st.onChange()
		return
	}
	st.snap.Page = page
	st.snap.Seq = s.Seq
	st.snap.PageTerm = s.Query.Term
	st.snap.Err = nil
	st.mu.Unlock()
	st.onChange()
}

// cancel aborts fetch id if it is still the current one; the store returns to Ready with the
// previous page.
func (st *Store) cancel(id uint64) {
	st.mu.Lock()
	if id != st.fetchID || st.cancelFn == nil {
		st.mu.Unlock()
		return
	}
	st.cancelFn()
	st.cancelFn = nil
	st.fetchID++
	st.snap.Loading = false
	st.mu.Unlock()
	st.onChange()
}
