// Package query turns raw search input and page navigation into settled queries.
//
// Typing is debounced: only the last term of a burst settles once the input has been quiet for
// the configured delay. Page navigation settles at once. Every settled query carries a
// monotonically increasing sequence number so consumers can drop anything older than what they
// have already seen.
package query

import (
	"sync"
	"time"

	"github.com/and161185/retreat-client/internal/clock"
	"github.com/and161185/retreat-client/internal/model"
)

// DefaultDelay is the quiet period after the last keystroke before a term settles.
const DefaultDelay = 400 * time.Millisecond

// Settled is a query the controller has committed to.
type Settled struct {
	Seq   uint64
	Query model.SearchQuery
	// Forced is set by Submit: consumers should refetch even if Query is unchanged.
	Forced bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithDelay overrides DefaultDelay.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithPageSize overrides model.DefaultPageSize.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// Controller owns the raw term and page cursor. Safe for concurrent use; onSettle is called
// without the controller lock held.
type Controller struct {
	clk      clock.Clock
	delay    time.Duration
	pageSize int
	onSettle func(Settled)

	mu      sync.Mutex
	term    string
	page    int
	timer   clock.Timer
	gen     uint64 // bumped on every arm/disarm; stale timer callbacks compare against it
	seq     uint64
	last    *model.SearchQuery
	stopped bool
}

// New returns a Controller with an empty term on page 1. Nothing settles until the first
// SetTerm timer fires or a navigation/Submit call is made.
func New(clk clock.Clock, onSettle func(Settled), opts ...Option) *Controller {
	if clk == nil {
		clk = clock.Real()
	}
	if onSettle == nil {
		onSettle = func(Settled) {}
	}
	c := &Controller{
		clk:      clk,
		delay:    DefaultDelay,
		pageSize: model.DefaultPageSize,
		onSettle: onSettle,
		page:     1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetTerm records term, resets the cursor to page 1 and re-arms the debounce timer.
func (c *Controller) SetTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.term = term
	c.page = 1
	c.disarmLocked()
	gen := c.gen
	c.timer = c.clk.AfterFunc(c.delay, func() { c.fire(gen) })
}

// SetPage moves the cursor to page (clamped to >= 1) and settles immediately.
func (c *Controller) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	c.navigate(func(int) (int, bool) { return page, true })
}

// Next advances one page unless already on totalPages.
func (c *Controller) Next(totalPages int) {
	c.navigate(func(cur int) (int, bool) {
		if cur >= totalPages {
			return cur, false
		}
		return cur + 1, true
	})
}

// Prev goes back one page unless already on page 1.
func (c *Controller) Prev() {
	c.navigate(func(cur int) (int, bool) {
		if cur <= 1 {
			return cur, false
		}
		return cur - 1, true
	})
}

// Submit settles the current term and page right away, cancelling a pending timer. The
// result is delivered even when it equals the last settled query.
func (c *Controller) Submit() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.disarmLocked()
	s, ok := c.settleLocked(true)
	c.mu.Unlock()
	if ok {
		c.onSettle(s)
	}
}

// Stop cancels any pending timer. Later calls are ignored.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
	c.stopped = true
}

// Term returns the raw (possibly unsettled) term.
func (c *Controller) Term() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.term
}

// Page returns the current cursor.
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Pending reports whether a term is waiting for the debounce timer.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Last returns the most recently settled query; false before the first settle.
func (c *Controller) Last() (model.SearchQuery, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return model.SearchQuery{}, false
	}
	return *c.last, true
}

func (c *Controller) navigate(step func(cur int) (int, bool)) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	next, ok := step(c.page)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.page = next
	s, ok := c.settleLocked(false)
	c.mu.Unlock()
	if ok {
		c.onSettle(s)
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.stopped || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	s, ok := c.settleLocked(false)
	c.mu.Unlock()
	if ok {
		c.onSettle(s)
	}
}

// settleLocked snapshots term and page. Unforced settles that repeat the last query are dropped.
func (c *Controller) settleLocked(forced bool) (Settled, bool) {
	q := model.SearchQuery{Term: c.term, Page: c.page, PageSize: c.pageSize}
	if !forced && c.last != nil && *c.last == q {
		return Settled{}, false
	}
	c.seq++
	c.last = &q
	return Settled{Seq: c.seq, Query: q, Forced: forced}, true
}

func (c *Controller) disarmLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
