// Package overlay implements the detail view shown on top of the listing page.
package overlay

import (
	"sync"

	"github.com/and161185/retreat-client/internal/model"
)

// State of the overlay.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// ScrollLocker freezes the page underneath while the overlay is open.
type ScrollLocker interface {
	Lock()
	Unlock()
}

// Bounds is the overlay rectangle in screen cells. Zero bounds contain nothing.
type Bounds struct {
	X, Y, W, H int
}

// Contains reports whether (x, y) falls inside b.
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.W && y >= b.Y && y < b.Y+b.H
}

// Machine is the Closed/Open state machine. Each instance is independent.
type Machine struct {
	locker ScrollLocker

	mu     sync.Mutex
	state  State
	item   model.Listing
	bounds Bounds
}

// New returns a closed Machine. A nil locker disables scroll locking.
func New(locker ScrollLocker) *Machine {
	if locker == nil {
		locker = nopLocker{}
	}
	return &Machine{locker: locker}
}

// Select opens the overlay on item. Selecting while open swaps the item and keeps the
// existing lock.
func (m *Machine) Select(item model.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Closed {
		m.locker.Lock()
		m.state = Open
	}
	m.item = item
}

// Escape closes the overlay.
func (m *Machine) Escape() { m.Close() }

// ClickOutside closes the overlay when (x, y) lies outside its bounds. Reports whether it closed.
func (m *Machine) ClickOutside(x, y int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Open || m.bounds.Contains(x, y) {
		return false
	}
	m.closeLocked()
	return true
}

// Close closes the overlay. No-op when already closed.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

// Release is called when the view goes away; it closes the overlay so the page is never left
// locked.
func (m *Machine) Release() { m.Close() }

// SetBounds records where the overlay was last drawn.
func (m *Machine) SetBounds(b Bounds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bounds = b
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Item returns the displayed listing while open.
func (m *Machine) Item() (model.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Open {
		return model.Listing{}, false
	}
	return m.item, true
}

func (m *Machine) closeLocked() {
	if m.state == Closed {
		return
	}
	m.state = Closed
	m.item = model.Listing{}
	m.locker.Unlock()
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Latch is a counting ScrollLocker; the page is frozen while Locked.
type Latch struct {
	mu    sync.Mutex
	depth int
}

// Lock increments the hold count.
func (l *Latch) Lock() {
	l.mu.Lock()
	l.depth++
	l.mu.Unlock()
}

// Unlock decrements the hold count. Unbalanced calls are ignored.
func (l *Latch) Unlock() {
	l.mu.Lock()
	if l.depth > 0 {
		l.depth--
	}
	l.mu.Unlock()
}

// Locked reports whether any holder remains.
func (l *Latch) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth > 0
}
