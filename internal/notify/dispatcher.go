// Package notify maps action outcomes to short-lived user notifications.
package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/and161185/retreat-client/internal/clock"
	"github.com/and161185/retreat-client/internal/errs"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 5 * time.Second

// Level is the severity of a notification.
type Level int

const (
	Info Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}

// Notification is one transient message.
type Notification struct {
	ID      uint64
	Level   Level
	Text    string
	Expires time.Time
}

// Dispatcher shows at most one notification at a time; a new one replaces the previous.
type Dispatcher struct {
	clk      clock.Clock
	ttl      time.Duration
	onChange func()

	mu    sync.Mutex
	cur   *Notification
	seq   uint64
	timer clock.Timer
}

// New returns a Dispatcher. ttl <= 0 means DefaultTTL. onChange (may be nil) runs after a
// notification is shown, dismissed or expires.
func New(clk clock.Clock, ttl time.Duration, onChange func()) *Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Dispatcher{clk: clk, ttl: ttl, onChange: onChange}
}

// BookingOutcome notifies the result of a book action. Already-booked and cancelled actions
// produce nothing and report false.
func (d *Dispatcher) BookingOutcome(err error) (Notification, bool) {
	switch {
	case err == nil:
		return d.Show(Info, "Booking Success"), true
	case errors.Is(err, errs.ErrAuthRequired):
		return d.Show(Warning, "Login Required"), true
	case errors.Is(err, errs.ErrAlreadyBooked), errors.Is(err, errs.ErrCancelled):
		return Notification{}, false
	}
	return d.Show(Error, "Booking Error: "+errs.Message(err)), true
}

// LoginOutcome notifies the result of a login attempt.
func (d *Dispatcher) LoginOutcome(err error) (Notification, bool) {
	switch {
	case err == nil:
		return d.Show(Info, "Login Success"), true
	case errors.Is(err, errs.ErrCancelled):
		return Notification{}, false
	}
	return d.Show(Error, "Login Error: "+errs.Message(err)), true
}

// Show replaces the current notification.
func (d *Dispatcher) Show(level Level, text string) Notification {
	d.mu.Lock()
	d.seq++
	n := Notification{ID: d.seq, Level: level, Text: text, Expires: d.clk.Now().Add(d.ttl)}
	d.cur = &n
	if d.timer != nil {
		d.timer.Stop()
	}
	id := n.ID
	d.timer = d.clk.AfterFunc(d.ttl, func() { d.expire(id) })
	d.mu.Unlock()
	d.onChange()
	return n
}

// Dismiss hides the current notification.
func (d *Dispatcher) Dismiss() {
	d.mu.Lock()
	if d.cur == nil {
		d.mu.Unlock()
		return
	}
	d.cur = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.onChange()
}

// Current returns the notification visible at now.
func (d *Dispatcher) Current(now time.Time) (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cur == nil || !now.Before(d.cur.Expires) {
		return Notification{}, false
	}
	return *d.cur, true
}

func (d *Dispatcher) expire(id uint64) {
	d.mu.Lock()
	if d.cur == nil || d.cur.ID != id {
		d.mu.Unlock()
		return
	}
	d.cur = nil
	d.timer = nil
	d.mu.Unlock()
	d.onChange()
}
