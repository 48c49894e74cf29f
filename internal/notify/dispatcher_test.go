package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/retreat-client/internal/clock"
	"github.com/and161185/retreat-client/internal/errs"
)

func TestBookingOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		level Level
		text  string
		shown bool
	}{
		{"success", nil, Info, "Booking Success", true},
		{"auth required", errs.ErrAuthRequired, Warning, "Login Required", true},
		{"wrapped auth required", fmt.Errorf("book 1: %w", errs.ErrAuthRequired), Warning, "Login Required", true},
		{"server message", &errs.ServerRejectedError{Status: 400, Message: "Retreat full"}, Error, "Booking Error: Retreat full", true},
		{"network", fmt.Errorf("POST /api/book/1: %w", errs.ErrNetwork), Error, "Booking Error: Network Error", true},
		{"already booked", errs.ErrAlreadyBooked, Info, "", false},
		{"cancelled", errs.ErrCancelled, Info, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := New(clock.Fake(time.Unix(0, 0)), 0, nil)
			n, shown := d.BookingOutcome(tt.err)
			require.Equal(t, tt.shown, shown)
			if !shown {
				_, ok := d.Current(time.Unix(0, 0))
				require.False(t, ok)
				return
			}
			require.Equal(t, tt.level, n.Level)
			require.Equal(t, tt.text, n.Text)
		})
	}
}

func TestLoginOutcome(t *testing.T) {
	t.Parallel()

	d := New(clock.Fake(time.Unix(0, 0)), 0, nil)
	n, _ := d.LoginOutcome(nil)
	require.Equal(t, "Login Success", n.Text)
	require.Equal(t, Info, n.Level)

	n, _ = d.LoginOutcome(fmt.Errorf("login: %w", &errs.ServerRejectedError{Status: 401, Message: "Invalid credentials"}))
	require.Equal(t, "Login Error: Invalid credentials", n.Text)
	require.Equal(t, Error, n.Level)
}

func TestExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(100, 0))
	changes := 0
	d := New(clk, DefaultTTL, func() { changes++ })

	d.Show(Info, "hello")
	clk.Advance(4 * time.Second)
	n, ok := d.Current(clk.Now())
	require.True(t, ok)
	require.Equal(t, "hello", n.Text)

	clk.Advance(time.Second)
	_, ok = d.Current(clk.Now())
	require.False(t, ok)
	require.Equal(t, 2, changes, "shown and expired")
}

func TestNewestReplacesAndKeepsItsOwnTTL(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	d := New(clk, 5*time.Second, nil)

	d.Show(Info, "first")
	clk.Advance(3 * time.Second)
	d.Show(Error, "second")
	clk.Advance(3 * time.Second)

	n, ok := d.Current(clk.Now())
	require.True(t, ok, "first's expiry must not hide second")
	require.Equal(t, "second", n.Text)

	clk.Advance(2 * time.Second)
	_, ok = d.Current(clk.Now())
	require.False(t, ok)
}

func TestDismiss(t *testing.T) {
	t.Parallel()

	clk := clock.Fake(time.Unix(0, 0))
	d := New(clk, 0, nil)
	d.Dismiss()

	d.Show(Warning, "x")
	d.Dismiss()
	_, ok := d.Current(clk.Now())
	require.False(t, ok)
	require.Equal(t, 0, clk.Pending())
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "info", Info.String())
	require.Equal(t, "warning", Warning.String())
	require.Equal(t, "error", Error.String())
}
