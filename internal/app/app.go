// Package app assembles the client components from a Config. Both the one-shot commands and the
// terminal UI start from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/retreat-client/internal/booking"
	"github.com/and161185/retreat-client/internal/clock"
	"github.com/and161185/retreat-client/internal/config"
	"github.com/and161185/retreat-client/internal/gateway"
	"github.com/and161185/retreat-client/internal/notify"
	"github.com/and161185/retreat-client/internal/overlay"
	"github.com/and161185/retreat-client/internal/query"
	"github.com/and161185/retreat-client/internal/results"
	"github.com/and161185/retreat-client/internal/session"
)

// App is the wired client.
type App struct {
	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock

	API      *gateway.Client
	Session  *session.Context
	Bookings *booking.Synchronizer
	Booker   *booking.Handler
	Notes    *notify.Dispatcher
	Results  *results.Store
	Query    *query.Controller
	Overlay  *overlay.Machine
	Scroll   *overlay.Latch

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an App and restores the persisted session. onChange (may be nil) is called
// whenever results, the booked set or the visible notification change; it may run on any
// goroutine.
func New(cfg config.Config, log *zap.Logger, clk clock.Clock, onChange func(), opts ...gateway.Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if onChange == nil {
		onChange = func() {}
	}

	opts = append([]gateway.Option{gateway.WithTimeout(cfg.Timeout), gateway.WithLogger(log.Named("http"))}, opts...)
	api, err := gateway.New(cfg.APIURL, opts...)
	if err != nil {
		return nil, err
	}

	sess := session.New(session.NewFileStore(cfg.Dir), log.Named("session"))
	if err := sess.Load(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Config:  cfg,
		Log:     log,
		Clock:   clk,
		API:     api,
		Session: sess,
		Notes:   notify.New(clk, cfg.NotifyTTL, onChange),
		Results: results.New(api, log.Named("results"), onChange),
		Scroll:  &overlay.Latch{},
		ctx:     ctx,
		cancel:  cancel,
	}
	a.Bookings = booking.NewSynchronizer(api, sess, log.Named("bookings"), onChange)
	a.Booker = booking.NewHandler(api, sess, a.Bookings, log.Named("booking"))
	a.Overlay = overlay.New(a.Scroll)
	a.Query = query.New(clk, func(s query.Settled) {
		a.Results.SetQuery(a.ctx, s)
	}, query.WithDelay(cfg.Debounce), query.WithPageSize(cfg.PageSize))
	return a, nil
}

// Context is cancelled by Close.
func (a *App) Context() context.Context { return a.ctx }

// Login authenticates, persists the session and loads the user's bookings. A failure to load
// bookings is logged; the login itself still succeeds.
func (a *App) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	user, err := a.API.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.Session.SetUser(user); err != nil {
		return err
	}
	if err := a.Bookings.Refresh(ctx); err != nil {
		a.Log.Warn("load bookings after login", zap.Error(err))
	}
	return nil
}

// Logout clears the session and the booked set.
func (a *App) Logout() error {
	err := a.Session.Clear()
	a.Bookings.Clear()
	return err
}

// Close stops timers and in-flight fetches and closes the overlay.
func (a *App) Close() {
	a.Query.Stop()
	a.cancel()
	a.Results.Close()
	a.Overlay.Release()
}
