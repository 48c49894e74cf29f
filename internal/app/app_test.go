package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/retreat-client/internal/apitest"
	"github.com/and161185/retreat-client/internal/clock"
	"github.com/and161185/retreat-client/internal/config"
	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/gateway"
	"github.com/and161185/retreat-client/internal/model"
	"github.com/and161185/retreat-client/internal/results"
)

func newTestApp(t *testing.T, srv *apitest.Server, dir string, clk clock.Clock) *App {
	t.Helper()
	cfg := config.Default(func(string) string { return "" })
	cfg.APIURL = srv.URL
	cfg.Dir = dir
	a, err := New(cfg, zaptest.NewLogger(t), clk, nil, gateway.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestLoginPersistsAcrossRestarts(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)
	srv.AddBooking(model.Booking{UserID: apitest.DefaultUserID, RetreatID: 41})
	dir := t.TempDir()

	a := newTestApp(t, srv, dir, nil)
	require.False(t, a.Session.LoggedIn())
	require.Error(t, a.Login(context.Background(), "", ""))

	err := a.Login(context.Background(), apitest.DefaultUsername, "nope")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	require.NoError(t, a.Login(context.Background(), apitest.DefaultUsername, apitest.DefaultPassword))
	require.Equal(t, []int{41}, a.Bookings.IDs())

	b := newTestApp(t, srv, dir, nil)
	u, ok := b.Session.Current()
	require.True(t, ok)
	require.Equal(t, apitest.DefaultUsername, u.Username)

	require.NoError(t, b.Logout())
	require.Empty(t, b.Bookings.IDs())

	c := newTestApp(t, srv, dir, nil)
	require.False(t, c.Session.LoggedIn())
}

func TestQueryDrivesResults(t *testing.T) {
	t.Parallel()

	srv := apitest.New(t)
	clk := clock.Fake(time.Now())
	a := newTestApp(t, srv, t.TempDir(), clk)

	a.Query.SetTerm("yoga")
	clk.Advance(a.Config.Debounce)

	var snap results.Snapshot
	require.Eventually(t, func() bool {
		snap = a.Results.Snapshot()
		return snap.Seq == 1 && !snap.Loading
	}, 2*time.Second, 5*time.Millisecond)
	require.Len(t, snap.Page.Items, 3)
}

func TestNew_BadURL(t *testing.T) {
	t.Parallel()

	cfg := config.Default(func(string) string { return "" })
	cfg.APIURL = "ftp://x"
	cfg.Dir = t.TempDir()
	_, err := New(cfg, nil, nil, nil)
	require.Error(t, err)
}
