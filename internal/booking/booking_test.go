package booking

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/retreat-client/internal/apitest"
	"github.com/and161185/retreat-client/internal/clock"
	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/gateway"
	"github.com/and161185/retreat-client/internal/model"
	"github.com/and161185/retreat-client/internal/notify"
	"github.com/and161185/retreat-client/internal/session"
)

type fixture struct {
	srv     *apitest.Server
	gw      *gateway.Client
	sess    *session.Context
	sync    *Synchronizer
	handler *Handler
	notes   *notify.Dispatcher
	clk     *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	srv := apitest.New(t)
	gw, err := gateway.New(srv.URL, gateway.WithHTTPClient(srv.Client()), gateway.WithLogger(log))
	require.NoError(t, err)

	sess := session.New(&session.MemoryStore{}, log)
	sync := NewSynchronizer(gw, sess, log, nil)
	clk := clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	return &fixture{
		srv:     srv,
		gw:      gw,
		sess:    sess,
		sync:    sync,
		handler: NewHandler(gw, sess, sync, log),
		notes:   notify.New(clk, 0, nil),
		clk:     clk,
	}
}

func (f *fixture) login(t *testing.T) model.SessionUser {
	t.Helper()
	u, err := f.gw.Login(context.Background(), apitest.DefaultUsername, apitest.DefaultPassword)
	require.NoError(t, err)
	require.NoError(t, f.sess.SetUser(u))
	f.srv.ResetRequests()
	return u
}

func TestBook_WithoutSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.handler.Book(context.Background(), 42)
	require.ErrorIs(t, err, errs.ErrAuthRequired)
	require.Empty(t, f.srv.Requests(), "no network call without a session")

	n, shown := f.notes.BookingOutcome(err)
	require.True(t, shown)
	require.Equal(t, notify.Warning, n.Level)
	require.Equal(t, "Login Required", n.Text)
}

func TestBook_SuccessRefreshesBookedSet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.login(t)
	require.False(t, f.sync.Contains(42))

	err := f.handler.Book(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, f.sync.Contains(42), "booked set is refreshed before success is reported")
	require.Equal(t, []int{42}, f.sync.IDs())

	posts := f.srv.RequestsTo(http.MethodPost, "/api/book/42")
	require.Len(t, posts, 1)
	stored := f.srv.Bookings()
	require.Len(t, stored, 1)
	require.Equal(t, u.ID, stored[0].UserID)
	require.Equal(t, PaymentCard, stored[0].PaymentDetails)
	require.Equal(t, u.Email, stored[0].UserEmail)

	n, _ := f.notes.BookingOutcome(err)
	require.Equal(t, notify.Info, n.Level)
	require.Equal(t, "Booking Success", n.Text)
}

func TestBook_ServerRejection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	f.srv.RejectBookings(http.StatusBadRequest, "Retreat full")

	err := f.handler.Book(context.Background(), 42)
	require.ErrorIs(t, err, errs.ErrServerRejected)
	require.False(t, f.sync.Contains(42))
	require.Empty(t, f.srv.RequestsTo(http.MethodGet, "/api/book/"), "no refresh after a failure")

	n, _ := f.notes.BookingOutcome(err)
	require.Equal(t, notify.Error, n.Level)
	require.Equal(t, "Booking Error: Retreat full", n.Text)
}

func TestBook_EmptyRejectionMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.login(t)
	f.srv.RejectBookings(http.StatusInternalServerError, "")

	err := f.handler.Book(context.Background(), 42)
	var rej *errs.ServerRejectedError
	require.True(t, errors.As(err, &rej))
	require.Equal(t, http.StatusInternalServerError, rej.Status)
	require.Equal(t, FallbackMessage, rej.Message)
}

func TestBook_AlreadyBookedIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.login(t)
	f.srv.AddBooking(model.Booking{UserID: u.ID, RetreatID: 44})
	require.NoError(t, f.sync.Refresh(context.Background()))
	f.srv.ResetRequests()

	err := f.handler.Book(context.Background(), 44)
	require.ErrorIs(t, err, errs.ErrAlreadyBooked)
	require.Empty(t, f.srv.Requests())

	_, shown := f.notes.BookingOutcome(err)
	require.False(t, shown)
}

func TestBook_RevokedTokenInvalidatesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.login(t)
	f.srv.AddBooking(model.Booking{UserID: u.ID, RetreatID: 40})
	require.NoError(t, f.sync.Refresh(context.Background()))

	u.AuthToken = "garbage"
	require.NoError(t, f.sess.SetUser(u))

	err := f.handler.Book(context.Background(), 42)
	require.ErrorIs(t, err, errs.ErrAuthRequired)
	require.False(t, f.sess.LoggedIn())
	require.Empty(t, f.sync.IDs())
}

func TestRefresh_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.login(t)
	f.srv.AddBooking(model.Booking{UserID: u.ID, RetreatID: 45})
	f.srv.AddBooking(model.Booking{UserID: u.ID, RetreatID: 41})
	f.srv.AddBooking(model.Booking{UserID: 99, RetreatID: 50})

	require.NoError(t, f.sync.Refresh(context.Background()))
	first := f.sync.IDs()
	require.NoError(t, f.sync.Refresh(context.Background()))
	require.Equal(t, first, f.sync.IDs())
	require.Equal(t, []int{41, 45}, first)
}

func TestRefresh_WithoutSessionEmptiesSet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.login(t)
	f.srv.AddBooking(model.Booking{UserID: u.ID, RetreatID: 45})
	require.NoError(t, f.sync.Refresh(context.Background()))
	require.True(t, f.sync.Contains(45))

	require.NoError(t, f.sess.Clear())
	f.srv.ResetRequests()
	require.NoError(t, f.sync.Refresh(context.Background()))
	require.Empty(t, f.sync.IDs())
	require.Empty(t, f.srv.Requests())
}

func TestRefresh_FailureKeepsPreviousSet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.login(t)
	f.srv.AddBooking(model.Booking{UserID: u.ID, RetreatID: 45})
	require.NoError(t, f.sync.Refresh(context.Background()))

	f.srv.Close()
	err := f.sync.Refresh(context.Background())
	require.ErrorIs(t, err, errs.ErrNetwork)
	require.Equal(t, []int{45}, f.sync.IDs())
}

type failingBookings struct{}

func (failingBookings) UserBookings(context.Context, string, int) ([]model.Booking, error) {
	return nil, errs.ErrNetwork
}

type okBook struct{ calls int }

func (b *okBook) Book(context.Context, string, int, model.BookingRequest) error {
	b.calls++
	return nil
}

func TestBook_RefreshFailureStillReportsSuccess(t *testing.T) {
	t.Parallel()

	sess := session.New(&session.MemoryStore{}, nil)
	require.NoError(t, sess.SetUser(model.SessionUser{ID: 1, AuthToken: "opaque"}))
	sync := NewSynchronizer(failingBookings{}, sess, zaptest.NewLogger(t), nil)
	api := &okBook{}
	h := NewHandler(api, sess, sync, zaptest.NewLogger(t))

	require.NoError(t, h.Book(context.Background(), 7))
	require.Equal(t, 1, api.calls)
	require.False(t, sync.Contains(7), "never inserted speculatively")
}

func TestClear_DiscardsInFlightRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	u := f.login(t)
	f.srv.AddBooking(model.Booking{UserID: u.ID, RetreatID: 45})

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := &blockingBookings{inner: f.gw, entered: entered, release: release}
	sync := NewSynchronizer(blocking, f.sess, nil, nil)

	done := make(chan error, 1)
	go func() { done <- sync.Refresh(context.Background()) }()
	<-entered
	sync.Clear()
	close(release)
	require.NoError(t, <-done)
	require.Empty(t, sync.IDs())
}

type blockingBookings struct {
	inner   BookingsAPI
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBookings) UserBookings(ctx context.Context, token string, userID int) ([]model.Booking, error) {
	close(b.entered)
	<-b.release
	return b.inner.UserBookings(ctx, token, userID)
}
