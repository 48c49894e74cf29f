package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/model"
)

// PaymentCard is the only payment method the client offers.
const PaymentCard = "card"

// FallbackMessage replaces an empty rejection message from the server.
const FallbackMessage = "Booking Failed"

// BookAPI creates bookings. *gateway.Client implements it.
type BookAPI interface {
	Book(ctx context.Context, token string, retreatID int, req model.BookingRequest) error
}

// Handler performs the book action.
type Handler struct {
	api      BookAPI
	sessions Sessions
	sync     *Synchronizer
	log      *zap.Logger
	now      func() time.Time
}

// NewHandler wires a Handler. sync is refreshed after every created booking.
func NewHandler(api BookAPI, sessions Sessions, sync *Synchronizer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{api: api, sessions: sessions, sync: sync, log: log, now: time.Now}
}

// Book books listingID for the session user.
//
// Errors: errs.ErrAuthRequired without a session (no request is sent) or when the server
// rejects the token; errs.ErrAlreadyBooked when the listing is already in the booked set (no
// request); *errs.ServerRejectedError for any status other than 201; errs.ErrNetwork or
// errs.ErrCancelled from the transport. On success the booked set is refreshed before Book
// returns; a failed refresh is logged and does not turn success into failure.
func (h *Handler) Book(ctx context.Context, listingID int) error {
	user, ok := h.sessions.Current()
	if !ok {
		return errs.ErrAuthRequired
	}
	if h.sync.Contains(listingID) {
		return errs.ErrAlreadyBooked
	}

	req := model.BookingRequest{
		UserID:         user.ID,
		UserName:       user.Username,
		UserEmail:      user.Email,
		UserPhone:      user.Phone,
		PaymentDetails: PaymentCard,
		BookingDate:    h.now().UTC(),
	}
	err := h.api.Book(ctx, user.AuthToken, listingID, req)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrUnauthorized):
		h.log.Info("booking: token rejected", zap.Int("user_id", user.ID))
		if ierr := h.sessions.Invalidate(); ierr != nil {
			h.log.Warn("invalidate session", zap.Error(ierr))
		}
		h.sync.Clear()
		return fmt.Errorf("book %d: %w", listingID, errs.ErrAuthRequired)
	default:
		var rej *errs.ServerRejectedError
		if errors.As(err, &rej) && rej.Message == "" {
			return &errs.ServerRejectedError{Status: rej.Status, Message: FallbackMessage}
		}
		return err
	}

	h.log.Info("booking created", zap.Int("user_id", user.ID), zap.Int("retreat_id", listingID))
	if err := h.sync.Refresh(ctx); err != nil {
		h.log.Warn("refresh after booking", zap.Int("retreat_id", listingID), zap.Error(err))
	}
	return nil
}
