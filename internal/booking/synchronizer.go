// Package booking keeps the set of listings the current user has booked and performs bookings.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/model"
)

// Sessions is the read side of the session context plus token invalidation.
// *session.Context implements it.
type Sessions interface {
	Current() (model.SessionUser, bool)
	Invalidate() error
}

// BookingsAPI lists a user's bookings. *gateway.Client implements it.
type BookingsAPI interface {
	UserBookings(ctx context.Context, token string, userID int) ([]model.Booking, error)
}

// Synchronizer owns the BookedSet. The set only ever reflects what the server returned; it is
// never updated speculatively.
type Synchronizer struct {
	api      BookingsAPI
	sessions Sessions
	log      *zap.Logger
	onChange func()

	mu    sync.Mutex
	ids   map[int]struct{}
	round uint64
}

// NewSynchronizer returns an empty Synchronizer. onChange (may be nil) runs after the set is
// replaced or cleared.
func NewSynchronizer(api BookingsAPI, sessions Sessions, log *zap.Logger, onChange func()) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Synchronizer{api: api, sessions: sessions, log: log, onChange: onChange, ids: map[int]struct{}{}}
}

// Refresh replaces the set with the server's view for the session user. Without a session the
// set is emptied and no request is made. On failure the previous set is kept; a rejected token
// invalidates the session and yields errs.ErrAuthRequired.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.round++
	round := s.round
	s.mu.Unlock()

	user, ok := s.sessions.Current()
	if !ok {
		s.replace(round, nil)
		return nil
	}

	list, err := s.api.UserBookings(ctx, user.AuthToken, user.ID)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			s.log.Info("booking refresh: token rejected", zap.Int("user_id", user.ID))
			if ierr := s.sessions.Invalidate(); ierr != nil {
				s.log.Warn("invalidate session", zap.Error(ierr))
			}
			s.Clear()
			return fmt.Errorf("refresh bookings: %w", errs.ErrAuthRequired)
		}
		return fmt.Errorf("refresh bookings: %w", err)
	}

	ids := make([]int, 0, len(list))
	for _, b := range list {
		ids = append(ids, b.RetreatID)
	}
	s.replace(round, ids)
	return nil
}

// Contains reports whether id is booked.
func (s *Synchronizer) Contains(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the booked listing IDs in ascending order.
func (s *Synchronizer) IDs() []int {
	s.mu.Lock()
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()
	sort.Ints(out)
	return out
}

// Clear empties the set (logout). In-flight refreshes started earlier are discarded.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	s.round++
	s.ids = map[int]struct{}{}
	s.mu.Unlock()
	s.onChange()
}

// replace installs ids unless a newer refresh or a Clear has started since round.
func (s *Synchronizer) replace(round uint64, ids []int) {
	s.mu.Lock()
	if round != s.round {
		s.mu.Unlock()
		return
	}
	next := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	s.ids = next
	s.mu.Unlock()
	s.onChange()
}
