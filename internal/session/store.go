package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/and161185/retreat-client/internal/errs"
	"github.com/and161185/retreat-client/internal/model"
)

// Store persists the token and the user record. Both are written and removed together.
type Store interface {
	// Save persists user (including its token) and the token expiry (zero if unknown).
	Save(user model.SessionUser, expiresAt time.Time) error
	// Load returns the persisted user; errs.ErrNotFound if either record is missing.
	Load() (model.SessionUser, time.Time, error)
	// Clear removes both records. Missing files are not an error.
	Clear() error
}

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

type userFile struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// FileStore keeps token.json and user.json in a directory with owner-only permissions.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (s *FileStore) tokenPath() string { return filepath.Join(s.Dir, "token.json") }
func (s *FileStore) userPath() string  { return filepath.Join(s.Dir, "user.json") }

// Save writes both files; on failure nothing usable is left behind.
func (s *FileStore) Save(user model.SessionUser, expiresAt time.Time) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return err
	}
	if err := writeJSON(s.userPath(), userFile{ID: user.ID, Username: user.Username, Email: user.Email, Phone: user.Phone}); err != nil {
		return err
	}
	if err := writeJSON(s.tokenPath(), tokenFile{AccessToken: user.AuthToken, ExpiresAt: expiresAt}); err != nil {
		_ = s.Clear()
		return err
	}
	return nil
}

// Load reads both files. A user record without a token (or the reverse) counts as logged out.
func (s *FileStore) Load() (model.SessionUser, time.Time, error) {
	var tf tokenFile
	if err := readJSON(s.tokenPath(), &tf); err != nil {
		return model.SessionUser{}, time.Time{}, err
	}
	var uf userFile
	if err := readJSON(s.userPath(), &uf); err != nil {
		return model.SessionUser{}, time.Time{}, err
	}
	if tf.AccessToken == "" {
		return model.SessionUser{}, time.Time{}, errs.ErrNotFound
	}
	return model.SessionUser{
		ID:        uf.ID,
		Username:  uf.Username,
		Email:     uf.Email,
		Phone:     uf.Phone,
		AuthToken: tf.AccessToken,
	}, tf.ExpiresAt, nil
}

// Clear removes both files.
func (s *FileStore) Clear() error {
	var firstErr error
	for _, p := range []string{s.tokenPath(), s.userPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// MemoryStore is a non-durable Store.
type MemoryStore struct {
	mu        sync.Mutex
	user      *model.SessionUser
	expiresAt time.Time
}

// Save keeps user in memory.
func (m *MemoryStore) Save(user model.SessionUser, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := user
	m.user, m.expiresAt = &u, expiresAt
	return nil
}

// Load returns the stored user or errs.ErrNotFound.
func (m *MemoryStore) Load() (model.SessionUser, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return model.SessionUser{}, time.Time{}, errs.ErrNotFound
	}
	return *m.user, m.expiresAt, nil
}

// Clear forgets the user.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user, m.expiresAt = nil, time.Time{}
	return nil
}
