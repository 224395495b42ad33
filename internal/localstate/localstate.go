// Package localstate persists small per-install state (selections, activity
// timestamps, login date) to a JSON file on disk.
package localstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// state is the on-disk document. Zero values mean "never recorded".
type state struct {
	LastSelected    map[string]string `json:"last_selected,omitempty"`
	LastActiveAt    time.Time         `json:"last_active_at,omitempty"`
	LoginDate       string            `json:"login_date,omitempty"` // YYYY-MM-DD
	PromptDismissed bool              `json:"install_prompt_dismissed,omitempty"`
}

// Store reads and writes the local state file. All methods are safe for
// concurrent use; every mutation is flushed to disk immediately.
type Store struct {
	path string
	log  zerolog.Logger

	mu sync.Mutex
	st state
}

// Open loads the state file at path, starting empty if it does not exist.
func Open(path string, log zerolog.Logger) (*Store, error) {
	s := &Store{path: path, log: log}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local state: %w", err)
	}
	if err := json.Unmarshal(raw, &s.st); err != nil {
		// A corrupt file is not worth failing startup over.
		log.Warn().Err(err).Str("path", path).Msg("localstate: corrupt file, starting empty")
		s.st = state{}
	}
	return s, nil
}

// SetLastSelected remembers the last selected record id for a view.
func (s *Store) SetLastSelected(view, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.LastSelected == nil {
		s.st.LastSelected = map[string]string{}
	}
	s.st.LastSelected[view] = id
	return s.flushLocked()
}

// LastSelected returns the last selected record id for a view.
func (s *Store) LastSelected(view string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LastSelected[view]
}

// TouchActivity records the current time as the last user activity.
func (s *Store) TouchActivity(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LastActiveAt = now
	return s.flushLocked()
}

// LastActive returns the last recorded activity time.
func (s *Store) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LastActiveAt
}

// SetLoginDate records the calendar day (YYYY-MM-DD) of the current login.
func (s *Store) SetLoginDate(day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.LoginDate = day
	return s.flushLocked()
}

// LoginDate returns the recorded login day, or "" if none.
func (s *Store) LoginDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LoginDate
}

// DismissInstallPrompt records that the install prompt was dismissed.
func (s *Store) DismissInstallPrompt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.PromptDismissed = true
	return s.flushLocked()
}

// InstallPromptDismissed reports whether the install prompt was dismissed.
func (s *Store) InstallPromptDismissed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.PromptDismissed
}

// Clear wipes the in-memory state and removes the file. Used by the hard
// reset path; removal failure is reported but the in-process state is wiped
// regardless.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = state{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove local state: %w", err)
	}
	return nil
}

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local state: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write local state: %w", err)
	}
	return nil
}
