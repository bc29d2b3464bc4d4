// Package session keeps the signed-in user's credentials on the client.
//
// Two keys are stored, "token" and "username". They are read on every
// authenticated API call and cleared on sign-out. The CLI keeps them in a
// JSON file under the user config directory; the desktop app keeps them in
// the Fyne application preferences.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fyne.io/fyne/v2"
)

const (
	KeyToken    = "token"
	KeyUsername = "username"
)

// Store is the client-side credential store.
type Store interface {
	Token() string
	Username() string
	Save(username, token string) error
	Clear() error
}

// FileStore keeps credentials in a JSON file.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore opens the store at path. An empty path defaults to
// ~/.config/shapeboard/session.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		path = filepath.Join(dir, "shapeboard", "session.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) read() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

func (s *FileStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read()[KeyToken]
}

func (s *FileStore) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read()[KeyUsername]
}

func (s *FileStore) Save(username, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(map[string]string{
		KeyUsername: username,
		KeyToken:    token,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Path returns the session file location.
func (s *FileStore) Path() string { return s.path }

var _ Store = (*FileStore)(nil)

// PrefsStore keeps credentials in Fyne application preferences.
type PrefsStore struct {
	prefs fyne.Preferences
}

func NewPrefsStore(prefs fyne.Preferences) *PrefsStore {
	return &PrefsStore{prefs: prefs}
}

func (s *PrefsStore) Token() string    { return s.prefs.String(KeyToken) }
func (s *PrefsStore) Username() string { return s.prefs.String(KeyUsername) }

func (s *PrefsStore) Save(username, token string) error {
	s.prefs.SetString(KeyUsername, username)
	s.prefs.SetString(KeyToken, token)
	return nil
}

func (s *PrefsStore) Clear() error {
	s.prefs.RemoveValue(KeyToken)
	s.prefs.RemoveValue(KeyUsername)
	return nil
}

var _ Store = (*PrefsStore)(nil)
