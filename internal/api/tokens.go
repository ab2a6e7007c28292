package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenPair is the access/refresh pair issued by the login endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenSource supplies the session credentials for each request and
// accepts the replacement access token after a refresh. Implementations
// must be safe for concurrent use.
type TokenSource interface {
	Tokens() (TokenPair, error)
	// SetAccess stores a new access token obtained from the refresh
	// endpoint; the refresh token is unchanged.
	SetAccess(access string) error
}

// ErrNoTokens is returned by a TokenSource that has no stored session.
var ErrNoTokens = errors.New("no stored tokens")

// MemoryTokens keeps the pair in memory only.
type MemoryTokens struct {
	mu   sync.Mutex
	pair TokenPair
}

func NewMemoryTokens(pair TokenPair) *MemoryTokens {
	return &MemoryTokens{pair: pair}
}

func (m *MemoryTokens) Tokens() (TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pair.Access == "" && m.pair.Refresh == "" {
		return TokenPair{}, ErrNoTokens
	}
	return m.pair, nil
}

func (m *MemoryTokens) SetAccess(access string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair.Access = access
	return nil
}

func (m *MemoryTokens) Set(pair TokenPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
}

// FileTokens persists the pair as a small JSON file so a session
// survives between CLI runs.
type FileTokens struct {
	mu   sync.Mutex
	path string
}

func NewFileTokens(path string) *FileTokens {
	return &FileTokens{path: path}
}

func (f *FileTokens) Tokens() (TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileTokens) SetAccess(access string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair, err := f.read()
	if err != nil {
		return err
	}
	pair.Access = access
	return f.write(pair)
}

// Set replaces the whole pair, creating the file if needed. Used after
// a fresh login.
func (f *FileTokens) Set(pair TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(pair)
}

// Clear removes the stored session.
func (f *FileTokens) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *FileTokens) read() (TokenPair, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return TokenPair{}, ErrNoTokens
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("reading token file: %w", err)
	}
	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return TokenPair{}, fmt.Errorf("parsing token file %s: %w", f.path, err)
	}
	return pair, nil
}

func (f *FileTokens) write(pair TokenPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating token dir: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
