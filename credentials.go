package paybridge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// ============================================================================
// Credential Storage
// ============================================================================

// Credential is the pair of tokens issued by POST /auth/login/.
// The access token authorizes API and realtime requests; the refresh
// token is used solely to obtain a new access token.
type Credential struct {
	AccessToken  string `toml:"access_token" json:"access_token"`
	RefreshToken string `toml:"refresh_token" json:"refresh_token"`
}

// IsZero reports whether no tokens are stored.
func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// CredentialStore abstracts the durable token storage the SDK reads at
// the point of use. Implementations must be safe for concurrent use:
// a refresh performed by one in-flight request must be visible to the
// next read from any other code path.
type CredentialStore interface {
	Get() (Credential, error)
	Set(Credential) error
	Clear() error
}

// ============================================================================
// MemoryStore
// ============================================================================

// MemoryStore is a goroutine-safe in-memory credential store. It is the
// default store of a new Client and the one tests use.
type MemoryStore struct {
	mu   sync.RWMutex
	cred Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, nil
}

func (s *MemoryStore) Set(c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = c
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = Credential{}
	return nil
}

// ============================================================================
// FileStore
// ============================================================================

// FileStore persists credentials as TOML, surviving process restarts.
// The CLI stores tokens at ~/.paybridge/credentials.toml through it.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultCredentialPath returns ~/.paybridge/credentials.toml, creating
// the directory if needed.
func DefaultCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".paybridge")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return filepath.Join(dir, "credentials.toml"), nil
}

func (s *FileStore) Get() (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credential{}, nil
		}
		return Credential{}, fmt.Errorf("cannot read credentials: %w", err)
	}
	var cred Credential
	if err := toml.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("cannot parse credentials: %w", err)
	}
	return cred, nil
}

func (s *FileStore) Set(c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cannot encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove credentials: %w", err)
	}
	return nil
}
