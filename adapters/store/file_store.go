package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
)

// CredentialFileName is the default file name of the persisted credential
const CredentialFileName = "auth_token"

// FileStore keeps the credential in a file readable only by the owner.
// Writers hold an exclusive lock on a sibling .lock file.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a file store at path, creating parent directories
func NewFileStore(path string) (ports.CredentialStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

// Load returns the stored credential
func (s *FileStore) Load(ctx context.Context) (string, error) {
	if _, err := s.lock.TryRLockContext(ctx, lockRetry); err != nil {
		return "", fmt.Errorf("failed to lock credential file: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", core.ErrNoCredential
		}
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", core.ErrNoCredential
	}
	return token, nil
}

// Save atomically replaces the stored credential
func (s *FileStore) Save(ctx context.Context, token string) error {
	if _, err := s.lock.TryLockContext(ctx, lockRetry); err != nil {
		return fmt.Errorf("failed to lock credential file: %w", err)
	}
	defer s.lock.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace credential: %w", err)
	}
	return nil
}

// Clear removes the stored credential
func (s *FileStore) Clear(ctx context.Context) error {
	if _, err := s.lock.TryLockContext(ctx, lockRetry); err != nil {
		return fmt.Errorf("failed to lock credential file: %w", err)
	}
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	return nil
}
