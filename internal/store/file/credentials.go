// Package file persists the sealed access token in the client's state
// directory, one file per profile.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(blob []byte) ([]byte, error)
}

type CredentialStore struct {
	path   string
	sealer Sealer
}

func NewCredentialStore(dir, profile string, sealer Sealer) *CredentialStore {
	if profile == "" {
		profile = "default"
	}
	return &CredentialStore{
		path:   filepath.Join(dir, "credentials", profile+".bin"),
		sealer: sealer,
	}
}

func (s *CredentialStore) Path() string { return s.path }

func (s *CredentialStore) Load(context.Context) (string, error) {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read credential: %w", err)
	}
	token, err := s.sealer.Open(blob)
	if err != nil {
		return "", fmt.Errorf("open credential: %w", err)
	}
	return string(token), nil
}

func (s *CredentialStore) Save(_ context.Context, token string) error {
	blob, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}
	return writeAtomic(s.path, blob, 0o600)
}

func (s *CredentialStore) Clear(context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// UpdatedAt reports when the credential was last written, nil if never.
func (s *CredentialStore) UpdatedAt(context.Context) (*time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat credential: %w", err)
	}
	ts := info.ModTime()
	return &ts, nil
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path, so readers see either the old or the new content.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-credential-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename credential: %w", err)
	}
	done = true
	return nil
}
