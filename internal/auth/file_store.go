package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"trackbridge/internal/core"
)

const (
	// FilePermission restricts token files to the owner.
	FilePermission = 0o600
	// DirPermission is used when creating the token directory.
	DirPermission = 0o700
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore keeps one JSON file per user and service under a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(userID string, service core.Service) string {
	name := fmt.Sprintf("%s-%s.json", service, unsafeFileChars.ReplaceAllString(userID, "_"))
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Load(_ context.Context, userID string, service core.Service) (*StoredToken, error) {
	data, err := os.ReadFile(s.path(userID, service))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s token for %s: %w", service, userID, ErrTokenNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%s token for %s: %w", service, userID, ErrNoAccessToken)
	}
	return &token, nil
}

func (s *FileStore) Save(_ context.Context, token *StoredToken) error {
	if err := os.MkdirAll(s.dir, DirPermission); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	// Write then rename so a crash never leaves a truncated token behind.
	target := s.path(token.UserID, token.Service)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, FilePermission); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}
