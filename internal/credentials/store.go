package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no cookie is stored.
var ErrNotFound = errors.New("credentials: cookie not found")

// ErrReadOnly is returned by stores that cannot be written.
var ErrReadOnly = errors.New("credentials: store is read-only")

// Store reads and writes the upstream session cookie.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, cookie string) error
}

// EnvStore reads the cookie from an environment variable.
type EnvStore struct {
	name   string
	lookup func(string) (string, bool)
}

// Compile-time check that EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates a store reading the variable name.
func NewEnvStore(name string) *EnvStore {
	return &EnvStore{name: name, lookup: os.LookupEnv}
}

// Read returns the variable value or ErrNotFound when unset or empty.
func (s *EnvStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := s.lookup(s.name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", ErrNotFound
	}
	return strings.TrimSpace(v), nil
}

// Write always fails; the environment is owned by the process supervisor.
func (s *EnvStore) Write(context.Context, string) error {
	return ErrReadOnly
}

// FileStore keeps the cookie in a file.
type FileStore struct {
	path string
}

// Compile-time check that FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file path cannot be empty")
	}
	return &FileStore{path: path}, nil
}

// Read returns the file content or ErrNotFound when the file is missing or empty.
func (s *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading cookie file: %w", err)
	}
	cookie := strings.TrimSpace(string(data))
	if cookie == "" {
		return "", ErrNotFound
	}
	return cookie, nil
}

// Write stores cookie, or removes the file when cookie is empty.
func (s *FileStore) Write(ctx context.Context, cookie string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cookie == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing cookie file: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating cookie directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(cookie), 0o600); err != nil {
		return fmt.Errorf("writing cookie file: %w", err)
	}
	return nil
}

// KeyringStore keeps the cookie in the OS keyring.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check that KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a store for the given keyring service and user.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" || user == "" {
		return nil, errors.New("keyring service and user cannot be empty")
	}
	return &KeyringStore{service: service, user: user}, nil
}

// Read returns the stored cookie or ErrNotFound.
func (s *KeyringStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cookie, err := keyring.Get(s.service, s.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	return cookie, nil
}

// Write stores cookie, or deletes the entry when cookie is empty.
func (s *KeyringStore) Write(ctx context.Context, cookie string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cookie == "" {
		if err := keyring.Delete(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("deleting keyring entry: %w", err)
		}
		return nil
	}
	if err := keyring.Set(s.service, s.user, cookie); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}
