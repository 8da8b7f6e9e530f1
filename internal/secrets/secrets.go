// Package secrets resolves secrets from the environment and a local JSON store.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// KeySessionSecret is the key the cookie signing secret is stored under.
const KeySessionSecret = "session_secret"

// DefaultEnvPrefix is prepended to upper-cased keys by EnvProvider.
const DefaultEnvPrefix = "MINICHAT_"

// ErrNotFound is returned when no backend holds the requested key.
var ErrNotFound = errors.New("secret not found")

// Provider is the interface for secret backends.
type Provider interface {
	// Get retrieves a secret by key.
	Get(ctx context.Context, key string) (string, error)
	// Set stores a secret (not all providers support this).
	Set(ctx context.Context, key, value string) error
	// Delete removes a secret (not all providers support this).
	Delete(ctx context.Context, key string) error
	// Name returns the provider name.
	Name() string
}

// Manager reads from a primary provider, then a fallback, and caches hits.
// Writes go to the primary only.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.Mutex
	cache map[string]string
}

// NewManager creates a manager. fallback may be nil.
func NewManager(primary, fallback Provider) *Manager {
	return &Manager{
		primary:  primary,
		fallback: fallback,
		cache:    make(map[string]string),
	}
}

// NewFileManager returns a manager backed by the JSON file at path with the
// environment as fallback.
func NewFileManager(path string) (*Manager, error) {
	file, err := NewFileProvider(&FileConfig{Path: path})
	if err != nil {
		return nil, err
	}
	return NewManager(file, NewEnvProvider(DefaultEnvPrefix)), nil
}

// Get retrieves a secret, trying primary then fallback.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(ctx, key)
}

func (m *Manager) get(ctx context.Context, key string) (string, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	for _, p := range []Provider{m.primary, m.fallback} {
		if p == nil {
			continue
		}
		val, err := p.Get(ctx, key)
		if err == nil && val != "" {
			m.cache[key] = val
			return val, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// GetOrCreate returns the stored secret for key, or generates one, persists
// it in the primary provider and returns it.
func (m *Manager) GetOrCreate(ctx context.Context, key string, generate func() (string, error)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, err := m.get(ctx, key)
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	val, err = generate()
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", key, err)
	}
	if err := m.primary.Set(ctx, key, val); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	m.cache[key] = val
	return val, nil
}

// Set stores a secret in the primary provider.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.primary.Set(ctx, key, value); err != nil {
		return err
	}
	m.cache[key] = value
	return nil
}

// Delete removes a secret from the primary provider.
func (m *Manager) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.primary.Delete(ctx, key); err != nil {
		return err
	}
	delete(m.cache, key)
	return nil
}

// RandomHex returns a generator of n random bytes, hex encoded.
func RandomHex(n int) func() (string, error) {
	return func() (string, error) {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		return hex.EncodeToString(buf), nil
	}
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment-based secrets provider.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

// Get looks up PREFIX_KEY, then KEY.
func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	envKey := p.prefix + strings.ToUpper(key)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}
	if val := os.Getenv(strings.ToUpper(key)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: env %s", ErrNotFound, envKey)
}

func (p *EnvProvider) Set(_ context.Context, key, value string) error {
	return os.Setenv(p.prefix+strings.ToUpper(key), value)
}

func (p *EnvProvider) Delete(_ context.Context, key string) error {
	return os.Unsetenv(p.prefix + strings.ToUpper(key))
}
