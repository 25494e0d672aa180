package node

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

type ConfigurationManager interface {
	Configuration() (*Configuration, error)
	InjectX25519Keys(public, private []byte) error
	InvalidateCache()
}

type Manager struct {
	resolver Resolver
	reader   Reader
	writer   Writer
	stat     func(name string) (os.FileInfo, error)

	mu    sync.Mutex
	cache *Configuration
}

func NewManager(resolver Resolver) (ConfigurationManager, error) {
	path, pathErr := resolver.Resolve()
	if pathErr != nil {
		return nil, fmt.Errorf("failed to resolve node configuration path: %w", pathErr)
	}

	return &Manager{
		resolver: resolver,
		reader:   newDefaultReader(path),
		writer:   newDefaultWriter(path),
		stat:     os.Stat,
	}, nil
}

// Configuration returns the current configuration. A default configuration
// is written first when the file does not exist.
func (c *Manager) Configuration() (*Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache != nil {
		return c.cache, nil
	}

	path, pathErr := c.resolver.Resolve()
	if pathErr != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", pathErr)
	}

	if _, statErr := c.stat(path); statErr != nil {
		if !errors.Is(statErr, os.ErrNotExist) {
			return nil, statErr
		}
		if writeErr := c.writer.Write(*NewDefaultConfiguration()); writeErr != nil {
			return nil, fmt.Errorf("could not write default configuration: %w", writeErr)
		}
	}

	conf, err := c.reader.read()
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("configuration %s is invalid: %w", path, err)
	}
	c.cache = conf
	return conf, nil
}

func (c *Manager) InjectX25519Keys(public, private []byte) error {
	if len(public) != 32 {
		return fmt.Errorf("invalid public key length: got %d, want 32", len(public))
	}
	if len(private) != 32 {
		return fmt.Errorf("invalid private key length: got %d, want 32", len(private))
	}
	conf, err := c.Configuration()
	if err != nil {
		return err
	}

	updated := *conf
	updated.X25519PublicKey = append([]byte(nil), public...)
	updated.X25519PrivateKey = append([]byte(nil), private...)
	if err := c.writer.Write(updated); err != nil {
		return err
	}
	c.InvalidateCache()
	return nil
}

// InvalidateCache forces the next Configuration call to re-read the file.
func (c *Manager) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = nil
}
