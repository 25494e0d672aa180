package node

import (
	"encoding/json"
	"fmt"
	"os"
)

type Reader interface {
	read() (*Configuration, error)
}

type defaultReader struct {
	path string
}

func newDefaultReader(path string) *defaultReader {
	return &defaultReader{path: path}
}

func (r *defaultReader) read() (*Configuration, error) {
	fileBytes, readFileErr := os.ReadFile(r.path)
	if readFileErr != nil {
		return nil, fmt.Errorf("configuration file (%s) is unreadable: %w", r.path, readFileErr)
	}

	var configuration Configuration
	if err := json.Unmarshal(fileBytes, &configuration); err != nil {
		return nil, fmt.Errorf("configuration file (%s) is invalid: %w", r.path, err)
	}
	r.applyEnv(&configuration)

	return configuration.EnsureDefaults(), nil
}

// applyEnv lets the network credentials be supplied without writing them
// to disk.
func (r *defaultReader) applyEnv(conf *Configuration) {
	if name := os.Getenv("MESHVPN_NETWORK"); name != "" {
		conf.NetworkName = name
	}
	if secret := os.Getenv("MESHVPN_SECRET"); secret != "" {
		conf.NetworkSecret = secret
	}
}
