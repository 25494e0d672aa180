package node

import (
	"os"
	"path/filepath"
)

// Resolver resolves the configuration file path.
type Resolver interface {
	Resolve() (string, error)
}

type resolver struct {
	path string
}

// NewResolver returns a resolver for path, or for the default location
// when path is empty.
func NewResolver(path string) Resolver {
	return &resolver{path: path}
}

func (r resolver) Resolve() (string, error) {
	if r.path != "" {
		return filepath.Abs(r.path)
	}
	return filepath.Join(string(os.PathSeparator), "etc", "meshvpn", "node_configuration.json"), nil
}
