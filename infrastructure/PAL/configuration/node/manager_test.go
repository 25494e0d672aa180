package node

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type mockResolver struct {
	path string
	err  error
}

func (m *mockResolver) Resolve() (string, error) {
	return m.path, m.err
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf", "node.json")
	m, err := NewManager(&mockResolver{path: path})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m.(*Manager), path
}

func TestNewManager_ResolveError(t *testing.T) {
	if _, err := NewManager(&mockResolver{err: errors.New("boom")}); err == nil {
		t.Fatal("expected resolver error")
	}
}

func TestManager_Configuration_WritesDefaultWhenMissing(t *testing.T) {
	m, path := newTestManager(t)
	conf, err := m.Configuration()
	if err != nil {
		t.Fatalf("Configuration: %v", err)
	}
	if conf.NetworkName != NewDefaultConfiguration().NetworkName {
		t.Fatalf("unexpected configuration %+v", conf)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default configuration not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("configuration mode = %v", info.Mode().Perm())
	}
}

func TestManager_Configuration_ReadsExistingFile(t *testing.T) {
	m, path := newTestManager(t)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	content := `{"NetworkName":"office","NetworkSecret":"s3cret","AuthSlots":8,"RecvTimeout":"45s","InitPeers":["192.0.2.1:7000"]}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	conf, err := m.Configuration()
	if err != nil {
		t.Fatalf("Configuration: %v", err)
	}
	if conf.NetworkName != "office" || conf.AuthSlots != 8 || conf.RecvTimeout.Duration().Seconds() != 45 {
		t.Fatalf("unexpected configuration %+v", conf)
	}
	if conf.MaxPeers == 0 {
		t.Fatal("defaults not applied to missing fields")
	}

	again, _ := m.Configuration()
	if again != conf {
		t.Fatal("configuration not cached")
	}
	m.InvalidateCache()
	if fresh, _ := m.Configuration(); fresh == conf {
		t.Fatal("cache not invalidated")
	}
}

func TestManager_Configuration_Errors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		m, path := newTestManager(t)
		_ = os.MkdirAll(filepath.Dir(path), 0700)
		_ = os.WriteFile(path, []byte("{"), 0600)
		if _, err := m.Configuration(); err == nil || !strings.Contains(err.Error(), "invalid") {
			t.Fatalf("expected invalid file error, got %v", err)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		m, path := newTestManager(t)
		_ = os.MkdirAll(filepath.Dir(path), 0700)
		_ = os.WriteFile(path, []byte(`{"NetworkName":"x","AuthSlots":-2}`), 0600)
		if _, err := m.Configuration(); err == nil || !strings.Contains(err.Error(), "AuthSlots") {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("stat failure", func(t *testing.T) {
		m, _ := newTestManager(t)
		m.stat = func(string) (os.FileInfo, error) { return nil, fs.ErrPermission }
		if _, err := m.Configuration(); !errors.Is(err, fs.ErrPermission) {
			t.Fatalf("expected permission error, got %v", err)
		}
	})
}

func TestManager_Configuration_EnvOverridesNetwork(t *testing.T) {
	t.Setenv("MESHVPN_NETWORK", "from-env")
	t.Setenv("MESHVPN_SECRET", "env-secret")
	m, _ := newTestManager(t)
	conf, err := m.Configuration()
	if err != nil {
		t.Fatalf("Configuration: %v", err)
	}
	if conf.NetworkName != "from-env" || conf.NetworkSecret != "env-secret" {
		t.Fatalf("environment not applied: %q %q", conf.NetworkName, conf.NetworkSecret)
	}
}

func TestManager_InjectX25519Keys(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.InjectX25519Keys([]byte{1}, make([]byte, 32)); err == nil {
		t.Fatal("short public key accepted")
	}
	if err := m.InjectX25519Keys(make([]byte, 32), []byte{1}); err == nil {
		t.Fatal("short private key accepted")
	}

	public := bytes.Repeat([]byte{0xAA}, 32)
	private := bytes.Repeat([]byte{0xBB}, 32)
	if err := m.InjectX25519Keys(public, private); err != nil {
		t.Fatalf("InjectX25519Keys: %v", err)
	}
	conf, err := m.Configuration()
	if err != nil {
		t.Fatalf("Configuration: %v", err)
	}
	if !bytes.Equal(conf.X25519PublicKey, public) || !bytes.Equal(conf.X25519PrivateKey, private) {
		t.Fatal("keys not persisted")
	}
}
