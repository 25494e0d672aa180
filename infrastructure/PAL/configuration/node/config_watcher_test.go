package node

import (
	"context"
	"encoding/json"
	"net/netip"
	"os"
	"sync"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

type fakeConfigManager struct {
	mu   sync.Mutex
	conf Configuration
	err  error
}

func (f *fakeConfigManager) Configuration() (*Configuration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := f.conf
	return &c, nil
}

func (f *fakeConfigManager) InjectX25519Keys(_, _ []byte) error { return nil }

func (f *fakeConfigManager) InvalidateCache() {}

func (f *fakeConfigManager) set(fn func(*Configuration)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.conf)
}

type recordingListener struct {
	mu        sync.Mutex
	networks  []string
	initPeers [][]netip.AddrPort
}

func (l *recordingListener) NetworkChanged(conf *Configuration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.networks = append(l.networks, conf.NetworkName)
}

func (l *recordingListener) InitPeersChanged(peers []netip.AddrPort) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initPeers = append(l.initPeers, peers)
}

func (l *recordingListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.networks), len(l.initPeers)
}

func TestConfigWatcher_ForceCheck(t *testing.T) {
	manager := &fakeConfigManager{conf: Configuration{NetworkName: "a", NetworkSecret: "s"}}
	listener := &recordingListener{}
	w := NewConfigWatcher(manager, listener, "", time.Hour, nopLogger{})
	w.loadCurrentState()

	t.Run("no change", func(t *testing.T) {
		w.ForceCheck()
		if n, p := listener.counts(); n != 0 || p != 0 {
			t.Fatalf("unexpected notifications: %d network, %d init peers", n, p)
		}
	})

	t.Run("secret change", func(t *testing.T) {
		manager.set(func(c *Configuration) { c.NetworkSecret = "rotated" })
		w.ForceCheck()
		w.ForceCheck()
		if n, _ := listener.counts(); n != 1 {
			t.Fatalf("network notifications = %d, want 1", n)
		}
	})

	t.Run("init peers change", func(t *testing.T) {
		manager.set(func(c *Configuration) { c.InitPeers = []string{"192.0.2.1:7000"} })
		w.ForceCheck()
		_, p := listener.counts()
		if p != 1 || len(listener.initPeers[0]) != 1 {
			t.Fatalf("init peer notifications = %d", p)
		}
		if n, _ := listener.counts(); n != 1 {
			t.Fatal("init peer change reported as network change")
		}
	})

	t.Run("read error", func(t *testing.T) {
		manager.set(func(c *Configuration) { c.NetworkName = "b" })
		manager.err = os.ErrPermission
		w.ForceCheck()
		manager.err = nil
		if n, _ := listener.counts(); n != 1 {
			t.Fatal("failed read produced a notification")
		}
	})
}

func TestConfigWatcher_WatchDetectsFileChange(t *testing.T) {
	m, path := newTestManager(t)
	if _, err := m.Configuration(); err != nil {
		t.Fatal(err)
	}
	listener := &recordingListener{}
	w := NewConfigWatcher(m, listener, path, 50*time.Millisecond, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Watch(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)

	conf := NewDefaultConfiguration()
	conf.NetworkName = "changed"
	data, _ := json.Marshal(conf)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _ := listener.counts(); n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("network change not detected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	listener.mu.Lock()
	defer listener.mu.Unlock()
	if listener.networks[0] != "changed" {
		t.Fatalf("reported network %q", listener.networks[0])
	}
}

func TestConfigWatcher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewConfigWatcher(&fakeConfigManager{conf: Configuration{NetworkName: "a"}}, &recordingListener{}, "", time.Hour, nopLogger{})
	done := make(chan struct{})
	go func() {
		w.Watch(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
