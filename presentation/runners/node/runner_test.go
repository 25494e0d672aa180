package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"meshvpn/application/timing"
	nodeConfiguration "meshvpn/infrastructure/PAL/configuration/node"
	"meshvpn/infrastructure/cryptography/noise"
	"meshvpn/infrastructure/logging"
	"meshvpn/infrastructure/settings"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeConfigurationManager struct {
	conf *nodeConfiguration.Configuration
}

func (f *fakeConfigurationManager) Configuration() (*nodeConfiguration.Configuration, error) {
	return f.conf, nil
}

func (f *fakeConfigurationManager) InjectX25519Keys(_, _ []byte) error { return nil }

func (f *fakeConfigurationManager) InvalidateCache() {}

type fakeKeyManager struct {
	identity *noise.Identity
	err      error
}

func (f *fakeKeyManager) PrepareKeys() (*noise.Identity, error) {
	return f.identity, f.err
}

type recordingLogger struct {
	mu   sync.Mutex
	logs []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, fmt.Sprintf(format, v...))
}

func (l *recordingLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.logs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func testConfiguration() *nodeConfiguration.Configuration {
	conf := nodeConfiguration.NewDefaultConfiguration()
	conf.NetworkSecret = "secret"
	conf.ListenAddress = netip.MustParseAddrPort("127.0.0.1:0")
	return conf
}

func newTestDependencies(t *testing.T, conf *nodeConfiguration.Configuration, keys nodeConfiguration.KeyManager, logger *recordingLogger) AppDependencies {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.json")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if keys == nil {
		identity, err := noise.GenerateIdentity()
		if err != nil {
			t.Fatalf("GenerateIdentity: %v", err)
		}
		keys = &fakeKeyManager{identity: identity}
	}
	return NewDependencies(
		conf,
		&fakeConfigurationManager{conf: conf},
		keys,
		path,
		timing.NewMonotonicClock(),
		logger,
		logging.NewDiscardLogger(),
	)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	conf := testConfiguration()
	conf.MetricsAddress = "127.0.0.1:0"
	conf.InitPeers = []string{"127.0.0.1:9"}
	logger := &recordingLogger{}
	runner := NewRunner(newTestDependencies(t, conf, nil, logger), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if !logger.contains("listening on") {
		t.Fatalf("startup not logged: %v", logger.logs)
	}
}

func TestRunner_KeyManagerError(t *testing.T) {
	keys := &fakeKeyManager{err: errors.New("no keys")}
	runner := NewRunner(newTestDependencies(t, testConfiguration(), keys, &recordingLogger{}), Options{})
	if err := runner.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "no keys") {
		t.Fatalf("expected key manager error, got %v", err)
	}
}

func TestRunner_InvalidNetwork(t *testing.T) {
	conf := testConfiguration()
	conf.NetworkName = ""
	runner := NewRunner(newTestDependencies(t, conf, nil, &recordingLogger{}), Options{})
	if err := runner.Run(context.Background()); !errors.Is(err, noise.ErrEmptyNetworkName) {
		t.Fatalf("expected ErrEmptyNetworkName, got %v", err)
	}
}

func TestRunner_ListenError(t *testing.T) {
	busy, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer busy.Close()

	conf := testConfiguration()
	conf.ListenAddress = busy.LocalAddr().(*net.UDPAddr).AddrPort()
	runner := NewRunner(newTestDependencies(t, conf, nil, &recordingLogger{}), Options{})
	if err := runner.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "failed to listen") {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestRunner_UnresolvableInitPeersAreSkipped(t *testing.T) {
	conf := testConfiguration()
	conf.InitPeers = []string{"not a host"}
	logger := &recordingLogger{}
	runner := NewRunner(newTestDependencies(t, conf, nil, logger), Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !logger.contains("init peers were skipped") {
		t.Fatalf("skipped init peers not logged: %v", logger.logs)
	}
}

func TestNodeConfig(t *testing.T) {
	conf := testConfiguration()
	conf.AuthSlots = 7
	conf.MaxPeers = 9
	conf.WindowSize = 2048
	conf.FastAuth = false
	conf.LocalFlags = 3
	peers := []netip.AddrPort{netip.MustParseAddrPort("192.0.2.1:7000")}

	got := nodeConfig(conf, peers)
	if got.AuthSlots != 7 || got.MaxPeers != 9 || got.WindowSize != 2048 || got.FastAuth || got.LocalFlags != 3 {
		t.Fatalf("unexpected config %+v", got)
	}
	if got.RecvTimeout != settings.DefaultRecvTimeout || got.ResendTimeout != settings.DefaultResendTimeout {
		t.Fatalf("unexpected handshake timeouts %+v", got)
	}
	if got.PeerTimeout != settings.DefaultPeerTimeout || got.KeepaliveInterval != settings.DefaultKeepaliveInterval {
		t.Fatalf("unexpected peer timers %+v", got)
	}
	if got.ReconnectInterval != settings.ReconnectInterval || got.StatusInterval != settings.StatusInterval {
		t.Fatalf("unexpected node timers %+v", got)
	}
	if len(got.InitPeers) != 1 || got.InitPeers[0] != peers[0] {
		t.Fatalf("InitPeers = %v", got.InitPeers)
	}
}

func TestParseOptions(t *testing.T) {
	options, err := ParseOptions([]string{"-config", "/tmp/node.json", "-v", "-tui"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseOptions: %v", err)
	}
	if options != (Options{ConfigPath: "/tmp/node.json", Verbose: true, Dashboard: true}) {
		t.Fatalf("unexpected options %+v", options)
	}

	options, err = ParseOptions(nil, io.Discard)
	if err != nil || options != (Options{}) {
		t.Fatalf("defaults: %+v, %v", options, err)
	}

	if _, err := ParseOptions([]string{"-unknown"}, io.Discard); err == nil {
		t.Fatal("expected an error for an unknown flag")
	}
}
