package node

import (
	"meshvpn/infrastructure/settings"
	"net/netip"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfiguration(t *testing.T) {
	c := NewDefaultConfiguration()
	if err := c.Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}
	if c.AuthSlots != settings.DefaultAuthSlots || c.MaxPeers != settings.DefaultMaxPeers {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.ListenAddress.Port() != settings.DefaultListenPort {
		t.Fatalf("ListenAddress = %s", c.ListenAddress)
	}
	if c.RecvTimeout.Duration() != 30*time.Second || c.ResendTimeout.Duration() != 3*time.Second {
		t.Fatalf("timeouts = %s / %s", c.RecvTimeout.Duration(), c.ResendTimeout.Duration())
	}
}

func TestConfiguration_EnsureDefaultsKeepsValues(t *testing.T) {
	c := &Configuration{AuthSlots: 4, WindowSize: 512, ListenAddress: netip.MustParseAddrPort("127.0.0.1:9000")}
	c.EnsureDefaults()
	if c.AuthSlots != 4 || c.WindowSize != 512 || c.ListenAddress.Port() != 9000 {
		t.Fatalf("EnsureDefaults overwrote set fields: %+v", c)
	}
}

func TestConfiguration_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
		want   string
	}{
		{"empty network name", func(c *Configuration) { c.NetworkName = "" }, "network name"},
		{"no auth slots", func(c *Configuration) { c.AuthSlots = 0 }, "AuthSlots"},
		{"negative auth slots", func(c *Configuration) { c.AuthSlots = -1 }, "AuthSlots"},
		{"no peers", func(c *Configuration) { c.MaxPeers = 0 }, "MaxPeers"},
		{"small window", func(c *Configuration) { c.WindowSize = 64 }, "WindowSize"},
		{"resend exceeds recv", func(c *Configuration) {
			c.ResendTimeout = settings.HumanReadableDuration(time.Minute)
		}, "RecvTimeout"},
		{"keepalive exceeds timeout", func(c *Configuration) {
			c.KeepaliveInterval = settings.HumanReadableDuration(time.Hour)
		}, "PeerTimeout"},
		{"traffic class", func(c *Configuration) { c.TrafficClass = 256 }, "TrafficClass"},
		{"short private key", func(c *Configuration) { c.X25519PrivateKey = []byte{1} }, "private key"},
		{"short public key", func(c *Configuration) { c.X25519PublicKey = []byte{1} }, "public key"},
		{"missing listen address", func(c *Configuration) { c.ListenAddress = netip.AddrPort{} }, "listen address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDefaultConfiguration()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestConfiguration_ResolveInitPeers(t *testing.T) {
	c := &Configuration{InitPeers: []string{"192.0.2.1:7000", "[::ffff:192.0.2.2]:7001", "localhost:7002", "no port"}}
	peers, err := c.ResolveInitPeers()
	if err == nil || !strings.Contains(err.Error(), "no port") {
		t.Fatalf("expected an error for the unresolvable entry, got %v", err)
	}
	if len(peers) != 3 {
		t.Fatalf("resolved %d peers, want 3: %v", len(peers), peers)
	}
	if peers[0] != netip.MustParseAddrPort("192.0.2.1:7000") {
		t.Fatalf("peers[0] = %s", peers[0])
	}
	if peers[1] != netip.MustParseAddrPort("192.0.2.2:7001") {
		t.Fatalf("mapped address not unmapped: %s", peers[1])
	}
	if !peers[2].Addr().IsLoopback() || peers[2].Port() != 7002 {
		t.Fatalf("peers[2] = %s", peers[2])
	}
}
