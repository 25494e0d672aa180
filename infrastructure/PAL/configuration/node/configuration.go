package node

import (
	"errors"
	"fmt"
	"meshvpn/infrastructure/settings"
	"net"
	"net/netip"
)

type Configuration struct {
	// NetworkName and NetworkSecret select the mesh. Nodes only talk to
	// nodes configured with the same pair.
	NetworkName   string `json:"NetworkName"`
	NetworkSecret string `json:"NetworkSecret"`

	ListenAddress netip.AddrPort `json:"ListenAddress"`
	// InitPeers are "host:port" entries contacted while no peer is connected.
	InitPeers []string `json:"InitPeers"`

	MaxPeers          int                            `json:"MaxPeers"`
	AuthSlots         int                            `json:"AuthSlots"`
	RecvTimeout       settings.HumanReadableDuration `json:"RecvTimeout"`
	ResendTimeout     settings.HumanReadableDuration `json:"ResendTimeout"`
	WindowSize        int64                          `json:"WindowSize"`
	PeerTimeout       settings.HumanReadableDuration `json:"PeerTimeout"`
	KeepaliveInterval settings.HumanReadableDuration `json:"KeepaliveInterval"`
	FastAuth          bool                           `json:"FastAuth"`
	LocalFlags        int64                          `json:"LocalFlags"`
	TrafficClass      int                            `json:"TrafficClass"`

	// MetricsAddress enables the Prometheus endpoint when not empty.
	MetricsAddress string `json:"MetricsAddress"`

	X25519PublicKey  []byte `json:"X25519PublicKey"`
	X25519PrivateKey []byte `json:"X25519PrivateKey"`
}

func NewDefaultConfiguration() *Configuration {
	configuration := &Configuration{
		NetworkName: "meshvpn",
		FastAuth:    true,
	}
	return configuration.EnsureDefaults()
}

// EnsureDefaults fills every zero field with its default value.
func (c *Configuration) EnsureDefaults() *Configuration {
	if !c.ListenAddress.IsValid() {
		c.ListenAddress = netip.AddrPortFrom(netip.IPv4Unspecified(), settings.DefaultListenPort)
	}
	if c.MaxPeers == 0 {
		c.MaxPeers = settings.DefaultMaxPeers
	}
	if c.AuthSlots == 0 {
		c.AuthSlots = settings.DefaultAuthSlots
	}
	if c.RecvTimeout == 0 {
		c.RecvTimeout = settings.HumanReadableDuration(settings.DefaultRecvTimeout)
	}
	if c.ResendTimeout == 0 {
		c.ResendTimeout = settings.HumanReadableDuration(settings.DefaultResendTimeout)
	}
	if c.WindowSize == 0 {
		c.WindowSize = settings.DefaultWindowSize
	}
	if c.PeerTimeout == 0 {
		c.PeerTimeout = settings.HumanReadableDuration(settings.DefaultPeerTimeout)
	}
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = settings.HumanReadableDuration(settings.DefaultKeepaliveInterval)
	}
	return c
}

func (c *Configuration) Validate() error {
	if c.NetworkName == "" {
		return fmt.Errorf("network name is empty")
	}
	if !c.ListenAddress.IsValid() {
		return fmt.Errorf("listen address is not set")
	}
	if c.AuthSlots <= 0 {
		return fmt.Errorf("invalid AuthSlots %d: at least one handshake slot is required", c.AuthSlots)
	}
	if c.MaxPeers <= 0 {
		return fmt.Errorf("invalid MaxPeers %d", c.MaxPeers)
	}
	if c.WindowSize < 128 {
		return fmt.Errorf("invalid WindowSize %d: must be at least 128", c.WindowSize)
	}
	if c.RecvTimeout <= c.ResendTimeout {
		return fmt.Errorf("RecvTimeout (%s) must exceed ResendTimeout (%s)",
			c.RecvTimeout.Duration(), c.ResendTimeout.Duration())
	}
	if c.PeerTimeout <= c.KeepaliveInterval {
		return fmt.Errorf("PeerTimeout (%s) must exceed KeepaliveInterval (%s)",
			c.PeerTimeout.Duration(), c.KeepaliveInterval.Duration())
	}
	if c.TrafficClass < 0 || c.TrafficClass > 255 {
		return fmt.Errorf("invalid TrafficClass %d", c.TrafficClass)
	}
	if len(c.X25519PrivateKey) != 0 && len(c.X25519PrivateKey) != 32 {
		return fmt.Errorf("invalid private key length: got %d, want 32", len(c.X25519PrivateKey))
	}
	if len(c.X25519PublicKey) != 0 && len(c.X25519PublicKey) != 32 {
		return fmt.Errorf("invalid public key length: got %d, want 32", len(c.X25519PublicKey))
	}
	return nil
}

// ResolveInitPeers resolves InitPeers. Entries that cannot be resolved are
// skipped and reported in the returned error.
func (c *Configuration) ResolveInitPeers() ([]netip.AddrPort, error) {
	peers := make([]netip.AddrPort, 0, len(c.InitPeers))
	var errs []error
	for _, entry := range c.InitPeers {
		if ap, err := netip.ParseAddrPort(entry); err == nil {
			peers = append(peers, netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()))
			continue
		}
		addr, err := net.ResolveUDPAddr("udp", entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("init peer %q: %w", entry, err))
			continue
		}
		ap := addr.AddrPort()
		peers = append(peers, netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()))
	}
	return peers, errors.Join(errs...)
}
