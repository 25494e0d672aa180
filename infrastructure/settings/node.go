package settings

import "time"

const (
	DefaultListenPort = 7000

	// DefaultAuthSlots is the number of concurrent handshakes a node tracks.
	DefaultAuthSlots = 32
	// DefaultRecvTimeout evicts a handshake that has not heard from its
	// peer for this long.
	DefaultRecvTimeout = 30 * time.Second
	// DefaultResendTimeout is the minimum gap between two sends of the same
	// handshake slot.
	DefaultResendTimeout = 3 * time.Second

	DefaultMaxPeers   = 256
	DefaultWindowSize = 4096

	// DefaultKeepaliveInterval is how long a peer may go without traffic
	// from us before a keepalive is sent.
	DefaultKeepaliveInterval = 10 * time.Second
	// DefaultPeerTimeout must be significantly larger than
	// DefaultKeepaliveInterval to tolerate loss and jitter.
	DefaultPeerTimeout = 60 * time.Second

	// ReconnectInterval is how often the init peers are contacted while no
	// peer is connected.
	ReconnectInterval = 30 * time.Second
	// StatusInterval is how often the peer count is checked for the
	// status log line.
	StatusInterval = 10 * time.Second
	// IdleReaperInterval is how often idle peers are looked for.
	IdleReaperInterval = 10 * time.Second
	// ConfigPollInterval is the fallback polling interval of the
	// configuration watcher.
	ConfigPollInterval = 30 * time.Second
	// DashboardRefreshInterval is how often the dashboard redraws.
	DashboardRefreshInterval = time.Second
)
