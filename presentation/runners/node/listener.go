package node

import (
	"meshvpn/application/logging"
	nodeConfiguration "meshvpn/infrastructure/PAL/configuration/node"
	"meshvpn/infrastructure/cryptography/noise"
	meshnode "meshvpn/infrastructure/tunnel/node"
	"net/netip"
)

// reconfigurable is the part of the node a configuration change touches.
type reconfigurable interface {
	Reset(network *noise.NetworkKey)
	SetInitPeers(peers []netip.AddrPort)
}

// configChangeListener applies configuration file changes to the running node.
type configChangeListener struct {
	node   reconfigurable
	logger logging.Logger
}

func newConfigChangeListener(node reconfigurable, logger logging.Logger) *configChangeListener {
	return &configChangeListener{node: node, logger: logger}
}

func (l *configChangeListener) NetworkChanged(conf *nodeConfiguration.Configuration) {
	network, err := noise.DeriveNetworkKey(conf.NetworkName, conf.NetworkSecret)
	if err != nil {
		l.logger.Printf("network change ignored: %v", err)
		return
	}
	l.logger.Printf("switching to network %q", conf.NetworkName)
	l.node.Reset(network)
}

func (l *configChangeListener) InitPeersChanged(peers []netip.AddrPort) {
	l.node.SetInitPeers(peers)
}

var _ reconfigurable = (*meshnode.Node)(nil)
