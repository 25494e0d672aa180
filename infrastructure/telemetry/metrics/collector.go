package metrics

import (
	"meshvpn/infrastructure/telemetry/trafficstats"
	"meshvpn/infrastructure/tunnel/node"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource is implemented by node.Node.
type StatusSource interface {
	Status() node.Status
}

// TrafficSource is implemented by trafficstats.Collector.
type TrafficSource interface {
	Snapshot() trafficstats.Snapshot
}

// nodeCollector implements prometheus.Collector, taking a node status
// snapshot on each scrape.
type nodeCollector struct {
	source  StatusSource
	traffic TrafficSource

	uptime           *prometheus.Desc
	authSlots        *prometheus.Desc
	authSlotsUsed    *prometheus.Desc
	authPreauth      *prometheus.Desc
	authedPending    *prometheus.Desc
	completedPending *prometheus.Desc
	peersConnected   *prometheus.Desc

	peerQuality  *prometheus.Desc
	peerAccepted *prometheus.Desc
	peerReplayed *prometheus.Desc
	peerIdle     *prometheus.Desc

	bytesTotal   *prometheus.Desc
	packetsTotal *prometheus.Desc
}

func newCollector(source StatusSource, traffic TrafficSource) *nodeCollector {
	peerLabels := []string{"peer_id", "node_id"}
	return &nodeCollector{
		source:  source,
		traffic: traffic,

		uptime: prometheus.NewDesc(
			"meshvpn_uptime_seconds",
			"Seconds since the node started.",
			nil, nil,
		),
		authSlots: prometheus.NewDesc(
			"meshvpn_auth_slots",
			"Number of handshake slots.",
			nil, nil,
		),
		authSlotsUsed: prometheus.NewDesc(
			"meshvpn_auth_slots_used",
			"Number of handshake slots in use.",
			nil, nil,
		),
		authPreauth: prometheus.NewDesc(
			"meshvpn_auth_preauth_sessions",
			"Handshakes that have not negotiated keys yet.",
			nil, nil,
		),
		authedPending: prometheus.NewDesc(
			"meshvpn_auth_authed_pending",
			"1 while a negotiated handshake waits for the peer layer.",
			nil, nil,
		),
		completedPending: prometheus.NewDesc(
			"meshvpn_auth_completed_pending",
			"1 while a completed handshake waits for the peer layer.",
			nil, nil,
		),
		peersConnected: prometheus.NewDesc(
			"meshvpn_peers_connected",
			"Number of connected peers.",
			nil, nil,
		),
		peerQuality: prometheus.NewDesc(
			"meshvpn_peer_link_quality",
			"Packets received out of the last 64 expected, per peer.",
			peerLabels, nil,
		),
		peerAccepted: prometheus.NewDesc(
			"meshvpn_peer_packets_accepted_total",
			"Data packets accepted, per peer.",
			peerLabels, nil,
		),
		peerReplayed: prometheus.NewDesc(
			"meshvpn_peer_packets_replayed_total",
			"Data packets dropped as replays, per peer.",
			peerLabels, nil,
		),
		peerIdle: prometheus.NewDesc(
			"meshvpn_peer_idle_seconds",
			"Seconds since the last packet from the peer.",
			peerLabels, nil,
		),
		bytesTotal: prometheus.NewDesc(
			"meshvpn_transport_bytes_total",
			"Datagram bytes crossing the transport.",
			[]string{"direction"}, nil,
		),
		packetsTotal: prometheus.NewDesc(
			"meshvpn_transport_packets_total",
			"Datagrams crossing the transport.",
			[]string{"direction"}, nil,
		),
	}
}

func (c *nodeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.uptime
	ch <- c.authSlots
	ch <- c.authSlotsUsed
	ch <- c.authPreauth
	ch <- c.authedPending
	ch <- c.completedPending
	ch <- c.peersConnected
	ch <- c.peerQuality
	ch <- c.peerAccepted
	ch <- c.peerReplayed
	ch <- c.peerIdle
	ch <- c.bytesTotal
	ch <- c.packetsTotal
}

func (c *nodeCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Status()

	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}
	counter := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, v, labels...)
	}

	gauge(c.uptime, st.Uptime.Seconds())
	gauge(c.authSlots, float64(st.Auth.Slots))
	gauge(c.authSlotsUsed, float64(st.Auth.UsedSlots))
	gauge(c.authPreauth, float64(st.Auth.Preauth))
	gauge(c.authedPending, boolToFloat(st.Auth.AuthedPending))
	gauge(c.completedPending, boolToFloat(st.Auth.CompletedPending))
	gauge(c.peersConnected, float64(len(st.Peers)))

	for _, p := range st.Peers {
		peerID := strconv.FormatUint(uint64(p.LocalID), 10)
		nodeID := p.NodeID.Short()
		gauge(c.peerQuality, float64(p.Quality), peerID, nodeID)
		counter(c.peerAccepted, float64(p.Accepted), peerID, nodeID)
		counter(c.peerReplayed, float64(p.Replayed), peerID, nodeID)
		gauge(c.peerIdle, p.LastActivity.Seconds(), peerID, nodeID)
	}

	if c.traffic != nil {
		s := c.traffic.Snapshot()
		counter(c.bytesTotal, float64(s.RXBytes), "rx")
		counter(c.bytesTotal, float64(s.TXBytes), "tx")
		counter(c.packetsTotal, float64(s.RXPackets), "rx")
		counter(c.packetsTotal, float64(s.TXPackets), "tx")
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves the node metrics from an isolated registry.
func Handler(source StatusSource, traffic TrafficSource) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(source, traffic))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
