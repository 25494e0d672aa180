package node

import (
	"context"
	"errors"
	"fmt"
	nodeConfiguration "meshvpn/infrastructure/PAL/configuration/node"
	"meshvpn/infrastructure/cryptography/noise"
	"meshvpn/infrastructure/network/udp/transport"
	"meshvpn/infrastructure/settings"
	"meshvpn/infrastructure/telemetry/metrics"
	"meshvpn/infrastructure/telemetry/trafficstats"
	meshnode "meshvpn/infrastructure/tunnel/node"
	"meshvpn/infrastructure/tunnel/session"
	"meshvpn/presentation/ui/tui"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"
)

const trafficEMAAlpha = 0.3

type Runner struct {
	deps    AppDependencies
	options Options
}

func NewRunner(deps AppDependencies, options Options) *Runner {
	return &Runner{
		deps:    deps,
		options: options,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	identity, err := r.deps.KeyManager().PrepareKeys()
	if err != nil {
		return fmt.Errorf("failed to prepare x25519 keys: %w", err)
	}

	conf := r.deps.Configuration()
	network, err := noise.DeriveNetworkKey(conf.NetworkName, conf.NetworkSecret)
	if err != nil {
		return fmt.Errorf("invalid network: %w", err)
	}

	initPeers, initPeersErr := conf.ResolveInitPeers()
	if initPeersErr != nil {
		r.deps.Logger().Printf("some init peers were skipped: %v", initPeersErr)
	}

	node, err := meshnode.NewNode(
		nodeConfig(conf, initPeers),
		noise.NewCredentials(identity, network),
		r.deps.Clock(),
		r.deps.Logger(),
		r.deps.DebugLogger(),
	)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	udp, err := transport.Listen(conf.ListenAddress, conf.TrafficClass)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", conf.ListenAddress, err)
	}

	traffic := trafficstats.NewCollector(time.Second, trafficEMAAlpha)
	node.SetTrafficRecorder(traffic)

	r.deps.Logger().Printf("node %s listening on %s, network %q", identity.NodeID(), udp.LocalAddr(), conf.NetworkName)

	return r.runWorkers(ctx, node, udp, traffic)
}

func (r *Runner) runWorkers(
	ctx context.Context,
	node *meshnode.Node,
	udp *transport.Transport,
	traffic *trafficstats.Collector,
) error {
	// Fail-fast: the first worker returning an error cancels runCtx,
	// stopping all other workers.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(runCtx)

	conf := r.deps.Configuration()

	eg.Go(func() error {
		if err := node.Run(egCtx, udp); err != nil {
			return fmt.Errorf("node loop failed: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		session.RunIdleReaperLoop(egCtx, node.Peers(), r.deps.Clock(), conf.PeerTimeout.Duration(), settings.IdleReaperInterval, r.deps.Logger())
		return nil
	})
	eg.Go(func() error {
		traffic.Start(egCtx)
		return nil
	})
	eg.Go(func() error {
		r.drainFrames(egCtx, node)
		return nil
	})
	eg.Go(func() error {
		watcher := nodeConfiguration.NewConfigWatcher(
			r.deps.ConfigurationManager(),
			newConfigChangeListener(node, r.deps.Logger()),
			r.deps.ConfigPath(),
			settings.ConfigPollInterval,
			r.deps.Logger(),
		)
		watcher.Watch(egCtx)
		return nil
	})
	if conf.MetricsAddress != "" {
		eg.Go(func() error {
			server := metrics.NewServer(conf.MetricsAddress, node, traffic)
			if err := server.ListenAndServe(egCtx); err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}
	if r.options.Dashboard {
		eg.Go(func() error {
			return r.runDashboard(egCtx, cancel, node, udp, traffic)
		})
	}

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runner) runDashboard(
	ctx context.Context,
	cancel context.CancelFunc,
	node *meshnode.Node,
	udp *transport.Transport,
	traffic *trafficstats.Collector,
) error {
	logs := tui.NewLogBuffer(0)
	restore := tui.RedirectStandardLogger(logs)
	defer restore()

	quit, err := tui.RunDashboard(ctx, tui.DashboardOptions{
		ListenAddress:   udp.LocalAddr().String(),
		Status:          node,
		Traffic:         traffic,
		Logs:            logs,
		RefreshInterval: settings.DashboardRefreshInterval,
	})
	if err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	if quit {
		cancel()
	}
	return nil
}

// drainFrames consumes the frames delivered by peers. Frames are not
// forwarded anywhere yet, so they are only reported at debug level.
func (r *Runner) drainFrames(ctx context.Context, node *meshnode.Node) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-node.Frames():
			r.deps.DebugLogger().Printf("frame from peer %d (%s), %d bytes", frame.PeerID, frame.NodeID.Short(), len(frame.Payload))
		}
	}
}

func nodeConfig(conf *nodeConfiguration.Configuration, initPeers []netip.AddrPort) meshnode.Config {
	return meshnode.Config{
		AuthSlots:         conf.AuthSlots,
		RecvTimeout:       conf.RecvTimeout.Duration(),
		ResendTimeout:     conf.ResendTimeout.Duration(),
		MaxPeers:          conf.MaxPeers,
		WindowSize:        conf.WindowSize,
		PeerTimeout:       conf.PeerTimeout.Duration(),
		KeepaliveInterval: conf.KeepaliveInterval.Duration(),
		ReconnectInterval: settings.ReconnectInterval,
		StatusInterval:    settings.StatusInterval,
		FastAuth:          conf.FastAuth,
		LocalFlags:        conf.LocalFlags,
		InitPeers:         initPeers,
	}
}
