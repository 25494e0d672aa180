package node

import (
	"context"
	"meshvpn/application/logging"
	"net/netip"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeListener applies configuration changes to a running node.
type ChangeListener interface {
	// NetworkChanged is called when NetworkName or NetworkSecret changed.
	NetworkChanged(conf *Configuration)
	// InitPeersChanged is called with the resolved init peers when the
	// InitPeers list changed.
	InitPeersChanged(peers []netip.AddrPort)
}

// ConfigWatcher monitors the network identity and the init peers of the
// configuration. It uses fsnotify for instant updates, with polling as
// fallback.
type ConfigWatcher struct {
	configManager ConfigurationManager
	listener      ChangeListener
	configPath    string
	interval      time.Duration
	logger        logging.Logger

	prevNetwork   [2]string
	prevInitPeers []string
}

func NewConfigWatcher(
	configManager ConfigurationManager,
	listener ChangeListener,
	configPath string,
	interval time.Duration,
	logger logging.Logger,
) *ConfigWatcher {
	return &ConfigWatcher{
		configManager: configManager,
		listener:      listener,
		configPath:    configPath,
		interval:      interval,
		logger:        logger,
	}
}

// Watch blocks until ctx is cancelled.
func (w *ConfigWatcher) Watch(ctx context.Context) {
	w.loadCurrentState()

	// The directory is watched because atomic writes (write to temp, then
	// rename) lose the watch on the original inode.
	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	var configFileName string
	watcher, err := fsnotify.NewWatcher()
	if err == nil && w.configPath != "" {
		defer func() {
			_ = watcher.Close()
		}()
		dir, file := filepath.Split(w.configPath)
		if dir == "" {
			dir = "."
		}
		configFileName = file
		if addErr := watcher.Add(dir); addErr == nil {
			fsEvents = watcher.Events
			fsErrors = watcher.Errors
		} else {
			w.logger.Printf("config watcher: fsnotify watch failed: %v (using polling)", addErr)
		}
	} else if err != nil {
		w.logger.Printf("config watcher: fsnotify unavailable: %v (using polling)", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if _, eventFile := filepath.Split(event.Name); eventFile != configFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.ForceCheck()
			}
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.logger.Printf("config watcher: fsnotify error: %v", err)
		case <-ticker.C:
			w.ForceCheck()
		}
	}
}

func (w *ConfigWatcher) loadCurrentState() {
	conf, err := w.configManager.Configuration()
	if err != nil {
		w.logger.Printf("config watcher: failed to load initial config: %v", err)
		return
	}
	w.prevNetwork = [2]string{conf.NetworkName, conf.NetworkSecret}
	w.prevInitPeers = slices.Clone(conf.InitPeers)
}

// ForceCheck re-reads the configuration and reports what changed since the
// previous check.
func (w *ConfigWatcher) ForceCheck() {
	w.configManager.InvalidateCache()
	conf, err := w.configManager.Configuration()
	if err != nil {
		w.logger.Printf("config watcher: failed to load config: %v", err)
		return
	}

	network := [2]string{conf.NetworkName, conf.NetworkSecret}
	if network != w.prevNetwork {
		w.prevNetwork = network
		w.logger.Printf("config watcher: network identity changed to %q", conf.NetworkName)
		w.listener.NetworkChanged(conf)
	}

	if !slices.Equal(conf.InitPeers, w.prevInitPeers) {
		w.prevInitPeers = slices.Clone(conf.InitPeers)
		peers, resolveErr := conf.ResolveInitPeers()
		if resolveErr != nil {
			w.logger.Printf("config watcher: %v", resolveErr)
		}
		w.logger.Printf("config watcher: init peers changed (%d entries)", len(conf.InitPeers))
		w.listener.InitPeersChanged(peers)
	}
}
