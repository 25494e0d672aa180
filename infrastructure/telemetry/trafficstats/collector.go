package trafficstats

import (
	"context"
	"sync/atomic"
	"time"
)

// Snapshot is the datagram traffic of a node seen at one instant.
type Snapshot struct {
	RXBytes   uint64
	TXBytes   uint64
	RXPackets uint64
	TXPackets uint64
	RXRate    uint64 // bytes/sec
	TXRate    uint64 // bytes/sec
}

// rate turns a growing byte total into a smoothed bytes/sec figure.
// It is only touched by the sampler goroutine, except for value.
type rate struct {
	value atomic.Uint64
	last  uint64
	ema   float64
}

func (r *rate) sample(total uint64, seconds, alpha float64) {
	perSec := float64(total-r.last) / seconds
	r.last = total
	if alpha > 0 {
		if r.ema == 0 {
			r.ema = perSec
		} else {
			r.ema = alpha*perSec + (1-alpha)*r.ema
		}
		perSec = r.ema
	}
	r.value.Store(uint64(perSec))
}

// Collector counts the datagrams a node receives and sends.
type Collector struct {
	rxBytes   atomic.Uint64
	txBytes   atomic.Uint64
	rxPackets atomic.Uint64
	txPackets atomic.Uint64
	rxRate    rate
	txRate    rate

	sampleInterval time.Duration
	emaAlpha       float64
	started        atomic.Bool
}

// NewCollector returns a collector that recomputes rates every
// sampleInterval, smoothing them with emaAlpha in [0, 1] (0 disables
// smoothing).
func NewCollector(sampleInterval time.Duration, emaAlpha float64) *Collector {
	if sampleInterval <= 0 {
		sampleInterval = time.Second
	}
	emaAlpha = min(max(emaAlpha, 0), 1)
	return &Collector{
		sampleInterval: sampleInterval,
		emaAlpha:       emaAlpha,
	}
}

// Start samples rates until ctx is cancelled. Only the first call runs.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	ticker := time.NewTicker(c.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.updateRates(c.sampleInterval)
		}
	}
}

func (c *Collector) AddRX(bytes int) {
	if bytes <= 0 {
		return
	}
	c.rxBytes.Add(uint64(bytes))
	c.rxPackets.Add(1)
}

func (c *Collector) AddTX(bytes int) {
	if bytes <= 0 {
		return
	}
	c.txBytes.Add(uint64(bytes))
	c.txPackets.Add(1)
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		RXBytes:   c.rxBytes.Load(),
		TXBytes:   c.txBytes.Load(),
		RXPackets: c.rxPackets.Load(),
		TXPackets: c.txPackets.Load(),
		RXRate:    c.rxRate.value.Load(),
		TXRate:    c.txRate.value.Load(),
	}
}

func (c *Collector) updateRates(interval time.Duration) {
	seconds := interval.Seconds()
	if seconds <= 0 {
		return
	}
	c.rxRate.sample(c.rxBytes.Load(), seconds, c.emaAlpha)
	c.txRate.sample(c.txBytes.Load(), seconds, c.emaAlpha)
}
