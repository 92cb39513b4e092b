// Package netwatch tracks host connectivity and announces transitions on
// the bus. Connectivity is probed, not inferred from the chat channel: the
// channel can be down while the network is fine and vice versa.
package netwatch

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gavago/roomchat/internal/bus"
	"go.uber.org/zap"
)

// DefaultInterval is how often the probe runs.
const DefaultInterval = 10 * time.Second

const probeTimeout = 3 * time.Second

// Probe reports whether the network is reachable right now.
type Probe func(ctx context.Context) bool

// TCPProbe builds a probe that attempts a TCP connection to addr
// (host:port). Reachability of the chat backend's host is the signal that
// matters, not general internet access.
func TCPProbe(addr string) Probe {
	return func(ctx context.Context) bool {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Monitor runs the probe on an interval and publishes net.online and
// net.offline on edges. It starts optimistic: the first probe corrects the
// assumption within one interval.
type Monitor struct {
	probe    Probe
	interval time.Duration
	bus      *bus.Bus
	logger   *zap.Logger

	mu     sync.Mutex
	online bool

	cancel context.CancelFunc
}

// NewMonitor creates a monitor; Start begins probing.
func NewMonitor(probe Probe, b *bus.Bus, logger *zap.Logger) *Monitor {
	return &Monitor{
		probe:    probe,
		interval: DefaultInterval,
		bus:      b,
		logger:   logger,
		online:   true,
	}
}

// Start probes immediately, then on the interval, until Stop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.run(ctx)
}

// Stop ends the probe loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Online reports connectivity as last observed.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check runs one probe and publishes a transition event if the observed
// state changed.
func (m *Monitor) Check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	now := m.probe(pctx)
	cancel()

	m.mu.Lock()
	was := m.online
	m.online = now
	m.mu.Unlock()

	if now == was {
		return
	}
	if now {
		m.logger.Info("network reachable again")
		m.bus.Publish(bus.Event{Kind: "net.online", Timestamp: time.Now()})
	} else {
		m.logger.Warn("network unreachable")
		m.bus.Publish(bus.Event{Kind: "net.offline", Timestamp: time.Now()})
	}
}
