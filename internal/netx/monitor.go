// Package netx tracks server reachability. It exposes a synchronous probe,
// the last known online state, and change notifications consumed by the
// sync subsystem.
package netx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/tripdesk/internal/logging"
)

// ChangeHandler is invoked on every online/offline transition.
type ChangeHandler func(online bool)

// Monitor polls a health endpoint and notifies subscribers when reachability
// changes. The initial state is online; the first probe corrects it.
type Monitor struct {
	probeURL string
	client   *http.Client
	log      logging.Logger

	mu       sync.Mutex
	online   bool
	handlers []ChangeHandler
}

func NewMonitor(probeURL string, log logging.Logger) *Monitor {
	return &Monitor{
		probeURL: probeURL,
		client:   &http.Client{Timeout: 3 * time.Second},
		log:      log.With("component", "netx"),
		online:   true,
	}
}

// IsOnline reports the last observed reachability state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a handler for reachability transitions.
// Handlers run synchronously in the goroutine that observed the transition.
func (m *Monitor) OnChange(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// SetOnline records a new reachability state. Handlers fire only when the
// state actually changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	handlers := make([]ChangeHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	if online {
		m.log.Info(context.Background(), "connectivity restored")
	} else {
		m.log.Warn(context.Background(), "connectivity lost")
	}
	for _, h := range handlers {
		h(online)
	}
}

// Probe performs a single reachability check against the health endpoint.
func (m *Monitor) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Run probes on the given interval until ctx is cancelled, updating the
// online state on every tick.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			m.SetOnline(m.Probe(probeCtx))
			cancel()
		case <-ctx.Done():
			return
		}
	}
}
