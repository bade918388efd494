// Package retry makes the outward "send a user message" operation
// resilient to transient network and server failures without
// duplicating sends or losing messages.
package retry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stridefit-ai/coaching-engine/pkg/logger"
)

// Monitor reports current network reachability. OnChange callbacks
// fire on every transition; they must not block.
type Monitor interface {
	IsOnline() bool
	OnChange(fn func(online bool))
}

// ProbeMonitor polls an HTTP endpoint to derive reachability. It
// assumes online until the first probe says otherwise.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *logger.Logger

	mu     sync.Mutex
	online bool
	subs   []func(bool)
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewProbeMonitor creates a monitor probing url every interval.
func NewProbeMonitor(url string, interval time.Duration, log *logger.Logger) *ProbeMonitor {
	return &ProbeMonitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   log,
		online:   true,
		done:     make(chan struct{}),
	}
}

// Start begins probing in the background.
func (m *ProbeMonitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.set(m.probe())
			case <-m.done:
				return
			}
		}
	}()
}

// Stop halts probing.
func (m *ProbeMonitor) Stop() {
	close(m.done)
	m.wg.Wait()
}

func (m *ProbeMonitor) probe() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (m *ProbeMonitor) set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	subs := append(([]func(bool))(nil), m.subs...)
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("connectivity changed", zap.Bool("online", online))
	for _, fn := range subs {
		fn(online)
	}
}

// IsOnline reports the last probed state.
func (m *ProbeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a transition callback.
func (m *ProbeMonitor) OnChange(fn func(bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// ManualMonitor is a Monitor driven by explicit SetOnline calls. The
// mobile shell reports reachability transitions through it; tests
// drive it directly.
type ManualMonitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(bool)
}

// NewManualMonitor creates a monitor in the given initial state.
func NewManualMonitor(online bool) *ManualMonitor {
	return &ManualMonitor{online: online}
}

// SetOnline records a reachability transition and notifies subscribers.
func (m *ManualMonitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	subs := append(([]func(bool))(nil), m.subs...)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(online)
	}
}

// IsOnline reports the current state.
func (m *ManualMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a transition callback.
func (m *ManualMonitor) OnChange(fn func(bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}
