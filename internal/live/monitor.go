// Package live composes the tile store, connection monitor, and push-stream
// handling into the reconciled view the dashboard consumes.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/n8kahl/copilotd/internal/domain"
)

// Monitor tracks push-channel connectivity and liveness. Status reflects the
// current socket state only; reconnection is the feed's job. The displayed
// "seconds since last signal" is recomputed on a 1-second cadence so it keeps
// ticking even when no messages arrive.
type Monitor struct {
	now func() time.Time

	mu         sync.RWMutex
	status     domain.ConnStatus
	lastSignal time.Time
	ageSecs    int
	onTick     func(status domain.ConnStatus, ageSecs int)
}

// NewMonitor creates a Monitor in the connecting state with liveness anchored
// at the current time.
func NewMonitor() *Monitor {
	m := &Monitor{now: time.Now, status: domain.ConnConnecting}
	m.lastSignal = m.now()
	return m
}

// SetOnTick registers a callback invoked once per second from Run with the
// current status and liveness age. Must be called before Run.
func (m *Monitor) SetOnTick(fn func(status domain.ConnStatus, ageSecs int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTick = fn
}

// MarkOnline records a successful open (or first message after one).
func (m *Monitor) MarkOnline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = domain.ConnOnline
}

// MarkOffline records a close or error on the push channel.
func (m *Monitor) MarkOffline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = domain.ConnOffline
}

// Signal records a liveness signal: any data message or explicit heartbeat.
// It resets the displayed age immediately rather than waiting for the next
// tick.
func (m *Monitor) Signal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSignal = m.now()
	m.ageSecs = 0
}

// Status returns the current connectivity state.
func (m *Monitor) Status() domain.ConnStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Age returns the displayed seconds-since-last-signal value as of the most
// recent tick or Signal.
func (m *Monitor) Age() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ageSecs
}

// Run recomputes the liveness age every second until ctx is cancelled. The
// tick never mutates tile or trade state; it only refreshes the display
// value and fires the registered callback.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	m.mu.Lock()
	age := int(m.now().Sub(m.lastSignal) / time.Second)
	if age < 0 {
		age = 0
	}
	m.ageSecs = age
	status := m.status
	onTick := m.onTick
	m.mu.Unlock()

	if onTick != nil {
		onTick(status, age)
	}
}
