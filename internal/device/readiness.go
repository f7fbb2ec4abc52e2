package device

import "sync"

// Readiness is a pair of one-shot signals. Connected always fires before
// StatusKnown, and neither is ever reset.
type Readiness struct {
	connected     chan struct{}
	statusKnown   chan struct{}
	connectedOnce sync.Once
	statusOnce    sync.Once
}

func newReadiness() *Readiness {
	return &Readiness{
		connected:   make(chan struct{}),
		statusKnown: make(chan struct{}),
	}
}

// Connected is closed once the driver has connected.
func (r *Readiness) Connected() <-chan struct{} {
	return r.connected
}

// StatusKnown is closed once the initial status has been read.
func (r *Readiness) StatusKnown() <-chan struct{} {
	return r.statusKnown
}

func (r *Readiness) IsConnected() bool {
	return isClosed(r.connected)
}

func (r *Readiness) IsStatusKnown() bool {
	return isClosed(r.statusKnown)
}

func (r *Readiness) markConnected() {
	r.connectedOnce.Do(func() { close(r.connected) })
}

func (r *Readiness) markStatusKnown() {
	r.markConnected()
	r.statusOnce.Do(func() { close(r.statusKnown) })
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
