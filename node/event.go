// Package node is the concurrency fabric: the queues, per-miner
// chain-modified events, maintainer, miner loops, and blocking wallet
// REPL, wired together as goroutines communicating over channels.
package node

import "sync"

// ChainEvent is a re-armable, level-independent "your snapshot is
// stale" signal, exactly one per miner. Signal closes the current channel (waking
// every goroutine blocked on Wait) and immediately installs a fresh
// one, so the event can fire again on the next chain mutation without
// any reader having to explicitly reset it.
type ChainEvent struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewChainEvent returns an unsignaled event.
func NewChainEvent() *ChainEvent {
	return &ChainEvent{ch: make(chan struct{})}
}

// Wait returns the channel that closes the next time Signal is
// called. Callers should re-invoke Wait on every loop iteration rather
// than caching the channel, since Signal replaces it.
func (e *ChainEvent) Wait() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}

// Signal wakes every current waiter and arms a fresh channel for the
// next one.
func (e *ChainEvent) Signal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	close(e.ch)
	e.ch = make(chan struct{})
}
