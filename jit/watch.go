package jit

import (
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// WatchState is the state of a Watcher.
type WatchState int32

const (
	StateIdle WatchState = iota
	StateScanScheduled
)

func (s WatchState) String() string {
	if s == StateScanScheduled {
		return "scan-scheduled"
	}
	return "idle"
}

// Watcher rescans observable tree whenever nodes are added or class-like
// attribute changes. Scans never overlap: batch arriving while scan is running
// makes the running scan repeat once more.
type Watcher struct {
	engine *Engine
	tree   Observable
	log    *zap.Logger

	state atomic.Int32
	rerun atomic.Bool
	scans atomic.Int64

	unsubscribe func()
	stopOnce    sync.Once
}

func newWatcher(e *Engine, tree Observable) *Watcher {
	w := &Watcher{engine: e, tree: tree, log: e.log.Named("watcher")}
	w.unsubscribe = tree.Observe(w.notify)
	return w
}

// State returns current watcher state.
func (w *Watcher) State() WatchState {
	return WatchState(w.state.Load())
}

func (w *Watcher) transition(from, to WatchState) bool {
	return w.state.CompareAndSwap(int32(from), int32(to))
}

// Scans returns number of rescans triggered so far.
func (w *Watcher) Scans() int64 {
	return w.scans.Load()
}

// Stop unsubscribes watcher from tree notifications. It is safe to call Stop
// more than once and from several goroutines.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.unsubscribe != nil {
			w.unsubscribe()
		}
	})
}

func (w *Watcher) qualifies(batch []Mutation) bool {
	for _, m := range batch {
		switch m.Kind {
		case MutationChildList:
			return true
		case MutationChildRemoved:
			// nothing new to compile
		case MutationAttributes:
			if slices.Contains(w.engine.classAttrs, m.Attr) {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) notify(batch []Mutation) {
	if !w.qualifies(batch) {
		return
	}
	// rerun must be set before attempting transition, see loop below
	w.rerun.Store(true)
	if !w.transition(StateIdle, StateScanScheduled) {
		return
	}
	for {
		w.rerun.Store(false)
		rules := w.engine.Scan(w.tree)
		w.scans.Add(1)
		w.log.Debug("Rescan completed", zap.Int("mutations", len(batch)), zap.Int("new rules", len(rules)))
		w.state.Store(int32(StateIdle))
		if !w.rerun.Load() || !w.transition(StateIdle, StateScanScheduled) {
			return
		}
	}
}
