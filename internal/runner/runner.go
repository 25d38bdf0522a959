package runner

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// CycleFunc executes one pass of a loop and returns how long to sleep before
// the next pass.
type CycleFunc func(ctx context.Context) time.Duration

// Runner drives a CycleFunc in its own goroutine with dynamic sleeps between
// passes. A panicking cycle is logged and the loop continues after a pause.
type Runner struct {
	name    string
	cycle   CycleFunc
	failure func(name string, recovered any)

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(name string, cycle CycleFunc) *Runner {
	return &Runner{name: name, cycle: cycle}
}

// OnFailure registers a callback invoked when a cycle panics.
func (r *Runner) OnFailure(fn func(name string, recovered any)) {
	r.failure = fn
}

func (r *Runner) Name() string { return r.name }

func (r *Runner) IsRunning() bool { return r.running.Load() }

// Start launches the loop. Starting a running runner is a no-op.
func (r *Runner) Start(parent context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running.Load() {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running.Store(true)
	log.Printf("[Runner] %s started", r.name)
	go r.loop(ctx)
}

// Stop cancels the loop and waits for the current cycle to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
	log.Printf("[Runner] %s stopped", r.name)
}

func (r *Runner) loop(ctx context.Context) {
	defer func() {
		r.running.Store(false)
		close(r.done)
	}()
	for {
		sleep := r.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) (sleep time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Runner] %s cycle panicked: %v", r.name, rec)
			if r.failure != nil {
				r.failure(r.name, rec)
			}
			sleep = time.Minute
		}
	}()
	return r.cycle(ctx)
}

// Manager owns the named runners and exposes them to the control plane.
type Manager struct {
	mu      sync.Mutex
	runners map[string]*Runner
}

func NewManager() *Manager {
	return &Manager{runners: make(map[string]*Runner)}
}

func (m *Manager) Register(r *Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runners[r.Name()] = r
}

func (m *Manager) Get(name string) (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[name]
	if !ok {
		return nil, fmt.Errorf("unknown runner %q", name)
	}
	return r, nil
}

// Status lists runner states in stable name order.
func (m *Manager) Status() []RunnerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunnerStatus, 0, len(m.runners))
	for _, r := range m.runners {
		out = append(out, RunnerStatus{Name: r.Name(), Running: r.IsRunning()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StartAll launches every registered runner.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runners {
		r.Start(ctx)
	}
}

// StopAll stops every registered runner and waits for them.
func (m *Manager) StopAll() {
	m.mu.Lock()
	runners := make([]*Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.mu.Unlock()
	for _, r := range runners {
		r.Stop()
	}
}

type RunnerStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}
