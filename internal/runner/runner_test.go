package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerStartStop(t *testing.T) {
	var cycles atomic.Int32
	r := New("test", func(ctx context.Context) time.Duration {
		cycles.Add(1)
		return time.Millisecond
	})

	r.Start(context.Background())
	if !r.IsRunning() {
		t.Fatal("runner should be running after Start")
	}

	deadline := time.After(time.Second)
	for cycles.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("runner did not cycle")
		case <-time.After(time.Millisecond):
		}
	}

	r.Stop()
	if r.IsRunning() {
		t.Error("runner should not be running after Stop")
	}
	after := cycles.Load()
	time.Sleep(20 * time.Millisecond)
	if cycles.Load() != after {
		t.Error("runner kept cycling after Stop")
	}
}

func TestRunnerDoubleStartIsNoop(t *testing.T) {
	var cycles atomic.Int32
	r := New("test", func(ctx context.Context) time.Duration {
		cycles.Add(1)
		return time.Hour
	})
	defer r.Stop()

	r.Start(context.Background())
	r.Start(context.Background())

	time.Sleep(20 * time.Millisecond)
	if got := cycles.Load(); got != 1 {
		t.Errorf("cycles = %d, want 1", got)
	}
}

func TestRunnerRecoversFromPanic(t *testing.T) {
	var cycles atomic.Int32
	var failures atomic.Int32
	r := New("test", func(ctx context.Context) time.Duration {
		if cycles.Add(1) == 1 {
			panic("boom")
		}
		return time.Hour
	})
	r.OnFailure(func(name string, recovered any) {
		failures.Add(1)
	})

	// The panicking first cycle must not kill the loop; shorten the
	// recovery pause by driving cycles directly.
	sleep := r.runOnce(context.Background())
	if sleep != time.Minute {
		t.Errorf("recovery sleep = %v, want 1m", sleep)
	}
	if failures.Load() != 1 {
		t.Errorf("failures = %d, want 1", failures.Load())
	}
	if r.runOnce(context.Background()) != time.Hour {
		t.Error("second cycle should run normally")
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	m.Register(New("b", func(ctx context.Context) time.Duration { return time.Hour }))
	m.Register(New("a", func(ctx context.Context) time.Duration { return time.Hour }))

	status := m.Status()
	if len(status) != 2 || status[0].Name != "a" || status[1].Name != "b" {
		t.Errorf("status = %+v, want sorted by name", status)
	}

	if _, err := m.Get("a"); err != nil {
		t.Errorf("Get(a) error: %v", err)
	}
	if _, err := m.Get("missing"); err == nil {
		t.Error("Get(missing) should fail")
	}

	m.StartAll(context.Background())
	for _, s := range m.Status() {
		if !s.Running {
			t.Errorf("%s not running after StartAll", s.Name)
		}
	}
	m.StopAll()
	for _, s := range m.Status() {
		if s.Running {
			t.Errorf("%s still running after StopAll", s.Name)
		}
	}
}
