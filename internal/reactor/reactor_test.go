package reactor

import (
	"testing"
	"time"
)

type fakeEngine struct {
	initErr error
	loops   int
	maxLoop int
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Init(d Dispatcher) error { return f.initErr }
func (f *fakeEngine) Add(fd *FD) error        { return nil }
func (f *fakeEngine) Update(fd *FD) error     { return nil }
func (f *fakeEngine) Remove(fd *FD) error     { return nil }
func (f *fakeEngine) Loop(timeout time.Duration) bool {
	f.loops++
	return f.loops < f.maxLoop
}
func (f *fakeEngine) Cleanup() {}

func TestNewPicksFirstWorkingEngine(t *testing.T) {
	bad := &fakeEngine{initErr: errNotRegistered}
	good := &fakeEngine{maxLoop: 100}
	r, err := New(bad, good)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.engine != Engine(good) {
		t.Fatalf("expected good engine to be selected")
	}
}

func TestNewFailsWhenNoEngineInits(t *testing.T) {
	bad1 := &fakeEngine{initErr: errNotRegistered}
	bad2 := &fakeEngine{initErr: errNotRegistered}
	if _, err := New(bad1, bad2); err == nil {
		t.Fatal("expected error when no engine can initialize")
	}
}

func TestOnExitRunsInReverseOrder(t *testing.T) {
	eng := &fakeEngine{maxLoop: 1}
	r, err := New(eng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var order []int
	r.OnExit(func() { order = append(order, 1) })
	r.OnExit(func() { order = append(order, 2) })
	r.OnExit(func() { order = append(order, 3) })
	r.RunExitFuncs()
	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunFlushesDeferredWorkAfterTimers(t *testing.T) {
	eng := &fakeEngine{maxLoop: 2}
	r, err := New(eng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	flushed := false
	r.OnDatabaseFlush(func() { flushed = true })
	r.RequestFlush()
	r.Run(nil)
	if !flushed {
		t.Fatal("expected deferred flush to run")
	}
}

func TestNextTimeoutNonNegative(t *testing.T) {
	eng := &fakeEngine{maxLoop: 1}
	r, err := New(eng)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Timers().Add(time.Now().Add(-time.Hour), func(any) {}, nil)
	if d := r.nextTimeout(); d != 0 {
		t.Fatalf("nextTimeout for past deadline = %v, want 0", d)
	}
}
