package workload

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Antkuz17/Mickey-Hackies/hub"
)

// recordingNotifier collects broadcast events for inspection.
type recordingNotifier struct {
	mu     sync.Mutex
	events []hub.Event
}

func (r *recordingNotifier) Broadcast(ev hub.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) snapshot() []hub.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hub.Event(nil), r.events...)
}

func waitInactive(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for o.Active() {
		if time.Now().After(deadline) {
			t.Fatal("workload did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartUnknownWorkload(t *testing.T) {
	o := New(&recordingNotifier{}, Config{})
	if err := o.Start("does-not-exist"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if o.Active() {
		t.Fatal("unknown workload must not flip the active flag")
	}
}

func TestStartConflict(t *testing.T) {
	o := New(&recordingNotifier{}, Config{})

	release := make(chan struct{})
	var spawned atomic.Int32
	o.workloads["held"] = func(*Orchestrator) {
		spawned.Add(1)
		<-release
	}

	if err := o.Start("held"); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	// Let the workload goroutine begin.
	for spawned.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := o.Start("held"); err != ErrAlreadyActive {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if n := spawned.Load(); n != 1 {
		t.Fatalf("conflicting start spawned units: %d", n)
	}

	close(release)
	waitInactive(t, o)
	o.Close()
}

func TestNaturalCompletionResetsActive(t *testing.T) {
	o := New(&recordingNotifier{}, Config{})
	o.workloads["quick"] = func(*Orchestrator) {}

	if err := o.Start("quick"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitInactive(t, o)

	if err := o.Start("quick"); err != nil {
		t.Fatalf("expected restart after completion, got %v", err)
	}
	waitInactive(t, o)
	o.Close()
}

func TestRunPhaseLaunchesAndJoinsUnits(t *testing.T) {
	o := New(&recordingNotifier{}, Config{})

	var peak, current, running atomic.Int32
	work := func() {
		c := current.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		running.Add(1)
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
	}

	o.runPhase(Phase{TargetPercent: 30, Units: 2, Duration: 50 * time.Millisecond, Work: work})

	if current.Load() != 0 {
		t.Fatalf("expected all units joined before return, %d still running", current.Load())
	}
	if peak.Load() != 2 {
		t.Fatalf("expected exactly 2 concurrent units, saw peak %d", peak.Load())
	}
	if running.Load() == 0 {
		t.Fatal("work function never ran")
	}
	o.Close()
}

func TestSequencedNotesEmitsEveryStep(t *testing.T) {
	rec := &recordingNotifier{}
	o := New(rec, Config{NoteStep: 2 * time.Millisecond})

	if err := o.Start(DefaultWorkload); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitInactive(t, o)
	o.Close()

	events := rec.snapshot()
	if len(events) != len(twinkleMelody) {
		t.Fatalf("expected %d events, got %d", len(twinkleMelody), len(events))
	}

	seen := make(map[int]string, len(events))
	for _, ev := range events {
		if ev.Kind != hub.NoteStart {
			t.Fatalf("unexpected event kind %q", ev.Kind)
		}
		if ev.Index == nil {
			t.Fatal("expected a step index on every event")
		}
		seen[*ev.Index] = ev.Note
	}
	for i, n := range twinkleMelody {
		if seen[i] != n.name {
			t.Fatalf("step %d: expected note %q, got %q", i, n.name, seen[i])
		}
	}
}

func TestDefaultsApplied(t *testing.T) {
	o := New(&recordingNotifier{}, Config{})
	if o.cfg.PhaseDuration != 5*time.Second {
		t.Fatalf("expected 5s phase default, got %s", o.cfg.PhaseDuration)
	}
	if o.cfg.DecayPause != 2*time.Second {
		t.Fatalf("expected 2s decay default, got %s", o.cfg.DecayPause)
	}
	if o.cfg.NoteStep != 400*time.Millisecond {
		t.Fatalf("expected 400ms note step default, got %s", o.cfg.NoteStep)
	}
}
