// Package workload runs calibrated synthetic CPU load on background
// goroutines and reports discrete occurrences back to the streaming side
// through an injected notifier.
package workload

import (
	"errors"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Antkuz17/Mickey-Hackies/hub"
)

// DefaultWorkload is started when no name is given.
const DefaultWorkload = "sequenced-notes"

var (
	// ErrAlreadyActive is returned when a workload is still running.
	ErrAlreadyActive = errors.New("workload already running")
	// ErrNotFound is returned for an unknown workload name.
	ErrNotFound = errors.New("unknown workload")
)

// Notifier receives events emitted by workload goroutines. The hub satisfies
// it; the orchestrator never reaches the registry any other way.
type Notifier interface {
	Broadcast(ev hub.Event)
}

// Config tunes phase and note timing. Zero values take defaults.
type Config struct {
	PhaseDuration time.Duration // length of one calibrated phase
	DecayPause    time.Duration // idle gap after a phase
	NoteStep      time.Duration // offset between sequenced-note steps
}

func (c *Config) applyDefaults() {
	if c.PhaseDuration == 0 {
		c.PhaseDuration = 5 * time.Second
	}
	if c.DecayPause == 0 {
		c.DecayPause = 2 * time.Second
	}
	if c.NoteStep == 0 {
		c.NoteStep = 400 * time.Millisecond
	}
}

// Phase is one burst of synthetic load: unitCount goroutines running work
// until the deadline, then joined.
type Phase struct {
	TargetPercent int
	Units         int
	Duration      time.Duration
	Work          func()
}

// Orchestrator owns the process-wide workload state. Only one workload may
// run at a time; the active flag flips back on natural completion. There is
// no cancellation of an in-flight workload.
type Orchestrator struct {
	notifier Notifier
	cfg      Config
	active   atomic.Bool
	wg       sync.WaitGroup

	workloads map[string]func(*Orchestrator)
}

// New creates an orchestrator that reports through n.
func New(n Notifier, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{notifier: n, cfg: cfg}
	o.workloads = map[string]func(*Orchestrator){
		DefaultWorkload:    (*Orchestrator).playSequencedNotes,
		"calibrated-cycle": (*Orchestrator).runCalibratedCycle,
	}
	return o
}

// Start launches the named workload on background goroutines and returns
// immediately. It fails with ErrAlreadyActive while any workload is running
// (without spawning anything) and ErrNotFound for an unknown name.
func (o *Orchestrator) Start(name string) error {
	run, ok := o.workloads[name]
	if !ok {
		return ErrNotFound
	}
	if !o.active.CompareAndSwap(false, true) {
		return ErrAlreadyActive
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.active.Store(false)
		log.Printf("workload %q started", name)
		run(o)
		log.Printf("workload %q finished", name)
	}()
	return nil
}

// Active reports whether a workload is currently running.
func (o *Orchestrator) Active() bool {
	return o.active.Load()
}

// Close blocks until every spawned goroutine has finished. Call it on
// shutdown; workloads are bounded so this always returns.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

// spawn runs fn on a goroutine tracked both by the caller's join group and
// the orchestrator-wide one used by Close.
func (o *Orchestrator) spawn(join *sync.WaitGroup, fn func()) {
	join.Add(1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer join.Done()
		fn()
	}()
}

// calibratedPhases returns the four escalating tiers. Unit counts assume a
// reference multi-core host; this is best-effort calibration, not a
// closed-loop controller.
func (o *Orchestrator) calibratedPhases() []Phase {
	return []Phase{
		{TargetPercent: 30, Units: 2, Duration: o.cfg.PhaseDuration, Work: lightWork},
		{TargetPercent: 50, Units: 4, Duration: o.cfg.PhaseDuration, Work: mediumWork},
		{TargetPercent: 70, Units: 6, Duration: o.cfg.PhaseDuration, Work: heavyWork},
		{TargetPercent: 90, Units: runtime.NumCPU(), Duration: o.cfg.PhaseDuration, Work: heavyWork},
	}
}

// runCalibratedCycle runs the 30/50/70/90 sequence twice, pausing between
// phases so utilization can decay toward baseline.
func (o *Orchestrator) runCalibratedCycle() {
	for cycle := 0; cycle < 2; cycle++ {
		for _, p := range o.calibratedPhases() {
			log.Printf("[%d%% TARGET] running %d units for %s", p.TargetPercent, p.Units, p.Duration)
			o.runPhase(p)
			time.Sleep(o.cfg.DecayPause)
		}
	}
}

// runPhase spawns the phase's units and joins all of them before returning.
func (o *Orchestrator) runPhase(p Phase) {
	deadline := time.Now().Add(p.Duration)
	var join sync.WaitGroup
	for i := 0; i < p.Units; i++ {
		o.spawn(&join, func() {
			for time.Now().Before(deadline) {
				p.Work()
			}
		})
	}
	join.Wait()
}
