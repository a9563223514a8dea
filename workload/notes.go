package workload

import (
	"sync"
	"time"

	"github.com/Antkuz17/Mickey-Hackies/hub"
)

// note is one step of the sequenced-notes workload.
type note struct {
	name  string
	beats float64 // relative duration of the CPU burst
}

// twinkleMelody is Twinkle Twinkle Little Star, one step per note.
var twinkleMelody = []note{
	{"C", 1}, {"C", 1}, {"G", 1}, {"G", 1}, {"A", 1}, {"A", 1}, {"G", 2},
	{"F", 1}, {"F", 1}, {"E", 1}, {"E", 1}, {"D", 1}, {"D", 1}, {"C", 2},
	{"G", 1}, {"G", 1}, {"F", 1}, {"F", 1}, {"E", 1}, {"E", 1}, {"D", 2},
	{"G", 1}, {"G", 1}, {"F", 1}, {"F", 1}, {"E", 1}, {"E", 1}, {"D", 2},
	{"C", 1}, {"C", 1}, {"G", 1}, {"G", 1}, {"A", 1}, {"A", 1}, {"G", 2},
	{"F", 1}, {"F", 1}, {"E", 1}, {"E", 1}, {"D", 1}, {"D", 1}, {"C", 2},
}

// playSequencedNotes schedules every note on its own goroutine at a fixed
// offset from workload start. Each step announces itself through the
// notifier as it begins, then burns CPU for the note's duration. The
// workload ends when the last step's goroutine is joined; it is not
// cancellable mid-flight.
func (o *Orchestrator) playSequencedNotes() {
	var join sync.WaitGroup
	for i, n := range twinkleMelody {
		i, n := i, n // per-iteration copies; the go directive predates 1.22 loopvar semantics
		offset := time.Duration(i) * o.cfg.NoteStep
		burst := time.Duration(n.beats * float64(o.cfg.NoteStep))
		o.spawn(&join, func() {
			time.Sleep(offset)
			o.notifier.Broadcast(hub.NewEvent(hub.NoteStart, n.name, i))
			deadline := time.Now().Add(burst)
			for time.Now().Before(deadline) {
				lightWork()
			}
		})
	}
	join.Wait()
}
