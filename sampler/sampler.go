package sampler

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultWindowSize is the number of raw readings kept for smoothing.
const DefaultWindowSize = 10

// Sample is one point-in-time view of host utilization. The aggregate CPU
// value is smoothed; per-core and memory readings are raw.
type Sample struct {
	CPU           float64
	PerCPU        []float64
	MemoryPercent float64
	CapturedAt    time.Time
}

// Monitor produces smoothed CPU utilization readings. It keeps a bounded
// FIFO window of raw readings and reports a weighted moving average biased
// toward the most recent entries, so single-tick spikes are damped without
// hiding a sustained ramp.
//
// Safe for concurrent use; every streaming session shares one Monitor.
type Monitor struct {
	mu         sync.Mutex
	history    []float64
	windowSize int
	current    float64
	lastPerCPU []float64
	lastMemory float64

	// Raw readers, swappable in tests.
	readCPU    func() (float64, error)
	readPerCPU func() ([]float64, error)
	readMemory func() (float64, error)
}

// New creates a Monitor with the given smoothing window size (capacity of
// the raw-reading buffer). The underlying OS counter averages over the
// interval since the previous call, so the constructor primes it once and
// discards the baseline reading.
func New(windowSize int) *Monitor {
	m := NewWithReaders(windowSize, readCPUPercent, readPerCPUPercent, readMemoryPercent)
	// Prime the counter; the first reading is always meaningless.
	_, _ = m.readCPU()
	return m
}

// NewWithReaders creates a Monitor backed by custom raw readers instead of
// the OS. No priming read is issued.
func NewWithReaders(windowSize int, cpuFn func() (float64, error), perCPUFn func() ([]float64, error), memFn func() (float64, error)) *Monitor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Monitor{
		windowSize: windowSize,
		readCPU:    cpuFn,
		readPerCPU: perCPUFn,
		readMemory: memFn,
	}
}

// Sample takes a raw reading, folds it into the smoothing window and returns
// the current view. Read failures never surface to the caller: the previous
// smoothed value (and previous per-core/memory readings) are returned
// unchanged instead.
func (m *Monitor) Sample() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.readCPU()
	if err != nil {
		log.Printf("Error reading CPU: %v", err)
	} else {
		m.history = append(m.history, raw)
		if len(m.history) > m.windowSize {
			m.history = m.history[1:]
		}
		m.current = clamp(weightedAverage(m.history, m.windowSize), 0, 100)
	}

	perCPU, err := m.readPerCPU()
	if err != nil {
		log.Printf("Error reading per-core CPU: %v", err)
		perCPU = m.lastPerCPU
	} else {
		for i, c := range perCPU {
			perCPU[i] = round1(clamp(c, 0, 100))
		}
		m.lastPerCPU = perCPU
	}

	memPercent, err := m.readMemory()
	if err != nil {
		log.Printf("Error reading memory: %v", err)
		memPercent = m.lastMemory
	} else {
		memPercent = round1(memPercent)
		m.lastMemory = memPercent
	}

	return Sample{
		CPU:           round1(m.current),
		PerCPU:        perCPU,
		MemoryPercent: memPercent,
		CapturedAt:    time.Now(),
	}
}

// weightedAverage biases toward the newest entries: the i-th reading
// (oldest = 0) in a window of capacity k carries weight 1 + i/k.
func weightedAverage(history []float64, k int) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum, weightSum float64
	for i, h := range history {
		w := 1 + float64(i)/float64(k)
		sum += h * w
		weightSum += w
	}
	return sum / weightSum
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func readCPUPercent() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no cpu reading available")
	}
	return percents[0], nil
}

func readPerCPUPercent() ([]float64, error) {
	return cpu.Percent(0, true)
}

func readMemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
