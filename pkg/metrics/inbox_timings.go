// Package metrics keeps per-stage latency summaries for the ingest pipeline.
package metrics

import (
	"slices"
	"sync"
	"time"
)

const DefaultWindow = 256

// Window holds the most recent durations of one stage in a ring buffer.
type Window struct {
	mu    sync.Mutex
	ring  []time.Duration
	next  int
	full  bool
	total int64
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{ring: make([]time.Duration, size)}
}

// Observe records one duration, overwriting the oldest once the window is full.
func (w *Window) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.ring[w.next] = d
	w.next = (w.next + 1) % len(w.ring)
	if w.next == 0 {
		w.full = true
	}
	w.total++
}

// Summary describes the durations currently in a window. Total counts every
// observation, including the ones already evicted.
type Summary struct {
	Total  int64   `json:"total"`
	Window int     `json:"window"`
	MaxMs  float64 `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
}

func (w *Window) Summary() Summary {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.ring)
	}
	samples := slices.Clone(w.ring[:n])
	total := w.total
	w.mu.Unlock()

	s := Summary{Total: total, Window: n}
	if n == 0 {
		return s
	}
	slices.Sort(samples)

	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	s.MaxMs = ms(samples[n-1])
	s.AvgMs = ms(sum / time.Duration(n))
	s.P50Ms = ms(samples[rank(n, 0.50)])
	s.P95Ms = ms(samples[rank(n, 0.95)])
	return s
}

func rank(n int, p float64) int {
	return int(float64(n-1) * p)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Stages maps stage names to their windows. The zero value is not usable; call
// NewStages.
type Stages struct {
	mu      sync.RWMutex
	windows map[string]*Window
	size    int
}

func NewStages(windowSize int) *Stages {
	return &Stages{windows: make(map[string]*Window), size: windowSize}
}

// Observe records d for stage, creating its window on first use.
func (s *Stages) Observe(stage string, d time.Duration) {
	s.mu.RLock()
	w, ok := s.windows[stage]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if w, ok = s.windows[stage]; !ok {
			w = NewWindow(s.size)
			s.windows[stage] = w
		}
		s.mu.Unlock()
	}
	w.Observe(d)
}

// Since records the time elapsed since start. Meant for defer.
func (s *Stages) Since(stage string, start time.Time) {
	s.Observe(stage, time.Since(start))
}

// Snapshot returns the summary of every stage seen so far.
func (s *Stages) Snapshot() map[string]Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Summary, len(s.windows))
	for name, w := range s.windows {
		out[name] = w.Summary()
	}
	return out
}
