package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowSummary(t *testing.T) {
	w := NewWindow(10)
	for i := 1; i <= 10; i++ {
		w.Observe(time.Duration(i) * time.Millisecond)
	}

	s := w.Summary()
	assert.Equal(t, int64(10), s.Total)
	assert.Equal(t, 10, s.Window)
	assert.Equal(t, 10.0, s.MaxMs)
	assert.Equal(t, 5.5, s.AvgMs)
	assert.Equal(t, 5.0, s.P50Ms)
	assert.Equal(t, 9.0, s.P95Ms)
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	w.Observe(100 * time.Millisecond)
	w.Observe(1 * time.Millisecond)
	w.Observe(2 * time.Millisecond)
	w.Observe(3 * time.Millisecond)

	s := w.Summary()
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, 3, s.Window)
	assert.Equal(t, 3.0, s.MaxMs)
}

func TestEmptyWindow(t *testing.T) {
	assert.Equal(t, Summary{}, NewWindow(0).Summary())
}

func TestStagesConcurrentObserve(t *testing.T) {
	s := NewStages(64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Observe("fetch", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, int64(400), snap["fetch"].Total)
	assert.Equal(t, 64, snap["fetch"].Window)
}
