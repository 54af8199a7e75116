package observability

import (
	"log/slog"
	"math"
	"sync"
)

// ConfidenceDriftMonitor tracks a rolling window of confidence scores per
// segment (session mode, persona) and flags when the window mean moves away
// from the segment baseline. A sudden shift usually means the lexicon or the
// interview content changed underneath the scorer.
type ConfidenceDriftMonitor struct {
	mu        sync.Mutex
	window    int
	threshold float64
	baseline  map[string]float64
	recent    map[string][]float64
}

// NewConfidenceDriftMonitor keeps window samples per segment and warns when
// the mean differs from the baseline by more than threshold points.
func NewConfidenceDriftMonitor(window int, threshold float64) *ConfidenceDriftMonitor {
	if window <= 0 {
		window = 20
	}
	if threshold <= 0 {
		threshold = 15
	}
	return &ConfidenceDriftMonitor{
		window:    window,
		threshold: threshold,
		baseline:  make(map[string]float64),
		recent:    make(map[string][]float64),
	}
}

// SetBaseline fixes the reference mean for segment.
func (m *ConfidenceDriftMonitor) SetBaseline(segment string, mean float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline[segment] = mean
}

// Record adds a score. The first full window becomes the baseline when none
// was set. It returns the current drift and whether it exceeds the threshold.
func (m *ConfidenceDriftMonitor) Record(segment string, score float64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := append(m.recent[segment], score)
	if len(r) > m.window {
		r = r[len(r)-m.window:]
	}
	m.recent[segment] = r
	if len(r) < m.window {
		return 0, false
	}

	mean := 0.0
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))

	base, ok := m.baseline[segment]
	if !ok {
		m.baseline[segment] = mean
		return 0, false
	}
	drift := math.Abs(mean - base)
	ConfidenceDrift.WithLabelValues(segment).Set(drift)
	if drift <= m.threshold {
		return drift, false
	}
	slog.Warn("confidence drift detected",
		slog.String("segment", segment),
		slog.Float64("drift", drift),
		slog.Float64("baseline", base),
		slog.Float64("window_mean", mean))
	return drift, true
}

// Baseline returns the baseline for segment, if any.
func (m *ConfidenceDriftMonitor) Baseline(segment string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.baseline[segment]
	return v, ok
}
