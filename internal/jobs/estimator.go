package jobs

import "time"

const (
	estimateFloor = 5.0
	estimateCeil  = 95.0

	// A libx264 medium re-encode takes about 1.5x the media duration.
	estimateFactor = 1.5

	assumedDurationSeconds = 60.0
)

// estimator approximates conversion progress from elapsed wall-clock time,
// since the transcoder offers no progress callback on this path. The value
// is only a hint. It stays within [5, 95] and never goes down.
type estimator struct {
	expected time.Duration
	last     float64
}

func newEstimator(durationSeconds float64) *estimator {
	if durationSeconds <= 0 {
		durationSeconds = assumedDurationSeconds
	}
	return &estimator{
		expected: time.Duration(durationSeconds * estimateFactor * float64(time.Second)),
		last:     estimateFloor,
	}
}

func (e *estimator) at(elapsed time.Duration) float64 {
	p := float64(elapsed) / float64(e.expected) * 100
	p = max(estimateFloor, min(p, estimateCeil))
	if p < e.last {
		p = e.last
	}
	e.last = p
	return p
}
