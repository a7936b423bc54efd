// Package segment computes loss-less segment boundaries for a video and
// drives their extraction.
package segment

import (
	"errors"
	"fmt"
	"math"
)

// Static errors for segment planning.
var (
	// ErrInvalidPartition is returned when the partition spec does not
	// populate exactly one of count or interval, or violates its bounds.
	ErrInvalidPartition = errors.New("segment: invalid partition")
	// ErrDurationUnknown is returned when the total duration is not positive.
	ErrDurationUnknown = errors.New("segment: media duration unknown")
)

// Partition selects how a timeline is divided. Exactly one of Count or
// Interval must be populated.
type Partition struct {
	// Count is the number of equal segments; must be >= 2 when set.
	Count int
	// Interval is the target segment length in seconds; must be > 0 when set.
	Interval float64
}

// Validate checks that exactly one partition mode is populated and in range.
func (p Partition) Validate() error {
	byCount := p.Count != 0
	byInterval := p.Interval != 0

	switch {
	case byCount == byInterval:
		return fmt.Errorf("%w: exactly one of count or interval must be set", ErrInvalidPartition)
	case byCount && p.Count < 2:
		return fmt.Errorf("%w: count must be at least 2, got %d", ErrInvalidPartition, p.Count)
	case byInterval && p.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive, got %g", ErrInvalidPartition, p.Interval)
	}
	return nil
}

// String renders the partition for progress lines.
func (p Partition) String() string {
	if p.Count != 0 {
		return fmt.Sprintf("%d parts", p.Count)
	}
	return fmt.Sprintf("%gs intervals", p.Interval)
}

// Entry describes one planned segment before it is produced.
type Entry struct {
	// Index is the 0-based position in the plan; it is the authoritative
	// ordinal for downstream ordering.
	Index int
	// Start is the offset in seconds from the beginning of the source.
	Start float64
	// Duration is the segment length in seconds.
	Duration float64
}

// Plan computes segment boundaries covering [0, totalDuration) with no gaps
// and no overlaps. It is a pure function of its inputs: identical arguments
// always produce an identical plan.
func Plan(totalDuration float64, p Partition) ([]Entry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if totalDuration <= 0 {
		return nil, fmt.Errorf("%w: total=%g", ErrDurationUnknown, totalDuration)
	}

	var count int
	var interval float64
	if p.Count != 0 {
		count = p.Count
		interval = totalDuration / float64(count)
	} else {
		interval = p.Interval
		count = int(math.Ceil(totalDuration / interval))
	}

	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * interval
		end := math.Min(start+interval, totalDuration)
		if i == count-1 {
			// Clamp the tail so the plan covers the timeline exactly even
			// when count*interval drifts from totalDuration.
			end = totalDuration
		}
		entries = append(entries, Entry{
			Index:    i,
			Start:    start,
			Duration: end - start,
		})
	}
	return entries, nil
}
