package session

import (
	"errors"
	"fmt"
)

// ErrInvariant marks edits rejected because they would break a data-model
// invariant: deleting the last clip or segment, splitting at a degenerate
// point, referencing an unknown entity. The session is untouched when an
// operation fails with it.
var ErrInvariant = errors.New("invariant violation")

// SplitEpsilonS is the minimum distance in seconds a split point must keep
// from both segment boundaries. A split closer than this would produce a
// zero-length segment.
const SplitEpsilonS = 0.01

// ComposedDuration returns the total playable length of the composition:
// the sum of all segment durations. It is recomputed on demand, never cached.
func ComposedDuration(segments []*Segment) float64 {
	var total float64
	for _, seg := range segments {
		total += seg.Duration()
	}
	return total
}

// GlobalToLocal maps a global composition time to the segment containing it
// and the offset within that segment. The mapping walks the ordered segment
// list accumulating durations; O(n) over tens of segments is fine.
func GlobalToLocal(segments []*Segment, globalS float64) (*Segment, float64, error) {
	if globalS < 0 {
		return nil, 0, fmt.Errorf("time %.3fs precedes the composition: %w", globalS, ErrInvariant)
	}
	var acc float64
	for _, seg := range segments {
		next := acc + seg.Duration()
		if globalS < next {
			return seg, globalS - acc, nil
		}
		acc = next
	}
	return nil, 0, fmt.Errorf("time %.3fs is past the composed duration %.3fs: %w", globalS, acc, ErrInvariant)
}

// LocalToGlobal is the inverse of GlobalToLocal: it sums the durations of all
// segments strictly before the target and adds the local offset.
func LocalToGlobal(segments []*Segment, segmentID string, localS float64) (float64, error) {
	var acc float64
	for _, seg := range segments {
		if seg.ID == segmentID {
			if localS < 0 || localS > seg.Duration() {
				return 0, fmt.Errorf("offset %.3fs outside segment %s: %w", localS, segmentID, ErrInvariant)
			}
			return acc + localS, nil
		}
		acc += seg.Duration()
	}
	return 0, fmt.Errorf("segment %s not found: %w", segmentID, ErrInvariant)
}

// checkCoverage validates the segment coverage invariant: at least one
// segment, contiguous zero-based ordering, every segment referencing a live
// clip within its bounds. Because global positions derive from order and
// duration, gaps and overlaps cannot be represented; what remains to check is
// that each segment is well-formed.
func checkCoverage(s *Session) error {
	if len(s.Segments) == 0 {
		return fmt.Errorf("composition has no segments: %w", ErrInvariant)
	}
	for i, seg := range s.Segments {
		if seg.Order != i {
			return fmt.Errorf("segment %s order %d at index %d: %w", seg.ID, seg.Order, i, ErrInvariant)
		}
		clip, ok := s.Clips[seg.ClipID]
		if !ok {
			return fmt.Errorf("segment %s references missing clip %s: %w", seg.ID, seg.ClipID, ErrInvariant)
		}
		if seg.InS < 0 || seg.InS >= seg.OutS || seg.OutS > clip.DurationS+timeTolerance {
			return fmt.Errorf("segment %s range [%.3f,%.3f) outside clip duration %.3f: %w",
				seg.ID, seg.InS, seg.OutS, clip.DurationS, ErrInvariant)
		}
	}
	return nil
}

// timeTolerance absorbs float accumulation error when comparing second
// values that went through arithmetic.
const timeTolerance = 1e-9

// reindexSegments rewrites segment orders to match slice positions.
func reindexSegments(segments []*Segment) {
	for i, seg := range segments {
		seg.Order = i
	}
}
