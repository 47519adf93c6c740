package core

import "github.com/aexis-io/aexis/model"

// defaultTangent is the direction returned for degenerate geometry (empty
// spines, zero-length displacement) so that samples are always unit-norm.
var defaultTangent = Vec2{X: 1, Y: 0}

// Segment is one straight piece of a spine's polyline. Length and Tangent
// are precomputed at compile time; Length is always > 0 (zero-length
// segments are dropped by the compiler).
type Segment struct {
	Start   model.Coordinate
	End     model.Coordinate
	Length  float64
	Tangent Vec2
}

// newSegment builds a segment between two points, reporting false for
// zero-length geometry so the compiler can drop it.
func newSegment(start, end model.Coordinate) (Segment, bool) {
	tangent, length := tangentBetween(start, end)
	if length == 0 {
		return Segment{}, false
	}
	return Segment{Start: start, End: end, Length: length, Tangent: tangent}, true
}

// Spine is a directed, segment-decomposed, length-indexed path between two
// nodes. Traversal is always from StartNodeID toward EndNodeID; the reverse
// direction, when traversable, is a distinct spine. Spines are immutable
// after compilation.
type Spine struct {
	ID          string
	StartNodeID string
	EndNodeID   string
	Segments    []Segment
	TotalLength float64
}

// SamplePoint is a sampled world position with the local path direction.
type SamplePoint struct {
	Position model.Coordinate
	Tangent  Vec2
}

// Sample returns the world position and direction at a scalar distance along
// the spine. It is total: the distance is clamped to [0, TotalLength], an
// empty spine yields the origin with the default tangent, and no input can
// produce an error. The tangent is piecewise-constant per segment; smoothing
// across joints is a render-layer concern.
func (s *Spine) Sample(distance float64) SamplePoint {
	if s == nil || len(s.Segments) == 0 {
		return SamplePoint{Position: model.Coordinate{}, Tangent: defaultTangent}
	}

	if distance < 0 {
		distance = 0
	} else if distance > s.TotalLength {
		distance = s.TotalLength
	}

	accumulated := 0.0
	for _, seg := range s.Segments {
		if distance <= accumulated+seg.Length {
			t := (distance - accumulated) / seg.Length
			return SamplePoint{
				Position: seg.Start.Interpolate(seg.End, t),
				Tangent:  seg.Tangent,
			}
		}
		accumulated += seg.Length
	}

	// Floating-point accumulation can leave the clamped distance a hair past
	// the last segment's span; land on the endpoint.
	last := s.Segments[len(s.Segments)-1]
	return SamplePoint{Position: last.End, Tangent: last.Tangent}
}
