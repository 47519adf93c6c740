package model

import "math"

// Coordinate is a position in 2D network space. Units are abstract map
// units shared by the topology source and the agent feed.
type Coordinate struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance to another coordinate.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	dx := c.X - other.X
	dy := c.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Interpolate returns the point a fraction t of the way from c to other.
// t is clamped to [0, 1].
func (c Coordinate) Interpolate(other Coordinate, t float64) Coordinate {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Coordinate{
		X: c.X + (other.X-c.X)*t,
		Y: c.Y + (other.Y-c.Y)*t,
	}
}
