package core

import (
	"math"

	"github.com/aexis-io/aexis/model"
)

// Vec2 is a direction vector in 2D network space.
type Vec2 struct {
	X, Y float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec2) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Dot returns the dot product of two vectors.
func (v Vec2) Dot(other Vec2) float64 {
	return v.X*other.X + v.Y*other.Y
}

// Scale returns the vector scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Angle returns the heading of the vector in radians, measured from the
// positive X axis.
func (v Vec2) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// tangentBetween returns the unit vector from a to b together with the
// distance between them. A zero distance yields the default tangent, so
// callers can rely on the tangent being unit-norm in every case.
func tangentBetween(a, b model.Coordinate) (Vec2, float64) {
	length := a.DistanceTo(b)
	if length == 0 {
		return defaultTangent, 0
	}
	return Vec2{X: (b.X - a.X) / length, Y: (b.Y - a.Y) / length}, length
}
