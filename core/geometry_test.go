package core

import (
	"math"
	"testing"

	"github.com/aexis-io/aexis/model"
)

const epsilon = 1e-9

func floatNear(a, b float64) bool {
	return math.Abs(a-b) <= epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestVec2Norm(t *testing.T) {
	v := Vec2{X: 3, Y: 4}
	if got := v.Norm(); got != 5 {
		t.Fatalf("Norm() = %v, want 5", got)
	}
}

func TestVec2Angle(t *testing.T) {
	cases := []struct {
		v    Vec2
		want float64
	}{
		{Vec2{X: 1, Y: 0}, 0},
		{Vec2{X: 0, Y: 1}, math.Pi / 2},
		{Vec2{X: -1, Y: 0}, math.Pi},
	}
	for _, c := range cases {
		if got := c.v.Angle(); !floatNear(got, c.want) {
			t.Fatalf("Angle(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestTangentBetween(t *testing.T) {
	tan, length := tangentBetween(model.Coordinate{X: 0, Y: 0}, model.Coordinate{X: 0, Y: 10})
	if length != 10 {
		t.Fatalf("length = %v, want 10", length)
	}
	if tan != (Vec2{X: 0, Y: 1}) {
		t.Fatalf("tangent = %+v, want (0,1)", tan)
	}
	if !floatNear(tan.Norm(), 1) {
		t.Fatalf("tangent not unit-norm: %v", tan.Norm())
	}
}

func TestTangentBetween_ZeroDistance(t *testing.T) {
	p := model.Coordinate{X: 5, Y: 5}
	tan, length := tangentBetween(p, p)
	if length != 0 {
		t.Fatalf("length = %v, want 0", length)
	}
	if tan != defaultTangent {
		t.Fatalf("degenerate tangent = %+v, want default %+v", tan, defaultTangent)
	}
}
