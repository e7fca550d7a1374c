package geom

import "math"

// Vec2 is a 2D vector in arena coordinates.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Zero reports whether both components are exactly zero.
func (v Vec2) Zero() bool {
	return v.X == 0 && v.Y == 0
}

// Length returns the vector magnitude.
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalized returns a unit-length copy of v, or the zero vector when v has
// no magnitude.
func (v Vec2) Normalized() Vec2 {
	length := v.Length()
	if length == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / length, Y: v.Y / length}
}

// Scale returns v multiplied by the scalar s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Add returns the component-wise sum of v and other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns the component-wise difference v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Direction returns the unit vector pointing from origin toward target. When
// the two points coincide it falls back to +X so knockback always has a
// defined heading.
func Direction(origin, target Vec2) Vec2 {
	delta := target.Sub(origin)
	if delta.Zero() {
		return Vec2{X: 1}
	}
	return delta.Normalized()
}

// Clamp restricts value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
