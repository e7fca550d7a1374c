package combat

import "math"

// SpeedEpsilon is the tolerance under which two computed speeds count as a
// tie. Tie-breaking must never fall through to raw float equality.
const SpeedEpsilon = 1e-3

// Speed computes the ordering scalar for one execution. It is a pure
// function of its inputs; the result is only ever compared, never stored on
// actor state. Non-positive modifiers fall back to neutral so a missing
// weapon or stat block cannot zero out an otherwise valid skill.
func Speed(baseSpeed, weaponModifier, statModifier float64) float64 {
	if baseSpeed <= 0 {
		return 0
	}
	if weaponModifier <= 0 {
		weaponModifier = 1
	}
	if statModifier <= 0 {
		statModifier = 1
	}
	return baseSpeed * weaponModifier * statModifier
}

// SpeedsTied reports whether two speeds fall within the tie epsilon.
func SpeedsTied(a, b float64) bool {
	return math.Abs(a-b) < SpeedEpsilon
}
