package combat

import "testing"

func TestSpeedMultipliesBaseAndModifiers(t *testing.T) {
	got := Speed(10, 1.2, 1.1)
	want := 10 * 1.2 * 1.1
	if got != want {
		t.Fatalf("expected speed %g, got %g", want, got)
	}
}

func TestSpeedTreatsNonPositiveModifiersAsNeutral(t *testing.T) {
	if got := Speed(10, 0, 1.5); got != 15 {
		t.Fatalf("expected zero weapon modifier to read as neutral, got %g", got)
	}
	if got := Speed(10, -2, -1); got != 10 {
		t.Fatalf("expected negative modifiers to read as neutral, got %g", got)
	}
}

func TestSpeedIsPure(t *testing.T) {
	first := Speed(12.5, 0.9, 1.04)
	for i := 0; i < 100; i++ {
		if got := Speed(12.5, 0.9, 1.04); got != first {
			t.Fatalf("expected identical inputs to yield identical speed, got %g and %g", first, got)
		}
	}
}

func TestSpeedsTiedUsesExplicitEpsilon(t *testing.T) {
	if !SpeedsTied(10, 10) {
		t.Fatalf("expected equal speeds to tie")
	}
	if !SpeedsTied(10, 10+SpeedEpsilon/2) {
		t.Fatalf("expected speeds within epsilon to tie")
	}
	if SpeedsTied(10, 10+SpeedEpsilon*2) {
		t.Fatalf("expected speeds beyond epsilon to differ")
	}
	if SpeedsTied(10, 9.99) {
		t.Fatalf("expected a 0.01 gap to exceed the tie threshold")
	}
}
