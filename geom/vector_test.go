package geom

import "testing"

func TestDirectionFromDelta(t *testing.T) {
	for _, d := range Directions() {
		got, ok := DirectionFromDelta(d.Vector())
		if !ok || got != d {
			t.Errorf("DirectionFromDelta(%v) = %v, %v; want %v, true", d.Vector(), got, ok, d)
		}
	}

	if _, ok := DirectionFromDelta(Vector3{X: 1, Y: 1}); ok {
		t.Error("diagonal delta should not resolve to a Direction")
	}
	if _, ok := DirectionFromDelta(Zero); ok {
		t.Error("zero delta should not resolve to a Direction")
	}
}

func TestInBox(t *testing.T) {
	lo, hi := New(0, 0, 0), New(2, 2, 2)
	if !New(0, 0, 0).InBox(lo, hi) {
		t.Error("origin should be in box")
	}
	if New(2, 0, 0).InBox(lo, hi) {
		t.Error("exclusive end face should not be in box")
	}
	if New(-1, 0, 0).InBox(lo, hi) {
		t.Error("negative component should not be in box")
	}
}

func TestClampToBox(t *testing.T) {
	got := New(-1, 5, 1).ClampToBox(New(0, 0, 0), New(3, 3, 3))
	want := New(0, 3, 1)
	if got != want {
		t.Errorf("ClampToBox = %v, want %v", got, want)
	}
}
