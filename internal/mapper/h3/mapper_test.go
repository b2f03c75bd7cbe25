package h3mapper

import (
	"math"
	"testing"

	h3 "github.com/uber/h3-go/v4"
)

func TestCellAt_MatchesLibraryAndIsDeterministic(t *testing.T) {
	m := New()

	got, err := m.CellAt(12.9716, 77.5946, 9)
	if err != nil {
		t.Fatalf("CellAt err: %v", err)
	}
	want, err := h3.LatLngToCell(h3.LatLng{Lat: 12.9716, Lng: 77.5946}, 9)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	if got != want.String() {
		t.Fatalf("CellAt=%s want %s", got, want.String())
	}

	again, err := m.CellAt(12.9716, 77.5946, 9)
	if err != nil {
		t.Fatalf("second CellAt err: %v", err)
	}
	if again != got {
		t.Fatalf("expected identical output for identical input")
	}
}

func TestCellAt_ResolutionIsEncoded(t *testing.T) {
	m := New()
	for _, res := range []int{0, 5, 9, 15} {
		s, err := m.CellAt(59.3293, 18.0686, res)
		if err != nil {
			t.Fatalf("res=%d: %v", res, err)
		}
		var c h3.Cell
		if err := c.UnmarshalText([]byte(s)); err != nil {
			t.Fatalf("parse cell %q: %v", s, err)
		}
		if c.Resolution() != res {
			t.Fatalf("cell %s has res %d want %d", s, c.Resolution(), res)
		}
	}
}

func TestCellAt_InvalidResolution(t *testing.T) {
	m := New()
	if _, err := m.CellAt(11, 55, -1); err == nil {
		t.Fatalf("expected error for res=-1")
	}
	if _, err := m.CellAt(11, 55, 16); err == nil {
		t.Fatalf("expected error for res=16")
	}
}

func TestCellAt_NonFiniteFails(t *testing.T) {
	m := New()
	if _, err := m.CellAt(math.NaN(), 10, 8); err == nil {
		t.Fatalf("expected error for NaN latitude")
	}
}
