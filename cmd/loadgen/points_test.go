package main

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geopin/pkg/digipin"
)

func TestMakePoints_InsideDomain(t *testing.T) {
	pts := makePoints(100, rand.New(rand.NewSource(1)))
	if len(pts) != 100 {
		t.Fatalf("len=%d", len(pts))
	}
	for _, p := range pts {
		if !digipin.Domain.Contains(p.Lat, p.Lon) {
			t.Fatalf("point %v outside DIGIPIN domain", p)
		}
	}
}

func TestMakePoints_SmallCount(t *testing.T) {
	if got := len(makePoints(3, rand.New(rand.NewSource(1)))); got != 3 {
		t.Fatalf("len=%d want 3", got)
	}
}

func TestReadPointsCSV(t *testing.T) {
	in := "id,lon,lat\na,77.2,28.6\nb,,\nc,72.8,19.0\n"
	pts, err := readPointsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readPointsCSV: %v", err)
	}
	if len(pts) != 2 || pts[1].Lat != 19.0 || pts[1].Lon != 72.8 {
		t.Fatalf("points=%v", pts)
	}

	if _, err := readPointsCSV(strings.NewReader("x,y\n1,2\n")); err == nil {
		t.Fatalf("expected error for missing columns")
	}
}

func TestPercentile(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5}
	if got := percentile(v, 50); got != 3 {
		t.Fatalf("p50=%v", got)
	}
	if got := percentile(v, 100); got != 5 {
		t.Fatalf("p100=%v", got)
	}
	if got := percentile(v, 25); got != 2 {
		t.Fatalf("p25=%v", got)
	}
	if !math.IsNaN(percentile(nil, 50)) {
		t.Fatalf("empty input should be NaN")
	}
}
