package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/pkg/digipin"
)

// creates a mix of "hot" points around city centres and "cold" points spread
// over the DIGIPIN domain
func makePoints(count int, r *rand.Rand) []model.Coordinate {
	centers := []model.Coordinate{
		{Lat: 28.6139, Lon: 77.2090}, // Delhi
		{Lat: 19.0760, Lon: 72.8777}, // Mumbai
		{Lat: 12.9716, Lon: 77.5946}, // Bengaluru
		{Lat: 22.5726, Lon: 88.3639}, // Kolkata
		{Lat: 13.0827, Lon: 80.2707}, // Chennai
		{Lat: 17.3850, Lon: 78.4867}, // Hyderabad
	}
	points := make([]model.Coordinate, 0, count)

	hot := int(math.Max(8, float64(count/4)))
	for i := 0; i < hot && len(points) < count; i++ {
		c := centers[i%len(centers)]
		points = append(points, model.Coordinate{
			Lat: c.Lat + (r.Float64()-0.5)*0.05,
			Lon: c.Lon + (r.Float64()-0.5)*0.05,
		})
	}

	d := digipin.Domain
	for len(points) < count {
		points = append(points, model.Coordinate{
			Lat: d.MinLat + r.Float64()*(d.MaxLat-d.MinLat),
			Lon: d.MinLon + r.Float64()*(d.MaxLon-d.MinLon),
		})
	}
	return points
}

// reads lat,lon rows from a CSV with a header line
func loadPointsCSV(path string) ([]model.Coordinate, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open points: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readPointsCSV(f)
}

func readPointsCSV(in io.Reader) ([]model.Coordinate, error) {
	r := csv.NewReader(in)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	latIdx, okLat := colIdx["lat"]
	lonIdx, okLon := colIdx["lon"]
	if !okLat || !okLon {
		return nil, fmt.Errorf("points csv: expected columns lat,lon; got %v", header)
	}

	var out []model.Coordinate
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		latStr := strings.TrimSpace(rec[latIdx])
		lonStr := strings.TrimSpace(rec[lonIdx])
		if latStr == "" || lonStr == "" {
			continue
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return nil, fmt.Errorf("parse lat %q: %w", latStr, err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return nil, fmt.Errorf("parse lon %q: %w", lonStr, err)
		}
		out = append(out, model.Coordinate{Lat: lat, Lon: lon})
	}
	return out, nil
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
