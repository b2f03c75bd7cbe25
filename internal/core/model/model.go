// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsFinite reports whether both components are finite numbers.
func (c Coordinate) IsFinite() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0)
}

// String renders the coordinate with six decimals, lat first.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// EncodeRequest carries one coordinate and the per-scheme parameters.
type EncodeRequest struct {
	Coordinate
	Floor      int `json:"floor"`
	CodeLength int `json:"len"`
	H3Res      int `json:"res"`
}

// Codes maps scheme name to its code or placeholder.
type Codes map[string]string

type EncodeResult struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Floor  int     `json:"floor"`
	Codes  Codes   `json:"codes"`
	Cached bool    `json:"cached,omitempty"`
}
