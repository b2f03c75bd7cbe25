package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/geopin/internal/mapper"
)

const (
	MinRes = 0
	MaxRes = 15
)

type Mapper struct{}

var _ mapper.HexGrid = (*Mapper)(nil)

func New() *Mapper { return &Mapper{} }

// CellAt returns the H3 cell containing (lat, lon) as a hex string.
func (m *Mapper) CellAt(lat, lon float64, res int) (string, error) {
	if err := ValidateRes(res); err != nil {
		return "", err
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", fmt.Errorf("h3 cell: non-finite coordinate %v,%v", lat, lon)
	}
	// v4 wants degrees
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	if !c.IsValid() {
		return "", fmt.Errorf("h3 returned invalid cell for %.6f,%.6f", lat, lon)
	}
	return c.String(), nil
}

// ValidateRes checks that res is a valid H3 resolution.
func ValidateRes(res int) error {
	if res < MinRes || res > MaxRes {
		return fmt.Errorf("invalid H3 resolution %d (must be %d..%d)", res, MinRes, MaxRes)
	}
	return nil
}
