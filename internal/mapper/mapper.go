// Package mapper defines the optional hex-grid capability used to index
// coordinates into hexagonal cells.
package mapper

import "errors"

// ErrUnavailable is returned when no hex-grid backend is configured.
var ErrUnavailable = errors.New("hex grid unavailable")

// HexGrid returns the id of the cell containing (lat, lon) at resolution res.
type HexGrid interface {
	CellAt(lat, lon float64, res int) (string, error)
}
