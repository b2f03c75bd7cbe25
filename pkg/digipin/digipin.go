// Package digipin encodes coordinates into DIGIPIN-style postal grid codes.
//
// A code is built by subdividing a fixed bounding box over India into a 4x4
// grid ten times. Each level contributes one character from a fixed symbol
// matrix, so a full code pins a cell of roughly 4m x 4m.
package digipin

import (
	"errors"
	"strings"
)

const (
	// Levels is the number of 4x4 subdivisions in a full code.
	Levels = 10

	// Separator is inserted after the 3rd and 6th characters.
	Separator = '-'

	// OutOfRange is returned by Encode for coordinates outside Domain.
	OutOfRange = "Out of Range"

	// OutOfBound is returned when the first-level symbol is the null symbol.
	OutOfBound = "Out of Bound"

	// CodeLength is the length of an encoded code including separators.
	CodeLength = Levels + 2

	divisions  = 4
	nullSymbol = '0'
)

var ErrOutOfRange = errors.New("digipin: coordinate out of range")

// symbols is indexed [row][column]; row 0 is the northern band, column 0 the western one.
var symbols = [divisions][divisions]byte{
	{'F', 'C', '9', '8'},
	{'J', '3', '2', '7'},
	{'K', '4', '5', '6'},
	{'L', 'M', 'P', 'T'},
}

// Alphabet lists every symbol that can appear in a code, row-major.
const Alphabet = "FC98J327K456LMPT"

// Bounds is a latitude/longitude rectangle in degrees.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Domain is the area covered by the grid.
var Domain = Bounds{MinLat: 2.5, MaxLat: 38.5, MinLon: 63.5, MaxLon: 99.5}

// Contains reports whether the point lies inside b, edges included.
// NaN coordinates are never contained.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Cell is an encoded code together with the level-10 rectangle it names.
type Cell struct {
	Code   string
	Bounds Bounds
}

// Encode returns the code for (lat, lon), or OutOfRange when the point is
// outside Domain.
func Encode(lat, lon float64) string {
	c, err := EncodeCell(lat, lon)
	if err != nil {
		return OutOfRange
	}
	return c.Code
}

// EncodeCell returns the code for (lat, lon) and the bounds of its final cell.
func EncodeCell(lat, lon float64) (Cell, error) {
	if !Domain.Contains(lat, lon) {
		return Cell{}, ErrOutOfRange
	}

	var sb strings.Builder
	sb.Grow(CodeLength)

	box := Domain
	for lvl := 1; lvl <= Levels; lvl++ {
		row, minLat, maxLat := box.latBand(lat)
		col, minLon, maxLon := box.lonBand(lon)

		sym := symbols[row][col]
		// unreachable: the null symbol is not in the matrix
		if lvl == 1 && sym == nullSymbol {
			return Cell{Code: OutOfBound}, nil
		}

		sb.WriteByte(sym)
		if lvl == 3 || lvl == 6 {
			sb.WriteByte(Separator)
		}

		box = Bounds{MinLat: minLat, MaxLat: maxLat, MinLon: minLon, MaxLon: maxLon}
	}

	return Cell{Code: sb.String(), Bounds: box}, nil
}

// latBand scans the latitude bands from north to south and returns the row
// holding lat with that band's limits. Falls back to the southern band.
func (b Bounds) latBand(lat float64) (row int, lo, hi float64) {
	step := (b.MaxLat - b.MinLat) / divisions
	hi = b.MaxLat
	lo = hi - step
	for x := range divisions {
		if lat >= lo && lat < hi {
			return x, lo, hi
		}
		if x == divisions-1 {
			break
		}
		hi = lo
		lo = hi - step
	}
	return divisions - 1, lo, hi
}

// lonBand scans the longitude bands from west to east. Falls back to the
// eastern band, which is where a point on the closing edge lands.
func (b Bounds) lonBand(lon float64) (col int, lo, hi float64) {
	step := (b.MaxLon - b.MinLon) / divisions
	lo = b.MinLon
	hi = lo + step
	for x := range divisions {
		if lon >= lo && lon < hi {
			return x, lo, hi
		}
		if x == divisions-1 {
			break
		}
		lo = hi
		hi = lo + step
	}
	return divisions - 1, lo, hi
}
