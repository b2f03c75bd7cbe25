// Package pluscode encodes coordinates into Open Location Codes (Plus Codes).
package pluscode

import (
	"errors"
	"fmt"
	"math"
)

const (
	Alphabet          = "23456789CFGHJMPQRVWX"
	Separator         = '+'
	SeparatorPosition = 8
	Padding           = '0'

	// PairCodeLength is the number of digits produced by the pair stage.
	// Every digit after it comes from the grid stage.
	PairCodeLength = SeparatorPosition
	DefaultLength  = 10

	GridRows    = 5
	GridColumns = 4

	LatitudeMax  = 90
	LongitudeMax = 180

	encodingBase = len(Alphabet)
	// first pair digits are 20 degrees wide on both axes
	pairRange = float64(encodingBase * encodingBase)
)

var (
	ErrInvalidLength     = errors.New("pluscode: invalid code length")
	ErrInvalidCoordinate = errors.New("pluscode: coordinate is not finite")
)

// ValidLength reports whether codeLength can be encoded.
func ValidLength(codeLength int) bool {
	if codeLength < 2 {
		return false
	}
	if codeLength < SeparatorPosition && codeLength%2 == 1 {
		return false
	}
	return true
}

// Encode returns the Plus Code of (lat, lon) with codeLength digits: up to
// four digit pairs, then one 5x4 grid digit per position past the eighth.
// Latitude and longitude outside the valid ranges are clipped.
func Encode(lat, lon float64, codeLength int) (string, error) {
	if !ValidLength(codeLength) {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, codeLength)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return "", ErrInvalidCoordinate
	}

	latVal := clip(lat, -LatitudeMax, LatitudeMax) + LatitudeMax
	lonVal := clip(lon, -LongitudeMax, LongitudeMax) + LongitudeMax

	digits := make([]byte, 0, max(codeLength, SeparatorPosition))

	latRes, lonRes := pairRange, pairRange
	pairs := min(codeLength, PairCodeLength) / 2
	for range pairs {
		latRes /= float64(encodingBase)
		lonRes /= float64(encodingBase)

		latIdx := math.Floor(latVal / latRes)
		lonIdx := math.Floor(lonVal / lonRes)

		digits = append(digits,
			Alphabet[int(latIdx)%encodingBase],
			Alphabet[int(lonIdx)%encodingBase],
		)

		latVal = math.Max(0, latVal-latIdx*latRes)
		lonVal = math.Max(0, lonVal-lonIdx*lonRes)
	}

	for len(digits) < SeparatorPosition {
		digits = append(digits, Padding)
	}

	for len(digits) < codeLength {
		latRes /= GridRows
		lonRes /= GridColumns

		row := clampIndex(math.Floor(latVal/latRes), GridRows)
		col := clampIndex(math.Floor(lonVal/lonRes), GridColumns)

		digits = append(digits, Alphabet[row*GridColumns+col])

		latVal = math.Max(0, latVal-float64(row)*latRes)
		lonVal = math.Max(0, lonVal-float64(col)*lonRes)
	}

	if len(digits) > codeLength {
		digits = digits[:codeLength]
	}
	return withSeparator(digits), nil
}

// withSeparator places the separator after SeparatorPosition digits, or at the
// end when the code is shorter than that.
func withSeparator(digits []byte) string {
	n := min(len(digits), SeparatorPosition)
	out := make([]byte, 0, len(digits)+1)
	out = append(out, digits[:n]...)
	out = append(out, Separator)
	out = append(out, digits[n:]...)
	return string(out)
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// clampIndex bounds a grid index to [0, n). Very long codes shrink the cell
// below float precision, where the quotient may be NaN or infinite.
func clampIndex(v float64, n int) int {
	switch {
	case !(v >= 0):
		return 0
	case v >= float64(n):
		return n - 1
	}
	return int(v)
}
