// Package ulpin encodes a coordinate and a floor index into a ULPIN-style
// mixed-radix land parcel code.
//
// The 14-character code is laid out as
//
//	LL FF ff  NN GG gg VV
//
// where LL is the biased integer latitude in base 14, NN the biased integer
// longitude in base 19, FF/ff and GG/gg the first and second three fractional
// decimal digits of latitude and longitude in base 32, and VV the biased floor
// in base 32. I and O are replaced by Y and Z in the final code.
package ulpin

import (
	"math"
	"strconv"
	"strings"
)

const (
	// CodeLength is the fixed length of every code.
	CodeLength = 14

	LatitudeBias  = 90
	LongitudeBias = 180
	FloorBias     = 544

	latitudeDigits  = "0123456789ABCD"
	longitudeDigits = "0123456789ABCDEFGHI"
	fractionDigits  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	fractionRadix   = 32

	fracPlaces = 8
)

// MinFloor and MaxFloor bound the floors whose biased value fits two base-32
// digits. Values outside are clamped.
const (
	MinFloor = -FloorBias
	MaxFloor = fractionRadix*fractionRadix - 1 - FloorBias
)

var confusable = strings.NewReplacer("I", "Y", "O", "Z")

// Encode returns the code for (lat, lon) on the given floor.
func Encode(lat, lon float64, floor int) string {
	lat = clip(lat, -LatitudeBias, LatitudeBias)
	lon = clip(lon, -LongitudeBias, LongitudeBias)

	var sb strings.Builder
	sb.Grow(CodeLength)

	latInt, latFrac := split(lat)
	writeDigits(&sb, int(latInt)+LatitudeBias, len(latitudeDigits), latitudeDigits)
	writeFraction(&sb, latFrac)

	lonInt, lonFrac := split(lon)
	writeDigits(&sb, int(lonInt)+LongitudeBias, len(longitudeDigits), longitudeDigits)
	writeFraction(&sb, lonFrac)

	f := min(max(floor, MinFloor), MaxFloor)
	writeDigits(&sb, f+FloorBias, fractionRadix, fractionDigits)

	return confusable.Replace(sb.String())
}

// split returns the integer part truncated toward zero and the absolute
// remainder.
func split(v float64) (whole, frac float64) {
	whole = math.Trunc(v)
	return whole, math.Abs(v - whole)
}

// writeDigits writes v as two digits in the given radix.
func writeDigits(sb *strings.Builder, v, radix int, digits string) {
	sb.WriteByte(digits[v/radix])
	sb.WriteByte(digits[v%radix])
}

// writeFraction renders frac with eight decimal places and writes the first
// and second groups of three digits in base 32.
func writeFraction(sb *strings.Builder, frac float64) {
	s := strconv.FormatFloat(frac, 'f', fracPlaces, 64)
	s = strings.TrimPrefix(s, "0.")
	s = (s + strings.Repeat("0", fracPlaces))[:fracPlaces]

	writeDigits(sb, leadingInt(s[0:3]), fractionRadix, fractionDigits)
	writeDigits(sb, leadingInt(s[3:6]), fractionRadix, fractionDigits)
}

// leadingInt parses the run of decimal digits at the start of s. A fraction
// that rounds up to 1 renders as "1.000000", whose first group reads as 1.
func leadingInt(s string) int {
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func clip(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, lo), hi)
}
