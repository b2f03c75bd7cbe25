// Package keys builds cache keys for encode results.
package keys

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/geopin/internal/core/model"
)

// Prefix namespaces every key. Bump the version when the cached payload
// changes shape.
const Prefix = "geopin:v1"

// Key returns the cache key for req encoded with the given schemes. The
// scheme list is hashed so keys stay short regardless of how many schemes
// are configured; order matters because it is part of the payload.
func Key(req model.EncodeRequest, schemes []string) string {
	sum := xxhash.Sum64String(strings.Join(schemes, ","))

	b := make([]byte, 0, 96)
	b = append(b, Prefix...)
	b = append(b, ':')
	b = appendCoord(b, req.Lat)
	b = append(b, ':')
	b = appendCoord(b, req.Lon)
	b = append(b, ":f="...)
	b = strconv.AppendInt(b, int64(req.Floor), 10)
	b = append(b, ":len="...)
	b = strconv.AppendInt(b, int64(req.CodeLength), 10)
	b = append(b, ":res="...)
	b = strconv.AppendInt(b, int64(req.H3Res), 10)
	b = append(b, ":s="...)
	b = appendHex64(b, sum)
	return string(b)
}

// appendCoord writes the shortest representation that round-trips, with
// negative zero folded into zero.
func appendCoord(b []byte, v float64) []byte {
	if v == 0 {
		v = 0
	}
	return strconv.AppendFloat(b, v, 'f', -1, 64)
}

func appendHex64(b []byte, v uint64) []byte {
	const hex = "0123456789abcdef"
	for shift := 60; shift >= 0; shift -= 4 {
		b = append(b, hex[(v>>uint(shift))&0xf])
	}
	return b
}
