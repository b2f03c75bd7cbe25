package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geopin/internal/core/model"
)

// readRequests parses "lat,lon[,floor]" lines. Blank lines and lines
// starting with # are skipped; whitespace may replace commas.
func readRequests(r io.Reader, defFloor int) ([]model.EncodeRequest, error) {
	var out []model.EncodeRequest
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fields := strings.FieldsFunc(s, func(c rune) bool { return c == ',' || c == ' ' || c == '\t' })
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("line %d: want lat,lon[,floor], got %q", line, s)
		}
		lat, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		floor := defFloor
		if len(fields) == 3 {
			if floor, err = strconv.Atoi(fields[2]); err != nil {
				return nil, fmt.Errorf("line %d: floor: %w", line, err)
			}
		}
		out = append(out, model.EncodeRequest{Coordinate: model.Coordinate{Lat: lat, Lon: lon}, Floor: floor})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}
