package kafka

import (
	"errors"
	"math"
	"time"
)

// PointerEvent is one position report from a pointing device.
type PointerEvent struct {
	DeviceID string    `json:"device_id"`
	Seq      uint64    `json:"seq"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Floor    int       `json:"floor,omitempty"`
	TS       time.Time `json:"ts"`
}

func (e PointerEvent) Validate() error {
	if e.DeviceID == "" {
		return errors.New("device_id is required")
	}
	if math.IsNaN(e.Lat) || math.IsInf(e.Lat, 0) || math.IsNaN(e.Lon) || math.IsInf(e.Lon, 0) {
		return errors.New("lat and lon must be finite")
	}
	return nil
}
