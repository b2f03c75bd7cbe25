// Package router holds the HTTP handlers of the encoding API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/geopin/internal/core/middleware"
	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/internal/core/observability"
	"github.com/mohammed-shakir/geopin/internal/encoder"
	"github.com/mohammed-shakir/geopin/pkg/digipin"
)

// maxBatchBody bounds the batch request body.
const maxBatchBody = 1 << 20

// Encoder serves encode requests.
type Encoder interface {
	Encode(ctx context.Context, req model.EncodeRequest) (model.EncodeResult, error)
	EncodeBatch(ctx context.Context, reqs []model.EncodeRequest) ([]model.EncodeResult, error)
	Schemes() []string
}

// Defaults fill parameters a request leaves out.
type Defaults struct {
	CodeLength int
	H3Res      int
}

// BatchRequest is the body of POST /v1/encode/batch.
type BatchRequest struct {
	Points     []BatchPoint `json:"points"`
	CodeLength *int         `json:"len,omitempty"`
	H3Res      *int         `json:"res,omitempty"`
}

type BatchPoint struct {
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Floor int      `json:"floor"`
}

type BatchResponse struct {
	Results []model.EncodeResult `json:"results"`
}

type SchemesResponse struct {
	Schemes []string `json:"schemes"`
}

// HandleEncode serves GET /v1/encode.
func HandleEncode(logger *slog.Logger, d Defaults, enc Encoder) http.HandlerFunc {
	return instrument("/v1/encode", func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseEncodeRequest(r, d)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := enc.Encode(r.Context(), req)
		if err != nil {
			writeEncodeError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

// HandleEncodeBatch serves POST /v1/encode/batch.
func HandleEncodeBatch(logger *slog.Logger, d Defaults, enc Encoder) http.HandlerFunc {
	return instrument("/v1/encode/batch", func(w http.ResponseWriter, r *http.Request) {
		reqs, err := ParseBatchRequest(http.MaxBytesReader(w, r.Body, maxBatchBody), d)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := enc.EncodeBatch(r.Context(), reqs)
		if err != nil {
			writeEncodeError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, BatchResponse{Results: res})
	})
}

// HandleDigipinCell serves GET /v1/digipin/cell as a GeoJSON Feature whose
// polygon is the finest DIGIPIN cell containing the point.
func HandleDigipinCell() http.HandlerFunc {
	return instrument("/v1/digipin/cell", func(w http.ResponseWriter, r *http.Request) {
		c, err := parseCoordinate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cell, err := digipin.EncodeCell(c.Lat, c.Lon)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(CellFeature(cell))
	})
}

// HandleSchemes serves GET /v1/schemes.
func HandleSchemes(enc Encoder) http.HandlerFunc {
	return instrument("/v1/schemes", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, SchemesResponse{Schemes: enc.Schemes()})
	})
}

// CellFeature renders a DIGIPIN cell as a GeoJSON Feature.
func CellFeature(cell digipin.Cell) *geojson.Feature {
	b := orb.Bound{
		Min: orb.Point{cell.Bounds.MinLon, cell.Bounds.MinLat},
		Max: orb.Point{cell.Bounds.MaxLon, cell.Bounds.MaxLat},
	}
	f := geojson.NewFeature(b.ToPolygon())
	f.BBox = geojson.NewBBox(b)
	f.Properties["digipin"] = cell.Code
	return f
}

// ParseEncodeRequest reads lat, lon, floor, len and res from the query.
func ParseEncodeRequest(r *http.Request, d Defaults) (model.EncodeRequest, error) {
	c, err := parseCoordinate(r)
	if err != nil {
		return model.EncodeRequest{}, err
	}
	q := r.URL.Query()
	floor, err := intParam(q.Get("floor"), "floor", 0)
	if err != nil {
		return model.EncodeRequest{}, err
	}
	codeLen, err := intParam(q.Get("len"), "len", d.CodeLength)
	if err != nil {
		return model.EncodeRequest{}, err
	}
	res, err := intParam(q.Get("res"), "res", d.H3Res)
	if err != nil {
		return model.EncodeRequest{}, err
	}
	return model.EncodeRequest{Coordinate: c, Floor: floor, CodeLength: codeLen, H3Res: res}, nil
}

// ParseBatchRequest decodes a batch body. Points must carry lat and lon.
func ParseBatchRequest(body io.Reader, d Defaults) ([]model.EncodeRequest, error) {
	var br BatchRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&br); err != nil {
		return nil, fmt.Errorf("invalid batch body: %w", err)
	}
	if len(br.Points) == 0 {
		return nil, errors.New("batch must contain at least one point")
	}
	if len(br.Points) > encoder.MaxBatch {
		return nil, fmt.Errorf("batch of %d points exceeds %d", len(br.Points), encoder.MaxBatch)
	}
	codeLen, res := d.CodeLength, d.H3Res
	if br.CodeLength != nil {
		codeLen = *br.CodeLength
	}
	if br.H3Res != nil {
		res = *br.H3Res
	}

	out := make([]model.EncodeRequest, len(br.Points))
	for i, p := range br.Points {
		if p.Lat == nil || p.Lon == nil {
			return nil, fmt.Errorf("point %d: lat and lon are required", i)
		}
		out[i] = model.EncodeRequest{
			Coordinate: model.Coordinate{Lat: *p.Lat, Lon: *p.Lon},
			Floor:      p.Floor,
			CodeLength: codeLen,
			H3Res:      res,
		}
	}
	return out, nil
}

func parseCoordinate(r *http.Request) (model.Coordinate, error) {
	q := r.URL.Query()
	lat, err := floatParam(q.Get("lat"), "lat")
	if err != nil {
		return model.Coordinate{}, err
	}
	lon, err := floatParam(q.Get("lon"), "lon")
	if err != nil {
		return model.Coordinate{}, err
	}
	return model.Coordinate{Lat: lat, Lon: lon}, nil
}

func floatParam(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func intParam(raw, name string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func writeEncodeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, encoder.ErrInvalidRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.ErrorContext(r.Context(), "encode failed", "err", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// instrument records request count and latency under a fixed route label.
func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &middleware.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.Code, time.Since(start).Seconds())
	}
}
