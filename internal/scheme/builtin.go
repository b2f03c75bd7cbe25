package scheme

import (
	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/internal/mapper"
	"github.com/mohammed-shakir/geopin/pkg/digipin"
	"github.com/mohammed-shakir/geopin/pkg/pluscode"
	"github.com/mohammed-shakir/geopin/pkg/ulpin"
)

const (
	DIGIPIN  = "digipin"
	PlusCode = "pluscode"
	ULPIN    = "ulpin"
	H3       = "h3"
)

const (
	PlusCodePlaceholder = "Error encoding Plus Code"
	ULPINPlaceholder    = "Error encoding ULPIN"
	H3Placeholder       = "Unavailable"
)

// Default lists the schemes enabled when none are configured.
var Default = []string{DIGIPIN, PlusCode, ULPIN, H3}

func init() {
	Register(DIGIPIN, func(Deps) (Encoder, error) { return digipinEncoder{}, nil })
	Register(PlusCode, func(Deps) (Encoder, error) { return plusCodeEncoder{}, nil })
	Register(ULPIN, func(Deps) (Encoder, error) { return ulpinEncoder{}, nil })
	Register(H3, func(d Deps) (Encoder, error) { return hexEncoder{grid: d.HexGrid}, nil })
}

type digipinEncoder struct{}

func (digipinEncoder) Name() string        { return DIGIPIN }
func (digipinEncoder) Placeholder() string { return digipin.OutOfRange }

// Encode never fails; out-of-domain input yields the sentinel code.
func (digipinEncoder) Encode(req model.EncodeRequest) (string, error) {
	return digipin.Encode(req.Lat, req.Lon), nil
}

type plusCodeEncoder struct{}

func (plusCodeEncoder) Name() string        { return PlusCode }
func (plusCodeEncoder) Placeholder() string { return PlusCodePlaceholder }

func (plusCodeEncoder) Encode(req model.EncodeRequest) (string, error) {
	n := req.CodeLength
	if n == 0 {
		n = pluscode.DefaultLength
	}
	return pluscode.Encode(req.Lat, req.Lon, n)
}

type ulpinEncoder struct{}

func (ulpinEncoder) Name() string        { return ULPIN }
func (ulpinEncoder) Placeholder() string { return ULPINPlaceholder }

func (ulpinEncoder) Encode(req model.EncodeRequest) (string, error) {
	return ulpin.Encode(req.Lat, req.Lon, req.Floor), nil
}

// hexEncoder calls the optional hex grid once; a nil grid is reported as
// unavailable.
type hexEncoder struct {
	grid mapper.HexGrid
}

func (hexEncoder) Name() string        { return H3 }
func (hexEncoder) Placeholder() string { return H3Placeholder }

func (h hexEncoder) Encode(req model.EncodeRequest) (string, error) {
	if h.grid == nil {
		return "", mapper.ErrUnavailable
	}
	return h.grid.CellAt(req.Lat, req.Lon, req.H3Res)
}
