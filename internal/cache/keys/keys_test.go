package keys

import (
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geopin/internal/core/model"
)

func req(lat, lon float64) model.EncodeRequest {
	return model.EncodeRequest{
		Coordinate: model.Coordinate{Lat: lat, Lon: lon},
		CodeLength: 10,
		H3Res:      9,
	}
}

var schemes = []string{"digipin", "pluscode", "ulpin", "h3"}

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := Key(req(28.622788, 77.213033), schemes)
	k2 := Key(req(28.622788, 77.213033), schemes)
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestLayout(t *testing.T) {
	k := Key(req(28.622788, 77.213033), schemes)
	if !strings.HasPrefix(k, Prefix+":28.622788:77.213033:f=0:len=10:res=9:s=") {
		t.Fatalf("unexpected key layout: %s", k)
	}
	if !regexp.MustCompile(`:s=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing or invalid :s=<hex64> suffix in key: %s", k)
	}
}

func TestDifference_EveryFieldParticipates(t *testing.T) {
	base := req(12.9716, 77.5946)
	k := Key(base, schemes)

	variants := map[string]model.EncodeRequest{}
	r := base
	r.Lat = 12.97161
	variants["lat"] = r
	r = base
	r.Lon = 77.59461
	variants["lon"] = r
	r = base
	r.Floor = 2
	variants["floor"] = r
	r = base
	r.CodeLength = 11
	variants["len"] = r
	r = base
	r.H3Res = 8
	variants["res"] = r

	for name, v := range variants {
		if Key(v, schemes) == k {
			t.Fatalf("changing %s must change the key", name)
		}
	}
	if Key(base, schemes[:2]) == k {
		t.Fatalf("different scheme sets must produce different keys")
	}
	if Key(base, []string{"pluscode", "digipin", "ulpin", "h3"}) == k {
		t.Fatalf("scheme order must participate in the key")
	}
}

func TestNegativeZeroFolds(t *testing.T) {
	if Key(req(math.Copysign(0, -1), 0), schemes) != Key(req(0, 0), schemes) {
		t.Fatalf("-0 and 0 should share a key")
	}
}
