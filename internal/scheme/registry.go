// Package scheme keeps the named encoders the service can run for a
// coordinate. Each encoder is independent and stateless.
package scheme

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/internal/mapper"
)

type Encoder interface {
	Name() string
	Encode(req model.EncodeRequest) (string, error)
	// Placeholder is shown in place of a code when Encode fails.
	Placeholder() string
}

// Deps are the optional collaborators a factory may use.
type Deps struct {
	HexGrid mapper.HexGrid
}

type Factory func(deps Deps) (Encoder, error)

var (
	mu  sync.RWMutex
	reg = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	reg[name] = f
}

func New(name string, deps Deps) (Encoder, error) {
	mu.RLock()
	f, ok := reg[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown scheme %q (known: %s)", name, strings.Join(Names(), ","))
	}
	return f(deps)
}

// Names returns the registered scheme names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NewSet builds the encoders for names in order, skipping duplicates.
func NewSet(names []string, deps Deps) ([]Encoder, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]Encoder, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		e, err := New(n, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no schemes enabled")
	}
	return out, nil
}
