// Package response renders templated bot replies from a fixed catalog.
package response

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// placeholderRe matches {{name}} tokens.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Source picks an index in [0, n).
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Resolver picks and fills templates.
type Resolver struct {
	catalog Catalog
	src     Source
	mu      sync.Mutex
	logger  *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRand makes template selection use src, e.g. a seeded *rand.Rand.
func WithRand(src Source) Option {
	return func(r *Resolver) { r.src = src }
}

// NewResolver creates a resolver over catalog.
func NewResolver(catalog Catalog, logger *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{catalog: catalog, src: globalSource{}, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve renders one template of key. Tokens without a value stay verbatim.
// An unknown key renders as "".
func (r *Resolver) Resolve(key Key, vars map[string]string) string {
	templates := r.catalog[key]
	if len(templates) == 0 {
		r.logger.Warn("no templates for response key", zap.String("key", string(key)))
		return ""
	}

	tpl := templates[0]
	if len(templates) > 1 {
		r.mu.Lock()
		tpl = templates[r.src.IntN(len(templates))]
		r.mu.Unlock()
	}
	return Fill(tpl, vars)
}

// Fill substitutes every {{name}} in tpl that has an entry in vars.
func Fill(tpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tpl
	}
	return placeholderRe.ReplaceAllStringFunc(tpl, func(tok string) string {
		if v, ok := vars[tok[2:len(tok)-2]]; ok {
			return v
		}
		return tok
	})
}

// Plural returns "" for exactly one and "s" otherwise.
func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// FormatSeconds renders seconds with one decimal, dropping a trailing ".0"
// and a leading "0": 1.0 -> "1", 0.3 -> ".3", 2.5 -> "2.5".
func FormatSeconds(sec float64) string {
	s := strconv.FormatFloat(sec, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if strings.HasPrefix(s, "0.") {
		s = s[1:]
	}
	return s
}
