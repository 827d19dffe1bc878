// Package normalization maps loosely spelled configuration values onto their
// canonical form.
package normalization

import (
	"slices"
	"strings"
)

// Normalizer canonicalizes values of a string-backed enum. Matching ignores
// case and surrounding space.
type Normalizer[T ~string] struct {
	byKey map[string]T
	keys  []string
}

// New builds a normalizer accepting the given canonical values.
func New[T ~string](values ...T) *Normalizer[T] {
	n := &Normalizer[T]{byKey: make(map[string]T, len(values))}
	for _, v := range values {
		n.Alias(string(v), v)
	}
	return n
}

// Alias makes raw an accepted spelling of v.
func (n *Normalizer[T]) Alias(raw string, v T) *Normalizer[T] {
	key := clean(raw)
	if _, ok := n.byKey[key]; !ok {
		n.keys = append(n.keys, key)
		slices.Sort(n.keys)
	}
	n.byKey[key] = v
	return n
}

// Normalize returns the canonical value for raw. Unknown input is returned
// unchanged with ok false so validation can report it as written.
func (n *Normalizer[T]) Normalize(raw T) (T, bool) {
	if v, ok := n.byKey[clean(string(raw))]; ok {
		return v, true
	}
	return raw, false
}

// Apply normalizes *p in place. Empty values are left alone.
func (n *Normalizer[T]) Apply(p *T) {
	if *p == "" {
		return
	}
	*p, _ = n.Normalize(*p)
}

// Keys lists the accepted spellings, sorted.
func (n *Normalizer[T]) Keys() []string {
	return slices.Clone(n.keys)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
