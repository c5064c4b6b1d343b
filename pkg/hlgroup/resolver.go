// Package hlgroup selects concrete highlight group names for decoded
// semantic tokens. Group names are composed from a fixed prefix plus
// title-cased modifier and type names, most specific composition first.
package hlgroup

import (
	"unicode"
	"unicode/utf8"
)

// DefaultPrefix is the conventional namespace prefix for semantic
// highlight groups.
const DefaultPrefix = "Sem"

// Resolver maps (type, modifiers) pairs onto the statically known set of
// available highlight groups. The zero value is unusable; build one with
// NewResolver.
type Resolver struct {
	prefix    string
	available map[string]struct{}
	combined  map[string]struct{}
}

// NewResolver builds a resolver over the given available group names.
// combinedModifiers is the configured set of modifiers whose highlights
// layer over existing styling instead of replacing it.
func NewResolver(prefix string, available []string, combinedModifiers []string) *Resolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	r := &Resolver{
		prefix:    prefix,
		available: make(map[string]struct{}, len(available)),
		combined:  make(map[string]struct{}, len(combinedModifiers)),
	}
	for _, g := range available {
		r.available[g] = struct{}{}
	}
	for _, m := range combinedModifiers {
		r.combined[m] = struct{}{}
	}
	return r
}

// Resolve picks the highlight group for a token. Resolution order, first
// existing group wins:
//
//  1. prefix + Modifier + Type, per modifier in provider order
//  2. prefix + Modifier, per modifier in provider order
//  3. prefix + Type
//
// Modifier+type compositions are most specific and beat bare modifiers,
// which beat bare types. When no candidate exists the group is empty and
// the span is kept in the cache but never rendered.
//
// combine is true when the winning rule was driven by a modifier in the
// configured combine set; a bare type match never combines.
func (r *Resolver) Resolve(tokenType string, modifiers []string) (group string, combine bool) {
	for _, mod := range modifiers {
		if g := r.lookup(r.prefix + title(mod) + title(tokenType)); g != "" {
			return g, r.isCombined(mod)
		}
	}
	for _, mod := range modifiers {
		if g := r.lookup(r.prefix + title(mod)); g != "" {
			return g, r.isCombined(mod)
		}
	}
	if g := r.lookup(r.prefix + title(tokenType)); g != "" {
		return g, false
	}
	return "", false
}

// GroupName composes a highlight group name from a prefix and
// title-cased name parts, e.g. GroupName("Sem", "readonly", "variable")
// is "SemReadonlyVariable".
func GroupName(prefix string, parts ...string) string {
	name := prefix
	for _, p := range parts {
		name += title(p)
	}
	return name
}

func (r *Resolver) lookup(name string) string {
	if _, ok := r.available[name]; ok {
		return name
	}
	return ""
}

func (r *Resolver) isCombined(mod string) bool {
	_, ok := r.combined[mod]
	return ok
}

// title upper-cases the first rune only; provider names are plain ASCII
// identifiers like "declaration" or "defaultLibrary".
func title(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	upper := unicode.ToUpper(first)
	if upper == first {
		return s
	}
	return string(upper) + s[size:]
}
