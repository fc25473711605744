// Package model defines the request-scoped types that flow through the gateway.
package model

import (
	"iter"
	"net/http"
	"slices"
	"strings"
)

// HeaderField is a single header line.
type HeaderField struct {
	Name  string
	Value string
}

// HeaderSet is an ordered, case-insensitive collection of header fields.
// A name may appear any number of times; every value is kept as its own
// field and values are never joined.
type HeaderSet struct {
	fields []HeaderField
}

// NewHeaderSet returns a HeaderSet holding the given fields in order.
func NewHeaderSet(fields ...HeaderField) HeaderSet {
	return HeaderSet{fields: slices.Clone(fields)}
}

// HeaderSetFromHTTP converts an http.Header. Names are visited in sorted
// order so the result is deterministic; the order of values under one name
// is preserved.
func HeaderSetFromHTTP(h http.Header) HeaderSet {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	slices.Sort(names)

	var hs HeaderSet
	for _, name := range names {
		for _, v := range h[name] {
			hs.Add(name, v)
		}
	}
	return hs
}

// Add appends a field.
func (h *HeaderSet) Add(name, value string) {
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// Set replaces all fields named name with a single field.
func (h *HeaderSet) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes all fields named name.
func (h *HeaderSet) Del(name string) {
	h.fields = slices.DeleteFunc(h.fields, func(f HeaderField) bool {
		return strings.EqualFold(f.Name, name)
	})
}

// Get returns the first value for name, or "".
func (h HeaderSet) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in order.
func (h HeaderSet) Values(name string) []string {
	var vals []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			vals = append(vals, f.Value)
		}
	}
	return vals
}

// Has reports whether at least one field is named name.
func (h HeaderSet) Has(name string) bool {
	return slices.ContainsFunc(h.fields, func(f HeaderField) bool {
		return strings.EqualFold(f.Name, name)
	})
}

// Len returns the number of fields.
func (h HeaderSet) Len() int {
	return len(h.fields)
}

// Fields returns a copy of the fields in order.
func (h HeaderSet) Fields() []HeaderField {
	return slices.Clone(h.fields)
}

// All yields every field as a name/value pair in order.
func (h HeaderSet) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, f := range h.fields {
			if !yield(f.Name, f.Value) {
				return
			}
		}
	}
}

// Names returns the distinct names in order of first appearance, spelled as
// they first appeared.
func (h HeaderSet) Names() []string {
	var names []string
	for _, f := range h.fields {
		if !slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, f.Name) }) {
			names = append(names, f.Name)
		}
	}
	return names
}

// Clone returns an independent copy.
func (h HeaderSet) Clone() HeaderSet {
	return HeaderSet{fields: slices.Clone(h.fields)}
}

// HTTPHeader converts the set into an http.Header. Each field becomes its own
// value under the canonical key.
func (h HeaderSet) HTTPHeader() http.Header {
	dst := make(http.Header, len(h.fields))
	for _, f := range h.fields {
		dst.Add(f.Name, f.Value)
	}
	return dst
}
