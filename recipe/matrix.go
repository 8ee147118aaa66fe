package recipe

import (
	"maps"
	"slices"
)

// Matrix lists the values of each setting (Require) and option. A
// package ID is one point of a matrix: the setting values in key order
// joined by "-", then "+", then the option values joined by "-".
type Matrix struct {
	Require map[string][]string
	Options map[string][]string
}

// Combinations returns every point of the matrix as a package ID, in key
// order with the first key varying slowest.
func (m *Matrix) Combinations() []string {
	reqs := product(m.Require)
	opts := product(m.Options)
	switch {
	case len(reqs) == 0:
		return opts
	case len(opts) == 0:
		return reqs
	}
	ids := make([]string, 0, len(reqs)*len(opts))
	for _, r := range reqs {
		for _, o := range opts {
			ids = append(ids, r+"+"+o)
		}
	}
	return ids
}

func product(kvs map[string][]string) []string {
	if len(kvs) == 0 {
		return nil
	}
	var out []string
	for _, k := range slices.Sorted(maps.Keys(kvs)) {
		if out == nil {
			out = slices.Clone(kvs[k])
			continue
		}
		next := make([]string, 0, len(out)*len(kvs[k]))
		for _, prefix := range out {
			for _, v := range kvs[k] {
				next = append(next, prefix+"-"+v)
			}
		}
		out = next
	}
	return out
}

// String returns the first point, which is the package ID of a matrix
// with one value per key.
func (m Matrix) String() string {
	ids := m.Combinations()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Variants returns the matrix of every linkage and fPIC choice for the
// settings of o.
func (o BuildOptions) Variants() Matrix {
	m := o.Matrix()
	m.Options["shared"] = []string{"shared", "static"}
	if o.HasFPIC() {
		m.Options["fPIC"] = []string{"nopic", "pic"}
	}
	return m
}

