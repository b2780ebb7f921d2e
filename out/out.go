// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package out implements named output tables for solved trajectories,
// mirroring gofem/out's accumulation of named result series under a
// configurable prefix, re-purposed for per-call vehicle/track quantities
// instead of per-node FEM field values.
package out

import (
	"sort"

	"github.com/cpmech/gosl/io"
)

// Table accumulates named series across repeated solves (spec §6 "per-call
// outputs placed into named tables under a configurable prefix"). A single
// Table typically backs one scenario; sweeps (e.g. a laptime-vs-dissipation
// study) append one row per solve.
type Table struct {
	Prefix string               // output_variables_prefix
	cols   map[string][]float64 // prefix+name -> accumulated values
	order  []string             // first-seen column order, returned by Names
}

// NewTable returns an empty table with the given variable-name prefix
func NewTable(prefix string) *Table {
	return &Table{Prefix: prefix, cols: make(map[string][]float64)}
}

// Set appends value under Prefix+name, the single per-call write primitive
// described by spec §6
func (o *Table) Set(name string, value float64) {
	key := o.Prefix + name
	if _, ok := o.cols[key]; !ok {
		o.order = append(o.order, key)
	}
	o.cols[key] = append(o.cols[key], value)
}

// SetDerivative writes a sensitivity value under the
// "derivatives/<variable>/<parameter_alias>" naming scheme of spec §6
func (o *Table) SetDerivative(variable, paramAlias string, value float64) {
	o.Set(io.Sf("derivatives/%s/%s", variable, paramAlias), value)
}

// Get returns the accumulated series for a variable name (without prefix)
func (o *Table) Get(name string) []float64 {
	return o.cols[o.Prefix+name]
}

// Last returns the most recently set value for a variable, or 0 if absent
func (o *Table) Last(name string) float64 {
	v := o.cols[o.Prefix+name]
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

// Names returns every column name currently populated, in first-seen order
func (o *Table) Names() []string {
	return append([]string(nil), o.order...)
}

// SortedNames returns Names() sorted lexically, for a deterministic listing
func (o *Table) SortedNames() []string {
	names := o.Names()
	sort.Strings(names)
	return names
}

// RecognizedVehicleOutputs lists the canonical vehicle-state and tire-scoped
// output names from spec §6. It is a name list only: no code in this
// repository (sim.Session included) fills a Table from it.
var RecognizedVehicleOutputs = []string{
	"x", "y", "s", "n", "alpha", "u", "v", "time", "delta", "psi", "omega",
	"throttle", "brake-bias",
	"Fz_fl", "Fz_fr", "Fz_rl", "Fz_rr",
	"ax", "ay",
	"chassis.understeer_oversteer_indicator",
	"chassis.aerodynamics.cd",
}

// TireOutputName builds a tire-scoped output name, e.g.
// TireOutputName("front_axle", "left", "kappa") -> "front_axle.left_tire.kappa"
func TireOutputName(axle, side, field string) string {
	return io.Sf("%s.%s_tire.%s", axle, side, field)
}
