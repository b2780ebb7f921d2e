// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package simcfg reads a JSON scenario file describing one end-to-end run
// (vehicle parameters, track source, preprocessor/laptime/steady-state
// options, control representation) and builds the objects package sim needs
// to run it, mirroring gofem/inp.ReadSim's "defaults, then unmarshal, then
// derive" convention.
package simcfg

import (
	"encoding/json"
	"os"

	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/lap"
	"github.com/jtodevs/racing-line/steady"
	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

// ParamConstant mirrors one veh.Params.DeclareConstant call.
type ParamConstant struct {
	Path  string  `json:"path"`
	Alias string  `json:"alias"`
	Value float64 `json:"value"`
}

// ParamVariable mirrors one veh.Params.DeclareVariable call: a mesh
// (piecewise) parameter registered in full under each of its aliases.
type ParamVariable struct {
	Path        string    `json:"path"`
	Aliases     string    `json:"aliases"` // semicolon-separated, split by veh.Params.DeclareVariable
	Values      []float64 `json:"values"`
	Breakpoints []float64 `json:"breakpoints"`
	Breakidx    []int     `json:"breakidx"`
}

// VehicleConfig names a vehicle kind and declares its parameter set.
type VehicleConfig struct {
	Kind      string          `json:"kind"` // "kart-6dof" or "f1-3dof"
	Constants []ParamConstant `json:"constants"`
	Variables []ParamVariable `json:"variables"`
}

// TrackGeodetic is the raw left/right geodetic boundary polyline accepted by
// trk.Preprocess (spec §4.D stages 1-5); this is the "not the out-of-scope
// XML/KML reader" ambient convenience named in SPEC_FULL.md §1 -- the
// scenario file carries already-decoded LonLat arrays, not a KML document.
type TrackGeodetic struct {
	Left      []trk.LonLat `json:"left"`
	Right     []trk.LonLat `json:"right"`
	Clockwise bool         `json:"clockwise"`
	Closed    bool         `json:"closed"`

	// NPoints selects equally-spaced mode (spec §4.D "element count n_el");
	// leave zero and set SDistribution/DsDistribution instead for refined
	// mode (closed tracks only -- spec §4.D "open-track refined mode is
	// rejected as unsupported").
	NPoints        int       `json:"npoints"`
	SDistribution  []float64 `json:"s_distribution"`
	DsDistribution []float64 `json:"ds_distribution"`
}

// Mesh translates the scenario's JSON mesh fields into a trk.Mesh.
func (g *TrackGeodetic) Mesh() trk.Mesh {
	return trk.Mesh{
		NEl:            g.NPoints,
		SDistribution:  g.SDistribution,
		DsDistribution: g.DsDistribution,
	}
}

// TrackCurvilinear is an already-preprocessed curvilinear reference, for
// scenarios that skip the geodetic preprocessor entirely (spec §4.E).
type TrackCurvilinear struct {
	S      []float64 `json:"s"`
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	Theta  []float64 `json:"theta"`
	Kappa  []float64 `json:"kappa"`
	NL     []float64 `json:"nl"`
	NR     []float64 `json:"nr"`
	Closed bool      `json:"closed"`
	Length float64   `json:"length"`
}

// TrackConfig selects exactly one of the two track sources above.
type TrackConfig struct {
	Geodetic    *TrackGeodetic    `json:"geodetic,omitempty"`
	Curvilinear *TrackCurvilinear `json:"curvilinear,omitempty"`
}

// ControlSpecConfig is the JSON-friendly mirror of lap.ControlSpec; Mode is
// a name rather than lap.ControlMode's int so scenario files stay readable.
type ControlSpecConfig struct {
	Mode        string    `json:"mode"` // "dont_optimize" (default), "hyper_mesh", "full_mesh"
	Breakpoints []float64 `json:"breakpoints"`
	Dissipation float64   `json:"dissipation"`
}

// GGConfig requests a gg-diagram sweep alongside (or instead of) the
// optimal-laptime solve (spec §4.C).
type GGConfig struct {
	Speed   float64 `json:"speed"`
	AyBound float64 `json:"ay_bound"`
	AxBound float64 `json:"ax_bound"`
	NPoints int     `json:"n_points"`
}

// Scenario is the top-level JSON-decoded description of one run, mirroring
// inp.Simulation's role of bundling everything a solve needs off of disk.
type Scenario struct {
	Desc    string        `json:"desc"`
	Vehicle VehicleConfig `json:"vehicle"`
	Track   TrackConfig   `json:"track"`

	Preprocess trk.Options         `json:"preprocess"`
	Laptime    lap.Options         `json:"laptime"`
	Steady     steady.Options      `json:"steady"`
	Controls   []ControlSpecConfig `json:"controls"`

	// SteadyStateSpeed seeds every mesh node from the steady-state cornering
	// solution at this speed with zero lateral/longitudinal acceleration
	// (spec §4.F "Seeding" (a); resolved per SPEC_FULL.md §5 to read this
	// correctly-named key rather than the original's "initial_speed" typo).
	SteadyStateSpeed float64 `json:"steady_state_speed"`

	// WarmStart, when true, seeds from the saved warm-start cache for this
	// vehicle kind instead of a fresh steady-state solve (spec §4.F
	// "Seeding" (b)); SaveWarmStart, when true, captures the solved
	// trajectory back into the cache afterward (SPEC_FULL.md §3 item 2).
	WarmStart     bool `json:"warm_start"`
	SaveWarmStart bool `json:"save_warm_start"`

	GG *GGConfig `json:"gg,omitempty"`
}

// SetDefault fills every nested Options with its own conservative defaults,
// mirroring inp.ReadSim calling o.Solver.SetDefault()/o.LinSol.SetDefault()
// before json.Unmarshal so fields absent from the file keep sane values
// while fields present in the file still override them.
func (o *Scenario) SetDefault() {
	o.Preprocess.SetDefault()
	o.Laptime.SetDefault()
	o.Steady.SetDefault()
	if o.SteadyStateSpeed == 0 {
		o.SteadyStateSpeed = 20
	}
	if o.GG != nil && o.GG.NPoints == 0 {
		o.GG.NPoints = 50
	}
}

// ReadScenario reads and decodes a scenario from a JSON file, mirroring
// inp.ReadSim's read-file / set-defaults / unmarshal sequence, wrapped in
// the single panic/recover boundary every public entry point uses (spec §7).
func ReadScenario(path string) (sc *Scenario, err error) {
	err = errs.Boundary("simcfg.ReadScenario", func() error {
		b, e := os.ReadFile(path)
		if e != nil {
			return errs.New(errs.InputValidation, "cannot read scenario file %q: %v", path, e)
		}
		var o Scenario
		o.SetDefault()
		if e := json.Unmarshal(b, &o); e != nil {
			return errs.New(errs.InputValidation, "cannot unmarshal scenario file %q: %v", path, e)
		}
		sc = &o
		return nil
	})
	return
}

// VehicleKind validates and returns the scenario's declared vehicle kind.
func (o *Scenario) VehicleKind() (veh.Kind, error) {
	switch veh.Kind(o.Vehicle.Kind) {
	case veh.KindKart:
		return veh.KindKart, nil
	case veh.KindF1:
		return veh.KindF1, nil
	}
	return "", errs.New(errs.LookupMiss, "unknown vehicle kind %q; known kinds are %q and %q", o.Vehicle.Kind, veh.KindF1, veh.KindKart)
}

// BuildParams declares every constant and mesh parameter from the scenario
// into a fresh veh.Params, ready to pass to veh.New/veh.NewDual.
func (o *Scenario) BuildParams() *veh.Params {
	p := veh.NewParams()
	for _, c := range o.Vehicle.Constants {
		p.DeclareConstant(c.Path, c.Alias, c.Value)
	}
	for _, v := range o.Vehicle.Variables {
		p.DeclareVariable(v.Path, v.Aliases, v.Values, v.Breakpoints, v.Breakidx)
	}
	return p
}

// BuildTrack materializes the scenario's track as a trk.Surface, running the
// geodetic preprocessor NLP when a raw polyline was supplied (spec §4.D), or
// constructing the surface directly from an already-preprocessed
// curvilinear array (spec §4.E).
func (o *Scenario) BuildTrack() (*trk.Surface, error) {
	switch {
	case o.Track.Geodetic != nil:
		g := o.Track.Geodetic
		res, err := trk.Preprocess(g.Left, g.Right, g.Clockwise, g.Closed, g.Mesh(), o.Preprocess)
		if err != nil {
			return nil, err
		}
		return res.Surface, nil
	case o.Track.Curvilinear != nil:
		c := o.Track.Curvilinear
		return trk.NewSurface(c.S, c.X, c.Y, c.Theta, c.Kappa, c.NL, c.NR, c.Closed, c.Length)
	}
	return nil, errs.New(errs.InputValidation, "scenario track must set exactly one of \"geodetic\" or \"curvilinear\"")
}

// BuildControlSpecs translates the scenario's JSON-friendly control modes
// into lap.ControlSpec values for lap.NewProblem.
func (o *Scenario) BuildControlSpecs() ([]lap.ControlSpec, error) {
	specs := make([]lap.ControlSpec, len(o.Controls))
	for i, c := range o.Controls {
		var mode lap.ControlMode
		switch c.Mode {
		case "", "dont_optimize":
			mode = lap.DontOptimize
		case "hyper_mesh":
			mode = lap.HyperMesh
		case "full_mesh":
			mode = lap.FullMesh
		default:
			return nil, errs.New(errs.InputValidation, "unknown control mode %q at index %d", c.Mode, i)
		}
		specs[i] = lap.ControlSpec{Mode: mode, Breakpoints: c.Breakpoints, Dissipation: c.Dissipation}
	}
	return specs, nil
}
