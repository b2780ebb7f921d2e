// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package sim ties a vehicle, a track, and a laptime solve configuration
// into one top-level run, mirroring gofem/fem.FEM's role of bundling
// inp.Simulation + Domains + Solver behind NewFEM/Run/onexit.
package sim

import (
	"time"

	"github.com/cpmech/gosl/io"

	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/lap"
	"github.com/jtodevs/racing-line/simcfg"
	"github.com/jtodevs/racing-line/steady"
	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

// Session holds everything one scenario's run needs, mirroring fem.FEM's
// Sim/Domains/Solver bundle.
type Session struct {
	Scenario *simcfg.Scenario
	Kind     veh.Kind
	Params   *veh.Params
	Track    *trk.Surface
	ShowMsg  bool

	Trajectory *lap.Trajectory
	GG         []lap.GGPoint
}

// NewSession resolves a decoded scenario into a vehicle kind, parameter
// set, and curvilinear track (running the geodetic preprocessor NLP first
// if the scenario supplies raw boundaries), mirroring fem.NewFEM's
// "read input, allocate domains" construction step.
func NewSession(sc *simcfg.Scenario, verbose bool) (o *Session, err error) {
	err = errs.Boundary("sim.NewSession", func() error {
		kind, e := sc.VehicleKind()
		if e != nil {
			return e
		}
		track, e := sc.BuildTrack()
		if e != nil {
			return e
		}
		if verbose {
			io.Pf("> Simulation scenario read: %q\n", sc.Desc)
		}
		o = &Session{
			Scenario: sc,
			Kind:     kind,
			Params:   sc.BuildParams(),
			Track:    track,
			ShowMsg:  verbose,
		}
		return nil
	})
	return
}

// Run assembles and solves the scenario's optimal-laptime NLP (spec
// §4.F/G), seeding either from a steady-state cornering solution or a
// saved warm start (spec §4.F "Seeding"), then -- if the scenario requests
// one -- sweeps a gg-diagram (spec §4.C) off the same dual-recording model
// instance. Mirrors fem.FEM.Run's defer-wrapped stage loop, specialized to
// this domain's single-solve shape instead of a multi-stage time loop.
func (o *Session) Run() (err error) {
	cputime := time.Now()
	defer func() { err = o.onexit(cputime, err) }()

	specs, e := o.Scenario.BuildControlSpecs()
	if e != nil {
		return e
	}

	m, e := o.BuildModel()
	if e != nil {
		return e
	}

	n := o.Scenario.Laptime.NPoints
	if o.ShowMsg {
		io.Pf("> Building seed for %d nodes\n", n)
	}
	seed, e := o.buildSeed(m, n)
	if e != nil {
		return e
	}

	if o.ShowMsg {
		io.Pf("> Assembling NLP\n")
	}
	prob, e := lap.NewProblem(m, o.Track, o.Scenario.Laptime, specs, seed)
	if e != nil {
		return e
	}

	if o.ShowMsg {
		io.Pf("> Running NLP solver\n")
	}
	traj, e := lap.NewDriver(prob).Solve()
	if e != nil {
		return e
	}
	o.Trajectory = traj
	if o.ShowMsg {
		io.Pf("> Solved, laptime = %.6f s\n", traj.Laptime)
	}

	if o.Scenario.SaveWarmStart {
		lap.SaveWarmStart(o.Kind, lap.CaptureWarmStart(traj))
		if o.ShowMsg {
			io.Pf("> Warm start saved for %q\n", o.Kind)
		}
	}

	if gg := o.Scenario.GG; gg != nil {
		guess := make([]float64, m.NU())
		o.GG = lap.GGDiagram(m, gg.Speed, gg.AyBound, gg.AxBound, gg.NPoints, guess, o.Scenario.Steady)
		if o.ShowMsg {
			io.Pf("> GG-diagram swept, %d samples\n", len(o.GG))
		}
	}
	return nil
}

// BuildModel instantiates a dual-recording vehicle model for this session's
// kind and parameters and attaches this session's track, the same model
// instance Run solves the NLP against. Exposed separately so a caller
// distributing a gg-diagram sweep across MPI ranks (SPEC_FULL.md §3 item 1,
// main.go) can obtain the model without running the full NLP solve.
func (o *Session) BuildModel() (veh.Dynamics[ad.Dual], error) {
	m, err := veh.NewDual(o.Kind, o.Params)
	if err != nil {
		return nil, err
	}
	m.ChangeTrack(o.Track)
	return m, nil
}

// buildSeed resolves the scenario's Seeding choice (spec §4.F "Seeding"):
// either (a) a steady-state cornering solution at steady_state_speed with
// zero sideways acceleration, replicated across every node, or (b) a saved
// warm start replayed through lap.SeedFromWarmStart.
func (o *Session) buildSeed(m veh.Dynamics[ad.Dual], n int) (lap.Seed, error) {
	if o.Scenario.WarmStart {
		ws, ok := lap.LoadWarmStart(o.Kind)
		if !ok {
			return lap.Seed{}, errs.New(errs.LookupMiss, "sim: warm_start requested but no saved warm start for vehicle kind %q", o.Kind)
		}
		return lap.SeedFromWarmStart(ws, n)
	}

	pt, err := steady.Solve(m, steady.Target{Speed: o.Scenario.SteadyStateSpeed}, make([]float64, m.NU()), o.Scenario.Steady)
	if err != nil {
		return lap.Seed{}, err
	}

	seed := lap.Seed{
		Q:  make([][]float64, n),
		QA: make([][]float64, n),
		U:  make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		seed.Q[i] = []float64{0, 0, o.Scenario.SteadyStateSpeed, pt.VLat, pt.Omega}
		seed.QA[i] = append([]float64(nil), pt.AlgState...)
		seed.U[i] = append([]float64(nil), pt.Controls...)
	}
	return seed, nil
}

// onexit logs the outcome, mirroring fem.FEM.onexit's single success/failure
// banner plus CPU time.
func (o *Session) onexit(cputime time.Time, prevErr error) error {
	if o.ShowMsg {
		if prevErr == nil {
			io.PfGreen("> Success\n")
			io.Pf("> CPU time = %v\n", time.Since(cputime))
		} else {
			io.PfRed("> Failed\n")
		}
	}
	return prevErr
}
