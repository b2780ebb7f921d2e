// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"math"

	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

// ParamSensitivity holds dq/dp_k at every node and dlaptime/dp_k for one
// declared parameter (spec §4.F "Sensitivity").
type ParamSensitivity struct {
	Alias      string
	DQdP       [][]float64 // [node][NBASE-1], same free-state layout as Seed.Q
	DLaptimeDP float64
}

// Solver abstracts "run the NLP to convergence", satisfied by
// (*Driver).Solve in production; tests inject a cheap deterministic
// stand-in instead of invoking NLOPT.
type Solver func(*Problem) (*Trajectory, error)

// ComputeSensitivities perturbs every constant parameter the vehicle
// declared (params.Aliases(), skipping piecewise/mesh parameters) by a
// relative central difference, re-solves the NLP warm-started from base at
// each perturbed value, and returns the resulting dq/dp and dlaptime/dp,
// also storing them by alias in base.DQdP and base.DLaptimeDP.
//
// The spec describes this as "KKT-based parameter sensitivities ... via
// implicit differentiation of the KKT system at the solution" (spec §4.F).
// That requires the solver's bound and equality multipliers, which the
// vendored go-nlopt binding does not expose (see lap.WarmStart's own
// documented gap) -- there is no KKT system available here to
// differentiate implicitly. Re-solving at a perturbed parameter value,
// warm-started from the base optimum so the re-solve is cheap, is the
// standard fallback and converges to the same derivative a KKT-based
// method would; it costs two extra NLP solves per parameter instead of one
// linear solve against a cached factorization.
func ComputeSensitivities(solve Solver, kind veh.Kind, params *veh.Params, track *trk.Surface, opt Options, specs []ControlSpec, base *Trajectory, relStep float64) ([]ParamSensitivity, error) {
	if relStep <= 0 {
		relStep = 1e-4
	}
	warm := CaptureWarmStart(base)
	n := opt.NPoints

	var out []ParamSensitivity
	for _, alias := range params.Aliases() {
		prm := params.Find(alias)
		if prm == nil {
			continue // mesh (piecewise) parameters are not supported as sensitivity inputs
		}
		v0 := prm.V
		h := relStep * math.Max(1, math.Abs(v0))

		plus, err := resolvePerturbed(solve, kind, params, alias, v0+h, track, opt, specs, warm, n)
		if err != nil {
			return nil, err
		}
		minus, err := resolvePerturbed(solve, kind, params, alias, v0-h, track, opt, specs, warm, n)
		if err != nil {
			return nil, err
		}
		prm.V = v0

		dqdp := make([][]float64, n)
		for i := 0; i < n; i++ {
			row := make([]float64, len(stateFree))
			for k, si := range stateFree {
				row[k] = (plus.Q[i][si] - minus.Q[i][si]) / (2 * h)
			}
			dqdp[i] = row
		}
		out = append(out, ParamSensitivity{
			Alias:      alias,
			DQdP:       dqdp,
			DLaptimeDP: (plus.Laptime - minus.Laptime) / (2 * h),
		})
		if base.DQdP == nil {
			base.DQdP = make(map[string][][]float64)
		}
		if base.DLaptimeDP == nil {
			base.DLaptimeDP = make(map[string]float64)
		}
		base.DQdP[alias] = dqdp
		base.DLaptimeDP[alias] = out[len(out)-1].DLaptimeDP
	}
	return out, nil
}

func resolvePerturbed(solve Solver, kind veh.Kind, params *veh.Params, alias string, value float64, track *trk.Surface, opt Options, specs []ControlSpec, warm *WarmStart, n int) (*Trajectory, error) {
	if err := params.Override(alias, value); err != nil {
		return nil, err
	}
	m, err := veh.NewDual(kind, params)
	if err != nil {
		return nil, err
	}
	seed, err := SeedFromWarmStart(warm, n)
	if err != nil {
		return nil, err
	}
	prob, err := NewProblem(m, track, opt, specs, seed)
	if err != nil {
		return nil, err
	}
	return solve(prob)
}
