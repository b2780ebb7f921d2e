// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package lap assembles and solves the minimum-laptime optimal-control
// problem: a trapezoidal collocation of the vehicle dynamics along track
// arclength, solved as a constrained NLP with NLOPT (spec §4.F/G).
package lap

// ControlMode selects how one control channel is represented in the NLP's
// decision vector (spec §4.F).
type ControlMode int

const (
	// DontOptimize removes the control from the free set entirely; its
	// value at every node is copied from the steady-state/warm-start seed
	// and held fixed.
	DontOptimize ControlMode = iota
	// HyperMesh gives the control one decision variable per user-supplied
	// arclength breakpoint, piecewise-constant between breakpoints.
	HyperMesh
	// FullMesh gives the control one decision variable per node.
	FullMesh
)

// ControlSpec configures one control channel's representation.
type ControlSpec struct {
	Mode        ControlMode
	Breakpoints []float64 // arclength breakpoints; only used when Mode == HyperMesh
	Dissipation float64   // sigma_j regularization weight against control chatter
}

// Options configures the NLP build and solve (spec §4.F/G).
type Options struct {
	NPoints    int       `json:"npoints"` // number of collocation nodes
	Closed     bool      `json:"closed"`
	XtolRel    float64   `json:"xtolrel"`
	FtolRel    float64   `json:"ftolrel"`
	MaxEval    int       `json:"maxeval"`
	StartX     float64   `json:"startx"` // open-track start position (x); not read by Problem, which pins StartState
	StartY     float64   `json:"starty"`
	StartState []float64 `json:"startstate"` // open-track q_start, length NBASE-1 (excludes ITIME); nil pins to the seed's node 0
	StartAlg   []float64 `json:"startalg"`   // open-track qa_start; nil pins to the seed's node 0
	StartCtrl  []float64 `json:"startctrl"`  // open-track u_start; nil pins to the seed's node 0
}

// SetDefault fills unset fields with conservative defaults, mirroring the
// teacher's inp.SolverData.SetDefault convention.
func (o *Options) SetDefault() {
	if o.NPoints == 0 {
		o.NPoints = 200
	}
	if o.XtolRel == 0 {
		o.XtolRel = 1e-8
	}
	if o.FtolRel == 0 {
		o.FtolRel = 1e-8
	}
	if o.MaxEval == 0 {
		o.MaxEval = 2000
	}
}

// Seed supplies the per-node initial guess for q, q_a, u, either from a
// steady-state cornering solution (spec §4.F "Seeding" (a)) or from a
// warm-start cache (spec §4.F "Seeding" (b); see warmstart.go).
type Seed struct {
	Q  [][]float64 // [node][NBASE-1], excludes ITIME
	QA [][]float64 // [node][NQA]
	U  [][]float64 // [node][NU]
}

// Trajectory is the solved optimal-laptime result (spec §2 "OCP trajectory").
type Trajectory struct {
	S        []float64
	Q        [][]float64 // full NBASE-wide state, ITIME recovered by quadrature
	QA       [][]float64
	U        [][]float64
	X, Y, Psi []float64
	Laptime  float64

	// Sensitivities by parameter alias, populated only when this trajectory
	// is passed as base to ComputeSensitivities.
	DQdP       map[string][][]float64 // alias -> [node][NBASE-1]
	DLaptimeDP map[string]float64
}
