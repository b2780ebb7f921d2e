// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"github.com/go-nlopt/nlopt"

	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/veh"
)

// Driver wires a Problem into NLOPT's SLSQP solver, mirroring
// trk.preprocess's own NewNLopt/SetBounds/SetMinObjective/
// AddEqualityMConstraint/Optimize sequence (spec §4.F/G).
type Driver struct {
	problem *Problem
}

// NewDriver wraps an assembled Problem.
func NewDriver(p *Problem) *Driver { return &Driver{problem: p} }

// Solve runs the constrained NLP to convergence and recovers the full
// trajectory (elapsed time, road position) from the solved decision
// vector.
func (d *Driver) Solve() (*Trajectory, error) {
	p := d.problem
	opter, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(p.NVars()))
	if err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: nlopt.NewNLopt failed: %v", err)
	}
	defer opter.Destroy()

	lo, hi := p.Bounds()
	if err := opter.SetLowerBounds(lo); err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: SetLowerBounds failed: %v", err)
	}
	if err := opter.SetUpperBounds(hi); err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: SetUpperBounds failed: %v", err)
	}
	if err := opter.SetMinObjective(p.Objective()); err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: SetMinObjective failed: %v", err)
	}

	eqTol := make([]float64, p.EqualityDim())
	for i := range eqTol {
		eqTol[i] = 1e-8
	}
	if err := opter.AddEqualityMConstraint(p.EqualityConstraints(), eqTol); err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: AddEqualityMConstraint failed: %v", err)
	}

	if nExtra := p.InequalityDim(); nExtra > 0 {
		ineqTol := make([]float64, nExtra)
		if err := opter.AddInequalityMConstraint(p.InequalityConstraints(), ineqTol); err != nil {
			return nil, errs.New(errs.NumericFailure, "lap: AddInequalityMConstraint failed: %v", err)
		}
	}

	if err := opter.SetXtolRel(p.opt.XtolRel); err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: SetXtolRel failed: %v", err)
	}
	if err := opter.SetFtolRel(p.opt.FtolRel); err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: SetFtolRel failed: %v", err)
	}
	if err := opter.SetMaxEval(p.opt.MaxEval); err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: SetMaxEval failed: %v", err)
	}

	xOpt, _, err := opter.Optimize(p.InitialGuess())
	if err != nil {
		return nil, errs.New(errs.NumericFailure, "lap: Optimize failed: %v", err)
	}

	return d.recoverTrajectory(xOpt)
}

// recoverTrajectory rebuilds the full NBASE-wide state (ITIME recovered by
// trapezoidal quadrature of dtime/ds, per spec §4.G) and road position from
// the solved decision vector.
func (d *Driver) recoverTrajectory(x []float64) (*Trajectory, error) {
	p := d.problem
	n := p.opt.NPoints

	nodes, err := p.evalAllNodes(x)
	if err != nil {
		return nil, err
	}

	fast, err := veh.New(p.model.Kind(), p.model.Params())
	if err != nil {
		return nil, err
	}
	fast.ChangeTrack(p.track)

	traj := &Trajectory{
		S:   append([]float64(nil), p.s...),
		Q:   make([][]float64, n),
		QA:  make([][]float64, n),
		U:   make([][]float64, n),
		X:   make([]float64, n),
		Y:   make([]float64, n),
		Psi: make([]float64, n),
	}

	cumT := make([]float64, n)
	elems := n - 1
	if p.opt.Closed {
		elems = n
	}
	for i := 0; i < elems; i++ {
		j := (i + 1) % n
		ds := p.elementDs(i, j)
		dt := 0.5 * ds * (nodes[i].dqds[veh.ITIME].V + nodes[j].dqds[veh.ITIME].V)
		if j == 0 {
			traj.Laptime = cumT[i] + dt
		} else {
			cumT[j] = cumT[i] + dt
		}
	}
	if !p.opt.Closed {
		traj.Laptime = cumT[n-1]
	}

	for i := 0; i < n; i++ {
		q := make([]float64, veh.NBASE)
		q[veh.ITIME] = cumT[i]
		for _, si := range stateFree {
			q[si] = nodes[i].q[si].V
		}
		traj.Q[i] = q

		qa := make([]float64, p.nqa)
		for k := 0; k < p.nqa; k++ {
			qa[k] = nodes[i].qa[k].V
		}
		traj.QA[i] = qa

		u := make([]float64, p.nu)
		for c := 0; c < p.nu; c++ {
			u[c] = nodes[i].u[c].V
		}
		traj.U[i] = u

		qf := make([]ad.F64, veh.NBASE)
		for _, si := range stateFree {
			qf[si] = ad.F64(q[si])
		}
		var qaf []ad.F64
		if p.nqa > 0 {
			qaf = make([]ad.F64, p.nqa)
			for k := range qa {
				qaf[k] = ad.F64(qa[k])
			}
		}
		uf := make([]ad.F64, p.nu)
		for c := range u {
			uf[c] = ad.F64(u[c])
		}
		if _, _, err := fast.Eval(qf, qaf, uf, ad.F64(p.s[i])); err == nil {
			traj.X[i], traj.Y[i], traj.Psi[i] = fast.RoadXYPsi()
		}
	}

	return traj, nil
}
