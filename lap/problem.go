// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"math"

	"github.com/go-nlopt/nlopt"

	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

// Problem assembles the trapezoidal-collocation minimum-laptime NLP for one
// vehicle model over one track surface (spec §4.F).
type Problem struct {
	model veh.Dynamics[ad.Dual]
	track *trk.Surface
	opt   Options
	specs []ControlSpec
	seed  Seed
	lay   *layout
	s     []float64
	nqa   int
	nu    int
}

// NewProblem validates inputs and lays out the decision vector; it does not
// itself run NLOPT (see Driver.Solve).
func NewProblem(model veh.Dynamics[ad.Dual], track *trk.Surface, opt Options, specs []ControlSpec, seed Seed) (*Problem, error) {
	opt.SetDefault()
	nqa, nu := model.NQA(), model.NU()
	if len(specs) != nu {
		return nil, errs.New(errs.InputValidation, "lap: need one ControlSpec per control, got %d want %d", len(specs), nu)
	}
	n := opt.NPoints
	if len(seed.Q) != n || len(seed.U) != n || (nqa > 0 && len(seed.QA) != n) {
		return nil, errs.New(errs.InputValidation, "lap: seed arrays must have length NPoints=%d", n)
	}

	model.ChangeTrack(track)

	s := make([]float64, n)
	for i := 0; i < n; i++ {
		if opt.Closed {
			s[i] = track.Length * float64(i) / float64(n)
		} else {
			s[i] = track.Length * float64(i) / float64(n-1)
		}
	}

	p := &Problem{model: model, track: track, opt: opt, specs: specs, seed: seed, s: s, nqa: nqa, nu: nu}
	p.lay = newLayout(n, nqa, nu, specs)
	return p, nil
}

// NVars returns the total decision-vector size.
func (p *Problem) NVars() int { return p.lay.total }

// InitialGuess builds x0 from the seed (spec §4.F "Seeding").
func (p *Problem) InitialGuess() []float64 {
	n := p.opt.NPoints
	x := make([]float64, p.lay.total)
	for i := 0; i < n; i++ {
		for k := range stateFree {
			x[p.lay.stateIdx(i, k)] = p.seed.Q[i][k]
		}
		for k := 0; k < p.nqa; k++ {
			x[p.lay.algIdx(i, k)] = p.seed.QA[i][k]
		}
		for c := 0; c < p.nu; c++ {
			if idx := p.lay.controlIdx(i, c, p.s); idx >= 0 {
				x[idx] = p.seed.U[i][c]
			}
		}
	}
	return x
}

// Bounds returns the (lower, upper) bound arrays in decision-vector order.
func (p *Problem) Bounds() (lo, hi []float64) {
	n := p.opt.NPoints
	lo = make([]float64, p.lay.total)
	hi = make([]float64, p.lay.total)
	stateLo, stateHi := p.model.StateBounds()
	algLo, algHi := p.model.AlgStateBounds()
	ctrlLo, ctrlHi := p.model.ControlBounds()
	for i := 0; i < n; i++ {
		for k, si := range stateFree {
			lo[p.lay.stateIdx(i, k)] = stateLo[si]
			hi[p.lay.stateIdx(i, k)] = stateHi[si]
		}
		for k := 0; k < p.nqa; k++ {
			lo[p.lay.algIdx(i, k)] = algLo[k]
			hi[p.lay.algIdx(i, k)] = algHi[k]
		}
		for c := 0; c < p.nu; c++ {
			if idx := p.lay.controlIdx(i, c, p.s); idx >= 0 {
				lo[idx], hi[idx] = ctrlLo[c], ctrlHi[c]
			}
		}
	}
	return
}

// nodeState builds the full NBASE-wide q, the q_a vector, and the u vector
// for node i as ad.Dual values seeded at their global decision-vector index
// (or as constants, for a pinned ITIME entry or a DontOptimize control).
func (p *Problem) nodeState(x []float64, i int) (q, qa, u []ad.Dual) {
	q = make([]ad.Dual, veh.NBASE)
	for k, si := range stateFree {
		idx := p.lay.stateIdx(i, k)
		q[si] = ad.Var(x[idx], idx)
	}
	if p.nqa > 0 {
		qa = make([]ad.Dual, p.nqa)
		for k := 0; k < p.nqa; k++ {
			idx := p.lay.algIdx(i, k)
			qa[k] = ad.Var(x[idx], idx)
		}
	}
	u = make([]ad.Dual, p.nu)
	for c := 0; c < p.nu; c++ {
		if idx := p.lay.controlIdx(i, c, p.s); idx >= 0 {
			u[c] = ad.Var(x[idx], idx)
		} else {
			u[c] = ad.ConstDual(p.seed.U[i][c])
		}
	}
	return
}

type nodeEval struct {
	q, qa, u, dqds, ra []ad.Dual
}

// evalAllNodes evaluates the model once per node, caching every node's
// (q, q_a, u, dq/ds, r_a) for reuse across the trapezoidal element pairs
// that reference it.
func (p *Problem) evalAllNodes(x []float64) ([]nodeEval, error) {
	n := p.opt.NPoints
	out := make([]nodeEval, n)
	for i := 0; i < n; i++ {
		q, qa, u := p.nodeState(x, i)
		dqds, ra, err := p.model.Eval(q, qa, u, ad.ConstDual(p.s[i]))
		if err != nil {
			return nil, errs.New(errs.NumericFailure, "lap: model.Eval failed at node %d: %v", i, err)
		}
		out[i] = nodeEval{q: q, qa: qa, u: u, dqds: dqds, ra: ra}
	}
	return out, nil
}

func addRow(result []float64, gradient []float64, nx int, row int, v ad.Dual) {
	result[row] = v.V
	if len(gradient) == 0 {
		return
	}
	base := row * nx
	for idx, partial := range v.Grad {
		gradient[base+idx] = partial
	}
}

// EqualityDim returns the number of equality-constraint rows (spec §4.F
// "Dynamics (trapezoidal on arclength)" plus closure).
func (p *Problem) EqualityDim() int {
	n := p.opt.NPoints
	elems := n - 1
	if p.opt.Closed {
		elems = n
	}
	rows := elems*len(stateFree) + n*p.nqa
	if !p.opt.Closed {
		rows += len(stateFree) + p.nqa
		for _, sp := range p.specs {
			if sp.Mode != DontOptimize {
				rows++
			}
		}
	}
	return rows
}

// EqualityConstraints builds the trapezoidal dynamics and algebraic-state
// equality constraints (spec §4.F), plus the open-track pinning closure.
// Every row's gradient is read off directly from the ad.Dual evaluation,
// not approximated (spec §4.F "recording Jacobian sparsity via one ad.Dual
// evaluation of the vehicle model per node").
func (p *Problem) EqualityConstraints() nlopt.Mfunc {
	n := p.opt.NPoints
	nx := p.lay.total
	return func(result, x, gradient []float64) {
		for i := range result {
			result[i] = 0
		}
		for i := range gradient {
			gradient[i] = 0
		}
		nodes, err := p.evalAllNodes(x)
		if err != nil {
			for i := range result {
				result[i] = math.Inf(1)
			}
			return
		}

		row := 0
		elems := n - 1
		if p.opt.Closed {
			elems = n
		}
		for i := 0; i < elems; i++ {
			j := (i + 1) % n
			ds := p.elementDs(i, j)
			for _, si := range stateFree {
				qi, qj := nodes[i].q[si], nodes[j].q[si]
				dqi, dqj := nodes[i].dqds[si], nodes[j].dqds[si]
				half := ad.ConstDual(0.5 * ds)
				eq := qj.Sub(qi).Sub(half.Mul(dqi.Add(dqj)))
				addRow(result, gradient, nx, row, eq)
				row++
			}
		}
		for i := 0; i < n; i++ {
			for k := 0; k < p.nqa; k++ {
				addRow(result, gradient, nx, row, nodes[i].ra[k])
				row++
			}
		}
		if !p.opt.Closed {
			startQ, startQA, startU := p.opt.StartState, p.opt.StartAlg, p.opt.StartCtrl
			if startQ == nil {
				startQ = p.seed.Q[0]
			}
			if startQA == nil && p.nqa > 0 {
				startQA = p.seed.QA[0]
			}
			if startU == nil {
				startU = p.seed.U[0]
			}
			for k, si := range stateFree {
				eq := nodes[0].q[si].Sub(ad.ConstDual(startQ[k]))
				addRow(result, gradient, nx, row, eq)
				row++
			}
			for k := 0; k < p.nqa; k++ {
				eq := nodes[0].qa[k].Sub(ad.ConstDual(startQA[k]))
				addRow(result, gradient, nx, row, eq)
				row++
			}
			for c, sp := range p.specs {
				if sp.Mode == DontOptimize {
					continue
				}
				eq := nodes[0].u[c].Sub(ad.ConstDual(startU[c]))
				addRow(result, gradient, nx, row, eq)
				row++
			}
		}
	}
}

// elementDs returns the arclength step between node i and its successor j,
// accounting for the closed-track wrap-around element (spec §4.F "Closure").
func (p *Problem) elementDs(i, j int) float64 {
	if j == 0 {
		return p.track.Length - p.s[i]
	}
	return p.s[j] - p.s[i]
}

// InequalityDim returns the number of tire-health inequality rows: an upper
// and a lower row per extra-constraint bound per node.
func (p *Problem) InequalityDim() int {
	lo, _ := p.model.ExtraConstraintBounds()
	return p.opt.NPoints * 2 * len(lo)
}

// InequalityConstraints builds the per-node tire-health constraints
// (slip-ratio/slip-angle magnitude bounds, spec §4.F "Inequality"),
// expressed as g(x) <= 0 pairs against the model's bounds. Dynamics.
// ExtraConstraints reports plain float64 (a diagnostic cache, like
// BodyAccel), so its gradient is recovered by a local central difference
// rather than through ad.Dual -- the one block in this file that is not
// an exact analytic derivative (see DESIGN.md).
func (p *Problem) InequalityConstraints() nlopt.Mfunc {
	lo, hi := p.model.ExtraConstraintBounds()
	nExtra := len(lo)
	n := p.opt.NPoints
	nx := p.lay.total

	valueAt := func(x []float64) []float64 {
		out := make([]float64, n*2*nExtra)
		fast, err := veh.New(p.model.Kind(), p.model.Params())
		if err != nil {
			return out
		}
		fast.ChangeTrack(p.track)
		for i := 0; i < n; i++ {
			q := make([]ad.F64, veh.NBASE)
			for k, si := range stateFree {
				q[si] = ad.F64(x[p.lay.stateIdx(i, k)])
			}
			var qa []ad.F64
			if p.nqa > 0 {
				qa = make([]ad.F64, p.nqa)
				for k := 0; k < p.nqa; k++ {
					qa[k] = ad.F64(x[p.lay.algIdx(i, k)])
				}
			}
			u := make([]ad.F64, p.nu)
			for c := 0; c < p.nu; c++ {
				if idx := p.lay.controlIdx(i, c, p.s); idx >= 0 {
					u[c] = ad.F64(x[idx])
				} else {
					u[c] = ad.F64(p.seed.U[i][c])
				}
			}
			if _, _, err := fast.Eval(q, qa, u, ad.F64(p.s[i])); err != nil {
				continue
			}
			extra := fast.ExtraConstraints()
			for e := 0; e < nExtra && e < len(extra); e++ {
				out[(i*nExtra+e)*2+0] = extra[e] - hi[e]
				out[(i*nExtra+e)*2+1] = lo[e] - extra[e]
			}
		}
		return out
	}

	return func(result, x, gradient []float64) {
		vals := valueAt(x)
		copy(result, vals)
		if len(gradient) == 0 {
			return
		}
		h := 1e-6
		xt := append([]float64(nil), x...)
		for j := 0; j < nx; j++ {
			orig := xt[j]
			xt[j] = orig + h
			fp := valueAt(xt)
			xt[j] = orig - h
			fm := valueAt(xt)
			xt[j] = orig
			for r := 0; r < len(result); r++ {
				gradient[r*nx+j] = (fp[r] - fm[r]) / (2 * h)
			}
		}
	}
}

// Objective minimizes total elapsed time (recovered by trapezoidal
// quadrature of dt/ds, spec §4.F/G) plus per-control dissipation
// regularization (spec §4.F "the per-control dissipations sigma_j...
// regularize controls against chatter").
func (p *Problem) Objective() nlopt.Func {
	n := p.opt.NPoints
	return func(x, gradient []float64) float64 {
		for i := range gradient {
			gradient[i] = 0
		}
		nodes, err := p.evalAllNodes(x)
		if err != nil {
			return math.Inf(1)
		}
		elems := n - 1
		if p.opt.Closed {
			elems = n
		}
		J := ad.ConstDual(0)
		for i := 0; i < elems; i++ {
			j := (i + 1) % n
			ds := p.elementDs(i, j)
			half := ad.ConstDual(0.5 * ds)
			J = J.Add(half.Mul(nodes[i].dqds[veh.ITIME].Add(nodes[j].dqds[veh.ITIME])))
		}
		for c, sp := range p.specs {
			if sp.Dissipation == 0 {
				continue
			}
			sigma := ad.ConstDual(sp.Dissipation)
			for i := 0; i < elems; i++ {
				j := (i + 1) % n
				ds := p.elementDs(i, j)
				rate := dissipationForControl(nodes[i], nodes[j], c, ds)
				J = J.Add(sigma.Mul(rate).Mul(ad.ConstDual(ds)))
			}
		}
		if len(gradient) > 0 {
			for idx, partial := range J.Grad {
				gradient[idx] = partial
			}
		}
		return J.V
	}
}

// dissipationForControl computes the squared rate of change of control c
// between consecutive nodes i and j, ((u_j-u_i)/ds)^2 (spec §4.F: regularize
// controls against chatter, not against magnitude). The model's own per-tire
// Dissipation is float64-cached like BodyAccel/ExtraConstraints, so it cannot
// supply a usable gradient here; this uses the decision-variable controls
// directly, which stay differentiable through ad.Dual.
func dissipationForControl(ni, nj nodeEval, c int, ds float64) ad.Dual {
	rate := nj.u[c].Sub(ni.u[c]).Div(ad.ConstDual(ds))
	return rate.Mul(rate)
}
