// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package steady solves for a single quasi-steady cornering equilibrium of a
// vehicle model: given a forward speed and the longitudinal/lateral specific
// forces it must sustain, find the body-slip state, yaw rate, controls, and
// algebraic state that produce them with zero net yaw moment (spec §4.C).
// Results seed the optimal-laptime mesh (package lap) and, swept over a grid
// of lateral accelerations, trace a gg-diagram.
package steady

import (
	"math"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"

	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

// Target is the commanded steady-state operating point.
type Target struct {
	Speed float64 // forward speed [m/s]
	Ax    float64 // longitudinal specific force [m/s^2]
	Ay    float64 // lateral specific force [m/s^2]
}

// Options configures the damped Gauss-Newton iteration.
type Options struct {
	MaxIters int     `json:"maxiters"` // iteration cap
	Tol      float64 `json:"tol"`      // stop once the residual norm drops below this
	Damping  float64 `json:"damping"`  // initial Levenberg-Marquardt damping factor
}

// SetDefault fills unset fields with conservative defaults, mirroring the
// SetDefault convention used throughout the teacher's inp package.
func (o *Options) SetDefault() {
	if o.MaxIters == 0 {
		o.MaxIters = 50
	}
	if o.Tol == 0 {
		o.Tol = 1e-9
	}
	if o.Damping == 0 {
		o.Damping = 1e-3
	}
}

// Point is one converged steady-state equilibrium.
type Point struct {
	Target     Target
	VLat       float64
	Omega      float64
	Controls   []float64
	AlgState   []float64
	ResNorm    float64
	Iterations int
}

// virtualSurface builds a placeholder straight reference line so a model's
// ChangeTrack has something to sample during a steady-state solve. The
// lateral offset n is pinned at zero throughout Solve, which zeroes out the
// (1 - n*kappa) coupling in every model's kinematics, so the curvature of
// this placeholder never reaches the residual; only its presence matters.
func virtualSurface() *trk.Surface {
	const n = 8
	const length = 200.0
	s := make([]float64, n)
	x := make([]float64, n)
	y := make([]float64, n)
	theta := make([]float64, n)
	kap := make([]float64, n)
	nL := make([]float64, n)
	nR := make([]float64, n)
	for i := 0; i < n; i++ {
		s[i] = float64(i) * length / float64(n)
		x[i] = s[i]
		nL[i], nR[i] = 50, 50
	}
	surf, err := trk.NewSurface(s, x, y, theta, kap, nL, nR, true, length)
	if err != nil {
		chk.Panic("steady: virtualSurface is internally inconsistent: %v", err)
	}
	return surf
}

// unpack splits the flat Gauss-Newton unknown vector into its named parts.
// Layout: [0]=lateral velocity, [1]=yaw rate, [2:2+nu]=controls,
// [2+nu:2+nu+nqa]=algebraic state.
func unpack(x []float64, nu, nqa int) (vLat, omega float64, u, qa []float64) {
	vLat, omega = x[0], x[1]
	u = append([]float64(nil), x[2:2+nu]...)
	qa = append([]float64(nil), x[2+nu:2+nu+nqa]...)
	return
}

// residualAndJacobian evaluates the model once with every unknown seeded as
// an independent ad.Dual variable, recovering both the residual vector and
// its full Jacobian from the single sparse-gradient evaluation. ax and ay
// are reconstructed algebraically from dq/ds rather than via Dynamics'
// BodyAccel (which reports plain float64 for diagnostics), since the
// Jacobian needs their dependence on every unknown preserved.
func residualAndJacobian(m veh.Dynamics[ad.Dual], x []float64, target Target, nu, nqa int) (r []float64, J [][]float64, err error) {
	q := make([]ad.Dual, veh.NBASE)
	q[veh.IU] = ad.ConstDual(target.Speed)
	q[veh.IV] = ad.Var(x[0], 0)
	q[veh.IOMEGA] = ad.Var(x[1], 1)

	u := make([]ad.Dual, nu)
	for i := 0; i < nu; i++ {
		u[i] = ad.Var(x[2+i], 2+i)
	}
	var qa []ad.Dual
	if nqa > 0 {
		qa = make([]ad.Dual, nqa)
		for i := 0; i < nqa; i++ {
			qa[i] = ad.Var(x[2+nu+i], 2+nu+i)
		}
	}

	dqds, ra, err := m.Eval(q, qa, u, ad.ConstDual(0))
	if err != nil {
		return nil, nil, err
	}
	if len(ra) != nqa {
		return nil, nil, errs.New(errs.Internal, "steady: model returned %d algebraic residuals, want %d", len(ra), nqa)
	}

	dtds := dqds[veh.ITIME]
	ax := dqds[veh.IU].Div(dtds).Sub(q[veh.IV].Mul(q[veh.IOMEGA]))
	ay := dqds[veh.IV].Div(dtds).Add(q[veh.IU].Mul(q[veh.IOMEGA]))

	res := make([]ad.Dual, 3+nqa)
	res[0] = ax.Sub(ad.ConstDual(target.Ax))
	res[1] = ay.Sub(ad.ConstDual(target.Ay))
	res[2] = dqds[veh.IOMEGA]
	copy(res[3:], ra)

	nx := len(x)
	r = make([]float64, len(res))
	J = la.MatAlloc(len(res), nx)
	for i, v := range res {
		r[i] = v.V
		for j := 0; j < nx; j++ {
			J[i][j] = v.Partial(j)
		}
	}
	return r, J, nil
}

// lmStep solves the Levenberg-Marquardt normal equations
// (JᵀJ + lambda diag(JᵀJ)) dx = -Jᵀr for the damped Gauss-Newton step.
func lmStep(J [][]float64, r []float64, lambda float64) (dx []float64, ok bool) {
	nr := len(J)
	if nr == 0 {
		return nil, false
	}
	nx := len(J[0])
	A := la.MatAlloc(nx, nx)
	b := make([]float64, nx)
	for i := 0; i < nx; i++ {
		for k := 0; k < nr; k++ {
			b[i] -= J[k][i] * r[k]
		}
		for j := 0; j < nx; j++ {
			for k := 0; k < nr; k++ {
				A[i][j] += J[k][i] * J[k][j]
			}
		}
	}
	for i := 0; i < nx; i++ {
		A[i][i] += lambda * (A[i][i] + 1e-12)
	}
	Ai := la.MatAlloc(nx, nx)
	if _, err := la.MatInv(Ai, A, 1e-13); err != nil {
		return nil, false
	}
	dx = make([]float64, nx)
	la.MatVecMul(dx, 1, Ai, b)
	return dx, true
}

func addScaled(x, dx []float64, step float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + step*dx[i]
	}
	return out
}

// Solve finds the steady-state equilibrium that produces target on m,
// starting the controls from controlGuess (length must equal m.NU()).
func Solve(m veh.Dynamics[ad.Dual], target Target, controlGuess []float64, opt Options) (*Point, error) {
	opt.SetDefault()
	nu, nqa := m.NU(), m.NQA()
	if len(controlGuess) != nu {
		return nil, errs.New(errs.InputValidation, "steady: controlGuess must have length %d, got %d", nu, len(controlGuess))
	}

	nx := 2 + nu + nqa
	x := make([]float64, nx)
	copy(x[2:2+nu], controlGuess)

	m.ChangeTrack(virtualSurface())

	var resNorm float64
	lambda := opt.Damping
	iters := 0
	for ; iters < opt.MaxIters; iters++ {
		r, J, err := residualAndJacobian(m, x, target, nu, nqa)
		if err != nil {
			return nil, err
		}
		resNorm = la.VecNorm(r)
		if resNorm < opt.Tol {
			break
		}
		dx, ok := lmStep(J, r, lambda)
		if !ok {
			return nil, errs.New(errs.NumericFailure, "steady: singular Gauss-Newton system at iteration %d", iters)
		}
		accepted := false
		step := 1.0
		for try := 0; try < 10; try++ {
			xt := addScaled(x, dx, step)
			rt, _, err := residualAndJacobian(m, xt, target, nu, nqa)
			if err == nil && la.VecNorm(rt) < resNorm {
				x = xt
				lambda = math.Max(lambda*0.5, 1e-10)
				accepted = true
				break
			}
			step *= 0.5
			lambda *= 2
		}
		if !accepted {
			return nil, errs.New(errs.NumericFailure, "steady: line search failed to reduce residual at iteration %d", iters)
		}
	}
	if resNorm >= opt.Tol {
		return nil, errs.New(errs.NumericFailure, "steady: did not converge in %d iterations, residual=%.3e", opt.MaxIters, resNorm)
	}

	vLat, omega, u, qa := unpack(x, nu, nqa)
	return &Point{
		Target:     target,
		VLat:       vLat,
		Omega:      omega,
		Controls:   u,
		AlgState:   qa,
		ResNorm:    resNorm,
		Iterations: iters,
	}, nil
}

// GGSample is one point on a gg-diagram sweep: the achievable lateral
// acceleration at a fixed speed, and the equilibrium that realizes it.
type GGSample struct {
	Ay    float64
	Point *Point
}

// SweepGG sweeps lateral acceleration at a fixed speed and zero longitudinal
// acceleration, returning every ay for which Solve converges. Divergent
// points (beyond the vehicle's lateral grip limit) are skipped rather than
// aborting the sweep, since the boundary of convergence IS the gg-diagram
// edge.
func SweepGG(m veh.Dynamics[ad.Dual], speed float64, ayMin, ayMax float64, n int, controlGuess []float64, opt Options) []GGSample {
	if n < 2 {
		n = 2
	}
	out := make([]GGSample, 0, n)
	u := append([]float64(nil), controlGuess...)
	for i := 0; i < n; i++ {
		ay := ayMin + (ayMax-ayMin)*float64(i)/float64(n-1)
		pt, err := Solve(m, Target{Speed: speed, Ax: 0, Ay: ay}, u, opt)
		if err != nil {
			continue
		}
		out = append(out, GGSample{Ay: ay, Point: pt})
		u = pt.Controls // warm-start the next point from the last converged one
	}
	return out
}
