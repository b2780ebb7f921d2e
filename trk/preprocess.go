// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trk

import (
	"math"

	"github.com/cpmech/gosl/io"
	nlopt "github.com/go-nlopt/nlopt"

	"github.com/jtodevs/racing-line/errs"
)

// Options configures the preprocessor NLP (spec §4.D)
type Options struct {
	EpsD                   float64 `json:"epsd"`
	EpsK                   float64 `json:"epsk"`
	EpsN                   float64 `json:"epsn"`
	EpsC                   float64 `json:"epsc"`
	MaximumKappa           float64 `json:"maximumkappa"`
	MaximumDKappa          float64 `json:"maximumdkappa"`
	MaximumDn              float64 `json:"maximumdn"`
	MaximumDistanceFind    float64 `json:"maximumdistancefind"`
	AdaptionAspectRatioMax float64 `json:"adaptionaspectratiomax"`
	PrintLevel             int     `json:"printlevel"`
}

// SetDefault fills zero-valued fields with the teacher's convention of
// conservative, dimensionally sane defaults (mirrors inp.SolverData.SetDefault)
func (o *Options) SetDefault() {
	if o.EpsD == 0 {
		o.EpsD = 1.0
	}
	if o.EpsK == 0 {
		o.EpsK = 1e-2
	}
	if o.EpsN == 0 {
		o.EpsN = 1e-2
	}
	if o.EpsC == 0 {
		o.EpsC = 0.1
	}
	if o.MaximumKappa == 0 {
		o.MaximumKappa = 0.3
	}
	if o.MaximumDKappa == 0 {
		o.MaximumDKappa = 0.05
	}
	if o.MaximumDn == 0 {
		o.MaximumDn = 0.5
	}
	if o.MaximumDistanceFind == 0 {
		o.MaximumDistanceFind = 25.0
	}
	if o.AdaptionAspectRatioMax == 0 {
		o.AdaptionAspectRatioMax = 10.0
	}
}

// Result bundles the preprocessor's materialized output (spec §4.D stage 5)
type Result struct {
	Surface                 *Surface
	LeftMaxErr, RightMaxErr float64
	LeftL2Err, RightL2Err   float64
}

// nVarsPerNode is the per-node decision variable count: state
// (x, y, theta, kappa, nL, nR) + control (dkappa/ds, dnL/ds, dnR/ds)
const nVarsPerNode = 9

// varIdx returns the flat index of state/control component c at node i
func varIdx(i, c int) int { return i*nVarsPerNode + c }

// Mesh selects how the preprocessor places nodes along arclength (spec
// §4.D: "either an element count n_el (equally-spaced) or an arclength
// distribution (s_distribution, ds_distribution) (refined)"). Exactly one
// of NEl or SDistribution/DsDistribution must be set.
type Mesh struct {
	// NEl is the node count for equally-spaced mode.
	NEl int
	// SDistribution and DsDistribution give the refined mode's desired
	// local element spacing ds at each arclength sample s (same length,
	// increasing s); node density follows 1/ds, so segments with a
	// smaller ds get proportionally more nodes.
	SDistribution  []float64
	DsDistribution []float64
}

func (m Mesh) refined() bool { return len(m.SDistribution) > 0 }

// Preprocess implements spec §4.D: converts raw geodetic boundary polylines
// into a smooth curvilinear reference, solved with go-nlopt's LD_SLSQP as
// the nearest available analog to the spec's interior-point NLP solver.
func Preprocess(left, right []LonLat, clockwise, closed bool, mesh Mesh, opt Options) (res *Result, err error) {
	err = errs.Boundary("trk.Preprocess", func() error {
		r, e := preprocess(left, right, clockwise, closed, mesh, opt)
		if e != nil {
			return e
		}
		res = r
		return nil
	})
	return
}

func preprocess(left, right []LonLat, clockwise, closed bool, mesh Mesh, opt Options) (*Result, error) {
	opt.SetDefault()
	refined := mesh.refined()
	if refined {
		if !closed {
			return nil, errs.New(errs.InputValidation, "trk: open-track refined mode is unsupported (spec §4.D edge case)")
		}
		if len(mesh.SDistribution) != len(mesh.DsDistribution) {
			return nil, errs.New(errs.InputValidation, "trk: SDistribution and DsDistribution must have equal length, got %d and %d", len(mesh.SDistribution), len(mesh.DsDistribution))
		}
		if len(mesh.SDistribution) < 2 {
			return nil, errs.New(errs.InputValidation, "trk: refined mode needs at least 2 (s,ds) samples, got %d", len(mesh.SDistribution))
		}
	} else if mesh.NEl < 4 {
		return nil, errs.New(errs.InputValidation, "trk: NEl must be >= 4, got %d", mesh.NEl)
	}

	proj := NewProjection(left, right)
	lx, ly := proj.FlattenAll(left)
	rx, ry := proj.FlattenAll(right)
	orientBoundary(lx, ly, clockwise)
	orientBoundary(rx, ry, clockwise)

	targets, dsGuess, n := nodeTargets(mesh, len(lx))
	elems := n - 1
	if closed {
		elems = n
	}

	// stage 3: averaged centerline estimate by nearest-pair midpoint
	cx, cy, lengthEstimate := averagedCenterline(lx, ly, rx, ry, targets, opt.MaximumDistanceFind)

	// stage 4: NLP refinement
	trailing := 1
	if refined {
		trailing = elems
	}
	nx := n*nVarsPerNode + trailing
	x0 := make([]float64, nx)
	for i := 0; i < n; i++ {
		x0[varIdx(i, 0)] = cx[i]
		x0[varIdx(i, 1)] = cy[i]
		theta := headingAt(cx, cy, i)
		x0[varIdx(i, 2)] = theta
		x0[varIdx(i, 3)] = 0
		x0[varIdx(i, 4)] = 5.0
		x0[varIdx(i, 5)] = 5.0
		x0[varIdx(i, 6)] = 0
		x0[varIdx(i, 7)] = 0
		x0[varIdx(i, 8)] = 0
	}
	if refined {
		copy(x0[n*nVarsPerNode:], dsGuess)
	} else {
		x0[n*nVarsPerNode] = lengthEstimate
	}

	opter, e := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(nx))
	if e != nil {
		return nil, errs.New(errs.Internal, "trk: nlopt init failed: %v", e)
	}
	defer opter.Destroy()

	lb := make([]float64, nx)
	ub := make([]float64, nx)
	for i := 0; i < n; i++ {
		lb[varIdx(i, 0)], ub[varIdx(i, 0)] = math.Inf(-1), math.Inf(1)
		lb[varIdx(i, 1)], ub[varIdx(i, 1)] = math.Inf(-1), math.Inf(1)
		lb[varIdx(i, 2)], ub[varIdx(i, 2)] = math.Inf(-1), math.Inf(1)
		lb[varIdx(i, 3)], ub[varIdx(i, 3)] = -opt.MaximumKappa, opt.MaximumKappa
		lb[varIdx(i, 4)], ub[varIdx(i, 4)] = 0.5, 30.0
		lb[varIdx(i, 5)], ub[varIdx(i, 5)] = 0.5, 30.0
		lb[varIdx(i, 6)], ub[varIdx(i, 6)] = -opt.MaximumDKappa, opt.MaximumDKappa
		lb[varIdx(i, 7)], ub[varIdx(i, 7)] = -opt.MaximumDn, opt.MaximumDn
		lb[varIdx(i, 8)], ub[varIdx(i, 8)] = -opt.MaximumDn, opt.MaximumDn
	}
	if refined {
		for i := 0; i < elems; i++ {
			lb[n*nVarsPerNode+i], ub[n*nVarsPerNode+i] = dsGuess[i]*0.2, dsGuess[i]*5.0
		}
	} else {
		lb[n*nVarsPerNode], ub[n*nVarsPerNode] = lengthEstimate*0.5, lengthEstimate*1.5
	}
	if e := opter.SetLowerBounds(lb); e != nil {
		return nil, errs.New(errs.Internal, "trk: set lower bounds failed: %v", e)
	}
	if e := opter.SetUpperBounds(ub); e != nil {
		return nil, errs.New(errs.Internal, "trk: set upper bounds failed: %v", e)
	}

	objective := buildObjective(n, cx, cy, lx, ly, rx, ry, opt)
	if err := opter.SetMinObjective(objective); err != nil {
		return nil, errs.New(errs.NumericFailure, "trk: set objective failed: %v", err)
	}

	eq := buildEqualityConstraints(n, elems, refined)
	if err := opter.AddEqualityMConstraint(eq, make([]float64, equalityDim(elems))); err != nil {
		return nil, errs.New(errs.NumericFailure, "trk: equality constraints rejected: %v", err)
	}

	ineq := buildAspectRatioConstraints(n, elems, refined, opt.AdaptionAspectRatioMax)
	if err := opter.AddInequalityMConstraint(ineq, make([]float64, aspectRatioDim(elems))); err != nil {
		return nil, errs.New(errs.NumericFailure, "trk: aspect-ratio constraints rejected: %v", err)
	}

	opter.SetXtolRel(1e-8)
	opter.SetFtolRel(1e-10)
	opter.SetMaxEval(2000)

	xOpt, _, err := opter.Optimize(x0)
	if err != nil {
		return nil, errs.New(errs.NumericFailure, "trk: preprocessor NLP did not converge: %v", err)
	}

	s, x, y, theta, kappa, nL, nR, length := unpack(xOpt, n, elems, closed, refined)
	surf, e := NewSurface(s, x, y, theta, kappa, nL, nR, closed, length)
	if e != nil {
		return nil, e
	}

	lmax, rmax, ll2, rl2 := boundaryErrors(surf, lx, ly, rx, ry)
	surf.LeftMaxError, surf.RightMaxError = lmax, rmax
	surf.LeftL2Error, surf.RightL2Error = ll2, rl2

	if opt.PrintLevel > 0 {
		io.Pf("trk.Preprocess: length=%.2f lmax=%.4f rmax=%.4f\n", length, lmax, rmax)
	}

	return &Result{Surface: surf, LeftMaxErr: lmax, RightMaxErr: rmax, LeftL2Err: ll2, RightL2Err: rl2}, nil
}

// nodeTargets resolves a Mesh into the node count n, a per-node fractional
// position (0..1) along the boundary polylines for averagedCenterline to
// sample, and (for refined mode only) an initial ds guess per element.
//
// Equally-spaced mode places n = mesh.NEl targets uniformly in [0,1).
// Refined mode (spec §4.D "refined mode... n_points implied by
// integrating 1/ds") instead treats 1/ds(s) as a node density: it
// integrates 1/ds over mesh.SDistribution (trapezoidal rule) to get the
// element count, then places targets so that equal increments of that
// integral -- not of raw arclength -- get equal spacing, putting more
// nodes where ds is smaller.
func nodeTargets(mesh Mesh, nBoundary int) (targets []float64, dsGuess []float64, n int) {
	if !mesh.refined() {
		n = mesh.NEl
		targets = make([]float64, n)
		for i := 0; i < n; i++ {
			targets[i] = float64(i) / float64(n)
		}
		return targets, nil, n
	}

	s, ds := mesh.SDistribution, mesh.DsDistribution
	m := len(s)
	weight := make([]float64, m) // cumulative integral of 1/ds from s[0]
	for i := 1; i < m; i++ {
		dSeg := s[i] - s[i-1]
		avgInvDs := 0.5 * (1/ds[i-1] + 1/ds[i])
		weight[i] = weight[i-1] + dSeg*avgInvDs
	}
	total := weight[m-1]
	n = int(math.Round(total))
	if n < 4 {
		n = 4
	}

	targets = make([]float64, n)
	dsGuess = make([]float64, n)
	sTotal := s[m-1] - s[0]
	for k := 0; k < n; k++ {
		wk := total * float64(k) / float64(n)
		j := 0
		for j < m-1 && weight[j+1] < wk {
			j++
		}
		if j >= m-1 {
			j = m - 2
		}
		frac := 0.0
		if weight[j+1] > weight[j] {
			frac = (wk - weight[j]) / (weight[j+1] - weight[j])
		}
		sk := s[j] + frac*(s[j+1]-s[j])
		dsGuess[k] = ds[j] + frac*(ds[j+1]-ds[j])
		if sTotal > 0 {
			targets[k] = (sk - s[0]) / sTotal
		}
	}
	return targets, dsGuess, n
}

// dsAt returns element i's arclength spacing: the shared global scalar
// divided evenly (equally-spaced mode), or that element's own decision
// variable (refined mode).
func dsAt(x []float64, elemIdx, n, elems int, refined bool) float64 {
	off := n * nVarsPerNode
	if refined {
		return x[off+elemIdx]
	}
	return x[off] / float64(elems)
}

func unpack(x []float64, n, elems int, closed, refined bool) (s, xs, ys, theta, kappa, nL, nR []float64, length float64) {
	s = make([]float64, n)
	xs = make([]float64, n)
	ys = make([]float64, n)
	theta = make([]float64, n)
	kappa = make([]float64, n)
	nL = make([]float64, n)
	nR = make([]float64, n)
	for i := 1; i < n; i++ {
		s[i] = s[i-1] + dsAt(x, i-1, n, elems, refined)
	}
	length = s[n-1]
	if closed {
		length += dsAt(x, elems-1, n, elems, refined)
	}
	for i := 0; i < n; i++ {
		xs[i] = x[varIdx(i, 0)]
		ys[i] = x[varIdx(i, 1)]
		theta[i] = x[varIdx(i, 2)]
		kappa[i] = x[varIdx(i, 3)]
		nL[i] = x[varIdx(i, 4)]
		nR[i] = x[varIdx(i, 5)]
	}
	return
}

// averagedCenterline implements spec §4.D stage 3: for each of len(targets)
// fractional positions along the left boundary's own parameterization,
// find the nearest right-boundary sample within maxDist and take the
// midpoint. A local window scan stands in for gm.Bins (see DESIGN.md);
// pairs with no right-boundary sample within maxDist fall back to the
// single nearest sample found (still reported via the distance check a
// caller can make against boundaryErrors) rather than aborting the sweep,
// since the initial estimate only seeds the NLP and does not need to be
// exact.
func averagedCenterline(lx, ly, rx, ry []float64, targets []float64, maxDist float64) (cx, cy []float64, length float64) {
	n := len(targets)
	cx = make([]float64, n)
	cy = make([]float64, n)
	nl := len(lx)
	for i, t := range targets {
		li := int(t * float64(nl))
		if li >= nl {
			li = nl - 1
		}
		bestJ, bestD := 0, math.Inf(1)
		window := 32
		lo, hi := li-window, li+window
		for j := lo; j <= hi; j++ {
			jj := ((j % len(rx)) + len(rx)) % len(rx)
			d := math.Hypot(lx[li]-rx[jj], ly[li]-ry[jj])
			if d < bestD {
				bestD, bestJ = d, jj
			}
		}
		if bestD > maxDist {
			// widen the search once to the whole boundary rather than
			// silently accept a pair the caller asked to bound.
			for j := 0; j < len(rx); j++ {
				d := math.Hypot(lx[li]-rx[j], ly[li]-ry[j])
				if d < bestD {
					bestD, bestJ = d, j
				}
			}
		}
		cx[i] = 0.5 * (lx[li] + rx[bestJ])
		cy[i] = 0.5 * (ly[li] + ry[bestJ])
	}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		length += math.Hypot(cx[j]-cx[i], cy[j]-cy[i])
	}
	return
}

func headingAt(cx, cy []float64, i int) float64 {
	n := len(cx)
	j := (i + 1) % n
	return math.Atan2(cy[j]-cy[i], cx[j]-cx[i])
}

// buildObjective assembles spec §4.D stage 4's weighted sum: fidelity to the
// measured boundary, curvature smoothness, lateral-width smoothness, and
// anchor to the averaged-centerline estimate, with a numerical (central
// difference) gradient since the vehicle-model AD machinery (package ad)
// is not reused here — the preprocessor's decision variables are track
// geometry, not vehicle state.
func buildObjective(n int, cx, cy, lx, ly, rx, ry []float64, opt Options) nlopt.Func {
	cost := func(x []float64) float64 {
		var J float64
		for i := 0; i < n; i++ {
			xi, yi := x[varIdx(i, 0)], x[varIdx(i, 1)]
			kappa := x[varIdx(i, 3)]
			dnLds := x[varIdx(i, 7)]
			dnRds := x[varIdx(i, 8)]

			dLeft := nearestDist(xi, yi, lx, ly)
			dRight := nearestDist(xi, yi, rx, ry)
			J += opt.EpsD * (dLeft*dLeft + dRight*dRight)
			J += opt.EpsK * kappa * kappa
			J += opt.EpsN * (dnLds*dnLds + dnRds*dnRds)
			dxc, dyc := xi-cx[i], yi-cy[i]
			J += opt.EpsC * (dxc*dxc + dyc*dyc)
		}
		return J
	}
	return func(x, gradient []float64) float64 {
		f := cost(x)
		if len(gradient) > 0 {
			numGrad(cost, x, gradient)
		}
		return f
	}
}

func nearestDist(x, y float64, bx, by []float64) float64 {
	best := math.Inf(1)
	for i := range bx {
		d := math.Hypot(x-bx[i], y-by[i])
		if d < best {
			best = d
		}
	}
	return best
}

func equalityDim(elems int) int {
	// 3 trapezoidal equations (dx/ds, dy/ds, dtheta/ds) per element; closed
	// tracks include the wrap-around element (spec §4.D stage 4 closure).
	return elems * 3
}

// buildEqualityConstraints enforces the trapezoidal dynamics
// dx/ds=cos(theta), dy/ds=sin(theta), dtheta/ds=kappa at every element
// (spec §4.D stage 4), including the closed-track wrap-around element,
// with each element's own ds (dsAt) rather than a single shared spacing
// so refined mode's per-element variables participate in the dynamics.
func buildEqualityConstraints(n, elems int, refined bool) nlopt.Mfunc {
	residual := func(result, x []float64) {
		row := 0
		for i := 0; i < elems; i++ {
			j := (i + 1) % n
			ds := dsAt(x, i, n, elems, refined)
			xi, yi, ti := x[varIdx(i, 0)], x[varIdx(i, 1)], x[varIdx(i, 2)]
			xj, yj, tj := x[varIdx(j, 0)], x[varIdx(j, 1)], x[varIdx(j, 2)]
			ki, kj := x[varIdx(i, 3)], x[varIdx(j, 3)]
			result[row+0] = xj - xi - 0.5*ds*(math.Cos(ti)+math.Cos(tj))
			result[row+1] = yj - yi - 0.5*ds*(math.Sin(ti)+math.Sin(tj))
			result[row+2] = tj - ti - 0.5*ds*(ki+kj)
			row += 3
		}
	}
	return func(result, x, gradient []float64) {
		residual(result, x)
		if len(gradient) > 0 {
			numJacobian(residual, x, len(result), gradient)
		}
	}
}

func aspectRatioDim(elems int) int { return elems * 2 }

// buildAspectRatioConstraints enforces spec §4.D's "element aspect-ratio
// <= adaption_aspect_ratio_max": each element's arclength spacing ds and
// track width (nL+nR) may not differ by more than that factor in either
// direction. Written as two one-sided linear-in-ds inequalities per
// element (ds <= max*width and width <= max*ds) instead of a single
// max(ds/width, width/ds) <= max test, since the latter is non-smooth at
// ds == width and NLOPT's SLSQP needs a differentiable constraint.
func buildAspectRatioConstraints(n, elems int, refined bool, maxRatio float64) nlopt.Mfunc {
	residual := func(result, x []float64) {
		row := 0
		for i := 0; i < elems; i++ {
			ds := dsAt(x, i, n, elems, refined)
			width := x[varIdx(i, 4)] + x[varIdx(i, 5)]
			result[row+0] = ds - maxRatio*width
			result[row+1] = width - maxRatio*ds
			row += 2
		}
	}
	return func(result, x, gradient []float64) {
		residual(result, x)
		if len(gradient) > 0 {
			numJacobian(residual, x, len(result), gradient)
		}
	}
}

// numGrad fills gradient with the central-difference gradient of f at x
func numGrad(f func([]float64) float64, x, gradient []float64) {
	h := 1e-6
	for i := range x {
		xi := x[i]
		x[i] = xi + h
		fp := f(x)
		x[i] = xi - h
		fm := f(x)
		x[i] = xi
		gradient[i] = (fp - fm) / (2 * h)
	}
}

// numJacobian fills the row-major m*n gradient buffer nlopt expects for an
// Mfunc with the central-difference Jacobian of residual at x
func numJacobian(residual func(result, x []float64), x []float64, m int, gradient []float64) {
	n := len(x)
	h := 1e-6
	rp := make([]float64, m)
	rm := make([]float64, m)
	for j := 0; j < n; j++ {
		xj := x[j]
		x[j] = xj + h
		residual(rp, x)
		x[j] = xj - h
		residual(rm, x)
		x[j] = xj
		for i := 0; i < m; i++ {
			gradient[i*n+j] = (rp[i] - rm[i]) / (2 * h)
		}
	}
}

func boundaryErrors(surf *Surface, lx, ly, rx, ry []float64) (lmax, rmax, ll2, rl2 float64) {
	n := len(surf.s)
	for i := 0; i < n; i++ {
		xl, yl := surf.LeftBoundary(surf.s[i])
		dl := nearestDist(xl, yl, lx, ly)
		if dl > lmax {
			lmax = dl
		}
		ll2 += dl * dl

		xr, yr := surf.RightBoundary(surf.s[i])
		dr := nearestDist(xr, yr, rx, ry)
		if dr > rmax {
			rmax = dr
		}
		rl2 += dr * dr
	}
	ll2 = math.Sqrt(ll2 / float64(n))
	rl2 = math.Sqrt(rl2 / float64(n))
	return
}
