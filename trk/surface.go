// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trk

import (
	"math"
	"sort"

	"github.com/cpmech/gosl/chk"
)

// Surface wraps the preprocessor's discrete (s, x, y, theta, kappa, nL, nR)
// output (spec §4.D stage 5) behind smooth per-element cubic Hermite
// interpolation (spec §4.E). It is immutable after construction and safely
// shared (read-only) by every vehicle bound to it via veh.Dynamics.ChangeTrack.
type Surface struct {
	Closed bool
	Length float64 // track_length; for closed tracks, s wraps at this value

	s      []float64
	x, y   []float64
	theta  []float64
	kappa  []float64
	nL, nR []float64

	// measured-boundary fit diagnostics, carried through from the
	// preprocessor for reporting (spec §4.D stage 5)
	LeftMaxError, RightMaxError float64
	LeftL2Error, RightL2Error   float64
}

// NewSurface builds a Surface from the preprocessor's materialized arrays.
// All slices must share length n and s must be sorted strictly increasing
// with s[0]=0 (spec §3 invariant).
func NewSurface(s, x, y, theta, kappa, nL, nR []float64, closed bool, length float64) (*Surface, error) {
	n := len(s)
	if n < 2 {
		return nil, chk.Err("trk: surface needs at least 2 nodes, got %d", n)
	}
	for _, arr := range [][]float64{x, y, theta, kappa, nL, nR} {
		if len(arr) != n {
			return nil, chk.Err("trk: all arrays must have length %d", n)
		}
	}
	if s[0] != 0 {
		return nil, chk.Err("trk: s[0] must be 0, got %g", s[0])
	}
	for i := 1; i < n; i++ {
		if s[i] <= s[i-1] {
			return nil, chk.Err("trk: s must be strictly increasing at index %d", i)
		}
	}
	return &Surface{
		Closed: closed, Length: length,
		s: s, x: x, y: y, theta: theta, kappa: kappa, nL: nL, nR: nR,
	}, nil
}

// wrap folds s into [0, Length) for closed tracks, per spec §3 wrap-around
// semantics (s0 ≡ 0, sN ≡ L identified).
func (o *Surface) wrap(s float64) float64 {
	if !o.Closed {
		return s
	}
	s = math.Mod(s, o.Length)
	if s < 0 {
		s += o.Length
	}
	return s
}

// panel locates the element [i, i+1) containing s via binary search over
// the sorted node array (O(log n); the gofem/gosl fork's gm.Bins exposes no
// grounded query API for this 1D case, so a direct search is used instead).
func (o *Surface) panel(s float64) (i int, t float64) {
	n := len(o.s)
	s = o.wrap(s)
	if s <= o.s[0] {
		return 0, 0
	}
	if s >= o.s[n-1] {
		if o.Closed {
			return n - 1, (s - o.s[n-1]) / (o.Length - o.s[n-1])
		}
		return n - 2, 1
	}
	j := sort.SearchFloat64s(o.s, s)
	i = j - 1
	ds := o.s[j] - o.s[i]
	t = (s - o.s[i]) / ds
	return
}

// cubicHermite interpolates value v and slope dv (w.r.t. s) between node i
// and i+1 (or i and 0, wrapping, for the closed-track final panel), using
// the standard Hermite basis on normalized parameter t in [0,1].
func (o *Surface) cubicHermite(vals []float64, i int, t, ds float64) (v, dv float64) {
	n := len(vals)
	i1 := i + 1
	if i1 >= n {
		i1 = 0
	}
	v0, v1 := vals[i], vals[i1]
	// finite-difference slopes at the nodes (central, with one-sided ends)
	m0 := o.nodeSlope(vals, i, ds)
	m1 := o.nodeSlope(vals, i1, ds)

	h00 := 2*t*t*t - 3*t*t + 1
	h10 := t*t*t - 2*t*t + t
	h01 := -2*t*t*t + 3*t*t
	h11 := t*t*t - t*t

	v = h00*v0 + h10*ds*m0 + h01*v1 + h11*ds*m1

	dh00 := 6*t*t - 6*t
	dh10 := 3*t*t - 4*t + 1
	dh01 := -6*t*t + 6*t
	dh11 := 3*t*t - 2*t
	dv = (dh00*v0 + dh10*ds*m0 + dh01*v1 + dh11*ds*m1) / ds
	return
}

func (o *Surface) nodeSlope(vals []float64, i int, ds float64) float64 {
	n := len(vals)
	prev, next := i-1, i+1
	if prev < 0 {
		if o.Closed {
			prev = n - 1
		} else {
			return (vals[1] - vals[0]) / ds
		}
	}
	if next >= n {
		if o.Closed {
			next = 0
		} else {
			return (vals[n-1] - vals[n-2]) / ds
		}
	}
	return (vals[next] - vals[prev]) / (2 * ds)
}

func (o *Surface) elementDs(i int) float64 {
	n := len(o.s)
	if i == n-1 {
		return o.Length - o.s[i]
	}
	return o.s[i+1] - o.s[i]
}

// Kappa returns the interpolated signed curvature at arclength s
func (o *Surface) Kappa(s float64) float64 {
	i, t := o.panel(s)
	v, _ := o.cubicHermite(o.kappa, i, t, o.elementDs(i))
	return v
}

// DKappaDs returns the interpolated d(kappa)/ds at arclength s. No other
// code in this repository calls it.
func (o *Surface) DKappaDs(s float64) float64 {
	i, t := o.panel(s)
	_, dv := o.cubicHermite(o.kappa, i, t, o.elementDs(i))
	return dv
}

// Theta returns the interpolated heading at arclength s
func (o *Surface) Theta(s float64) float64 {
	i, t := o.panel(s)
	v, _ := o.cubicHermite(o.theta, i, t, o.elementDs(i))
	return v
}

// NL returns the interpolated left half-width at arclength s
func (o *Surface) NL(s float64) float64 {
	i, t := o.panel(s)
	v, _ := o.cubicHermite(o.nL, i, t, o.elementDs(i))
	return v
}

// NR returns the interpolated right half-width at arclength s
func (o *Surface) NR(s float64) float64 {
	i, t := o.panel(s)
	v, _ := o.cubicHermite(o.nR, i, t, o.elementDs(i))
	return v
}

// Centerline returns the interpolated centerline point at arclength s
func (o *Surface) Centerline(s float64) (x, y float64) {
	i, t := o.panel(s)
	ds := o.elementDs(i)
	x, _ = o.cubicHermite(o.x, i, t, ds)
	y, _ = o.cubicHermite(o.y, i, t, ds)
	return
}

// XYPsi returns the Cartesian point and heading at arclength s, offset
// laterally by n from the centerline (spec §4.E): the point is shifted
// along the inward normal by n, and heading psi equals the local tangent
// heading theta(s) (no change of orientation with lateral offset).
func (o *Surface) XYPsi(s, n float64) (x, y, psi float64) {
	cx, cy := o.Centerline(s)
	theta := o.Theta(s)
	// left-hand normal is (-sin theta, cos theta); spec §4.D stage 5 uses
	// the same convention for r_left = r_center + nL*(-sin,cos).
	x = cx - n*math.Sin(theta)
	y = cy + n*math.Cos(theta)
	psi = theta
	return
}

// LeftBoundary returns r_left(s) = r_center(s) + nL(s)*(-sin theta, cos theta)
func (o *Surface) LeftBoundary(s float64) (x, y float64) {
	return o.XYPsi(s, o.NL(s))
}

// RightBoundary returns r_right(s) = r_center(s) - nR(s)*(-sin theta, cos theta)
func (o *Surface) RightBoundary(s float64) (x, y float64) {
	return o.XYPsi(s, -o.NR(s))
}

// Nodes exposes the raw discretized arrays (spec §4.D stage 5 output). No
// other code in this repository calls it.
func (o *Surface) Nodes() (s, x, y, theta, kappa, nL, nR []float64) {
	return o.s, o.x, o.y, o.theta, o.kappa, o.nL, o.nR
}
