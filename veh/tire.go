// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package veh

import "github.com/jtodevs/racing-line/ad"

// TireParams holds the per-tire stiffness/friction constants shared by both
// concrete models (spec §4.B "derived inspectables" are produced from a
// common tire force law regardless of chassis DOF count).
type TireParams struct {
	Cx, Cy   float64 // longitudinal / lateral slip stiffness
	MuX, MuY float64 // longitudinal / lateral friction coefficient
}

// TireForces evaluates a smoothly saturating brush-tire-like force law: the
// raw linear force in each direction is scaled down as the combined slip
// approaches the friction limit, using an algebraic (sqrt-based) saturation
// rather than a branch, since S may be ad.Dual and branching on its value is
// forbidden outside model construction (spec §4.A).
func TireForces[S ad.Scalar[S]](kappa, lambda, fz S, p TireParams, c ad.Const[S]) (fx, fy S) {
	rawFx := c(p.Cx).Mul(kappa).Mul(fz)
	rawFy := c(p.Cy).Mul(lambda).Mul(fz).Neg()

	capX := c(p.MuX).Mul(fz)
	capY := c(p.MuY).Mul(fz)

	magSq := rawFx.Mul(rawFx).Div(capX.Mul(capX).Add(c(1e-9))).
		Add(rawFy.Mul(rawFy).Div(capY.Mul(capY).Add(c(1e-9))))
	denom := c(1.0).Add(magSq).Sqrt()

	fx = rawFx.Div(denom)
	fy = rawFy.Div(denom)
	return
}

// Dissipation returns the frictional power loss of one tire, |Fx*kappa| +
// |Fy*lambda| in the small-slip approximation used throughout this model.
func Dissipation[S ad.Scalar[S]](fx, fy, kappa, lambda S) S {
	return fx.Mul(kappa).Abs().Add(fy.Mul(lambda).Abs())
}
