// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package kart implements the 6-DOF kart vehicle model (lot2016kart,
// spec §4.B): controls (delta, rear_torque), no algebraic state, default
// is_direct = false.
package kart

import (
	"math"

	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

func init() {
	veh.Register(veh.KindKart,
		func(p *veh.Params) veh.Dynamics[ad.F64] { return newModel[ad.F64](p, ad.ConstF64) },
		func(p *veh.Params) veh.Dynamics[ad.Dual] { return newModel[ad.Dual](p, ad.ConstDual) })
}

const (
	uDelta      = 0
	uRearTorque = 1
	nu          = 2
)

// Model is the generic kart dynamics, instantiated over ad.F64 and ad.Dual.
// Unlike f1.Model it has no algebraic state: each axle's vertical load is its
// static share of the weight (split by wheelbase), and no longitudinal or
// lateral load transfer is modelled.
type Model[S ad.Scalar[S]] struct {
	p     *veh.Params
	c     ad.Const[S]
	track *trk.Surface

	mass, izz      float64
	wheelbaseFront float64
	wheelbaseRear  float64
	trackWidth     float64
	comHeight      float64
	wheelRadius    float64
	tireFront, tireRear veh.TireParams

	lastAx, lastAy        float64
	lastX, lastY, lastPsi float64
	lastTires             []veh.TireState
}

func newModel[S ad.Scalar[S]](p *veh.Params, c ad.Const[S]) *Model[S] {
	m := &Model[S]{p: p, c: c}
	p.Connect(&m.mass, "mass", "total vehicle mass [kg]")
	p.Connect(&m.izz, "izz", "yaw moment of inertia [kg m^2]")
	p.Connect(&m.wheelbaseFront, "wheelbase_front", "CoM to front axle [m]")
	p.Connect(&m.wheelbaseRear, "wheelbase_rear", "CoM to rear axle [m]")
	p.Connect(&m.trackWidth, "track_width", "axle track width [m]")
	p.Connect(&m.comHeight, "com_height", "CoM height [m]")
	p.Connect(&m.wheelRadius, "wheel_radius", "rear wheel rolling radius [m]")
	p.Connect(&m.tireFront.Cx, "tire_front_cx", "front longitudinal slip stiffness")
	p.Connect(&m.tireFront.Cy, "tire_front_cy", "front lateral slip stiffness")
	p.Connect(&m.tireFront.MuX, "tire_front_mux", "front longitudinal friction coefficient")
	p.Connect(&m.tireFront.MuY, "tire_front_muy", "front lateral friction coefficient")
	p.Connect(&m.tireRear.Cx, "tire_rear_cx", "rear longitudinal slip stiffness")
	p.Connect(&m.tireRear.Cy, "tire_rear_cy", "rear lateral slip stiffness")
	p.Connect(&m.tireRear.MuX, "tire_rear_mux", "rear longitudinal friction coefficient")
	p.Connect(&m.tireRear.MuY, "tire_rear_muy", "rear lateral friction coefficient")
	return m
}

func (o *Model[S]) Kind() veh.Kind      { return veh.KindKart }
func (o *Model[S]) NQ() int             { return veh.NBASE }
func (o *Model[S]) NQA() int            { return 0 }
func (o *Model[S]) NU() int             { return nu }
func (o *Model[S]) Params() *veh.Params { return o.p }

func (o *Model[S]) ChangeTrack(t *trk.Surface) { o.track = t }

func (o *Model[S]) Eval(q, qa, u []S, s S) (dqds, ra []S, err error) {
	if len(q) != veh.NBASE {
		return nil, nil, errs.New(errs.InputValidation, "kart: q must have length %d, got %d", veh.NBASE, len(q))
	}
	if veh.ITIME+1 != veh.IN {
		return nil, nil, errs.New(errs.Internal, "kart: ITIME+1 != IN invariant violated")
	}
	if o.track == nil {
		return nil, nil, errs.New(errs.InputValidation, "kart: ChangeTrack must be called before Eval")
	}

	c := o.c
	uVel, vVel, omega := q[veh.IU], q[veh.IV], q[veh.IOMEGA]
	alpha, n := q[veh.IALPHA], q[veh.IN]

	kappaTrack := c(o.track.Kappa(s.Value()))
	cosA, sinA := alpha.Cos(), alpha.Sin()
	oneMinusNK := c(1).Sub(n.Mul(kappaTrack))
	speedAlongPath := uVel.Mul(cosA).Sub(vVel.Mul(sinA))
	dtds := oneMinusNK.Div(speedAlongPath)

	dnds := uVel.Mul(sinA).Add(vVel.Mul(cosA)).Mul(dtds)
	dalphads := omega.Mul(dtds).Sub(kappaTrack)

	lf, lr := c(o.wheelbaseFront), c(o.wheelbaseRear)
	delta := u[uDelta]
	rearTorque := u[uRearTorque]

	lambdaF := delta.Sub(vVel.Add(omega.Mul(lf)).Div(uVel))
	lambdaR := vVel.Sub(omega.Mul(lr)).Div(uVel).Neg()
	kappaRear := rearTorque.Div(c(o.wheelRadius)).Div(c(o.tireRear.Cx).Add(c(1e-6)))
	kappaFront := c(0)

	weight := c(o.mass * 9.81)
	staticFront := weight.Mul(c(o.wheelbaseRear / (o.wheelbaseFront + o.wheelbaseRear)))
	staticRear := weight.Mul(c(o.wheelbaseFront / (o.wheelbaseFront + o.wheelbaseRear)))

	fxF, fyF := veh.TireForces[S](kappaFront, lambdaF, staticFront, o.tireFront, c)
	fxR, fyR := veh.TireForces[S](kappaRear, lambdaR, staticRear, o.tireRear, c)

	fxTotal := fxF.Add(fxR)
	fyTotal := fyF.Add(fyR)
	mzTotal := fyF.Mul(lf).Sub(fyR.Mul(lr))

	duDt := fxTotal.Div(c(o.mass)).Add(vVel.Mul(omega))
	dvDt := fyTotal.Div(c(o.mass)).Sub(uVel.Mul(omega))
	dOmegaDt := mzTotal.Div(c(o.izz))

	dqds = make([]S, veh.NBASE)
	dqds[veh.ITIME] = dtds
	dqds[veh.IN] = dnds
	dqds[veh.IALPHA] = dalphads
	dqds[veh.IU] = duDt.Mul(dtds)
	dqds[veh.IV] = dvDt.Mul(dtds)
	dqds[veh.IOMEGA] = dOmegaDt.Mul(dtds)

	o.lastAx = fxTotal.Div(c(o.mass)).Value()
	o.lastAy = fyTotal.Div(c(o.mass)).Value()
	x, y, psi := o.track.XYPsi(s.Value(), n.Value())
	o.lastX, o.lastY, o.lastPsi = x, y, psi
	o.lastTires = []veh.TireState{
		{Name: "front_axle.left_tire", Kappa: kappaFront.Value(), Lambda: lambdaF.Value(), Fx: fxF.Value() / 2, Fy: fyF.Value() / 2},
		{Name: "front_axle.right_tire", Kappa: kappaFront.Value(), Lambda: lambdaF.Value(), Fx: fxF.Value() / 2, Fy: fyF.Value() / 2},
		{Name: "rear_axle.left_tire", Kappa: kappaRear.Value(), Lambda: lambdaR.Value(), Fx: fxR.Value() / 2, Fy: fyR.Value() / 2},
		{Name: "rear_axle.right_tire", Kappa: kappaRear.Value(), Lambda: lambdaR.Value(), Fx: fxR.Value() / 2, Fy: fyR.Value() / 2},
	}

	return dqds, nil, nil
}

func (o *Model[S]) StateBounds() (lo, hi []float64) {
	lo = make([]float64, veh.NBASE)
	hi = make([]float64, veh.NBASE)
	for i := range lo {
		lo[i], hi[i] = math.Inf(-1), math.Inf(1)
	}
	lo[veh.IU], hi[veh.IU] = 2, 40
	lo[veh.IV], hi[veh.IV] = -15, 15
	lo[veh.IOMEGA], hi[veh.IOMEGA] = -4, 4
	lo[veh.IALPHA], hi[veh.IALPHA] = -1.2, 1.2
	return
}

func (o *Model[S]) AlgStateBounds() (lo, hi []float64) { return nil, nil }

func (o *Model[S]) ControlBounds() (lo, hi []float64) {
	lo = []float64{-0.5, -1}
	hi = []float64{0.5, 1}
	return
}

func (o *Model[S]) ExtraConstraintBounds() (lo, hi []float64) {
	lo = []float64{-1.2, -1.2}
	hi = []float64{1.2, 1.2}
	return
}

func (o *Model[S]) ExtraConstraints() []float64 {
	out := make([]float64, 0, 2)
	if len(o.lastTires) >= 3 {
		out = append(out, o.lastTires[0].Lambda, o.lastTires[2].Lambda)
	}
	return out
}

func (o *Model[S]) BodyAccel() (ax, ay float64)    { return o.lastAx, o.lastAy }
func (o *Model[S]) RoadXYPsi() (x, y, psi float64) { return o.lastX, o.lastY, o.lastPsi }
func (o *Model[S]) TireState() []veh.TireState     { return o.lastTires }
