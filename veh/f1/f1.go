// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package f1 implements the 3-DOF single-track F1 vehicle model
// (limebeer2014f1, spec §4.B): chassis in small-pitch/small-roll
// approximation, controls (delta, throttle, brake_bias), algebraic state
// the four vertical tire loads.
package f1

import (
	"math"

	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

func init() {
	veh.Register(veh.KindF1,
		func(p *veh.Params) veh.Dynamics[ad.F64] { return newModel[ad.F64](p, ad.ConstF64) },
		func(p *veh.Params) veh.Dynamics[ad.Dual] { return newModel[ad.Dual](p, ad.ConstDual) })
}

// control indices into u
const (
	uDelta = 0
	uThrottle = 1
	uBrakeBias = 2
	nu = 3
)

// algebraic state indices: four vertical tire loads
const (
	qaFzFL = 0
	qaFzFR = 1
	qaFzRL = 2
	qaFzRR = 3
	nqa    = 4
)

// Model is the generic F1 3-DOF dynamics, instantiated once over ad.F64 and
// once over ad.Dual (no duplicated formulas between the two paths).
type Model[S ad.Scalar[S]] struct {
	p     *veh.Params
	c     ad.Const[S]
	track *trk.Surface

	// physical parameters, read once at construction via Params.Connect
	mass, izz         float64
	wheelbaseFront    float64 // distance CoM -> front axle
	wheelbaseRear     float64 // distance CoM -> rear axle
	trackWidth        float64
	comHeight         float64
	rollBalance       float64 // fraction of lateral load transfer taken by the front axle
	cd, cl, frontArea float64
	airDensity        float64
	engineForceMax    float64
	brakeForceMax     float64
	tireFront, tireRear veh.TireParams

	// inspectables, valid after the most recent Eval
	lastAx, lastAy       float64
	lastX, lastY, lastPsi float64
	lastTires            []veh.TireState
}

func newModel[S ad.Scalar[S]](p *veh.Params, c ad.Const[S]) *Model[S] {
	m := &Model[S]{p: p, c: c}
	p.Connect(&m.mass, "mass", "total vehicle mass [kg]")
	p.Connect(&m.izz, "izz", "yaw moment of inertia [kg m^2]")
	p.Connect(&m.wheelbaseFront, "wheelbase_front", "CoM to front axle [m]")
	p.Connect(&m.wheelbaseRear, "wheelbase_rear", "CoM to rear axle [m]")
	p.Connect(&m.trackWidth, "track_width", "axle track width [m]")
	p.Connect(&m.comHeight, "com_height", "CoM height [m]")
	p.Connect(&m.rollBalance, "roll_balance", "front fraction of lateral load transfer")
	p.Connect(&m.cd, "aero_cd", "drag coefficient")
	p.Connect(&m.cl, "aero_cl", "downforce coefficient")
	p.Connect(&m.frontArea, "aero_area", "frontal area [m^2]")
	p.Connect(&m.airDensity, "air_density", "air density [kg/m^3]")
	p.Connect(&m.engineForceMax, "engine_force_max", "maximum drive force [N]")
	p.Connect(&m.brakeForceMax, "brake_force_max", "maximum total brake force [N]")
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

func (o *Model[S]) Kind() veh.Kind { return veh.KindF1 }
func (o *Model[S]) NQ() int        { return veh.NBASE }
func (o *Model[S]) NQA() int       { return nqa }
func (o *Model[S]) NU() int        { return nu }
func (o *Model[S]) Params() *veh.Params { return o.p }

func (o *Model[S]) ChangeTrack(t *trk.Surface) { o.track = t }

// Eval implements veh.Dynamics.Eval. dq/ds recovers the curvilinear
// kinematics shared by both models (spec §4.B); q_a residuals enforce
// vertical/roll/pitch equilibrium and the roll-balance split (spec §4.B
// "For the 3-DOF F1: four algebraic vertical-load residuals").
func (o *Model[S]) Eval(q, qa, u []S, s S) (dqds, ra []S, err error) {
	if len(q) != veh.NBASE {
		return nil, nil, errs.New(errs.InputValidation, "f1: q must have length %d, got %d", veh.NBASE, len(q))
	}
	if veh.ITIME+1 != veh.IN {
		return nil, nil, errs.New(errs.Internal, "f1: ITIME+1 != IN invariant violated")
	}
	if o.track == nil {
		return nil, nil, errs.New(errs.InputValidation, "f1: ChangeTrack must be called before Eval")
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

	fzFL, fzFR, fzRL, fzRR := qa[qaFzFL], qa[qaFzFR], qa[qaFzRL], qa[qaFzRR]
	fzFront := fzFL.Add(fzFR)
	fzRear := fzRL.Add(fzRR)

	delta := u[uDelta]
	throttle := u[uThrottle]

	// front/rear slip angles (small-angle bicycle approximation)
	lf, lr := c(o.wheelbaseFront), c(o.wheelbaseRear)
	lambdaF := delta.Sub(vVel.Add(omega.Mul(lf)).Div(uVel))
	lambdaR := vVel.Sub(omega.Mul(lr)).Div(uVel).Neg()

	// longitudinal slip ratio proxy: throttle drives the rear axle; brake_bias
	// and brake_force_max are not used, so no braking force is applied
	kappaRear := throttle.Mul(c(o.engineForceMax)).Div(c(o.tireRear.Cx).Mul(fzRear).Add(c(1e-6)))
	kappaFront := c(0)

	fxF, fyF := veh.TireForces[S](kappaFront, lambdaF, fzFront, o.tireFront, c)
	fxR, fyR := veh.TireForces[S](kappaRear, lambdaR, fzRear, o.tireRear, c)

	// aero drag opposes motion; downforce only feeds the algebraic loads
	speedSq := uVel.Mul(uVel).Add(vVel.Mul(vVel))
	drag := c(0.5 * o.airDensity * o.cd * o.frontArea).Mul(speedSq)

	fxTotal := fxF.Add(fxR).Sub(drag)
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

	// algebraic residuals: static + load-transfer split must match the
	// dynamic front/rear totals and the configured roll-balance coefficient
	downforce := c(0.5 * o.airDensity * o.cl * o.frontArea).Mul(speedSq)
	weight := c(o.mass * 9.81)
	staticFront := weight.Mul(c(o.wheelbaseRear / (o.wheelbaseFront + o.wheelbaseRear)))
	staticRear := weight.Mul(c(o.wheelbaseFront / (o.wheelbaseFront + o.wheelbaseRear)))
	longTransfer := fxTotal.Mul(c(o.comHeight / (o.wheelbaseFront + o.wheelbaseRear)))
	latTransferFront := fyTotal.Mul(c(o.comHeight / o.trackWidth)).Mul(c(o.rollBalance))
	latTransferRear := fyTotal.Mul(c(o.comHeight / o.trackWidth)).Mul(c(1 - o.rollBalance))

	targetFront := staticFront.Sub(longTransfer).Add(downforce.Mul(c(o.wheelbaseRear / (o.wheelbaseFront + o.wheelbaseRear))))
	targetRear := staticRear.Add(longTransfer).Add(downforce.Mul(c(o.wheelbaseFront / (o.wheelbaseFront + o.wheelbaseRear))))

	ra = make([]S, nqa)
	ra[0] = fzFL.Add(fzFR).Sub(targetFront)                 // front vertical equilibrium
	ra[1] = fzRL.Add(fzRR).Sub(targetRear)                  // rear vertical equilibrium
	ra[2] = fzFL.Sub(fzFR).Sub(latTransferFront.Neg().Mul(c(2))) // front roll split
	ra[3] = fzRL.Sub(fzRR).Sub(latTransferRear.Neg().Mul(c(2)))  // rear roll split

	// cache inspectables (only meaningful at the ad.F64 fast-path call site,
	// but harmless/cheap to populate unconditionally via Value())
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

	return dqds, ra, nil
}

func (o *Model[S]) StateBounds() (lo, hi []float64) {
	lo = make([]float64, veh.NBASE)
	hi = make([]float64, veh.NBASE)
	for i := range lo {
		lo[i], hi[i] = math.Inf(-1), math.Inf(1)
	}
	lo[veh.IU], hi[veh.IU] = 5, 120
	lo[veh.IV], hi[veh.IV] = -30, 30
	lo[veh.IOMEGA], hi[veh.IOMEGA] = -5, 5
	lo[veh.IALPHA], hi[veh.IALPHA] = -1.2, 1.2
	return
}

func (o *Model[S]) AlgStateBounds() (lo, hi []float64) {
	lo = []float64{0, 0, 0, 0}
	hi = []float64{1e5, 1e5, 1e5, 1e5}
	return
}

func (o *Model[S]) ControlBounds() (lo, hi []float64) {
	lo = []float64{-0.6, 0, 0}
	hi = []float64{0.6, 1, 1}
	return
}

func (o *Model[S]) ExtraConstraintBounds() (lo, hi []float64) {
	lo = []float64{-1.2, -1.2, -1.2, -1.2}
	hi = []float64{1.2, 1.2, 1.2, 1.2}
	return
}

func (o *Model[S]) ExtraConstraints() []float64 {
	out := make([]float64, 0, len(o.lastTires))
	for _, tr := range o.lastTires {
		out = append(out, tr.Lambda)
	}
	return out
}

func (o *Model[S]) BodyAccel() (ax, ay float64) { return o.lastAx, o.lastAy }
func (o *Model[S]) RoadXYPsi() (x, y, psi float64) { return o.lastX, o.lastY, o.lastPsi }
func (o *Model[S]) TireState() []veh.TireState { return o.lastTires }
