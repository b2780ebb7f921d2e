// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package veh implements vehicle dynamics models evaluated over the road's
// curvilinear arclength coordinate. A model is a callable
//
//	V(q, q_a, u, s) -> (dq/ds, r_a)
//
// instantiated twice per concrete vehicle: once over ad.F64 for forward
// evaluation, once over ad.Dual so the NLP builder (package lap) and the
// steady-state solver can read off a sparse Jacobian from the same formulas
// used for simulation.
package veh

import (
	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/trk"
)

// canonical state indices, shared by every concrete model (spec §3)
const (
	ITIME  = 0 // elapsed time
	IN     = 1 // lateral offset from centerline; must be ITIME+1
	IALPHA = 2 // path-relative yaw
	IU     = 3 // longitudinal body velocity
	IV     = 4 // lateral body velocity
	IOMEGA = 5 // yaw rate
	NBASE  = 6 // number of canonical state entries; concrete models may append more
)

// Kind identifies a concrete vehicle model type; the factory (New, NewDual)
// and the warm-start cache are keyed by it.
type Kind string

const (
	KindF1   Kind = "f1-3dof"
	KindKart Kind = "kart-6dof"
)

// Dynamics is the generic contract every concrete vehicle model satisfies,
// instantiated at S=ad.F64 for fast evaluation and S=ad.Dual when the caller
// needs derivatives recorded (spec §4.A, §4.B).
type Dynamics[S ad.Scalar[S]] interface {
	// Eval computes dq/ds and the algebraic residual r_a (empty if the model
	// has no algebraic state) given state q, algebraic state q_a, control u
	// at arclength s. It updates the model's internal inspectable caches.
	Eval(q, qa, u []S, s S) (dqds, ra []S, err error)

	Kind() Kind
	NQ() int  // cardinality of q
	NQA() int // cardinality of q_a (0 if none)
	NU() int  // cardinality of u

	// ChangeTrack binds the model to a curvilinear reference; may be called
	// repeatedly (spec §4.E)
	ChangeTrack(t *trk.Surface)

	// bounds consumed by the NLP builder (package lap)
	StateBounds() (lo, hi []float64)
	AlgStateBounds() (lo, hi []float64)
	ControlBounds() (lo, hi []float64)

	// tire-health inequality constraints (slip ratio / slip angle magnitude)
	ExtraConstraintBounds() (lo, hi []float64)
	ExtraConstraints() []float64

	// inspectables valid after the most recent Eval call
	BodyAccel() (ax, ay float64)
	RoadXYPsi() (x, y, psi float64)
	TireState() []TireState

	// parameters
	Params() *Params
}

// TireState holds the per-tire quantities exposed after an Eval call
// (spec §4.B "derived inspectables")
type TireState struct {
	Name       string // e.g. "front_axle.left_tire"
	X, Y       float64
	Kappa      float64 // slip ratio
	Lambda     float64 // slip angle
	Fx, Fy     float64
	Dissipation float64
}

// Allocator builds a new, unconfigured model instance of a given kind over
// ad.F64; used by the factory for fast (non-AD) evaluation paths such as
// trajectory recovery in package lap.
type Allocator func(p *Params) Dynamics[ad.F64]

// AllocatorDual mirrors Allocator for the ad.Dual instantiation used by the
// NLP builder.
type AllocatorDual func(p *Params) Dynamics[ad.Dual]

var (
	allocators     = map[Kind]Allocator{}
	allocatorsDual = map[Kind]AllocatorDual{}
)

// Register adds a concrete model's allocators to the factory; called from
// each concrete package's init(), mirroring gofem/ele.SetAllocator and
// gofem/msolid.GetModel's allocator registry.
func Register(k Kind, a Allocator, ad_ AllocatorDual) {
	if _, ok := allocators[k]; ok {
		panic("veh: allocator already registered for " + string(k))
	}
	allocators[k] = a
	allocatorsDual[k] = ad_
}

// New returns a new fast (ad.F64) model instance of the given kind
func New(k Kind, p *Params) (Dynamics[ad.F64], error) {
	a, ok := allocators[k]
	if !ok {
		return nil, notFound(k)
	}
	return a(p), nil
}

// NewDual returns a new AD-recording (ad.Dual) model instance of the given kind
func NewDual(k Kind, p *Params) (Dynamics[ad.Dual], error) {
	a, ok := allocatorsDual[k]
	if !ok {
		return nil, notFound(k)
	}
	return a(p), nil
}

func notFound(k Kind) error {
	return errs.New(errs.LookupMiss, "unknown vehicle type %q; known types are \"f1-3dof\" and \"kart-6dof\"", string(k))
}
