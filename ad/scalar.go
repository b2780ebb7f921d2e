// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package ad implements the dual-number arithmetic bridge that lets the
// vehicle dynamics model (package veh) be evaluated either as plain
// float64 or as a differentiable closure suitable for sparse forward-mode
// Jacobian extraction by the NLP builder (package lap).
package ad

import "math"

// Scalar is the capability set the dynamics equations dispatch through.
// Two instantiations exist: F64 (fast evaluation) and Dual (records
// derivatives w.r.t. a set of tagged decision-variable indices).
//
// Branching on the result of a Scalar method is forbidden inside dynamics
// code. Inside a model's Eval, Value() is used only where no branch depends
// on it: to read track geometry at the arclength s (never a decision
// variable) and to fill the float64 inspectable caches.
type Scalar[S any] interface {
	Add(S) S
	Sub(S) S
	Mul(S) S
	Div(S) S
	Neg() S
	Sin() S
	Cos() S
	Atan2(S) S
	Sqrt() S
	Abs() S
	Value() float64
}

// Const builds a constant of the given scalar flavour from a float64.
// Implemented per-type below (F64, Dual) since Go generics cannot express
// "construct a T from a float64" without a factory function.
type Const[S any] func(float64) S

// F64 is the fast, non-differentiable scalar used for plain forward
// evaluation (trajectory recovery and the tire-health rows in package lap).
type F64 float64

// ConstF64 builds an F64 constant
func ConstF64(v float64) F64 { return F64(v) }

func (x F64) Add(y F64) F64   { return x + y }
func (x F64) Sub(y F64) F64   { return x - y }
func (x F64) Mul(y F64) F64   { return x * y }
func (x F64) Div(y F64) F64   { return x / y }
func (x F64) Neg() F64        { return -x }
func (x F64) Sin() F64        { return F64(math.Sin(float64(x))) }
func (x F64) Cos() F64        { return F64(math.Cos(float64(x))) }
func (x F64) Atan2(y F64) F64 { return F64(math.Atan2(float64(x), float64(y))) }
func (x F64) Sqrt() F64       { return F64(math.Sqrt(float64(x))) }
func (x F64) Abs() F64        { return F64(math.Abs(float64(x))) }
func (x F64) Value() float64  { return float64(x) }

// Dual is a forward-mode dual number: a value plus a sparse gradient with
// respect to a fixed-size vector of decision-variable indices. Building the
// gradient as a map rather than a dense vector keeps per-node evaluation
// cheap when only a handful of variables (this node's q, q_a, u) affect the
// result, which is the common case in the trapezoidal collocation of §4.F.
type Dual struct {
	V    float64         // value
	Grad map[int]float64 // ∂V/∂x_i, sparse
}

// ConstDual builds a Dual with zero gradient (a numeric literal inside the
// dynamics, e.g. "2.0")
func ConstDual(v float64) Dual { return Dual{V: v} }

// Var builds a Dual seeded as an independent decision variable at index idx
func Var(v float64, idx int) Dual {
	return Dual{V: v, Grad: map[int]float64{idx: 1}}
}

func mergeGrad(f func(a, b float64) float64, ag, bg map[int]float64) map[int]float64 {
	if len(ag) == 0 && len(bg) == 0 {
		return nil
	}
	out := make(map[int]float64, len(ag)+len(bg))
	for i, a := range ag {
		out[i] = f(a, bg[i])
	}
	for i, b := range bg {
		if _, ok := ag[i]; !ok {
			out[i] = f(0, b)
		}
	}
	return out
}

func scaleGrad(g map[int]float64, s float64) map[int]float64 {
	if len(g) == 0 {
		return nil
	}
	out := make(map[int]float64, len(g))
	for i, v := range g {
		out[i] = v * s
	}
	return out
}

func (x Dual) Add(y Dual) Dual {
	return Dual{V: x.V + y.V, Grad: mergeGrad(func(a, b float64) float64 { return a + b }, x.Grad, y.Grad)}
}

func (x Dual) Sub(y Dual) Dual {
	return Dual{V: x.V - y.V, Grad: mergeGrad(func(a, b float64) float64 { return a - b }, x.Grad, y.Grad)}
}

func (x Dual) Mul(y Dual) Dual {
	// d(xy) = y dx + x dy
	out := mergeGrad(func(a, b float64) float64 { return a*y.V + b*x.V }, x.Grad, y.Grad)
	return Dual{V: x.V * y.V, Grad: out}
}

func (x Dual) Div(y Dual) Dual {
	// d(x/y) = (y dx - x dy) / y^2
	inv := 1 / (y.V * y.V)
	out := mergeGrad(func(a, b float64) float64 { return (a*y.V - b*x.V) * inv }, x.Grad, y.Grad)
	return Dual{V: x.V / y.V, Grad: out}
}

func (x Dual) Neg() Dual { return Dual{V: -x.V, Grad: scaleGrad(x.Grad, -1)} }

func (x Dual) Sin() Dual { return Dual{V: math.Sin(x.V), Grad: scaleGrad(x.Grad, math.Cos(x.V))} }

func (x Dual) Cos() Dual { return Dual{V: math.Cos(x.V), Grad: scaleGrad(x.Grad, -math.Sin(x.V))} }

func (x Dual) Atan2(y Dual) Dual {
	denom := x.V*x.V + y.V*y.V
	// d(atan2(x,y)) = (y dx - x dy) / (x^2+y^2)
	out := mergeGrad(func(a, b float64) float64 { return (y.V*a - x.V*b) / denom }, x.Grad, y.Grad)
	return Dual{V: math.Atan2(x.V, y.V), Grad: out}
}

func (x Dual) Sqrt() Dual {
	r := math.Sqrt(x.V)
	return Dual{V: r, Grad: scaleGrad(x.Grad, 0.5/r)}
}

func (x Dual) Abs() Dual {
	s := 1.0
	if x.V < 0 {
		s = -1.0
	}
	return Dual{V: math.Abs(x.V), Grad: scaleGrad(x.Grad, s)}
}

func (x Dual) Value() float64 { return x.V }

// Partial returns ∂x/∂i, zero if x does not depend on variable i
func (x Dual) Partial(i int) float64 { return x.Grad[i] }
