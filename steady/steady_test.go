// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package steady

import (
	"math"
	"testing"

	"github.com/jtodevs/racing-line/veh"
	_ "github.com/jtodevs/racing-line/veh/kart"
)

func kartParams() *veh.Params {
	p := veh.NewParams()
	p.DeclareConstant("chassis/mass", "mass", 150.0)
	p.DeclareConstant("chassis/izz", "izz", 60.0)
	p.DeclareConstant("chassis/wheelbase_front", "wheelbase_front", 0.6)
	p.DeclareConstant("chassis/wheelbase_rear", "wheelbase_rear", 0.6)
	p.DeclareConstant("chassis/track_width", "track_width", 1.1)
	p.DeclareConstant("chassis/com_height", "com_height", 0.2)
	p.DeclareConstant("wheel/radius", "wheel_radius", 0.139)
	p.DeclareConstant("tyres/front/cx", "tire_front_cx", 8000.0)
	p.DeclareConstant("tyres/front/cy", "tire_front_cy", 25000.0)
	p.DeclareConstant("tyres/front/mux", "tire_front_mux", 1.3)
	p.DeclareConstant("tyres/front/muy", "tire_front_muy", 1.3)
	p.DeclareConstant("tyres/rear/cx", "tire_rear_cx", 8000.0)
	p.DeclareConstant("tyres/rear/cy", "tire_rear_cy", 25000.0)
	p.DeclareConstant("tyres/rear/mux", "tire_rear_mux", 1.3)
	p.DeclareConstant("tyres/rear/muy", "tire_rear_muy", 1.3)
	return p
}

func TestSolveStraightLineHasNearZeroSlip(t *testing.T) {
	m, err := veh.NewDual(veh.KindKart, kartParams())
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Solve(m, Target{Speed: 15, Ax: 0, Ay: 0}, []float64{0, 0.2}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pt.VLat) > 1e-4 || math.Abs(pt.Omega) > 1e-4 {
		t.Fatalf("expected near-zero slip/yaw-rate on a straight line, got VLat=%v Omega=%v", pt.VLat, pt.Omega)
	}
	if pt.ResNorm >= 1e-6 {
		t.Fatalf("residual did not converge: %v", pt.ResNorm)
	}
}

func TestSolveCorneringProducesNonzeroYawRate(t *testing.T) {
	m, err := veh.NewDual(veh.KindKart, kartParams())
	if err != nil {
		t.Fatal(err)
	}
	pt, err := Solve(m, Target{Speed: 12, Ax: 0, Ay: 4}, []float64{0.05, 0.1}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pt.Omega) < 1e-3 {
		t.Fatalf("expected a non-negligible yaw rate for a nonzero lateral acceleration target, got %v", pt.Omega)
	}
	if pt.ResNorm >= 1e-6 {
		t.Fatalf("residual did not converge: %v", pt.ResNorm)
	}
}

func TestSweepGGSkipsDivergentPoints(t *testing.T) {
	m, err := veh.NewDual(veh.KindKart, kartParams())
	if err != nil {
		t.Fatal(err)
	}
	samples := SweepGG(m, 12, -20, 20, 9, []float64{0, 0.1}, Options{})
	if len(samples) == 0 {
		t.Fatal("expected at least some converged samples")
	}
	for _, s := range samples {
		if math.Abs(s.Point.Target.Ay-s.Ay) > 1e-9 {
			t.Fatalf("sample Ay mismatch: %v vs %v", s.Point.Target.Ay, s.Ay)
		}
	}
}
