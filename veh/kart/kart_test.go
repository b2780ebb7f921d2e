// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kart

import (
	"testing"

	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
)

func testParams() *veh.Params {
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

func straightTrack(t *testing.T) *trk.Surface {
	n := 8
	length := 400.0
	s := make([]float64, n)
	x := make([]float64, n)
	y := make([]float64, n)
	theta := make([]float64, n)
	kappa := make([]float64, n)
	nL := make([]float64, n)
	nR := make([]float64, n)
	for i := 0; i < n; i++ {
		s[i] = float64(i) * length / float64(n)
		x[i] = s[i]
		nL[i], nR[i] = 3, 3
	}
	surf, err := trk.NewSurface(s, x, y, theta, kappa, nL, nR, true, length)
	if err != nil {
		t.Fatal(err)
	}
	return surf
}

func TestKartEvalNoAlgebraicState(t *testing.T) {
	p := testParams()
	m, err := veh.New(veh.KindKart, p)
	if err != nil {
		t.Fatal(err)
	}
	if m.NQA() != 0 || m.NU() != 2 {
		t.Fatalf("unexpected cardinalities: NQA=%d NU=%d", m.NQA(), m.NU())
	}
	m.ChangeTrack(straightTrack(t))

	q := make([]ad.F64, veh.NBASE)
	q[veh.IU] = 15
	u := []ad.F64{0.05, 0.4}

	dqds, ra, err := m.Eval(q, nil, u, ad.F64(5))
	if err != nil {
		t.Fatal(err)
	}
	if ra != nil {
		t.Fatalf("expected nil algebraic residual, got %v", ra)
	}
	if float64(dqds[veh.ITIME]) <= 0 {
		t.Fatalf("dt/ds should be positive, got %v", dqds[veh.ITIME])
	}
}

func TestKartOverrideUnknownParamIsLookupMiss(t *testing.T) {
	p := testParams()
	if err := p.Override("brake-bias", 0.5); err == nil || !errs.Is(err, errs.LookupMiss) {
		t.Fatalf("expected LookupMiss for a parameter the kart model never declares, got %v", err)
	}
}
