// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"math"
	"testing"

	"github.com/jtodevs/racing-line/steady"
	"github.com/jtodevs/racing-line/veh"
)

func TestGGDiagramSweepShapeAndBounds(t *testing.T) {
	p := kartParams()
	m, err := veh.NewDual(veh.KindKart, p)
	if err != nil {
		t.Fatal(err)
	}

	n := 7
	ayBound, axBound := 6.0, 6.0
	points := GGDiagram(m, 15, ayBound, axBound, n, []float64{0, 0}, steady.Options{})

	if len(points) != n {
		t.Fatalf("len(points)=%d, want %d", len(points), n)
	}
	if math.Abs(points[0].Ay-(-ayBound)) > 1e-9 {
		t.Fatalf("first sample Ay=%v, want %v", points[0].Ay, -ayBound)
	}
	if math.Abs(points[n-1].Ay-ayBound) > 1e-9 {
		t.Fatalf("last sample Ay=%v, want %v", points[n-1].Ay, ayBound)
	}
	for i := 1; i < n; i++ {
		if points[i].Ay <= points[i-1].Ay {
			t.Fatalf("Ay must be strictly increasing, got %v then %v", points[i-1].Ay, points[i].Ay)
		}
	}
	for _, pt := range points {
		if pt.HasAxMax && (pt.AxMax < 0 || pt.AxMax > axBound+1e-9) {
			t.Fatalf("ay=%v: AxMax=%v out of [0, %v]", pt.Ay, pt.AxMax, axBound)
		}
		if pt.HasAxMin && (pt.AxMin > 0 || pt.AxMin < -axBound-1e-9) {
			t.Fatalf("ay=%v: AxMin=%v out of [-%v, 0]", pt.Ay, pt.AxMin, axBound)
		}
	}
}

func TestSearchBoundaryReturnsZeroWhenNothingConverges(t *testing.T) {
	p := kartParams()
	m, err := veh.NewDual(veh.KindKart, p)
	if err != nil {
		t.Fatal(err)
	}
	// A wildly infeasible lateral target (far beyond grip) should fail to
	// converge even at ax=target/coarseSteps, the first point tried.
	ax, controls, ok := searchBoundary(m, 15, 1e6, 10, []float64{0, 0}, steady.Options{})
	if ok || ax != 0 {
		t.Fatalf("expected no feasible point and ax=0, got ok=%v ax=%v controls=%v", ok, ax, controls)
	}
}
