// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trk

import (
	"math"
	"testing"
)

// straightSurface builds a trivial closed "track": a straight line along x
// whose last element wraps back to s=0, enough to exercise interpolation
// plumbing without
// depending on the NLP solver.
func straightSurface(t *testing.T) *Surface {
	n := 8
	length := 80.0
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
		y[i] = 0
		theta[i] = 0
		kappa[i] = 0
		nL[i] = 4
		nR[i] = 4
	}
	surf, err := NewSurface(s, x, y, theta, kappa, nL, nR, true, length)
	if err != nil {
		t.Fatal(err)
	}
	return surf
}

func TestSurfaceInterpolatesStraightLine(t *testing.T) {
	surf := straightSurface(t)
	x, y := surf.Centerline(15.0)
	if math.Abs(x-15.0) > 1e-9 || math.Abs(y) > 1e-9 {
		t.Fatalf("centerline(15)=(%g,%g), want (15,0)", x, y)
	}
	if k := surf.Kappa(15.0); math.Abs(k) > 1e-9 {
		t.Fatalf("kappa=%g, want 0", k)
	}
}

func TestSurfaceWrapsForClosedTrack(t *testing.T) {
	surf := straightSurface(t)
	x1, _ := surf.Centerline(5.0)
	x2, _ := surf.Centerline(85.0) // 85 = 5 + length(80), should wrap
	if math.Abs(x1-x2) > 1e-6 {
		t.Fatalf("wrap mismatch: %g vs %g", x1, x2)
	}
}

func TestSurfaceLateralOffset(t *testing.T) {
	surf := straightSurface(t)
	x, y, psi := surf.XYPsi(10.0, 2.0)
	if math.Abs(x-10.0) > 1e-9 || math.Abs(y-2.0) > 1e-9 {
		t.Fatalf("XYPsi(10,2)=(%g,%g), want (10,2)", x, y)
	}
	if math.Abs(psi) > 1e-9 {
		t.Fatalf("psi=%g, want 0", psi)
	}
}

func TestNewSurfaceRejectsUnsorted(t *testing.T) {
	s := []float64{0, 2, 1, 3}
	arr := []float64{0, 1, 2, 3}
	_, err := NewSurface(s, arr, arr, arr, arr, arr, arr, false, 3)
	if err == nil {
		t.Fatal("expected error for non-increasing s")
	}
}
