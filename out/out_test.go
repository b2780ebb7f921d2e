// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package out

import "testing"

func TestTableAccumulation(t *testing.T) {
	tbl := NewTable("lap1/")
	tbl.Set("x", 1.0)
	tbl.Set("x", 2.0)
	tbl.Set("y", 5.0)
	tbl.SetDerivative("laptime", "mass", -0.02)

	if got := tbl.Get("x"); len(got) != 2 || got[0] != 1.0 || got[1] != 2.0 {
		t.Fatalf("unexpected x series: %v", got)
	}
	if got := tbl.Last("y"); got != 5.0 {
		t.Fatalf("Last(y)=%v, want 5.0", got)
	}
	names := tbl.SortedNames()
	found := false
	for _, n := range names {
		if n == "lap1/derivatives/laptime/mass" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing derivative column in %v", names)
	}
}

func TestTireOutputName(t *testing.T) {
	got := TireOutputName("front_axle", "left", "kappa")
	want := "front_axle.left_tire.kappa"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTrajectoryXMLRoundTrip(t *testing.T) {
	s := []float64{0, 1, 2}
	q := [][]float64{{0, 0, 0}, {1, 0.1, 0.2}, {2, 0.2, 0.4}}
	qa := [][]float64{{10}, {11}, {12}}
	u := [][]float64{{0, 0}, {0.1, 0.5}, {0.2, 0.6}}

	doc, err := WriteTrajectoryXML("f1-3dof", 42.5, s, q, qa, u)
	if err != nil {
		t.Fatal(err)
	}

	kind, laptime, s2, q2, qa2, u2, err := ReadTrajectoryXML([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if kind != "f1-3dof" || laptime != 42.5 {
		t.Fatalf("kind/laptime mismatch: %v %v", kind, laptime)
	}
	if len(s2) != len(s) {
		t.Fatalf("s length mismatch: %d vs %d", len(s2), len(s))
	}
	for i := range s {
		if s2[i] != s[i] {
			t.Fatalf("s[%d] mismatch: %v vs %v", i, s2[i], s[i])
		}
		for j := range q[i] {
			if q2[i][j] != q[i][j] {
				t.Fatalf("q[%d][%d] mismatch: %v vs %v", i, j, q2[i][j], q[i][j])
			}
		}
		for j := range u[i] {
			if u2[i][j] != u[i][j] {
				t.Fatalf("u[%d][%d] mismatch: %v vs %v", i, j, u2[i][j], u[i][j])
			}
		}
		for j := range qa[i] {
			if qa2[i][j] != qa[i][j] {
				t.Fatalf("qa[%d][%d] mismatch: %v vs %v", i, j, qa2[i][j], qa[i][j])
			}
		}
	}
}
