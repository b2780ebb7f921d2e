// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"github.com/jtodevs/racing-line/errs"
	"github.com/jtodevs/racing-line/veh"
)

// WarmStart is a saved primal-dual state for re-injection into a later NLP
// solve (spec §4.F "Seeding" (b)). ZLower/ZUpper/Lambda are carried for
// forward compatibility but are always nil in this build: the vendored
// go-nlopt binding (see DESIGN.md) exposes no accessor for SLSQP's
// bound/equality multipliers, so only the primal trajectory can actually
// be captured and replayed.
type WarmStart struct {
	S      []float64
	Q      [][]float64 // [node][NBASE-1], excludes ITIME -- see Seed.Q
	QA     [][]float64
	U      [][]float64
	ZLower []float64
	ZUpper []float64
	Lambda []float64
}

// warmStarts is process-wide state, one entry per vehicle kind, matching
// the shared-registry convention of veh.allocators: unsynchronized,
// callers are responsible for serializing save/load against a concurrent
// solve (spec §9 "Shared resource").
var warmStarts = map[veh.Kind]*WarmStart{}

// SaveWarmStart stores ws as the current warm start for kind, overwriting
// any previous save (spec §9: "initialized on first save_warm_start,
// overwritten on each subsequent save").
func SaveWarmStart(kind veh.Kind, ws *WarmStart) {
	warmStarts[kind] = ws
}

// LoadWarmStart returns the most recently saved warm start for kind, if any.
func LoadWarmStart(kind veh.Kind) (*WarmStart, bool) {
	ws, ok := warmStarts[kind]
	return ws, ok
}

// CaptureWarmStart builds a WarmStart from a solved Trajectory.
func CaptureWarmStart(traj *Trajectory) *WarmStart {
	n := len(traj.S)
	ws := &WarmStart{
		S:  append([]float64(nil), traj.S...),
		Q:  make([][]float64, n),
		QA: make([][]float64, n),
		U:  make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		free := make([]float64, len(stateFree))
		for k, si := range stateFree {
			free[k] = traj.Q[i][si]
		}
		ws.Q[i] = free
		ws.QA[i] = append([]float64(nil), traj.QA[i]...)
		ws.U[i] = append([]float64(nil), traj.U[i]...)
	}
	return ws
}

// SeedFromWarmStart builds a Seed for NewProblem from a saved warm start,
// validating it has exactly n nodes (spec §4.F: the warm start must match
// the new problem's mesh one-for-one; resampling a mismatched mesh is not
// supported).
func SeedFromWarmStart(ws *WarmStart, n int) (Seed, error) {
	if len(ws.Q) != n || len(ws.QA) != n || len(ws.U) != n {
		return Seed{}, errs.New(errs.InputValidation, "lap: warm start has %d nodes, want %d", len(ws.Q), n)
	}
	return Seed{Q: ws.Q, QA: ws.QA, U: ws.U}, nil
}
