// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import "sort"

// stateFree lists the q indices that are free decision variables; ITIME is
// excluded because it is recovered after the solve by trapezoidal
// quadrature of dtime/ds (spec §4.G), never itself a decision variable.
var stateFree = []int{1, 2, 3, 4, 5} // IN, IALPHA, IU, IV, IOMEGA

// layout maps (node, local-field) pairs onto positions in the flat NLOPT
// decision vector. The state/algebraic block is one contiguous run per
// node (mirroring trk.preprocess's per-node variable block); the control
// block follows, one sub-run per control channel sized by its ControlMode.
type layout struct {
	n, nqa, nu int
	specs      []ControlSpec

	stateBlockSize int // nqa + len(stateFree), per node
	controlStart   []int
	controlCount   []int
	controlBreak   [][]int // per hypermesh control: one zero entry per node; never filled or read
	total          int
}

func newLayout(n, nqa, nu int, specs []ControlSpec) *layout {
	l := &layout{n: n, nqa: nqa, nu: nu, specs: specs}
	l.stateBlockSize = len(stateFree) + nqa
	base := n * l.stateBlockSize

	l.controlStart = make([]int, nu)
	l.controlCount = make([]int, nu)
	l.controlBreak = make([][]int, nu)
	for c := 0; c < nu; c++ {
		spec := specs[c]
		switch spec.Mode {
		case DontOptimize:
			l.controlStart[c], l.controlCount[c] = -1, 0
		case FullMesh:
			l.controlStart[c] = base
			l.controlCount[c] = n
			base += n
		case HyperMesh:
			l.controlStart[c] = base
			l.controlCount[c] = len(spec.Breakpoints)
			base += len(spec.Breakpoints)
			l.controlBreak[c] = make([]int, n)
		}
	}
	l.total = base
	return l
}

// stateIdx returns the flat index of q[node][stateFree position k] for
// k in [0, len(stateFree)).
func (l *layout) stateIdx(node, k int) int {
	return node*l.stateBlockSize + k
}

// algIdx returns the flat index of qa[node][k] for k in [0, nqa).
func (l *layout) algIdx(node, k int) int {
	return node*l.stateBlockSize + len(stateFree) + k
}

// controlIdx returns the flat index controlling u[node][c], or -1 if c is
// DontOptimize at this node (its value comes from the seed, not x).
func (l *layout) controlIdx(node, c int, trackS []float64) int {
	switch l.specs[c].Mode {
	case DontOptimize:
		return -1
	case FullMesh:
		return l.controlStart[c] + node
	case HyperMesh:
		bp := l.specs[c].Breakpoints
		j := sort.SearchFloat64s(bp, trackS[node])
		if j >= len(bp) {
			j = len(bp) - 1
		} else if j > 0 && bp[j] != trackS[node] {
			j--
		}
		return l.controlStart[c] + j
	}
	return -1
}
