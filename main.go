// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/mpi"
	"github.com/cpmech/gosl/utl"

	"github.com/jtodevs/racing-line/lap"
	"github.com/jtodevs/racing-line/sim"
	"github.com/jtodevs/racing-line/simcfg"

	_ "github.com/jtodevs/racing-line/veh/f1"
	_ "github.com/jtodevs/racing-line/veh/kart"
)

func main() {

	verbose := true

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			if mpi.Rank() == 0 {
				chk.Verbose = true
				for i := 8; i > 3; i-- {
					chk.CallerInfo(i)
				}
				io.PfRed("ERROR: %v\n", err)
			}
		}
		mpi.Stop(false)
	}()
	mpi.Start(false)

	// message
	if mpi.Rank() == 0 {
		io.PfWhite("\nracing-line -- optimal laptime and gg-diagram solver\n\n")
		io.Pf("Copyright 2016 The Gofem Authors. All rights reserved.\n")
		io.Pf("Use of this source code is governed by a BSD-style\n")
		io.Pf("license that can be found in the LICENSE file.\n\n")
	}

	// scenario filenamepath
	verboseFlag := flag.Bool("v", true, "print progress messages")
	flag.Parse()
	verbose = *verboseFlag
	var fnamepath string
	if len(flag.Args()) > 0 {
		fnamepath = flag.Arg(0)
	} else {
		chk.Panic("Please, provide a scenario filename. Ex.: track.scenario.json")
	}

	// profiling?
	defer utl.DoProf(false)()

	sc, err := simcfg.ReadScenario(fnamepath)
	if err != nil {
		chk.Panic("%v", err)
	}

	sess, err := sim.NewSession(sc, verbose && mpi.Rank() == 0)
	if err != nil {
		chk.Panic("%v", err)
	}

	// a gg-diagram request under MPI with more than one rank is swept in
	// parallel (SPEC_FULL.md §3 item 1) instead of through Session.Run's
	// serial lap.GGDiagram, since each sample is an independent steady-state
	// boundary search with no data dependency on its neighbors beyond the
	// warm-start guess, which a distributed sweep simply forgoes.
	if sc.GG != nil && mpi.IsOn() && mpi.Size() > 1 {
		if err := runGGBatch(sess); err != nil {
			chk.Panic("%v", err)
		}
		sc.GG = nil // Session.Run must not also sweep it serially
	}

	if err := sess.Run(); err != nil {
		chk.Panic("%v", err)
	}
}

// ggStride is the number of float64 slots packed per gg-diagram sample in
// runGGBatch's reduction buffer: Ay, AxMax, AxMin, HasAxMax, HasAxMin (the
// two bool fields stored as 0/1).
const ggStride = 5

// runGGBatch sweeps the scenario's gg-diagram across MPI ranks: each rank
// computes only the sample indices it owns (i % mpi.Size() == mpi.Rank()),
// packing its results into a buffer that is zero everywhere else, then
// merges every rank's buffer with mpi.AllReduceSum. The indices owned by
// distinct ranks never overlap, so summing the zero-padded buffers
// reconstructs the full sweep without any gather/broadcast primitive.
func runGGBatch(sess *sim.Session) error {
	gg := sess.Scenario.GG
	n := gg.NPoints
	if n < 2 {
		n = 2
	}

	m, err := sess.BuildModel()
	if err != nil {
		return err
	}

	rank, size := mpi.Rank(), mpi.Size()
	guess := make([]float64, m.NU())
	local := make([]float64, n*ggStride)
	for i := rank; i < n; i += size {
		ay := lap.AyAt(gg.AyBound, n, i)
		pt, next := lap.GGSample(m, gg.Speed, ay, gg.AxBound, guess, sess.Scenario.Steady)
		guess = next
		packGGPoint(local, i, pt)
	}

	merged := make([]float64, n*ggStride)
	scratch := make([]float64, n*ggStride)
	copy(merged, local)
	mpi.AllReduceSum(merged, scratch)

	points := make([]lap.GGPoint, n)
	for i := 0; i < n; i++ {
		points[i] = unpackGGPoint(merged, i)
	}
	sess.GG = points

	if rank == 0 && sess.ShowMsg {
		io.Pf("> GG-diagram swept across %d ranks, %d samples\n", size, n)
	}
	return nil
}

func packGGPoint(buf []float64, i int, pt lap.GGPoint) {
	off := i * ggStride
	buf[off+0] = pt.Ay
	buf[off+1] = pt.AxMax
	buf[off+2] = pt.AxMin
	if pt.HasAxMax {
		buf[off+3] = 1
	}
	if pt.HasAxMin {
		buf[off+4] = 1
	}
}

func unpackGGPoint(buf []float64, i int) lap.GGPoint {
	off := i * ggStride
	return lap.GGPoint{
		Ay:       buf[off+0],
		AxMax:    buf[off+1],
		AxMin:    buf[off+2],
		HasAxMax: buf[off+3] != 0,
		HasAxMin: buf[off+4] != 0,
	}
}
