// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package trk implements the track preprocessor (spec §4.D) and curvilinear
// surface (spec §4.E): turning raw geodetic boundary polylines into a
// smooth, arclength-parameterized reference frame that a vehicle dynamics
// model (package veh) can query.
package trk

import "math"

// REarth is the equirectangular-projection Earth radius used to flatten
// geodetic coordinates to a local tangent plane (spec §3)
const REarth = 6378388.0

// LonLat is one raw geodetic boundary sample
type LonLat struct {
	Lon, Lat float64 // degrees
}

// Projection holds the equirectangular flattening origin and reference
// parallel, stored on Track so the mapping can be repeated or inverted
// later (spec §3 "projection metadata (x0,y0,phi0,theta0,phi_ref)")
type Projection struct {
	Lon0, Lat0 float64 // degrees, chosen as the mean of the input polyline
	LatRef     float64 // degrees, reference parallel for the cosine scale factor
}

// NewProjection chooses (lon0, lat0) as the mean of every point across both
// boundaries, and latRef = lat0, per spec §4.D stage 1.
func NewProjection(left, right []LonLat) Projection {
	var sumLon, sumLat float64
	n := 0
	for _, p := range left {
		sumLon += p.Lon
		sumLat += p.Lat
		n++
	}
	for _, p := range right {
		sumLon += p.Lon
		sumLat += p.Lat
		n++
	}
	if n == 0 {
		return Projection{}
	}
	lon0 := sumLon / float64(n)
	lat0 := sumLat / float64(n)
	return Projection{Lon0: lon0, Lat0: lat0, LatRef: lat0}
}

// Flatten maps one geodetic point to local planar (x, y) meters:
//
//	x = R_earth * cos(latRef) * (lon - lon0)
//	y = R_earth * (lat - lat0)
//
// with angles in radians, per spec §3.
func (p Projection) Flatten(pt LonLat) (x, y float64) {
	phiRef := p.LatRef * math.Pi / 180
	dLon := (pt.Lon - p.Lon0) * math.Pi / 180
	dLat := (pt.Lat - p.Lat0) * math.Pi / 180
	x = REarth * math.Cos(phiRef) * dLon
	y = REarth * dLat
	return
}

// FlattenAll maps a whole boundary polyline
func (p Projection) FlattenAll(pts []LonLat) (xs, ys []float64) {
	xs = make([]float64, len(pts))
	ys = make([]float64, len(pts))
	for i, pt := range pts {
		xs[i], ys[i] = p.Flatten(pt)
	}
	return
}

// Unflatten is the inverse of Flatten, used only for diagnostics/round-trip
// checks; the core never needs to re-emit geodetic coordinates.
func (p Projection) Unflatten(x, y float64) LonLat {
	phiRef := p.LatRef * math.Pi / 180
	lon := p.Lon0 + (x/(REarth*math.Cos(phiRef)))*180/math.Pi
	lat := p.Lat0 + (y/REarth)*180/math.Pi
	return LonLat{Lon: lon, Lat: lat}
}

// orientBoundary reverses pts in place when clockwise is true, so that
// traversal of both boundaries is counterclockwise (spec §4.D stage 2).
func orientBoundary(xs, ys []float64, clockwise bool) {
	if !clockwise {
		return
	}
	n := len(xs)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
		ys[i], ys[j] = ys[j], ys[i]
	}
}
