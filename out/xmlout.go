// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package out

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
)

// TrajectoryNode is one collocation node of a solved trajectory, spec §6
// "optional XML dump of a solved trajectory" and §8's round-trip law.
type TrajectoryNode struct {
	S  float64   `xml:"s,attr"`
	Q  floatList `xml:"q,attr"`
	QA floatList `xml:"qa,attr"`
	U  floatList `xml:"u,attr"`
}

// Trajectory is the root element of the exported XML document
type Trajectory struct {
	XMLName  xml.Name         `xml:"trajectory"`
	Vehicle  string           `xml:"vehicle,attr"`
	Laptime  float64          `xml:"laptime,attr"`
	Nodes    []TrajectoryNode `xml:"node"`
}

// floatList renders a []float64 as a space-separated attribute value;
// encoding/xml has no native []float64 attribute marshaler.
type floatList []float64

func (f floatList) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	s := ""
	for i, v := range f {
		if i > 0 {
			s += " "
		}
		s += io.Sf("%.17g", v)
	}
	return xml.Attr{Name: name, Value: s}, nil
}

func (f *floatList) UnmarshalXMLAttr(attr xml.Attr) error {
	if strings.TrimSpace(attr.Value) == "" {
		*f = nil
		return nil
	}
	fields := strings.Fields(attr.Value)
	out := make(floatList, len(fields))
	for i, tok := range fields {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return chk.Err("xmlout: bad float attribute %q: %v", attr.Value, err)
		}
		out[i] = v
	}
	*f = out
	return nil
}

// WriteTrajectoryXML serializes a solved trajectory to an XML string
func WriteTrajectoryXML(vehicleKind string, laptime float64, s []float64, q, qa, u [][]float64) (string, error) {
	if len(s) != len(q) || len(s) != len(u) {
		return "", chk.Err("xmlout: s, q, u must have the same length, got %d, %d, %d", len(s), len(q), len(u))
	}
	t := Trajectory{Vehicle: vehicleKind, Laptime: laptime}
	for i := range s {
		node := TrajectoryNode{S: s[i], Q: floatList(q[i]), U: floatList(u[i])}
		if qa != nil {
			node.QA = floatList(qa[i])
		}
		t.Nodes = append(t.Nodes, node)
	}
	b, err := xml.MarshalIndent(&t, "", "  ")
	if err != nil {
		return "", chk.Err("xmlout: marshal failed: %v", err)
	}
	return xml.Header + string(b), nil
}

// ReadTrajectoryXML parses the document written by WriteTrajectoryXML,
// restoring q, qa, u exactly (spec §8 round-trip law).
func ReadTrajectoryXML(data []byte) (vehicleKind string, laptime float64, s []float64, q, qa, u [][]float64, err error) {
	var t Trajectory
	if e := xml.Unmarshal(data, &t); e != nil {
		err = chk.Err("xmlout: unmarshal failed: %v", e)
		return
	}
	vehicleKind = t.Vehicle
	laptime = t.Laptime
	for _, n := range t.Nodes {
		s = append(s, n.S)
		q = append(q, []float64(n.Q))
		u = append(u, []float64(n.U))
		if n.QA != nil {
			qa = append(qa, []float64(n.QA))
		}
	}
	return
}
