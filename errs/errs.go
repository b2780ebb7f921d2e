// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package errs implements the typed error kinds raised by the core packages
package errs

import "github.com/cpmech/gosl/io"

// Kind classifies an error raised by the core
type Kind int

// error kinds
const (
	InputValidation Kind = iota // unknown type, unsupported format, duplicate name, missing key
	LookupMiss                  // referenced name absent from a registry, unknown property
	NumericFailure              // NLP solver did not converge; residual above tolerance
	ModelMismatch               // property requested on a model that does not support it
	Internal                    // invariant violation
)

// String returns the name of a Kind
func (k Kind) String() string {
	switch k {
	case InputValidation:
		return "InputValidation"
	case LookupMiss:
		return "LookupMiss"
	case NumericFailure:
		return "NumericFailure"
	case ModelMismatch:
		return "ModelMismatch"
	case Internal:
		return "Internal"
	}
	return "Unknown"
}

// E is an error tagged with one of the abstract kinds from spec §7
type E struct {
	Kind Kind
	Msg  string
}

// Error implements the error interface
func (e *E) Error() string {
	return io.Sf("[%s] %s", e.Kind, e.Msg)
}

// New creates a new tagged error with a formatted message
func New(k Kind, msg string, args ...interface{}) *E {
	return &E{Kind: k, Msg: io.Sf(msg, args...)}
}

// Is reports whether err carries the given Kind
func Is(err error, k Kind) bool {
	e, ok := err.(*E)
	return ok && e.Kind == k
}

// Boundary wraps f, recovering from any panic (core panics, library panics,
// or explicit chk.Panic calls) and turning it into a single logged line plus
// a re-raised error, mirroring gofem's single panic/recover boundary per
// public entry point (main.go, fem.FEM.onexit).
func Boundary(op string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			io.PfRed("ERROR [%s]: %v\n", op, r)
			if e, ok := r.(*E); ok {
				err = e
				return
			}
			if e, ok := r.(error); ok {
				err = New(Internal, "%v", e)
				return
			}
			err = New(Internal, "%v", r)
		}
	}()
	err = f()
	if err != nil {
		io.PfRed("ERROR [%s]: %v\n", op, err)
	}
	return
}
