// Package maperr classifies failures of the map service into configuration,
// network and data errors.
package maperr

import (
	"errors"
	"fmt"
)

// Kind is the class of a map failure.
type Kind int

const (
	// Config covers missing or invalid style URLs, keys, centers and zooms.
	Config Kind = iota + 1
	// Network covers style, tile and GeoJSON fetch failures.
	Network
	// Data covers malformed documents and features missing required fields.
	Data
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Network:
		return "network"
	case Data:
		return "data"
	}
	return "unknown"
}

// Error is a classified failure. Op names the step that failed,
// e.g. "fetch style" or "parse apartments".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of kind k.
func New(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// Configf builds a configuration error from a format string.
func Configf(op, format string, args ...any) *Error {
	return New(Config, op, fmt.Errorf(format, args...))
}

// Dataf builds a data error from a format string.
func Dataf(op, format string, args ...any) *Error {
	return New(Data, op, fmt.Errorf(format, args...))
}

// Is reports whether any error in err's chain is an Error of kind k.
func Is(err error, k Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == k
	}
	return false
}

// KindOf returns the kind of the first Error in err's chain, or 0.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return 0
}
