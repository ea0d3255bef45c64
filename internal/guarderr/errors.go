// Package guarderr carries the error taxonomy shared by the campaign pipeline.
package guarderr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. Only Config and Transport abort a
// campaign; the other kinds degrade the affected unit of work.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindTransport
	KindArtifact
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindArtifact:
		return "artifact"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error captures contextual information for pipeline failures.
type Error struct {
	Op   string
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E constructs an Error with the provided context.
func E(op string, kind Kind, msg string, err error) error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether any error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *Error
	for errors.As(err, &ge) {
		if ge.Kind == kind {
			return true
		}
		err = ge.Err
		if err == nil {
			return false
		}
	}
	return false
}

// Fatal reports whether err should abort the whole campaign.
func Fatal(err error) bool {
	return IsKind(err, KindConfig) || IsKind(err, KindTransport)
}
