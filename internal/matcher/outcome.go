// Package matcher decides whether a query descriptor belongs to a gallery
// identity. Matching is a pure function of its inputs: no I/O, no logging,
// no shared state.
package matcher

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/traceon/internal/gallery"
)

// Kind names an outcome variant. The values are stable and appear in API responses.
type Kind string

const (
	KindNoFaceDetected Kind = "no_face_detected"
	KindMatched        Kind = "matched"
	KindNotMatched     Kind = "not_matched"
	KindAnalysisFailed Kind = "analysis_failed"
)

var (
	ErrDimensionMismatch   = gallery.ErrDimensionMismatch
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	ErrInvalidTolerance    = errors.New("invalid tolerance")
)

// Outcome is the result of checking one image. Only the fields relevant to
// Kind are set: Identity, Position and Distance for matched, Err for
// analysis_failed.
type Outcome struct {
	Kind     Kind
	Identity gallery.Identity
	Position int
	Distance float64
	Err      error
}

// NoFace is the outcome for an image in which no face was found.
func NoFace() Outcome {
	return Outcome{Kind: KindNoFaceDetected}
}

// NotMatched is the outcome when no identity is within tolerance.
func NotMatched() Outcome {
	return Outcome{Kind: KindNotMatched}
}

// Matched is the outcome for the identity at position within tolerance.
func Matched(position int, id gallery.Identity, distance float64) Outcome {
	return Outcome{Kind: KindMatched, Identity: id, Position: position, Distance: distance}
}

// Failed is the outcome when analysis could not complete.
func Failed(err error) Outcome {
	if err == nil {
		err = errors.New("analysis failed")
	}
	return Outcome{Kind: KindAnalysisFailed, Err: err}
}

// IsMatch reports whether the outcome identified someone.
func (o Outcome) IsMatch() bool {
	return o.Kind == KindMatched
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindMatched:
		return fmt.Sprintf("matched %q (distance %.4f)", o.Identity.Label, o.Distance)
	case KindAnalysisFailed:
		return fmt.Sprintf("analysis failed: %v", o.Err)
	default:
		return string(o.Kind)
	}
}
