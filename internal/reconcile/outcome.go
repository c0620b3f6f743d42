package reconcile

import (
	"errors"

	"jobtrack-engine/internal/domain"
)

var (
	// ErrMalformedCandidate means the candidate cannot even be recorded in the ledger.
	ErrMalformedCandidate = errors.New("malformed candidate")
	// ErrPersistence wraps store failures. The ledger is left unmarked so the email is
	// retried on the next run.
	ErrPersistence = errors.New("persistence failure")
)

type Kind string

const (
	Created Kind = "created"
	Updated Kind = "updated"
	Skipped Kind = "skipped"
)

type SkipReason string

const (
	AlreadyProcessed SkipReason = "already_processed"
	Unusable         SkipReason = "unusable"
)

type Outcome struct {
	Kind   Kind
	App    domain.Application
	Reason SkipReason

	// StatusRejected is set when the proposed status was ignored by the hierarchy.
	StatusRejected bool
	// Ambiguous is set when several applications tied for the related match.
	Ambiguous bool
	// NeedsReview marks a low-confidence candidate left for a human (no company).
	NeedsReview bool
	// Note explains an Unusable skip.
	Note string
}

func (o Outcome) String() string {
	if o.Kind == Skipped {
		return string(o.Kind) + "(" + string(o.Reason) + ")"
	}
	return string(o.Kind)
}
