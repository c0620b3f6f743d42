package domain

import "time"

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Candidate is the structured output of the extractor for one email, not yet reconciled.
// Everything except EmailID and ObservedDate may be empty.
type Candidate struct {
	EmailID      string
	ObservedDate time.Time
	Company      string
	JobTitle     string
	Location     string

	// InferredStatus is the extractor's raw label; it is clamped to the fixed set
	// during reconciliation.
	InferredStatus string

	Sender     string
	Subject    string
	Confidence string
}
