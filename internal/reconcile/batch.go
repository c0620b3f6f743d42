package reconcile

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"jobtrack-engine/internal/domain"
)

type Result struct {
	EmailID string
	Outcome Outcome
	Err     error
}

type Summary struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	NeedsReview int `json:"needsReview"`

	Results []Result `json:"-"`
}

// SortCandidates orders candidates by observed date, oldest first, then by email id.
// Processing in this order makes the final state independent of fetch order.
func SortCandidates(cs []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ObservedDate.Equal(out[j].ObservedDate) {
			return out[i].ObservedDate.Before(out[j].ObservedDate)
		}
		return out[i].EmailID < out[j].EmailID
	})
	return out
}

// RunBatch reconciles candidates sequentially. A failure on one candidate is recorded
// and the batch continues.
func (e *Engine) RunBatch(ctx context.Context, cs []domain.Candidate) Summary {
	var sum Summary
	for _, c := range SortCandidates(cs) {
		out, err := e.Reconcile(ctx, c)
		sum.Results = append(sum.Results, Result{EmailID: c.EmailID, Outcome: out, Err: err})
		if err != nil {
			sum.Failed++
			e.logger(c).WithError(err).Error("reconcile failed")
			continue
		}
		switch out.Kind {
		case Created:
			sum.Created++
		case Updated:
			sum.Updated++
		case Skipped:
			sum.Skipped++
		}
		if out.NeedsReview {
			sum.NeedsReview++
		}
	}

	e.Log.WithFields(logrus.Fields{
		"component":    "reconcile",
		"candidates":   len(cs),
		"created":      sum.Created,
		"updated":      sum.Updated,
		"skipped":      sum.Skipped,
		"failed":       sum.Failed,
		"needs_review": sum.NeedsReview,
	}).Info("batch complete")
	return sum
}
