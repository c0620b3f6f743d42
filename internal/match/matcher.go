// Package match decides whether a candidate describes an application that is already tracked.
package match

import (
	"strings"
	"time"

	"jobtrack-engine/internal/domain"
)

const DefaultWindow = 30 * 24 * time.Hour

type Kind int

const (
	NoMatch Kind = iota
	ExactEmailMatch
	RelatedMatch
)

func (k Kind) String() string {
	switch k {
	case ExactEmailMatch:
		return "exact_email"
	case RelatedMatch:
		return "related"
	default:
		return "none"
	}
}

type Result struct {
	Kind Kind
	App  domain.Application

	// Ambiguous is set when more than one application matched with the same date
	// delta; Tied lists their ids. The winner is still picked deterministically.
	Ambiguous bool
	Tied      []string
}

type Matcher struct {
	Window time.Duration
}

func New(window time.Duration) Matcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return Matcher{Window: window}
}

// Match returns the best existing application for c, first by email id and then by
// company, title overlap and date proximity.
func (m Matcher) Match(c domain.Candidate, apps []domain.Application) Result {
	if id := strings.TrimSpace(c.EmailID); id != "" {
		for _, a := range apps {
			if a.EmailID == id {
				return Result{Kind: ExactEmailMatch, App: a}
			}
		}
	}

	company := NormalizeCompany(c.Company)
	if company == "" {
		return Result{Kind: NoMatch}
	}
	window := m.Window
	if window <= 0 {
		window = DefaultWindow
	}

	var (
		best      domain.Application
		bestDelta time.Duration
		found     bool
		tied      []string
	)
	for _, a := range apps {
		if NormalizeCompany(a.Company) != company {
			continue
		}
		if !TitlesOverlap(c.JobTitle, a.JobTitle) {
			continue
		}
		delta := absDuration(c.ObservedDate.Sub(a.ApplicationDate))
		if delta > window {
			continue
		}

		switch {
		case !found || delta < bestDelta:
			best, bestDelta, found = a, delta, true
			tied = []string{a.ID}
		case delta == bestDelta:
			tied = append(tied, a.ID)
			if preferred(a, best) {
				best = a
			}
		}
	}

	if !found {
		return Result{Kind: NoMatch}
	}
	res := Result{Kind: RelatedMatch, App: best}
	if len(tied) > 1 {
		res.Ambiguous = true
		res.Tied = tied
	}
	return res
}

// preferred breaks equal-delta ties: most recently updated wins, then the lower id.
func preferred(a, b domain.Application) bool {
	if !a.LastUpdated.Equal(b.LastUpdated) {
		return a.LastUpdated.After(b.LastUpdated)
	}
	return a.ID < b.ID
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
