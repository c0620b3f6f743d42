// Package status defines the application lifecycle and which status changes are allowed.
package status

import (
	"errors"
	"strings"
)

type Status string

const (
	Applied         Status = "Applied"
	RecruiterScreen Status = "Recruiter Screen"
	Interview       Status = "Interview"
	Rejected        Status = "Rejected"
	Ghosted         Status = "Ghosted"
	Dropped         Status = "Dropped"
	Offer           Status = "Offer"
)

// finalRank is shared by every terminal outcome except Offer.
const finalRank = 3

// ErrTransitionRejected is returned by Transition when the current status is kept.
var ErrTransitionRejected = errors.New("status transition rejected")

var ranks = map[Status]int{
	Applied:         0,
	RecruiterScreen: 1,
	Interview:       2,
	Rejected:        finalRank,
	Ghosted:         finalRank,
	Dropped:         finalRank,
	Offer:           4,
}

// aliases maps lowercased labels (including the legacy pipeline names) to the fixed set.
var aliases = map[string]Status{
	"applied":          Applied,
	"application":      Applied,
	"submitted":        Applied,
	"recruiter screen": RecruiterScreen,
	"recruiter_screen": RecruiterScreen,
	"phone screen":     RecruiterScreen,
	"screen":           RecruiterScreen,
	"screening":        RecruiterScreen,
	"in progress":      RecruiterScreen,
	"interview":        Interview,
	"interviewing":     Interview,
	"rejected":         Rejected,
	"rejection":        Rejected,
	"ghosted":          Ghosted,
	"no response":      Ghosted,
	"dropped":          Dropped,
	"withdrawn":        Dropped,
	"withdrew":         Dropped,
	"offer":            Offer,
	"offered":          Offer,
}

var ordered = []Status{Applied, RecruiterScreen, Interview, Rejected, Ghosted, Dropped, Offer}

// All returns the fixed status set in pipeline order.
func All() []Status {
	return append([]Status(nil), ordered...)
}

// Active returns the in-flight pipeline stages.
func Active() []Status {
	return []Status{Applied, RecruiterScreen, Interview}
}

// Outcomes returns the terminal statuses.
func Outcomes() []Status {
	return []Status{Rejected, Ghosted, Dropped, Offer}
}

func Rank(s Status) (int, bool) {
	r, ok := ranks[s]
	return r, ok
}

func (s Status) Valid() bool {
	_, ok := ranks[s]
	return ok
}

// IsFinal reports whether s is a rank-3 outcome (Rejected, Ghosted, Dropped).
func IsFinal(s Status) bool {
	r, ok := ranks[s]
	return ok && r == finalRank
}

// Parse clamps a free-text status label onto the fixed set.
func Parse(raw string) (Status, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if key == "" {
		return "", false
	}
	s, ok := aliases[key]
	return s, ok
}

// CanTransition reports whether an application in current may move to proposed.
//
// Forward moves and identical no-ops are allowed. The only move out of a final
// status is the upgrade to Offer; nothing leaves Offer.
func CanTransition(current, proposed Status) bool {
	rc, okc := ranks[current]
	rp, okp := ranks[proposed]
	if proposed == current {
		return true
	}
	if !okc || !okp {
		return false
	}
	if rc == finalRank {
		return proposed == Offer
	}
	return rp > rc
}

// Transition returns the status to store. The current status is returned together
// with ErrTransitionRejected when the move is not allowed.
func Transition(current, proposed Status) (Status, error) {
	if CanTransition(current, proposed) {
		return proposed, nil
	}
	return current, ErrTransitionRejected
}
