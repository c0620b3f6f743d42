package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{Applied, RecruiterScreen, true},
		{Applied, Interview, true},
		{Applied, Rejected, true},
		{Applied, Offer, true},
		{RecruiterScreen, Interview, true},
		{Interview, Ghosted, true},
		{Applied, Applied, true},
		{Rejected, Rejected, true},
		{Offer, Offer, true},

		{Interview, Applied, false},
		{RecruiterScreen, Applied, false},
		{Rejected, Applied, false},
		{Rejected, Interview, false},
		{Rejected, Ghosted, false},
		{Ghosted, Dropped, false},
		{Dropped, Rejected, false},
		{Offer, Rejected, false},
		{Offer, Applied, false},

		{Rejected, Offer, true},
		{Ghosted, Offer, true},
		{Dropped, Offer, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition(Applied, Status("Hired")))
	assert.False(t, CanTransition(Status("Hired"), Offer))
}

func TestTransition(t *testing.T) {
	got, err := Transition(Applied, Rejected)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got)

	got, err = Transition(Rejected, Applied)
	assert.ErrorIs(t, err, ErrTransitionRejected)
	assert.Equal(t, Rejected, got)
}

// Applying any sequence keeps the rank non-decreasing, except the final -> Offer upgrade,
// which is itself an increase.
func TestTransition_Monotonic(t *testing.T) {
	all := All()
	for _, start := range all {
		cur := start
		for _, a := range all {
			for _, b := range all {
				for _, next := range []Status{a, b} {
					before, _ := Rank(cur)
					cur, _ = Transition(cur, next)
					after, _ := Rank(cur)
					assert.GreaterOrEqual(t, after, before)
				}
			}
		}
	}
}

func TestParse(t *testing.T) {
	cases := map[string]Status{
		"Applied":               Applied,
		"  recruiter   screen ": RecruiterScreen,
		"In Progress":           RecruiterScreen,
		"Withdrawn":             Dropped,
		"OFFER":                 Offer,
		"ghosted":               Ghosted,
	}
	for raw, want := range cases {
		got, ok := Parse(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := Parse("")
	assert.False(t, ok)
	_, ok = Parse("newsletter")
	assert.False(t, ok)
}

func TestIsFinal(t *testing.T) {
	assert.True(t, IsFinal(Rejected))
	assert.True(t, IsFinal(Ghosted))
	assert.True(t, IsFinal(Dropped))
	assert.False(t, IsFinal(Offer))
	assert.False(t, IsFinal(Interview))
}
