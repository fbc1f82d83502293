package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-watcher/internal/hash/sha256"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	fp := sha256.Fingerprint("price: 10")
	other := sha256.Fingerprint("price: 12")

	tests := []struct {
		name     string
		previous *string
		signal   string
		want     Outcome
		wantFP   string
	}{
		{name: "first run is baseline", previous: nil, signal: "price: 10", want: OutcomeBaseline, wantFP: fp},
		{name: "same signal is unchanged", previous: &fp, signal: "price: 10", want: OutcomeUnchanged, wantFP: fp},
		{name: "different signal is changed", previous: &other, signal: "price: 10", want: OutcomeChanged, wantFP: fp},
		{name: "empty signal baseline", previous: nil, signal: "", want: OutcomeBaseline, wantFP: sha256.Fingerprint("")},
		{name: "content disappeared is changed", previous: &fp, signal: "", want: OutcomeChanged, wantFP: sha256.Fingerprint("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, gotFP := Classify(tt.previous, tt.signal)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFP, gotFP)
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	t.Parallel()

	prev := sha256.Fingerprint("old")
	first, firstFP := Classify(&prev, "new")
	second, secondFP := Classify(&prev, "new")
	require.Equal(t, first, second)
	require.Equal(t, firstFP, secondFP)
}

func TestOutcomeNotifies(t *testing.T) {
	t.Parallel()

	assert.True(t, OutcomeChanged.Notifies())
	assert.True(t, OutcomeForcedTest.Notifies())
	assert.False(t, OutcomeBaseline.Notifies())
	assert.False(t, OutcomeUnchanged.Notifies())
	assert.False(t, OutcomeNetworkFailure.Notifies())
}

func TestNetworkErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := assert.AnError
	err := &NetworkError{URL: "https://example.com", Attempts: 3, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
}

func TestStateHasBaseline(t *testing.T) {
	t.Parallel()

	var s State
	assert.False(t, s.HasBaseline())
	h := sha256.Fingerprint("x")
	s.LastHash = &h
	assert.True(t, s.HasBaseline())
}
