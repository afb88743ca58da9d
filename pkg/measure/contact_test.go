package measure

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(st *fakeStage, pr *fakeProbe, dp DecisionProvider) *Verifier {
	v := NewVerifier(st, pr, dp, VerifierParams{
		SettlingTime:      time.Second,
		TestVoltage:       0.1,
		ContactThresholdA: 0.0001,
		RetryIncrementMM:  0.1,
		MaxHeightMM:       8.0,
	})
	v.sleep = func(time.Duration) {} // no real settling in tests
	return v
}

func TestVerifierGoodContact(t *testing.T) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(_, _ float64) float64 { return 0.0002 }}

	v := newTestVerifier(st, pr, &scriptedDecisions{})
	contact, err := v.Run(5.4)

	require.NoError(t, err)
	assert.Equal(t, ContactGood, contact.State)
	assert.False(t, contact.Overridden)
	assert.InDelta(t, 5.4, contact.HeightMM, 1e-12)
	// Voltage returned to zero after the test pulse.
	require.NotEmpty(t, pr.setVoltages)
	assert.Zero(t, pr.setVoltages[len(pr.setVoltages)-1])
}

func TestVerifierPoorContactAbort(t *testing.T) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(_, _ float64) float64 { return 0.00005 }}

	v := newTestVerifier(st, pr, &scriptedDecisions{decisions: []Decision{DecisionAbort}})
	contact, err := v.Run(5.4)

	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, ContactAborted, contact.State)
}

func TestVerifierNegativeCurrentCountsTowardThreshold(t *testing.T) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(_, _ float64) float64 { return -0.0002 }}

	v := newTestVerifier(st, pr, &scriptedDecisions{})
	contact, err := v.Run(5.4)

	require.NoError(t, err)
	assert.Equal(t, ContactGood, contact.State)
}

func TestVerifierRetryTwiceThenGood(t *testing.T) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(heightMM, _ float64) float64 {
		if heightMM >= 5.59 {
			return 0.0002
		}
		return 0.00005
	}}

	v := newTestVerifier(st, pr, &scriptedDecisions{decisions: []Decision{DecisionRetry, DecisionRetry}})
	contact, err := v.Run(5.4)

	require.NoError(t, err)
	assert.Equal(t, ContactGood, contact.State)
	assert.InDelta(t, 5.6, contact.HeightMM, 1e-9)

	// Travel is monotonically increasing across retries.
	require.Len(t, st.moves, 3)
	for k := 1; k < len(st.moves); k++ {
		assert.Greater(t, st.moves[k], st.moves[k-1])
	}
}

func TestVerifierOverride(t *testing.T) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(_, _ float64) float64 { return 0 }}

	v := newTestVerifier(st, pr, &scriptedDecisions{decisions: []Decision{DecisionOverride}})
	contact, err := v.Run(5.4)

	require.NoError(t, err)
	assert.Equal(t, ContactGood, contact.State)
	assert.True(t, contact.Overridden)
}

func TestVerifierTravelCeiling(t *testing.T) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(_, _ float64) float64 { return 0 }}

	v := NewVerifier(st, pr, &scriptedDecisions{decisions: []Decision{DecisionRetry, DecisionRetry}}, VerifierParams{
		SettlingTime:      0,
		TestVoltage:       0.1,
		ContactThresholdA: 0.0001,
		RetryIncrementMM:  0.1,
		MaxHeightMM:       5.55,
	})
	v.sleep = func(time.Duration) {}

	contact, err := v.Run(5.4)

	// 5.4 -> 5.5 is allowed, 5.6 exceeds the ceiling and ends the run.
	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, ContactAborted, contact.State)
	require.Len(t, st.moves, 2)
}

func TestVerifierCeilingReachableExactly(t *testing.T) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(heightMM, _ float64) float64 {
		if heightMM >= 5.59 {
			return 0.0002
		}
		return 0.00005
	}}

	// Two 0.1 mm retries from 5.4 land on the 5.6 ceiling itself; the float
	// sum overshoots by ~4.4e-16 and must still be allowed through.
	v := NewVerifier(st, pr, &scriptedDecisions{decisions: []Decision{DecisionRetry, DecisionRetry}}, VerifierParams{
		TestVoltage:       0.1,
		ContactThresholdA: 0.0001,
		RetryIncrementMM:  0.1,
		MaxHeightMM:       5.6,
	})
	v.sleep = func(time.Duration) {}

	contact, err := v.Run(5.4)

	require.NoError(t, err)
	assert.Equal(t, ContactGood, contact.State)
	assert.InDelta(t, 5.6, contact.HeightMM, 1e-9)
	require.Len(t, st.moves, 3)
}

func TestVerifierStageErrorSurfaces(t *testing.T) {
	boom := errors.New("motor fault")
	st := &fakeStage{moveErr: boom}
	pr := &fakeProbe{stage: st, current: func(_, _ float64) float64 { return 0.0002 }}

	v := newTestVerifier(st, pr, &scriptedDecisions{})
	_, err := v.Run(5.4)

	require.ErrorIs(t, err, boom)
}
