package measure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinfilmlab/autoprobe/pkg/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SettlingTime = 0 // no real settling in tests
	return cfg
}

// newTestRunner wires a runner around a 100 Ohm sample with good contact.
func newTestRunner(cfg config.Config, dp DecisionProvider) (*Runner, *fakeStage, *fakeProbe, *fakeWriter) {
	st := &fakeStage{}
	pr := &fakeProbe{stage: st, current: func(_, v float64) float64 { return v / 100 }}
	w := &fakeWriter{}
	r := NewRunner(cfg, st, pr, dp, w)
	r.now = func() time.Time { return time.Date(2026, 8, 31, 14, 30, 52, 0, time.UTC) }
	return r, st, pr, w
}

func TestRunnerSuccess(t *testing.T) {
	r, st, pr, w := newTestRunner(testConfig(), &scriptedDecisions{})

	res, err := r.Run("FTO")
	require.NoError(t, err)

	// 100 Ohm sample, correction factor 4.532.
	assert.InDelta(t, 100.0, res.Resistance, 1e-6)
	assert.InDelta(t, 453.2, res.SheetResistance, 1e-4)
	assert.False(t, res.HasConductivity)

	assert.Equal(t, 1, w.calls)
	assert.Equal(t, "FTO", w.lastName)
	assert.Len(t, w.lastSamples, 51)

	// Cleanup ran: SMU disarmed, stage returned home.
	assert.True(t, pr.shutdown)
	assert.Equal(t, 1, st.homeCount)
}

func TestRunnerWithConductivity(t *testing.T) {
	r, _, _, w := newTestRunner(testConfig(), &scriptedDecisions{})

	res, err := r.RunWithConductivity("FTO", 100e-9)
	require.NoError(t, err)

	require.True(t, res.HasConductivity)
	assert.InDelta(t, 1/(res.SheetResistance*100e-9), res.Conductivity, 1e-6)
	require.True(t, w.lastRes.HasConductivity)
}

func TestRunnerAbortWritesNothingAndHomes(t *testing.T) {
	cfg := testConfig()
	r, st, pr, w := newTestRunner(cfg, &scriptedDecisions{decisions: []Decision{DecisionAbort}})
	// No contact anywhere.
	pr.current = func(_, _ float64) float64 { return 0 }

	_, err := r.Run("FTO")
	require.ErrorIs(t, err, ErrAborted)

	assert.Zero(t, w.calls, "abort must not persist anything")
	assert.Equal(t, 1, st.homeCount, "abort must return the stage home")
	assert.True(t, pr.shutdown)
}

func TestRunnerComplianceWritesNothingAndHomes(t *testing.T) {
	r, st, pr, w := newTestRunner(testConfig(), &scriptedDecisions{})
	// Contact test at 0.1 V reads a healthy 1 mA, but the sweep's outer
	// points trip the 0.2 A limit on this 1 Ohm short.
	pr.current = func(_, v float64) float64 {
		if v == 0.1 {
			return 0.001
		}
		return v
	}

	_, err := r.Run("FTO")

	var ce *ComplianceError
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, w.calls, "compliance fault must not persist anything")
	assert.Equal(t, 1, st.homeCount)
	assert.True(t, pr.shutdown)
}

func TestRunnerConductivityDomainErrorStillPersistsSheetResistance(t *testing.T) {
	r, _, _, w := newTestRunner(testConfig(), &scriptedDecisions{})

	res, err := r.RunWithConductivity("FTO", 0)

	var de *DomainError
	require.ErrorAs(t, err, &de)

	assert.False(t, res.HasConductivity)
	assert.Greater(t, res.SheetResistance, 0.0)
	require.Equal(t, 1, w.calls, "sheet resistance is still persisted")
	assert.False(t, w.lastRes.HasConductivity)
}

func TestRunnerCarriesOverrideAnnotation(t *testing.T) {
	r, _, pr, w := newTestRunner(testConfig(), &scriptedDecisions{decisions: []Decision{DecisionOverride}})
	// Poor contact at the 0.1 V test pulse, measurable sample otherwise.
	pr.current = func(_, v float64) float64 {
		if v == 0.1 {
			return 0.00001
		}
		return v / 100
	}

	res, err := r.Run("FTO")
	require.NoError(t, err)

	assert.True(t, res.ContactOverridden)
	require.Equal(t, 1, w.calls)
	assert.True(t, w.lastRes.ContactOverridden)
}
