package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepSampleCount(t *testing.T) {
	tests := []struct {
		name   string
		params SweepParams
		want   int
	}{
		{"default range", SweepParams{StartV: -0.5, EndV: 0.5, StepV: 0.02}, 51},
		{"quarter steps", SweepParams{StartV: 0, EndV: 1, StepV: 0.25}, 5},
		{"single point", SweepParams{StartV: 0.3, EndV: 0.3, StepV: 0.1}, 1},
		{"step not dividing range", SweepParams{StartV: 0, EndV: 3.5, StepV: 1}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.SampleCount())
		})
	}
}

func TestSweepProducesOrderedSamples(t *testing.T) {
	pr := &fakeProbe{current: func(_, v float64) float64 { return v / 100 }}
	require.NoError(t, pr.Configure(0.2))

	samples, err := RunSweep(pr, SweepParams{StartV: -0.5, EndV: 0.5, StepV: 0.02})
	require.NoError(t, err)
	require.Len(t, samples, 51)

	assert.InDelta(t, -0.5, samples[0].SetV, 1e-12)
	assert.InDelta(t, 0.5, samples[len(samples)-1].SetV, 1e-9)
	for k := 1; k < len(samples); k++ {
		assert.Greater(t, samples[k].SetV, samples[k-1].SetV)
	}
}

func TestSweepStopsAtEndVoltage(t *testing.T) {
	// A step that does not divide the range must truncate, never overshoot.
	pr := &fakeProbe{current: func(_, v float64) float64 { return v / 100 }}
	require.NoError(t, pr.Configure(0.2))

	samples, err := RunSweep(pr, SweepParams{StartV: 0, EndV: 3.5, StepV: 1})
	require.NoError(t, err)
	require.Len(t, samples, 4)

	for _, s := range samples {
		assert.LessOrEqual(t, s.SetV, 3.5)
	}
	assert.InDelta(t, 3.0, samples[len(samples)-1].SetV, 1e-9)
}

func TestSweepComplianceFailsFast(t *testing.T) {
	// 1 Ohm sample: current hits the 0.2 A limit on the very first point of
	// the -0.5..0.5 V sweep.
	pr := &fakeProbe{current: func(_, v float64) float64 { return v }}
	require.NoError(t, pr.Configure(0.2))

	samples, err := RunSweep(pr, SweepParams{StartV: -0.5, EndV: 0.5, StepV: 0.02})

	var ce *ComplianceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Step)
	assert.Nil(t, samples, "no partial samples on compliance fault")
}

func TestSweepComplianceMidway(t *testing.T) {
	// Current stays safe below 0.4 V, then trips the limit.
	pr := &fakeProbe{current: func(_, v float64) float64 {
		if v < 0.4 {
			return v / 100
		}
		return 0.25
	}}
	require.NoError(t, pr.Configure(0.2))

	_, err := RunSweep(pr, SweepParams{StartV: 0, EndV: 0.5, StepV: 0.1})

	var ce *ComplianceError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 4, ce.Step)
	assert.InDelta(t, 0.4, ce.SetV, 1e-9)
}
