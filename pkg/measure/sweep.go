package measure

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Sample is one (voltage, current) observation from the sweep, ordered by
// sweep sequence.
type Sample struct {
	SetV float64
	V    float64
	I    float64
}

// ComplianceError reports a current-limit fault mid-sweep. The sweep aborts
// and no partial result is computed.
type ComplianceError struct {
	Step     int
	SetV     float64
	CurrentA float64
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("compliance fault at sweep step %d (%.3f V): current %.4f A hit the limit",
		e.Step, e.SetV, e.CurrentA)
}

// SweepParams define the voltage sweep. The current limit is not carried
// here: it is armed on the SMU once, before the contact check.
type SweepParams struct {
	StartV float64
	EndV   float64
	StepV  float64
}

// SampleCount returns the number of sweep points: floor((EndV-StartV)/StepV)+1,
// so no set-voltage ever exceeds EndV. The tolerance keeps evenly divisible
// ranges (0.02 V steps land at 49.999...) from losing their last point.
func (p SweepParams) SampleCount() int {
	return int(math.Floor((p.EndV-p.StartV)/p.StepV+1e-9)) + 1
}

// RunSweep steps the SMU through the voltage range and collects one sample
// per point. On a compliance fault it fails fast with a ComplianceError and
// discards everything collected so far.
func RunSweep(probe ProbeControl, p SweepParams) ([]Sample, error) {
	n := p.SampleCount()
	samples := make([]Sample, 0, n)

	logrus.WithFields(logrus.Fields{
		"startV": p.StartV,
		"endV":   p.EndV,
		"stepV":  p.StepV,
		"points": n,
	}).Info("running voltage sweep")

	for k := 0; k < n; k++ {
		setV := p.StartV + float64(k)*p.StepV

		measV, measI, compliance, err := probe.Oneshot(setV)
		if err != nil {
			return nil, fmt.Errorf("sweep step %d (%.3f V): %w", k, setV, err)
		}
		if compliance {
			return nil, &ComplianceError{Step: k, SetV: setV, CurrentA: measI}
		}

		samples = append(samples, Sample{SetV: setV, V: measV, I: measI})
	}

	return samples, nil
}
