package measure

import (
	"math"
	"time"
)

// fakeStage records motion and models the current height.
type fakeStage struct {
	height    float64
	moves     []float64
	homeCount int
	moveErr   error
}

func (f *fakeStage) MoveToHeight(heightMM float64) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.height = heightMM
	f.moves = append(f.moves, heightMM)
	return nil
}

func (f *fakeStage) Home() error {
	f.height = 0
	f.homeCount++
	return nil
}

func (f *fakeStage) HeightMM() (float64, error) {
	return f.height, nil
}

// fakeProbe answers oneshot readings from a current function of the stage
// height and the set voltage, and flags compliance against the configured
// limit like the real adapter.
type fakeProbe struct {
	stage       *fakeStage
	current     func(heightMM, setV float64) float64
	limit       float64
	configured  bool
	shutdown    bool
	setVoltages []float64
}

func (f *fakeProbe) Configure(currentLimitA float64) error {
	f.limit = currentLimitA
	f.configured = true
	return nil
}

func (f *fakeProbe) SetVoltage(v float64) error {
	f.setVoltages = append(f.setVoltages, v)
	return nil
}

func (f *fakeProbe) Oneshot(v float64) (float64, float64, bool, error) {
	h := 0.0
	if f.stage != nil {
		h = f.stage.height
	}
	i := f.current(h, v)
	compliance := f.limit > 0 && math.Abs(i) >= f.limit
	return v, i, compliance, nil
}

func (f *fakeProbe) Shutdown() error {
	f.shutdown = true
	return nil
}

// scriptedDecisions pops pre-programmed contact decisions in order,
// defaulting to Abort when the script runs out.
type scriptedDecisions struct {
	decisions []Decision
}

func (s *scriptedDecisions) PoorContact(_, _, _ float64) (Decision, error) {
	if len(s.decisions) == 0 {
		return DecisionAbort, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

// fakeWriter records write calls without touching the filesystem.
type fakeWriter struct {
	calls       int
	lastName    string
	lastTS      time.Time
	lastSamples []Sample
	lastRes     Result
}

func (w *fakeWriter) Write(sampleName string, ts time.Time, samples []Sample, res Result) (string, string, error) {
	w.calls++
	w.lastName = sampleName
	w.lastTS = ts
	w.lastSamples = samples
	w.lastRes = res
	return sampleName + ".csv", sampleName + ".png", nil
}
