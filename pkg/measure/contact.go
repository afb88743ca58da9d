// Package measure sequences a sheet-resistance measurement run: contact
// verification, voltage sweep, derived-quantity computation, and result
// persistence, with the stage homed and the SMU disarmed on every exit path.
package measure

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// ContactState is the outcome of a contact check.
type ContactState int

const (
	ContactUnknown ContactState = iota
	ContactGood
	ContactPoor
	ContactAborted
)

func (s ContactState) String() string {
	switch s {
	case ContactGood:
		return "good"
	case ContactPoor:
		return "poor"
	case ContactAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Decision is the user's choice when a contact check comes back poor.
type Decision int

const (
	// DecisionRetry raises the stage by the retry increment and re-checks.
	DecisionRetry Decision = iota
	// DecisionAbort terminates the run; nothing is written.
	DecisionAbort
	// DecisionOverride forces the contact good and proceeds anyway.
	DecisionOverride
)

// DecisionProvider supplies Retry/Abort/Override decisions. The CLI wires a
// terminal prompt here; tests script the choices.
type DecisionProvider interface {
	PoorContact(heightMM, measuredA, thresholdA float64) (Decision, error)
}

// ErrAborted is returned when the user aborts the run at the contact check.
var ErrAborted = errors.New("measurement aborted by user")

// heightTolMM absorbs float rounding when comparing retry heights against
// the travel ceiling. Well below mechanical resolution (1/34304 mm).
const heightTolMM = 1e-9

// StageControl is the subset of stage operations the run needs.
type StageControl interface {
	MoveToHeight(heightMM float64) error
	Home() error
	HeightMM() (float64, error)
}

// ProbeControl is the subset of SMU operations the run needs.
type ProbeControl interface {
	Configure(currentLimitA float64) error
	SetVoltage(v float64) error
	Oneshot(v float64) (measV, measI float64, compliance bool, err error)
	Shutdown() error
}

// Contact is the result of the verification loop.
type Contact struct {
	State      ContactState
	HeightMM   float64
	Overridden bool
}

// Verifier runs the contact verification state machine.
type Verifier struct {
	stage     StageControl
	probe     ProbeControl
	decide    DecisionProvider
	settle    time.Duration
	testV     float64
	threshold float64
	increment float64
	ceiling   float64

	sleep func(time.Duration) // test seam
}

// VerifierParams are the contact-check parameters pulled from the config.
type VerifierParams struct {
	SettlingTime      time.Duration
	TestVoltage       float64
	ContactThresholdA float64
	RetryIncrementMM  float64
	// MaxHeightMM caps physical travel of the retry loop. Exceeding it ends
	// the run as if the user had aborted.
	MaxHeightMM float64
}

func NewVerifier(st StageControl, pr ProbeControl, dp DecisionProvider, p VerifierParams) *Verifier {
	return &Verifier{
		stage:     st,
		probe:     pr,
		decide:    dp,
		settle:    p.SettlingTime,
		testV:     p.TestVoltage,
		threshold: p.ContactThresholdA,
		increment: p.RetryIncrementMM,
		ceiling:   p.MaxHeightMM,
		sleep:     time.Sleep,
	}
}

// Run positions the stage at startMM and verifies electrical contact,
// looping on user-directed retries. Each retry raises the target height by
// the configured increment, so travel is monotonically increasing.
func (v *Verifier) Run(startMM float64) (Contact, error) {
	height := startMM
	for {
		state, measured, err := v.check(height)
		if err != nil {
			return Contact{State: ContactUnknown, HeightMM: height}, err
		}
		if state == ContactGood {
			logrus.WithFields(logrus.Fields{
				"heightMM":  height,
				"measuredA": measured,
			}).Info("good contact detected")
			return Contact{State: ContactGood, HeightMM: height}, nil
		}

		logrus.WithFields(logrus.Fields{
			"heightMM":   height,
			"measuredA":  measured,
			"thresholdA": v.threshold,
		}).Warn("poor contact: current below threshold")

		decision, err := v.decide.PoorContact(height, measured, v.threshold)
		if err != nil {
			return Contact{State: ContactUnknown, HeightMM: height}, err
		}

		switch decision {
		case DecisionRetry:
			// Tolerance keeps accumulated float error in repeated retries from
			// tripping the limit when the target is exactly at the ceiling.
			next := height + v.increment
			if next > v.ceiling+heightTolMM {
				return Contact{State: ContactAborted, HeightMM: height},
					fmt.Errorf("retry height %.2f mm exceeds travel limit %.2f mm: %w",
						next, v.ceiling, ErrAborted)
			}
			height = next
		case DecisionOverride:
			logrus.Warn("contact check overridden: proceeding with measurement anyway")
			return Contact{State: ContactGood, HeightMM: height, Overridden: true}, nil
		case DecisionAbort:
			return Contact{State: ContactAborted, HeightMM: height}, ErrAborted
		default:
			return Contact{State: ContactUnknown, HeightMM: height},
				fmt.Errorf("unknown contact decision %d", decision)
		}
	}
}

// check performs one positioned contact test: move, settle, force the test
// voltage, read the current, return to 0 V.
func (v *Verifier) check(heightMM float64) (ContactState, float64, error) {
	if err := v.stage.MoveToHeight(heightMM); err != nil {
		return ContactUnknown, 0, err
	}
	v.sleep(v.settle)

	_, measI, _, err := v.probe.Oneshot(v.testV)
	if err != nil {
		return ContactUnknown, 0, err
	}
	if err := v.probe.SetVoltage(0); err != nil {
		return ContactUnknown, 0, err
	}

	current := math.Abs(measI)
	if current >= v.threshold {
		return ContactGood, current, nil
	}
	return ContactPoor, current, nil
}
