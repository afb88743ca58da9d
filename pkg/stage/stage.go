// Package stage drives the motorized vertical stage that raises the sample
// toward the probe head.
package stage

import (
	"errors"
	"math"

	"github.com/sirupsen/logrus"
)

// ErrNotHomed is returned when a positioned move is requested before the
// stage has completed its homing sequence. Relative positions are not
// trustworthy until then.
var ErrNotHomed = errors.New("stage is not homed")

// Conn is the narrow motor-controller interface the Stage wraps. The real
// implementation speaks the Kinesis wire protocol over a serial port; tests
// substitute an in-memory connection.
type Conn interface {
	// EnableChannel powers the motor channel. Must be called once after open.
	EnableChannel() error
	// Home runs the homing sequence and blocks until the controller reports
	// the stage homed.
	Home() error
	// MoveTo moves to an absolute position in motor steps and blocks until
	// the move completes.
	MoveTo(steps int) error
	// Position reports the current position in motor steps.
	Position() (int, error)
	// IsHomed reports whether the controller considers the stage homed.
	IsHomed() (bool, error)
	Close() error
}

// Stage converts between heights in millimeters and motor steps and issues
// motion commands through a Conn.
type Stage struct {
	conn       Conn
	stepsPerMM float64
}

func New(conn Conn, stepsPerMM float64) *Stage {
	return &Stage{conn: conn, stepsPerMM: stepsPerMM}
}

// StepsForHeight converts a height in millimeters to motor steps with exact
// integer rounding.
func StepsForHeight(heightMM, stepsPerMM float64) int {
	return int(math.Round(heightMM * stepsPerMM))
}

// Connect enables the motor channel.
func (s *Stage) Connect() error {
	return s.conn.EnableChannel()
}

// IsHomed reports whether the stage has a valid reference position.
func (s *Stage) IsHomed() (bool, error) {
	return s.conn.IsHomed()
}

// Home runs the homing sequence.
func (s *Stage) Home() error {
	logrus.Debug("homing stage")
	return s.conn.Home()
}

// MoveToHeight moves the stage to the given height. The move is refused with
// ErrNotHomed if the stage has no reference position.
func (s *Stage) MoveToHeight(heightMM float64) error {
	homed, err := s.conn.IsHomed()
	if err != nil {
		return err
	}
	if !homed {
		return ErrNotHomed
	}

	steps := StepsForHeight(heightMM, s.stepsPerMM)
	logrus.WithFields(logrus.Fields{
		"heightMM": heightMM,
		"steps":    steps,
	}).Debug("moving stage")

	return s.conn.MoveTo(steps)
}

// HeightMM reports the current stage height in millimeters.
func (s *Stage) HeightMM() (float64, error) {
	steps, err := s.conn.Position()
	if err != nil {
		return 0, err
	}
	return float64(steps) / s.stepsPerMM, nil
}

// Position reports the raw step counter.
func (s *Stage) Position() (int, error) {
	return s.conn.Position()
}

func (s *Stage) Close() error {
	return s.conn.Close()
}
