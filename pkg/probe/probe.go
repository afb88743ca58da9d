// Package probe drives the source-measure unit behind the four-point probe
// head.
package probe

import (
	"fmt"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Conn is the narrow SMU interface the adapter wraps. The real
// implementation speaks the Xtralien ASCII protocol over a serial port.
type Conn interface {
	// Command sends a command that produces no reply.
	Command(cmd string) error
	// Query sends a command and returns the single reply line.
	Query(cmd string) (string, error)
	Close() error
}

// The voltage compliance limit is fixed well above the sweep range; only the
// current limit is a run parameter.
const voltageLimit = 10.0

// SMU issues set-voltage and measure operations against channel 1 of the
// source-measure unit.
type SMU struct {
	conn         Conn
	currentLimit float64
}

func New(conn Conn) *SMU {
	return &SMU{conn: conn}
}

// Configure arms the SMU: compliance limits set, output enabled. The current
// limit is kept for compliance detection on later readings.
func (s *SMU) Configure(currentLimitA float64) error {
	logrus.WithField("currentLimitA", currentLimitA).Debug("configuring SMU")

	if err := s.conn.Command(fmt.Sprintf("smu1 set limiti %s", formatFloat(currentLimitA))); err != nil {
		return err
	}
	if err := s.conn.Command(fmt.Sprintf("smu1 set limitv %s", formatFloat(voltageLimit))); err != nil {
		return err
	}
	if err := s.conn.Command("smu1 set enabled 1"); err != nil {
		return err
	}
	s.currentLimit = currentLimitA
	return nil
}

// SetVoltage forces the output voltage without taking a reading.
func (s *SMU) SetVoltage(v float64) error {
	return s.conn.Command(fmt.Sprintf("smu1 set voltage %s", formatFloat(v)))
}

// Oneshot forces the given voltage and reads back the measured voltage and
// current. compliance reports whether the reading hit the configured current
// limit.
func (s *SMU) Oneshot(v float64) (measV, measI float64, compliance bool, err error) {
	reply, err := s.conn.Query(fmt.Sprintf("smu1 oneshot %s", formatFloat(v)))
	if err != nil {
		return 0, 0, false, err
	}

	measV, measI, err = parsePair(reply)
	if err != nil {
		return 0, 0, false, err
	}

	compliance = s.currentLimit > 0 && math.Abs(measI) >= s.currentLimit
	logrus.WithFields(logrus.Fields{
		"setV":       v,
		"measV":      measV,
		"measI":      measI,
		"compliance": compliance,
	}).Trace("oneshot")

	return measV, measI, compliance, nil
}

// Shutdown returns the output to a safe state: 0 V, output disabled.
func (s *SMU) Shutdown() error {
	if err := s.conn.Command("smu1 set voltage 0"); err != nil {
		return err
	}
	return s.conn.Command("smu1 set enabled 0")
}

// Hello asks the controller board to identify itself.
func (s *SMU) Hello() (string, error) {
	return s.conn.Query("cloi hello")
}

// BoardTemperature reads the controller board temperature in Celsius.
func (s *SMU) BoardTemperature() (float64, error) {
	reply, err := s.conn.Query("temp read")
	if err != nil {
		return 0, err
	}
	t, err := strconv.ParseFloat(trimBrackets(reply), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected temperature reply %q: %v", reply, err)
	}
	return t, nil
}

func (s *SMU) Close() error {
	return s.conn.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
