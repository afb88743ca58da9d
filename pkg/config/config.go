// Package config holds the measurement station configuration.
//
// A Config is loaded once at startup (defaults, optionally merged with a JSON
// config file) and then passed by value into each component. Nothing mutates
// it after load.
package config

import (
	"fmt"
	"time"
)

// Config is the full set of parameters for a measurement run.
type Config struct {
	// Device ports.
	StagePort string
	ProbePort string

	// Stage geometry and motion.
	ContactHeightMM    float64
	StepsPerMM         float64
	SettlingTime       time.Duration
	RetryIncrementMM   float64
	MaxContactHeightMM float64

	// Contact verification.
	TestVoltage       float64
	ContactThresholdA float64

	// Voltage sweep.
	StartV        float64
	EndV          float64
	StepV         float64
	CurrentLimitA float64

	// Sheet-resistance geometry correction (4.532 for a 6cm x 6cm sample).
	CorrectionFactor float64

	// Output.
	ResultsDir string
}

// Default returns the station's calibrated defaults.
func Default() Config {
	return Config{
		StagePort:          "/dev/ttyUSB0",
		ProbePort:          "/dev/ttyACM0",
		ContactHeightMM:    5.4,
		StepsPerMM:         34304,
		SettlingTime:       time.Second,
		RetryIncrementMM:   0.1,
		MaxContactHeightMM: 8.0,
		TestVoltage:        0.1,
		ContactThresholdA:  0.0001,
		StartV:             -0.5,
		EndV:               0.5,
		StepV:              0.02,
		CurrentLimitA:      0.2,
		CorrectionFactor:   4.532,
		ResultsDir:         "results",
	}
}

// Validate rejects configurations that would produce an empty sweep or
// physically unsafe stage travel.
func (c Config) Validate() error {
	if c.StepsPerMM <= 0 {
		return fmt.Errorf("stepsPerMM must be positive, got %v", c.StepsPerMM)
	}
	if c.StepV <= 0 {
		return fmt.Errorf("stepV must be positive, got %v", c.StepV)
	}
	if c.StartV > c.EndV {
		return fmt.Errorf("startV (%v) must not exceed endV (%v)", c.StartV, c.EndV)
	}
	if c.ContactHeightMM <= 0 {
		return fmt.Errorf("contactHeightMM must be positive, got %v", c.ContactHeightMM)
	}
	if c.RetryIncrementMM <= 0 {
		return fmt.Errorf("retryIncrementMM must be positive, got %v", c.RetryIncrementMM)
	}
	if c.MaxContactHeightMM < c.ContactHeightMM {
		return fmt.Errorf("maxContactHeightMM (%v) must not be below contactHeightMM (%v)",
			c.MaxContactHeightMM, c.ContactHeightMM)
	}
	if c.CurrentLimitA <= 0 {
		return fmt.Errorf("currentLimitA must be positive, got %v", c.CurrentLimitA)
	}
	if c.ContactThresholdA <= 0 {
		return fmt.Errorf("contactThresholdA must be positive, got %v", c.ContactThresholdA)
	}
	if c.CorrectionFactor <= 0 {
		return fmt.Errorf("correctionFactor must be positive, got %v", c.CorrectionFactor)
	}
	return nil
}
