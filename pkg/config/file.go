package config

import (
	"encoding/json"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RawFile is the on-disk JSON shape. Pointer fields distinguish "absent"
// from zero so a partial file only overrides what it names.
type RawFile struct {
	StagePort          *string  `json:"stagePort,omitempty"`
	ProbePort          *string  `json:"probePort,omitempty"`
	ContactHeightMM    *float64 `json:"contactHeightMM,omitempty"`
	StepsPerMM         *float64 `json:"stepsPerMM,omitempty"`
	SettlingSeconds    *float64 `json:"settlingSeconds,omitempty"`
	RetryIncrementMM   *float64 `json:"retryIncrementMM,omitempty"`
	MaxContactHeightMM *float64 `json:"maxContactHeightMM,omitempty"`
	TestVoltage        *float64 `json:"testVoltage,omitempty"`
	ContactThresholdA  *float64 `json:"contactThresholdA,omitempty"`
	StartV             *float64 `json:"startV,omitempty"`
	EndV               *float64 `json:"endV,omitempty"`
	StepV              *float64 `json:"stepV,omitempty"`
	CurrentLimitA      *float64 `json:"currentLimitA,omitempty"`
	CorrectionFactor   *float64 `json:"correctionFactor,omitempty"`
	ResultsDir         *string  `json:"resultsDir,omitempty"`
}

// LoadFile reads a JSON config file and merges it over the defaults.
// A missing file is not an error: defaults are returned as-is.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("path", path).Debug("no config file, using defaults")
			return cfg, nil
		}
		return cfg, pkgerrors.Wrapf(err, "failed to read config %s", path)
	}

	var raw RawFile
	if err := json.Unmarshal(b, &raw); err != nil {
		return cfg, pkgerrors.Wrapf(err, "failed to parse config %s", path)
	}

	cfg = cfg.merge(raw)
	logrus.WithField("path", path).Info("config loaded")
	return cfg, nil
}

func (c Config) merge(raw RawFile) Config {
	if raw.StagePort != nil {
		c.StagePort = *raw.StagePort
	}
	if raw.ProbePort != nil {
		c.ProbePort = *raw.ProbePort
	}
	if raw.ContactHeightMM != nil {
		c.ContactHeightMM = *raw.ContactHeightMM
	}
	if raw.StepsPerMM != nil {
		c.StepsPerMM = *raw.StepsPerMM
	}
	if raw.SettlingSeconds != nil {
		c.SettlingTime = time.Duration(*raw.SettlingSeconds * float64(time.Second))
	}
	if raw.RetryIncrementMM != nil {
		c.RetryIncrementMM = *raw.RetryIncrementMM
	}
	if raw.MaxContactHeightMM != nil {
		c.MaxContactHeightMM = *raw.MaxContactHeightMM
	}
	if raw.TestVoltage != nil {
		c.TestVoltage = *raw.TestVoltage
	}
	if raw.ContactThresholdA != nil {
		c.ContactThresholdA = *raw.ContactThresholdA
	}
	if raw.StartV != nil {
		c.StartV = *raw.StartV
	}
	if raw.EndV != nil {
		c.EndV = *raw.EndV
	}
	if raw.StepV != nil {
		c.StepV = *raw.StepV
	}
	if raw.CurrentLimitA != nil {
		c.CurrentLimitA = *raw.CurrentLimitA
	}
	if raw.CorrectionFactor != nil {
		c.CorrectionFactor = *raw.CorrectionFactor
	}
	if raw.ResultsDir != nil {
		c.ResultsDir = *raw.ResultsDir
	}
	return c
}

// LogrusFields summarizes the parameters that matter for a run, for the
// startup log line.
func (c Config) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"stagePort":       c.StagePort,
		"probePort":       c.ProbePort,
		"contactHeightMM": c.ContactHeightMM,
		"sweep":           [3]float64{c.StartV, c.EndV, c.StepV},
		"currentLimitA":   c.CurrentLimitA,
	}
}
