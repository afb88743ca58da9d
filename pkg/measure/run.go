package measure

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thinfilmlab/autoprobe/pkg/config"
)

// ResultWriter persists a completed run. Implemented by pkg/result.
type ResultWriter interface {
	Write(sampleName string, ts time.Time, samples []Sample, res Result) (csvPath, pngPath string, err error)
}

// Runner sequences a full measurement run against already-opened devices.
// It does not own the device connections; the caller closes them. It does
// guarantee that the SMU is disarmed and the stage is returned home on every
// exit path, including user abort and mid-sweep faults.
type Runner struct {
	cfg    config.Config
	stage  StageControl
	probe  ProbeControl
	decide DecisionProvider
	writer ResultWriter

	now func() time.Time // test seam
}

func NewRunner(cfg config.Config, st StageControl, pr ProbeControl, dp DecisionProvider, w ResultWriter) *Runner {
	return &Runner{
		cfg:    cfg,
		stage:  st,
		probe:  pr,
		decide: dp,
		writer: w,
		now:    time.Now,
	}
}

// Run measures sheet resistance only.
func (r *Runner) Run(sampleName string) (Result, error) {
	return r.run(sampleName, false, 0)
}

// RunWithConductivity additionally derives conductivity from the film
// thickness in meters.
func (r *Runner) RunWithConductivity(sampleName string, thicknessM float64) (Result, error) {
	return r.run(sampleName, true, thicknessM)
}

func (r *Runner) run(sampleName string, withConductivity bool, thicknessM float64) (Result, error) {
	log := logrus.WithField("sample", sampleName)
	log.Info("starting measurement run")

	defer func() {
		if err := r.probe.Shutdown(); err != nil {
			log.WithError(err).Error("failed to disarm SMU")
		}
		log.Info("returning stage home")
		if err := r.stage.Home(); err != nil {
			log.WithError(err).Error("failed to return stage home")
		}
	}()

	if err := r.probe.Configure(r.cfg.CurrentLimitA); err != nil {
		return Result{}, err
	}

	verifier := NewVerifier(r.stage, r.probe, r.decide, VerifierParams{
		SettlingTime:      r.cfg.SettlingTime,
		TestVoltage:       r.cfg.TestVoltage,
		ContactThresholdA: r.cfg.ContactThresholdA,
		RetryIncrementMM:  r.cfg.RetryIncrementMM,
		MaxHeightMM:       r.cfg.MaxContactHeightMM,
	})

	contact, err := verifier.Run(r.cfg.ContactHeightMM)
	if err != nil {
		return Result{}, err
	}

	samples, err := RunSweep(r.probe, SweepParams{
		StartV: r.cfg.StartV,
		EndV:   r.cfg.EndV,
		StepV:  r.cfg.StepV,
	})
	if err != nil {
		return Result{}, err
	}

	res, err := ComputeResult(samples, r.cfg.CorrectionFactor)
	if err != nil {
		return Result{}, err
	}
	res.ContactOverridden = contact.Overridden

	// A conductivity domain error is fatal for the run's exit status, but
	// the sheet-resistance result is still persisted without it.
	var domainErr error
	if withConductivity {
		sigma, err := Conductivity(res.SheetResistance, thicknessM)
		if err != nil {
			log.WithError(err).Error("conductivity not computed")
			domainErr = err
		} else {
			res.Conductivity = sigma
			res.HasConductivity = true
		}
	}

	csvPath, pngPath, err := r.writer.Write(sampleName, r.now(), samples, res)
	if err != nil {
		return res, err
	}

	log.WithFields(logrus.Fields{
		"csv":             csvPath,
		"png":             pngPath,
		"resistance":      res.Resistance,
		"sheetResistance": res.SheetResistance,
	}).Info("measurement complete")

	return res, domainErr
}
