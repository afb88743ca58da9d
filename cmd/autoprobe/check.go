package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thinfilmlab/autoprobe/pkg/probe"
	"github.com/thinfilmlab/autoprobe/pkg/stage"
)

// The stage is considered at home when within this many steps of zero.
const homePositionTolerance = 10

func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify device connections and home the stage",
		Long: `Connect to both the stage controller and the four-point probe SMU, home the
stage if needed, and report whether the system is ready for measurements.
Run this before the first measurement after power-up.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			stageOK := checkStage(cfg.StagePort, cfg.StepsPerMM)
			probeOK := checkProbe(cfg.ProbePort)

			fmt.Println("----------------------------------------")
			printStatus("Stage", stageOK)
			printStatus("Four-Point Probe", probeOK)
			fmt.Println("----------------------------------------")

			if !stageOK || !probeOK {
				return fmt.Errorf("system not ready")
			}
			color.New(color.FgGreen).Println("All systems ready.")
			return nil
		},
	}
}

func checkStage(port string, stepsPerMM float64) bool {
	log := logrus.WithField("device", "stage")

	conn, err := stage.OpenKinesis(port)
	if err != nil {
		log.WithError(err).Error("connection failed")
		return false
	}
	defer conn.Close()

	st := stage.New(conn, stepsPerMM)
	if err := st.Connect(); err != nil {
		log.WithError(err).Error("failed to enable motor channel")
		return false
	}

	homed, err := st.IsHomed()
	if err != nil {
		log.WithError(err).Error("failed to read stage status")
		return false
	}

	if !homed {
		log.Info("stage is not homed, starting homing sequence (this may take up to 2 minutes)")
		if err := st.Home(); err != nil {
			log.WithError(err).Error("homing failed")
			return false
		}
		log.Info("homing complete")
	}

	pos, err := st.Position()
	if err != nil {
		log.WithError(err).Error("failed to read stage position")
		return false
	}
	log.WithField("steps", pos).Info("stage position")

	if pos > homePositionTolerance || pos < -homePositionTolerance {
		log.Info("moving stage to home position")
		if err := st.MoveToHeight(0); err != nil {
			log.WithError(err).Error("failed to move stage home")
			return false
		}
	}

	return true
}

func checkProbe(port string) bool {
	log := logrus.WithField("device", "probe")

	conn, err := probe.OpenXtralien(port)
	if err != nil {
		log.WithError(err).Error("connection failed")
		return false
	}
	defer conn.Close()

	smu := probe.New(conn)

	hello, err := smu.Hello()
	if err != nil {
		log.WithError(err).Error("device did not respond")
		return false
	}
	log.WithField("response", hello).Info("probe responded")

	temp, err := smu.BoardTemperature()
	if err != nil {
		log.WithError(err).Error("failed to read board temperature")
		return false
	}
	log.WithField("celsius", temp).Info("board temperature")

	return true
}

func printStatus(name string, ok bool) {
	if ok {
		fmt.Printf("%-18s %s\n", name+":", color.GreenString("READY"))
	} else {
		fmt.Printf("%-18s %s\n", name+":", color.RedString("FAILED"))
	}
}
