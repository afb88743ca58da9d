package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thinfilmlab/autoprobe/pkg/measure"
	"github.com/thinfilmlab/autoprobe/pkg/probe"
	"github.com/thinfilmlab/autoprobe/pkg/prompt"
	"github.com/thinfilmlab/autoprobe/pkg/result"
	"github.com/thinfilmlab/autoprobe/pkg/stage"
)

func NewMeasureCommand() *cobra.Command {
	var (
		sampleName       string
		withConductivity bool
		thicknessMM      float64
		yes              bool
	)

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Run an automated sheet-resistance measurement",
		Long: `Run a full measurement: move the stage to contact height, verify electrical
contact (with interactive retry on poor contact), sweep the voltage range,
derive the sheet resistance, and save a timestamped CSV and I-V plot.

With --conductivity, the film conductivity is derived from the thickness as
well. The thickness is prompted for unless --thickness-mm is given.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logrus.WithFields(cfg.LogrusFields()).Info("starting up")

			term := prompt.NewTerminal()

			if sampleName == "" {
				sampleName, err = term.SampleName()
				if err != nil {
					return err
				}
			} else {
				sampleName = prompt.SanitizeSampleName(sampleName)
				if sampleName == "" {
					return fmt.Errorf("sample name contains no usable characters")
				}
			}

			thicknessM := thicknessMM * 1e-3
			if withConductivity && thicknessMM == 0 {
				thicknessM, err = term.ThicknessMeters()
				if err != nil {
					return err
				}
			}

			stageConn, err := stage.OpenKinesis(cfg.StagePort)
			if err != nil {
				return err
			}
			defer stageConn.Close()

			probeConn, err := probe.OpenXtralien(cfg.ProbePort)
			if err != nil {
				return err
			}
			defer probeConn.Close()

			st := stage.New(stageConn, cfg.StepsPerMM)
			if err := st.Connect(); err != nil {
				return err
			}
			smu := probe.New(probeConn)

			if !yes {
				fmt.Println("Ensure the sample is placed on the stage and the probe is positioned above it.")
				if err := term.Confirm("Press Enter to begin measurement..."); err != nil {
					return err
				}
			}

			runner := measure.NewRunner(cfg, st, smu, term, result.NewWriter(cfg.ResultsDir))

			var res measure.Result
			if withConductivity {
				res, err = runner.RunWithConductivity(sampleName, thicknessM)
			} else {
				res, err = runner.Run(sampleName)
			}
			if err != nil {
				return err
			}

			printSummary(sampleName, res)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sampleName, "sample", "", "sample name (prompted for when empty)")
	flags.BoolVar(&withConductivity, "conductivity", false, "also derive conductivity from film thickness")
	flags.Float64Var(&thicknessMM, "thickness-mm", 0, "film thickness in mm (implies --conductivity)")
	flags.BoolVarP(&yes, "yes", "y", false, "skip the start confirmation prompt")

	cmd.PreRun = func(_ *cobra.Command, _ []string) {
		if thicknessMM != 0 {
			withConductivity = true
		}
	}

	return cmd
}

func printSummary(sampleName string, res measure.Result) {
	bold := func(format string, a ...interface{}) string {
		return color.New(color.Bold).Sprintf(format, a...)
	}

	fmt.Println("----------------------------------------")
	fmt.Println("RESULTS SUMMARY")
	fmt.Println("----------------------------------------")
	fmt.Printf("Sample:           %s\n", bold("%s", sampleName))
	fmt.Printf("Resistance:       %s\n", bold("%.4f Ohm", res.Resistance))
	fmt.Printf("Sheet Resistance: %s\n", bold("%.4f Ohm/sq", res.SheetResistance))
	if res.HasConductivity {
		fmt.Printf("Conductivity:     %s\n", bold("%.4e S/m", res.Conductivity))
	}
	if res.ContactOverridden {
		color.New(color.FgYellow).Println("Note: contact check was overridden for this run.")
	}
	fmt.Println("----------------------------------------")
}
