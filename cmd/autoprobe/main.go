package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thinfilmlab/autoprobe/pkg/config"
	"github.com/thinfilmlab/autoprobe/pkg/stage"
)

var (
	logLevel   = "info"
	configPath = "autoprobe.json"
	stagePort  = ""
	probePort  = ""
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, stage.ErrNotHomed) {
		fmt.Fprintln(os.Stderr, "\nError: the stage is not homed")
		fmt.Fprintln(os.Stderr, "Run 'autoprobe check' first to home the stage.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoprobe",
		Short: "autoprobe runs automated four-point probe sheet-resistance measurements",
		Long: `autoprobe drives a motorized vertical stage and a four-point probe SMU to
measure the sheet resistance (and optionally conductivity) of thin-film samples.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&stagePort, "stage-port", "", "serial port of the stage controller (overrides config)")
	globalFlags.StringVar(&probePort, "probe-port", "", "serial port of the four-point probe SMU (overrides config)")

	cmd.AddCommand(
		NewMeasureCommand(),
		NewCheckCommand(),
		NewVersionCommand(),
	)

	return cmd
}

// loadConfig merges the config file over defaults and applies port flag
// overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return cfg, err
	}
	if stagePort != "" {
		cfg.StagePort = stagePort
	}
	if probePort != "" {
		cfg.ProbePort = probePort
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
