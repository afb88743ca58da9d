// Package prompt holds the interactive console surfaces, kept apart from
// the measurement core so the core runs without a terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"github.com/thinfilmlab/autoprobe/pkg/measure"
)

const defaultSampleName = "FTO"

// Terminal reads prompts from an input stream and writes them to an output
// stream, normally stdin/stdout.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

var _ measure.DecisionProvider = (*Terminal)(nil)

func NewTerminal() *Terminal {
	return New(os.Stdin, os.Stdout)
}

func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// SampleName asks for the sample name, sanitized for use in a filename.
// An empty answer selects the default.
func (t *Terminal) SampleName() (string, error) {
	fmt.Fprintf(t.out, "Enter sample name (or press Enter for %q): ", defaultSampleName)
	line, err := t.readLine()
	if err != nil {
		return "", err
	}

	name := SanitizeSampleName(line)
	if name == "" {
		name = defaultSampleName
	}
	return name, nil
}

// ThicknessMeters asks for the film thickness in millimeters and returns it
// in meters, re-prompting until the value is positive.
func (t *Terminal) ThicknessMeters() (float64, error) {
	for {
		fmt.Fprint(t.out, "Enter film thickness in mm (e.g., 0.001): ")
		line, err := t.readLine()
		if err != nil {
			return 0, err
		}

		mm, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			fmt.Fprintln(t.out, "Invalid input. Please enter a number.")
			continue
		}
		if mm <= 0 {
			fmt.Fprintln(t.out, "Thickness must be positive.")
			continue
		}
		return mm * 1e-3, nil
	}
}

// Confirm waits for Enter before hardware motion starts.
func (t *Terminal) Confirm(msg string) error {
	fmt.Fprintf(t.out, "%s ", msg)
	_, err := t.readLine()
	return err
}

// PoorContact presents the Retry/Abort/Override choice for a failed contact
// check and re-prompts on anything else.
func (t *Terminal) PoorContact(heightMM, measuredA, thresholdA float64) (measure.Decision, error) {
	warn := color.New(color.FgYellow)
	warn.Fprintln(t.out, "WARNING: low or no current detected.")
	fmt.Fprintf(t.out, "Measured %.4f mA, need at least %.4f mA for good contact.\n",
		measuredA*1000, thresholdA*1000)
	fmt.Fprintf(t.out, "Current height: %.2f mm\n", heightMM)
	fmt.Fprintln(t.out, "Options:")
	fmt.Fprintln(t.out, "  1. Retry at higher position")
	fmt.Fprintln(t.out, "  2. Abort and check sample placement")
	fmt.Fprintln(t.out, "  3. Override and measure anyway")

	for {
		fmt.Fprint(t.out, "Enter choice (1/2/3): ")
		line, err := t.readLine()
		if err != nil {
			return measure.DecisionAbort, err
		}

		switch strings.TrimSpace(line) {
		case "1":
			return measure.DecisionRetry, nil
		case "2":
			return measure.DecisionAbort, nil
		case "3":
			return measure.DecisionOverride, nil
		default:
			fmt.Fprintln(t.out, "Invalid choice. Please enter 1, 2, or 3.")
		}
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// SanitizeSampleName keeps letters, digits, spaces, dashes, and underscores
// so the name is safe in a filename.
func SanitizeSampleName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
