// Package result persists a completed measurement as a timestamped CSV and
// a matching I-V curve plot.
package result

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/thinfilmlab/autoprobe/pkg/measure"
)

const timestampLayout = "2006-01-02_15-04-05"

// Writer writes run outputs into a results directory, created on demand.
type Writer struct {
	dir string
}

var _ measure.ResultWriter = (*Writer)(nil)

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write produces {sample}_{timestamp}.csv and the matching .png and returns
// both paths.
func (w *Writer) Write(sampleName string, ts time.Time, samples []measure.Sample, res measure.Result) (string, string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", "", pkgerrors.Wrapf(err, "failed to create results dir %s", w.dir)
	}

	base := filepath.Join(w.dir, fmt.Sprintf("%s_%s", sampleName, ts.Format(timestampLayout)))
	csvPath := base + ".csv"
	pngPath := base + ".png"

	if err := w.writeCSV(csvPath, samples, res); err != nil {
		return "", "", err
	}
	logrus.WithField("path", csvPath).Info("saved data")

	if err := w.writePlot(pngPath, sampleName, samples, res); err != nil {
		return "", "", err
	}
	logrus.WithField("path", pngPath).Info("saved plot")

	return csvPath, pngPath, nil
}

func (w *Writer) writeCSV(path string, samples []measure.Sample, res measure.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	if res.ContactOverridden {
		if _, err := f.WriteString("# contact check overridden\n"); err != nil {
			return pkgerrors.Wrap(err, "failed to write override annotation")
		}
	}

	cw := csv.NewWriter(f)

	header := []string{"Current (A)", "Voltage (V)", "Sheet Resistance (Ohm/sq)"}
	if res.HasConductivity {
		header = append(header, "Conductivity (S/m)")
	}
	if err := cw.Write(header); err != nil {
		return pkgerrors.Wrap(err, "failed to write CSV header")
	}

	for _, s := range samples {
		row := []string{
			formatFloat(s.I),
			formatFloat(s.V),
			formatFloat(res.SheetResistance),
		}
		if res.HasConductivity {
			row = append(row, formatFloat(res.Conductivity))
		}
		if err := cw.Write(row); err != nil {
			return pkgerrors.Wrap(err, "failed to write CSV row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return pkgerrors.Wrap(err, "failed to flush CSV")
	}
	return f.Close()
}

func (w *Writer) writePlot(path, sampleName string, samples []measure.Sample, res measure.Result) error {
	p := plot.New()

	title := fmt.Sprintf("IV Curve - %s\nRs: %.2f Ohm/sq", sampleName, res.SheetResistance)
	if res.HasConductivity {
		title += fmt.Sprintf(" | Sigma: %.2e S/m", res.Conductivity)
	}
	if res.ContactOverridden {
		title += " (contact overridden)"
	}
	p.Title.Text = title
	p.X.Label.Text = "Voltage (V)"
	p.Y.Label.Text = "Current (A)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(samples))
	for k, s := range samples {
		pts[k].X = s.V
		pts[k].Y = s.I
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to build plot series")
	}
	p.Add(line, points)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return pkgerrors.Wrapf(err, "failed to save plot %s", path)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
