package measure

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Result holds the quantities derived from a completed sweep.
type Result struct {
	// Resistance is the effective dV/dI slope fitted across all samples.
	Resistance float64
	// SheetResistance is Resistance scaled by the geometry correction
	// factor, in Ohm/sq.
	SheetResistance float64
	// Conductivity in S/m; valid only when HasConductivity is set.
	Conductivity    float64
	HasConductivity bool
	// ContactOverridden notes that the contact check was forced past a poor
	// reading; carried into the output as a warning annotation.
	ContactOverridden bool
}

// DomainError reports physically invalid inputs to a derived-quantity
// computation.
type DomainError struct {
	Reason string
}

func (e *DomainError) Error() string {
	return "domain error: " + e.Reason
}

// ComputeResult derives the sheet resistance from a sweep. The effective
// resistance is the slope of a least-squares linear fit of V against I over
// the full sweep; a single-point V/I ratio would be thrown off by contact
// offsets at low bias.
func ComputeResult(samples []Sample, correctionFactor float64) (Result, error) {
	if len(samples) < 2 {
		return Result{}, fmt.Errorf("need at least 2 samples to fit, got %d", len(samples))
	}

	currents := make([]float64, len(samples))
	voltages := make([]float64, len(samples))
	for k, s := range samples {
		currents[k] = s.I
		voltages[k] = s.V
	}

	// V = alpha + R*I; the slope is dV/dI.
	_, slope := stat.LinearRegression(currents, voltages, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return Result{}, &DomainError{Reason: "sweep currents carry no slope information"}
	}

	return Result{
		Resistance:      slope,
		SheetResistance: correctionFactor * slope,
	}, nil
}

// Conductivity derives sigma = 1/(Rs*t) in S/m from a sheet resistance in
// Ohm/sq and a film thickness in meters.
func Conductivity(sheetResistance, thicknessM float64) (float64, error) {
	if sheetResistance <= 0 {
		return 0, &DomainError{Reason: fmt.Sprintf("sheet resistance must be positive, got %g Ohm/sq", sheetResistance)}
	}
	if thicknessM <= 0 {
		return 0, &DomainError{Reason: fmt.Sprintf("film thickness must be positive, got %g m", thicknessM)}
	}
	return 1 / (sheetResistance * thicknessM), nil
}
