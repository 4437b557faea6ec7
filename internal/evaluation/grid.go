package evaluation

import (
	"math"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

const (
	maxGridSize = 10_000_000
	gridEpsilon = 1e-9
)

// Grid is a half-open threshold range [Start, Stop) sampled every Step.
type Grid struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Step  float64 `json:"step"`
}

// Validate rejects empty, descending and unrepresentable ranges.
func (g Grid) Validate() error {
	_, err := g.size()
	return err
}

func (g Grid) size() (int, error) {
	for _, v := range []float64{g.Start, g.Stop, g.Step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, apperrors.Newf(apperrors.ErrConfiguration, 0, "threshold grid %+v has a non-finite bound", g)
		}
	}
	if g.Step <= 0 {
		return 0, apperrors.Newf(apperrors.ErrConfiguration, 0, "threshold grid step must be positive, got %g", g.Step)
	}
	if g.Stop <= g.Start {
		return 0, apperrors.Newf(apperrors.ErrConfiguration, 0, "threshold grid [%g, %g) is empty or descending", g.Start, g.Stop)
	}
	// The epsilon keeps rounding noise such as 0.3/0.005 = 60.00000000000001
	// from adding a value at Stop.
	n := math.Ceil((g.Stop-g.Start)/g.Step - gridEpsilon)
	if n < 1 || n > maxGridSize {
		return 0, apperrors.Newf(apperrors.ErrConfiguration, 0, "threshold grid [%g, %g) step %g has %g values", g.Start, g.Stop, g.Step, n)
	}
	return int(n), nil
}

// Values returns Start, Start+Step, ... below Stop in ascending order.
func (g Grid) Values() ([]float64, error) {
	n, err := g.size()
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = g.Start + float64(i)*g.Step
	}
	return out, nil
}
