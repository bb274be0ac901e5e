package forecast

import (
	"math"
	"time"

	"github.com/lorraine/cropcast/internal/contracts"
	"github.com/lorraine/cropcast/internal/features"
)

// trailingWindow is how many rows the working series retains between steps.
// The widest feature looks back 31 rows (a 30-day rolling window over the
// once-shifted series); 64 keeps a comfortable margin while bounding the
// per-step feature recomputation as the horizon grows.
const trailingWindow = 64

// workingSeries is the rolling state of one forecast: the trailing slice of
// history plus the synthetic horizon rows appended so far. Each predicted
// price is written back into it, so later steps compute their lag and
// rolling features against earlier predictions (autoregressive feedback).
type workingSeries struct {
	rows features.Series
}

func newWorkingSeries(obs []contracts.Observation) *workingSeries {
	return &workingSeries{rows: features.FromObservations(obs)}
}

// appendSynthetic adds a horizon row for date with an unknown price and the
// most recent known weather carried forward unchanged (future weather is
// approximated as persistence of the last observation).
func (s *workingSeries) appendSynthetic(date time.Time) {
	row := features.Row{Date: date, Price: math.NaN()}
	if n := len(s.rows); n > 0 {
		row.Weather = s.rows[n-1].Weather
	} else {
		for i := range row.Weather {
			row.Weather[i] = math.NaN()
		}
	}
	s.rows = append(s.rows, row)
}

// setLastPrice writes a prediction back into the newest row.
func (s *workingSeries) setLastPrice(price float64) {
	if n := len(s.rows); n > 0 {
		s.rows[n-1].Price = price
	}
}

// trim drops rows older than the trailing window. Every feature of the
// newest row is unaffected: nothing looks back further than the window.
func (s *workingSeries) trim() {
	if len(s.rows) > trailingWindow {
		s.rows = s.rows[len(s.rows)-trailingWindow:]
	}
}

func (s *workingSeries) len() int { return len(s.rows) }
