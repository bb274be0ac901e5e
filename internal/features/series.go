package features

import (
	"math"
	"time"

	"github.com/lorraine/cropcast/internal/contracts"
)

// Weather column names. These are part of the model artifact contract (the
// regressors were trained against these exact names) and keep the historical
// spelling of the upstream merged table.
const (
	ColPressure    = "StnPres"
	ColTemperature = "Temperature"
	ColHumidity    = "RH"
	ColWindSpeed   = "WS"
	ColPrecip      = "Precp"
	ColTyphoon     = "typhoon"
)

// WeatherCols lists the weather columns in artifact order.
var WeatherCols = []string{
	ColPressure, ColTemperature, ColHumidity, ColWindSpeed, ColPrecip, ColTyphoon,
}

// Row is one day of a working series. Price is NaN for synthetic horizon rows
// until the engine writes a prediction back. Weather values are NaN when the
// source had a gap; the builder forward/back-fills them.
type Row struct {
	Date    time.Time
	Price   float64
	Weather [6]float64 // indexed like WeatherCols
}

// Series is a date-ascending sequence of rows.
type Series []Row

// FromObservations converts a history window into a working series.
func FromObservations(obs []contracts.Observation) Series {
	s := make(Series, len(obs))
	for i, o := range obs {
		s[i] = Row{
			Date:  o.Date,
			Price: o.Price,
			Weather: [6]float64{
				deref(o.Weather.Pressure),
				deref(o.Weather.Temperature),
				deref(o.Weather.Humidity),
				deref(o.Weather.WindSpeed),
				deref(o.Weather.Precip),
				deref(o.Weather.Typhoon),
			},
		}
	}
	return s
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// Prices returns the price column.
func (s Series) Prices() []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		out[i] = r.Price
	}
	return out
}

// WeatherColumn returns one weather column by WeatherCols index.
func (s Series) WeatherColumn(idx int) []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		out[i] = r.Weather[idx]
	}
	return out
}
