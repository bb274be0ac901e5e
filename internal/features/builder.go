package features

import (
	"math"
	"strconv"
)

// Rolling window sets. Fixed by the trained models.
var (
	weatherWindows = []int{3, 7, 14, 30}
	priceLags      = []int{1, 3, 7, 14, 30}
	priceMAWindows = []int{7, 14, 30}
)

// Frame is a series augmented with derived feature columns. It is transient:
// rebuilt on demand and never persisted.
type Frame struct {
	rows Series
	cols map[string][]float64
}

// NewFrame seeds a frame with the raw columns (filled weather values are set
// by the weather stage).
func NewFrame(s Series) *Frame {
	f := &Frame{rows: s, cols: make(map[string][]float64)}
	for w, name := range WeatherCols {
		f.cols[name] = s.WeatherColumn(w)
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Has reports whether a column was computed.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Value returns column name at row i; NaN when the column is missing.
func (f *Frame) Value(name string, i int) float64 {
	col, ok := f.cols[name]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

func (f *Frame) set(name string, col []float64) { f.cols[name] = col }

// Builder derives the feature columns the regressors consume. Every derived
// column is computed from shifted (t-1) values so a day's own price or
// weather never leaks into its own feature row; it is therefore safe to call
// on a series whose last row is a synthetic horizon day with an unknown
// price.
type Builder struct{}

// NewBuilder returns a feature builder.
func NewBuilder() *Builder { return &Builder{} }

// Build runs the three stages over a series and returns the augmented frame.
func (b *Builder) Build(s Series) *Frame {
	f := NewFrame(s)
	b.TimeFeatures(f)
	b.WeatherFeatures(f)
	b.PriceFeatures(f)
	return f
}

// TimeFeatures appends calendar columns: day-of-week (Monday=0, matching the
// training data), day-of-year, and the cyclic encodings of day-of-year.
func (b *Builder) TimeFeatures(f *Frame) {
	n := f.Len()
	dow := make([]float64, n)
	doy := make([]float64, n)
	sin := make([]float64, n)
	cos := make([]float64, n)
	for i, r := range f.rows {
		dow[i] = float64((int(r.Date.Weekday()) + 6) % 7)
		doy[i] = float64(r.Date.YearDay())
		sin[i] = math.Sin(2 * math.Pi * doy[i] / 365.0)
		cos[i] = math.Cos(2 * math.Pi * doy[i] / 365.0)
	}
	f.set("dayofweek", dow)
	f.set("dayofyear", doy)
	f.set("day_sin", sin)
	f.set("day_cos", cos)
}

// WeatherFeatures fills gaps in each weather column (forward then backward),
// then appends rolling means/stds, a 1-step delta, and a 30-day z-score, all
// computed from the shifted series.
func (b *Builder) WeatherFeatures(f *Frame) {
	for _, name := range WeatherCols {
		raw, ok := f.cols[name]
		if !ok {
			continue
		}
		filled := fillBackward(fillForward(raw))
		f.set(name, filled)

		base := shift(filled, 1)
		for _, w := range weatherWindows {
			mp := max(1, w/3)
			f.set(colName(name, "ma", w), rollingMean(base, w, mp))
			f.set(colName(name, "std", w), rollingStd(base, w, mp))
		}

		rollMean := rollingMean(base, 30, 5)
		rollStd := rollingStd(base, 30, 5)
		f.set(name+"_delta1", diff1(base))

		z := make([]float64, len(base))
		for i := range z {
			sd := rollStd[i]
			if sd == 0 {
				sd = math.NaN()
			}
			v := (base[i] - rollMean[i]) / sd
			if math.IsNaN(v) {
				v = 0
			}
			z[i] = v
		}
		f.set(name+"_z30", z)
	}
}

// PriceFeatures appends lag, moving-average, change, volatility, and
// above-MA columns derived from the price series.
func (b *Builder) PriceFeatures(f *Frame) {
	y := f.rows.Prices()
	n := len(y)

	for _, lag := range priceLags {
		f.set(colName("y", "lag", lag), shift(y, lag))
	}

	y1 := shift(y, 1)
	for _, w := range priceMAWindows {
		mp := max(1, w/3)
		f.set(colName("y", "ma", w), rollingMean(y1, w, mp))
	}

	y2 := shift(y, 2)
	change := make([]float64, n)
	for i := range change {
		change[i] = y1[i] - y2[i]
	}
	f.set("y_change_1", change)

	f.set("y_volatility_7", rollingStd(y1, 7, 3))
	f.set("y_volatility_14", rollingStd(y1, 14, 5))

	ma7 := f.cols["y_ma_7"]
	ma30 := f.cols["y_ma_30"]
	above7 := make([]float64, n)
	above30 := make([]float64, n)
	for i := range y {
		above7[i] = aboveIndicator(y[i], ma7[i])
		above30[i] = aboveIndicator(y[i], ma30[i])
	}
	f.set("y_above_ma7", above7)
	f.set("y_above_ma30", above30)
}

// aboveIndicator is 1 when price is strictly above the moving average and 0
// otherwise, including when either side is undefined.
func aboveIndicator(price, ma float64) float64 {
	if math.IsNaN(price) || math.IsNaN(ma) {
		return 0
	}
	if price > ma {
		return 1
	}
	return 0
}

func colName(prefix, kind string, w int) string {
	return prefix + "_" + kind + "_" + strconv.Itoa(w)
}
