package sentiment

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/vadiminshakov/fgi/internal/domain"
)

// TrendWindow number of points drawn per trend line, the live value included.
const TrendWindow = 30

// Rect plot area in image coordinates.
type Rect struct {
	X, Y, W, H float64
}

// TrendSeries appends the live value to the tail of history, keeping at most limit points.
func TrendSeries(history []int, now, limit int) []int {
	if limit < 1 {
		limit = 1
	}
	keep := limit - 1
	if len(history) > keep {
		history = history[len(history)-keep:]
	}
	series := make([]int, 0, len(history)+1)
	series = append(series, history...)
	return append(series, now)
}

// PlotPoint maps the i-th of n values onto r. Index spans the width, value spans the height
// with 0 at the bottom edge.
func PlotPoint(r Rect, i, n, v int) (float64, float64) {
	x := r.X + r.W
	if n > 1 {
		x = r.X + float64(i)/float64(n-1)*r.W
	}
	y := r.Y + r.H - float64(clamp(v))/float64(domain.MaxValue)*r.H
	return x, y
}

// MovingAverage returns the simple moving average of series over period points.
func MovingAverage(series []int, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(series) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(series))
	}

	values := make([]float64, len(series))
	for i, v := range series {
		values[i] = float64(v)
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values))), nil
}

// LatestMovingAverage returns the most recent moving average point.
func LatestMovingAverage(series []int, period int) (float64, bool) {
	avg, err := MovingAverage(series, period)
	if err != nil || len(avg) == 0 {
		return 0, false
	}
	return avg[len(avg)-1], true
}
