package simulator

import (
	"math"
	"strconv"

	"github.com/rickgao/tsfeed/internal/model"
)

// Spectrum returns the single-sided magnitude spectrum of values sampled at
// sampleRate Hz, one point per bin from DC up to Nyquist. The mean is not
// removed.
func Spectrum(values []float64, sampleRate float64) []model.FrequencyPoint {
	n := len(values)
	if n == 0 || sampleRate <= 0 {
		return []model.FrequencyPoint{}
	}

	bins := n/2 + 1
	out := make([]model.FrequencyPoint, 0, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		for t, v := range values {
			angle := 2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += v * math.Cos(angle)
			im -= v * math.Sin(angle)
		}
		freq := float64(k) * sampleRate / float64(n)
		out = append(out, model.FrequencyPoint{
			Frequency: strconv.FormatFloat(freq, 'f', 4, 64),
			Magnitude: math.Hypot(re, im) / float64(n),
		})
	}
	return out
}
