package burst

import(
	"math"

	"github.com/burstmerge/burstmerge/pkg/bmath"
	"github.com/burstmerge/burstmerge/pkg/mosaic"
)

// sensorMax is the representable ceiling for output samples.
const sensorMax = 65535.0

// headroomGain estimates how much linear gain fits before the
// brightest (locally averaged) value would clip: 90% of the remaining
// headroom, clamped to [1, 16].
func headroomGain(white, blackMin, maxValue float32) float32 {
	if maxValue <= blackMin {
		return 16
	}
	gain := 0.9 * (white - blackMin) / (maxValue - blackMin)
	if gain < 1 { gain = 1 }
	if gain > 16 { gain = 16 }
	return gain
}

// toneCurveA is a Reinhard-style operator, x*(1+x/g^2)/(1+x). It is
// monotone in x and maps x=g to exactly 1, so full-scale input lands
// at full scale.
func toneCurveA(x, g float64) float64 {
	return x * (1 + x/(g*g)) / (1 + x)
}

// toneCurveB is the plain Reinhard x/(1+x), renormalized so x=g maps
// to 1. More compressive in the highlights than toneCurveA.
func toneCurveB(x, g float64) float64 {
	return x / (1 + x) * (1 + g) / g
}

// curveGains derives the two candidate lifts for a given stop count:
// gain0 damps the lift above 1.5 stops to protect highlights, gain1
// carries the full lift and relies on the more compressive curve.
func curveGains(linearGain float32, stops float64) (g0, g1, blend float64) {
	stops0 := stops
	if stops0 > 1.5 {
		stops0 = 1.5 + 0.7*(stops0-1.5)
	}
	g0 = float64(linearGain) * math.Exp2(stops0)
	g1 = float64(linearGain) * math.Exp2(stops)

	blend = stops / 4
	if blend < 0 { blend = 0 }
	if blend > 1 { blend = 1 }
	return g0, g1, blend
}

// blendedTone maps a normalized luminance through both curves and
// blends by stop count: pure curve A at 0 stops, pure curve B at 4.
func blendedTone(y, g0, g1, blend float64) float64 {
	t0 := toneCurveA(y*g0, g0)
	t1 := toneCurveB(y*g1, g1)
	return (1-blend)*t0 + blend*t1
}

// representativeBlackLevels picks the per-cell black levels used for
// correction: the mean across the burst when exposures are uniform,
// otherwise the levels of the longest exposure, whose dark-current
// estimate is the most reliable.
func representativeBlackLevels(frames []*Frame) []float32 {
	if !UniformExposure(frames) {
		return longestExposure(frames).Meta.CFA.BlackLevels
	}

	cells := frames[0].Meta.CFA.NumCells()
	sum := make([]float32, cells)
	n := 0
	for _, f := range frames {
		if !f.Meta.CFA.HasBlackLevels() {
			continue
		}
		for i, b := range f.Meta.CFA.BlackLevels {
			sum[i] += b
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float32(n)
	}
	return sum
}

// correctExposure normalizes exposure bias and applies the protective
// tone curve to the merged buffer, in place. Missing calibration data
// skips the stage; it never fails.
func (e *Engine)correctExposure(merged *bmath.Grid, frames []*Frame, ref int) {
	mode := e.cfg.ExposureControl
	if mode == ExposureOff {
		return
	}

	cfa := frames[ref].Meta.CFA
	blacks := representativeBlackLevels(frames)
	if !cfa.HasWhiteLevel() || len(blacks) != cfa.NumCells() {
		e.log.Warn("exposure correction skipped: white or black levels unavailable")
		return
	}
	repCFA := cfa
	repCFA.BlackLevels = blacks

	// Local luminance estimate, then its exact global maximum via the
	// two-pass reduction. Both must land before the correction kernel
	// reads them.
	blur := merged.PeriodBlur(cfa.PatternWidth)
	maxValue := blur.ReduceMax()

	white := cfa.WhiteLevel
	gain := headroomGain(white, repCFA.MinBlackLevel(), maxValue)
	e.log.Debugf("exposure: blurred max %.1f, headroom gain %.3f", maxValue, gain)

	switch mode {
	case ExposureCurve0EV, ExposureCurve1EV:
		targetBias := 0
		if mode == ExposureCurve1EV {
			targetBias = 100
		}
		stops := float64(targetBias-frames[ref].Meta.ExposureBias)/100.0 - math.Log2(float64(gain))
		if stops < 0 { stops = 0 }
		if stops > 4 { stops = 4 }
		e.applyCurve(merged, &blur, repCFA, gain, stops)

	case ExposureLinearFullRange:
		e.applyLinear(merged, repCFA, gain)

	case ExposureLinearClip2EV:
		// floor at +2 EV of lift, accepting some clipping
		floor := float32(math.Exp2(2))
		if gain < floor {
			gain = floor
		}
		e.applyLinear(merged, repCFA, gain)

	case ExposureOff:
		// handled above
	}
}

// applyCurve lifts each pixel by the blended tone-mapped ratio of its
// local luminance. The scale derived from luminance is applied back
// to the raw value uniformly, preserving the ratio between mosaic
// channels.
func (e *Engine)applyCurve(merged, blur *bmath.Grid, cfa mosaic.CFA, gain float32, stops float64) {
	g0, g1, blend := curveGains(gain, stops)
	blackMean := float64(cfa.MeanBlackLevel())
	colorMean := float64(cfa.MeanColorFactor())
	norm := float64(cfa.WhiteLevel) - blackMean

	w, h := merged.Dx(), merged.Dy()
	e.disp.eachRows(h, func(y0, y1 int) {
		for y:=y0; y<y1; y++ {
			for x:=0; x<w; x++ {
				lum := (float64(blur.Get(x,y)) - blackMean) * colorMean / norm
				if lum < 1e-6 {
					lum = 1e-6
				}
				scale := blendedTone(lum, g0, g1, blend) / lum

				black := cfa.BlackLevelAt(x, y)
				v := (float64(merged.Get(x,y)) - float64(black)) * scale + float64(black)
				if v < 0 { v = 0 }
				if v > sensorMax { v = sensorMax }
				merged.Set(x, y, float32(v))
			}
		}
	})
}

func (e *Engine)applyLinear(merged *bmath.Grid, cfa mosaic.CFA, gain float32) {
	w, h := merged.Dx(), merged.Dy()
	e.disp.eachRows(h, func(y0, y1 int) {
		for y:=y0; y<y1; y++ {
			for x:=0; x<w; x++ {
				black := cfa.BlackLevelAt(x, y)
				v := merged.Get(x,y) - black
				if v < 0 {
					v = 0
				}
				v = v*gain + black
				if v > sensorMax {
					v = sensorMax
				}
				merged.Set(x, y, v)
			}
		}
	})
}
