package burst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadroomGainClamps(t *testing.T) {
	assert.Equal(t, float32(1), headroomGain(1000, 0, 950), "near-clipped input gets no lift")
	assert.Equal(t, float32(16), headroomGain(65535, 0, 100), "lift caps at 16x")
	assert.Equal(t, float32(16), headroomGain(1000, 500, 500), "degenerate max falls back to the cap")
	assert.InDelta(t, 1.8, float64(headroomGain(1000, 0, 500)), 1e-6)
}

func TestToneCurvesHitFullScale(t *testing.T) {
	for _, g := range []float64{1, 1.8, 4, 16} {
		assert.InDelta(t, 1.0, toneCurveA(g, g), 1e-9, "curve A at g=%.1f", g)
		assert.InDelta(t, 1.0, toneCurveB(g, g), 1e-9, "curve B at g=%.1f", g)
	}
}

func TestBlendedToneIdentityAtZeroStops(t *testing.T) {
	g0, g1, blend := curveGains(1, 0)
	assert.Equal(t, 0.0, blend)
	for _, y := range []float64{0.01, 0.25, 0.5, 0.9, 1.0} {
		assert.InDelta(t, y, blendedTone(y, g0, g1, blend), 1e-9, "y=%.2f", y)
	}
}

func TestBlendedToneMonotone(t *testing.T) {
	ys := []float64{0.001, 0.01, 0.05, 0.1, 0.2, 0.4, 0.6, 0.8, 1.0, 1.5, 2.0}
	for _, gain := range []float32{1, 1.8, 4, 16} {
		for _, stops := range []float64{0, 1, 2.5, 4} {
			g0, g1, blend := curveGains(gain, stops)
			prev := blendedTone(ys[0], g0, g1, blend)
			for _, y := range ys[1:] {
				cur := blendedTone(y, g0, g1, blend)
				assert.Greater(t, cur, prev, "gain %.1f stops %.1f y %.3f", gain, stops, y)
				prev = cur
			}
		}
	}
}

func TestCurveGainsDampAboveThreshold(t *testing.T) {
	g0, g1, _ := curveGains(1, 3)
	assert.Less(t, g0, g1, "the protective lift trails the full lift beyond 1.5 stops")

	g0, g1, _ = curveGains(1, 1)
	assert.Equal(t, g0, g1, "below the threshold both lifts agree")
}

func TestRepresentativeBlackLevels(t *testing.T) {
	cfaA := testCFA(100, 1000)
	cfaB := testCFA(200, 1000)

	uniform := []*Frame{
		flatFrame("a", 4, 4, 500, 0, cfaA),
		flatFrame("b", 4, 4, 500, 0, cfaB),
	}
	blacks := representativeBlackLevels(uniform)
	require.Len(t, blacks, 4)
	assert.Equal(t, float32(150), blacks[0], "uniform bursts average the black levels")

	bracketed := []*Frame{
		flatFrame("a", 4, 4, 500, -100, cfaA),
		flatFrame("b", 4, 4, 500, 100, cfaB),
	}
	blacks = representativeBlackLevels(bracketed)
	require.Len(t, blacks, 4)
	assert.Equal(t, float32(200), blacks[0], "bracketed bursts take the longest exposure")
}

func exposureTestEngine(mode ExposureControl) *Engine {
	cfg := NewConfig()
	cfg.ExposureControl = mode
	return NewEngine(cfg, testLogger())
}

func TestCorrectExposureOffIsIdentity(t *testing.T) {
	e := exposureTestEngine(ExposureOff)
	f := flatFrame("f", 16, 16, 500, -200, testCFA(0, 1000))
	g := f.Grid.Copy()

	e.correctExposure(&g, []*Frame{f}, 0)
	assert.Equal(t, float32(500), g.Get(7, 7))
}

func TestCorrectExposureSkipsWithoutCalibration(t *testing.T) {
	e := exposureTestEngine(ExposureCurve0EV)
	f := flatFrame("f", 16, 16, 500, -200, testCFA(-1, 1000))
	g := f.Grid.Copy()

	e.correctExposure(&g, []*Frame{f}, 0)
	assert.Equal(t, float32(500), g.Get(7, 7), "no black levels means no correction")
}

func TestCorrectExposureCurve0EVFlatField(t *testing.T) {
	// flat 500 against white 1000 at -2EV: headroom gain 1.8, residual
	// stops 2-log2(1.8), both curve lifts land on exactly 4, and the
	// blended tone maps 0.5 to 0.774
	e := exposureTestEngine(ExposureCurve0EV)
	f := flatFrame("f", 16, 16, 500, -200, testCFA(0, 1000))
	g := f.Grid.Copy()

	e.correctExposure(&g, []*Frame{f}, 0)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			require.InDelta(t, 774.0, float64(g.Get(x, y)), 0.5, "at (%d,%d)", x, y)
		}
	}
}

func TestCorrectExposureLinearFullRange(t *testing.T) {
	e := exposureTestEngine(ExposureLinearFullRange)
	f := flatFrame("f", 16, 16, 500, 0, testCFA(100, 1000))
	g := f.Grid.Copy()

	// gain 0.9*(1000-100)/(500-100) = 2.025, applied black-relative
	e.correctExposure(&g, []*Frame{f}, 0)
	assert.InDelta(t, (500-100)*2.025+100, float64(g.Get(3, 3)), 0.1)
}

func TestCorrectExposureLinearClip2EV(t *testing.T) {
	e := exposureTestEngine(ExposureLinearClip2EV)
	f := flatFrame("f", 16, 16, 500, 0, testCFA(100, 1000))
	g := f.Grid.Copy()

	// the same burst as above, but the gain floor of 4 wins
	e.correctExposure(&g, []*Frame{f}, 0)
	assert.InDelta(t, (500-100)*4+100, float64(g.Get(3, 3)), 0.1)
}
