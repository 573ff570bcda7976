package burst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineTestEngine(mode ExposureControl) *Engine {
	cfg := NewConfig()
	cfg.TileSize = 8
	cfg.MinCoarseTiles = 2
	cfg.ExposureControl = mode
	return NewEngine(cfg, testLogger())
}

func TestRunFlatBurstPassthrough(t *testing.T) {
	e := pipelineTestEngine(ExposureOff)
	cfa := testCFA(0, 1000)
	frames := []*Frame{
		flatFrame("a", 64, 64, 500, 0, cfa),
		flatFrame("b", 64, 64, 500, 0, cfa),
		flatFrame("c", 64, 64, 500, 0, cfa),
	}

	merged, stats, err := e.Run(frames)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Frames)
	assert.Greater(t, stats.WeightP50, 1.0, "all three frames should contribute to a static scene")

	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			require.InDelta(t, 500.0, float64(merged.Get(x, y)), 1e-2, "at (%d,%d)", x, y)
		}
	}
}

func TestRunCurve0EVLiftsUnderexposedBurst(t *testing.T) {
	e := pipelineTestEngine(ExposureCurve0EV)
	cfa := testCFA(0, 1000)
	frames := []*Frame{
		flatFrame("a", 64, 64, 500, -200, cfa),
		flatFrame("b", 64, 64, 500, -200, cfa),
		flatFrame("c", 64, 64, 500, -200, cfa),
	}

	merged, _, err := e.Run(frames)
	require.NoError(t, err)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := float64(merged.Get(x, y))
			require.InDelta(t, 774.0, v, 0.5, "at (%d,%d)", x, y)
			require.Greater(t, v, 500.0)
			require.LessOrEqual(t, v, 1000.0)
		}
	}
}

func TestRunRecoversShiftedBurst(t *testing.T) {
	e := pipelineTestEngine(ExposureOff)
	cfa := testCFA(0, 65535)
	frames := []*Frame{
		texturedFrame("ref", 96, 96, 0, 0, cfa),
		texturedFrame("alt1", 96, 96, 3, -2, cfa),
		texturedFrame("alt2", 96, 96, -1, 2, cfa),
	}

	merged, _, err := e.Run(frames)
	require.NoError(t, err)

	// interior pixels: the aligned alternates agree with the reference,
	// so the merge must stay close to the reference signal
	for y := 16; y < 80; y++ {
		for x := 16; x < 80; x++ {
			require.InDelta(t, float64(frames[0].Grid.Get(x, y)), float64(merged.Get(x, y)), 2.0,
				"at (%d,%d)", x, y)
		}
	}
}

func TestRunRejectsEmptyBurst(t *testing.T) {
	e := pipelineTestEngine(ExposureOff)
	_, _, err := e.Run(nil)
	assert.Error(t, err)
}

func TestRunRejectsBadReferenceIndex(t *testing.T) {
	cfg := NewConfig()
	cfg.RefIndex = 5
	e := NewEngine(cfg, testLogger())

	frames := []*Frame{flatFrame("a", 32, 32, 500, 0, testCFA(0, 1000))}
	_, _, err := e.Run(frames)
	assert.Error(t, err)
}

func TestRunRejectsMismatchedResolutions(t *testing.T) {
	e := pipelineTestEngine(ExposureOff)
	cfa := testCFA(0, 1000)
	frames := []*Frame{
		flatFrame("a", 64, 64, 500, 0, cfa),
		flatFrame("b", 64, 32, 500, 0, cfa),
	}
	_, _, err := e.Run(frames)
	assert.Error(t, err)
}

func TestConfigRoundTrip(t *testing.T) {
	c := NewConfig()
	c.ExposureControl = ExposureCurve1EV
	c.Robustness = RobustnessHigh
	c.TileSize = 32

	c2, err := NewConfigFromYaml([]byte(c.AsYaml()))
	require.NoError(t, err)
	assert.Equal(t, c, c2)
}

func TestParseEnums(t *testing.T) {
	ec, err := ParseExposureControl("linearclip2ev")
	require.NoError(t, err)
	assert.Equal(t, ExposureLinearClip2EV, ec)
	_, err = ParseExposureControl("vivid")
	assert.Error(t, err)

	r, err := ParseRobustness("high")
	require.NoError(t, err)
	assert.Equal(t, RobustnessHigh, r)
	_, err = ParseRobustness("extreme")
	assert.Error(t, err)
}

func TestDispatcherCoversAllRows(t *testing.T) {
	d := &dispatcher{workers: 4, batchRows: 8}

	seen := make([]bool, 100)
	mu := make(chan bool, 1)
	mu <- true
	d.eachRows(100, func(y0, y1 int) {
		<-mu
		for y := y0; y < y1; y++ {
			seen[y] = true
		}
		mu <- true
	})

	for y, ok := range seen {
		assert.True(t, ok, "row %d", y)
	}
}
