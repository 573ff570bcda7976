// Package mosaic models the repeating sensor color-filter geometry:
// Bayer (2x2) and X-Trans-like (6x6) patterns, with per-cell black
// levels, white level, and color calibration factors.
package mosaic

const(
	BayerWidth  = 2
	XTransWidth = 6

	// Unknown marks calibration data the camera did not supply. Stages
	// that depend on it are skipped, never failed.
	Unknown = float32(-1)
)

// CellIndex maps a pixel coordinate to its mosaic cell. Every
// calibration lookup in the pipeline goes through this one function,
// so black-level and color-factor indexing can never drift apart.
func CellIndex(x, y, width int) int {
	cx := ((x % width) + width) % width
	cy := ((y % width) + width) % width
	return cy*width + cx
}

// A CFA describes one sensor's color filter array and calibration.
type CFA struct {
	PatternWidth int        `yaml:"patternWidth"`
	BlackLevels  []float32  `yaml:"blackLevels"`  // one per cell, row-major; nil when unknown
	WhiteLevel   float32    `yaml:"whiteLevel"`   // Unknown when unavailable
	ColorFactors []float32  `yaml:"colorFactors"` // one per cell; nil when unknown
}

func NewCFA(patternWidth int) CFA {
	return CFA{
		PatternWidth: patternWidth,
		WhiteLevel:   Unknown,
	}
}

func (c CFA)NumCells() int { return c.PatternWidth * c.PatternWidth }

func (c CFA)BlackLevelAt(x, y int) float32 {
	if len(c.BlackLevels) == 0 {
		return Unknown
	}
	return c.BlackLevels[CellIndex(x, y, c.PatternWidth)]
}

func (c CFA)ColorFactorAt(x, y int) float32 {
	if len(c.ColorFactors) == 0 {
		return 1.0
	}
	return c.ColorFactors[CellIndex(x, y, c.PatternWidth)]
}

func (c CFA)HasBlackLevels() bool { return len(c.BlackLevels) == c.NumCells() }
func (c CFA)HasWhiteLevel() bool  { return c.WhiteLevel != Unknown }

func (c CFA)MinBlackLevel() float32 {
	if !c.HasBlackLevels() {
		return Unknown
	}
	min := c.BlackLevels[0]
	for _, b := range c.BlackLevels[1:] {
		if b < min {
			min = b
		}
	}
	return min
}

// greenCells marks which cells sit under a green filter. Green is the
// luminance-dominant channel, and also the first to clip, so means
// over the pattern weight it double.
func greenCells(width int) []bool {
	switch width {
	case BayerWidth:
		// RGGB orientation; the diagonal swap doesn't matter for weighting
		return []bool{false, true, true, false}
	case XTransWidth:
		// X-Trans: 20 of 36 cells are green
		g := make([]bool, 36)
		pattern := [6][6]byte{
			{'g','b','r','g','r','b'},
			{'r','g','g','b','g','g'},
			{'b','g','g','r','g','g'},
			{'g','r','b','g','b','r'},
			{'b','g','g','r','g','g'},
			{'r','g','g','b','g','g'},
		}
		for y:=0; y<6; y++ {
			for x:=0; x<6; x++ {
				g[y*6+x] = pattern[y][x] == 'g'
			}
		}
		return g
	default:
		return make([]bool, width*width)
	}
}

func (c CFA)greenWeightedMean(vals []float32) float32 {
	greens := greenCells(c.PatternWidth)
	sum, wsum := float32(0), float32(0)
	for i, v := range vals {
		w := float32(1)
		if i < len(greens) && greens[i] {
			w = 2
		}
		sum += v * w
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// MeanBlackLevel is the green-weighted representative black level used
// by the exposure corrector's luminance estimate.
func (c CFA)MeanBlackLevel() float32 {
	if !c.HasBlackLevels() {
		return Unknown
	}
	return c.greenWeightedMean(c.BlackLevels)
}

// MeanColorFactor is the green-weighted representative color
// calibration factor. 1.0 when the camera supplied none.
func (c CFA)MeanColorFactor() float32 {
	if len(c.ColorFactors) != c.NumCells() {
		return 1.0
	}
	return c.greenWeightedMean(c.ColorFactors)
}
