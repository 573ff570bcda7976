package burst

import(
	"fmt"
	"math"
	"path/filepath"

	"github.com/burstmerge/burstmerge/pkg/bmath"
	"github.com/burstmerge/burstmerge/pkg/mosaic"
)

// A Frame is one decoded raw photograph: a mosaic-patterned grid of
// sensor samples plus the exposure and calibration metadata the
// pipeline needs. Frames are immutable once loaded; the pipeline owns
// them exclusively for the duration of a run.
type Frame struct {
	Grid bmath.Grid
	Meta Meta
}

type Meta struct {
	Name         string
	ExposureBias int      // hundredths of an EV
	ExposureTime float64  // seconds; 0 when unknown
	CFA          mosaic.CFA
}

func (f *Frame)String() string {
	return fmt.Sprintf("%s: %dx%d, bias %+d/100 EV, pattern %d",
		f.Filename(), f.Grid.Dx(), f.Grid.Dy(), f.Meta.ExposureBias, f.Meta.CFA.PatternWidth)
}

func (f *Frame)Filename() string {
	return filepath.Base(f.Meta.Name)
}

// NormGain is the multiplicative factor that brings this frame's
// black-subtracted signal to the reference frame's exposure. Frames at
// the same bias get exactly 1, so uniform bursts are untouched.
func (f *Frame)NormGain(ref *Frame) float32 {
	if f.Meta.ExposureBias == ref.Meta.ExposureBias {
		return 1.0
	}
	stops := float64(ref.Meta.ExposureBias-f.Meta.ExposureBias) / 100.0
	return float32(math.Exp2(stops))
}

// NormalizedGrid returns the frame's samples scaled to the reference
// exposure: black level subtracted, gained, black level restored. The
// frame itself is never mutated.
func (f *Frame)NormalizedGrid(ref *Frame) bmath.Grid {
	gain := f.NormGain(ref)
	if gain == 1.0 {
		return f.Grid
	}

	out := f.Grid.NewFromThis()
	for y:=0; y<f.Grid.Dy(); y++ {
		for x:=0; x<f.Grid.Dx(); x++ {
			black := f.Meta.CFA.BlackLevelAt(x, y)
			if black == mosaic.Unknown {
				black = 0
			}
			out.Set(x, y, (f.Grid.Get(x,y)-black)*gain + black)
		}
	}
	return out
}

// longestExposure picks the frame whose black-level estimate is most
// trustworthy: longest exposure time, falling back to largest bias.
func longestExposure(frames []*Frame) *Frame {
	best := frames[0]
	for _, f := range frames[1:] {
		if f.Meta.ExposureTime != best.Meta.ExposureTime {
			if f.Meta.ExposureTime > best.Meta.ExposureTime {
				best = f
			}
		} else if f.Meta.ExposureBias > best.Meta.ExposureBias {
			best = f
		}
	}
	return best
}

// UniformExposure reports whether every frame in the burst shares the
// reference frame's exposure bias.
func UniformExposure(frames []*Frame) bool {
	for _, f := range frames[1:] {
		if f.Meta.ExposureBias != frames[0].Meta.ExposureBias {
			return false
		}
	}
	return true
}
