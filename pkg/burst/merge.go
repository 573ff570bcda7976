package burst

import(
	"math"

	"github.com/codahale/hdrhistogram"
	"gonum.org/v1/gonum/stat"

	"github.com/burstmerge/burstmerge/pkg/bmath"
	"github.com/burstmerge/burstmerge/pkg/mosaic"
)

// An Accumulator holds the running weighted sums of the merge, at
// reference-frame resolution. It is owned exclusively by the merger
// while frames are being accumulated, and finalized exactly once.
type Accumulator struct {
	Sum       bmath.Grid
	Weight    bmath.Grid
	finalized bool
}

func NewAccumulator(w, h int) *Accumulator {
	return &Accumulator{
		Sum:    bmath.NewGrid(w, h),
		Weight: bmath.NewGrid(w, h),
	}
}

func (a *Accumulator)Add(x, y int, v, w float32) {
	a.Sum.Set(x, y, a.Sum.Get(x,y)+v*w)
	a.Weight.Set(x, y, a.Weight.Get(x,y)+w)
}

// Finalize divides sums by weights and clamps to [0, maxValue].
func (a *Accumulator)Finalize(maxValue float32) bmath.Grid {
	if a.finalized {
		panic("accumulator finalized twice")
	}
	a.finalized = true

	out := a.Sum.NewFromThis()
	for y:=0; y<out.Dy(); y++ {
		for x:=0; x<out.Dx(); x++ {
			w := a.Weight.Get(x, y)
			v := float32(0)
			if w > 0 {
				v = a.Sum.Get(x, y) / w
			}
			if v < 0 { v = 0 }
			if v > maxValue { v = maxValue }
			out.Set(x, y, v)
		}
	}
	return out
}

// noiseModel is a two-parameter sensor model: variance grows linearly
// with black-subtracted signal (shot noise) on top of a constant
// floor (read noise).
type noiseModel struct {
	shot float32
	read float32
}

func (nm noiseModel)Sigma(signal float32) float32 {
	if signal < 0 {
		signal = 0
	}
	return float32(math.Sqrt(float64(nm.shot*signal + nm.read*nm.read)))
}

// calibrateNoise fits the model from a coarse sample of the frame.
// The split between the shot and read terms only has to be roughly
// right; the merge weights are relative.
func calibrateNoise(f *Frame) noiseModel {
	g := &f.Grid
	step := 1
	for (g.Dx()/step)*(g.Dy()/step) > 4096 {
		step *= 2
	}

	vals := make([]float64, 0, 4096)
	for y:=0; y<g.Dy(); y+=step {
		for x:=0; x<g.Dx(); x+=step {
			v := g.Get(x, y)
			if v != v {
				continue
			}
			black := f.Meta.CFA.BlackLevelAt(x, y)
			if black == mosaic.Unknown {
				black = 0
			}
			vals = append(vals, float64(v-black))
		}
	}
	if len(vals) == 0 {
		return noiseModel{shot: 0.05, read: 1}
	}

	mean, std := stat.MeanStdDev(vals, nil)

	read := float32(std) * 0.25
	if read < 1 {
		read = 1
	}
	shot := (float32(std)*float32(std) - read*read) / float32(math.Max(mean, 1))
	if shot < 0.05 {
		shot = 0.05
	}
	return noiseModel{shot: shot, read: read}
}

// candidateWeight scores one frame's sample for a given output pixel:
// an SNR term that favors brighter (lower relative noise) samples,
// attenuated as the sample deviates from the reference estimate by
// more than `scale` noise sigmas. The reference frame scores itself
// with zero deviation, so its weight is always at least 1.
func candidateWeight(cand, ref, black float32, nm noiseModel, scale float32) float32 {
	sig := ref - black
	if sig < 0 {
		sig = 0
	}
	sigma := nm.Sigma(sig)
	snr := (sig + sigma) / sigma

	diff := cand - ref
	if diff < 0 {
		diff = -diff
	}
	t := diff / (sigma * scale)
	return snr / (1 + t*t)
}

// mergeBurst accumulates every frame into reference coordinates.
// grids holds the exposure-normalized samples, parallel to frames;
// fields holds one alignment field per frame (unused for ref).
func (e *Engine)mergeBurst(frames []*Frame, grids []bmath.Grid, fields []AlignmentField, ref int) *Accumulator {
	refG := grids[ref]
	w, h := refG.Dx(), refG.Dy()
	acc := NewAccumulator(w, h)
	cfa := frames[ref].Meta.CFA
	scale := e.cfg.Robustness.outlierScale()

	models := make([]noiseModel, len(frames))
	for i, f := range frames {
		models[i] = calibrateNoise(f)
	}

	e.disp.eachRows(h, func(y0, y1 int) {
		for y:=y0; y<y1; y++ {
			for x:=0; x<w; x++ {
				refVal := refG.Get(x, y)
				if refVal != refVal {
					refVal = 0
				}
				black := cfa.BlackLevelAt(x, y)
				if black == mosaic.Unknown {
					black = 0
				}

				acc.Add(x, y, refVal, candidateWeight(refVal, refVal, black, models[ref], scale))

				for i := range frames {
					if i == ref {
						continue
					}
					off := fields[i].AtPixel(x, y)
					cand := grids[i].GetClamped(x+off.X, y+off.Y)
					if cand != cand {
						continue
					}
					acc.Add(x, y, cand, candidateWeight(cand, refVal, black, models[i], scale))
				}
			}
		}
	})

	return acc
}

// MergeStats summarizes the per-pixel total weight distribution, i.e.
// the effective frame count actually achieved across the image.
type MergeStats struct {
	Frames     int
	WeightMean float64
	WeightP50  float64
	WeightP95  float64
}

func weightStats(weight *bmath.Grid, frames int) *MergeStats {
	hist := hdrhistogram.New(1, 1000000, 3)
	for y:=0; y<weight.Dy(); y++ {
		for x:=0; x<weight.Dx(); x++ {
			v := int64(weight.Get(x,y) * 1000)
			if v < 1 {
				v = 1
			}
			if v > 1000000 {
				v = 1000000
			}
			hist.RecordValue(v)
		}
	}
	return &MergeStats{
		Frames:     frames,
		WeightMean: hist.Mean() / 1000,
		WeightP50:  float64(hist.ValueAtQuantile(50)) / 1000,
		WeightP95:  float64(hist.ValueAtQuantile(95)) / 1000,
	}
}
