package bmath

import(
	"fmt"
	"math"
)

// A Grid is a 2D buffer of float32 samples with stride addressing. It
// is the working representation for raw mosaic data, pyramid levels,
// and merge accumulators.
type Grid struct {
	stride int
	values []float32
}

func NewGrid(w, h int) Grid {
	return Grid{
		stride: w,
		values: make([]float32, w*h),
	}
}

// NewGridFrom wraps an existing sample slice; len(values) must be a
// multiple of w.
func NewGridFrom(w int, values []float32) Grid {
	return Grid{stride: w, values: values}
}

func (g *Grid)NewFromThis() Grid             { return NewGrid(g.Dx(), g.Dy()) }
func (g *Grid)Set(x, y int, v float32)       { g.values[g.stride*y + x] = v }
func (g *Grid)Get(x, y int) float32          { return g.values[g.stride*y + x] }
func (g *Grid)Dx() int                       { return g.stride }
func (g *Grid)Dy() int                       { if g.stride == 0 { return 0 }; return len(g.values) / g.stride }
func (g *Grid)Values() []float32             { return g.values }

// GetClamped reads with coordinates clamped into bounds, so kernels
// near the frame edge never read synthetic data.
func (g *Grid)GetClamped(x, y int) float32 {
	if x < 0 { x = 0 }
	if y < 0 { y = 0 }
	if x >= g.Dx() { x = g.Dx()-1 }
	if y >= g.Dy() { y = g.Dy()-1 }
	return g.values[g.stride*y + x]
}

func (g1 *Grid)Copy() Grid {
	g2 := Grid{stride: g1.stride, values: make([]float32, len(g1.values))}
	copy(g2.values, g1.values)
	return g2
}

func (g *Grid)Fill(v float32) {
	for i := range g.values {
		g.values[i] = v
	}
}

// BinomialBlur applies the separable 1-2-1 binomial kernel once, with
// the 3-1 weighting at the edges so flat fields stay flat.
func (g1 Grid)BinomialBlur() Grid {
	width := g1.Dx()
	height := g1.Dy()
	g2 := g1.NewFromThis()

	if width < 2 || height < 2 {
		copy(g2.values, g1.values)
		return g2
	}

	T := g1.NewFromThis()

	//--- X blur, build up in T
	for y:=0; y<height; y++ {
		for x:=1; x<width-1; x++ {
			t := 2.0*g1.Get(x,y)
			t += g1.Get(x-1,y)
			t += g1.Get(x+1,y)
			T.Set(x, y, t/4.0)
		}
		T.Set(0, y,       (3.0*g1.Get(0,      y) + g1.Get(1,      y)) / 4.0)
		T.Set(width-1, y, (3.0*g1.Get(width-1,y) + g1.Get(width-2,y)) / 4.0)
	}

	//--- Y blur, read from T and generate output
	for x:=0; x<width; x++ {
		for y:=1; y<height-1; y++ {
			t := 2.0*T.Get(x,y)
			t += T.Get(x,y-1)
			t += T.Get(x,y+1)
			g2.Set(x, y, t/4.0)
		}
		g2.Set(x, 0,        (3.0*T.Get(x,       0) + T.Get(x,       1)) / 4.0)
		g2.Set(x, height-1, (3.0*T.Get(x,height-1) + T.Get(x,height-2)) / 4.0)
	}

	return g2
}

// BinomialBlurN applies the binomial kernel n times, approximating a
// wider gaussian.
func (g1 Grid)BinomialBlurN(n int) Grid {
	g2 := g1
	for i:=0; i<n; i++ {
		g2 = g2.BinomialBlur()
	}
	return g2
}

// PeriodBlur box-averages a window of `period` samples along each
// axis, clamped at the edges. With period equal to the mosaic pattern
// width, each output sample mixes one full mosaic cell cycle, which
// approximates local luminance without demosaicing.
func (g1 Grid)PeriodBlur(period int) Grid {
	if period < 2 {
		return g1.Copy()
	}
	width := g1.Dx()
	height := g1.Dy()
	T := g1.NewFromThis()
	g2 := g1.NewFromThis()
	inv := 1.0 / float32(period)

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			sum := float32(0)
			for i:=0; i<period; i++ {
				sum += g1.GetClamped(x+i-period/2, y)
			}
			T.Set(x, y, sum*inv)
		}
	}
	for x:=0; x<width; x++ {
		for y:=0; y<height; y++ {
			sum := float32(0)
			for i:=0; i<period; i++ {
				sum += T.GetClamped(x, y+i-period/2)
			}
			g2.Set(x, y, sum*inv)
		}
	}

	return g2
}

// DownSample2x returns a grid at half resolution: binomial low-pass,
// then decimation by 2.
func (g1 Grid)DownSample2x() Grid {
	blurred := g1.BinomialBlur()
	width := g1.Dx() / 2
	height := g1.Dy() / 2
	g2 := NewGrid(width, height)

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			g2.Set(x, y, blurred.Get(2*x, 2*y))
		}
	}

	return g2
}

func (g *Grid)MinMax() (float32, float32) {
	if len(g.values) == 0 {
		return 0, 0
	}
	min, max := g.values[0], g.values[0]
	for _, v := range g.values {
		if v < min { min = v }
		if v > max { max = v }
	}
	return min, max
}

// HasFinite reports whether the grid holds at least one usable sample.
func (g *Grid)HasFinite() bool {
	for _, v := range g.values {
		if !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0) {
			return true
		}
	}
	return false
}

func (g *Grid)String() string {
	min, max := g.MinMax()
	return fmt.Sprintf("grid[%dx%d, vals{%f,%f}]", g.Dx(), g.Dy(), min, max)
}
