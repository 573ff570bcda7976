package bmath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinomialBlurPreservesFlatField(t *testing.T) {
	g := NewGrid(16, 12)
	g.Fill(500)

	b := g.BinomialBlur()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			assert.InDelta(t, 500.0, float64(b.Get(x, y)), 1e-3, "flat field must stay flat at (%d,%d)", x, y)
		}
	}
}

func TestBinomialBlurSmooths(t *testing.T) {
	g := NewGrid(9, 9)
	g.Set(4, 4, 100)

	b := g.BinomialBlur()
	assert.Less(t, float64(b.Get(4, 4)), 100.0, "center must lose energy")
	assert.Greater(t, float64(b.Get(3, 4)), 0.0, "neighbor must gain energy")
}

func TestBinomialBlurNWidens(t *testing.T) {
	g := NewGrid(15, 15)
	g.Set(7, 7, 100)

	once := g.BinomialBlur()
	thrice := g.BinomialBlurN(3)
	assert.Less(t, float64(thrice.Get(7, 7)), float64(once.Get(7, 7)))
	assert.Greater(t, float64(thrice.Get(4, 7)), float64(once.Get(4, 7)))
}

func TestPeriodBlurPreservesFlatField(t *testing.T) {
	for _, period := range []int{2, 6} {
		g := NewGrid(24, 24)
		g.Fill(500)

		b := g.PeriodBlur(period)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				assert.InDelta(t, 500.0, float64(b.Get(x, y)), 1e-2)
			}
		}
	}
}

func TestPeriodBlurMixesMosaicCells(t *testing.T) {
	// checkerboard at the mosaic frequency averages toward the mean
	g := NewGrid(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if (x+y)%2 == 0 {
				g.Set(x, y, 1000)
			}
		}
	}

	b := g.PeriodBlur(2)
	assert.InDelta(t, 500.0, float64(b.Get(8, 8)), 1.0)
}

func TestDownSample2xDims(t *testing.T) {
	g := NewGrid(64, 48)
	g.Fill(7)

	d := g.DownSample2x()
	assert.Equal(t, 32, d.Dx())
	assert.Equal(t, 24, d.Dy())
	assert.InDelta(t, 7.0, float64(d.Get(10, 10)), 1e-3)
}

func TestGetClamped(t *testing.T) {
	g := NewGrid(4, 4)
	g.Set(0, 0, 1)
	g.Set(3, 3, 9)

	assert.Equal(t, float32(1), g.GetClamped(-5, -5))
	assert.Equal(t, float32(9), g.GetClamped(100, 100))
}

func TestHasFinite(t *testing.T) {
	g := NewGrid(3, 3)
	assert.True(t, g.HasFinite())

	nan := NewGrid(3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			nan.Set(x, y, float32(math.NaN()))
		}
	}
	assert.False(t, nan.HasFinite())

	empty := NewGrid(0, 0)
	assert.False(t, empty.HasFinite())
}
