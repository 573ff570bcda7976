package bmath

// The exact global maximum gates the clipping-prevention gain, so the
// reduction is computed in two explicit passes: collapse the vertical
// axis into per-column maxima, then collapse that 1D buffer to a
// scalar. No approximation, no sampling.

// ReduceMaxRows collapses the vertical axis, returning one maximum per
// column. An empty grid yields an empty slice.
func (g *Grid)ReduceMaxRows() []float32 {
	width := g.Dx()
	height := g.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	maxes := make([]float32, width)
	for x:=0; x<width; x++ {
		maxes[x] = g.Get(x, 0)
	}
	for y:=1; y<height; y++ {
		for x:=0; x<width; x++ {
			if v := g.Get(x, y); v > maxes[x] {
				maxes[x] = v
			}
		}
	}
	return maxes
}

// ReduceMax1D collapses a 1D buffer to its maximum. Degenerate input
// yields the 0 sentinel, not an error.
func ReduceMax1D(vs []float32) float32 {
	if len(vs) == 0 {
		return 0
	}
	max := vs[0]
	for _, v := range vs[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// ReduceMax is the full two-pass reduction.
func (g *Grid)ReduceMax() float32 {
	return ReduceMax1D(g.ReduceMaxRows())
}
