package burst

import(
	"github.com/burstmerge/burstmerge/pkg/bmath"
)

// A Pyramid is a coarse-to-fine series of halved-resolution copies of
// one frame, used by the hierarchical tile search. Levels[0] is full
// resolution; each following level is half the previous. Built once
// per frame per alignment pass and discarded afterwards.
type Pyramid struct {
	Levels []bmath.Grid
}

// pyramidDepth picks how many levels to build: keep halving while the
// coarsest level would still hold at least minCoarseTiles tiles along
// its short axis.
func pyramidDepth(w, h, tileSize, minCoarseTiles int) int {
	depth := 1
	short := w
	if h < short {
		short = h
	}
	for short/2 >= tileSize*minCoarseTiles {
		short /= 2
		depth++
	}
	return depth
}

// NewPyramid builds the level series using the shared binomial
// low-pass + downsample filter.
func NewPyramid(g bmath.Grid, tileSize, minCoarseTiles int) Pyramid {
	depth := pyramidDepth(g.Dx(), g.Dy(), tileSize, minCoarseTiles)

	levels := make([]bmath.Grid, depth)
	levels[0] = g
	for i:=1; i<depth; i++ {
		levels[i] = levels[i-1].DownSample2x()
	}
	return Pyramid{Levels: levels}
}

func (p Pyramid)Coarsest() bmath.Grid { return p.Levels[len(p.Levels)-1] }
func (p Pyramid)Finest() bmath.Grid   { return p.Levels[0] }
