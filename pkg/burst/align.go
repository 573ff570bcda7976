package burst

import(
	"fmt"
	"image"

	"github.com/burstmerge/burstmerge/pkg/bmath"
)

// An AlignmentField maps each tile of a comparison frame to the
// integer displacement that best matches it against the reference
// frame. Produced by the tile aligner, consumed only by the merger.
type AlignmentField struct {
	TileSize int
	TilesX   int
	TilesY   int
	Offsets  []image.Point
}

func newAlignmentField(w, h, tileSize int) AlignmentField {
	tx := (w + tileSize - 1) / tileSize
	ty := (h + tileSize - 1) / tileSize
	return AlignmentField{
		TileSize: tileSize,
		TilesX:   tx,
		TilesY:   ty,
		Offsets:  make([]image.Point, tx*ty),
	}
}

func (af *AlignmentField)At(tx, ty int) image.Point {
	if tx < 0 { tx = 0 }
	if ty < 0 { ty = 0 }
	if tx >= af.TilesX { tx = af.TilesX-1 }
	if ty >= af.TilesY { ty = af.TilesY-1 }
	return af.Offsets[ty*af.TilesX + tx]
}

// AtPixel returns the displacement for the tile containing (x, y).
func (af *AlignmentField)AtPixel(x, y int) image.Point {
	return af.At(x/af.TileSize, y/af.TileSize)
}

// IsZero reports an all-zero field, i.e. the frame already sits in
// reference coordinates everywhere.
func (af *AlignmentField)IsZero() bool {
	for _, off := range af.Offsets {
		if off.X != 0 || off.Y != 0 {
			return false
		}
	}
	return true
}

// tileCost is the sum of absolute differences between the reference
// tile anchored at (x0, y0) and the comparison frame's tile displaced
// by (dx, dy). Samples clamp at the frame bounds, so edge tiles
// compare against real data rather than padding.
func tileCost(ref, alt *bmath.Grid, x0, y0, tileSize, dx, dy int) float32 {
	cost := float32(0)
	for ty:=0; ty<tileSize; ty++ {
		for tx:=0; tx<tileSize; tx++ {
			r := ref.GetClamped(x0+tx, y0+ty)
			a := alt.GetClamped(x0+tx+dx, y0+ty+dy)
			d := r - a
			if d < 0 {
				d = -d
			}
			if d != d { // skip NaN samples
				continue
			}
			cost += d
		}
	}
	return cost
}

// searchTile finds the displacement within +/- radius of the
// propagated estimate that minimizes the tile cost. Ties go to the
// displacement closest to the estimate.
func searchTile(ref, alt *bmath.Grid, x0, y0, tileSize int, init image.Point, radius int) image.Point {
	best := init
	bestCost := tileCost(ref, alt, x0, y0, tileSize, init.X, init.Y)
	bestDist2 := 0

	for dy:=-radius; dy<=radius; dy++ {
		for dx:=-radius; dx<=radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			cand := image.Point{init.X + dx, init.Y + dy}
			cost := tileCost(ref, alt, x0, y0, tileSize, cand.X, cand.Y)
			dist2 := dx*dx + dy*dy
			if cost < bestCost || (cost == bestCost && dist2 < bestDist2) {
				best, bestCost, bestDist2 = cand, cost, dist2
			}
		}
	}
	return best
}

// alignFrame estimates per-tile motion of one comparison frame
// against the reference, coarse to fine: a full-radius search at the
// coarsest pyramid level, then the estimate is doubled and refined in
// a narrowed window at each finer level down to full resolution.
func (e *Engine)alignFrame(ref, alt Pyramid) (AlignmentField, error) {
	altFinest, refFinest := alt.Finest(), ref.Finest()
	if !altFinest.HasFinite() || !refFinest.HasFinite() {
		return AlignmentField{}, fmt.Errorf("%w: no valid pixels", ErrAlignment)
	}

	tileSize := e.cfg.TileSize
	depth := len(ref.Levels)
	if d := len(alt.Levels); d < depth {
		depth = d
	}

	var prev AlignmentField
	for level:=depth-1; level>=0; level-- {
		refG := ref.Levels[level]
		altG := alt.Levels[level]
		field := newAlignmentField(refG.Dx(), refG.Dy(), tileSize)

		radius := e.cfg.RefineRadius
		if level == depth-1 {
			radius = e.cfg.CoarseRadius
		}

		hasPrev := level < depth-1
		e.disp.eachRows(field.TilesY, func(ty0, ty1 int) {
			for ty:=ty0; ty<ty1; ty++ {
				for tx:=0; tx<field.TilesX; tx++ {
					init := image.Point{}
					if hasPrev {
						p := prev.At(tx/2, ty/2)
						init = image.Point{p.X * 2, p.Y * 2}
					}
					field.Offsets[ty*field.TilesX+tx] =
						searchTile(&refG, &altG, tx*tileSize, ty*tileSize, tileSize, init, radius)
				}
			}
		})

		prev = field
	}

	return prev, nil
}
