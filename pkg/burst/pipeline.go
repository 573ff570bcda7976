package burst

import(
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/burstmerge/burstmerge/pkg/bmath"
)

// Engine runs the merge pipeline over a burst. The stage graph
// (pyramid → align → merge → correct) and the kernel dispatcher are
// built once, up front, and passed through explicitly — no
// lazily-initialized process-wide state. Stages are barriers: each
// one completes before the next reads its output. Within the pyramid
// and align stages, independent frames run concurrently.
type Engine struct {
	cfg    Config
	log    *logrus.Logger
	disp   *dispatcher
	stages []stage
}

type stage struct {
	name string
	run  func(*runState) error
}

// runState is the data flowing between stages for one burst.
type runState struct {
	frames   []*Frame
	ref      int
	grids    []bmath.Grid     // exposure-normalized samples, parallel to frames
	pyramids []Pyramid
	fields   []AlignmentField
	acc      *Accumulator
	merged   bmath.Grid
	stats    *MergeStats
}

func NewEngine(cfg Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{
		cfg:  cfg,
		log:  log,
		disp: newDispatcher(4 * 8192),
	}
	e.stages = []stage{
		{"pyramid", e.stagePyramids},
		{"align",   e.stageAlign},
		{"merge",   e.stageMerge},
		{"correct", e.stageCorrect},
	}
	return e
}

// Run merges the burst into one exposure-corrected buffer at
// reference-frame resolution. Any error is fatal to the whole burst;
// no partial merge is produced.
func (e *Engine)Run(frames []*Frame) (bmath.Grid, *MergeStats, error) {
	if len(frames) == 0 {
		return bmath.Grid{}, nil, fmt.Errorf("empty burst")
	}
	ref := e.cfg.RefIndex
	if ref < 0 || ref >= len(frames) {
		return bmath.Grid{}, nil, fmt.Errorf("reference index %d out of range [0,%d)", ref, len(frames))
	}
	for _, f := range frames {
		if f.Grid.Dx() != frames[ref].Grid.Dx() || f.Grid.Dy() != frames[ref].Grid.Dy() {
			return bmath.Grid{}, nil, fmt.Errorf("%s: resolution differs from reference", f.Filename())
		}
	}

	rs := &runState{frames: frames, ref: ref}
	for _, st := range e.stages {
		start := time.Now()
		if err := st.run(rs); err != nil {
			return bmath.Grid{}, nil, fmt.Errorf("%s stage: %w", st.name, err)
		}
		e.log.WithFields(logrus.Fields{"stage": st.name, "took": time.Since(start).Round(time.Millisecond)}).
			Info("stage complete")
	}

	return rs.merged, rs.stats, nil
}

// stagePyramids normalizes every frame to the reference exposure and
// builds its search pyramid. Frames are independent here, so they run
// on their own goroutines.
func (e *Engine)stagePyramids(rs *runState) error {
	rs.grids = make([]bmath.Grid, len(rs.frames))
	rs.pyramids = make([]Pyramid, len(rs.frames))

	var wg sync.WaitGroup
	for i, f := range rs.frames {
		wg.Add(1)
		go func(i int, f *Frame) {
			defer wg.Done()
			rs.grids[i] = f.NormalizedGrid(rs.frames[rs.ref])
			rs.pyramids[i] = NewPyramid(rs.grids[i], e.cfg.TileSize, e.cfg.MinCoarseTiles)
		}(i, f)
	}
	wg.Wait()
	return nil
}

// stageAlign estimates one alignment field per non-reference frame,
// concurrently. A single unalignable frame makes the burst
// unmergeable.
func (e *Engine)stageAlign(rs *runState) error {
	rs.fields = make([]AlignmentField, len(rs.frames))
	refPyr := rs.pyramids[rs.ref]

	var wg sync.WaitGroup
	errs := make([]error, len(rs.frames))
	for i := range rs.frames {
		if i == rs.ref {
			rs.fields[i] = newAlignmentField(rs.grids[i].Dx(), rs.grids[i].Dy(), e.cfg.TileSize)
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			field, err := e.alignFrame(refPyr, rs.pyramids[i])
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", rs.frames[i].Filename(), err)
				return
			}
			rs.fields[i] = field
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	if e.cfg.AlignPNG != "" {
		for i := range rs.frames {
			if i == rs.ref {
				continue
			}
			name := fmt.Sprintf("%s-%02d.png", e.cfg.AlignPNG, i)
			if err := WriteAlignmentPNG(rs.fields[i], name); err != nil {
				e.log.Warnf("alignment plot %s: %v", name, err)
			}
		}
	}

	// pyramids are only needed for alignment
	rs.pyramids = nil
	return nil
}

func (e *Engine)stageMerge(rs *runState) error {
	rs.acc = e.mergeBurst(rs.frames, rs.grids, rs.fields, rs.ref)
	rs.stats = weightStats(&rs.acc.Weight, len(rs.frames))
	e.log.WithFields(logrus.Fields{
		"frames":  rs.stats.Frames,
		"wMean":   fmt.Sprintf("%.2f", rs.stats.WeightMean),
		"wP50":    fmt.Sprintf("%.2f", rs.stats.WeightP50),
		"wP95":    fmt.Sprintf("%.2f", rs.stats.WeightP95),
	}).Info("merge weight distribution")

	maxValue := float32(sensorMax)
	if cfa := rs.frames[rs.ref].Meta.CFA; cfa.HasWhiteLevel() && cfa.WhiteLevel < maxValue {
		maxValue = cfa.WhiteLevel
	}
	rs.merged = rs.acc.Finalize(maxValue)

	if e.cfg.HDRDump != "" {
		if err := WriteHDR(&rs.merged, maxValue, e.cfg.HDRDump); err != nil {
			e.log.Warnf("hdr dump %s: %v", e.cfg.HDRDump, err)
		}
	}
	return nil
}

func (e *Engine)stageCorrect(rs *runState) error {
	e.correctExposure(&rs.merged, rs.frames, rs.ref)
	return nil
}
