package burst

import(
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"

	"github.com/burstmerge/burstmerge/pkg/bmath"
	"github.com/burstmerge/burstmerge/pkg/mosaic"
)

// A Decoder turns one source file into a Frame. Raw decoding proper
// lives outside the core; this interface is the seam.
type Decoder interface {
	Decode(path string) (*Frame, error)
}

// ExpandDir lists the plain files directly inside dir (non-recursive),
// skipping hidden entries. A non-directory path is returned as-is.
func ExpandDir(path string) ([]string, error) {
	item, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %v", path, err)
	}
	if !item.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %v", path, err)
	}
	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	return files, nil
}

// LoadBurst decodes every path on a bounded pool of workers. Results
// land in a fixed-size slice indexed by task position, so no shared
// map needs guarding; the join barrier then validates that every slot
// filled. One missing frame fails the whole load — no partial bursts.
func LoadBurst(paths []string, dec Decoder) ([]*Frame, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no input files", ErrLoad)
	}

	frames := make([]*Frame, len(paths))
	errs := make([]error, len(paths))

	sem := make(chan bool, runtime.NumCPU())
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		sem <- true
		go func(i int, path string) {
			defer func() { <-sem; wg.Done() }()
			frames[i], errs[i] = dec.Decode(path)
		}(i, path)
	}
	wg.Wait()

	for i, f := range frames {
		if errs[i] != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoad, paths[i], errs[i])
		}
		if f == nil {
			return nil, fmt.Errorf("%w: %s: decoder returned nothing", ErrLoad, paths[i])
		}
	}
	return frames, nil
}

// TIFFDecoder reads 16-bit grayscale TIFFs holding undemosaiced
// sensor data, with exposure metadata from EXIF where present. The
// burst-level calibration (pattern, black/white levels, color
// factors) is stamped onto every frame.
type TIFFDecoder struct {
	CFA mosaic.CFA
}

func (d TIFFDecoder)Decode(path string) (*Frame, error) {
	meta := Meta{Name: path, CFA: d.CFA}

	// EXIF first; missing or partial EXIF is fine, the defaults hold.
	if reader, err := os.Open(path); err == nil {
		if ex, err := exif.Decode(reader); err == nil {
			if tag, err := ex.Get(exif.ExposureBiasValue); err == nil {
				if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
					meta.ExposureBias = int(num * 100 / denom)
				}
			}
			if tag, err := ex.Get(exif.ExposureTime); err == nil {
				if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
					meta.ExposureTime = float64(num) / float64(denom)
				}
			}
		}
		reader.Close()
	}

	reader, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open+r img '%s': %v", path, err)
	}
	defer reader.Close()
	img, err := tiff.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("tiff loading '%s': %v", path, err)
	}

	return &Frame{Grid: gridFromImage(img), Meta: meta}, nil
}

// gridFromImage flattens an image to one scalar per pixel. Mosaic
// sources are single-channel, so any channel carries the sample; gray
// images take the fast path.
func gridFromImage(img image.Image) bmath.Grid {
	b := img.Bounds()
	g := bmath.NewGrid(b.Dx(), b.Dy())

	if gray, ok := img.(*image.Gray16); ok {
		for y:=0; y<b.Dy(); y++ {
			for x:=0; x<b.Dx(); x++ {
				g.Set(x, y, float32(gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return g
	}

	for y:=0; y<b.Dy(); y++ {
		for x:=0; x<b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.Set(x, y, float32(r))
		}
	}
	return g
}
