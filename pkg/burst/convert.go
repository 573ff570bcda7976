package burst

import(
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ConvertingDecoder shells out to an external raw converter (e.g. a
// DNG converter producing linear TIFFs) before handing the result to
// the wrapped decoder. If the converter exits cleanly but the
// expected output file never appears, that is a conversion failure
// and the burst aborts.
type ConvertingDecoder struct {
	Command string   // converter binary
	Args    []string // extra arguments, before the input path
	OutDir  string   // where the converter writes its output
	OutExt  string   // extension of the converted file, e.g. ".tif"
	Next    Decoder
}

func (d ConvertingDecoder)outputPath(in string) string {
	base := filepath.Base(in)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(d.OutDir, base+d.OutExt)
}

func (d ConvertingDecoder)Decode(path string) (*Frame, error) {
	out := d.outputPath(path)

	args := append(append([]string{}, d.Args...), path)
	cmd := exec.Command(d.Command, args...)
	cmd.Dir = d.OutDir
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", ErrExternalConversion, d.Command, path, err)
	}

	if _, err := os.Stat(out); err != nil {
		return nil, fmt.Errorf("%w: expected %s", ErrExternalConversion, out)
	}

	frame, err := d.Next.Decode(out)
	if err != nil {
		return nil, err
	}
	frame.Meta.Name = path // report the original source, not the intermediate
	return frame, nil
}
