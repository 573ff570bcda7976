package burst

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder fabricates frames from paths; names prefixed "bad" fail.
type fakeDecoder struct{}

func (fakeDecoder) Decode(path string) (*Frame, error) {
	if filepath.Base(path)[0] == 'b' {
		return nil, fmt.Errorf("synthetic decode failure")
	}
	return flatFrame(path, 4, 4, 100, 0, testCFA(0, 1000)), nil
}

func TestLoadBurstPreservesOrder(t *testing.T) {
	paths := []string{"d/f03.tif", "d/f01.tif", "d/f02.tif"}
	frames, err := LoadBurst(paths, fakeDecoder{})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, p := range paths {
		assert.Equal(t, p, frames[i].Meta.Name, "slot %d must hold its own path's frame", i)
	}
}

func TestLoadBurstFailsWholeBurst(t *testing.T) {
	paths := []string{"d/f01.tif", "d/bad.tif", "d/f02.tif"}
	frames, err := LoadBurst(paths, fakeDecoder{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
	assert.Nil(t, frames, "no partial bursts")
}

func TestLoadBurstRejectsEmptyInput(t *testing.T) {
	_, err := LoadBurst(nil, fakeDecoder{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
}

func TestExpandDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"f01.tif", "f02.tif", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	files, err := ExpandDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "f01.tif"),
		filepath.Join(dir, "f02.tif"),
	}, files, "hidden files and subdirectories are skipped")
}

func TestExpandDirPlainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.tif")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	files, err := ExpandDir(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestExpandDirMissingPath(t *testing.T) {
	_, err := ExpandDir("/no/such/burst/dir")
	assert.Error(t, err)
}

func TestConvertingDecoderMissingOutput(t *testing.T) {
	d := ConvertingDecoder{
		Command: "true", // exits cleanly but converts nothing
		OutDir:  t.TempDir(),
		OutExt:  ".tif",
		Next:    fakeDecoder{},
	}
	_, err := d.Decode("d/f01.raw")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalConversion))
}

func TestConvertingDecoderRestoresSourceName(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "f01.raw")

	// touch stands in for the converter: it creates the expected output
	// (and the source, which it also receives as an argument)
	d := ConvertingDecoder{
		Command: "touch",
		Args:    []string{filepath.Join(dir, "f01.tif")},
		OutDir:  dir,
		OutExt:  ".tif",
		Next:    fakeDecoder{},
	}
	frame, err := d.Decode(src)
	require.NoError(t, err)
	assert.Equal(t, src, frame.Meta.Name)
}
