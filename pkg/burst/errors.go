package burst

import "errors"

// The pipeline has three fatal error kinds. All of them abort the
// whole burst: there is no partial merge and no retry at this layer.
var(
	// ErrLoad: a frame failed to decode.
	ErrLoad = errors.New("image failed to load")

	// ErrAlignment: a frame cannot be matched against the reference,
	// e.g. degenerate input with no valid pixels.
	ErrAlignment = errors.New("frame cannot be aligned")

	// ErrExternalConversion: an external raw conversion step did not
	// produce its expected output file.
	ErrExternalConversion = errors.New("external conversion produced no output")
)
