package burst

import(
	"fmt"

	"gopkg.in/yaml.v2"
)

// ExposureControl selects the exposure/tone correction applied after
// the merge. A closed enum with exhaustive switches, so an unhandled
// mode is a compile-time problem rather than a string comparison.
type ExposureControl int

const(
	ExposureOff ExposureControl = iota
	ExposureCurve0EV
	ExposureCurve1EV
	ExposureLinearFullRange
	ExposureLinearClip2EV
)

var exposureControlNames = map[ExposureControl]string{
	ExposureOff:             "off",
	ExposureCurve0EV:        "curve0ev",
	ExposureCurve1EV:        "curve1ev",
	ExposureLinearFullRange: "linearfullrange",
	ExposureLinearClip2EV:   "linearclip2ev",
}

func (ec ExposureControl)String() string { return exposureControlNames[ec] }

func ParseExposureControl(s string) (ExposureControl, error) {
	for ec, name := range exposureControlNames {
		if name == s {
			return ec, nil
		}
	}
	return ExposureOff, fmt.Errorf("no exposure control named '%s'", s)
}

func (ec ExposureControl)MarshalYAML() (interface{}, error) { return ec.String(), nil }
func (ec *ExposureControl)UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseExposureControl(s)
	if err != nil {
		return err
	}
	*ec = parsed
	return nil
}

// Robustness controls how aggressively motion-inconsistent samples
// are down-weighted during the merge. Higher settings suppress more
// ghosting at the cost of effective frame count.
type Robustness int

const(
	RobustnessLow Robustness = iota
	RobustnessMedium
	RobustnessHigh
)

var robustnessNames = map[Robustness]string{
	RobustnessLow:    "low",
	RobustnessMedium: "medium",
	RobustnessHigh:   "high",
}

func (r Robustness)String() string { return robustnessNames[r] }

func ParseRobustness(s string) (Robustness, error) {
	for r, name := range robustnessNames {
		if name == s {
			return r, nil
		}
	}
	return RobustnessMedium, fmt.Errorf("no robustness level named '%s'", s)
}

func (r Robustness)MarshalYAML() (interface{}, error) { return r.String(), nil }
func (r *Robustness)UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseRobustness(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// outlierScale is the deviation threshold in noise sigmas before
// attenuation bites. Smaller scale = stronger suppression, so the
// outlier weight is monotone non-increasing in robustness.
func (r Robustness)outlierScale() float32 {
	switch r {
	case RobustnessLow:    return 4.0
	case RobustnessMedium: return 2.0
	case RobustnessHigh:   return 1.0
	}
	return 2.0
}

type Config struct {
	Verbosity       int             `yaml:"verbosity"`

	ExposureControl ExposureControl `yaml:"exposureControl"`
	Robustness      Robustness      `yaml:"robustness"`
	RefIndex        int             `yaml:"refIndex"`

	TileSize        int             `yaml:"tileSize"`
	CoarseRadius    int             `yaml:"coarseRadius"`   // search radius at the coarsest level
	RefineRadius    int             `yaml:"refineRadius"`   // search radius at every finer level
	MinCoarseTiles  int             `yaml:"minCoarseTiles"` // stop halving when fewer tiles would fit

	// Debug outputs; empty means off
	AlignPNG        string          `yaml:"alignPng"` // per-frame motion-field plots, suffixed by frame index
	HDRDump         string          `yaml:"hdrDump"`  // Radiance HDR dump of the merged buffer, pre-correction
}

func NewConfig() Config {
	return Config{
		ExposureControl: ExposureOff,
		Robustness:      RobustnessMedium,
		RefIndex:        0,
		TileSize:        16,
		CoarseRadius:    8,
		RefineRadius:    2,
		MinCoarseTiles:  4,
	}
}

func NewConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config marshal failed: %v", err)
	}
	return string(b)
}
