package main

import(
	"flag"
	"os"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"

	"github.com/burstmerge/burstmerge/pkg/burst"
	"github.com/burstmerge/burstmerge/pkg/mosaic"
)

var(
	fVerbosity    int
	fOutput       string
	fConfig       string

	fExposure     string
	fRobustness   string
	fRefIndex     int
	fTileSize     int
	fCoarseRadius int
	fRefineRadius int

	fPattern      int
	fBlackLevel   float64
	fWhiteLevel   float64

	fAlignPNG     string
	fHDRDump      string
	fConvertCmd   string
	fConvertDir   string
	fCPUProfile   bool
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fOutput, "o", "merged.png", "output filename for the merged frame")
	flag.StringVar(&fConfig, "config", "", "yaml config file; flags override it")

	flag.StringVar(&fExposure, "exposure", "off", "exposure control: off, curve0ev, curve1ev, linearfullrange, linearclip2ev")
	flag.StringVar(&fRobustness, "robustness", "medium", "merge robustness: low, medium, high")
	flag.IntVar(&fRefIndex, "ref", 0, "index of the reference frame in the burst")
	flag.IntVar(&fTileSize, "tilesize", 16, "alignment tile size in samples")
	flag.IntVar(&fCoarseRadius, "searchradius", 8, "search radius at the coarsest pyramid level")
	flag.IntVar(&fRefineRadius, "refineradius", 2, "search radius at finer pyramid levels")

	flag.IntVar(&fPattern, "pattern", mosaic.BayerWidth, "mosaic pattern width: 2 for Bayer, 6 for X-Trans")
	flag.Float64Var(&fBlackLevel, "black", float64(mosaic.Unknown), "sensor black level (all cells); <0 means unknown")
	flag.Float64Var(&fWhiteLevel, "white", float64(mosaic.Unknown), "sensor white level; <0 means unknown")

	flag.StringVar(&fAlignPNG, "alignpng", "", "if set, write per-frame motion-field plots to this prefix")
	flag.StringVar(&fHDRDump, "hdrdump", "", "if set, dump the merged buffer as Radiance HDR before correction")
	flag.StringVar(&fConvertCmd, "convert", "", "external raw converter command; inputs are converted before decoding")
	flag.StringVar(&fConvertDir, "convertdir", ".", "directory the converter writes into")
	flag.BoolVar(&fCPUProfile, "cpuprofile", false, "write a CPU profile to the current directory")
	flag.Parse()
}

func main() {
	log := logrus.New()
	if fVerbosity > 0 {
		log.SetLevel(logrus.DebugLevel)
	}
	if fCPUProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	cfg := burst.NewConfig()
	if fConfig != "" {
		b, err := os.ReadFile(fConfig)
		if err != nil {
			log.Fatalf("config %s: %v", fConfig, err)
		}
		if cfg, err = burst.NewConfigFromYaml(b); err != nil {
			log.Fatalf("config %s: %v", fConfig, err)
		}
	}

	var err error
	if cfg.ExposureControl, err = burst.ParseExposureControl(fExposure); err != nil {
		log.Fatal(err)
	}
	if cfg.Robustness, err = burst.ParseRobustness(fRobustness); err != nil {
		log.Fatal(err)
	}
	cfg.Verbosity = fVerbosity
	cfg.RefIndex = fRefIndex
	cfg.TileSize = fTileSize
	cfg.CoarseRadius = fCoarseRadius
	cfg.RefineRadius = fRefineRadius
	cfg.AlignPNG = fAlignPNG
	cfg.HDRDump = fHDRDump

	if fVerbosity > 0 {
		log.Debugf("Final configuration:-\n\n%s\n", cfg.AsYaml())
	}

	cfa := mosaic.NewCFA(fPattern)
	cfa.WhiteLevel = float32(fWhiteLevel)
	if fWhiteLevel < 0 {
		cfa.WhiteLevel = mosaic.Unknown
	}
	if fBlackLevel >= 0 {
		cfa.BlackLevels = make([]float32, cfa.NumCells())
		for i := range cfa.BlackLevels {
			cfa.BlackLevels[i] = float32(fBlackLevel)
		}
	}

	paths := []string{}
	for _, arg := range flag.Args() {
		expanded, err := burst.ExpandDir(arg)
		if err != nil {
			log.Fatal(err)
		}
		paths = append(paths, expanded...)
	}

	var dec burst.Decoder = burst.TIFFDecoder{CFA: cfa}
	if fConvertCmd != "" {
		dec = burst.ConvertingDecoder{
			Command: fConvertCmd,
			OutDir:  fConvertDir,
			OutExt:  ".tif",
			Next:    dec,
		}
	}

	frames, err := burst.LoadBurst(paths, dec)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("loaded %d frames", len(frames))
	for _, f := range frames {
		log.Debugf("  %s", f)
	}

	engine := burst.NewEngine(cfg, log)
	merged, stats, err := engine.Run(frames)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("merged %d frames, mean weight %.2f", stats.Frames, stats.WeightMean)

	maxValue := cfa.WhiteLevel
	if maxValue == mosaic.Unknown {
		maxValue = 0 // WritePNG16 falls back to full range
	}
	if err := burst.WritePNG16(&merged, maxValue, fOutput); err != nil {
		log.Fatal(err)
	}
	log.Infof("wrote %s", fOutput)
}
