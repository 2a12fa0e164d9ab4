// Package config resolves every knob of a run once, at startup. The rest
// of the program receives plain values and never reads flags or the
// environment itself.
package config

import (
	"flag"
	"fmt"
	"time"
)

// Discover holds the settings of one discovery run.
type Discover struct {
	Lat             float64
	Lon             float64
	RadiusKm        float64
	Resolution      int
	ProximityMetres float64
	IgnoreProximity bool
	Concurrency     int
	RetryDelay      time.Duration
	MaxAttempts     int
	OutputDir       string
	Publish         bool
	Archive         bool
}

// ParseDiscover parses discovery flags from args. The centre coordinate is
// mandatory; everything else has a default.
func ParseDiscover(args []string) (*Discover, error) {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	cfg := &Discover{}

	fs.Float64Var(&cfg.Lat, "lat", 0, "centre latitude (required)")
	fs.Float64Var(&cfg.Lon, "lon", 0, "centre longitude (required)")
	fs.Float64Var(&cfg.RadiusKm, "radius", 2, "search radius in kilometres")
	fs.IntVar(&cfg.Resolution, "resolution", 50, "sample points per grid axis")
	fs.Float64Var(&cfg.ProximityMetres, "proximity", 20, "minimum distance in metres between kept panoramas")
	fs.BoolVar(&cfg.IgnoreProximity, "ignore-proximity", false, "keep every unique panoid instead of thinning by distance")
	fs.IntVar(&cfg.Concurrency, "concurrency", 100, "maximum in-flight index lookups")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", 10*time.Second, "pause between attempts for a failing sample point")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", 0, "attempts per sample point before skipping it, 0 retries forever")
	fs.StringVar(&cfg.OutputDir, "out", ".", "directory for the discovery output file")
	fs.BoolVar(&cfg.Publish, "publish", false, "publish accepted records to Kafka")
	fs.BoolVar(&cfg.Archive, "archive", false, "mirror the output file into the S3 archive")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["lat"] || !set["lon"] {
		return nil, fmt.Errorf("both -lat and -lon are required")
	}
	if cfg.Lat < -90 || cfg.Lat > 90 {
		return nil, fmt.Errorf("latitude %v out of range [-90, 90]", cfg.Lat)
	}
	if cfg.Lon < -180 || cfg.Lon > 180 {
		return nil, fmt.Errorf("longitude %v out of range [-180, 180]", cfg.Lon)
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1")
	}
	return cfg, nil
}

// Download holds the settings of one download run.
type Download struct {
	// Source selects where records come from: "file" or "kafka".
	Source      string
	File        string
	PanoDir     string
	TileDir     string
	Concurrency int
	BatchSize   int
	Archive     bool
}

// ParseDownload parses download flags from args. With the default file
// source the records file is mandatory.
func ParseDownload(args []string) (*Download, error) {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	cfg := &Download{}

	fs.StringVar(&cfg.Source, "source", "file", "record source: file or kafka")
	fs.StringVar(&cfg.File, "file", "", "discovery output file to download from")
	fs.StringVar(&cfg.PanoDir, "panoramas", "panoramas", "destination directory for assembled panoramas")
	fs.StringVar(&cfg.TileDir, "tiles", "tiles", "staging directory for downloaded tiles")
	fs.IntVar(&cfg.Concurrency, "concurrency", 100, "maximum in-flight tile requests")
	fs.IntVar(&cfg.BatchSize, "batch", 100, "records per batch window")
	fs.BoolVar(&cfg.Archive, "archive", false, "mirror assembled panoramas into the S3 archive")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.Source {
	case "file":
		// A bare positional argument also names the records file.
		if cfg.File == "" {
			cfg.File = fs.Arg(0)
		}
		if cfg.File == "" {
			return nil, fmt.Errorf("a records file is required: pass -file or a positional path")
		}
	case "kafka":
	default:
		return nil, fmt.Errorf("unknown source %q: want file or kafka", cfg.Source)
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1")
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1")
	}
	return cfg, nil
}
