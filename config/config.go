// Package config holds the run configuration of the crash analysis pipeline.
//
// A Config is assembled once (defaults, then an optional JSON file, then the
// environment), validated, and passed by value into every component. Nothing
// mutates it afterwards; the thresholds it carries are echoed verbatim into the
// findings document.
package config

import (
	"strings"

	"github.com/pkg/errors"
)

// Thresholds are the tunables of tracking and fault inference.
// JSON names are part of the findings document.
type Thresholds struct {
	// Minimal IoU for frame-to-frame association
	MatchIoU float64 `json:"match_iou"`
	// TTC at or below which a track is high risk, seconds
	TTCDanger float64 `json:"ttc_danger_s"`
	// TTC at or below which a track is medium risk, seconds
	TTCWarn float64 `json:"ttc_warn_s"`
	// Single-step TTC drop counted as hard approach, seconds
	TTCDrop float64 `json:"ttc_drop_s"`
	// Population std dev of center-x counted as weaving, pixels
	LateralStdMin float64 `json:"lateral_std_min"`
	// Early TTC counted as cut-in, seconds
	CutInTTC float64 `json:"cutin_ttc_s"`
	// Mean speed at or below which a track is very slow, px/s
	SpeedSlow float64 `json:"speed_slow_pxps"`
	// Mean speed at or above which a track is fast, px/s
	SpeedFast float64 `json:"speed_fast_pxps"`
	// Consecutive low TTC samples needed for sustained low TTC
	LowTTCFrames int `json:"low_ttc_frames"`
	// Minimum number of frames to run the analysis at all
	MinFrames int `json:"min_frames"`
}

// StoreConfig selects artifact storage
type StoreConfig struct {
	// "file" or "sqlite"
	Driver string
	// Root directory for "file", database path for "sqlite"
	Path string
}

// Config is the complete configuration of a pipeline run
type Config struct {
	Thresholds Thresholds
	// Frame sampling rate of extracted stills
	FPS float64
	// Detection labels admitted into tracking
	VehicleLabels []string
	// Maximum number of states persisted per track
	MaxPersistedStates int
	Store              StoreConfig
	Logging            struct {
		Level string
	}
	Server struct {
		Addr string
	}
}

const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
)

// DefaultThresholds returns the stock thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		MatchIoU:      0.3,
		TTCDanger:     2.5,
		TTCWarn:       4.0,
		TTCDrop:       1.0,
		LateralStdMin: 5.0,
		CutInTTC:      2.2,
		SpeedSlow:     20,
		SpeedFast:     180,
		LowTTCFrames:  3,
		MinFrames:     8,
	}
}

// Default returns configuration with every field set to its default value
func Default() Config {
	cfg := Config{
		Thresholds:         DefaultThresholds(),
		FPS:                5,
		VehicleLabels:      []string{"car"},
		MaxPersistedStates: 10,
		Store: StoreConfig{
			Driver: StoreDriverFile,
			Path:   "./artifacts",
		},
	}
	cfg.Logging.Level = "info"
	cfg.Server.Addr = ":8080"
	return cfg
}

// IsVehicle reports whether detections with the given label feed the tracker
func (cfg Config) IsVehicle(label string) bool {
	for _, l := range cfg.VehicleLabels {
		if l == label {
			return true
		}
	}
	return false
}

// Validate checks that the configuration is usable
func (cfg Config) Validate() error {
	th := cfg.Thresholds
	if cfg.FPS <= 0 {
		return errors.Errorf("fps must be positive, got %v", cfg.FPS)
	}
	if th.MatchIoU <= 0 || th.MatchIoU > 1 {
		return errors.Errorf("match_iou must be in (0, 1], got %v", th.MatchIoU)
	}
	nonNegative := []struct {
		name  string
		value float64
	}{
		{"ttc_danger_s", th.TTCDanger},
		{"ttc_warn_s", th.TTCWarn},
		{"ttc_drop_s", th.TTCDrop},
		{"lateral_std_min", th.LateralStdMin},
		{"cutin_ttc_s", th.CutInTTC},
		{"speed_slow_pxps", th.SpeedSlow},
		{"speed_fast_pxps", th.SpeedFast},
	}
	for _, v := range nonNegative {
		if v.value < 0 {
			return errors.Errorf("%s must not be negative, got %v", v.name, v.value)
		}
	}
	if th.TTCDanger > th.TTCWarn {
		return errors.Errorf("ttc_danger_s (%v) must not exceed ttc_warn_s (%v)", th.TTCDanger, th.TTCWarn)
	}
	if th.LowTTCFrames < 1 {
		return errors.Errorf("low_ttc_frames must be at least 1, got %d", th.LowTTCFrames)
	}
	if th.MinFrames < 0 {
		return errors.Errorf("min_frames must not be negative, got %d", th.MinFrames)
	}
	if len(cfg.VehicleLabels) == 0 {
		return errors.New("at least one vehicle label is required")
	}
	if cfg.MaxPersistedStates < 2 {
		return errors.Errorf("max persisted states must be at least 2, got %d", cfg.MaxPersistedStates)
	}
	switch cfg.Store.Driver {
	case StoreDriverFile, StoreDriverSQLite:
	default:
		return errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if strings.TrimSpace(cfg.Store.Path) == "" {
		return errors.New("store path is required")
	}
	return nil
}
