package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// maxFileSize limits configuration files to 1MB
const maxFileSize = 1 * 1024 * 1024

// fileConfig is the JSON schema of a configuration file.
// Fields omitted from the file keep their previous values, so partial files are safe.
type fileConfig struct {
	MatchIoU           *float64 `json:"match_iou,omitempty"`
	TTCDanger          *float64 `json:"ttc_danger_s,omitempty"`
	TTCWarn            *float64 `json:"ttc_warn_s,omitempty"`
	TTCDrop            *float64 `json:"ttc_drop_s,omitempty"`
	LateralStdMin      *float64 `json:"lateral_std_min,omitempty"`
	CutInTTC           *float64 `json:"cutin_ttc_s,omitempty"`
	SpeedSlow          *float64 `json:"speed_slow_pxps,omitempty"`
	SpeedFast          *float64 `json:"speed_fast_pxps,omitempty"`
	LowTTCFrames       *int     `json:"low_ttc_frames,omitempty"`
	MinFrames          *int     `json:"min_frames,omitempty"`
	FPS                *float64 `json:"fps,omitempty"`
	VehicleLabels      []string `json:"vehicle_labels,omitempty"`
	MaxPersistedStates *int     `json:"max_persisted_states,omitempty"`
	StoreDriver        *string  `json:"store_driver,omitempty"`
	StorePath          *string  `json:"store_path,omitempty"`
	LogLevel           *string  `json:"log_level,omitempty"`
	ServerAddr         *string  `json:"server_addr,omitempty"`
}

// LookupFunc resolves a single environment variable. os.LookupEnv fits.
type LookupFunc func(key string) (string, bool)

// Load builds configuration from defaults, the optional JSON file at path and the environment,
// then validates the result.
func Load(path string, lookup LookupFunc) (Config, error) {
	cfg := Default()
	var err error
	if path != "" {
		cfg, err = ApplyFile(cfg, path)
		if err != nil {
			return Config{}, err
		}
	}
	if lookup != nil {
		cfg, err = ApplyEnv(cfg, lookup)
		if err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// ApplyFile overlays values from a JSON file on top of base.
// The file must have .json extension and be under 1MB.
func ApplyFile(base Config, path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, errors.Errorf("config file must have .json extension, got %q", ext)
	}
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to stat config file")
	}
	if fileInfo.Size() > maxFileSize {
		return Config{}, errors.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config file %s", cleanPath)
	}
	return fc.applyTo(base), nil
}

func (fc fileConfig) applyTo(cfg Config) Config {
	setFloat(&cfg.Thresholds.MatchIoU, fc.MatchIoU)
	setFloat(&cfg.Thresholds.TTCDanger, fc.TTCDanger)
	setFloat(&cfg.Thresholds.TTCWarn, fc.TTCWarn)
	setFloat(&cfg.Thresholds.TTCDrop, fc.TTCDrop)
	setFloat(&cfg.Thresholds.LateralStdMin, fc.LateralStdMin)
	setFloat(&cfg.Thresholds.CutInTTC, fc.CutInTTC)
	setFloat(&cfg.Thresholds.SpeedSlow, fc.SpeedSlow)
	setFloat(&cfg.Thresholds.SpeedFast, fc.SpeedFast)
	setInt(&cfg.Thresholds.LowTTCFrames, fc.LowTTCFrames)
	setInt(&cfg.Thresholds.MinFrames, fc.MinFrames)
	setFloat(&cfg.FPS, fc.FPS)
	setInt(&cfg.MaxPersistedStates, fc.MaxPersistedStates)
	setString(&cfg.Store.Driver, fc.StoreDriver)
	setString(&cfg.Store.Path, fc.StorePath)
	setString(&cfg.Logging.Level, fc.LogLevel)
	setString(&cfg.Server.Addr, fc.ServerAddr)
	if len(fc.VehicleLabels) > 0 {
		cfg.VehicleLabels = append([]string(nil), fc.VehicleLabels...)
	}
	return cfg
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// ApplyEnv overlays environment variables on top of base
func ApplyEnv(base Config, lookup LookupFunc) (Config, error) {
	cfg := base
	env := envReader{lookup: lookup}
	env.readFloat("MATCH_IOU", &cfg.Thresholds.MatchIoU)
	env.readFloat("TTC_DANGER_S", &cfg.Thresholds.TTCDanger)
	env.readFloat("TTC_WARN_S", &cfg.Thresholds.TTCWarn)
	env.readFloat("TTC_DROP_S", &cfg.Thresholds.TTCDrop)
	env.readFloat("LATERAL_STD_MIN", &cfg.Thresholds.LateralStdMin)
	env.readFloat("CUTIN_TTC_S", &cfg.Thresholds.CutInTTC)
	env.readFloat("SPEED_SLOW_PXPS", &cfg.Thresholds.SpeedSlow)
	env.readFloat("SPEED_FAST_PXPS", &cfg.Thresholds.SpeedFast)
	env.readInt("LOW_TTC_FRAMES", &cfg.Thresholds.LowTTCFrames)
	env.readInt("MIN_FRAMES", &cfg.Thresholds.MinFrames)
	env.readFloat("FPS", &cfg.FPS)
	env.readInt("MAX_PERSISTED_STATES", &cfg.MaxPersistedStates)
	env.readString("STORE_DRIVER", &cfg.Store.Driver)
	env.readString("STORE_PATH", &cfg.Store.Path)
	env.readString("LOG_LEVEL", &cfg.Logging.Level)
	env.readString("SERVER_ADDR", &cfg.Server.Addr)
	if value, ok := env.get("VEHICLE_LABELS"); ok {
		labels := make([]string, 0)
		for _, l := range strings.Split(value, ",") {
			if l = strings.TrimSpace(l); l != "" {
				labels = append(labels, l)
			}
		}
		cfg.VehicleLabels = labels
	}
	if env.err != nil {
		return Config{}, env.err
	}
	return cfg, nil
}

// envReader reads typed values and remembers the first parse error
type envReader struct {
	lookup LookupFunc
	err    error
}

func (r *envReader) get(key string) (string, bool) {
	value, ok := r.lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (r *envReader) readFloat(key string, dst *float64) {
	value, ok := r.get(key)
	if !ok || r.err != nil {
		return
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.err = errors.Wrapf(err, "invalid %s", key)
		return
	}
	*dst = v
}

func (r *envReader) readInt(key string, dst *int) {
	value, ok := r.get(key)
	if !ok || r.err != nil {
		return
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		r.err = errors.Wrapf(err, "invalid %s", key)
		return
	}
	*dst = v
}

func (r *envReader) readString(key string, dst *string) {
	if value, ok := r.get(key); ok {
		*dst = value
	}
}
