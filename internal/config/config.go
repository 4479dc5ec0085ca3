// Package config loads argos settings from an optional YAML file and ARGOS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/spf13/viper"

	"argos/internal/exif"
	"argos/internal/geo"
	"argos/internal/homography"
	"argos/internal/truth"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Depot     string          `mapstructure:"depot"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Placement PlacementConfig `mapstructure:"placement"`
	Targets   TargetsConfig   `mapstructure:"targets"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EstimatorConfig struct {
	CropSize        int           `mapstructure:"crop_size"`
	Ratio           float64       `mapstructure:"ratio"`
	MinMatches      int           `mapstructure:"min_matches"`
	ReprojThreshold float64       `mapstructure:"reproj_threshold"`
	Iterations      int           `mapstructure:"iterations"`
	Seed            int64         `mapstructure:"seed"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Workers         int           `mapstructure:"workers"`
}

type CacheConfig struct {
	MaxEntries int64         `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type CameraConfig struct {
	// FieldOfView is the diagonal field of view used when a photo carries no
	// 35mm focal length.
	FieldOfView float64 `mapstructure:"field_of_view"`
	// ReferenceCol/Row is the photo pixel estimation crops are centred on.
	// Negative means the image centre.
	ReferenceCol int `mapstructure:"reference_col"`
	ReferenceRow int `mapstructure:"reference_row"`
	// Declination is "add", "subtract" or "ignore".
	Declination string `mapstructure:"declination"`
	// FixedDeclination, when set, replaces the World Magnetic Model.
	FixedDeclination *float64 `mapstructure:"fixed_declination"`
}

type PlacementConfig struct {
	KMap       int  `mapstructure:"k_map"`
	KImage     int  `mapstructure:"k_image"`
	Exhaustive bool `mapstructure:"exhaustive"`
}

type TargetsConfig struct {
	// Physical adds water, road, sand and rock to the list.
	Physical bool           `mapstructure:"physical"`
	List     []truth.Target `mapstructure:"list"`
}

// Load reads configuration from path, or from argos.yaml in the working
// directory or ./configs when path is empty, then applies environment
// variables: ARGOS_ESTIMATOR_CROP_SIZE → estimator.crop_size.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := homography.DefaultOptions()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("depot", ".")
	v.SetDefault("estimator.crop_size", def.CropSize)
	v.SetDefault("estimator.ratio", def.Ratio)
	v.SetDefault("estimator.min_matches", def.MinMatches)
	v.SetDefault("estimator.reproj_threshold", def.ReprojThreshold)
	v.SetDefault("estimator.iterations", def.Iterations)
	v.SetDefault("estimator.seed", 0)
	v.SetDefault("estimator.timeout", 2*time.Minute)
	v.SetDefault("estimator.workers", 4)
	v.SetDefault("cache.max_entries", 256)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("camera.field_of_view", 0.0)
	v.SetDefault("camera.reference_col", -1)
	v.SetDefault("camera.reference_row", -1)
	v.SetDefault("camera.declination", geo.DeclinationAdd.String())
	v.SetDefault("placement.k_map", truth.MapNeighbors)
	v.SetDefault("placement.k_image", truth.ImageNeighbors)
	v.SetDefault("placement.exhaustive", false)
	v.SetDefault("targets.physical", true)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("argos")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("ARGOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default, so AutomaticEnv alone would never surface it to Unmarshal.
	if err := v.BindEnv("camera.fixed_declination"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that configuration values are sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Estimator.CropSize <= 0 {
		errs = append(errs, fmt.Sprintf("estimator.crop_size must be positive, got %d", c.Estimator.CropSize))
	}
	if c.Estimator.Ratio <= 0 || c.Estimator.Ratio >= 1 {
		errs = append(errs, fmt.Sprintf("estimator.ratio must be in (0, 1), got %g", c.Estimator.Ratio))
	}
	if c.Estimator.MinMatches < 4 {
		errs = append(errs, fmt.Sprintf("estimator.min_matches must be at least 4, got %d", c.Estimator.MinMatches))
	}
	if c.Estimator.Workers <= 0 {
		errs = append(errs, "estimator.workers must be positive")
	}
	if c.Camera.FieldOfView < 0 || c.Camera.FieldOfView >= 180 {
		errs = append(errs, fmt.Sprintf("camera.field_of_view must be in [0, 180), got %g", c.Camera.FieldOfView))
	}
	if _, err := geo.ParseDeclinationConvention(c.Camera.Declination); err != nil {
		errs = append(errs, "camera.declination: "+err.Error())
	}
	if c.Placement.KMap <= 0 || c.Placement.KImage <= 0 {
		errs = append(errs, "placement.k_map and placement.k_image must be positive")
	}
	for i, t := range c.Targets.List {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("targets.list[%d]: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// EstimatorOptions returns the homography estimator settings.
func (c *Config) EstimatorOptions() homography.Options {
	opts := homography.Options{
		CropSize:        c.Estimator.CropSize,
		Ratio:           c.Estimator.Ratio,
		MinMatches:      c.Estimator.MinMatches,
		ReprojThreshold: c.Estimator.ReprojThreshold,
		Iterations:      c.Estimator.Iterations,
		Seed:            c.Estimator.Seed,
	}
	if c.Camera.ReferenceCol >= 0 && c.Camera.ReferenceRow >= 0 {
		opts.ImageReference = &image.Point{X: c.Camera.ReferenceCol, Y: c.Camera.ReferenceRow}
	}
	return opts
}

// ExifOptions returns the metadata fallbacks.
func (c *Config) ExifOptions() exif.Options {
	return exif.Options{FieldOfView: c.Camera.FieldOfView}
}

// Declination returns the yaw correction for EXIF-only georeferencing.
func (c *Config) Declination() (geo.Declination, error) {
	conv, err := geo.ParseDeclinationConvention(c.Camera.Declination)
	if err != nil {
		return geo.Declination{}, err
	}
	var model geo.DeclinationModel = geo.WMM{}
	if c.Camera.FixedDeclination != nil {
		model = geo.FixedDeclination(*c.Camera.FixedDeclination)
	}
	return geo.Declination{Model: model, Convention: conv}, nil
}

// PlacementOptions returns ground-truth placement settings for a map or tile,
// or for a photo when image is true.
func (c *Config) PlacementOptions(image bool) truth.Options {
	k := c.Placement.KMap
	if image {
		k = c.Placement.KImage
	}
	return truth.Options{K: k, Exhaustive: c.Placement.Exhaustive}
}

// TargetList returns the configured targets followed by the physical
// features when enabled.
func (c *Config) TargetList() []truth.Target {
	out := append([]truth.Target{}, c.Targets.List...)
	if c.Targets.Physical {
		out = append(out, truth.PhysicalFeatures()...)
	}
	return out
}
