// Package config loads the tunables of the capture pipeline and its
// collaborators from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/byosync/facecommit/pkg/matcher"
	"github.com/byosync/facecommit/pkg/pipeline"
	"github.com/byosync/facecommit/pkg/quality"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Quality struct {
	IODMin            float64 `yaml:"iod_min" validate:"gt=0,ltfield=IODMax"`
	IODMax            float64 `yaml:"iod_max" validate:"lte=1"`
	OvalInflation     float64 `yaml:"oval_inflation" validate:"gte=1"`
	MinInsideFraction float64 `yaml:"min_inside_fraction" validate:"gt=0,lte=1"`
	FallbackScale     float64 `yaml:"fallback_scale" validate:"gt=0"`
}

type Registration struct {
	CenterQuota      int           `yaml:"center_quota" validate:"min=1"`
	MovementQuota    int           `yaml:"movement_quota" validate:"min=1"`
	MovementDuration time.Duration `yaml:"movement_duration" validate:"gt=0"`
	Completion       string        `yaml:"completion" validate:"oneof=deadline quota either"`
}

type Aggregator struct {
	Capacity        int `yaml:"capacity" validate:"min=1"`
	EnrollBatch     int `yaml:"enroll_batch" validate:"min=1,ltefield=Capacity"`
	MinEnrollFrames int `yaml:"min_enroll_frames" validate:"min=1,ltefield=EnrollBatch"`
}

type Verification struct {
	SampleSize int `yaml:"sample_size" validate:"min=1"`
	MinMatches int `yaml:"min_matches" validate:"min=2,ltefield=SampleSize"`
}

type Screen struct {
	Width  float64 `yaml:"width" validate:"gt=0"`
	Height float64 `yaml:"height" validate:"gt=0"`
}

type Upload struct {
	Permits int64 `yaml:"permits" validate:"min=1"`
}

type Storage struct {
	Backend  string        `yaml:"backend" validate:"oneof=memory file redis postgres"`
	Dir      string        `yaml:"dir" validate:"required_if=Backend file"`
	RedisTTL time.Duration `yaml:"redis_ttl" validate:"gte=0"`
}

type Config struct {
	Reference    string       `yaml:"reference"`
	Quality      Quality      `yaml:"quality"`
	Registration Registration `yaml:"registration"`
	Aggregator   Aggregator   `yaml:"aggregator"`
	Verification Verification `yaml:"verification"`
	Screen       Screen       `yaml:"screen"`
	Upload       Upload       `yaml:"upload"`
	Storage      Storage      `yaml:"storage"`
}

func Default() Config {
	p := pipeline.DefaultConfig()

	return Config{
		Reference: "reference.yaml",
		Quality: Quality{
			IODMin:            p.Quality.IODMin,
			IODMax:            p.Quality.IODMax,
			OvalInflation:     p.Quality.OvalInflation,
			MinInsideFraction: p.Quality.MinInsideFraction,
			FallbackScale:     p.Quality.FallbackScale,
		},
		Registration: Registration{
			CenterQuota:      p.Phase.CenterQuota,
			MovementQuota:    p.Phase.MovementQuota,
			MovementDuration: p.Phase.MovementDuration,
			Completion:       string(p.Phase.Completion),
		},
		Aggregator: Aggregator{
			Capacity:        p.Capacity,
			EnrollBatch:     p.EnrollBatch,
			MinEnrollFrames: p.MinEnrollFrames,
		},
		Verification: Verification{
			SampleSize: p.Matcher.SampleSize,
			MinMatches: p.Matcher.MinMatches,
		},
		Screen: Screen{
			Width:  p.Screen.Width,
			Height: p.Screen.Height,
		},
		Upload: Upload{
			Permits: 3,
		},
		Storage: Storage{
			Backend: "file",
			Dir:     "enrollments",
		},
	}
}

// Parse reads YAML over the defaults and validates the result.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()

	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("cannot decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load parses the file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	return Parse(f)
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Pipeline converts the config into pipeline settings.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Quality: quality.Config{
			IODMin:            c.Quality.IODMin,
			IODMax:            c.Quality.IODMax,
			OvalInflation:     c.Quality.OvalInflation,
			MinInsideFraction: c.Quality.MinInsideFraction,
			FallbackScale:     c.Quality.FallbackScale,
		},
		Phase: quality.PhaseConfig{
			CenterQuota:      c.Registration.CenterQuota,
			MovementQuota:    c.Registration.MovementQuota,
			MovementDuration: c.Registration.MovementDuration,
			Completion:       quality.Completion(c.Registration.Completion),
		},
		Capacity:        c.Aggregator.Capacity,
		EnrollBatch:     c.Aggregator.EnrollBatch,
		MinEnrollFrames: c.Aggregator.MinEnrollFrames,
		Matcher: matcher.Config{
			SampleSize: c.Verification.SampleSize,
			MinMatches: c.Verification.MinMatches,
		},
		Screen: quality.Screen{
			Width:  c.Screen.Width,
			Height: c.Screen.Height,
		},
	}
}
