// Package config loads and validates the YAML scenario configuration
// shared by every command.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/golang/geo/r3"

	"github.com/astroviz/navbench/internal/estimator"
	"github.com/astroviz/navbench/internal/render"
	"github.com/astroviz/navbench/internal/sampler"
	"github.com/astroviz/navbench/internal/scene"
)

type Config struct {
	Name      string           `yaml:"name"`
	Target    Target           `yaml:"target"`
	Camera    Camera           `yaml:"camera"`
	Render    Render           `yaml:"render"`
	Sampler   sampler.Config   `yaml:"sampler"`
	Estimator estimator.Config `yaml:"estimator"`
	Batch     Batch            `yaml:"batch"`
	Results   Results          `yaml:"results"`
}

// Target describes the synthetic body and its landmark map.
type Target struct {
	SemiAxes  [3]float64 `yaml:"semi_axes"`
	Landmarks int        `yaml:"landmarks"`
	Seed      uint64     `yaml:"seed"`
}

type Camera struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	HFOVDeg float64 `yaml:"hfov_deg"`
}

type Render struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Lambertian *bool   `yaml:"lambertian"`
	Shadows    *bool   `yaml:"shadows"`
	NoiseSigma float64 `yaml:"noise_sigma"`
}

type Batch struct {
	Trials              int    `yaml:"trials"`
	Workers             int    `yaml:"workers"`
	Seed                uint64 `yaml:"seed"`
	TrialTimeoutSeconds int    `yaml:"trial_timeout_seconds"`
	Tracking            bool   `yaml:"tracking"`
}

// TrialTimeout returns the per-trial wall clock budget.
func (b Batch) TrialTimeout() time.Duration {
	return time.Duration(b.TrialTimeoutSeconds) * time.Second
}

type Results struct {
	Dir        string `yaml:"dir"`
	KeepFrames bool   `yaml:"keep_frames"`
}

// BuildTarget constructs the landmark map the config describes.
func (t Target) BuildTarget() *scene.Target {
	semi := r3.Vector{X: t.SemiAxes[0], Y: t.SemiAxes[1], Z: t.SemiAxes[2]}
	return scene.NewTarget(semi, t.Landmarks, t.Seed)
}

// BuildCamera constructs the pinhole model the config describes.
func (c Camera) BuildCamera() scene.Camera {
	return scene.NewCameraFromFOV(c.Width, c.Height, c.HFOVDeg)
}

// Options maps the render section onto renderer options, keeping the
// renderer defaults where the config is silent.
func (r Render) Options() render.Options {
	opts := render.DefaultOptions(r.Width, r.Height)
	if r.Lambertian != nil {
		opts.Lambertian = *r.Lambertian
	}
	if r.Shadows != nil {
		opts.Shadows = *r.Shadows
	}
	opts.NoiseSigma = r.NoiseSigma
	return opts
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Name == "" {
		cfg.Name = "scenario"
	}
	for i, a := range cfg.Target.SemiAxes {
		if a <= 0 {
			return fmt.Errorf("target: semi_axes[%d] must be positive", i)
		}
	}
	if cfg.Target.Landmarks < 6 {
		return fmt.Errorf("target: at least 6 landmarks required, got %d", cfg.Target.Landmarks)
	}
	if cfg.Camera.Width < 1 || cfg.Camera.Height < 1 {
		return fmt.Errorf("camera: resolution %dx%d invalid", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.HFOVDeg <= 0 || cfg.Camera.HFOVDeg >= 180 {
		return fmt.Errorf("camera: hfov_deg %v out of (0, 180)", cfg.Camera.HFOVDeg)
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = cfg.Camera.Width
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = cfg.Camera.Height
	}
	if cfg.Render.Width < 16 || cfg.Render.Height < 16 {
		return fmt.Errorf("render: resolution %dx%d too small", cfg.Render.Width, cfg.Render.Height)
	}
	if cfg.Render.NoiseSigma < 0 {
		return fmt.Errorf("render: noise_sigma must not be negative")
	}
	if err := cfg.Sampler.Validate(); err != nil {
		return err
	}
	if err := cfg.Estimator.Validate(); err != nil {
		return err
	}
	if cfg.Batch.Trials < 1 {
		return fmt.Errorf("batch: trials must be at least 1")
	}
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = 4
	}
	if cfg.Batch.Workers < 1 {
		return fmt.Errorf("batch: workers must be at least 1")
	}
	if cfg.Batch.TrialTimeoutSeconds == 0 {
		cfg.Batch.TrialTimeoutSeconds = 30
	}
	if cfg.Batch.TrialTimeoutSeconds < 0 {
		return fmt.Errorf("batch: trial_timeout_seconds must not be negative")
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	return nil
}
