// Package config provides configuration loading and management for the
// connectomist commands. It handles loading configuration from YAML files
// and provides default values.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/labeling"
	"goconnectomist/pkg/preproc"
	"goconnectomist/pkg/tractography"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Engine locates the Connectomist launcher
	Engine struct {
		// Path is the Connectomist launcher, checked at startup
		Path string `yaml:"path"`
	} `yaml:"engine"`

	// Logging parameters
	Logging struct {
		// Level is one of trace, debug, info, warn, error
		Level string `yaml:"level"`

		// Format is console (human readable) or json
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Preprocessing parameters
	Preprocessing struct {
		// Invert* flip the gradient directions along one axis
		InvertX bool `yaml:"invertX"`
		InvertY bool `yaml:"invertY"`
		InvertZ bool `yaml:"invertZ"`

		// MinBValue is the b-value under which a volume is a non diffusion volume
		MinBValue float64 `yaml:"minBValue"`

		// B0Field and WaterFatShift are the Philips field map defaults
		B0Field       float64 `yaml:"b0Field"`
		WaterFatShift float64 `yaml:"waterFatShift"`

		// DeleteSteps removes the intermediate stage directories after a successful run
		DeleteSteps bool `yaml:"deleteSteps"`
	} `yaml:"preprocessing"`

	// Tractography parameters
	Tractography struct {
		// Local model estimation
		Model              string  `yaml:"model"`
		Order              int     `yaml:"order"`
		Sharpening         float64 `yaml:"sharpening"`
		Regularization     float64 `yaml:"regularization"`
		DTIEstimator       string  `yaml:"dtiEstimator"`
		ConstrainedSD      bool    `yaml:"constrainedSD"`
		SDKernelType       string  `yaml:"sdKernelType"`
		SDKernelLowerFA    float64 `yaml:"sdKernelLowerFA"`
		SDKernelUpperFA    float64 `yaml:"sdKernelUpperFA"`
		SDKernelVoxelCount int     `yaml:"sdKernelVoxelCount"`

		// Tractography mask
		AddCerebellum  bool `yaml:"addCerebellum"`
		AddCommissures bool `yaml:"addCommissures"`

		// Fiber tracking
		TrackingType           string  `yaml:"trackingType"`
		BundleMapFormat        string  `yaml:"bundleMapFormat"`
		MinFiberLength         float64 `yaml:"minFiberLength"`
		MaxFiberLength         float64 `yaml:"maxFiberLength"`
		ApertureAngle          float64 `yaml:"apertureAngle"`
		ForwardStep            float64 `yaml:"forwardStep"`
		VoxelSamplerPointCount int     `yaml:"voxelSamplerPointCount"`
		GibbsTemperature       float64 `yaml:"gibbsTemperature"`
		StoringIncrement       int     `yaml:"storingIncrement"`
		OutputOrientationCount int     `yaml:"outputOrientationCount"`

		// DeleteSteps removes the stage directories once the exports are written
		DeleteSteps bool `yaml:"deleteSteps"`
	} `yaml:"tractography"`

	// Labeling parameters
	Labeling struct {
		// Atlas is the bundle atlas name
		Atlas string `yaml:"atlas"`

		// CustomAtlasDir is only used with the custom atlas
		CustomAtlasDir string `yaml:"customAtlasDir"`

		// BundleNames restricts the labeling to a subset of the atlas bundles
		BundleNames []string `yaml:"bundleNames,omitempty"`

		// FiberCount is the number of fibers labelled at once
		FiberCount int `yaml:"fiberCount"`

		// Resample is mandatory when the fibers are not resampled to 21 points
		Resample bool `yaml:"resample"`

		// RemoveTemporaryFiles cleans the labeling directory
		RemoveTemporaryFiles bool `yaml:"removeTemporaryFiles"`
	} `yaml:"labeling"`

	// Report parameters
	Report struct {
		// Author, Client and PoweredBy are printed on the cover
		Author    string `yaml:"author"`
		Client    string `yaml:"client"`
		PoweredBy string `yaml:"poweredBy"`

		// Margins in millimeters
		LeftMargin   float64 `yaml:"leftMargin"`
		RightMargin  float64 `yaml:"rightMargin"`
		TopMargin    float64 `yaml:"topMargin"`
		BottomMargin float64 `yaml:"bottomMargin"`
	} `yaml:"report"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Engine.Path = engine.DefaultPath

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	// Gradients are stored in the image frame, with x flipped
	cfg.Preprocessing.InvertX = true
	cfg.Preprocessing.MinBValue = 100
	cfg.Preprocessing.B0Field = preproc.DefaultB0Field
	cfg.Preprocessing.WaterFatShift = preproc.DefaultWaterFatShift

	model := tractography.DefaultModelOptions()
	cfg.Tractography.Model = model.Model
	cfg.Tractography.Order = model.Order
	cfg.Tractography.Sharpening = model.LaplaceBeltramiSharpening
	cfg.Tractography.Regularization = model.RegularizationLCurve
	cfg.Tractography.DTIEstimator = model.DTIEstimator
	cfg.Tractography.ConstrainedSD = model.ConstrainedSD
	cfg.Tractography.SDKernelType = model.SDKernelType
	cfg.Tractography.SDKernelLowerFA = model.SDKernelLowerFA
	cfg.Tractography.SDKernelUpperFA = model.SDKernelUpperFA
	cfg.Tractography.SDKernelVoxelCount = model.SDKernelVoxelCount
	cfg.Tractography.AddCommissures = true

	tracking := tractography.DefaultTrackingOptions()
	cfg.Tractography.TrackingType = tracking.TrackingType
	cfg.Tractography.BundleMapFormat = tracking.BundleMap
	cfg.Tractography.MinFiberLength = tracking.MinFiberLength
	cfg.Tractography.MaxFiberLength = tracking.MaxFiberLength
	cfg.Tractography.ApertureAngle = tracking.ApertureAngle
	cfg.Tractography.ForwardStep = tracking.ForwardStep
	cfg.Tractography.VoxelSamplerPointCount = tracking.VoxelSamplerPointCount
	cfg.Tractography.GibbsTemperature = tracking.GibbsTemperature
	cfg.Tractography.StoringIncrement = tracking.StoringIncrement
	cfg.Tractography.OutputOrientationCount = tracking.OutputOrientationCount

	cfg.Labeling.Atlas = labeling.AtlasGuevaraLong
	cfg.Labeling.FiberCount = labeling.DefaultFiberCount
	cfg.Labeling.Resample = true
	cfg.Labeling.RemoveTemporaryFiles = true

	cfg.Report.Author = "NeuroSpin"
	cfg.Report.Client = "NeuroSpin"
	cfg.Report.PoweredBy = "Connectomist"
	cfg.Report.LeftMargin = 10
	cfg.Report.RightMargin = 10
	cfg.Report.TopMargin = 20
	cfg.Report.BottomMargin = 20

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the closed-set values so that a bad configuration fails
// before any engine call
func (c *Config) Validate() error {
	if c.Engine.Path == "" {
		return errdefs.Validation("The engine path is not set.")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return errdefs.Validation("Unknown logging level '%s'.", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return errdefs.Validation("Unknown logging format '%s', should be in [console json].", c.Logging.Format)
	}
	if err := c.ModelOptions().Validate(); err != nil {
		return err
	}
	if err := c.TrackingOptions().Validate(); err != nil {
		return err
	}
	return c.LabelingOptions().Validate()
}

// PreprocParams returns the preprocessing parameters set by the file.
func (c *Config) PreprocParams() preproc.Params {
	p := preproc.DefaultParams()
	p.InvertX = c.Preprocessing.InvertX
	p.InvertY = c.Preprocessing.InvertY
	p.InvertZ = c.Preprocessing.InvertZ
	p.MinBValue = c.Preprocessing.MinBValue
	p.B0Field = preproc.Float(c.Preprocessing.B0Field)
	p.WaterFatShift = preproc.Float(c.Preprocessing.WaterFatShift)
	p.DeleteSteps = c.Preprocessing.DeleteSteps
	return p
}

// ModelOptions returns the local model settings.
func (c *Config) ModelOptions() tractography.ModelOptions {
	o := tractography.DefaultModelOptions()
	o.Model = c.Tractography.Model
	o.Order = c.Tractography.Order
	o.LaplaceBeltramiSharpening = c.Tractography.Sharpening
	o.RegularizationLCurve = c.Tractography.Regularization
	o.DTIEstimator = c.Tractography.DTIEstimator
	o.ConstrainedSD = c.Tractography.ConstrainedSD
	o.SDKernelType = c.Tractography.SDKernelType
	o.SDKernelLowerFA = c.Tractography.SDKernelLowerFA
	o.SDKernelUpperFA = c.Tractography.SDKernelUpperFA
	o.SDKernelVoxelCount = c.Tractography.SDKernelVoxelCount
	return o
}

// TrackingOptions returns the fiber tracking settings.
func (c *Config) TrackingOptions() tractography.TrackingOptions {
	return tractography.TrackingOptions{
		TrackingType:           c.Tractography.TrackingType,
		BundleMap:              c.Tractography.BundleMapFormat,
		MinFiberLength:         c.Tractography.MinFiberLength,
		MaxFiberLength:         c.Tractography.MaxFiberLength,
		ApertureAngle:          c.Tractography.ApertureAngle,
		ForwardStep:            c.Tractography.ForwardStep,
		VoxelSamplerPointCount: c.Tractography.VoxelSamplerPointCount,
		StoringIncrement:       c.Tractography.StoringIncrement,
		OutputOrientationCount: c.Tractography.OutputOrientationCount,
		GibbsTemperature:       c.Tractography.GibbsTemperature,
	}
}

// LabelingOptions returns the bundle labeling settings.
func (c *Config) LabelingOptions() labeling.Options {
	return labeling.Options{
		Atlas:              c.Labeling.Atlas,
		CustomAtlasDir:     c.Labeling.CustomAtlasDir,
		BundleNames:        c.Labeling.BundleNames,
		FiberCount:         c.Labeling.FiberCount,
		DisableResampling:  !c.Labeling.Resample,
		KeepTemporaryFiles: !c.Labeling.RemoveTemporaryFiles,
	}
}

// TractographyParams returns the tractography parameters set by the file.
func (c *Config) TractographyParams() tractography.Params {
	p := tractography.DefaultParams()
	p.Model = c.ModelOptions()
	p.Mask = tractography.MaskOptions{
		AddCerebellum:  c.Tractography.AddCerebellum,
		AddCommissures: c.Tractography.AddCommissures,
	}
	p.Tracking = c.TrackingOptions()
	p.Labeling = c.LabelingOptions()
	p.DeleteSteps = c.Tractography.DeleteSteps
	return p
}
