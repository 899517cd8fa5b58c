package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/labeling"
)

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "connectomist.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectomist.yaml")
	content := `engine:
  path: /opt/ptk/bin/connectomist
tractography:
  model: dti
  trackingType: streamline_probabilistic
labeling:
  bundleNames: [Arcuate_Left, Fornix_Right]
  resample: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/opt/ptk/bin/connectomist", cfg.Engine.Path)
	assert.Equal(t, "info", cfg.Logging.Level)

	p := cfg.TractographyParams()
	assert.Equal(t, "dti", p.Model.Model)
	assert.Equal(t, 4, p.Model.Order)
	assert.Equal(t, "streamline_probabilistic", p.Tracking.TrackingType)
	assert.True(t, p.Mask.AddCommissures)
	assert.Equal(t, []string{"Arcuate_Left", "Fornix_Right"}, p.Labeling.BundleNames)
	assert.True(t, p.Labeling.DisableResampling)
	assert.False(t, p.Labeling.KeepTemporaryFiles)
	assert.Equal(t, labeling.AtlasGuevaraLong, p.Labeling.Atlas)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connectomist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"engine path", func(c *Config) { c.Engine.Path = "" }},
		{"logging level", func(c *Config) { c.Logging.Level = "loud" }},
		{"logging format", func(c *Config) { c.Logging.Format = "xml" }},
		{"model", func(c *Config) { c.Tractography.Model = "dsi" }},
		{"estimator", func(c *Config) { c.Tractography.DTIEstimator = "robust" }},
		{"kernel", func(c *Config) { c.Tractography.SDKernelType = "gaussian" }},
		{"tracking type", func(c *Config) { c.Tractography.TrackingType = "global" }},
		{"bundle map", func(c *Config) { c.Tractography.BundleMapFormat = "tck" }},
		{"atlas", func(c *Config) { c.Labeling.Atlas = "JHU" }},
		{"bundle name", func(c *Config) { c.Labeling.BundleNames = []string{"Optic"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errdefs.IsKind(err, errdefs.KindValidation))
		})
	}
}

func TestPreprocParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Preprocessing.InvertZ = true
	cfg.Preprocessing.DeleteSteps = true
	cfg.Preprocessing.B0Field = 1.5

	p := cfg.PreprocParams()
	assert.True(t, p.InvertX)
	assert.True(t, p.InvertZ)
	assert.True(t, p.DeleteSteps)
	require.NotNil(t, p.B0Field)
	assert.Equal(t, 1.5, *p.B0Field)
	assert.Equal(t, 100.0, p.MinBValue)
}
