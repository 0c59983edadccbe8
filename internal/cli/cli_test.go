package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/model"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"contract-7", "contract-7"},
		{"a/b\\c:d", "a_b_c_d"},
		{"  quarterly report  ", "quarterly-report"},
		{"..", "document"},
		{"", "document"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}

	long := sanitizeFilename(strings.Repeat("x", 300))
	assert.Len(t, long, 100)
}

func TestRegisterDefaultsFlattensNestedKeys(t *testing.T) {
	v := viper.New()
	require.NoError(t, registerDefaults(v, model.DefaultConfig()))

	def := model.DefaultConfig()
	assert.Equal(t, def.Compliance.DefaultJurisdiction, v.GetString("compliance.default_jurisdiction"))
	assert.Equal(t, def.Storage.Driver, v.GetString("storage.driver"))

	var cfg model.Config
	require.NoError(t, v.Unmarshal(&cfg))
	assert.Equal(t, def.Logic.Window, cfg.Logic.Window)
	assert.InDelta(t, def.Aggregation.Base, cfg.Aggregation.Base, 0.001)
}

func TestFlattenKeepsEmptyMapsAsLeaves(t *testing.T) {
	got := map[string]any{}
	flatten("", map[string]any{
		"a": map[string]any{"b": 1, "c": map[string]any{"d": "x"}},
		"e": map[string]any{},
	}, func(k string, v any) { got[k] = v })

	assert.Equal(t, map[string]any{"a.b": 1, "a.c.d": "x", "e": map[string]any{}}, got)
}

func TestCheckRisk(t *testing.T) {
	t.Cleanup(func() { failOn = "" })

	failOn = ""
	assert.NoError(t, checkRisk(model.SeverityCritical))

	failOn = "high"
	assert.NoError(t, checkRisk(model.SeverityMedium))
	err := checkRisk(model.SeverityHigh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRiskThreshold))
	assert.ErrorIs(t, checkRisk(model.SeverityCritical), errRiskThreshold)

	failOn = "severe"
	err = checkRisk(model.SeverityLow)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errRiskThreshold))
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Veracity Configuration File")

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig().Compliance.DefaultJurisdiction, cfg.Compliance.DefaultJurisdiction)

	err = writeDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestReadRuleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: custom-disclaimer
    rule_text: Investment documents must carry a risk disclaimer
    regulation: Internal policy
    jurisdiction: GLOBAL
    domain: financial
    severity: medium
    keywords: ["guaranteed profit"]
    is_active: true
`), 0o600))

	rules, err := readRuleFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "custom-disclaimer", rules[0].ID)

	_, err = readRuleFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
