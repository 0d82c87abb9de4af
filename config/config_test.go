package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespa-hub/vespa-results/internal/domain/results"
	"github.com/vespa-hub/vespa-results/internal/domain/shared"
)

func TestLoad_MissingCredentialsFailsClosed(t *testing.T) {
	t.Setenv("KNACK_APP_ID", "")
	t.Setenv("KNACK_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfigMissing))
	assert.Contains(t, err.Error(), "KNACK_APP_ID")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("KNACK_APP_ID", "app")
	t.Setenv("KNACK_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.knack.com/v1", cfg.Knack.BaseURL)
	assert.Equal(t, 1000, cfg.Knack.RowsPerPage)
	assert.Equal(t, 20, cfg.Knack.MaxPages)
	assert.Equal(t, 5, cfg.Knack.MaxPagesUnscoped)
	assert.Equal(t, "contains", cfg.Schema.EstablishmentOperator)
	assert.Equal(t, results.PresetMultiCycle, cfg.Schema.Mapping.Name)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_InvalidValuesAreCollected(t *testing.T) {
	t.Setenv("KNACK_APP_ID", "app")
	t.Setenv("KNACK_API_KEY", "key")
	t.Setenv("KNACK_ROWS_PER_PAGE", "5000")
	t.Setenv("ESTABLISHMENT_OPERATOR", "equals")

	_, err := Load()
	require.Error(t, err)
	assert.False(t, errors.Is(err, shared.ErrConfigMissing))
	assert.Contains(t, err.Error(), "KNACK_ROWS_PER_PAGE")
	assert.Contains(t, err.Error(), "ESTABLISHMENT_OPERATOR")
}

func TestParseSchema_ExtendsPreset(t *testing.T) {
	mapping, err := ParseSchema([]byte(`
extends: multi_cycle
name: drifted
student:
  year_group: field_900
cycles:
  3:
    vision: field_901
    effort: field_902
    systems: field_903
    practice: field_904
    attitude: field_905
    overall: field_906
`))
	require.NoError(t, err)

	assert.Equal(t, "drifted", mapping.Name)
	assert.Equal(t, "field_900", mapping.Student.YearGroup)
	assert.Equal(t, "field_187", mapping.Student.Name, "unchanged fields keep the preset value")
	assert.Equal(t, "field_901", mapping.Cycles[results.CycleThree].Vision)
	assert.Equal(t, "field_155", mapping.Cycles[results.CycleOne].Vision)
}

func TestParseSchema_Invalid(t *testing.T) {
	_, err := ParseSchema([]byte("layout: sideways\nobject: object_10\n"))
	assert.ErrorIs(t, err, shared.ErrInvalidSchema)

	_, err = ParseSchema([]byte("extends: nope\n"))
	assert.ErrorIs(t, err, shared.ErrInvalidSchema)
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_CACHE_SCOPE", "false")
	t.Setenv("FEATURE_NORMALIZE_LEGACY_MERGE", "true")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureScopeCache, nil))
	assert.True(t, ff.IsEnabled(FeatureLegacyMerge, nil))
	assert.True(t, ff.IsEnabled(FeatureExportCSV, nil))
	assert.False(t, ff.IsEnabled("unknown", nil))
}

func TestFeatureFlags_RolloutAndOverrides(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureGroupAnalytics, 0))
	assert.False(t, ff.IsEnabled(FeatureGroupAnalytics, &FeatureContext{ViewerEmail: "a@school.test"}))

	ff.SetViewerOverride("A@School.test", FeatureGroupAnalytics, true)
	assert.True(t, ff.IsEnabled(FeatureGroupAnalytics, &FeatureContext{ViewerEmail: "a@school.test"}))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureGroupAnalytics, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.EnableFeature("nope"), ErrFeatureNotFound)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VESPA_TEST_FROM_FILE=loaded\nVESPA_TEST_PRESET=file\n"), 0o600))

	// Register cleanup, then clear so the file can set it.
	t.Setenv("VESPA_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("VESPA_TEST_FROM_FILE"))
	t.Setenv("VESPA_TEST_PRESET", "process")

	ok, err := LoadEnvFile(path, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "loaded", os.Getenv("VESPA_TEST_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("VESPA_TEST_PRESET"))

	ok, err = LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"), true)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"), false)
	assert.Error(t, err)
}
