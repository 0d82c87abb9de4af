package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with percentage rollout per viewer.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// viewer email (lowercased) -> feature -> enabled
	viewerOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`

	// Rollout percentage (0-100). Viewers are bucketed by a hash of their email.
	RolloutPercent int `json:"rollout_percent"`
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	ViewerEmail string
	IsAdmin     bool
}

// Predefined feature flag names.
const (
	FeatureScopeCache     = "cache.scope"            // Cache resolved access scopes in Redis
	FeatureExportAudit    = "audit.export"           // Record CSV exports in Postgres
	FeatureExportCSV      = "export.csv"             // Allow CSV export at all
	FeatureGroupAnalytics = "view.group_analytics"   // Group averages endpoint
	FeatureLegacyMerge    = "normalize.legacy_merge" // Later record wins on cycle conflicts
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		viewerOverrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureScopeCache] = &Feature{
		Name:           FeatureScopeCache,
		Description:    "Cache resolved access scopes",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureExportAudit] = &Feature{
		Name:           FeatureExportAudit,
		Description:    "Record CSV exports in the audit log",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureExportCSV] = &Feature{
		Name:           FeatureExportCSV,
		Description:    "CSV export of the filtered student list",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGroupAnalytics] = &Feature{
		Name:           FeatureGroupAnalytics,
		Description:    "Per-cycle group averages",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Off by default: completeness wins over processing order.
	ff.features[FeatureLegacyMerge] = &Feature{
		Name:           FeatureLegacyMerge,
		Description:    "Resolve cycle conflicts by taking the later record",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_CACHE_SCOPE=false
// Example: FEATURE_VIEW_GROUP_ANALYTICS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "view.group_analytics" -> "FEATURE_VIEW_GROUP_ANALYTICS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	viewer := ""
	if ctx != nil {
		viewer = strings.ToLower(strings.TrimSpace(ctx.ViewerEmail))
	}

	if viewer != "" {
		if overrides, ok := ff.viewerOverrides[viewer]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && viewer != "" {
		if ctx.IsAdmin {
			return true
		}
		return isInRollout(viewer, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// Enabled evaluates a feature for a viewer email.
func (ff *FeatureFlags) Enabled(featureName, viewerEmail string) bool {
	return ff.IsEnabled(featureName, &FeatureContext{ViewerEmail: viewerEmail})
}

// isInRollout buckets a viewer consistently per feature.
func isInRollout(viewer, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(viewer))
	return int(h.Sum32()%100) < percent
}

// SetViewerOverride forces a feature on or off for one viewer.
func (ff *FeatureFlags) SetViewerOverride(email, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(email))
	if _, ok := ff.viewerOverrides[key]; !ok {
		ff.viewerOverrides[key] = make(map[string]bool)
	}
	ff.viewerOverrides[key][featureName] = enabled
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
