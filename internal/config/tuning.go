package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the guider, detector,
// AO/mount coordinator and calibration subsystems. The schema matches the
// persisted configuration keys so the same JSON document covers both
// startup configuration and runtime updates.
type TuningConfig struct {
	// Detector / quality gate params (guider.*)
	SearchRegionPx *int `json:"guider_search_region_px,omitempty"`
	MinHFD *float64 `json:"guider_min_hfd,omitempty"`
	MaxHFD *float64 `json:"guider_max_hfd,omitempty"`
	MassChangeThresholdOn *bool `json:"guider_mass_change_threshold_enabled,omitempty"`
	MassChangeThreshold *float64 `json:"guider_mass_change_threshold,omitempty"`
	TolerateJumpsOn *bool `json:"guider_tolerate_jumps_enabled,omitempty"`
	TolerateJumpsThreshold *float64 `json:"guider_tolerate_jumps_threshold,omitempty"`
	MultiStarEnabled *bool `json:"guider_multi_star_enabled,omitempty"`
	MaxStars *int `json:"guider_max_stars,omitempty"`

	// Guide algorithm selection and shared params (mount.*)
	XGuideAlgorithm *string `json:"mount_x_guide_algorithm,omitempty"`
	YGuideAlgorithm *string `json:"mount_y_guide_algorithm,omitempty"`
	MinMovePx *float64 `json:"mount_min_move_px,omitempty"`
	Aggressiveness *float64 `json:"mount_aggressiveness,omitempty"`
	HysteresisAlpha *float64 `json:"mount_hysteresis_alpha,omitempty"`
	LowPassBeta *float64 `json:"mount_low_pass_beta,omitempty"`
	ResistSwitchFrames *int `json:"mount_resist_switch_frames,omitempty"`

	// AO/mount bump coordinator params (ao.*)
	SamplesToAverage *int `json:"ao_samples_to_average,omitempty"`
	BumpPercentage *float64 `json:"ao_bump_percentage,omitempty"`
	BumpMaxStepsPerCycle *int `json:"ao_bump_max_steps_per_cycle,omitempty"`
	CalibrationStepsPerIteration *int `json:"ao_calibration_steps_per_iteration,omitempty"`
	BumpOnDither *bool `json:"ao_bump_on_dither,omitempty"`
	BumpSettlingBoost *float64 `json:"ao_bump_settling_boost,omitempty"`

	// Calibration safety limits
	CalibrationSafetyCapIterations *int `json:"calibration_safety_cap_iterations,omitempty"`
	CalibrationDecSafetyLimitDeg *float64 `json:"calibration_dec_safety_limit_deg,omitempty"`
	CalibrationOrthoErrorLimitDeg *float64 `json:"calibration_ortho_error_limit_deg,omitempty"`
	CalibrationDistanceTimeout *string `json:"calibration_distance_timeout,omitempty"`

	// Hardware-error thresholds
	HardwareMoveFailureThreshold *int `json:"hardware_move_failure_threshold,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MarshalTuningConfig serializes cfg the same way LoadTuningConfig
// expects to read it back, for callers that persist it somewhere other
// than a file (storage.DB's tuning_config table).
func MarshalTuningConfig(cfg *TuningConfig) ([]byte, error) {
	return json.Marshal(cfg)
}

// UnmarshalTuningConfig is the inverse of MarshalTuningConfig.
func UnmarshalTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinHFD != nil && c.MaxHFD != nil && *c.MinHFD > *c.MaxHFD {
		return fmt.Errorf("guider_min_hfd (%f) must not exceed guider_max_hfd (%f)", *c.MinHFD, *c.MaxHFD)
	}
	if c.MassChangeThreshold != nil {
		if *c.MassChangeThreshold < 0 || *c.MassChangeThreshold > 1 {
			return fmt.Errorf("guider_mass_change_threshold must be between 0 and 1, got %f", *c.MassChangeThreshold)
		}
	}
	if c.BumpPercentage != nil {
		if *c.BumpPercentage < 0 || *c.BumpPercentage > 1 {
			return fmt.Errorf("ao_bump_percentage must be between 0 and 1, got %f", *c.BumpPercentage)
		}
	}
	if c.CalibrationDistanceTimeout != nil && *c.CalibrationDistanceTimeout != "" {
		if _, err := time.ParseDuration(*c.CalibrationDistanceTimeout); err != nil {
			return fmt.Errorf("invalid calibration_distance_timeout %q: %w", *c.CalibrationDistanceTimeout, err)
		}
	}
	if c.MaxStars != nil && *c.MaxStars < 1 {
		return fmt.Errorf("guider_max_stars must be at least 1, got %d", *c.MaxStars)
	}
	return nil
}

// GetSearchRegionPx returns the guide-star search window half-width or the default.
func (c *TuningConfig) GetSearchRegionPx() int {
	if c.SearchRegionPx == nil {
		return 15
	}
	return *c.SearchRegionPx
}

// GetMinHFD returns the minimum acceptable HFD or the default.
func (c *TuningConfig) GetMinHFD() float64 {
	if c.MinHFD == nil {
		return 1.5
	}
	return *c.MinHFD
}

// GetMaxHFD returns the maximum acceptable HFD or the default.
func (c *TuningConfig) GetMaxHFD() float64 {
	if c.MaxHFD == nil {
		return 10.0
	}
	return *c.MaxHFD
}

// GetMassChangeThresholdEnabled reports whether the mass check rejects frames.
func (c *TuningConfig) GetMassChangeThresholdEnabled() bool {
	if c.MassChangeThresholdOn == nil {
		return true
	}
	return *c.MassChangeThresholdOn
}

// GetMassChangeThreshold returns the mass check's relative threshold or the default.
func (c *TuningConfig) GetMassChangeThreshold() float64 {
	if c.MassChangeThreshold == nil {
		return 0.5
	}
	return *c.MassChangeThreshold
}

// GetTolerateJumpsEnabled reports whether the distance gate is active.
func (c *TuningConfig) GetTolerateJumpsEnabled() bool {
	if c.TolerateJumpsOn == nil {
		return true
	}
	return *c.TolerateJumpsOn
}

// GetTolerateJumpsThreshold returns the distance gate's tolerance multiple or the default.
func (c *TuningConfig) GetTolerateJumpsThreshold() float64 {
	if c.TolerateJumpsThreshold == nil {
		return 3.0
	}
	return *c.TolerateJumpsThreshold
}

// GetMultiStarEnabled reports whether multi-star guiding is active.
func (c *TuningConfig) GetMultiStarEnabled() bool {
	if c.MultiStarEnabled == nil {
		return false
	}
	return *c.MultiStarEnabled
}

// GetMaxStars returns the maximum number of guide stars tracked or the default.
func (c *TuningConfig) GetMaxStars() int {
	if c.MaxStars == nil {
		return 1
	}
	return *c.MaxStars
}

// GetXGuideAlgorithm returns the configured RA-axis algorithm name or the default.
func (c *TuningConfig) GetXGuideAlgorithm() string {
	if c.XGuideAlgorithm == nil {
		return "hysteresis"
	}
	return *c.XGuideAlgorithm
}

// GetYGuideAlgorithm returns the configured Dec-axis algorithm name or the default.
func (c *TuningConfig) GetYGuideAlgorithm() string {
	if c.YGuideAlgorithm == nil {
		return "hysteresis"
	}
	return *c.YGuideAlgorithm
}

// GetMinMovePx returns the dead-zone threshold shared by algorithms with a
// dead zone, or the default.
func (c *TuningConfig) GetMinMovePx() float64 {
	if c.MinMovePx == nil {
		return 0.15
	}
	return *c.MinMovePx
}

// GetAggressiveness returns the fraction of measured error corrected per
// step, or the default.
func (c *TuningConfig) GetAggressiveness() float64 {
	if c.Aggressiveness == nil {
		return 0.7
	}
	return *c.Aggressiveness
}

// GetHysteresisAlpha returns the hysteresis algorithm's smoothing weight or the default.
func (c *TuningConfig) GetHysteresisAlpha() float64 {
	if c.HysteresisAlpha == nil {
		return 0.1
	}
	return *c.HysteresisAlpha
}

// GetLowPassBeta returns the low-pass algorithm's EMA gain or the default.
func (c *TuningConfig) GetLowPassBeta() float64 {
	if c.LowPassBeta == nil {
		return 0.5
	}
	return *c.LowPassBeta
}

// GetResistSwitchFrames returns the number of consecutive opposite-sign
// frames required before resist-switch flips its latch, or the default.
func (c *TuningConfig) GetResistSwitchFrames() int {
	if c.ResistSwitchFrames == nil {
		return 2
	}
	return *c.ResistSwitchFrames
}

// GetSamplesToAverage returns the AO coordinator's averaging window or the default.
func (c *TuningConfig) GetSamplesToAverage() int {
	if c.SamplesToAverage == nil {
		return 4
	}
	return *c.SamplesToAverage
}

// GetBumpPercentage returns the AO travel fraction that triggers a mount
// bump, or the default.
func (c *TuningConfig) GetBumpPercentage() float64 {
	if c.BumpPercentage == nil {
		return 0.8
	}
	return *c.BumpPercentage
}

// GetBumpMaxStepsPerCycle returns the per-cycle cap on mount bump
// magnitude (in AO steps), or the default.
func (c *TuningConfig) GetBumpMaxStepsPerCycle() int {
	if c.BumpMaxStepsPerCycle == nil {
		return 10
	}
	return *c.BumpMaxStepsPerCycle
}

// GetCalibrationStepsPerIteration returns the AO calibration step size or the default.
func (c *TuningConfig) GetCalibrationStepsPerIteration() int {
	if c.CalibrationStepsPerIteration == nil {
		return 3
	}
	return *c.CalibrationStepsPerIteration
}

// GetBumpSettlingBoost returns the bump-weight floor applied while a
// dither settle is in progress, so the AO is recentered aggressively
// instead of drifting through the weight ramp. Defaults to 3.0.
func (c *TuningConfig) GetBumpSettlingBoost() float64 {
	if c.BumpSettlingBoost == nil {
		return 3.0
	}
	return *c.BumpSettlingBoost
}

// GetBumpOnDither reports whether a dither also recenters the AO.
func (c *TuningConfig) GetBumpOnDither() bool {
	if c.BumpOnDither == nil {
		return false
	}
	return *c.BumpOnDither
}

// GetCalibrationSafetyCapIterations returns the calibration step's safety
// cap on iterations, or the default ("~60 iterations").
func (c *TuningConfig) GetCalibrationSafetyCapIterations() int {
	if c.CalibrationSafetyCapIterations == nil {
		return 60
	}
	return *c.CalibrationSafetyCapIterations
}

// GetCalibrationDecSafetyLimitDeg returns the declination above which the
// backlash-recovery step is skipped, or the default ("~60°").
func (c *TuningConfig) GetCalibrationDecSafetyLimitDeg() float64 {
	if c.CalibrationDecSafetyLimitDeg == nil {
		return 60.0
	}
	return *c.CalibrationDecSafetyLimitDeg
}

// GetCalibrationOrthoErrorLimitDeg returns the orthogonality-error alert
// threshold, or the default ("> 10°").
func (c *TuningConfig) GetCalibrationOrthoErrorLimitDeg() float64 {
	if c.CalibrationOrthoErrorLimitDeg == nil {
		return 10.0
	}
	return *c.CalibrationOrthoErrorLimitDeg
}

// GetCalibrationDistanceTimeout parses and returns the per-sub-step
// calibration timeout, or the default.
func (c *TuningConfig) GetCalibrationDistanceTimeout() time.Duration {
	if c.CalibrationDistanceTimeout == nil || *c.CalibrationDistanceTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.CalibrationDistanceTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetHardwareMoveFailureThreshold returns the consecutive hardware-move
// failure count at which controller.Guide stops guiding, or the default
// (12). Calibration does not read it: a calibration sweep aborts on its
// first failed move.
func (c *TuningConfig) GetHardwareMoveFailureThreshold() int {
	if c.HardwareMoveFailureThreshold == nil {
		return 12
	}
	return *c.HardwareMoveFailureThreshold
}
