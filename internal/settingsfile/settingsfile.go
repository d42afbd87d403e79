// Package settingsfile persists the operator-tunable knobs (power level,
// scan speed, export path, default target) to a JSON file on disk, the way
// an interactive control-panel settings menu would, independent of the
// engine's per-run CLI/env flags.
package settingsfile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Settings holds the persisted operator preferences.
type Settings struct {
	PowerLevel     int     `json:"power_level"`
	MaxLoad        float64 `json:"max_load"`
	CoolDownTarget float64 `json:"cool_down_target"`
	ScanSpeed      int     `json:"scan_speed"`
	ExportPath     string  `json:"export_path"`
	TargetNetwork  string  `json:"target_network"`
}

// Default values mirror the control panel's out-of-the-box configuration.
const (
	defaultPowerLevel     = 50
	defaultMaxLoad        = 5.75
	defaultCoolDownTarget = 3.45
	defaultScanSpeed      = 100
	defaultExportPath     = "./exports"
	defaultTargetNetwork  = "45.55.0.0/16"
)

// minPowerLevel/maxPowerLevel bound the power dial; minScanSpeed/maxScanSpeed
// bound the rate dial. Values outside these ranges are clamped, never rejected.
const (
	minPowerLevel = 10
	maxPowerLevel = 100
	minScanSpeed  = 100
	maxScanSpeed  = 1000
	// scanSpeedWarnThreshold is informational only: crossing it doesn't change
	// any stored value, it's a hint that sustained scanning this fast risks
	// thermal throttling on commodity hardware.
	scanSpeedWarnThreshold = 600
)

// Default returns the settings a fresh install starts with.
func Default() Settings {
	return Settings{
		PowerLevel:     defaultPowerLevel,
		MaxLoad:        defaultMaxLoad,
		CoolDownTarget: defaultCoolDownTarget,
		ScanSpeed:      defaultScanSpeed,
		ExportPath:     defaultExportPath,
		TargetNetwork:  defaultTargetNetwork,
	}
}

// Load reads settings from path, creating the file with defaults if it
// doesn't exist yet. Any field absent from the file falls back to Default's
// value for that field, and a file that is not valid JSON falls back to
// Default entirely. Any other read error is returned alongside Default.
func Load(path string) (Settings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save(path)
		}
		return cfg, fmt.Errorf("read settings file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Corrupt file: fall back to defaults rather than fail the run.
		return Default(), nil
	}

	merged := map[string]json.RawMessage{}
	defaultRaw, _ := json.Marshal(cfg)
	json.Unmarshal(defaultRaw, &merged)
	for k, v := range raw {
		merged[k] = v
	}

	mergedData, err := json.Marshal(merged)
	if err != nil {
		return cfg, nil
	}
	if err := json.Unmarshal(mergedData, &cfg); err != nil {
		return Default(), nil
	}
	return cfg, nil
}

// Save writes s to path as pretty-printed JSON.
func (s Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

// SetPowerLevel clamps percent to [minPowerLevel, maxPowerLevel] and
// derives MaxLoad and CoolDownTarget from it: MaxLoad = 1.5 + power/100*8.5,
// ramping linearly from 2.35 (power=10) to 10.0 (power=100), and
// CoolDownTarget sits at 60% of
// MaxLoad so the governor always has room to cool before resuming.
func (s *Settings) SetPowerLevel(percent int) {
	if percent < minPowerLevel {
		percent = minPowerLevel
	}
	if percent > maxPowerLevel {
		percent = maxPowerLevel
	}
	s.PowerLevel = percent

	ratio := float64(percent) / 100.0
	maxLoad := 1.5 + ratio*8.5
	s.MaxLoad = round2(maxLoad)
	s.CoolDownTarget = round2(maxLoad * 0.6)
}

// SetScanSpeed clamps speed to [minScanSpeed, maxScanSpeed] and reports
// whether it crosses the point where sustained scanning risks overheating
// commodity hardware. The caller decides what to do with that, if anything.
func (s *Settings) SetScanSpeed(speed int) (warnOverheat bool) {
	if speed < minScanSpeed {
		speed = minScanSpeed
	}
	if speed > maxScanSpeed {
		speed = maxScanSpeed
	}
	s.ScanSpeed = speed
	return speed > scanSpeedWarnThreshold
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
