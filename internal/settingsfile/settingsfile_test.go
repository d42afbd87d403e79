package settingsfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesOutOfBoxValues(t *testing.T) {
	d := Default()
	if d.PowerLevel != 50 || d.MaxLoad != 5.75 || d.CoolDownTarget != 3.45 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if d.ScanSpeed != 100 || d.ExportPath != "./exports" || d.TargetNetwork != "45.55.0.0/16" {
		t.Fatalf("unexpected defaults: %+v", d)
	}
}

func TestLoadCreatesFileWithDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("settings file not created: %v", err)
	}
}

func TestLoadMergesMissingKeysFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	partial := map[string]any{"power_level": 80, "export_path": "/tmp/exports"}
	data, _ := json.Marshal(partial)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PowerLevel != 80 {
		t.Errorf("PowerLevel = %d, want 80 (preserved from file)", cfg.PowerLevel)
	}
	if cfg.ExportPath != "/tmp/exports" {
		t.Errorf("ExportPath = %q, want /tmp/exports", cfg.ExportPath)
	}
	if cfg.TargetNetwork != defaultTargetNetwork {
		t.Errorf("TargetNetwork = %q, want default %q (missing from file)", cfg.TargetNetwork, defaultTargetNetwork)
	}
	if cfg.ScanSpeed != defaultScanSpeed {
		t.Errorf("ScanSpeed = %d, want default %d (missing from file)", cfg.ScanSpeed, defaultScanSpeed)
	}
}

func TestLoadFallsBackToDefaultsOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Fatalf("got %+v, want defaults on corrupt file", cfg)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := Default()
	s.SetPowerLevel(80)
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Fatalf("got %+v, want %+v", got, s)
	}
}

func TestSetPowerLevelDerivesThermalThresholds(t *testing.T) {
	cases := []struct {
		percent            int
		wantPercent        int
		wantMaxLoad        float64
		wantCoolDownTarget float64
	}{
		{percent: 10, wantPercent: 10, wantMaxLoad: 2.35, wantCoolDownTarget: 1.41},
		{percent: 50, wantPercent: 50, wantMaxLoad: 5.75, wantCoolDownTarget: 3.45},
		{percent: 100, wantPercent: 100, wantMaxLoad: 10.0, wantCoolDownTarget: 6.0},
		{percent: 5, wantPercent: 10, wantMaxLoad: 2.35, wantCoolDownTarget: 1.41},
		{percent: 500, wantPercent: 100, wantMaxLoad: 10.0, wantCoolDownTarget: 6.0},
	}
	for _, c := range cases {
		s := Default()
		s.SetPowerLevel(c.percent)
		if s.PowerLevel != c.wantPercent {
			t.Errorf("SetPowerLevel(%d): PowerLevel = %d, want %d", c.percent, s.PowerLevel, c.wantPercent)
		}
		if s.MaxLoad != c.wantMaxLoad {
			t.Errorf("SetPowerLevel(%d): MaxLoad = %v, want %v", c.percent, s.MaxLoad, c.wantMaxLoad)
		}
		if s.CoolDownTarget != c.wantCoolDownTarget {
			t.Errorf("SetPowerLevel(%d): CoolDownTarget = %v, want %v", c.percent, s.CoolDownTarget, c.wantCoolDownTarget)
		}
	}
}

func TestSetScanSpeedClampsAndWarns(t *testing.T) {
	s := Default()
	if warn := s.SetScanSpeed(50); warn {
		t.Error("SetScanSpeed(50): expected no overheat warning")
	}
	if s.ScanSpeed != minScanSpeed {
		t.Errorf("ScanSpeed = %d, want clamped to %d", s.ScanSpeed, minScanSpeed)
	}

	s2 := Default()
	if warn := s2.SetScanSpeed(800); !warn {
		t.Error("SetScanSpeed(800): expected overheat warning")
	}

	s3 := Default()
	s3.SetScanSpeed(5000)
	if s3.ScanSpeed != maxScanSpeed {
		t.Errorf("ScanSpeed = %d, want clamped to %d", s3.ScanSpeed, maxScanSpeed)
	}
}
