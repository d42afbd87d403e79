package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.Target != "" {
		t.Errorf("Target default: got %q", c.Target)
	}
	if c.Rate != 300 {
		t.Errorf("Rate default: got %d, want 300", c.Rate)
	}
	if c.Ports != nil {
		t.Errorf("Ports default: got %v, want nil", c.Ports)
	}
	if c.Loop {
		t.Error("Loop should default false")
	}
	if c.DBPath != "./netindexer.db" {
		t.Errorf("DBPath default: got %q", c.DBPath)
	}
	if c.SettingsPath != "./settings.json" {
		t.Errorf("SettingsPath default: got %q", c.SettingsPath)
	}
}

func TestLoadTargetAndPriority(t *testing.T) {
	os.Clearenv()
	os.Setenv("NETINDEXER_TARGET", "10.0.0.0/24")
	os.Setenv("NETINDEXER_PRIORITY", "5")
	c := Load()
	if c.Target != "10.0.0.0/24" {
		t.Errorf("Target: got %q", c.Target)
	}
	if c.Priority != 5 {
		t.Errorf("Priority: got %d", c.Priority)
	}
}

func TestLoadPortsList(t *testing.T) {
	os.Clearenv()
	os.Setenv("NETINDEXER_PORTS", "80, 443,8080")
	c := Load()
	want := []int{80, 443, 8080}
	if len(c.Ports) != len(want) {
		t.Fatalf("Ports = %v, want %v", c.Ports, want)
	}
	for i := range want {
		if c.Ports[i] != want[i] {
			t.Errorf("Ports[%d] = %d, want %d", i, c.Ports[i], want[i])
		}
	}
}

func TestLoadPortsListIgnoresGarbage(t *testing.T) {
	os.Clearenv()
	os.Setenv("NETINDEXER_PORTS", "80,not-a-port,443")
	c := Load()
	want := []int{80, 443}
	if len(c.Ports) != len(want) || c.Ports[0] != 80 || c.Ports[1] != 443 {
		t.Errorf("Ports = %v, want %v", c.Ports, want)
	}
}

func TestLoadLoopBool(t *testing.T) {
	os.Clearenv()
	os.Setenv("NETINDEXER_LOOP", "true")
	c := Load()
	if !c.Loop {
		t.Error("Loop should be true")
	}
	os.Setenv("NETINDEXER_LOOP", "0")
	c = Load()
	if c.Loop {
		t.Error("Loop should be false for 0")
	}
}

func TestLoadThermalThresholds(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.MaxLoad != 0 || c.CoolDownTarget != 0 {
		t.Errorf("thermal thresholds default: maxLoad=%v coolDown=%v, want 0 (unset = engine/settingsfile default)", c.MaxLoad, c.CoolDownTarget)
	}
	os.Setenv("NETINDEXER_MAX_LOAD", "7.5")
	os.Setenv("NETINDEXER_COOL_DOWN_TARGET", "4.5")
	c = Load()
	if c.MaxLoad != 7.5 {
		t.Errorf("MaxLoad: got %v", c.MaxLoad)
	}
	if c.CoolDownTarget != 4.5 {
		t.Errorf("CoolDownTarget: got %v", c.CoolDownTarget)
	}
}

func TestLoadMetricsAddr(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.MetricsAddr != "" {
		t.Errorf("MetricsAddr default: got %q, want empty (disabled)", c.MetricsAddr)
	}
	os.Setenv("NETINDEXER_METRICS_ADDR", ":9090")
	c = Load()
	if c.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr: got %q", c.MetricsAddr)
	}
}
