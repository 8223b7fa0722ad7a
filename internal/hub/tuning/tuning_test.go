package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, "tick_rate_hz: 60\ndwell_ms: 500\n")
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 60 {
		t.Fatalf("tick_rate_hz = %d, want 60", got.TickRateHz)
	}
	if got.DwellDuration() != 500*time.Millisecond {
		t.Fatalf("dwell = %v, want 500ms", got.DwellDuration())
	}
	// Untouched keys keep their defaults.
	if got.SelectRadius != 5 || got.ArmRadius != 4 {
		t.Fatalf("radii = %v/%v, want 5/4", got.SelectRadius, got.ArmRadius)
	}
}

func TestLoad_RejectsArmBeyondSelect(t *testing.T) {
	path := writeFile(t, "select_radius: 3\narm_radius: 4\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected arm_radius validation error")
	}
}

func TestLoad_RejectsZeroTickRate(t *testing.T) {
	path := writeFile(t, "tick_rate_hz: 0\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected tick_rate_hz validation error")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestDefaults_MatchSourceScene(t *testing.T) {
	d := Defaults()
	if d.SelectRadius != 5 || d.ArmRadius != 4 || d.DwellMs != 1000 {
		t.Fatalf("defaults drifted: %+v", d)
	}
}
