package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz      int     `yaml:"tick_rate_hz"`
	SelectRadius    float64 `yaml:"select_radius"`
	ArmRadius       float64 `yaml:"arm_radius"`
	DwellMs         int     `yaml:"dwell_ms"`
	MoveSpeed       float64 `yaml:"move_speed"`
	BoundaryR       float64 `yaml:"boundary_r"`
	TransitionTicks int     `yaml:"transition_ticks"`
	Rooms           int     `yaml:"rooms"`
}

// Defaults matches the source scene: selection at 5 units, arming at 4,
// one-second dwell.
func Defaults() Tuning {
	return Tuning{
		TickRateHz:      30,
		SelectRadius:    5,
		ArmRadius:       4,
		DwellMs:         1000,
		MoveSpeed:       6,
		BoundaryR:       24,
		TransitionTicks: 45,
		Rooms:           5,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	if t.ArmRadius > t.SelectRadius {
		return t, fmt.Errorf("tuning.yaml: arm_radius exceeds select_radius")
	}
	return t, nil
}

func (t Tuning) DwellDuration() time.Duration {
	return time.Duration(t.DwellMs) * time.Millisecond
}
