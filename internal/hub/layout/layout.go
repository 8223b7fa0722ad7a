package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PortalDef places one portal in the scene. Room portals carry the room id
// they unlock with; hub portals leave it empty.
type PortalDef struct {
	ID   string     `yaml:"id"`
	Room string     `yaml:"room,omitempty"`
	Pos  [3]float64 `yaml:"pos"`
}

type Layout struct {
	Portals []PortalDef `yaml:"portals"`
}

func Load(path string) (Layout, error) {
	var l Layout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("layout.yaml: %w", err)
	}
	if len(l.Portals) == 0 {
		return l, fmt.Errorf("layout.yaml: no portals")
	}
	return l, nil
}

// Defaults is the built-in scene: the quest portal front and center, the four
// hub portals flanking it, and the five room portals on the back ring.
func Defaults() Layout {
	return Layout{Portals: []PortalDef{
		{ID: "start", Pos: [3]float64{0, 0, -8}},
		{ID: "leaderboard", Pos: [3]float64{-12, 0, -4}},
		{ID: "guide", Pos: [3]float64{12, 0, -4}},
		{ID: "settings", Pos: [3]float64{-12, 0, 6}},
		{ID: "achievements", Pos: [3]float64{12, 0, 6}},
		{ID: "room1", Room: "room1", Pos: [3]float64{-16, 0, 12}},
		{ID: "room2", Room: "room2", Pos: [3]float64{-8, 0, 16}},
		{ID: "room3", Room: "room3", Pos: [3]float64{0, 0, 18}},
		{ID: "room4", Room: "room4", Pos: [3]float64{8, 0, 16}},
		{ID: "room5", Room: "room5", Pos: [3]float64{16, 0, 12}},
	}}
}
