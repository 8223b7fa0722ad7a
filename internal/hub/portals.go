package hub

import (
	"fmt"

	"quantumhub.game/internal/hub/layout"
)

// Well-known hub portal ids. Room portals use their room id ("room1"..).
const (
	PortalStart        = "start"
	PortalLeaderboard  = "leaderboard"
	PortalGuide        = "guide"
	PortalSettings     = "settings"
	PortalAchievements = "achievements"
)

// Portal is a fixed navigation trigger in the scene. Positions never change
// for the lifetime of the hub; only visibility does, and visibility is a pure
// function of progress.
type Portal struct {
	ID   string
	Pos  Vec3
	Room string // room id for room-completion portals, empty for hub portals
}

// Registry holds the ordered portal list. Order is stable and meaningful:
// it is the tie-break order for equidistant portals.
type Registry struct {
	portals []Portal
	byID    map[string]int
}

func NewRegistry(defs []layout.PortalDef) (*Registry, error) {
	r := &Registry{byID: make(map[string]int, len(defs))}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("portal with empty id")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate portal id %q", d.ID)
		}
		r.byID[d.ID] = len(r.portals)
		r.portals = append(r.portals, Portal{
			ID:   d.ID,
			Pos:  Vec3{d.Pos[0], d.Pos[1], d.Pos[2]},
			Room: d.Room,
		})
	}
	return r, nil
}

func (r *Registry) All() []Portal {
	return r.portals
}

func (r *Registry) Lookup(id string) (Portal, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Portal{}, false
	}
	return r.portals[i], true
}

// Visible returns the portals the given progress state exposes, in registry
// order. Hub portals are always visible; a room portal appears exactly when
// its room is in the completed set.
func (r *Registry) Visible(p Progress) []Portal {
	out := make([]Portal, 0, len(r.portals))
	for _, pt := range r.portals {
		if pt.Room != "" && !p.Completed[pt.Room] {
			continue
		}
		out = append(out, pt)
	}
	return out
}
