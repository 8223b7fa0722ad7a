package hub

import "testing"

func TestSelectPortal_NoneBeyondRadius(t *testing.T) {
	portals := []Portal{
		{ID: "a", Pos: Vec3{X: 10}},
		{ID: "b", Pos: Vec3{Z: -7}},
	}
	if id, ok := SelectPortal(Vec3{}, portals, 5); ok {
		t.Fatalf("selected %q, want none", id)
	}
}

func TestSelectPortal_StrictRadius(t *testing.T) {
	portals := []Portal{{ID: "edge", Pos: Vec3{X: 5}}}
	if id, ok := SelectPortal(Vec3{}, portals, 5); ok {
		t.Fatalf("portal exactly at radius selected as %q", id)
	}
	if _, ok := SelectPortal(Vec3{X: 0.01}, portals, 5); !ok {
		t.Fatalf("portal just inside radius not selected")
	}
}

func TestSelectPortal_PicksNearest(t *testing.T) {
	portals := []Portal{
		{ID: "far", Pos: Vec3{X: 4}},
		{ID: "near", Pos: Vec3{X: 1}},
		{ID: "mid", Pos: Vec3{X: 2}},
	}
	id, ok := SelectPortal(Vec3{}, portals, 5)
	if !ok || id != "near" {
		t.Fatalf("got %q ok=%v, want near", id, ok)
	}
}

func TestSelectPortal_TieBreaksFirstInOrder(t *testing.T) {
	portals := []Portal{
		{ID: "first", Pos: Vec3{X: 3}},
		{ID: "second", Pos: Vec3{X: -3}},
	}
	id, ok := SelectPortal(Vec3{}, portals, 5)
	if !ok || id != "first" {
		t.Fatalf("got %q ok=%v, want first", id, ok)
	}
}
