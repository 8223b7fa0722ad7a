package profiledb

import (
	"path/filepath"
	"sync"
	"testing"

	"quantumhub.game/internal/hub"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	p := hub.Progress{
		Completed:    map[string]bool{"room1": true, "room2": true},
		CurrentQuest: "room3",
	}
	if err := s.SaveProgress("u123", p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen to prove the write survived the process boundary.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, found, err := s2.LoadProgress("u123")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if got.CurrentQuest != "room3" {
		t.Fatalf("quest = %q, want room3", got.CurrentQuest)
	}
	if !got.Completed["room1"] || !got.Completed["room2"] || len(got.Completed) != 2 {
		t.Fatalf("completed = %v", got.Completed)
	}
}

func TestStore_LoadMissingProfile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	_, found, err := s.LoadProgress("nobody")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("missing profile reported as found")
	}
}

func TestStore_SaveOverwritesProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.SaveProgress("u1", hub.Progress{Completed: map[string]bool{"room1": true}, CurrentQuest: "room2"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.SaveProgress("u1", hub.Progress{Completed: map[string]bool{"room1": true, "room2": true}, CurrentQuest: "room3"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Close drains the writer queue and commits.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, found, err := s2.LoadProgress("u1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if got.CurrentQuest != "room3" || len(got.Completed) != 2 {
		t.Fatalf("got %+v, want the second write", got)
	}
}

func TestStore_IndexesNavigationsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	entries := []hub.JourneyEntry{
		{Tick: 1, SessionID: "S000001", Kind: "join"},
		{Tick: 5, SessionID: "S000001", Kind: "navigate", Portal: "start", Destination: "room1", Cause: "dwell"},
		{Tick: 9, SessionID: "S000001", Kind: "navigate", Portal: "guide", Destination: "guide", Cause: "activate"},
		{Tick: 12, SessionID: "S000001", Kind: "leave"},
	}
	for _, e := range entries {
		if err := s.WriteJourney(e); err != nil {
			t.Fatalf("write journey: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	var n int
	if err := s2.db.QueryRow(`SELECT COUNT(*) FROM navigations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d navigation rows, want 2", n)
	}

	var dest string
	if err := s2.db.QueryRow(`SELECT destination FROM navigations WHERE tick = 5`).Scan(&dest); err != nil {
		t.Fatalf("select: %v", err)
	}
	if dest != "room1" {
		t.Fatalf("destination = %q, want room1", dest)
	}
}

func TestStore_SavesRacingCloseAreDropped(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	p := hub.Progress{Completed: map[string]bool{"room1": true}, CurrentQuest: "room2"}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = s.SaveProgress("u123", p)
				_ = s.WriteJourney(hub.JourneyEntry{Tick: uint64(j), SessionID: "S000001", Kind: "navigate", Portal: "start", Destination: "room1", Cause: "dwell"})
			}
		}()
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()

	// Post-close writes stay silent no-ops.
	if err := s.SaveProgress("u123", p); err != nil {
		t.Fatalf("save after close: %v", err)
	}
	if err := s.WriteJourney(hub.JourneyEntry{Kind: "navigate"}); err != nil {
		t.Fatalf("journey after close: %v", err)
	}
}
