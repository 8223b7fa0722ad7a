package journeylog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"quantumhub.game/internal/hub"
)

func TestLogger_WritesReadableJSONL(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	entries := []hub.JourneyEntry{
		{Tick: 1, SessionID: "S000001", Kind: "join", Quest: "room1"},
		{Tick: 40, SessionID: "S000001", Kind: "navigate", Portal: "start", Destination: "room1", Cause: "dwell", Quest: "room1"},
		{Tick: 90, SessionID: "S000001", Kind: "room_complete", Portal: "room1", Quest: "room2", Rooms: []string{"room1"}},
	}
	for _, e := range entries {
		if err := l.WriteJourney(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "journey", "journey-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("glob: files=%v err=%v", files, err)
	}

	got := readEntries(t, files[0])
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	if got[1].Kind != "navigate" || got[1].Destination != "room1" || got[1].Cause != "dwell" {
		t.Fatalf("entry 1 = %+v", got[1])
	}
	if got[2].Quest != "room2" {
		t.Fatalf("entry 2 quest = %q, want room2", got[2].Quest)
	}
}

func TestLogger_AppendsAcrossReopens(t *testing.T) {
	dir := t.TempDir()

	l := New(dir)
	if err := l.WriteJourney(hub.JourneyEntry{Tick: 1, SessionID: "S000001", Kind: "join"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2 := New(dir)
	if err := l2.WriteJourney(hub.JourneyEntry{Tick: 2, SessionID: "S000001", Kind: "leave"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l2.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "journey", "journey-*.jsonl.zst"))
	if err != nil || len(files) == 0 {
		t.Fatalf("glob: files=%v err=%v", files, err)
	}
	var all []hub.JourneyEntry
	for _, f := range files {
		all = append(all, readEntries(t, f)...)
	}
	if len(all) != 2 {
		t.Fatalf("got %d entries across reopens, want 2", len(all))
	}
}

func TestLogger_SealCallbackFiresOnClose(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	var sealed []string
	l.SetOnSeal(func(path string) { sealed = append(sealed, path) })

	if err := l.WriteJourney(hub.JourneyEntry{Tick: 1, SessionID: "S000001", Kind: "join"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(sealed) != 0 {
		t.Fatalf("sealed before close: %v", sealed)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(sealed) != 1 {
		t.Fatalf("sealed = %v, want one file", sealed)
	}
	if _, err := os.Stat(sealed[0]); err != nil {
		t.Fatalf("sealed path: %v", err)
	}
	if got := readEntries(t, sealed[0]); len(got) != 1 {
		t.Fatalf("sealed file holds %d entries, want 1", len(got))
	}
}

func readEntries(t *testing.T, path string) []hub.JourneyEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []hub.JourneyEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e hub.JourneyEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}
