package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"quantumhub.game/internal/hub"
)

// replay prints the journey event timeline from the compressed JSONL logs:
// joins, navigations, and progress mutations, in write order.
func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		session  = flag.String("session", "", "filter by session id (optional)")
		kind     = flag.String("kind", "", "filter by event kind (optional)")
		fromTick = flag.Uint64("from_tick", 0, "start at tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	files, err := listJourneyFiles(filepath.Join(*dataDir, "journey"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journey logs found")
		os.Exit(1)
	}

	var total, shown int
	for _, path := range files {
		err := scanFile(path, func(e hub.JourneyEntry) {
			total++
			if *session != "" && e.SessionID != *session {
				return
			}
			if *kind != "" && e.Kind != *kind {
				return
			}
			if *fromTick > 0 && e.Tick < *fromTick {
				return
			}
			if *toTick > 0 && e.Tick > *toTick {
				return
			}
			shown++
			printEntry(e)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "%d events, %d shown\n", total, shown)
}

func printEntry(e hub.JourneyEntry) {
	switch e.Kind {
	case "navigate":
		fmt.Printf("tick=%d %s navigate %s -> %s (%s)\n", e.Tick, e.SessionID, e.Portal, e.Destination, e.Cause)
	case "room_complete":
		fmt.Printf("tick=%d %s completed %s, quest=%s\n", e.Tick, e.SessionID, e.Portal, e.Quest)
	case "progress_update":
		fmt.Printf("tick=%d %s progress rooms=%v quest=%s\n", e.Tick, e.SessionID, e.Rooms, e.Quest)
	default:
		fmt.Printf("tick=%d %s %s\n", e.Tick, e.SessionID, e.Kind)
	}
}

func listJourneyFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, "journey-") && strings.HasSuffix(name, ".jsonl.zst") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	// Hourly file names sort chronologically.
	sort.Strings(files)
	return files, nil
}

func scanFile(path string, fn func(hub.JourneyEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		var e hub.JourneyEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("bad line: %w", err)
		}
		fn(e)
	}
	return sc.Err()
}
