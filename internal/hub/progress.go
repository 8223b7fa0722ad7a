package hub

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// QuestComplete is the terminal quest marker after the last room.
const QuestComplete = "complete"

// Progress is the player's room progress. Completed never shrinks through
// this package; CurrentQuest only moves forward through the room sequence
// except under a bulk overwrite.
type Progress struct {
	Completed    map[string]bool
	CurrentQuest string
}

// ProgressPatch is a partial overwrite. Nil fields are left unchanged.
type ProgressPatch struct {
	CompletedRooms []string
	CurrentQuest   *string
}

// ProgressStore owns one session's progress state. All methods are
// synchronous and in-memory; mirroring to the profile store is the hub's
// concern and never rolls this state back.
type ProgressStore struct {
	rooms int
	state Progress
}

func NewProgressStore(rooms int) *ProgressStore {
	return &ProgressStore{
		rooms: rooms,
		state: Progress{
			Completed:    map[string]bool{},
			CurrentQuest: roomID(1),
		},
	}
}

// Restore replaces the whole state, e.g. from a loaded profile.
func (s *ProgressStore) Restore(p Progress) {
	s.state = Progress{
		Completed:    make(map[string]bool, len(p.Completed)),
		CurrentQuest: p.CurrentQuest,
	}
	for id, done := range p.Completed {
		if done {
			s.state.Completed[id] = true
		}
	}
	if s.state.CurrentQuest == "" {
		s.state.CurrentQuest = roomID(1)
	}
}

// State returns a copy; callers cannot mutate the store through it.
func (s *ProgressStore) State() Progress {
	out := Progress{
		Completed:    make(map[string]bool, len(s.state.Completed)),
		CurrentQuest: s.state.CurrentQuest,
	}
	for id := range s.state.Completed {
		out.Completed[id] = true
	}
	return out
}

// CompletedList returns the completed room ids in sequence order.
func (s *ProgressStore) CompletedList() []string {
	out := make([]string, 0, len(s.state.Completed))
	for id := range s.state.Completed {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return questIndex(out[i], s.rooms) < questIndex(out[j], s.rooms)
	})
	return out
}

func (s *ProgressStore) CurrentQuest() string {
	return s.state.CurrentQuest
}

// CompleteRoom marks a room finished and advances the quest to the next room
// in sequence, or to the terminal marker after the last one. Completing an
// already-finished room is a no-op. A room id that does not parse cannot
// advance the chain; the quest parks at the terminal marker instead of
// guessing, and the completed set is left untouched.
//
// Returns whether the state changed.
func (s *ProgressStore) CompleteRoom(id string) bool {
	if s.state.Completed[id] {
		return false
	}
	n, ok := roomNumber(id)
	if !ok || n < 1 || n > s.rooms {
		if s.state.CurrentQuest == QuestComplete {
			return false
		}
		s.state.CurrentQuest = QuestComplete
		return true
	}

	s.state.Completed[id] = true

	next := QuestComplete
	if n < s.rooms {
		next = roomID(n + 1)
	}
	if questIndex(next, s.rooms) > questIndex(s.state.CurrentQuest, s.rooms) {
		s.state.CurrentQuest = next
	}
	return true
}

// Update overwrites only the supplied fields. This is the bulk-load path and
// is allowed to move the quest backwards.
func (s *ProgressStore) Update(patch ProgressPatch) bool {
	changed := false
	if patch.CompletedRooms != nil {
		next := make(map[string]bool, len(patch.CompletedRooms))
		for _, id := range patch.CompletedRooms {
			next[id] = true
		}
		if !sameSet(s.state.Completed, next) {
			s.state.Completed = next
			changed = true
		}
	}
	if patch.CurrentQuest != nil && *patch.CurrentQuest != s.state.CurrentQuest {
		s.state.CurrentQuest = *patch.CurrentQuest
		changed = true
	}
	return changed
}

func roomID(n int) string {
	return fmt.Sprintf("room%d", n)
}

func roomNumber(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "room")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// questIndex orders quest ids along the fixed sequence: room1..roomN, then
// the terminal marker. Unknown ids sort before everything.
func questIndex(id string, rooms int) int {
	if id == QuestComplete {
		return rooms + 1
	}
	if n, ok := roomNumber(id); ok && n >= 1 && n <= rooms {
		return n
	}
	return 0
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}
