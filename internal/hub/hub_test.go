package hub

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"quantumhub.game/internal/protocol"
)

func testConfig() Config {
	return Config{
		TickRateHz:      30,
		SelectRadius:    5,
		ArmRadius:       4,
		DwellDuration:   time.Second,
		MoveSpeed:       6,
		BoundaryR:       24,
		TransitionTicks: 3,
		Rooms:           5,
	}
}

func newTestHub(t *testing.T) (*Hub, *fakeClock) {
	t.Helper()
	h := New(testConfig(), defaultRegistry(t), nil)
	clock := newFakeClock()
	h.now = clock.now
	return h, clock
}

func joinTestSession(t *testing.T, h *Hub) (string, chan []byte) {
	t.Helper()
	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	h.handleJoin(JoinRequest{Name: "tester", Out: out, Resp: resp})
	r := <-resp
	if r.Err != nil || r.Welcome.SessionID == "" {
		t.Fatalf("join failed: %+v", r)
	}
	return r.Welcome.SessionID, out
}

func drainMessages(t *testing.T, out chan []byte) (states []protocol.StateMsg, navs []protocol.NavigateMsg) {
	t.Helper()
	for {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch base.Type {
			case protocol.TypeState:
				var st protocol.StateMsg
				if err := json.Unmarshal(b, &st); err != nil {
					t.Fatalf("state: %v", err)
				}
				states = append(states, st)
			case protocol.TypeNavigate:
				var nav protocol.NavigateMsg
				if err := json.Unmarshal(b, &nav); err != nil {
					t.Fatalf("navigate: %v", err)
				}
				navs = append(navs, nav)
			}
		default:
			return states, navs
		}
	}
}

func inputCmd(sessionID string, in protocol.InputMsg) []CommandEnvelope {
	in.Type = protocol.TypeInput
	in.ProtocolVersion = protocol.Version
	return []CommandEnvelope{{SessionID: sessionID, Input: &in}}
}

func TestHub_DwellNavigatesOnceWithQuestTranslation(t *testing.T) {
	h, clock := newTestHub(t)
	sid, out := joinTestSession(t, h)

	// Two units from the start portal: selected and inside the arm radius.
	h.sessions[sid].avatar = Vec3{Z: -6}

	h.StepOnce(nil) // selects start, arms the dwell timer
	states, navs := drainMessages(t, out)
	if len(navs) != 0 {
		t.Fatalf("navigated before the dwell elapsed: %+v", navs)
	}
	if len(states) == 0 || states[len(states)-1].Selected != PortalStart {
		t.Fatalf("start portal not selected: %+v", states)
	}
	if states[len(states)-1].Dwell == nil {
		t.Fatalf("dwell not armed in state observation")
	}

	clock.advance(1100 * time.Millisecond)
	h.StepOnce(nil)
	_, navs = drainMessages(t, out)
	if len(navs) != 1 {
		t.Fatalf("got %d navigations, want 1", len(navs))
	}
	if navs[0].Portal != PortalStart || navs[0].Destination != "room1" || navs[0].Cause != "dwell" {
		t.Fatalf("bad navigation: %+v", navs[0])
	}

	// Transition window: no re-fire however much time passes.
	clock.advance(time.Hour)
	h.StepOnce(nil)
	_, navs = drainMessages(t, out)
	if len(navs) != 0 {
		t.Fatalf("navigated during transition: %+v", navs)
	}
}

func TestHub_MovementCancelsDwell(t *testing.T) {
	h, clock := newTestHub(t)
	sid, out := joinTestSession(t, h)
	h.sessions[sid].avatar = Vec3{Z: -6}

	h.StepOnce(nil) // arm
	clock.advance(900 * time.Millisecond)
	h.StepOnce(inputCmd(sid, protocol.InputMsg{Up: true}))
	clock.advance(200 * time.Millisecond)
	h.StepOnce(nil)

	_, navs := drainMessages(t, out)
	if len(navs) != 0 {
		t.Fatalf("navigated despite movement before the deadline: %+v", navs)
	}
}

func TestHub_ExplicitActivationIsEdgeTriggered(t *testing.T) {
	h, _ := newTestHub(t)
	sid, out := joinTestSession(t, h)
	h.sessions[sid].avatar = Vec3{X: 12, Z: -2} // two units from guide

	h.StepOnce(inputCmd(sid, protocol.InputMsg{Activate: true}))
	_, navs := drainMessages(t, out)
	if len(navs) != 1 || navs[0].Portal != PortalGuide || navs[0].Cause != "activate" {
		t.Fatalf("got %+v, want one activate navigation to guide", navs)
	}
	if navs[0].Destination != PortalGuide {
		t.Fatalf("destination = %q, want guide", navs[0].Destination)
	}

	// The key stays held through and past the transition window: no re-fire.
	for i := 0; i < 6; i++ {
		h.StepOnce(nil)
	}
	_, navs = drainMessages(t, out)
	if len(navs) != 0 {
		t.Fatalf("held key re-navigated: %+v", navs)
	}

	// Release, then press again: a fresh edge navigates.
	h.StepOnce(inputCmd(sid, protocol.InputMsg{}))
	h.StepOnce(inputCmd(sid, protocol.InputMsg{Activate: true}))
	_, navs = drainMessages(t, out)
	if len(navs) != 1 {
		t.Fatalf("fresh press produced %d navigations, want 1", len(navs))
	}
}

func TestHub_StartPortalFollowsQuest(t *testing.T) {
	h, _ := newTestHub(t)
	sid, out := joinTestSession(t, h)
	s := h.sessions[sid]
	s.avatar = Vec3{Z: -6}

	q := "room3"
	h.updateProgress(0, s, ProgressPatch{CompletedRooms: []string{"room1", "room2"}, CurrentQuest: &q})

	h.StepOnce(inputCmd(sid, protocol.InputMsg{Activate: true}))
	_, navs := drainMessages(t, out)
	if len(navs) != 1 || navs[0].Destination != "room3" {
		t.Fatalf("got %+v, want destination room3", navs)
	}
}

func TestHub_OverlaySwallowsInput(t *testing.T) {
	h, _ := newTestHub(t)
	sid, out := joinTestSession(t, h)

	for i := 0; i < 10; i++ {
		h.StepOnce(inputCmd(sid, protocol.InputMsg{Up: true, Activate: true, Overlay: true}))
	}
	if got := h.sessions[sid].avatar; got != (Vec3{}) {
		t.Fatalf("avatar moved while overlay open: %+v", got)
	}
	_, navs := drainMessages(t, out)
	if len(navs) != 0 {
		t.Fatalf("navigated while overlay open: %+v", navs)
	}
}

func TestHub_MovementIntegratesInput(t *testing.T) {
	h, _ := newTestHub(t)
	sid, _ := joinTestSession(t, h)

	h.StepOnce(inputCmd(sid, protocol.InputMsg{Up: true}))
	got := h.sessions[sid].avatar
	wantZ := -h.cfg.MoveSpeed / float64(h.cfg.TickRateHz)
	if got.X != 0 || math.Abs(got.Z-wantZ) > 1e-9 {
		t.Fatalf("avatar = %+v, want Z=%v", got, wantZ)
	}
}

func TestHub_BoundaryRelocatesToOrigin(t *testing.T) {
	h, _ := newTestHub(t)
	sid, out := joinTestSession(t, h)
	s := h.sessions[sid]
	s.avatar = Vec3{X: h.cfg.BoundaryR + 1}

	h.StepOnce(nil)
	if s.avatar != (Vec3{}) {
		t.Fatalf("avatar not relocated: %+v", s.avatar)
	}
	states, _ := drainMessages(t, out)
	if len(states) == 0 || !states[len(states)-1].Transition {
		t.Fatalf("transition flag not reported after relocation")
	}
	if states[len(states)-1].Selected != "" {
		t.Fatalf("selection survived relocation")
	}
}

func TestHub_ProgressCommandPersistsAndReports(t *testing.T) {
	h, _ := newTestHub(t)
	sid, out := joinTestSession(t, h)

	h.StepOnce([]CommandEnvelope{{SessionID: sid, Progress: &protocol.ProgressMsg{
		Type:            protocol.TypeProgress,
		ProtocolVersion: protocol.Version,
		CompleteRoom:    "room1",
	}}})

	states, _ := drainMessages(t, out)
	last := states[len(states)-1]
	if last.Progress.CurrentQuest != "room2" {
		t.Fatalf("quest = %q, want room2", last.Progress.CurrentQuest)
	}
	roomVisible := false
	for _, p := range last.Portals {
		if p.ID == "room1" {
			roomVisible = true
		}
	}
	if !roomVisible {
		t.Fatalf("room1 portal not visible after completion")
	}
}

func TestSendQueue_NavigateSurvivesSaturation(t *testing.T) {
	stateB, _ := json.Marshal(protocol.StateMsg{Type: protocol.TypeState, ProtocolVersion: protocol.Version})
	navB, _ := json.Marshal(protocol.NavigateMsg{Type: protocol.TypeNavigate, ProtocolVersion: protocol.Version, Portal: "guide", Destination: "guide", Cause: "activate"})

	drainEvents := func(ch chan []byte) (events int) {
		for len(ch) > 0 {
			if !isStateMsg(<-ch) {
				events++
			}
		}
		return events
	}

	// Snapshots yield to an event, and later snapshots cannot displace it.
	ch := make(chan []byte, 2)
	sendLatest(ch, stateB)
	sendLatest(ch, stateB)
	sendEvent(ch, navB)
	sendLatest(ch, stateB)
	sendLatest(ch, stateB)
	if got := drainEvents(ch); got != 1 {
		t.Fatalf("got %d queued events, want 1", got)
	}

	// Two events on a saturated queue: both survive.
	ch = make(chan []byte, 2)
	sendEvent(ch, navB)
	sendLatest(ch, stateB)
	sendEvent(ch, navB)
	if got := drainEvents(ch); got != 2 {
		t.Fatalf("got %d queued events, want 2", got)
	}
}

func TestHub_NavigateDeliveredWhenClientLags(t *testing.T) {
	h, _ := newTestHub(t)
	out := make(chan []byte, 2) // tiny queue, nobody reading
	resp := make(chan JoinResponse, 1)
	h.handleJoin(JoinRequest{Name: "laggard", Out: out, Resp: resp})
	r := <-resp
	if r.Err != nil || r.Welcome.SessionID == "" {
		t.Fatalf("join failed: %+v", r)
	}
	sid := r.Welcome.SessionID
	h.sessions[sid].avatar = Vec3{X: 12, Z: -2} // two units from guide

	for i := 0; i < 5; i++ {
		h.StepOnce(nil) // saturate the queue with snapshots
	}
	h.StepOnce(inputCmd(sid, protocol.InputMsg{Activate: true}))
	for i := 0; i < 5; i++ {
		h.StepOnce(nil) // keep streaming; the navigation must not be displaced
	}

	_, navs := drainMessages(t, out)
	if len(navs) != 1 || navs[0].Portal != PortalGuide {
		t.Fatalf("got %+v, want the one guide navigation", navs)
	}
}
