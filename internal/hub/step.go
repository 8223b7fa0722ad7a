package hub

import (
	"bytes"
	"encoding/json"
	"time"

	"quantumhub.game/internal/protocol"
)

func (h *Hub) step(pending []CommandEnvelope) {
	tick := h.tick.Add(1)
	start := time.Now()

	for _, env := range pending {
		h.applyCommand(tick, env)
	}
	for _, s := range h.sessions {
		h.stepSession(tick, s)
	}

	h.stepMicros.Store(time.Since(start).Microseconds())
}

func (h *Hub) applyCommand(tick uint64, env CommandEnvelope) {
	s, ok := h.sessions[env.SessionID]
	if !ok {
		return
	}
	switch {
	case env.Input != nil:
		s.overlay = env.Input.Overlay
		if s.overlay {
			// The auth overlay swallows all input while open.
			s.input = InputState{}
			return
		}
		s.input = InputState{
			Up:       env.Input.Up,
			Down:     env.Input.Down,
			Left:     env.Input.Left,
			Right:    env.Input.Right,
			Activate: env.Input.Activate,
		}
	case env.Progress != nil:
		if env.Progress.CompleteRoom != "" {
			h.completeRoom(tick, s, env.Progress.CompleteRoom)
		}
		if u := env.Progress.Update; u != nil {
			patch := ProgressPatch{CurrentQuest: u.CurrentQuest}
			if u.CompletedRooms != nil {
				patch.CompletedRooms = *u.CompletedRooms
			}
			h.updateProgress(tick, s, patch)
		}
	}
}

// stepSession runs one session through the frame pipeline: movement, boundary
// relocation, portal selection, explicit activation, dwell, then observation.
func (h *Hub) stepSession(tick uint64, s *session) {
	inTransition := tick < s.transitionUntil

	moving := false
	if !inTransition {
		moving = s.input.MovementActive()
		if moving {
			dir := s.input.direction()
			if l := dir.Len(); l > 0 {
				dt := 1 / float64(h.cfg.TickRateHz)
				s.avatar = s.avatar.Add(dir.Scale(h.cfg.MoveSpeed * dt / l))
			}
		}
		if outsideBoundary(s.avatar, h.cfg.BoundaryR) {
			s.avatar = Vec3{}
			s.transitionUntil = tick + h.cfg.TransitionTicks
			inTransition = true
			moving = false
		}
	}

	visible := h.registry.Visible(s.progress.state)

	if inTransition {
		s.selected = ""
	} else if id, ok := SelectPortal(s.avatar, visible, h.cfg.SelectRadius); ok {
		s.selected = id
	} else {
		s.selected = ""
	}

	// Explicit activation is edge-triggered on the held flag so a key that
	// stays down cannot re-navigate.
	activateEdge := s.input.Activate && !s.prevActivate
	s.prevActivate = s.input.Activate

	if activateEdge && !inTransition && s.selected != "" {
		h.navigate(tick, s, s.selected, "activate")
		inTransition = true
		s.selected = ""
	}

	withinArm := false
	if s.selected != "" {
		if p, ok := h.registry.Lookup(s.selected); ok {
			withinArm = Dist(s.avatar, p.Pos) < h.cfg.ArmRadius
		}
	}
	if portal, fired := s.dwell.Eval(DwellConditions{
		Selected:   s.selected,
		WithinArm:  withinArm,
		Moving:     moving,
		Transition: inTransition,
	}); fired {
		h.navigate(tick, s, portal, "dwell")
		inTransition = true
		s.selected = ""
	}

	h.sendState(tick, s, visible, inTransition, moving)
}

func outsideBoundary(v Vec3, r float64) bool {
	return v.X < -r || v.X > r || v.Z < -r || v.Z > r
}

// navigate forwards a navigation request to the client-side router, at most
// once per activation. The start portal resolves to the current quest.
func (h *Hub) navigate(tick uint64, s *session, portalID, cause string) {
	dest := portalID
	if portalID == PortalStart {
		dest = s.progress.CurrentQuest()
	}

	s.transitionUntil = tick + h.cfg.TransitionTicks
	h.navigations.Add(1)

	b, _ := json.Marshal(protocol.NavigateMsg{
		Type:            protocol.TypeNavigate,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Portal:          portalID,
		Destination:     dest,
		Cause:           cause,
	})
	sendEvent(s.out, b)

	h.writeJourney(JourneyEntry{
		Tick:        tick,
		SessionID:   s.id,
		Identity:    s.identity,
		Kind:        "navigate",
		Portal:      portalID,
		Destination: dest,
		Cause:       cause,
		Quest:       s.progress.CurrentQuest(),
	})
}

func (h *Hub) sendState(tick uint64, s *session, visible []Portal, inTransition, moving bool) {
	portals := make([]protocol.PortalObs, 0, len(visible))
	for _, p := range visible {
		portals = append(portals, protocol.PortalObs{ID: p.ID, Pos: p.Pos.Array(), Room: p.Room})
	}

	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Avatar:          s.avatar.Array(),
		Moving:          moving,
		Transition:      inTransition,
		Portals:         portals,
		Selected:        s.selected,
		Progress:        h.progressObs(s),
	}
	if id, armed := s.dwell.Armed(); armed {
		msg.Dwell = &protocol.DwellObs{
			PortalID:    id,
			RemainingMs: s.dwell.Remaining().Milliseconds(),
		}
	}

	b, _ := json.Marshal(msg)
	sendLatest(s.out, b)
}

func (h *Hub) progressObs(s *session) protocol.ProgressObs {
	return protocol.ProgressObs{
		CompletedRooms: s.progress.CompletedList(),
		CurrentQuest:   s.progress.CurrentQuest(),
	}
}

// sendLatest writes a state snapshot without blocking the hub loop. When the
// client's queue is full the oldest snapshot is dropped to make room; if the
// front of the queue is an event, the event is kept and the new snapshot is
// sacrificed instead, the next tick brings a fresh one anyway.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case old := <-ch:
		if !isStateMsg(old) {
			b = old
		}
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

// sendEvent enqueues a message the client must not miss (NAVIGATE). A
// saturated queue sheds buffered snapshots to make room; events already
// queued are recycled to the back, so none is lost and their order holds.
func sendEvent(ch chan []byte, b []byte) {
	for i := 0; i <= cap(ch); i++ {
		select {
		case ch <- b:
			return
		default:
		}
		select {
		case old := <-ch:
			if !isStateMsg(old) {
				select {
				case ch <- old:
				default:
				}
			}
		default:
		}
	}
	select {
	case ch <- b:
	default:
	}
}

// Type is the first field every message marshals, so a prefix check is
// enough to tell snapshots apart.
var statePrefix = []byte(`{"type":"STATE"`)

func isStateMsg(b []byte) bool { return bytes.HasPrefix(b, statePrefix) }
