package hub

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"quantumhub.game/internal/protocol"
)

type Config struct {
	TickRateHz int

	// SelectRadius bounds portal selection; ArmRadius bounds dwell arming.
	// They are distinct on purpose: the source scene selects at 5 units but
	// only arms the dwell countdown at 4.
	SelectRadius float64
	ArmRadius    float64

	DwellDuration time.Duration
	MoveSpeed     float64 // units per second

	// BoundaryR is the playable square's half-extent on X and Z. Leaving it
	// relocates the avatar to the origin.
	BoundaryR float64

	// TransitionTicks is how long the scene stays non-interactive after a
	// relocation or a navigation.
	TransitionTicks uint64

	Rooms int
}

type JoinRequest struct {
	Name  string
	Token string
	Out   chan []byte
	Resp  chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Err     error
}

// CommandEnvelope is one client message routed into the hub loop. Exactly one
// of the payload fields is set.
type CommandEnvelope struct {
	SessionID string
	Input     *protocol.InputMsg
	Progress  *protocol.ProgressMsg
}

// ProfileStore mirrors progress for signed-in players. Save is expected to be
// fire-and-forget on the implementation side; the hub only logs its errors
// and never rolls back in-memory state.
type ProfileStore interface {
	LoadProgress(identity string) (Progress, bool, error)
	SaveProgress(identity string, p Progress) error
}

// JourneyLogger receives the hub's event history. Implemented in
// internal/persistence/*.
type JourneyLogger interface {
	WriteJourney(entry JourneyEntry) error
}

type JourneyEntry struct {
	Tick        uint64   `json:"tick"`
	SessionID   string   `json:"session_id"`
	Identity    string   `json:"identity,omitempty"`
	Kind        string   `json:"kind"` // "join","leave","navigate","room_complete","progress_update"
	Portal      string   `json:"portal,omitempty"`
	Destination string   `json:"destination,omitempty"`
	Cause       string   `json:"cause,omitempty"`
	Quest       string   `json:"quest,omitempty"`
	Rooms       []string `json:"rooms,omitempty"`
}

type progressReq struct {
	sessionID string
	complete  string
	update    *ProgressPatch
	resp      chan error
}

// Hub is the single-threaded authoritative hub scene simulation. All session
// state must be accessed only from the hub loop goroutine.
type Hub struct {
	cfg      Config
	registry *Registry
	log      *log.Logger

	now func() time.Time

	tick atomic.Uint64

	sessions map[string]*session

	inbox       chan CommandEnvelope
	join        chan JoinRequest
	leave       chan string
	progressOps chan progressReq
	stop        chan struct{}

	nextSessionNum atomic.Uint64

	profiles ProfileStore  // may be nil
	journey  JourneyLogger // may be nil

	sessionCount atomic.Int64
	navigations  atomic.Uint64
	stepMicros   atomic.Int64
}

func New(cfg Config, registry *Registry, logger *log.Logger) *Hub {
	return &Hub{
		cfg:         cfg,
		registry:    registry,
		log:         logger,
		now:         time.Now,
		sessions:    map[string]*session{},
		inbox:       make(chan CommandEnvelope, 1024),
		join:        make(chan JoinRequest, 64),
		leave:       make(chan string, 64),
		progressOps: make(chan progressReq, 64),
		stop:        make(chan struct{}),
	}
}

func (h *Hub) SetProfileStore(s ProfileStore) { h.profiles = s }
func (h *Hub) SetJourneyLogger(l JourneyLogger) { h.journey = l }

func (h *Hub) Inbox() chan<- CommandEnvelope { return h.inbox }
func (h *Hub) Join() chan<- JoinRequest { return h.join }
func (h *Hub) Leave() chan<- string { return h.leave }

func (h *Hub) CurrentTick() uint64 { return h.tick.Load() }

func (h *Hub) Registry() *Registry { return h.registry }

// CompleteRoom is the imperative progress surface for the host application
// (admin endpoints). It runs on the hub loop.
func (h *Hub) CompleteRoom(ctx context.Context, sessionID, roomID string) error {
	return h.sendProgressReq(ctx, progressReq{sessionID: sessionID, complete: roomID})
}

// UpdateProgress overwrites the supplied fields of a session's progress.
func (h *Hub) UpdateProgress(ctx context.Context, sessionID string, patch ProgressPatch) error {
	return h.sendProgressReq(ctx, progressReq{sessionID: sessionID, update: &patch})
}

func (h *Hub) sendProgressReq(ctx context.Context, req progressReq) error {
	req.resp = make(chan error, 1)
	select {
	case h.progressOps <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(h.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []CommandEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.stop:
			return nil
		case req := <-h.join:
			h.handleJoin(req)
		case id := <-h.leave:
			h.handleLeave(id)
		case req := <-h.progressOps:
			req.resp <- h.handleProgressReq(req)
		case env := <-h.inbox:
			pending = append(pending, env)
		case <-ticker.C:
			h.step(pending)
			pending = pending[:0]
		}
	}
}

func (h *Hub) Stop() { close(h.stop) }

// StepOnce advances the hub a single tick with the given queued commands,
// using the same ordering semantics as Run. Intended for deterministic tests.
func (h *Hub) StepOnce(cmds []CommandEnvelope) uint64 {
	h.step(cmds)
	return h.tick.Load()
}

func (h *Hub) handleJoin(req JoinRequest) {
	n := h.nextSessionNum.Add(1)
	s := &session{
		id:       fmt.Sprintf("S%06d", n),
		name:     req.Name,
		identity: req.Token,
		out:      req.Out,
		dwell:    NewDwellTimer(h.cfg.DwellDuration, h.now),
		progress: NewProgressStore(h.cfg.Rooms),
	}

	if s.identity != "" && h.profiles != nil {
		p, found, err := h.profiles.LoadProgress(s.identity)
		if err != nil {
			h.logf("load progress %s: %v", s.identity, err)
		} else if found {
			s.progress.Restore(p)
		}
	}

	h.sessions[s.id] = s
	h.sessionCount.Store(int64(len(h.sessions)))

	h.writeJourney(JourneyEntry{
		Tick:      h.tick.Load(),
		SessionID: s.id,
		Identity:  s.identity,
		Kind:      "join",
		Quest:     s.progress.CurrentQuest(),
		Rooms:     s.progress.CompletedList(),
	})

	req.Resp <- JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.id,
		HubParams: protocol.HubParams{
			TickRateHz:   h.cfg.TickRateHz,
			SelectRadius: h.cfg.SelectRadius,
			ArmRadius:    h.cfg.ArmRadius,
			DwellMs:      int(h.cfg.DwellDuration / time.Millisecond),
			MoveSpeed:    h.cfg.MoveSpeed,
			BoundaryR:    h.cfg.BoundaryR,
		},
		Progress: h.progressObs(s),
	}}
}

func (h *Hub) handleLeave(id string) {
	s, ok := h.sessions[id]
	if !ok {
		return
	}
	delete(h.sessions, id)
	h.sessionCount.Store(int64(len(h.sessions)))
	h.writeJourney(JourneyEntry{
		Tick:      h.tick.Load(),
		SessionID: s.id,
		Identity:  s.identity,
		Kind:      "leave",
	})
}

func (h *Hub) handleProgressReq(req progressReq) error {
	s, ok := h.sessions[req.sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", req.sessionID)
	}
	tick := h.tick.Load()
	if req.complete != "" {
		h.completeRoom(tick, s, req.complete)
	}
	if req.update != nil {
		h.updateProgress(tick, s, *req.update)
	}
	return nil
}

func (h *Hub) completeRoom(tick uint64, s *session, roomID string) {
	if !s.progress.CompleteRoom(roomID) {
		return
	}
	h.persistProgress(s)
	h.writeJourney(JourneyEntry{
		Tick:      tick,
		SessionID: s.id,
		Identity:  s.identity,
		Kind:      "room_complete",
		Portal:    roomID,
		Quest:     s.progress.CurrentQuest(),
		Rooms:     s.progress.CompletedList(),
	})
}

func (h *Hub) updateProgress(tick uint64, s *session, patch ProgressPatch) {
	if !s.progress.Update(patch) {
		return
	}
	h.persistProgress(s)
	h.writeJourney(JourneyEntry{
		Tick:      tick,
		SessionID: s.id,
		Identity:  s.identity,
		Kind:      "progress_update",
		Quest:     s.progress.CurrentQuest(),
		Rooms:     s.progress.CompletedList(),
	})
}

// persistProgress mirrors the in-memory state for signed-in players. Write
// failures are logged and the state is kept; anonymous sessions stay
// process-local.
func (h *Hub) persistProgress(s *session) {
	if s.identity == "" || h.profiles == nil {
		return
	}
	if err := h.profiles.SaveProgress(s.identity, s.progress.State()); err != nil {
		h.logf("save progress %s: %v", s.identity, err)
	}
}

func (h *Hub) writeJourney(e JourneyEntry) {
	if h.journey == nil {
		return
	}
	if err := h.journey.WriteJourney(e); err != nil {
		h.logf("journey log: %v", err)
	}
}

func (h *Hub) logf(format string, args ...any) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}

type Metrics struct {
	Tick        uint64      `json:"tick"`
	Sessions    int64       `json:"sessions"`
	Navigations uint64      `json:"navigations"`
	StepMS      float64     `json:"step_ms"`
	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (h *Hub) Metrics() Metrics {
	return Metrics{
		Tick:        h.tick.Load(),
		Sessions:    h.sessionCount.Load(),
		Navigations: h.navigations.Load(),
		StepMS:      float64(h.stepMicros.Load()) / 1000,
		QueueDepths: QueueDepths{
			Inbox: len(h.inbox),
			Join:  len(h.join),
			Leave: len(h.leave),
		},
	}
}
