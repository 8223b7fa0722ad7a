package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// HelloAuth carries the identity token of a signed-in player. Sessions
// without a token stay anonymous and their progress is process-local.
type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	HubParams       HubParams   `json:"hub_params"`
	Progress        ProgressObs `json:"progress"`
}

type HubParams struct {
	TickRateHz   int     `json:"tick_rate_hz"`
	SelectRadius float64 `json:"select_radius"`
	ArmRadius    float64 `json:"arm_radius"`
	DwellMs      int     `json:"dwell_ms"`
	MoveSpeed    float64 `json:"move_speed"`
	BoundaryR    float64 `json:"boundary_r"`
}

// INPUT (client -> server): the currently held key flags, sampled by the
// client. Level state, not events; the server derives edges itself.
type InputMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Up              bool   `json:"up,omitempty"`
	Down            bool   `json:"down,omitempty"`
	Left            bool   `json:"left,omitempty"`
	Right           bool   `json:"right,omitempty"`
	Activate        bool   `json:"activate,omitempty"`
	// Overlay reports that the auth overlay is open; all input is ignored
	// while it is.
	Overlay bool `json:"overlay,omitempty"`
}

// STATE (server -> client): per-tick observation of the hub scene.
type StateMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	Avatar          [3]float64  `json:"avatar"`
	Moving          bool        `json:"moving"`
	Transition      bool        `json:"transition"`
	Portals         []PortalObs `json:"portals"`
	Selected        string      `json:"selected,omitempty"`
	Dwell           *DwellObs   `json:"dwell,omitempty"`
	Progress        ProgressObs `json:"progress"`
}

type PortalObs struct {
	ID   string     `json:"id"`
	Pos  [3]float64 `json:"pos"`
	Room string     `json:"room,omitempty"`
}

type DwellObs struct {
	PortalID    string `json:"portal_id"`
	RemainingMs int64  `json:"remaining_ms"`
}

// NAVIGATE (server -> client): the router command. Destination is a hub
// destination id or a room id; the browser-side router owns what happens next.
type NavigateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Portal          string `json:"portal"`
	Destination     string `json:"destination"`
	Cause           string `json:"cause"` // "dwell" or "activate"
}

// PROGRESS (client -> server): imperative progress surface. Exactly one of
// CompleteRoom / Update should be set.
type ProgressMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	CompleteRoom    string          `json:"complete_room,omitempty"`
	Update          *ProgressUpdate `json:"update,omitempty"`
}

// ProgressUpdate overwrites only the fields that are present.
type ProgressUpdate struct {
	CompletedRooms *[]string `json:"completed_rooms,omitempty"`
	CurrentQuest   *string   `json:"current_quest,omitempty"`
}

type ProgressObs struct {
	CompletedRooms []string `json:"completed_rooms"`
	CurrentQuest   string   `json:"current_quest"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
