package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Hub routing/state.
	ErrHubBusy         = "E_HUB_BUSY"
	ErrSessionNotFound = "E_SESSION_NOT_FOUND"

	// Progress surface.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrInvalidRoom = "E_INVALID_ROOM"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrHubBusy:         {},
	ErrSessionNotFound: {},
	ErrBadRequest:      {},
	ErrInvalidRoom:     {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
