package hub

// InputState is the sampled held-key flags for one session. It is replaced
// wholesale on every INPUT message; nothing else mutates it, so each tick
// evaluates one consistent snapshot.
type InputState struct {
	Up, Down, Left, Right bool
	Activate              bool
}

func (s InputState) MovementActive() bool {
	return s.Up || s.Down || s.Left || s.Right
}

// direction maps the held flags onto the ground plane: up is -Z, right is +X.
func (s InputState) direction() Vec3 {
	var d Vec3
	if s.Up {
		d.Z -= 1
	}
	if s.Down {
		d.Z += 1
	}
	if s.Left {
		d.X -= 1
	}
	if s.Right {
		d.X += 1
	}
	return d
}

// session is one connected player's hub scene instance. All fields are owned
// by the hub loop goroutine.
type session struct {
	id       string
	name     string
	identity string // auth subject; empty for anonymous sessions
	out      chan []byte

	avatar Vec3

	input        InputState
	overlay      bool
	prevActivate bool

	selected string
	dwell    *DwellTimer
	progress *ProgressStore

	// transitionUntil is the first tick at which the scene is interactive
	// again after a boundary relocation or a navigation.
	transitionUntil uint64
}
