package hub

import "time"

// DwellConditions is everything a single dwell evaluation looks at. The
// caller owns the inputs; the timer holds no reference to hub state, which
// keeps it trivially testable with a fake clock.
type DwellConditions struct {
	// Selected is the currently selected portal id, or empty.
	Selected string
	// WithinArm reports whether the avatar is inside the arm radius of the
	// selected portal. The arm radius is tighter than the selection radius,
	// so a portal can be selected without the timer arming.
	WithinArm bool
	// Moving reports whether any movement key is held.
	Moving bool
	// Transition reports whether a relocation or navigation is underway.
	Transition bool
}

// DwellTimer triggers navigation when the avatar stays put next to the
// selected portal for a full dwell duration. It is evaluated once per tick;
// there is no background timer, so disarming can never race a stray fire.
type DwellTimer struct {
	duration time.Duration
	now      func() time.Time

	armedFor string
	deadline time.Time

	// firedFor blocks a second fire while the same continuous dwell holds.
	// Any break (movement, deselection, transition) clears it.
	firedFor string
}

func NewDwellTimer(duration time.Duration, now func() time.Time) *DwellTimer {
	if now == nil {
		now = time.Now
	}
	return &DwellTimer{duration: duration, now: now}
}

// Eval advances the timer one step and reports a fired portal id, if any.
// At most one fire per continuous dwell.
func (t *DwellTimer) Eval(c DwellConditions) (string, bool) {
	if c.Transition || c.Moving || c.Selected == "" || !c.WithinArm {
		t.armedFor = ""
		t.firedFor = ""
		return "", false
	}
	if t.firedFor != "" {
		if t.firedFor == c.Selected {
			return "", false
		}
		t.firedFor = ""
	}
	if t.armedFor != c.Selected {
		t.armedFor = c.Selected
		t.deadline = t.now().Add(t.duration)
		return "", false
	}
	if t.now().Before(t.deadline) {
		return "", false
	}
	fired := t.armedFor
	t.armedFor = ""
	t.firedFor = fired
	return fired, true
}

// Armed reports the portal the timer is currently counting down for.
func (t *DwellTimer) Armed() (string, bool) {
	return t.armedFor, t.armedFor != ""
}

// Remaining is the time left before the armed timer fires; zero when idle.
func (t *DwellTimer) Remaining() time.Duration {
	if t.armedFor == "" {
		return 0
	}
	d := t.deadline.Sub(t.now())
	if d < 0 {
		return 0
	}
	return d
}

func (t *DwellTimer) Reset() {
	t.armedFor = ""
	t.firedFor = ""
}
