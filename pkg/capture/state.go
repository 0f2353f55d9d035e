package capture

import "fmt"

// State is the phase of a fast capture.
type State int

const (
	// StateIdle means no capture has been started.
	StateIdle State = iota
	// StateHoldoff counts timer ticks before trigger detection may begin.
	StateHoldoff
	// StatePrefill waits until the pre-trigger part of the window holds data.
	StatePrefill
	// StateArmed evaluates the trigger condition on every conversion.
	StateArmed
	// StatePostTrigger counts conversions after the trigger.
	StatePostTrigger
	// StateFrozen means the converter is stopped and the ring may be read.
	StateFrozen
	// StateCancelled means a settings change invalidated the capture.
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateHoldoff:     "holdoff",
	StatePrefill:     "prefill",
	StateArmed:       "armed",
	StatePostTrigger: "post-trigger",
	StateFrozen:      "frozen",
	StateCancelled:   "cancelled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Running reports whether the converter is still filling the ring.
func (s State) Running() bool {
	return s > StateIdle && s < StateFrozen
}
