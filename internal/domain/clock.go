package domain

import "github.com/jonboulle/clockwork"

// clock is the package-level "now" provider for window computation.
// Production code uses the real clock; tests inject a fake for deterministic windows.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used by NewWindow. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
