package domain

import "github.com/jonboulle/clockwork"

// clock stamps reports. Tests freeze it via SetClock so report IDs and
// timestamps are reproducible.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used by NewReport. Pass nil to reset to
// real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
