//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so pin callbacks cannot observe a
// half-updated timer list.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
