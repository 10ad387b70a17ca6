//go:build !tinygo

package core

// State stands in for the saved interrupt mask on hosted builds.
type State uintptr

// disableInterrupts has nothing to mask on a hosted build.
func disableInterrupts() State {
	return 0
}

func restoreInterrupts(state State) {}
