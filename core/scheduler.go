package core

// Timer is a scheduled job. Handler returns SF_DONE to drop the timer or
// SF_RESCHEDULE after moving WakeTime forward.
type Timer struct {
	WakeTime uint32
	Handler  func(t *Timer, now uint32) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by wake time. Times are milliseconds and
// compared with wraparound.
type Scheduler struct {
	timerList *Timer
}

// NewPeriodicTimer returns a timer calling fn every intervalMs, first at
// start.
func NewPeriodicTimer(start, intervalMs uint32, fn func(now uint32)) *Timer {
	return &Timer{
		WakeTime: start,
		Handler: func(t *Timer, now uint32) uint8 {
			fn(now)
			t.WakeTime += intervalMs
			// Skip missed periods instead of bursting after a stall.
			if before(t.WakeTime, now) {
				t.WakeTime = now + intervalMs
			}
			return SF_RESCHEDULE
		},
	}
}

// ScheduleTimer adds t to the schedule.
func (s *Scheduler) ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.insertTimer(t)
}

func (s *Scheduler) insertTimer(t *Timer) {
	if s.timerList == nil || before(t.WakeTime, s.timerList.WakeTime) {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && !before(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Dispatch runs every timer due at now.
func (s *Scheduler) Dispatch(now uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for s.timerList != nil && !before(now, s.timerList.WakeTime) {
		timer := s.timerList
		s.timerList = timer.Next
		timer.Next = nil

		if timer.Handler(timer, now) == SF_RESCHEDULE {
			s.insertTimer(timer)
		}
	}
}

// NextWake returns the wake time of the earliest timer.
func (s *Scheduler) NextWake() (uint32, bool) {
	if s.timerList == nil {
		return 0, false
	}
	return s.timerList.WakeTime, true
}

// before reports whether a is earlier than b on a wrapping clock.
func before(a, b uint32) bool {
	return int32(a-b) < 0
}
