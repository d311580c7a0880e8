package round

// State tracks the round counter for one session. Zero means no round has
// started yet; the counter only moves forward.
type State struct {
	CurrentRound int
}

// Scheduler advances a session's round counter. Ending a session is a store
// concern, not a scheduler transition.
type Scheduler struct {
	state *State
}

func NewScheduler(state *State) *Scheduler {
	if state == nil {
		state = &State{}
	}
	return &Scheduler{state: state}
}

// StartFirstRound moves a fresh session to round 1. Calling it on a session
// that already has rounds is a no-op; the current round is returned either way.
func (s *Scheduler) StartFirstRound() int {
	if s.state.CurrentRound == 0 {
		s.state.CurrentRound = 1
	}
	return s.state.CurrentRound
}

// AdvanceRound increments and returns the round counter.
func (s *Scheduler) AdvanceRound() int {
	s.state.CurrentRound++
	return s.state.CurrentRound
}

// Current returns the round counter without advancing it.
func (s *Scheduler) Current() int {
	return s.state.CurrentRound
}
