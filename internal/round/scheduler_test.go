package round

import "testing"

func TestStartFirstRoundIdempotent(t *testing.T) {
	s := NewScheduler(&State{})
	if got := s.StartFirstRound(); got != 1 {
		t.Errorf("StartFirstRound() = %d, want 1", got)
	}
	if got := s.StartFirstRound(); got != 1 {
		t.Errorf("second StartFirstRound() = %d, want 1", got)
	}
}

func TestStartFirstRoundOnResumedSession(t *testing.T) {
	s := NewScheduler(&State{CurrentRound: 4})
	if got := s.StartFirstRound(); got != 4 {
		t.Errorf("StartFirstRound() on round 4 = %d, want 4", got)
	}
}

func TestAdvanceRound(t *testing.T) {
	state := &State{CurrentRound: 2}
	s := NewScheduler(state)
	for i := 1; i <= 5; i++ {
		if got := s.AdvanceRound(); got != 2+i {
			t.Fatalf("AdvanceRound() call %d = %d, want %d", i, got, 2+i)
		}
	}
	if s.Current() != 7 {
		t.Errorf("Current() = %d, want 7", s.Current())
	}
}

func TestNilStateStartsFresh(t *testing.T) {
	s := NewScheduler(nil)
	if got := s.Current(); got != 0 {
		t.Errorf("Current() = %d, want 0", got)
	}
	if got := s.StartFirstRound(); got != 1 {
		t.Errorf("StartFirstRound() = %d, want 1", got)
	}
}
