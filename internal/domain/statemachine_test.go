package domain

import "testing"

func TestTransition_Legal(t *testing.T) {
	cases := []struct {
		from  TriggerState
		event Event
		want  TriggerState
	}{
		{TriggerStateWaiting, EventAcquire, TriggerStateAcquired},
		{TriggerStateAcquired, EventRelease, TriggerStateWaiting},
		{TriggerStateAcquired, EventFire, TriggerStateExecuting},
		{TriggerStateWaiting, EventPause, TriggerStatePaused},
		{TriggerStateAcquired, EventPause, TriggerStatePaused},
		{TriggerStateExecuting, EventPause, TriggerStatePausedBlocked},
		{TriggerStatePaused, EventResume, TriggerStateWaiting},
		{TriggerStatePausedBlocked, EventResume, TriggerStateExecuting},
		{TriggerStateError, EventResetFromError, TriggerStateWaiting},
	}

	for _, c := range cases {
		got, err := Transition(c.from, c.event)
		if err != nil {
			t.Errorf("Transition(%s, %s) returned error: %v", c.from, c.event, err)
			continue
		}
		if got != c.want {
			t.Errorf("Transition(%s, %s) = %s, want %s", c.from, c.event, got, c.want)
		}
	}
}

func TestTransition_Illegal(t *testing.T) {
	cases := []struct {
		from  TriggerState
		event Event
	}{
		{TriggerStateWaiting, EventFire},
		{TriggerStateExecuting, EventAcquire},
		{TriggerStatePaused, EventFire},
		{TriggerStateComplete, EventAcquire},
		{TriggerStateWaiting, EventResetFromError},
	}

	for _, c := range cases {
		_, err := Transition(c.from, c.event)
		if err == nil {
			t.Errorf("Transition(%s, %s) expected error, got nil", c.from, c.event)
		}
		var illegal *ErrIllegalTransition
		if err != nil {
			if _, ok := interface{}(err).(*ErrIllegalTransition); !ok {
				t.Errorf("Transition(%s, %s) error is not *ErrIllegalTransition: %T", c.from, c.event, err)
			}
			illegal = err.(*ErrIllegalTransition)
			if illegal.From != c.from || illegal.Event != c.event {
				t.Errorf("unexpected error fields: %+v", illegal)
			}
		}
	}
}

func TestInitialStoreState(t *testing.T) {
	cases := []struct {
		groupPaused, allPaused, jobBlocked bool
		want                               TriggerState
	}{
		{false, false, false, TriggerStateWaiting},
		{true, false, false, TriggerStatePaused},
		{false, true, false, TriggerStatePaused},
		{false, false, true, TriggerStatePausedBlocked},
		{true, false, true, TriggerStatePaused},
	}
	for _, c := range cases {
		got := InitialStoreState(c.groupPaused, c.allPaused, c.jobBlocked)
		if got != c.want {
			t.Errorf("InitialStoreState(%v,%v,%v) = %s, want %s", c.groupPaused, c.allPaused, c.jobBlocked, got, c.want)
		}
	}
}

func TestComplete(t *testing.T) {
	next, deleted, ok := Complete(TriggerStateExecuting, CompletionDelete)
	if !ok || !deleted || next != TriggerStateDeleted {
		t.Errorf("Complete(Executing, Delete) = %s, %v, %v", next, deleted, ok)
	}

	next, deleted, ok = Complete(TriggerStateExecuting, CompletionSetComplete)
	if !ok || deleted || next != TriggerStateComplete {
		t.Errorf("Complete(Executing, SetComplete) = %s, %v, %v", next, deleted, ok)
	}

	next, deleted, ok = Complete(TriggerStateExecuting, CompletionSetError)
	if !ok || deleted || next != TriggerStateError {
		t.Errorf("Complete(Executing, SetError) = %s, %v, %v", next, deleted, ok)
	}

	next, _, ok = Complete(TriggerStateExecuting, CompletionNoop)
	if !ok || next != TriggerStateWaiting {
		t.Errorf("Complete(Executing, Noop) = %s, %v", next, ok)
	}

	_, _, ok = Complete(TriggerStateWaiting, CompletionSetComplete)
	if ok {
		t.Error("Complete from non-Executing state should fail")
	}

	next, _, ok = Complete(TriggerStatePaused, CompletionSetAllGroupComplete)
	if !ok || next != TriggerStateComplete {
		t.Errorf("Complete(*, SetAllGroupComplete) = %s, %v, want Complete/true", next, ok)
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []TriggerState{TriggerStateComplete, TriggerStateError, TriggerStateDeleted}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	nonTerminal := []TriggerState{TriggerStateWaiting, TriggerStateAcquired, TriggerStateExecuting, TriggerStatePaused, TriggerStatePausedBlocked}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestMisfire(t *testing.T) {
	if got := Misfire(TriggerStateWaiting, true); got != TriggerStateWaiting {
		t.Errorf("Misfire(Waiting, true) = %s, want Waiting", got)
	}
	if got := Misfire(TriggerStateWaiting, false); got != TriggerStateComplete {
		t.Errorf("Misfire(Waiting, false) = %s, want Complete", got)
	}
	if got := Misfire(TriggerStatePaused, true); got != TriggerStatePaused {
		t.Errorf("Misfire(Paused, true) = %s, want Paused (preserved)", got)
	}
	if got := Misfire(TriggerStatePausedBlocked, false); got != TriggerStatePausedBlocked {
		t.Errorf("Misfire(PausedBlocked, false) = %s, want PausedBlocked (preserved)", got)
	}
}
