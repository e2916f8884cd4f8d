package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/entryhub/internal/observe"
)

// recordActuator records every dispatched action.
type recordActuator struct {
	mu      sync.Mutex
	calls   []Action
	callErr error
}

func (a *recordActuator) Call(ctx context.Context, action Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, action)
	return a.callErr
}

func (a *recordActuator) Calls() []Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Action, len(a.calls))
	copy(out, a.calls)
	return out
}

func newTestInterpreter(t *testing.T, act Actuator, opts ...Option) *Interpreter {
	t.Helper()
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return NewInterpreter(act, append(opts, WithMetrics(met))...)
}

func TestInterpret(t *testing.T) {
	i := newTestInterpreter(t, &recordActuator{})

	cases := []struct {
		text string
		want Action
	}{
		{"open gate", Action{Category: "cover", Domain: "cover", Service: "open_cover", EntityID: "cover.garage_door"}},
		{"Open the garage, please.", Action{Category: "cover", Domain: "cover", Service: "open_cover", EntityID: "cover.garage_door"}},
		{"close the garage", Action{Category: "cover", Domain: "cover", Service: "close_cover", EntityID: "cover.garage_door"}},
		{"open this", Action{Category: "cover", Domain: "cover", Service: "open_cover", EntityID: "cover.garage_door"}},
		{"lock the door", Action{Category: "lock", Domain: "lock", Service: "lock", EntityID: "lock.front_door"}},
		{"unlock the front door", Action{Category: "lock", Domain: "lock", Service: "unlock", EntityID: "lock.front_door"}},
		{"open the door", Action{Category: "lock", Domain: "lock", Service: "unlock", EntityID: "lock.front_door"}},
		// The cover category outranks the lock category.
		{"open the garage door", Action{Category: "cover", Domain: "cover", Service: "open_cover", EntityID: "cover.garage_door"}},
		{"good night", Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.good_night"}},
		{"goodnight", Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.good_night"}},
		{"welcome home", Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.welcome_home"}},
		{"welcome back", Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.welcome_home"}},
		{"we are away", Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.away"}},
		{"turn on the light", Action{Category: "light", Domain: "light", Service: "turn_on", EntityID: "light.entry"}},
		{"light off", Action{Category: "light", Domain: "light", Service: "turn_off", EntityID: "light.entry"}},
	}
	for _, tc := range cases {
		got, ok := i.Interpret(tc.text)
		if !ok {
			t.Errorf("Interpret(%q) matched nothing, want %v", tc.text, tc.want)
			continue
		}
		if got != tc.want {
			t.Errorf("Interpret(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestInterpretRepairsMishearings(t *testing.T) {
	i := newTestInterpreter(t, &recordActuator{})

	cases := []struct {
		text string
		want Action
	}{
		{"lok the dor", Action{Category: "lock", Domain: "lock", Service: "lock", EntityID: "lock.front_door"}},
		{"good nite", Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.good_night"}},
	}
	for _, tc := range cases {
		got, ok := i.Interpret(tc.text)
		if !ok {
			t.Errorf("Interpret(%q) matched nothing, want %v", tc.text, tc.want)
			continue
		}
		if got != tc.want {
			t.Errorf("Interpret(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}

	// Without the repair stage the misheard phrase stays unmatched.
	plain := newTestInterpreter(t, &recordActuator{}, WithoutPhoneticRepair())
	if got, ok := plain.Interpret("lok the dor"); ok {
		t.Errorf("Interpret without repair matched %v, want no match", got)
	}
}

func TestInterpretUnmatched(t *testing.T) {
	i := newTestInterpreter(t, &recordActuator{})

	for _, text := range []string{"", "   ", "what is the weather", "hello there"} {
		if got, ok := i.Interpret(text); ok {
			t.Errorf("Interpret(%q) = %v, want no match", text, got)
		}
	}
}

func TestHandleTranscriptDispatches(t *testing.T) {
	act := &recordActuator{}
	i := newTestInterpreter(t, act)

	i.HandleTranscript(context.Background(), "open the gate")

	calls := act.Calls()
	if len(calls) != 1 {
		t.Fatalf("actuator calls = %d, want 1", len(calls))
	}
	want := Action{Category: "cover", Domain: "cover", Service: "open_cover", EntityID: "cover.garage_door"}
	if calls[0] != want {
		t.Errorf("dispatched %v, want %v", calls[0], want)
	}
}

func TestHandleTranscriptUnmatchedIsSilent(t *testing.T) {
	act := &recordActuator{}
	i := newTestInterpreter(t, act)

	i.HandleTranscript(context.Background(), "nothing to see here")

	if got := len(act.Calls()); got != 0 {
		t.Errorf("actuator calls = %d, want 0 for unmatched text", got)
	}
}

func TestHandleTranscriptActuationFailure(t *testing.T) {
	act := &recordActuator{callErr: errors.New("service unavailable")}
	i := newTestInterpreter(t, act)

	// Failure is logged and counted, never propagated.
	i.HandleTranscript(context.Background(), "lock the door")

	if got := len(act.Calls()); got != 1 {
		t.Errorf("actuator calls = %d, want 1", got)
	}
}
