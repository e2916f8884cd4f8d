// Package command turns transcribed speech into home-automation actions.
//
// The grammar is deliberately small and fixed: an entry panel accepts a
// handful of phrases about the gate, the front door lock, the entry light and
// a few scenes. Interpretation is pure text processing with ordered category
// matching; unmatched text is a normal outcome, logged and dropped.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/entryhub/internal/command/phonetic"
	"github.com/MrWong99/entryhub/internal/observe"
)

// Action is a resolved home-automation service call.
type Action struct {
	// Category is the matched grammar category ("cover", "lock", "scene",
	// "light"). Used for logging and metrics, not for actuation.
	Category string

	// Domain and Service name the service to invoke, e.g. "cover" and
	// "open_cover".
	Domain  string
	Service string

	// EntityID is the target entity, e.g. "cover.garage_door".
	EntityID string
}

// String renders the action as domain.service → entity.
func (a Action) String() string {
	return fmt.Sprintf("%s.%s -> %s", a.Domain, a.Service, a.EntityID)
}

// Actuator executes a resolved action against the home-automation backend.
type Actuator interface {
	Call(ctx context.Context, action Action) error
}

// substitutions maps common mishearings onto canonical grammar words. Applied
// after lower-casing, before tokenisation.
var substitutions = map[string]string{
	"open this":    "open gate",
	"goodnight":    "good night",
	"welcome back": "welcome home",
	"front or":     "front door",
}

// vocabulary is the set of grammar words the phonetic repair stage may map a
// misheard token onto.
var vocabulary = []string{
	"open", "close", "gate", "garage", "door",
	"lock", "unlock", "light", "good", "night",
	"welcome", "home", "away",
}

// Option is a functional option for [NewInterpreter].
type Option func(*Interpreter)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(i *Interpreter) { i.metrics = m }
}

// WithoutPhoneticRepair disables the phonetic repair stage, leaving tokens
// exactly as the transcriber produced them.
func WithoutPhoneticRepair() Option {
	return func(i *Interpreter) { i.matcher = nil }
}

// Interpreter matches normalized transcripts against the fixed phrase table
// and dispatches the resolved action to the actuator.
//
// Interpreter is safe for concurrent use; it is read-only after construction.
type Interpreter struct {
	actuator Actuator
	matcher  *phonetic.Matcher
	metrics  *observe.Metrics
}

// NewInterpreter creates an interpreter dispatching to the given actuator.
// Phonetic repair over the grammar vocabulary is enabled by default.
func NewInterpreter(actuator Actuator, opts ...Option) *Interpreter {
	i := &Interpreter{
		actuator: actuator,
		matcher:  phonetic.New(vocabulary),
	}
	for _, o := range opts {
		o(i)
	}
	if i.metrics == nil {
		i.metrics = observe.DefaultMetrics()
	}
	return i
}

// Interpret resolves text against the phrase table. The bool result reports
// whether any category matched; pure text processing, no side effects.
func (i *Interpreter) Interpret(text string) (Action, bool) {
	tokens := i.normalize(text)
	if len(tokens) == 0 {
		return Action{}, false
	}

	// Ordered category matching: first match wins. The cover category is
	// checked before the lock category so "open the garage door" resolves to
	// the garage, not the door lock.
	switch {
	case hasAny(tokens, "gate", "garage"):
		service := "open_cover"
		if hasAny(tokens, "close") {
			service = "close_cover"
		}
		return Action{Category: "cover", Domain: "cover", Service: service, EntityID: "cover.garage_door"}, true

	case hasAny(tokens, "lock", "unlock", "door"):
		service := "lock"
		if hasAny(tokens, "unlock", "open") {
			service = "unlock"
		}
		return Action{Category: "lock", Domain: "lock", Service: service, EntityID: "lock.front_door"}, true

	case hasPhrase(tokens, "good", "night"):
		return Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.good_night"}, true

	case hasPhrase(tokens, "welcome", "home"):
		return Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.welcome_home"}, true

	case hasAny(tokens, "away", "goodbye"):
		return Action{Category: "scene", Domain: "scene", Service: "turn_on", EntityID: "scene.away"}, true

	case hasAny(tokens, "light", "lights"):
		service := "turn_on"
		if hasAny(tokens, "off", "out") {
			service = "turn_off"
		}
		return Action{Category: "light", Domain: "light", Service: service, EntityID: "light.entry"}, true
	}

	return Action{}, false
}

// HandleTranscript interprets the transcript and dispatches the resolved
// action. Designed to be wired as the voice machine's transcript handler;
// unmatched text and actuation failures are logged, never returned.
func (i *Interpreter) HandleTranscript(ctx context.Context, text string) {
	action, ok := i.Interpret(text)
	if !ok {
		slog.Info("no command matched", "text", text)
		i.metrics.CommandMatches.Add(ctx, 1, metric.WithAttributes(
			observe.Attr("status", "unmatched"),
		))
		return
	}

	slog.Info("command matched",
		"text", text,
		"category", action.Category,
		"action", action.String(),
	)
	i.metrics.CommandMatches.Add(ctx, 1, metric.WithAttributes(
		observe.Attr("status", "matched"),
		observe.Attr("category", action.Category),
	))

	if err := i.actuator.Call(ctx, action); err != nil {
		slog.Error("actuation failed", "action", action.String(), "error", err)
		i.metrics.ActuationErrors.Add(ctx, 1, metric.WithAttributes(
			observe.Attr("category", action.Category),
		))
	}
}

// normalize lower-cases, applies the mishearing substitutions, collapses
// whitespace and repairs misheard tokens against the grammar vocabulary.
func (i *Interpreter) normalize(text string) []string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':':
			return -1
		}
		return r
	}, t)
	for from, to := range substitutions {
		t = strings.ReplaceAll(t, from, to)
	}

	tokens := strings.Fields(t)
	if i.matcher == nil {
		return tokens
	}
	for n, tok := range tokens {
		if repaired, _, ok := i.matcher.Match(tok); ok {
			tokens[n] = repaired
		}
	}
	return tokens
}

// hasAny reports whether any of the given words appears as a token.
func hasAny(tokens []string, words ...string) bool {
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

// hasPhrase reports whether the words appear as consecutive tokens.
func hasPhrase(tokens []string, words ...string) bool {
	if len(words) == 0 || len(tokens) < len(words) {
		return false
	}
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for j, w := range words {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
