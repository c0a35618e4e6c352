package actions

import (
	"fmt"
	"log"
)

// NotFoundMarker is the value reported for a FETCH of a missing key.
const NotFoundMarker = "NotFound"

// Interpreter applies parsed actions to a ProfileStore. It runs as a
// pre-pass: the analysis completion emits action lines before the primary
// prompt is composed, and the fetched facts augment that prompt's context.
type Interpreter struct {
	profiles *ProfileStore
}

// NewInterpreter creates an Interpreter over the given profile store.
func NewInterpreter(profiles *ProfileStore) *Interpreter {
	return &Interpreter{profiles: profiles}
}

// Profiles exposes the underlying store for read-only prompt assembly.
func (it *Interpreter) Profiles() *ProfileStore {
	return it.profiles
}

// Apply executes one action and returns its result string: "OK" for writes,
// "<user>/<key>=<value>" (or the NotFound marker) for fetches, and "" for
// unrecognized lines.
func (it *Interpreter) Apply(a Action) string {
	switch a.Kind {
	case Fetch:
		value, ok := it.profiles.Get(a.User, a.Key)
		if !ok {
			value = NotFoundMarker
		}
		return fmt.Sprintf("%s/%s=%s", a.User, a.Key, value)
	case Store:
		it.profiles.Set(a.User, a.Key, a.Value)
		return "OK"
	case Delete:
		it.profiles.Delete(a.User, a.Key)
		return "OK"
	default:
		return ""
	}
}

// Run interprets raw action lines and returns the results that should be
// fed back into the in-flight prompt context: every non-"OK" result, in
// input order. "OK" writes and unrecognized lines contribute nothing.
func (it *Interpreter) Run(lines []string) []string {
	var facts []string
	for _, line := range lines {
		a := Parse(line)
		result := it.Apply(a)
		if result == "" || result == "OK" {
			continue
		}
		log.Printf("[ACTIONS] %s", result)
		facts = append(facts, result)
	}
	return facts
}
