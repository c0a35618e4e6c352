package engine_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ari-bc/gpt-semantic-memory/actions"
	"github.com/ari-bc/gpt-semantic-memory/core"
	"github.com/ari-bc/gpt-semantic-memory/engine"
	"github.com/ari-bc/gpt-semantic-memory/memory"
	"github.com/ari-bc/gpt-semantic-memory/memory/embedder/mock"
	"github.com/ari-bc/gpt-semantic-memory/memory/index/chromem"
	"github.com/ari-bc/gpt-semantic-memory/memory/store/sqlite"
)

// fakeCompletion replays scripted responses and records every request.
type fakeCompletion struct {
	replies []string
	err     error
	calls   [][]core.Message
}

func (f *fakeCompletion) Complete(_ context.Context, messages []core.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "r: Okay.\nsummary: small talk\ni: 1.0\nc: chat", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (f *fakeCompletion) lastCall() []core.Message {
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func flatten(messages []core.Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func newMemoryEngine(t *testing.T) (*memory.Engine, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := chromem.New()
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	mem, err := memory.NewEngine(ctx, store, index, mock.New(16))
	if err != nil {
		t.Fatalf("create memory engine: %v", err)
	}
	return mem, store
}

func fixedClock() func() time.Time {
	t := time.Date(2023, 4, 5, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestSendReturnsBodyAndPersistsTurn(t *testing.T) {
	ctx := context.Background()
	mem, store := newMemoryEngine(t)

	fake := &fakeCompletion{replies: []string{
		"r: Hello Alice! 😊\nsummary: Alice greeted me and I greeted her back\ni: 7.0\nc: greeting, alice",
	}}
	e := engine.NewEngine(fake, mem,
		engine.WithPersona("Alice", "she/her", "Iris"),
		engine.WithClock(fixedClock()),
	)

	body, err := e.Send(ctx, "Hi there!")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if body != "Hello Alice! 😊" {
		t.Errorf("body = %q", body)
	}

	history, err := mem.DialogueHistory(ctx, 10, 2000)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d dialogue entries, want 2", len(history))
	}
	if history[0].Speaker != "user" || history[0].Content != "Hi there!" {
		t.Errorf("first entry = %+v", history[0])
	}
	if history[1].Speaker != "assistant" || history[1].Content != "Hello Alice! 😊" {
		t.Errorf("second entry = %+v", history[1])
	}

	// raw importance 7.0 scales to 3.43 and is admitted.
	count, err := store.CountMemories(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("memory count = %d, want 1", count)
	}
}

func TestSendRejectsLowImportanceCandidate(t *testing.T) {
	ctx := context.Background()
	mem, store := newMemoryEngine(t)

	fake := &fakeCompletion{replies: []string{
		"r: Sure.\nsummary: idle chatter\ni: 5.0\nc: chatter",
	}}
	e := engine.NewEngine(fake, mem, engine.WithClock(fixedClock()))

	if _, err := e.Send(ctx, "hm"); err != nil {
		t.Fatalf("send: %v", err)
	}
	count, _ := store.CountMemories(ctx)
	if count != 0 {
		t.Errorf("memory count = %d, want 0 (raw 5.0 is below threshold)", count)
	}
}

func TestSendCompletionFailureDegrades(t *testing.T) {
	ctx := context.Background()
	mem, _ := newMemoryEngine(t)

	fake := &fakeCompletion{err: fmt.Errorf("anthropic: %w", core.ErrRateLimited)}
	e := engine.NewEngine(fake, mem, engine.WithClock(fixedClock()))

	body, err := e.Send(ctx, "Hello?")
	if err != nil {
		t.Fatalf("send returned error %v, want degraded reply", err)
	}
	if body != engine.FallbackReply {
		t.Errorf("body = %q, want the fallback reply", body)
	}

	// The user's entry is kept; the failed turn's assistant entry is not.
	history, err := mem.DialogueHistory(ctx, 10, 2000)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Speaker != "user" {
		t.Fatalf("history = %+v, want only the user entry", history)
	}
}

func TestSendPromptContainsPersonaAndFormat(t *testing.T) {
	ctx := context.Background()
	mem, _ := newMemoryEngine(t)

	fake := &fakeCompletion{}
	e := engine.NewEngine(fake, mem,
		engine.WithPersona("Alice", "she/her", "Iris"),
		engine.WithClock(fixedClock()),
	)

	if _, err := e.Send(ctx, "Hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	prompt := flatten(fake.lastCall())
	for _, want := range []string{
		"Your name is Iris",
		"Memory: Name of user: Alice",
		"Memory: Alice pronouns: she/her",
		"r:<actual response>",
		"Hi",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	// No weather line before the slot is populated.
	if strings.Contains(prompt, "Current weather") {
		t.Error("prompt mentions weather while conditions are unknown")
	}
}

func TestSendIncludesRefreshedConditions(t *testing.T) {
	ctx := context.Background()
	mem, _ := newMemoryEngine(t)

	fake := &fakeCompletion{}
	e := engine.NewEngine(fake, mem, engine.WithClock(fixedClock()))
	e.Conditions().Set("light rain, 12C")

	if _, err := e.Send(ctx, "Hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(flatten(fake.lastCall()), "Current weather: light rain, 12C") {
		t.Error("prompt missing the refreshed conditions")
	}
}

func TestActionPrePassFeedsFactsIntoPrompt(t *testing.T) {
	ctx := context.Background()
	mem, _ := newMemoryEngine(t)

	analysis := &fakeCompletion{replies: []string{
		"STORE(alice, favorite_color, blue)\nFETCH(alice, favorite_color)",
	}}
	primary := &fakeCompletion{}
	e := engine.NewEngine(primary, mem,
		engine.WithAnalysis(analysis),
		engine.WithInterpreter(actions.NewInterpreter(actions.NewProfileStore())),
		engine.WithClock(fixedClock()),
	)

	if _, err := e.Send(ctx, "My favorite color is blue"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(analysis.calls) != 1 {
		t.Fatalf("analysis called %d times, want 1", len(analysis.calls))
	}
	if !strings.Contains(flatten(primary.lastCall()), "Memory: alice/favorite_color=blue") {
		t.Error("prompt missing the fetched profile fact")
	}
}

func TestCompactionCycle(t *testing.T) {
	ctx := context.Background()
	mem, _ := newMemoryEngine(t)

	fake := &fakeCompletion{}
	e := engine.NewEngine(fake, mem, engine.WithClock(fixedClock()))

	// Ten plain turns tick the counter up to the threshold.
	for i := 0; i < 10; i++ {
		if _, err := e.Send(ctx, fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if strings.Contains(flatten(fake.lastCall()), "condensed summary") {
			t.Fatalf("turn %d requested compaction early", i)
		}
	}

	// The eleventh turn asks for a condensed history...
	fake.replies = []string{"r: Got it.\nsummary: recap\ni: 1.0\nc: recap\nch: We chatted about ten small things."}
	if _, err := e.Send(ctx, "turn 10"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(flatten(fake.lastCall()), "condensed summary") {
		t.Error("threshold turn did not request compaction")
	}

	// ...and the compacted entry is injected into the next prompt, with
	// the counter reset.
	if _, err := e.Send(ctx, "turn 11"); err != nil {
		t.Fatalf("send: %v", err)
	}
	prompt := flatten(fake.lastCall())
	if !strings.Contains(prompt, "Memory: earlier conversation: We chatted about ten small things.") {
		t.Error("prompt missing the compaction entry")
	}
	if strings.Contains(prompt, "condensed summary") {
		t.Error("counter not reset after compaction")
	}
}

func TestWorkingMemoryDedupAndBound(t *testing.T) {
	w := engine.NewWorkingMemory(3)

	w.Add("a")
	w.Add("a")
	if w.Len() != 1 {
		t.Fatalf("Len = %d after duplicate add, want 1", w.Len())
	}

	w.Add("b")
	w.Add("c")
	w.Add("d")
	if w.Len() != 3 {
		t.Fatalf("Len = %d, want capacity 3", w.Len())
	}
	snapshot := w.Snapshot()
	if snapshot[0] != "b" || snapshot[2] != "d" {
		t.Errorf("snapshot = %v, want oldest entry expired", snapshot)
	}
}

func TestConditionsSlot(t *testing.T) {
	c := engine.NewConditions()
	if c.Current() != engine.UnknownConditions {
		t.Fatalf("initial = %q, want the unknown sentinel", c.Current())
	}
	c.Set("clear skies")
	if c.Current() != "clear skies" {
		t.Fatalf("Current = %q after Set", c.Current())
	}
}
