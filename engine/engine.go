// Package engine orchestrates one conversation turn: retrieve relevant
// memories, run the action pre-pass, assemble the role-tagged prompt, call
// the completion service, parse the tagged reply, and persist what the
// admission policy keeps.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ari-bc/gpt-semantic-memory/actions"
	"github.com/ari-bc/gpt-semantic-memory/core"
	"github.com/ari-bc/gpt-semantic-memory/memory"
	"github.com/ari-bc/gpt-semantic-memory/reply"
)

const (
	assistantInstruction = "You are a friendly assistant. You use the user's name a lot if you know it. You only apologise for things that are your fault. You use emojis frequently. You have listed your related memories for reference only, do not use them as a template for output"

	formatInstruction = "I need you to output your responses in the following format and in this order (r,s,i,c): r:<actual response>\nsummary: <a brief summary of the actual response, including speaker>\ni: <how useful this information will be for future reference purposes from 0.0-10.0, rate uncommon items higher>\nc: <a list of 1-6 content words that summarise both your response and the user input>"

	compactionInstruction = "Also add a line ch:<a condensed summary of our conversation so far, in one or two sentences> to your response."

	analysisInstruction = "You manage a key-value store of facts about users. Given the conversation below, output only a list of actions, one per line, chosen from: FETCH(user_id, key), STORE(user_id, key, value), DELETE(user_id, key). Output nothing else."

	// historyWindow / historyMaxLength bound the dialogue context fed to
	// the prompt each turn.
	historyWindow    = 10
	historyMaxLength = 2000

	// compactionThreshold is how many turns pass between condensed
	// history requests; compactionWindow is how many condensed entries
	// are injected into every prompt.
	compactionThreshold = 10
	compactionWindow    = 10

	defaultNumMemories = 5
)

// FallbackReply is the fixed user-facing text returned for any completion
// failure; the conversation keeps flowing at best effort.
const FallbackReply = "Sorry, I'm having trouble thinking right now. Please try again in a moment. 😅"

// Engine drives the per-turn pipeline. A single logical conversation is
// processed turn by turn; Send is not safe for concurrent use.
type Engine struct {
	completion Completion
	analysis   Completion
	mem        *memory.Engine
	interp     *actions.Interpreter
	working    *WorkingMemory
	conditions *Conditions

	compaction           []string
	turnsSinceCompaction int

	nameOfUser   string
	nameOfAgent  string
	userPronouns string
	numMemories  int

	now func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithAnalysis sets the smaller/faster completion used for the action
// pre-pass. Without it (or without an interpreter) the pre-pass is skipped.
func WithAnalysis(c Completion) Option {
	return func(e *Engine) {
		e.analysis = c
	}
}

// WithInterpreter sets the action interpreter for the pre-pass.
func WithInterpreter(it *actions.Interpreter) Option {
	return func(e *Engine) {
		e.interp = it
	}
}

// WithConditions sets the externally refreshed context slot.
func WithConditions(c *Conditions) Option {
	return func(e *Engine) {
		e.conditions = c
	}
}

// WithPersona sets the user/agent identity lines injected into the prompt.
func WithPersona(nameOfUser, userPronouns, nameOfAgent string) Option {
	return func(e *Engine) {
		e.nameOfUser = nameOfUser
		e.userPronouns = userPronouns
		e.nameOfAgent = nameOfAgent
	}
}

// WithNumMemories sets how many memories are retrieved per turn.
func WithNumMemories(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.numMemories = n
		}
	}
}

// WithClock overrides the timestamp source. Tests use it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over the primary completion and the memory
// engine.
func NewEngine(completion Completion, mem *memory.Engine, opts ...Option) *Engine {
	e := &Engine{
		completion:  completion,
		mem:         mem,
		working:     NewWorkingMemory(workingMemoryCapacity),
		conditions:  NewConditions(),
		numMemories: defaultNumMemories,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Memory returns the underlying memory engine.
func (e *Engine) Memory() *memory.Engine {
	return e.mem
}

// Conditions returns the external-context slot, for wiring a refresher.
func (e *Engine) Conditions() *Conditions {
	return e.conditions
}

// Working returns the working-memory FIFO.
func (e *Engine) Working() *WorkingMemory {
	return e.working
}

// Send processes one user turn and returns the assistant's reply body.
// Completion failures degrade to a fixed fallback reply; nothing here is
// fatal to the process.
func (e *Engine) Send(ctx context.Context, userInput string) (string, error) {
	turnID := uuid.New().String()

	history, err := e.mem.DialogueHistory(ctx, historyWindow, historyMaxLength)
	if err != nil {
		log.Printf("[ENGINE] turn=%s history load failed: %v", turnID, err)
		history = nil
	}

	// Anchor retrieval on the previous turn as well as the new input so
	// follow-up questions still surface the memories under discussion.
	query := userInput
	if len(history) > 0 {
		query = history[len(history)-1].Content + ". " + userInput
	}
	retrieved, err := e.mem.RetrieveRelevant(ctx, query, e.numMemories, memory.DefaultSimilarityWeight)
	if err != nil {
		log.Printf("[ENGINE] turn=%s retrieval failed: %v", turnID, err)
	}
	for _, m := range retrieved {
		e.working.Add(fmt.Sprintf("Memory: %s: %s", m.Timestamp, m.RelatedPrompt))
	}

	e.runActionPrePass(ctx, turnID, history, userInput)

	messages := e.assemble(history, userInput)

	timestamp := e.now().Format(time.RFC3339)
	if err := e.mem.RecordTurn(ctx, "user", userInput, timestamp); err != nil {
		log.Printf("[ENGINE] turn=%s record user turn failed: %v", turnID, err)
	}

	raw, err := e.completion.Complete(ctx, messages)
	if err != nil {
		// The failed turn's assistant entry is not persisted and there
		// is no automatic retry.
		if errors.Is(err, core.ErrRateLimited) {
			log.Printf("[ENGINE] turn=%s rate limited", turnID)
		} else {
			log.Printf("[ENGINE] turn=%s completion failed: %v", turnID, err)
		}
		return FallbackReply, nil
	}

	parsed := reply.Parse(raw)

	if parsed.CondensedHistory != "" {
		e.compaction = append(e.compaction, parsed.CondensedHistory)
		if len(e.compaction) > compactionWindow {
			e.compaction = e.compaction[len(e.compaction)-compactionWindow:]
		}
		e.turnsSinceCompaction = 0
	} else {
		e.turnsSinceCompaction++
	}

	timestamp = e.now().Format(time.RFC3339)
	if parsed.Tags != "" {
		admitted, err := e.mem.AdmitMemory(ctx, parsed.Tags, parsed.Summary, timestamp, parsed.Importance)
		if err != nil {
			log.Printf("[ENGINE] turn=%s admit failed: %v", turnID, err)
		} else if !admitted {
			log.Printf("[ENGINE] turn=%s candidate below admission threshold (raw=%.1f)", turnID, parsed.Importance)
		}
	}

	if err := e.mem.RecordTurn(ctx, "assistant", parsed.Body, timestamp); err != nil {
		log.Printf("[ENGINE] turn=%s record assistant turn failed: %v", turnID, err)
	}

	return parsed.Body, nil
}

// runActionPrePass asks the analysis completion for profile actions against
// the accumulated context and feeds the fetched facts into working memory.
// Skipped when no analysis completion or interpreter is configured; any
// failure degrades to an unaugmented prompt.
func (e *Engine) runActionPrePass(ctx context.Context, turnID string, history []memory.DialogueEntry, userInput string) {
	if e.analysis == nil || e.interp == nil {
		return
	}

	var b strings.Builder
	for _, entry := range history {
		fmt.Fprintf(&b, "%s: %s\n", entry.Speaker, entry.Content)
	}
	user := e.nameOfUser
	if user == "" {
		user = "user"
	}
	fmt.Fprintf(&b, "%s: %s\n", user, userInput)

	raw, err := e.analysis.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: analysisInstruction},
		{Role: core.RoleUser, Content: b.String()},
	})
	if err != nil {
		log.Printf("[ENGINE] turn=%s action pre-pass failed: %v", turnID, err)
		return
	}

	facts := e.interp.Run(strings.Split(raw, "\n"))
	for _, fact := range facts {
		e.working.Add("Memory: " + fact)
	}
}

// assemble builds the ordered role-tagged message list for the primary
// completion: persona and identity lines, the memory preamble, condensed
// history, working memory, the dialogue window, the response-format
// contract with a primed example answer, and finally the user input.
func (e *Engine) assemble(history []memory.DialogueEntry, userInput string) []core.Message {
	var messages []core.Message
	add := func(role core.Role, content string) {
		messages = append(messages, core.Message{Role: role, Content: content})
	}

	add(core.RoleSystem, assistantInstruction)
	if e.nameOfAgent != "" {
		add(core.RoleSystem, "Your name is "+e.nameOfAgent)
	}
	if conditions := e.conditions.Current(); conditions != UnknownConditions {
		add(core.RoleSystem, "Current weather: "+conditions)
	}

	add(core.RoleAssistant, "Following are a series of my relevant memories for reference:")
	nameOfUser := e.nameOfUser
	if nameOfUser != "" {
		add(core.RoleAssistant, "Memory: Name of user: "+nameOfUser)
	} else {
		nameOfUser = "user"
	}
	if e.userPronouns != "" {
		add(core.RoleAssistant, fmt.Sprintf("Memory: %s pronouns: %s", nameOfUser, e.userPronouns))
	}
	if e.nameOfAgent != "" {
		add(core.RoleAssistant, "Memory: My chosen name is "+e.nameOfAgent)
	}

	for _, entry := range e.compaction {
		add(core.RoleAssistant, "Memory: earlier conversation: "+entry)
	}
	for _, fact := range e.working.Snapshot() {
		add(core.RoleAssistant, fact)
	}

	for _, entry := range history {
		role := core.RoleAssistant
		if entry.Speaker == "user" {
			role = core.RoleUser
		}
		add(role, entry.Content)
	}

	instruction := formatInstruction
	if e.turnsSinceCompaction >= compactionThreshold {
		instruction += "\n" + compactionInstruction
	}
	add(core.RoleUser, instruction)
	add(core.RoleAssistant, fmt.Sprintf("r: Of course! Now let's continue.\nsummary: %s asked for a specific format for responses and I agreed.\ni: 10.0\nc: format, response, importance", nameOfUser))

	add(core.RoleUser, userInput)
	return messages
}
