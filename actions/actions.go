// Package actions implements the constrained command grammar the analysis
// completion emits (FETCH/STORE/DELETE over per-user profile facts) and the
// interpreter that applies it.
//
// The grammar is matched by pattern, not parsed: a fixed keyword with
// parenthesized comma-separated arguments. The interpreter is fed raw,
// unvalidated lines from a model, so anything that doesn't match a command
// shape is a no-op rather than an error.
package actions

import "regexp"

// Kind discriminates the parsed action variants.
type Kind int

const (
	// Unrecognized is any line that matches no command shape.
	Unrecognized Kind = iota
	Fetch
	Store
	Delete
)

// Action is the tagged variant produced by Parse. Dispatch on Kind is
// exhaustive; Unrecognized carries no fields.
type Action struct {
	Kind  Kind
	User  string
	Key   string
	Value string
}

// User ids and keys may not contain commas or parens; the STORE value may
// contain commas as long as the three-argument shape holds.
var (
	fetchPattern  = regexp.MustCompile(`^\s*FETCH\(\s*([^,()]+?)\s*,\s*([^,()]+?)\s*\)\s*$`)
	storePattern  = regexp.MustCompile(`^\s*STORE\(\s*([^,()]+?)\s*,\s*([^,()]+?)\s*,\s*(.+?)\s*\)\s*$`)
	deletePattern = regexp.MustCompile(`^\s*DELETE\(\s*([^,()]+?)\s*,\s*([^,()]+?)\s*\)\s*$`)
)

// Parse matches one line against the command grammar.
func Parse(line string) Action {
	if m := fetchPattern.FindStringSubmatch(line); m != nil {
		return Action{Kind: Fetch, User: m[1], Key: m[2]}
	}
	if m := storePattern.FindStringSubmatch(line); m != nil {
		return Action{Kind: Store, User: m[1], Key: m[2], Value: m[3]}
	}
	if m := deletePattern.FindStringSubmatch(line); m != nil {
		return Action{Kind: Delete, User: m[1], Key: m[2]}
	}
	return Action{Kind: Unrecognized}
}
