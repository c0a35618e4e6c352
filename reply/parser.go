// Package reply parses the tagged text blob the completion service is
// instructed to return: a human-readable body plus up to six trailing
// metadata lines (importance, summary, content words, optional condensed
// history), in any order, possibly interleaved with blank lines.
//
// The completion service does not always obey formatting instructions, so
// parsing is deliberately lenient: a blob with no recognizable tags is
// returned whole as the body with default metadata rather than rejected.
package reply

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultImportance is assumed when the reply carries no i: tag.
const DefaultImportance = 1.0

// maxTagLines bounds the backward scan for metadata lines.
const maxTagLines = 6

// Reply is the structured form of one completion response.
type Reply struct {
	// Body is the human-readable response text.
	Body string

	// Importance is the model's self-reported 0-10 usefulness score.
	Importance float64

	// Summary is the brief recap of the exchange. When the summary: tag
	// is missing it falls back to the blob's third-from-last line.
	Summary string

	// Tags is the comma-separated content-word list, empty when absent.
	Tags string

	// CondensedHistory is the optional ch: compaction summary.
	CondensedHistory string

	// Tagged reports whether any metadata tag was recognized. Memory
	// admission is gated on the reply actually carrying tags.
	Tagged bool
}

var (
	importancePattern = regexp.MustCompile(`^\s*[Ii]:\s*(\d\.?\d*)`)
	summaryPattern    = regexp.MustCompile(`^\s*[Ss]ummary:\s*(.+)`)
	historyPattern    = regexp.MustCompile(`^\s*[Cc][Hh]:\s*(.+)`)
	tagsPattern       = regexp.MustCompile(`^\s*[Cc]:\s*(.+)`)
)

// Parse extracts the body and metadata from a raw completion blob.
//
// It scans from the last line backward over at most six lines, recording
// the first value found per tag and the furthest-back line at which any
// tag matched. Everything before that line is the body; a leading r:/R:
// prefix (the canonical response marker) is stripped from it.
func Parse(blob string) Reply {
	r := Reply{Importance: DefaultImportance}
	lines := strings.Split(blob, "\n")

	if len(lines) == 1 {
		// Single-line reply with no metadata: pass through verbatim.
		r.Body = blob
		r.Summary = blob
		return r
	}

	summaryBeginsAt := 0
	var summary string
	haveImportance, haveSummary, haveTags, haveHistory := false, false, false, false

	scan := maxTagLines
	if scan > len(lines) {
		scan = len(lines)
	}
	for back := 1; back <= scan; back++ {
		line := lines[len(lines)-back]
		switch {
		case !haveImportance && importancePattern.MatchString(line):
			value := importancePattern.FindStringSubmatch(line)[1]
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				r.Importance = f
			}
			haveImportance = true
			summaryBeginsAt = back
		case !haveSummary && summaryPattern.MatchString(line):
			summary = summaryPattern.FindStringSubmatch(line)[1]
			haveSummary = true
			summaryBeginsAt = back
		case !haveHistory && historyPattern.MatchString(line):
			r.CondensedHistory = historyPattern.FindStringSubmatch(line)[1]
			haveHistory = true
			summaryBeginsAt = back
		case !haveTags && tagsPattern.MatchString(line):
			r.Tags = tagsPattern.FindStringSubmatch(line)[1]
			haveTags = true
			summaryBeginsAt = back
		}
	}

	r.Tagged = summaryBeginsAt > 0
	if !haveSummary && len(lines) >= 3 {
		// Long-standing quirk: a missing summary: tag falls back to the
		// raw third-from-last line, sensible or not. Downstream admission
		// depends on it; do not change without a product decision.
		summary = lines[len(lines)-3]
	}
	r.Summary = summary

	if !r.Tagged {
		// No metadata anywhere: the whole blob is the body.
		r.Body = blob
		return r
	}

	body := strings.Join(lines[:len(lines)-summaryBeginsAt], "\n")
	if strings.HasPrefix(body, "r:") || strings.HasPrefix(body, "R:") {
		body = strings.TrimSpace(body[2:])
	}
	r.Body = body
	return r
}
