package ingest

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// binarySampleSize bounds the control-character scan.
	binarySampleSize = 2048
	// binaryControlRatio above which input is treated as binary.
	binaryControlRatio = 0.15
	// segmentCharBudget caps a single segment handed to the LLM.
	segmentCharBudget = 3500
	// tokensPerWord is a rough LLM-token estimate, not exact.
	tokensPerWord = 1.3
)

// ExtractionError means the input was unreadable, empty, or binary.
// It is fatal to a pipeline run; no artifacts are written.
type ExtractionError struct {
	Name   string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %q: %s", e.Name, e.Reason)
}

// Extraction is the normalized view of one uploaded document.
type Extraction struct {
	FullText        string
	Segments        []string
	WordCount       int
	EstimatedTokens int
}

// Extract cleans raw document text and splits it into bounded segments.
// contentTypeHint is advisory only; the binary heuristic decides.
func Extract(name, raw, contentTypeHint string) (*Extraction, error) {
	_ = contentTypeHint

	if looksBinary(raw) {
		return nil, &ExtractionError{Name: name, Reason: "content appears to be binary"}
	}

	text := Normalize(raw)
	if text == "" {
		return nil, &ExtractionError{Name: name, Reason: "no readable text content"}
	}

	wordCount := len(strings.Fields(text))
	return &Extraction{
		FullText:        text,
		Segments:        Segment(text, segmentCharBudget),
		WordCount:       wordCount,
		EstimatedTokens: int(math.Ceil(float64(wordCount) * tokensPerWord)),
	}, nil
}

// looksBinary samples the first 2048 characters and trips when more than
// 15% are control characters other than \r\n\t.
func looksBinary(raw string) bool {
	sample := raw
	if len(sample) > binarySampleSize {
		sample = sample[:binarySampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	control := 0
	total := 0
	for _, r := range sample {
		total++
		if r == '\r' || r == '\n' || r == '\t' {
			continue
		}
		if r < 32 || r == 127 {
			control++
		}
	}
	if total == 0 {
		return false
	}
	return float64(control)/float64(total) > binaryControlRatio
}

// Normalize right-trims every line, collapses runs of blank lines to a
// single blank line, and trims the document as a whole.
func Normalize(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Segment greedily packs normalized lines into segments of at most budget
// characters, hard-splitting any single line longer than the budget.
// Order is preserved and empty segments are dropped.
func Segment(text string, budget int) []string {
	if budget <= 0 {
		budget = segmentCharBudget
	}
	var segments []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			segments = append(segments, s)
		}
		cur.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > budget {
			flush()
			cut := splitPoint(line, budget)
			segments = append(segments, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > budget {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return segments
}

// splitPoint backs a hard-split boundary off to the previous rune start so
// a cut never lands inside a multi-byte rune.
func splitPoint(line string, budget int) int {
	cut := budget
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	if cut == 0 {
		return budget
	}
	return cut
}
