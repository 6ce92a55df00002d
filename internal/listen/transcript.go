package listen

import "hark/internal/asr"

// UpdateFunc receives a copy of the transcript and the result that produced
// the latest change. It runs on the scheduler goroutine and must not block.
type UpdateFunc func(lines []string, result asr.Result)

// Transcript is an append-mostly list of lines. Only the last line is open;
// earlier lines are closed and never change.
type Transcript struct {
	lines []string
}

// NewTranscript returns a transcript holding one empty open line.
func NewTranscript() *Transcript {
	return &Transcript{lines: []string{""}}
}

// Apply appends text as a new line when phraseComplete is set and otherwise
// replaces the open line. It returns the line closed by this update, if any.
func (t *Transcript) Apply(phraseComplete bool, text string) (closed string, ok bool) {
	if phraseComplete {
		closed = t.lines[len(t.lines)-1]
		t.lines = append(t.lines, text)
		return closed, true
	}
	t.lines[len(t.lines)-1] = text
	return "", false
}

// Lines returns a copy of all lines.
func (t *Transcript) Lines() []string {
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len is the number of lines, always at least one.
func (t *Transcript) Len() int { return len(t.lines) }

// Last returns the open line.
func (t *Transcript) Last() string { return t.lines[len(t.lines)-1] }
