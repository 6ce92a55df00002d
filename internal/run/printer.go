package run

import (
	"fmt"
	"io"

	"hark/internal/asr"
)

const clearScreen = "\033[2J\033[H"

// Printer redraws the whole transcript on every update.
type Printer struct {
	out   io.Writer
	clear bool
}

func NewPrinter(out io.Writer, clear bool) *Printer {
	return &Printer{out: out, clear: clear}
}

// Update satisfies listen.UpdateFunc.
func (p *Printer) Update(lines []string, _ asr.Result) {
	if p.clear {
		fmt.Fprint(p.out, clearScreen)
	}
	for _, l := range lines {
		fmt.Fprintln(p.out, l)
	}
}

// Final prints the transcript after listening ends.
func (p *Printer) Final(lines []string) {
	fmt.Fprint(p.out, "\n\nTranscription:\n")
	for _, l := range lines {
		fmt.Fprintln(p.out, l)
	}
}
