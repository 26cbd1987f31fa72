// Package zerror defines the structured diagnostic shared by every phase of
// the compiler. A CompilerError carries the 1-based source position of the
// offending token, the number of caret arrows to draw under it, and a
// human-readable message.
package zerror

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Number of context lines shown above and below the offending line.
const linePadding = 3

type CompilerError struct {
	Line    int32
	Column  int
	Arrows  int
	Message string
}

// New constructs a CompilerError. A zero arrow span is widened to one so the
// rendered diagnostic always points at something.
func New(line int32, column int, arrows int, message string) CompilerError {
	if arrows == 0 {
		arrows = 1
	}
	return CompilerError{
		Line:    line,
		Column:  column,
		Arrows:  arrows,
		Message: message,
	}
}

func (e CompilerError) Error() string {
	return e.Message
}

// printMessage writes the caret line pointing at the error position,
// followed by the message.
func (e CompilerError) printMessage(w io.Writer) {
	spaces := strings.Repeat(" ", e.Column+4)
	arrows := color.New(color.FgRed, color.Bold).Sprint(strings.Repeat("^", e.Arrows))
	fmt.Fprintf(w, "%s%s %s\n", spaces, arrows, e.Message)
}

// Display renders the error with the surrounding source lines and a caret
// marker under the offending position:
//
//	3  | var x
//	        ^ Immutable variables have to be assigned at declaration.
//	4  | ...
//
// Lines are numbered from 1. If the error's line falls outside the source
// (e.g. an EOF diagnostic), the message is printed on its own.
func (e CompilerError) Display(w io.Writer, source string) {
	displayed := false
	lineNum := 0
	if linePadding < int(e.Line) {
		lineNum = int(e.Line) - linePadding
	}

	lines := strings.Split(source, "\n")
	if lineNum > len(lines) {
		lineNum = len(lines)
	}
	end := lineNum + linePadding*2
	if end > len(lines) {
		end = len(lines)
	}

	for _, line := range lines[lineNum:end] {
		if lineNum == int(e.Line) {
			e.printMessage(w)
			displayed = true
		}
		lineNum++
		fmt.Fprintf(w, "%s| %s\n", padding(lineNum), line)
	}

	if !displayed {
		e.printMessage(w)
	}

	fmt.Fprintln(w)
}

func padding(num int) string {
	return fmt.Sprintf("%-3d", num)
}
