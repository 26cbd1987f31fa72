package zerror

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	// keep rendered output free of ANSI escapes in tests
	color.NoColor = true
}

func TestPadding(t *testing.T) {
	got := padding(20)
	assert.Equal(t, "20 ", got)
}

func TestNewWidensZeroArrows(t *testing.T) {
	err := New(1, 1, 0, "oops")
	assert.Equal(t, 1, err.Arrows)
}

func TestErrorReturnsMessage(t *testing.T) {
	err := New(3, 7, 1, "Unexpected char.")
	assert.Equal(t, "Unexpected char.", err.Error())
}

func TestDisplayPointsAtLine(t *testing.T) {
	source := "fun main() {\nvar x\n}"
	err := New(2, 5, 1, "Immutable variables have to be assigned at declaration.")

	var out bytes.Buffer
	err.Display(&out, source)

	rendered := out.String()
	assert.Contains(t, rendered, "var x")
	assert.Contains(t, rendered, "^ Immutable variables have to be assigned at declaration.")

	// the caret line sits directly under the offending source line
	caretIdx := strings.Index(rendered, "^")
	lineIdx := strings.Index(rendered, "2  | var x")
	assert.True(t, lineIdx >= 0 && caretIdx > lineIdx, "caret should follow the source line:\n%s", rendered)
}

func TestDisplayOutOfRangeLine(t *testing.T) {
	err := New(42, 1, 2, "invalid syntax")

	var out bytes.Buffer
	err.Display(&out, "one line only")

	assert.Contains(t, out.String(), "^^ invalid syntax")
}
