package asm

import (
	"fmt"
	"strings"
)

// Function is one emitted routine: its body text plus the frame size its
// prologue must reserve and the label its returns jump to.
type Function struct {
	name        string
	text        string
	reserved    int
	returnLabel string
}

func NewFunction(name string, returnLabel string) *Function {
	return &Function{
		name:        name,
		returnLabel: returnLabel,
	}
}

// Write appends instruction text to the function body.
func (f *Function) Write(text string) {
	f.text += text
}

func (f *Function) Name() string {
	return f.name
}

// String renders the function with its prologue and epilogue. The
// `sub rsp` is emitted only when the body created local slots; returns
// land on the function-local return label just before `leave`.
func (f *Function) String() string {
	var out strings.Builder
	out.WriteString(f.name)
	out.WriteString(":\n")
	out.WriteString("    push rbp\n")
	out.WriteString("    mov rbp, rsp\n")
	if f.reserved > 0 {
		fmt.Fprintf(&out, "    sub rsp, %d\n", f.reserved)
	}
	out.WriteString(f.text)
	out.WriteString(f.returnLabel)
	out.WriteString(":\n")
	out.WriteString("    leave\n")
	out.WriteString("    ret\n")
	return out.String()
}
