package asm

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// putsSource is the built-in write-to-stdout helper appended to every
// module. It expects the string pointer at [rsp+16] and the length at
// [rsp+24], which is how string call arguments are pushed.
const putsSource = `puts:
    push rbp
    mov rbp, rsp
    mov rax, 1
    mov rdi, 1
    mov rsi, [rsp+16]
    mov rdx, [rsp+24]
    syscall
    leave
    ret
`

// Module is an output NASM translation unit: exported globals, the string
// literal pool, and the emitted functions.
type Module struct {
	globals   []string
	strings   []string
	functions []*Function
}

func NewModule() *Module {
	return &Module{
		globals: []string{"_start"},
	}
}

func (m *Module) AddFunc(f *Function) {
	m.functions = append(m.functions, f)
}

func (m *Module) AddGlobal(global string) {
	m.globals = append(m.globals, global)
}

// AddString interns a string literal; identical contents share one label.
func (m *Module) AddString(value string) StrPtr {
	for i, existing := range m.strings {
		if existing == value {
			return StrPtr(i)
		}
	}
	m.strings = append(m.strings, value)
	return StrPtr(len(m.strings) - 1)
}

// String renders the whole module: the _start entry calling main and
// exiting, every function, the puts builtin, and the data/bss sections.
func (m *Module) String() string {
	var out strings.Builder

	fmt.Fprintf(&out, "global %s\n", strings.Join(m.globals, ", "))

	out.WriteString("section .text\n")
	out.WriteString("_start:\n")
	out.WriteString("    call main\n")
	out.WriteString("    ; -- exit --\n")
	out.WriteString("    mov rax, 60\n")
	out.WriteString("    xor rdi, rdi\n")
	out.WriteString("    syscall\n")

	for _, f := range m.functions {
		out.WriteString(f.String())
	}

	out.WriteString(putsSource)

	out.WriteString("section .data\n")
	for i, value := range m.strings {
		fmt.Fprintf(&out, "str_%d: db %s,0\n", i, dbValue(value))
	}

	out.WriteString("section .bss\n")

	return out.String()
}

// WriteTo writes the rendered module to w.
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, m.String())
	return int64(n), err
}

// WriteToFile writes the rendered module to the named file.
func (m *Module) WriteToFile(fileName string) error {
	return os.WriteFile(fileName, []byte(m.String()), 0o644)
}

// dbValue renders a string for a NASM db directive; embedded newlines are
// spliced in as 0xA bytes between the quoted runs.
func dbValue(value string) string {
	parts := strings.Split(value, "\n")
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		quoted = append(quoted, `"`+part+`"`)
	}
	return strings.Join(quoted, ", 0xA, ")
}
