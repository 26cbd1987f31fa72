package compiler

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zlang/lexer"
	"zlang/parser"
)

// bytecodeExamples are the sample programs the stack VM backend must
// compile; hello.ž exercises the native backend's builtins and is covered
// by the asm package instead.
var bytecodeExamples = []string{
	"binop.ž",
	"cmp.ž",
	"flow.ž",
	"function.ž",
	"loop.ž",
	"variables.ž",
}

func TestCompileExamples(t *testing.T) {
	for _, name := range bytecodeExamples {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("..", "examples", name))
			require.NoError(t, err)

			tokens, err := lexer.New(string(data)).Scan()
			require.NoError(t, err)

			module, err := parser.Make(tokens).Parse()
			require.NoError(t, err)

			comp := New()
			buff, err := comp.Compile(module)
			require.NoError(t, err)

			assert.Equal(t, Version, buff[0])

			size := int(int16(binary.BigEndian.Uint16(buff[1:3])))
			assert.Equal(t, size, len(ProgramText(buff)))

			// every program starts by calling main
			assert.Equal(t, byte(OP_CALL), buff[3])

			// the constant pool parses to exactly the recorded count
			rest := buff[3+size:]
			constCount := int(int16(binary.BigEndian.Uint16(rest[:2])))
			rest = rest[2:]
			parsed := 0
			for len(rest) > 0 {
				require.GreaterOrEqual(t, len(rest), 2)
				tag := rest[0]
				payload := int(rest[1])
				require.Contains(t, []byte{T_INT, T_STR}, tag)
				require.GreaterOrEqual(t, len(rest), 2+payload)
				rest = rest[2+payload:]
				parsed++
			}
			assert.Equal(t, constCount, parsed)
		})
	}
}

func TestExamplesEndWithHalt(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "examples", "binop.ž"))
	require.NoError(t, err)

	tokens, err := lexer.New(string(data)).Scan()
	require.NoError(t, err)
	module, err := parser.Make(tokens).Parse()
	require.NoError(t, err)

	buff, err := New().Compile(module)
	require.NoError(t, err)

	program := ProgramText(buff)
	// main's suffix: print the result, halt, then the structural return
	last := program[len(program)-3:]
	assert.Equal(t, []byte{byte(OP_DEBUG), byte(OP_HLT), byte(OP_RETURN)}, last)
}
