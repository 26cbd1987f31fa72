package compiler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zlang/ast"
	"zlang/lexer"
	"zlang/parser"
)

// compileSource runs the full pipeline and returns the wire-format buffer
// together with the compiler, so tests can inspect the constant pool.
func compileSource(t *testing.T, source string) ([]byte, *Compiler) {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	require.NoError(t, err)
	module, err := parser.Make(tokens).Parse()
	require.NoError(t, err)

	comp := New()
	buff, err := comp.Compile(module)
	require.NoError(t, err)
	return buff, comp
}

// compileError expects compilation to fail and returns the error.
func compileError(t *testing.T, source string) error {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	require.NoError(t, err)
	module, err := parser.Make(tokens).Parse()
	require.NoError(t, err)

	_, err = New().Compile(module)
	require.Error(t, err)
	return err
}

func TestWireFormatHeader(t *testing.T) {
	buff, _ := compileSource(t, "fun main() { 6 + 7\n }")

	assert.Equal(t, Version, buff[0])

	size := int(int16(binary.BigEndian.Uint16(buff[1:3])))
	program := ProgramText(buff)
	assert.Equal(t, size, len(program), "recorded size must equal the program text length")

	// the constant count follows the program text
	constCount := int(int16(binary.BigEndian.Uint16(buff[3+size : 5+size])))
	assert.Equal(t, 1, constCount)
}

func TestSimpleMainProgram(t *testing.T) {
	buff, comp := compileSource(t, "fun main() { 6 + 7\n }")
	program := ProgramText(buff)

	// CALL main, then main's body with the DEBUG/HLT suffix
	expected := []byte{
		byte(OP_CALL), 0,
		byte(OP_PUSH), 6,
		byte(OP_PUSH), 7,
		byte(OP_ADD),
		byte(OP_DEBUG), byte(OP_HLT),
		byte(OP_RETURN),
	}
	assert.Equal(t, expected, program)

	// main's offset (2: right past the CALL prefix) is interned as an int
	require.Len(t, comp.Constants(), 1)
	assert.Equal(t, ast.IntValue(2), comp.Constants()[0])
}

func TestForwardCallResolution(t *testing.T) {
	buff, comp := compileSource(t, "fun main() { foo()\n }\n fun foo() { }")
	program := ProgramText(buff)

	// main sits at offset 2 and is 5 bytes long, so foo starts at 7
	expected := []byte{
		byte(OP_CALL), 1, // call main (offset 2)
		byte(OP_CALL), 0, // call foo (offset 7)
		byte(OP_DEBUG), byte(OP_HLT),
		byte(OP_RETURN), // end of main
		byte(OP_RETURN), // foo
	}
	assert.Equal(t, expected, program)

	require.Len(t, comp.Constants(), 2)
	assert.Equal(t, ast.IntValue(7), comp.Constants()[0])
	assert.Equal(t, ast.IntValue(2), comp.Constants()[1])

	// the byte at foo's recorded offset is foo's first instruction
	assert.Equal(t, byte(OP_RETURN), program[7])
}

func TestIfLowering(t *testing.T) {
	buff, _ := compileSource(t, "fun main() { if 1 == 2 {\n 5\n }\n }")
	program := ProgramText(buff)

	expected := []byte{
		byte(OP_CALL), 0,
		byte(OP_PUSH), 1,
		byte(OP_PUSH), 2,
		byte(OP_EQ),
		byte(OP_PUSH), 0, byte(OP_EQ), // invert the test
		byte(OP_PUSH), 5, byte(OP_JMPT), // hop over the body when false
		byte(OP_PUSH), 5, // body
		byte(OP_PUSH), 0, byte(OP_JMPF), // hop over the (empty) else
		byte(OP_DEBUG), byte(OP_HLT),
		byte(OP_RETURN),
	}
	assert.Equal(t, expected, program)
}

func TestLoopAndBreakDistances(t *testing.T) {
	buff, _ := compileSource(t, "fun main() { loop {\n break\n }\n }")
	program := ProgramText(buff)

	expected := []byte{
		byte(OP_CALL), 0,
		byte(OP_PUSH), 3, byte(OP_JMPF), // break: lands just past JMPB
		byte(OP_PUSH), 6, byte(OP_JMPB), // jump back over body and tail
		byte(OP_DEBUG), byte(OP_HLT),
		byte(OP_RETURN),
	}
	assert.Equal(t, expected, program)
}

func TestBreakInsideIfInsideLoop(t *testing.T) {
	buff, _ := compileSource(t, "fun main() { var mut i = 0\n loop {\n if i == 3 {\n break\n }\n i = i + 1\n }\n }")
	program := ProgramText(buff)

	disasm := Disassemble(program, nil)
	assert.Contains(t, disasm, "JMPF")
	assert.Contains(t, disasm, "JMPB")
	assert.Contains(t, disasm, "JMPT")
	// the break marker must have been patched away
	assert.NotContains(t, disasm, "NOOP")
}

func TestDenseVariableSlots(t *testing.T) {
	buff, _ := compileSource(t, "fun main() { var a = 1\n var b = 2\n b\n }")
	program := ProgramText(buff)

	expected := []byte{
		byte(OP_CALL), 0,
		byte(OP_PUSH), 1, byte(OP_STORE_NAME), 0,
		byte(OP_PUSH), 2, byte(OP_STORE_NAME), 1,
		byte(OP_LOAD_NAME), 1,
		byte(OP_DEBUG), byte(OP_HLT),
		byte(OP_RETURN),
	}
	assert.Equal(t, expected, program)
}

func TestVariableSlotsAreScopedPerFunction(t *testing.T) {
	buff, _ := compileSource(t, "fun foo() { var a = 1\n }\n fun main() { var z = 1\n foo()\n }")
	program := ProgramText(buff)

	disasm := Disassemble(program, nil)
	// both functions start numbering at slot 0
	assert.Contains(t, disasm, "STORE_NAME 0")
	assert.NotContains(t, disasm, "STORE_NAME 1")
}

func TestLargeIntUsesConstantPool(t *testing.T) {
	buff, comp := compileSource(t, "fun main() { 300\n }")
	program := ProgramText(buff)

	assert.Equal(t, byte(OP_LOAD_CONST), program[2])
	assert.Equal(t, ast.IntValue(300), comp.Constants()[program[3]])
}

func TestMutableDeclarationWithoutValueStoresZero(t *testing.T) {
	buff, _ := compileSource(t, "fun main() { var mut i\n }")
	program := ProgramText(buff)

	expected := []byte{
		byte(OP_CALL), 0,
		byte(OP_PUSH), 0, byte(OP_STORE_NAME), 0,
		byte(OP_DEBUG), byte(OP_HLT),
		byte(OP_RETURN),
	}
	assert.Equal(t, expected, program)
}

func TestFunctionArgumentsStoreInDeclarationOrder(t *testing.T) {
	buff, _ := compileSource(t, "fun add(a: int, b: int) -> int { return a + b\n }\n fun main() { add(2, 3)\n }")
	program := ProgramText(buff)

	// add is laid out first; its preamble stores both arguments
	assert.Equal(t, byte(OP_STORE_NAME), program[2])
	assert.Equal(t, byte(0), program[3])
	assert.Equal(t, byte(OP_STORE_NAME), program[4])
	assert.Equal(t, byte(1), program[5])
}

func TestCallArgumentsPushRightToLeft(t *testing.T) {
	buff, _ := compileSource(t, "fun add(a: int, b: int) -> int { return a + b\n }\n fun main() { add(2, 3)\n }")
	program := ProgramText(buff)

	disasm := Disassemble(program, nil)
	assert.Contains(t, disasm, "PUSH 3\nPUSH 2\nCALL")
}

func TestNotEqualsLowersToInvertedEquality(t *testing.T) {
	buff, _ := compileSource(t, "fun main() { 1 != 2\n }")
	program := ProgramText(buff)

	expected := []byte{
		byte(OP_CALL), 0,
		byte(OP_PUSH), 1,
		byte(OP_PUSH), 2,
		byte(OP_EQ), byte(OP_PUSH), 0, byte(OP_EQ),
		byte(OP_DEBUG), byte(OP_HLT),
		byte(OP_RETURN),
	}
	assert.Equal(t, expected, program)
}

func TestNegativeLiteralFails(t *testing.T) {
	err := compileError(t, "fun main() { var x = -5\n }")
	assert.Equal(t, "Negative numbers are not implemented yet.", err.Error())
}

func TestUnsupportedNodes(t *testing.T) {
	err := compileError(t, "fun main() { var x = [1, 2]\n }")
	assert.Equal(t, "Node List can't be compiled yet.", err.Error())

	err = compileError(t, "fun main() { 2.5\n }")
	assert.Equal(t, "Node Constant can't be compiled yet.", err.Error())

	err = compileError(t, "fun main() { true\n }")
	assert.Equal(t, "Node Constant can't be compiled yet.", err.Error())
}

func TestMissingMain(t *testing.T) {
	err := compileError(t, "fun foo() { }")
	assert.Equal(t, "Missing a main function.", err.Error())
}

func TestUndefinedFunctionCall(t *testing.T) {
	err := compileError(t, "fun main() { bar()\n }")
	assert.Equal(t, "Function 'bar' is not defined.", err.Error())
}

func TestStringConstant(t *testing.T) {
	buff, comp := compileSource(t, "fun main() { var s = \"hi\"\n }")

	require.Len(t, comp.Constants(), 2)
	assert.Equal(t, ast.StrValue("hi"), comp.Constants()[0])

	program := ProgramText(buff)
	assert.Equal(t, byte(OP_LOAD_CONST), program[2])
	assert.Equal(t, byte(0), program[3])
}

func TestConstantPoolDeduplicates(t *testing.T) {
	_, comp := compileSource(t, "fun main() { var a = \"hi\"\n var b = \"hi\"\n var c = 300\n var d = 300\n }")

	// "hi" and 300 each appear once, plus main's offset
	assert.Len(t, comp.Constants(), 3)
}
