package compiler

import (
	"encoding/binary"
	"fmt"
	"strings"

	"zlang/ast"
)

// Opcode is one byte of the stack VM's instruction set (version 1).
type Opcode byte

const (
	OP_NOOP Opcode = 0x00

	OP_PUSH       Opcode = 0x01
	OP_LOAD_CONST Opcode = 0x02
	OP_STORE_NAME Opcode = 0x03
	OP_LOAD_NAME  Opcode = 0x04
	OP_POP        Opcode = 0x12
	OP_DUP        Opcode = 0x13

	OP_ADD           Opcode = 0x20
	OP_SUB           Opcode = 0x21
	OP_MUL           Opcode = 0x22
	OP_DIV           Opcode = 0x23
	OP_MOD           Opcode = 0x24
	OP_EQ            Opcode = 0x25
	OP_GREATER_THAN  Opcode = 0x26
	OP_GREATER_OR_EQ Opcode = 0x27
	OP_LESS_THAN     Opcode = 0x28
	OP_LESS_OR_EQ    Opcode = 0x29
	OP_AND           Opcode = 0x30
	OP_OR            Opcode = 0x31

	OP_JMP  Opcode = 0x40
	OP_JMPF Opcode = 0x41
	OP_JMPB Opcode = 0x42
	OP_JMPT Opcode = 0x43

	OP_CALL   Opcode = 0x50
	OP_RETURN Opcode = 0x51

	OP_SYS   Opcode = 0xfd
	OP_DEBUG Opcode = 0xfe
	OP_HLT   Opcode = 0xff
)

// Constant pool tags.
const (
	T_STR byte = 0x01
	T_INT byte = 0x02
)

// names maps opcodes to their mnemonics for disassembly.
var names = map[Opcode]string{
	OP_NOOP:          "NOOP",
	OP_PUSH:          "PUSH",
	OP_LOAD_CONST:    "LOAD_CONST",
	OP_STORE_NAME:    "STORE_NAME",
	OP_LOAD_NAME:     "LOAD_NAME",
	OP_POP:           "POP",
	OP_DUP:           "DUP",
	OP_ADD:           "ADD",
	OP_SUB:           "SUB",
	OP_MUL:           "MUL",
	OP_DIV:           "DIV",
	OP_MOD:           "MOD",
	OP_EQ:            "EQ",
	OP_GREATER_THAN:  "GT",
	OP_GREATER_OR_EQ: "GE",
	OP_LESS_THAN:     "LT",
	OP_LESS_OR_EQ:    "LE",
	OP_AND:           "AND",
	OP_OR:            "OR",
	OP_JMP:           "JMP",
	OP_JMPF:          "JMPF",
	OP_JMPB:          "JMPB",
	OP_JMPT:          "JMPT",
	OP_CALL:          "CALL",
	OP_RETURN:        "RETURN",
	OP_SYS:           "SYS",
	OP_DEBUG:         "DEBUG",
	OP_HLT:           "HLT",
}

// operandBytes gives the number of operand bytes following an opcode.
// Every instruction in the set is either bare or carries a single
// immediate byte.
func operandBytes(op Opcode) int {
	switch op {
	case OP_PUSH, OP_LOAD_CONST, OP_STORE_NAME, OP_LOAD_NAME, OP_CALL:
		return 1
	default:
		return 0
	}
}

// makeConstant packs a constant pool entry as `tag | size | payload`.
// Integers are written as little-endian 32-bit signed values; strings are
// raw bytes plus a terminating NUL which is counted in the size.
func makeConstant(c ast.Primitive) []byte {
	var buff []byte

	switch c.Kind {
	case ast.KindInt:
		buff = append(buff, T_INT, 4)
		value := make([]byte, 4)
		binary.LittleEndian.PutUint32(value, uint32(c.Int))
		buff = append(buff, value...)
	case ast.KindStr:
		value := append([]byte(c.Str), 0)
		buff = append(buff, T_STR, byte(len(value)))
		buff = append(buff, value...)
	}

	return buff
}

// ProgramText slices the program text segment out of a full wire-format
// buffer using the size recorded in bytes 1..2.
func ProgramText(buff []byte) []byte {
	size := int(int16(binary.BigEndian.Uint16(buff[1:3])))
	return buff[3 : 3+size]
}

// Disassemble renders program text as one mnemonic per line. Instructions
// with a constant pool operand also show the referenced value.
func Disassemble(program []byte, constants []ast.Primitive) string {
	var builder strings.Builder

	ip := 0
	for ip < len(program) {
		op := Opcode(program[ip])
		name, known := names[op]
		if !known {
			fmt.Fprintf(&builder, "0x%02x ???\n", byte(op))
			ip++
			continue
		}

		switch operandBytes(op) {
		case 0:
			builder.WriteString(name)
		case 1:
			if ip+1 >= len(program) {
				fmt.Fprintf(&builder, "%s <truncated>", name)
				ip = len(program)
				break
			}
			operand := program[ip+1]
			fmt.Fprintf(&builder, "%s %d", name, operand)
			if (op == OP_LOAD_CONST || op == OP_CALL) && int(operand) < len(constants) {
				fmt.Fprintf(&builder, ", value: %s", constants[operand])
			}
		}
		builder.WriteString("\n")
		ip += 1 + operandBytes(op)
	}

	return builder.String()
}
