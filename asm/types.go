package asm

import "fmt"

// Reg names a 32-bit scratch register from the builder's free pool.
type Reg string

// quadNames maps each pool register to its 64-bit alias, needed when a
// value is pushed as a call argument.
var quadNames = map[Reg]string{
	"eax": "rax", "ecx": "rcx", "edx": "rdx", "ebx": "rbx",
	"esi": "rsi", "edi": "rdi",
	"r8d": "r8", "r9d": "r9", "r10d": "r10", "r11d": "r11",
	"r12d": "r12", "r13d": "r13", "r14d": "r14", "r15d": "r15",
}

// Quad returns the 64-bit register containing this 32-bit register.
func (r Reg) Quad() string {
	return quadNames[r]
}

// Variable is a stack-frame binding: locals live at negative rbp offsets in
// 4-byte cells, arguments at positive offsets from +16 in 8-byte cells.
// Depth records the scope that owns the binding.
type Variable struct {
	Offset  int
	Mutable bool
	Depth   int
}

// Ref renders the memory reference of the binding, e.g. [rbp-4] or
// [rbp+16].
func (v Variable) Ref() string {
	return fmt.Sprintf("[rbp%+d]", v.Offset)
}

// StrPtr is an index into the module's string literal pool.
type StrPtr int

func (s StrPtr) String() string {
	return fmt.Sprintf("str_%d", int(s))
}

type operandKind int

const (
	operandInt operandKind = iota
	operandReg
	operandVar
	operandStr
)

// Operand is a value an instruction can consume: an immediate, a pool
// register, a frame variable, or a string-pool address.
type Operand struct {
	kind     operandKind
	imm      int32
	reg      Reg
	variable Variable
	str      StrPtr
}

func IntOperand(i int32) Operand      { return Operand{kind: operandInt, imm: i} }
func RegOperand(r Reg) Operand        { return Operand{kind: operandReg, reg: r} }
func VarOperand(v Variable) Operand   { return Operand{kind: operandVar, variable: v} }
func StrOperand(ptr StrPtr) Operand   { return Operand{kind: operandStr, str: ptr} }

// IsReg reports whether the operand occupies a pool register; such operands
// must be released once consumed.
func (o Operand) IsReg() bool {
	return o.kind == operandReg
}

// String renders the operand the way an instruction source field expects it.
func (o Operand) String() string {
	switch o.kind {
	case operandInt:
		return fmt.Sprintf("%d", o.imm)
	case operandReg:
		return string(o.reg)
	case operandVar:
		return o.variable.Ref()
	default:
		return o.str.String()
	}
}
