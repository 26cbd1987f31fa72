package asm

import (
	"fmt"
	"strings"

	"zlang/token"
	"zlang/zerror"
)

// Builder accumulates the instruction text of one function. It owns the
// register free pool, the current frame offset and reserved-slot counter,
// and the module-wide label counter. Registers are allocated LIFO and must
// be released by whoever consumed the value.
type Builder struct {
	buffer strings.Builder

	// free pool; the last element is handed out next
	registers []Reg

	// current negative frame offset; each local moves it down 4 bytes
	offset int

	// number of local slots created in the current function
	reserved int

	labelCount int
}

// poolOrder lists the scratch registers so that eax is the first
// allocation, then ecx, edx and so on down the list.
var poolOrder = []Reg{
	"eax", "ecx", "edx", "ebx", "esi", "edi",
	"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
}

func NewBuilder() *Builder {
	b := &Builder{}
	b.resetRegisters()
	return b
}

func (b *Builder) resetRegisters() {
	b.registers = b.registers[:0]
	for i := len(poolOrder) - 1; i >= 0; i-- {
		b.registers = append(b.registers, poolOrder[i])
	}
}

// allocReg pops the next free register. The pool is a free list, not an
// allocator: running out means the expression exceeded fourteen live
// temporaries, which is outside the compiler's scope.
func (b *Builder) allocReg() Reg {
	if len(b.registers) == 0 {
		panic("register pool exhausted")
	}
	reg := b.registers[len(b.registers)-1]
	b.registers = b.registers[:len(b.registers)-1]
	return reg
}

// freeReg returns a register to the pool.
func (b *Builder) freeReg(reg Reg) {
	b.registers = append(b.registers, reg)
}

// release returns an operand's register to the pool, when it holds one.
func (b *Builder) release(operand Operand) {
	if operand.IsReg() {
		b.freeReg(operand.reg)
	}
}

// inst appends one instruction line, indented four spaces.
func (b *Builder) inst(line string) {
	b.buffer.WriteString("    ")
	b.buffer.WriteString(line)
	b.buffer.WriteString("\n")
}

// Label allocates a fresh function-local label. Labels are monotonic and
// never reused.
func (b *Builder) Label() string {
	label := fmt.Sprintf(".L%d", b.labelCount)
	b.labelCount++
	return label
}

// placeLabel defines a label at the current position.
func (b *Builder) placeLabel(label string) {
	b.buffer.WriteString(label)
	b.buffer.WriteString(":\n")
}

// storeToReg makes sure a value sits in a pool register, allocating one and
// moving the value when it does not already.
func (b *Builder) storeToReg(operand Operand) Reg {
	if operand.IsReg() {
		return operand.reg
	}
	reg := b.allocReg()
	b.inst(fmt.Sprintf("mov %s, %s", reg, operand))
	return reg
}

// makeVar creates a new 4-byte local slot holding the operand's value and
// returns its binding. The operand's register, if any, is released.
func (b *Builder) makeVar(value Operand, mutable bool, depth int) Variable {
	b.offset -= 4
	b.reserved++
	variable := Variable{Offset: b.offset, Mutable: mutable, Depth: depth}
	b.storeVar(value, variable)
	return variable
}

// assignVar overwrites an existing binding with the operand's value and
// releases the operand's register, if any.
func (b *Builder) assignVar(value Operand, variable Variable) {
	b.storeVar(value, variable)
}

func (b *Builder) storeVar(value Operand, variable Variable) {
	switch value.kind {
	case operandReg:
		b.inst(fmt.Sprintf("mov %s, %s", variable.Ref(), value.reg))
		b.freeReg(value.reg)
	case operandVar:
		// memory-to-memory needs a hop through a register
		reg := b.allocReg()
		b.inst(fmt.Sprintf("mov %s, %s", reg, value))
		b.inst(fmt.Sprintf("mov %s, %s", variable.Ref(), reg))
		b.freeReg(reg)
	default:
		b.inst(fmt.Sprintf("mov dword %s, %s", variable.Ref(), value))
	}
}

// conditionCodes maps comparison operators to their setcc suffix.
var conditionCodes = map[token.Operator]string{
	token.OpDoubleEquals:  "e",
	token.OpNotEquals:     "ne",
	token.OpGreater:       "g",
	token.OpGreaterEquals: "ge",
	token.OpLess:          "l",
	token.OpLessEquals:    "le",
}

// buildOp lowers one binary operation. The left operand is forced into a
// register, which becomes the result; the right operand is consumed in
// place and released. Division and modulo are not lowered.
func (b *Builder) buildOp(left Operand, right Operand, op token.Operator) (Reg, error) {
	reg := b.storeToReg(left)

	switch op {
	case token.OpAdd:
		b.inst(fmt.Sprintf("add %s, %s", reg, right))
	case token.OpSub:
		b.inst(fmt.Sprintf("sub %s, %s", reg, right))
	case token.OpMult:
		b.inst(fmt.Sprintf("imul %s, %s", reg, right))
	case token.OpDiv, token.OpMod:
		b.release(right)
		b.freeReg(reg)
		return "", zerror.New(0, 0, 1, fmt.Sprintf("Operator '%s' is not implemented yet.", op))
	default:
		cc, ok := conditionCodes[op]
		if !ok {
			b.release(right)
			b.freeReg(reg)
			return "", zerror.New(0, 0, 1, fmt.Sprintf("Operator '%s' is not implemented yet.", op))
		}
		b.inst(fmt.Sprintf("cmp %s, %s", reg, right))
		b.inst(fmt.Sprintf("set%s al", cc))
		b.inst(fmt.Sprintf("movzx %s, al", reg))
	}

	b.release(right)
	return reg, nil
}

// writeToFn moves the accumulated body into the function and resets the
// per-function state. The label counter is module-wide and keeps running.
func (b *Builder) writeToFn(f *Function) {
	f.Write(b.buffer.String())
	f.reserved = 4 * b.reserved
	b.buffer.Reset()
	b.offset = 0
	b.reserved = 0
	b.resetRegisters()
}
