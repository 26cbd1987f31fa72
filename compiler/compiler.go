// Package compiler emits version-1 stack VM bytecode from a parsed module.
//
// Function bodies may contain forward references (main usually calls
// functions defined after it), so compilation runs in two passes: pass zero
// registers every function and compiles bodies with zero-filled,
// length-stable placeholders for names and calls; a layout pass then fixes
// every function's code offset; pass one recompiles the bodies against the
// real offsets.
package compiler

import (
	"encoding/binary"
	"fmt"
	"strings"

	"zlang/ast"
	"zlang/token"
	"zlang/zerror"
)

// Wire format version emitted in the first byte of the program.
const Version byte = 0x01

// funcEntry tracks where a function's code lands in the emitted program and
// which slot of the function store holds its body.
type funcEntry struct {
	offset int
	slot   int
}

// Compiler holds the bytecode emitter state: the deduplicated constant
// pool, the function table and code store, a per-function variable slot
// table, and the pass counter.
type Compiler struct {
	constants []ast.Primitive

	functionMap   map[string]*funcEntry
	functionOrder []string
	functionStore [][]byte

	// stack of function names being compiled; qualifies variable slots
	currentFunc []string

	// dense per-function variable slot assignment
	varSlots map[string]map[string]int

	iteration int
}

// New creates an empty Compiler.
func New() *Compiler {
	return &Compiler{
		functionMap: make(map[string]*funcEntry),
		varSlots:    make(map[string]map[string]int),
	}
}

func throw(message string) error {
	return zerror.New(0, 0, 1, message)
}

// errUnsupported names the node variant in the spec'd diagnostic.
func errUnsupported(node ast.Node) error {
	variant := strings.TrimPrefix(fmt.Sprintf("%T", node), "ast.")
	return throw(fmt.Sprintf("Node %s can't be compiled yet.", variant))
}

// getConstant returns the pool index of value, interning it on first use.
func (c *Compiler) getConstant(value ast.Primitive) byte {
	for i, existing := range c.constants {
		if existing == value {
			return byte(i)
		}
	}
	c.constants = append(c.constants, value)
	return byte(len(c.constants) - 1)
}

// currentFuncName is the qualifier for variable slots; top-level statements
// share the module-scope table under the empty name.
func (c *Compiler) currentFuncName() string {
	if len(c.currentFunc) == 0 {
		return ""
	}
	return c.currentFunc[len(c.currentFunc)-1]
}

// getVariableIndex assigns dense per-function slot indices in first-use
// order, so both passes see identical numbering.
func (c *Compiler) getVariableIndex(name string) byte {
	function := c.currentFuncName()
	slots, ok := c.varSlots[function]
	if !ok {
		slots = make(map[string]int)
		c.varSlots[function] = slots
	}
	index, ok := slots[name]
	if !ok {
		index = len(slots)
		slots[name] = index
	}
	return byte(index)
}

func (c *Compiler) buildConstant(constant ast.Constant) ([]byte, error) {
	var buff []byte

	switch constant.Value.Kind {
	case ast.KindInt:
		i := constant.Value.Int
		if i < 0 {
			return nil, throw("Negative numbers are not implemented yet.")
		}
		if i > 255 {
			pos := c.getConstant(constant.Value)
			buff = append(buff, byte(OP_LOAD_CONST), pos)
		} else {
			buff = append(buff, byte(OP_PUSH), byte(i))
		}
	case ast.KindStr:
		pos := c.getConstant(constant.Value)
		buff = append(buff, byte(OP_LOAD_CONST), pos)
	default:
		return nil, errUnsupported(constant)
	}

	return buff, nil
}

func (c *Compiler) buildVar(variable ast.VariableDef) ([]byte, error) {
	var buff []byte

	if _, none := variable.Value.(ast.None); none {
		buff = append(buff, byte(OP_PUSH), 0)
	} else {
		value, err := c.parseNode(variable.Value)
		if err != nil {
			return nil, err
		}
		buff = append(buff, value...)
	}

	buff = append(buff, byte(OP_STORE_NAME), c.getVariableIndex(variable.Name))
	return buff, nil
}

func (c *Compiler) buildAssign(assign ast.Assign) ([]byte, error) {
	value, err := c.parseNode(assign.Value)
	if err != nil {
		return nil, err
	}

	buff := append(value, byte(OP_STORE_NAME), c.getVariableIndex(assign.Target))
	return buff, nil
}

func (c *Compiler) buildBinOp(binop ast.BinOp) ([]byte, error) {
	left, err := c.parseNode(binop.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.parseNode(binop.Right)
	if err != nil {
		return nil, err
	}

	buff := append(left, right...)

	switch binop.Op {
	case token.OpAdd:
		buff = append(buff, byte(OP_ADD))
	case token.OpSub:
		buff = append(buff, byte(OP_SUB))
	case token.OpMult:
		buff = append(buff, byte(OP_MUL))
	case token.OpDiv:
		buff = append(buff, byte(OP_DIV))
	case token.OpMod:
		buff = append(buff, byte(OP_MOD))
	case token.OpDoubleEquals:
		buff = append(buff, byte(OP_EQ))
	case token.OpGreater:
		buff = append(buff, byte(OP_GREATER_THAN))
	case token.OpGreaterEquals:
		buff = append(buff, byte(OP_GREATER_OR_EQ))
	case token.OpLess:
		buff = append(buff, byte(OP_LESS_THAN))
	case token.OpLessEquals:
		buff = append(buff, byte(OP_LESS_OR_EQ))
	case token.OpNotEquals:
		// the instruction set has no NE; compare and invert
		buff = append(buff, byte(OP_EQ), byte(OP_PUSH), 0, byte(OP_EQ))
	}

	return buff, nil
}

func (c *Compiler) buildName(name ast.Name) ([]byte, error) {
	if c.iteration == 0 {
		return []byte{0x00, 0x00}, nil
	}
	return []byte{byte(OP_LOAD_NAME), c.getVariableIndex(name.ID)}, nil
}

func (c *Compiler) buildFun(fun ast.FunctionDef) error {
	var funcBody []byte
	c.currentFunc = append(c.currentFunc, fun.Name)
	defer func() {
		c.currentFunc = c.currentFunc[:len(c.currentFunc)-1]
	}()

	// The caller pushed arguments right-to-left, so the first argument is
	// on top of the stack: store them in declaration order.
	for _, arg := range fun.Args {
		funcBody = append(funcBody, byte(OP_STORE_NAME), c.getVariableIndex(arg.Name))
	}

	for _, node := range fun.Body {
		bytes, err := c.parseNode(node)
		if err != nil {
			return err
		}
		funcBody = append(funcBody, bytes...)
	}

	if fun.Name == "main" {
		funcBody = append(funcBody, byte(OP_DEBUG), byte(OP_HLT))
	}

	funcBody = append(funcBody, byte(OP_RETURN))

	slot := c.functionMap[fun.Name].slot
	c.functionStore[slot] = funcBody
	return nil
}

// defineFun reserves a code-store slot and a table entry so calls can be
// resolved before the function's body is compiled.
func (c *Compiler) defineFun(fun ast.FunctionDef) {
	c.functionStore = append(c.functionStore, nil)
	c.functionMap[fun.Name] = &funcEntry{offset: 0, slot: len(c.functionStore) - 1}
	c.functionOrder = append(c.functionOrder, fun.Name)
}

// buildIf lowers a conditional: the test result is compared against zero
// and a true comparison (test was false) hops over the body; the body ends
// by hopping over the else branch.
func (c *Compiler) buildIf(ifStatement ast.If) ([]byte, error) {
	test, err := c.parseNode(ifStatement.Test)
	if err != nil {
		return nil, err
	}
	body, err := c.buildScope(ifStatement.Run)
	if err != nil {
		return nil, err
	}
	orelse, err := c.parseNode(ifStatement.Orelse)
	if err != nil {
		return nil, err
	}

	body = append(body, byte(OP_PUSH), byte(len(orelse)), byte(OP_JMPF))

	var buff []byte
	buff = append(buff, test...)
	buff = append(buff, byte(OP_PUSH), 0x00, byte(OP_EQ))
	buff = append(buff, byte(OP_PUSH), byte(len(body)), byte(OP_JMPT))
	buff = append(buff, body...)
	buff = append(buff, orelse...)

	return buff, nil
}

func (c *Compiler) buildScope(scope ast.Scope) ([]byte, error) {
	var buff []byte

	for _, node := range scope.Body {
		bytes, err := c.parseNode(node)
		if err != nil {
			return nil, err
		}
		buff = append(buff, bytes...)
	}

	return buff, nil
}

// buildBreak emits a three-NOOP marker sized like the eventual
// `PUSH dist; JMPF`; the enclosing buildLoop patches it once the loop
// body's total length is known.
func (c *Compiler) buildBreak() []byte {
	return []byte{byte(OP_NOOP), byte(OP_NOOP), byte(OP_NOOP)}
}

// buildLoop assembles the loop body, patches break markers against the
// final body length, and closes with an unconditional backward jump to the
// loop head.
func (c *Compiler) buildLoop(loopDef ast.Loop) ([]byte, error) {
	var body []byte
	for _, node := range loopDef.Body.Body {
		bytes, err := c.parseNode(node)
		if err != nil {
			return nil, err
		}
		body = append(body, bytes...)
	}

	c.patchBreaks(body)

	// jump back over the body plus this three-byte tail
	body = append(body, byte(OP_PUSH), byte(len(body)+3), byte(OP_JMPB))
	return body, nil
}

// patchBreaks walks the body instruction by instruction (every opcode has a
// fixed width) and rewrites each NOOP,NOOP,NOOP marker into a forward jump
// landing just past the loop's backward-jump tail. The walk is what makes
// break distances deterministic: they derive from the emitted buffer, not
// from a counter threaded through the build calls.
func (c *Compiler) patchBreaks(body []byte) {
	i := 0
	for i+2 < len(body) {
		op := Opcode(body[i])
		if op == OP_NOOP && Opcode(body[i+1]) == OP_NOOP && Opcode(body[i+2]) == OP_NOOP {
			// distance from the byte after this JMPF to just past the
			// PUSH n, JMPB tail: (len(body)+3) - (i+3)
			body[i] = byte(OP_PUSH)
			body[i+1] = byte(len(body) - i)
			body[i+2] = byte(OP_JMPF)
			i += 3
			continue
		}
		i += 1 + operandBytes(op)
	}
}

func (c *Compiler) buildCall(call ast.Call) ([]byte, error) {
	var buff []byte
	for i := len(call.Args) - 1; i >= 0; i-- {
		arg, err := c.parseNode(call.Args[i])
		if err != nil {
			return nil, err
		}
		buff = append(buff, arg...)
	}

	if c.iteration == 0 {
		return make([]byte, 2+len(buff)), nil
	}

	entry, ok := c.functionMap[call.Func.ID]
	if !ok {
		return nil, zerror.New(call.Func.Pos.Line, call.Func.Pos.Column, 1,
			fmt.Sprintf("Function '%s' is not defined.", call.Func.ID))
	}
	constant := c.getConstant(ast.IntValue(int32(entry.offset)))
	buff = append(buff, byte(OP_CALL), constant)
	return buff, nil
}

func (c *Compiler) buildReturn(ret ast.Return) ([]byte, error) {
	buff, err := c.parseNode(ret.Value)
	if err != nil {
		return nil, err
	}
	buff = append(buff, byte(OP_RETURN))
	return buff, nil
}

// compileFunctions lays the function section out in module order and fixes
// each function's code offset relative to the start of the program text.
func (c *Compiler) compileFunctions(headerLen int) []byte {
	var out []byte

	for _, name := range c.functionOrder {
		entry := c.functionMap[name]
		entry.offset = len(out) + headerLen + 1
		out = append(out, c.functionStore[entry.slot]...)
	}

	return out
}

func (c *Compiler) parseNode(node ast.Node) ([]byte, error) {
	switch n := node.(type) {
	case ast.BinOp:
		return c.buildBinOp(n)
	case ast.Constant:
		return c.buildConstant(n)
	case ast.VariableDef:
		return c.buildVar(n)
	case ast.Assign:
		return c.buildAssign(n)
	case ast.Return:
		return c.buildReturn(n)
	case ast.Call:
		return c.buildCall(n)
	case ast.Name:
		return c.buildName(n)
	case ast.If:
		return c.buildIf(n)
	case ast.Scope:
		return c.buildScope(n)
	case ast.Loop:
		return c.buildLoop(n)
	case ast.Break:
		return c.buildBreak(), nil
	case ast.None:
		return nil, nil
	default:
		return nil, errUnsupported(node)
	}
}

// Compile emits the complete wire-format program: version byte, big-endian
// program size, program text (a CALL to main, the function section, then
// any free-standing top-level statements), and the packed constant pool.
func (c *Compiler) Compile(module ast.Module) ([]byte, error) {
	header := []byte{Version}

	var funcs []ast.FunctionDef
	for _, node := range module.Body {
		if fun, ok := node.(ast.FunctionDef); ok {
			funcs = append(funcs, fun)
		}
	}

	for _, fun := range funcs {
		c.defineFun(fun)
	}
	for _, fun := range funcs {
		if err := c.buildFun(fun); err != nil {
			return nil, err
		}
	}

	c.iteration++

	// Lay the placeholder bodies out just to learn every offset; the
	// placeholder instruction lengths match the real ones.
	c.compileFunctions(len(header))

	for _, fun := range funcs {
		if err := c.buildFun(fun); err != nil {
			return nil, err
		}
	}

	c.iteration++

	program := c.compileFunctions(len(header))

	// Call the main func
	mainEntry, ok := c.functionMap["main"]
	if !ok {
		return nil, throw("Missing a main function.")
	}
	mainConst := c.getConstant(ast.IntValue(int32(mainEntry.offset)))
	program = append([]byte{byte(OP_CALL), mainConst}, program...)

	// Free-standing top-level statements run after the function section.
	for _, node := range module.Body {
		if _, ok := node.(ast.FunctionDef); ok {
			continue
		}
		bytes, err := c.parseNode(node)
		if err != nil {
			return nil, err
		}
		program = append(program, bytes...)
	}

	sizeOfProg := make([]byte, 2)
	binary.BigEndian.PutUint16(sizeOfProg, uint16(int16(len(program))))
	buff := append(header, sizeOfProg...)
	buff = append(buff, program...)

	sizeOfConsts := make([]byte, 2)
	binary.BigEndian.PutUint16(sizeOfConsts, uint16(int16(len(c.constants))))
	buff = append(buff, sizeOfConsts...)

	for _, constant := range c.constants {
		buff = append(buff, makeConstant(constant)...)
	}

	return buff, nil
}

// Constants exposes the interned pool, in index order. The disassembler and
// the tests use it to resolve LOAD_CONST and CALL operands.
func (c *Compiler) Constants() []ast.Primitive {
	return c.constants
}
