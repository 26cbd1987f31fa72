// Package asm lowers a parsed module to NASM-syntax x86-64 assembly for
// Linux. The Compiler walks the AST once, tracking variable bindings with
// their scope depth, a shadowed-binding stack, and label stacks for the
// innermost loop exit and the current function's return.
package asm

import (
	"fmt"
	"regexp"
	"strings"

	"zlang/ast"
	"zlang/token"
	"zlang/zerror"
)

// The magic identifier whose calls inject their string arguments verbatim.
const inlineAsmFunc = "__asm__"

// asmVarPattern matches a $identifier substitution inside an inline
// assembly string. A `$` cannot be escaped.
var asmVarPattern = regexp.MustCompile(`\$[A-Za-z][A-Za-z0-9]*`)

// shadowEntry saves a displaced binding until the scope that displaced it
// exits.
type shadowEntry struct {
	name    string
	binding Variable
	depth   int
}

// Compiler owns all assembly emitter state for one compilation.
type Compiler struct {
	module  *Module
	builder *Builder

	vars     map[string]Variable
	shadowed []shadowEntry
	depth    int

	loopEnd []string
	funcRet []string

	hasMain bool
}

func New() *Compiler {
	return &Compiler{
		module:  NewModule(),
		builder: NewBuilder(),
		vars:    make(map[string]Variable),
	}
}

func errUnsupported(node ast.Node) error {
	variant := strings.TrimPrefix(fmt.Sprintf("%T", node), "ast.")
	return zerror.New(0, 0, 1, fmt.Sprintf("Node %s can't be compiled yet.", variant))
}

func errUnknownName(name string, pos token.SourcePos) error {
	return zerror.New(pos.Line, pos.Column, 1, fmt.Sprintf("Variable '%s' not found in scope.", name))
}

// Compile lowers a module. The returned *Module renders the final NASM
// text; an error aborts the walk with no partial module handed out.
func (c *Compiler) Compile(source ast.Module) (*Module, error) {
	c.module = NewModule()
	c.builder = NewBuilder()
	c.vars = make(map[string]Variable)
	c.shadowed = nil
	c.depth = 0
	c.hasMain = false

	for _, node := range source.Body {
		// only function definitions are compiled at the top level
		if _, ok := node.(ast.FunctionDef); !ok {
			return nil, errUnsupported(node)
		}
		if err := c.handleNode(node); err != nil {
			return nil, err
		}
	}

	if !c.hasMain {
		return nil, zerror.New(0, 0, 1, "Missing a main function.")
	}

	return c.module, nil
}

func (c *Compiler) handleNode(node ast.Node) error {
	switch n := node.(type) {
	case ast.FunctionDef:
		return c.buildFun(n)

	case ast.BinOp:
		// an expression statement's result is discarded; its register is
		// not
		reg, err := c.buildBinOp(n)
		if err != nil {
			return err
		}
		c.builder.freeReg(reg)
		return nil

	case ast.VariableDef:
		return c.buildVar(n)

	case ast.Assign:
		return c.buildAssign(n)

	case ast.If:
		return c.buildIf(n)

	case ast.Loop:
		return c.buildLoop(n)

	case ast.Break:
		return c.buildBreak(n)

	case ast.Return:
		return c.buildReturn(n)

	case ast.Call:
		return c.buildCall(n)

	case ast.Scope:
		c.enterScope()
		for _, inner := range n.Body {
			if err := c.handleNode(inner); err != nil {
				return err
			}
		}
		c.exitScope()
		return nil

	case ast.Name, ast.Constant:
		operand, err := c.getOperand(node)
		if err != nil {
			return err
		}
		c.builder.release(operand)
		return nil

	case ast.None:
		return nil

	default:
		return errUnsupported(node)
	}
}

// getOperand materializes an expression node as an instruction operand.
// BinOp and Call results occupy a pool register the consumer must release.
func (c *Compiler) getOperand(node ast.Node) (Operand, error) {
	switch n := node.(type) {
	case ast.Constant:
		switch n.Value.Kind {
		case ast.KindInt:
			if n.Value.Int < 0 {
				return Operand{}, zerror.New(0, 0, 1, "Negative numbers are not implemented yet.")
			}
			return IntOperand(n.Value.Int), nil
		case ast.KindStr:
			return StrOperand(c.module.AddString(n.Value.Str)), nil
		default:
			return Operand{}, errUnsupported(n)
		}

	case ast.BinOp:
		reg, err := c.buildBinOp(n)
		if err != nil {
			return Operand{}, err
		}
		return RegOperand(reg), nil

	case ast.Name:
		variable, ok := c.vars[n.ID]
		if !ok {
			return Operand{}, errUnknownName(n.ID, n.Pos)
		}
		return VarOperand(variable), nil

	case ast.Call:
		if err := c.buildCall(n); err != nil {
			return Operand{}, err
		}
		// the result lives in eax; copy it into an allocated register so
		// it survives as a first-class operand
		reg := c.builder.allocReg()
		c.builder.inst(fmt.Sprintf("mov %s, eax", reg))
		return RegOperand(reg), nil

	default:
		return Operand{}, errUnsupported(node)
	}
}

func (c *Compiler) buildBinOp(binop ast.BinOp) (Reg, error) {
	left, err := c.getOperand(binop.Left)
	if err != nil {
		return "", err
	}
	right, err := c.getOperand(binop.Right)
	if err != nil {
		c.builder.release(left)
		return "", err
	}
	return c.builder.buildOp(left, right, binop.Op)
}

func (c *Compiler) buildFun(fun ast.FunctionDef) error {
	if fun.Name == "main" {
		c.hasMain = true
	}

	returnLabel := c.builder.Label()
	f := NewFunction(fun.Name, returnLabel)

	c.funcRet = append(c.funcRet, returnLabel)
	c.vars = make(map[string]Variable)
	c.shadowed = nil
	c.depth = 0

	// Arguments sit above the saved rbp and return address: the first at
	// +16, each following one 8 bytes higher.
	for i, arg := range fun.Args {
		c.vars[arg.Name] = Variable{Offset: 16 + 8*i, Mutable: false, Depth: 0}
	}

	for _, node := range fun.Body {
		if err := c.handleNode(node); err != nil {
			return err
		}
	}

	c.builder.writeToFn(f)
	c.module.AddFunc(f)

	c.funcRet = c.funcRet[:len(c.funcRet)-1]
	c.vars = make(map[string]Variable)
	return nil
}

func (c *Compiler) buildVar(variable ast.VariableDef) error {
	var value Operand
	if _, none := variable.Value.(ast.None); none {
		// a mutable declaration without an initializer still gets a
		// zeroed slot
		value = IntOperand(0)
	} else {
		operand, err := c.getOperand(variable.Value)
		if err != nil {
			return err
		}
		value = operand
	}

	if prior, exists := c.vars[variable.Name]; exists {
		c.shadowed = append(c.shadowed, shadowEntry{
			name:    variable.Name,
			binding: prior,
			depth:   c.depth,
		})
	}

	c.vars[variable.Name] = c.builder.makeVar(value, variable.Mutable, c.depth)
	return nil
}

func (c *Compiler) buildAssign(assign ast.Assign) error {
	variable, ok := c.vars[assign.Target]
	if !ok {
		return errUnknownName(assign.Target, assign.Pos)
	}
	if !variable.Mutable {
		return zerror.New(assign.Pos.Line, assign.Pos.Column, 1, "Variable is imutable.")
	}

	value, err := c.getOperand(assign.Value)
	if err != nil {
		return err
	}
	c.builder.assignVar(value, variable)
	return nil
}

// buildIf lowers a conditional to a compare against 1 with a jump over the
// body, and, when an else branch exists, a jump from the body's end past
// it.
func (c *Compiler) buildIf(ifStatement ast.If) error {
	test, err := c.getOperand(ifStatement.Test)
	if err != nil {
		return err
	}
	reg := c.builder.storeToReg(test)
	c.builder.inst(fmt.Sprintf("cmp %s, 1", reg))
	c.builder.freeReg(reg)

	elseLabel := c.builder.Label()
	c.builder.inst(fmt.Sprintf("jne %s", elseLabel))

	c.enterScope()
	for _, node := range ifStatement.Run.Body {
		if err := c.handleNode(node); err != nil {
			return err
		}
	}
	c.exitScope()

	_, noElse := ifStatement.Orelse.(ast.None)
	if noElse {
		c.builder.placeLabel(elseLabel)
		return nil
	}

	endLabel := c.builder.Label()
	c.builder.inst(fmt.Sprintf("jmp %s", endLabel))
	c.builder.placeLabel(elseLabel)

	switch orelse := ifStatement.Orelse.(type) {
	case ast.If:
		if err := c.buildIf(orelse); err != nil {
			return err
		}
	case ast.Scope:
		c.enterScope()
		for _, node := range orelse.Body {
			if err := c.handleNode(node); err != nil {
				return err
			}
		}
		c.exitScope()
	default:
		if err := c.handleNode(ifStatement.Orelse); err != nil {
			return err
		}
	}

	c.builder.placeLabel(endLabel)
	return nil
}

func (c *Compiler) buildLoop(loopDef ast.Loop) error {
	startLabel := c.builder.Label()
	endLabel := c.builder.Label()

	c.loopEnd = append(c.loopEnd, endLabel)
	c.builder.placeLabel(startLabel)

	c.enterScope()
	for _, node := range loopDef.Body.Body {
		if err := c.handleNode(node); err != nil {
			return err
		}
	}
	c.exitScope()

	c.builder.inst(fmt.Sprintf("jmp %s", startLabel))
	c.builder.placeLabel(endLabel)

	c.loopEnd = c.loopEnd[:len(c.loopEnd)-1]
	return nil
}

func (c *Compiler) buildBreak(breakNode ast.Break) error {
	if len(c.loopEnd) == 0 {
		return zerror.New(breakNode.Pos.Line, breakNode.Pos.Column, 1, "Break used outside of loop.")
	}
	c.builder.inst(fmt.Sprintf("jmp %s", c.loopEnd[len(c.loopEnd)-1]))
	return nil
}

func (c *Compiler) buildReturn(ret ast.Return) error {
	if _, none := ret.Value.(ast.None); !none {
		value, err := c.getOperand(ret.Value)
		if err != nil {
			return err
		}
		if !value.IsReg() || value.reg != "eax" {
			c.builder.inst(fmt.Sprintf("mov eax, %s", value))
		}
		c.builder.release(value)
	}

	c.builder.inst(fmt.Sprintf("jmp %s", c.funcRet[len(c.funcRet)-1]))
	return nil
}

// buildCall lowers a call: arguments are pushed right-to-left (string
// constants push their length first, then their address, so callees see
// pointer before length), and the stack is restored after the call. The
// magic __asm__ callee instead injects its string arguments into the
// instruction stream.
func (c *Compiler) buildCall(call ast.Call) error {
	if call.Func.ID == inlineAsmFunc {
		return c.buildInlineAsm(call)
	}

	pushed := 0
	for i := len(call.Args) - 1; i >= 0; i-- {
		arg, err := c.getOperand(call.Args[i])
		if err != nil {
			return err
		}

		switch arg.kind {
		case operandStr:
			value := c.module.strings[arg.str]
			c.builder.inst(fmt.Sprintf("push %d", len(value)))
			c.builder.inst(fmt.Sprintf("push %s", arg.str))
			pushed += 2
		case operandInt:
			c.builder.inst(fmt.Sprintf("push %d", arg.imm))
			pushed++
		default:
			reg := c.builder.storeToReg(arg)
			c.builder.inst(fmt.Sprintf("push %s", reg.Quad()))
			c.builder.freeReg(reg)
			pushed++
		}
	}

	c.builder.inst(fmt.Sprintf("call %s", call.Func.ID))
	if pushed > 0 {
		c.builder.inst(fmt.Sprintf("add rsp, %d", 8*pushed))
	}

	return nil
}

// buildInlineAsm injects each string argument verbatim, substituting
// $identifier with the named variable's memory reference.
func (c *Compiler) buildInlineAsm(call ast.Call) error {
	for _, arg := range call.Args {
		constant, ok := arg.(ast.Constant)
		if !ok || constant.Value.Kind != ast.KindStr {
			return zerror.New(call.Func.Pos.Line, call.Func.Pos.Column, 1,
				"__asm__ only accepts string constants.")
		}

		var substErr error
		line := asmVarPattern.ReplaceAllStringFunc(constant.Value.Str, func(match string) string {
			name := match[1:]
			variable, exists := c.vars[name]
			if !exists {
				substErr = errUnknownName(name, call.Func.Pos)
				return match
			}
			return variable.Ref()
		})
		if substErr != nil {
			return substErr
		}

		c.builder.inst(line)
	}
	return nil
}

func (c *Compiler) enterScope() {
	c.depth++
}

// exitScope drops every binding owned by the exiting depth and restores, in
// LIFO order, the bindings it had shadowed.
func (c *Compiler) exitScope() {
	for name, variable := range c.vars {
		if variable.Depth == c.depth {
			delete(c.vars, name)
		}
	}

	for len(c.shadowed) > 0 {
		top := c.shadowed[len(c.shadowed)-1]
		if top.depth != c.depth {
			break
		}
		c.vars[top.name] = top.binding
		c.shadowed = c.shadowed[:len(c.shadowed)-1]
	}

	c.depth--
}
