package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zlang/ast"
	"zlang/lexer"
	"zlang/token"
	"zlang/zerror"
)

// parseSource runs the full front end on a source string.
func parseSource(t *testing.T, source string) ast.Module {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	require.NoError(t, err)
	module, err := Make(tokens).Parse()
	require.NoError(t, err)
	return module
}

// parseError runs the front end expecting a parse failure.
func parseError(t *testing.T, source string) error {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	require.NoError(t, err)
	_, err = Make(tokens).Parse()
	require.Error(t, err)
	return err
}

// mainBody extracts the body of the module's single function.
func mainBody(t *testing.T, module ast.Module) []ast.Node {
	t.Helper()
	require.Len(t, module.Body, 1)
	fun, ok := module.Body[0].(ast.FunctionDef)
	require.True(t, ok, "expected a FunctionDef at the top level")
	return fun.Body
}

func intConstant(i int32) ast.Node {
	return ast.Constant{Value: ast.IntValue(i)}
}

func TestBinOpPrecedence(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() { 3 + 2 * 4 }"))
	require.Len(t, body, 1)

	expected := ast.BinOp{
		Left: intConstant(3),
		Op:   token.OpAdd,
		Right: ast.BinOp{
			Left:  intConstant(2),
			Op:    token.OpMult,
			Right: intConstant(4),
		},
	}
	assert.Equal(t, expected, body[0])
}

func TestBinOpGrouping(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() { (3 + 2) * 4 }"))
	require.Len(t, body, 1)

	expected := ast.BinOp{
		Left: ast.BinOp{
			Left:  intConstant(3),
			Op:    token.OpAdd,
			Right: intConstant(2),
		},
		Op:    token.OpMult,
		Right: intConstant(4),
	}
	assert.Equal(t, expected, body[0])
}

func TestComparisonBindsLooserThanArithmetic(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() { var r = a + b == c\n }"))
	require.Len(t, body, 1)

	def, ok := body[0].(ast.VariableDef)
	require.True(t, ok)

	binop, ok := def.Value.(ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, token.OpDoubleEquals, binop.Op)

	left, ok := binop.Left.(ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, token.OpAdd, left.Op)
}

func TestLeftAssociativeChain(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() { a + b + c\n }"))
	require.Len(t, body, 1)

	// ((a + b) + c), never (a + (b + c))
	outer, ok := body[0].(ast.BinOp)
	require.True(t, ok)
	assert.Equal(t, token.OpAdd, outer.Op)

	inner, ok := outer.Left.(ast.BinOp)
	require.True(t, ok, "left operand should hold the earlier addition, got %T", outer.Left)
	assert.Equal(t, token.OpAdd, inner.Op)

	right, ok := outer.Right.(ast.Name)
	require.True(t, ok)
	assert.Equal(t, "c", right.ID)
}

func TestFunctionDefWithArgsAndReturnType(t *testing.T) {
	module := parseSource(t, "fun add(a: int, b: int) -> int {\n return a + b\n }")
	require.Len(t, module.Body, 1)

	fun, ok := module.Body[0].(ast.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "add", fun.Name)
	require.Len(t, fun.Args, 2)
	assert.Equal(t, "a", fun.Args[0].Name)
	assert.Equal(t, "b", fun.Args[1].Name)

	annotation, ok := fun.Args[0].Annotation.(ast.Name)
	require.True(t, ok)
	assert.Equal(t, "int", annotation.ID)

	returns, ok := fun.Returns.(ast.Name)
	require.True(t, ok)
	assert.Equal(t, "int", returns.ID)

	require.Len(t, fun.Body, 1)
	ret, ok := fun.Body[0].(ast.Return)
	require.True(t, ok)
	_, ok = ret.Value.(ast.BinOp)
	assert.True(t, ok)
}

func TestVariableDeclarations(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() {\n var x = 1\n var mut y\n var mut z = 2\n }"))
	require.Len(t, body, 3)

	x := body[0].(ast.VariableDef)
	assert.Equal(t, "x", x.Name)
	assert.False(t, x.Mutable)
	assert.Equal(t, intConstant(1), x.Value)

	y := body[1].(ast.VariableDef)
	assert.Equal(t, "y", y.Name)
	assert.True(t, y.Mutable)
	assert.Equal(t, ast.None{}, y.Value)

	z := body[2].(ast.VariableDef)
	assert.True(t, z.Mutable)
	assert.Equal(t, intConstant(2), z.Value)
}

func TestImmutableWithoutInitializerFails(t *testing.T) {
	err := parseError(t, "fun main() {\n var x\n }")
	assert.Equal(t, "Immutable variables have to be assigned at declaration.", err.Error())
}

func TestIfElseChain(t *testing.T) {
	source := "fun main() {\n if x == 1 {\n a = 1\n } else if x == 2 {\n a = 2\n } else {\n a = 3\n }\n }"
	body := mainBody(t, parseSource(t, source))
	require.Len(t, body, 1)

	first, ok := body[0].(ast.If)
	require.True(t, ok)
	require.Len(t, first.Run.Body, 1)

	second, ok := first.Orelse.(ast.If)
	require.True(t, ok, "else if should chain as a nested If, got %T", first.Orelse)

	final, ok := second.Orelse.(ast.Scope)
	require.True(t, ok, "trailing else should be a Scope, got %T", second.Orelse)
	require.Len(t, final.Body, 1)
}

func TestIfWithoutElse(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() {\n if x == 1 {\n break\n }\n }"))
	first := body[0].(ast.If)
	assert.Equal(t, ast.None{}, first.Orelse)
}

func TestLoopAndBreak(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() {\n loop {\n break\n }\n }"))
	require.Len(t, body, 1)

	loop, ok := body[0].(ast.Loop)
	require.True(t, ok)
	require.Len(t, loop.Body.Body, 1)

	breakNode, ok := loop.Body.Body[0].(ast.Break)
	require.True(t, ok)
	assert.Equal(t, int32(3), breakNode.Pos.Line)
}

func TestCallOnLeftOfOperator(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() { var x = f(1) + 2\n }"))
	def := body[0].(ast.VariableDef)

	binop, ok := def.Value.(ast.BinOp)
	require.True(t, ok)

	call, ok := binop.Left.(ast.Call)
	require.True(t, ok)
	assert.Equal(t, "f", call.Func.ID)
	require.Len(t, call.Args, 1)
	assert.Equal(t, intConstant(2), binop.Right)
}

func TestCallWithNestedCallArgument(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() { outer(inner(1), 2)\n }"))
	call, ok := body[0].(ast.Call)
	require.True(t, ok)
	require.Len(t, call.Args, 2)

	inner, ok := call.Args[0].(ast.Call)
	require.True(t, ok)
	assert.Equal(t, "inner", inner.Func.ID)
}

func TestAssignStatement(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() {\n x = x + 1\n }"))
	assign, ok := body[0].(ast.Assign)
	require.True(t, ok)
	assert.Equal(t, "x", assign.Target)
	assert.Equal(t, int32(2), assign.Pos.Line)

	_, ok = assign.Value.(ast.BinOp)
	assert.True(t, ok)
}

func TestReturnWithoutValue(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() {\n return\n }"))
	ret, ok := body[0].(ast.Return)
	require.True(t, ok)
	assert.Equal(t, ast.None{}, ret.Value)
}

func TestListLiteral(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() { var x = [1, 2, 3]\n }"))
	def := body[0].(ast.VariableDef)

	list, ok := def.Value.(ast.List)
	require.True(t, ok)
	assert.Len(t, list.Elements, 3)
}

func TestScopeStatement(t *testing.T) {
	body := mainBody(t, parseSource(t, "fun main() {\n {\n var x = 1\n }\n }"))
	scope, ok := body[0].(ast.Scope)
	require.True(t, ok)
	require.Len(t, scope.Body, 1)
}

func TestFunctionNameMustBeWord(t *testing.T) {
	err := parseError(t, "fun 3() { }")
	assert.Equal(t, "Function name should be a word.", err.Error())
}

func TestMissingCodeBlock(t *testing.T) {
	err := parseError(t, "fun main() return")
	assert.Equal(t, "Expected a code block.", err.Error())
}

func TestErrorCarriesPosition(t *testing.T) {
	err := parseError(t, "fun main() {\nvar x\n}")
	compileErr, ok := err.(zerror.CompilerError)
	require.True(t, ok, "parse errors should be CompilerErrors, got %T", err)
	assert.Equal(t, int32(2), compileErr.Line)
	assert.Equal(t, 1, compileErr.Arrows)
}

func TestTrailingNewlinesTolerated(t *testing.T) {
	module := parseSource(t, "fun main() { }\n\n\n")
	assert.Len(t, module.Body, 1)
}
