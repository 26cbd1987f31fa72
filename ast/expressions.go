// expressions.go contains all the expression AST nodes. An expression node
// always evaluates to a value.

package ast

import (
	"strconv"

	"zlang/token"
)

// PrimitiveKind discriminates the value held by a Primitive.
type PrimitiveKind int

const (
	KindNone PrimitiveKind = iota
	KindInt
	KindFloat
	KindStr
	KindBool
)

// Primitive is a literal value scanned from the source: a 32-bit signed
// integer, a 32-bit float, a string, or a boolean. The zero value is the
// none primitive. Primitive is comparable, which is what lets the bytecode
// emitter deduplicate its constant pool by value.
type Primitive struct {
	Kind  PrimitiveKind
	Int   int32
	Float float32
	Str   string
	Bool  bool
}

func IntValue(i int32) Primitive     { return Primitive{Kind: KindInt, Int: i} }
func FloatValue(f float32) Primitive { return Primitive{Kind: KindFloat, Float: f} }
func StrValue(s string) Primitive    { return Primitive{Kind: KindStr, Str: s} }
func BoolValue(b bool) Primitive     { return Primitive{Kind: KindBool, Bool: b} }

func (p Primitive) String() string {
	switch p.Kind {
	case KindInt:
		return strconv.FormatInt(int64(p.Int), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(p.Float), 'g', -1, 32)
	case KindStr:
		return p.Str
	case KindBool:
		return strconv.FormatBool(p.Bool)
	default:
		return ""
	}
}

// Constant represents a literal value in the source code.
type Constant struct {
	Value Primitive
}

// BinOp represents a binary operation expression (e.g., "a + b").
// The shunting-yard pass builds left-leaning trees, so "a + b + c" arrives
// as BinOp(BinOp(a, +, b), +, c).
type BinOp struct {
	Left  Node
	Op    token.Operator
	Right Node
}

// Name represents a reference to a previously bound identifier: an argument,
// a variable, or (inside a Call) a function. The position is retained for
// unknown-name diagnostics.
type Name struct {
	ID  string
	Pos token.SourcePos
}

// Call represents a function call expression. Func names the callee and
// Args holds one expression node per argument.
type Call struct {
	Func Name
	Args []Node
}

// List represents a bracketed list literal. The grammar reserves it; both
// emitters reject it.
type List struct {
	Elements []Node
}

// None is the absent node: a missing else branch, a missing return value,
// or the value of a mutable declaration without an initializer.
type None struct{}

func (Constant) node() {}
func (BinOp) node()    {}
func (Name) node()     {}
func (Call) node()     {}
func (List) node()     {}
func (None) node()     {}
