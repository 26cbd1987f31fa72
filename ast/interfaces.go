// interfaces.go contains the Node interface implemented by every AST node
// and the Module root that holds a parsed compilation unit.

package ast

// Node is the base interface for all AST nodes. Both code generators walk
// the tree with type switches over the concrete node structs, so Node is a
// pure marker: it exists so that node fields and slices can hold any
// variant.
type Node interface {
	node()
}

// Module is the root of the AST: an ordered list of top-level nodes. The
// parser accepts any statement at the top level, but both emitters only
// give meaning to FunctionDef entries (free-standing statements are either
// appended after the function section, for bytecode, or rejected).
type Module struct {
	Body []Node
}
