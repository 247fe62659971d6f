package compiler

import "fmt"

// ---------------------------------------------------------------------------
// AST: abstract syntax tree for pix programs
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is the interface implemented by all AST nodes. The node set is
// closed: every pass handles it with one type switch per category.
type Node interface {
	Position() Position
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. Every expression carries a
// type slot that the checker fills exactly once.
type Expr interface {
	Node
	Type() Type
	setType(Type)
	expr() // marker method
}

// typed implements the type slot shared by all expressions.
type typed struct {
	typ Type
}

// Type returns the checked type, or nil before checking.
func (t *typed) Type() Type { return t.typ }

func (t *typed) setType(typ Type) {
	if t.typ != nil {
		panic(internalf("expression type assigned twice (%s, then %s)", t.typ, typ))
	}
	t.typ = typ
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	typed
	Pos   Position
	Value int64
}

func (n *IntLiteral) Position() Position { return n.Pos }
func (n *IntLiteral) node()              {}
func (n *IntLiteral) expr()              {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	typed
	Pos   Position
	Value bool
}

func (n *BoolLiteral) Position() Position { return n.Pos }
func (n *BoolLiteral) node()              {}
func (n *BoolLiteral) expr()              {}

// Variable represents a variable reference.
type Variable struct {
	typed
	Pos    Position
	Name   string
	Symbol SymbolID // resolved by the checker
}

func (n *Variable) Position() Position { return n.Pos }
func (n *Variable) node()              {}
func (n *Variable) expr()              {}

// UnaryExpr represents -x or !x.
type UnaryExpr struct {
	typed
	Pos     Position
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Position() Position { return n.Pos }
func (n *UnaryExpr) node()              {}
func (n *UnaryExpr) expr()              {}

// BinaryExpr represents an arithmetic, relational or equality operation.
type BinaryExpr struct {
	typed
	Pos   Position
	Op    TokenType
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) Position() Position { return n.Pos }
func (n *BinaryExpr) node()              {}
func (n *BinaryExpr) expr()              {}

// Call represents a call of a function or intrinsic by name.
type Call struct {
	typed
	Pos  Position
	Name string
	Args []Expr
	Def  DefID // overload picked by the checker
}

func (n *Call) Position() Position { return n.Pos }
func (n *Call) node()              {}
func (n *Call) expr()              {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// TypeExpr is a type annotation: a name that must resolve to a type.
type TypeExpr struct {
	Pos  Position
	Name string
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	Pos  Position
	Expr Expr
}

func (n *ExprStmt) Position() Position { return n.Pos }
func (n *ExprStmt) node()              {}
func (n *ExprStmt) stmt()              {}

// VarDecl declares a variable with an optional initializer.
type VarDecl struct {
	Pos    Position
	Name   string
	Type   *TypeExpr
	Init   Expr     // nil means zero
	Symbol SymbolID // declared by the resolver
}

func (n *VarDecl) Position() Position { return n.Pos }
func (n *VarDecl) node()              {}
func (n *VarDecl) stmt()              {}

// Assign stores a value into an existing variable.
type Assign struct {
	Pos    Position
	Name   string
	Value  Expr
	Symbol SymbolID // resolved by the checker
}

func (n *Assign) Position() Position { return n.Pos }
func (n *Assign) node()              {}
func (n *Assign) stmt()              {}

// Block is a braced statement list with its own scope.
type Block struct {
	Pos   Position
	Stmts []Stmt
	Table *SymbolTable
}

func (n *Block) Position() Position { return n.Pos }
func (n *Block) node()              {}
func (n *Block) stmt()              {}

// If is a conditional with an optional else branch.
type If struct {
	Pos  Position
	Cond Expr
	Then Stmt
	Else Stmt // may be nil
}

func (n *If) Position() Position { return n.Pos }
func (n *If) node()              {}
func (n *If) stmt()              {}

// While is a pre-tested loop.
type While struct {
	Pos  Position
	Cond Expr
	Body Stmt
}

func (n *While) Position() Position { return n.Pos }
func (n *While) node()              {}
func (n *While) stmt()              {}

// Break leaves the innermost loop.
type Break struct {
	Pos Position
}

func (n *Break) Position() Position { return n.Pos }
func (n *Break) node()              {}
func (n *Break) stmt()              {}

// Continue jumps back to the innermost loop's condition.
type Continue struct {
	Pos Position
}

func (n *Continue) Position() Position { return n.Pos }
func (n *Continue) node()              {}
func (n *Continue) stmt()              {}

// Return leaves the enclosing function.
type Return struct {
	Pos   Position
	Value Expr // nil for a bare return
}

func (n *Return) Position() Position { return n.Pos }
func (n *Return) node()              {}
func (n *Return) stmt()              {}

// Param is a function parameter.
type Param struct {
	Pos    Position
	Name   string
	Type   *TypeExpr
	Symbol SymbolID // declared by the resolver
}

// FunctionDecl declares a function. Parameters and the outermost body
// statements share Table.
type FunctionDecl struct {
	Pos    Position
	Name   string
	Params []*Param
	Result *TypeExpr // nil means void
	Body   []Stmt
	Table  *SymbolTable
	Def    DefID // created by the resolver
}

func (n *FunctionDecl) Position() Position { return n.Pos }
func (n *FunctionDecl) node()              {}
func (n *FunctionDecl) stmt()              {}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is the root of a compilation unit. After resolution it owns the
// arena that every symbol and definition handle in the tree points into.
type Program struct {
	Pos     Position
	Stmts   []Stmt // function declarations and top-level statements in order
	Table   *SymbolTable
	Arena   *Arena
	Globals []SymbolID // top-level variables in declaration order
}

func (n *Program) Position() Position { return n.Pos }
func (n *Program) node()              {}

// Functions returns the program's function declarations.
func (n *Program) Functions() []*FunctionDecl {
	var out []*FunctionDecl
	for _, s := range n.Stmts {
		if fn, ok := s.(*FunctionDecl); ok {
			out = append(out, fn)
		}
	}
	return out
}
