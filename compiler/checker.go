package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Checker: resolves references, picks overloads and types expressions
// ---------------------------------------------------------------------------

// Checker is the second pass. It runs after the resolver has populated every
// table and walks the tree in the same scope order.
type Checker struct {
	arena *Arena
	scope *SymbolScope

	fn *FunctionDecl // enclosing function, nil at top level
}

// Check type-checks a resolved program. It returns the first error.
func Check(prog *Program) error {
	if prog.Arena == nil || prog.Table == nil {
		panic(internalf("checking a program that has not been resolved"))
	}
	c := &Checker{arena: prog.Arena, scope: NewSymbolScope(prog.Arena)}

	c.scope.Enter(prog.Table)
	defer c.scope.Leave(prog.Table)
	return c.checkStmts(prog.Stmts)
}

func (c *Checker) checkStmts(stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := c.checkStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkStmt(stmt Stmt) error {
	switch s := stmt.(type) {
	case *FunctionDecl:
		saved := c.fn
		c.fn = s
		defer func() { c.fn = saved }()

		c.scope.Enter(s.Table)
		defer c.scope.Leave(s.Table)
		return c.checkStmts(s.Body)

	case *Block:
		c.scope.Enter(s.Table)
		defer c.scope.Leave(s.Table)
		return c.checkStmts(s.Stmts)

	case *ExprStmt:
		_, err := c.checkExpr(s.Expr)
		return err

	case *VarDecl:
		if s.Init == nil {
			return nil
		}
		t, err := c.checkExpr(s.Init)
		if err != nil {
			return err
		}
		v := c.arena.Variable(s.Symbol)
		return c.coerce(s.Init.Position(), t, v.Type, "In initialization of %q", s.Name)

	case *Assign:
		id, err := c.lookupVariable(s.Pos, s.Name)
		if err != nil {
			return err
		}
		s.Symbol = id
		t, err := c.checkExpr(s.Value)
		if err != nil {
			return err
		}
		return c.coerce(s.Value.Position(), t, c.arena.Variable(id).Type, "In assignment to %q", s.Name)

	case *If:
		if err := c.checkCondition(s.Cond, "In if condition"); err != nil {
			return err
		}
		if err := c.checkStmt(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			return c.checkStmt(s.Else)
		}
		return nil

	case *While:
		if err := c.checkCondition(s.Cond, "In while condition"); err != nil {
			return err
		}
		return c.checkStmt(s.Body)

	case *Break, *Continue:
		return nil

	case *Return:
		return c.checkReturn(s)
	}
	panic(internalf("checker: unhandled statement %T", stmt))
}

func (c *Checker) checkCondition(cond Expr, context string) error {
	t, err := c.checkExpr(cond)
	if err != nil {
		return err
	}
	return c.coerce(cond.Position(), t, BoolType, "%s", context)
}

func (c *Checker) checkReturn(s *Return) error {
	if c.fn == nil {
		return errorAt(s.Pos, "return outside of a function")
	}
	want := c.arena.Def(c.fn.Def).Type.Result
	if s.Value == nil {
		if want != Type(VoidType) {
			return errorAt(s.Pos, "In return from %q: missing return value of type %s", c.fn.Name, want)
		}
		return nil
	}
	t, err := c.checkExpr(s.Value)
	if err != nil {
		return err
	}
	return c.coerce(s.Value.Position(), t, want, "In return from %q", c.fn.Name)
}

// coerce reports a type mismatch between from and to, naming the context.
func (c *Checker) coerce(pos Position, from, to Type, format string, args ...any) error {
	if Coerces(from, to) {
		return nil
	}
	return errorAt(pos, "%s: type mismatch: expected %s, got %s", fmt.Sprintf(format, args...), to, from)
}

func (c *Checker) lookupVariable(pos Position, name string) (SymbolID, error) {
	id, err := c.scope.Resolve(pos, name)
	if err != nil {
		return NoSymbol, err
	}
	if _, ok := c.arena.Symbol(id).(*VariableSymbol); !ok {
		return NoSymbol, errorAt(pos, "%q is not a variable", name)
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// checkExpr types e and its children.
func (c *Checker) checkExpr(e Expr) (Type, error) {
	t, err := c.typeOf(e)
	if err != nil {
		return nil, err
	}
	e.setType(t)
	return t, nil
}

func (c *Checker) typeOf(e Expr) (Type, error) {
	switch e := e.(type) {
	case *IntLiteral:
		return IntType, nil

	case *BoolLiteral:
		return BoolType, nil

	case *Variable:
		id, err := c.lookupVariable(e.Pos, e.Name)
		if err != nil {
			return nil, err
		}
		e.Symbol = id
		return c.arena.Variable(id).Type, nil

	case *UnaryExpr:
		t, err := c.checkExpr(e.Operand)
		if err != nil {
			return nil, err
		}
		var want Type
		switch e.Op {
		case TokenMinus:
			want = IntType
		case TokenBang:
			want = BoolType
		default:
			panic(internalf("checker: unmapped unary operator %s", e.Op))
		}
		if err := c.coerce(e.Operand.Position(), t, want, "In operator %s", e.Op); err != nil {
			return nil, err
		}
		return want, nil

	case *BinaryExpr:
		return c.typeOfBinary(e)

	case *Call:
		return c.typeOfCall(e)
	}
	panic(internalf("checker: unhandled expression %T", e))
}

func (c *Checker) typeOfBinary(e *BinaryExpr) (Type, error) {
	var result Type
	switch e.Op {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent:
		result = IntType
	case TokenLt, TokenLe, TokenGt, TokenGe, TokenEq, TokenNe:
		result = BoolType
	default:
		panic(internalf("checker: unmapped binary operator %s", e.Op))
	}

	for _, operand := range []Expr{e.Left, e.Right} {
		t, err := c.checkExpr(operand)
		if err != nil {
			return nil, err
		}
		if err := c.coerce(operand.Position(), t, IntType, "In operator %s", e.Op); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// typeOfCall checks the arguments, then picks the single overload whose
// parameter types match the argument types exactly.
func (c *Checker) typeOfCall(e *Call) (Type, error) {
	args := make([]Type, len(e.Args))
	for i, arg := range e.Args {
		t, err := c.checkExpr(arg)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}

	overloads := c.scope.Overloads(e.Name)
	if len(overloads) == 0 {
		id, err := c.scope.Resolve(e.Pos, e.Name)
		if err != nil {
			return nil, err
		}
		return nil, errorAt(e.Pos, "%q is not a function (it is a %s)", e.Name, symbolKind(c.arena.Symbol(id)))
	}

	var matches []DefID
	for _, id := range overloads {
		if sameTypes(c.arena.Def(id).Type.Params, args) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return nil, errorAt(e.Pos, "In call to %q: no matching overload for %s(%s)", e.Name, e.Name, typeList(args))
	case 1:
		e.Def = matches[0]
		return c.arena.Def(e.Def).Type.Result, nil
	default:
		return nil, errorAt(e.Pos, "In call to %q: ambiguous call to %s(%s), %d overloads match", e.Name, e.Name, typeList(args), len(matches))
	}
}

func symbolKind(s Symbol) string {
	switch s.(type) {
	case *TypeSymbol:
		return "type"
	case *VariableSymbol:
		return "variable"
	case *FunctionSymbol:
		return "function"
	}
	panic(internalf("unmapped symbol kind %T", s))
}
