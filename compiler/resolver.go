package compiler

import (
	"github.com/chazu/pix/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Resolver: declares types, intrinsics, functions and variables
// ---------------------------------------------------------------------------

// IntrinsicDecl describes a native operation callable by name.
type IntrinsicDecl struct {
	Name   string
	Params []Type
	Result Type
	ID     bytecode.Intrinsic
}

// DefaultIntrinsics returns the standard intrinsic set: print for int and
// bool, and exit.
func DefaultIntrinsics() []IntrinsicDecl {
	return []IntrinsicDecl{
		{Name: "print", Params: []Type{IntType}, Result: VoidType, ID: bytecode.IntrinsicPrintInt},
		{Name: "print", Params: []Type{BoolType}, Result: VoidType, ID: bytecode.IntrinsicPrintBool},
		{Name: "exit", Params: []Type{IntType}, Result: VoidType, ID: bytecode.IntrinsicExit},
	}
}

// Resolver is the first pass over a program. It creates the program's arena
// and root table, declares builtins into it, and declares every function,
// parameter and variable into the table of the scope that contains it.
type Resolver struct {
	arena      *Arena
	scope      *SymbolScope
	intrinsics []IntrinsicDecl

	prog *Program
	fn   *FunctionDefinition // function being resolved, nil at top level
}

// NewResolver creates a resolver declaring the given intrinsics.
func NewResolver(intrinsics []IntrinsicDecl) *Resolver {
	return &Resolver{intrinsics: intrinsics}
}

// Resolve runs the resolver over prog with the given intrinsics.
func Resolve(prog *Program, intrinsics []IntrinsicDecl) error {
	return NewResolver(intrinsics).Resolve(prog)
}

// Resolve declares everything in prog. It returns the first error.
func (r *Resolver) Resolve(prog *Program) error {
	r.prog = prog
	r.arena = NewArena()
	r.scope = NewSymbolScope(r.arena)
	prog.Arena = r.arena
	prog.Table = NewSymbolTable()
	prog.Globals = nil

	r.scope.Enter(prog.Table)
	defer r.scope.Leave(prog.Table)

	for _, t := range BuiltinTypes {
		id := r.arena.NewSymbol(&TypeSymbol{Name: t.Name, Type: t})
		if err := prog.Table.Declare(t.Name, id); err != nil {
			panic(internalf("declaring builtin type: %v", err))
		}
	}

	for _, in := range r.intrinsics {
		if !in.ID.Valid() || in.ID == bytecode.IntrinsicNone {
			panic(internalf("intrinsic %s bound to unmapped id %d", in.Name, uint32(in.ID)))
		}
		def := &FunctionDefinition{
			Name:      in.Name,
			Type:      &FunctionType{Params: in.Params, Result: in.Result},
			Intrinsic: in.ID,
		}
		if err := r.declareFunction(prog.Pos, def); err != nil {
			return err
		}
	}

	for _, stmt := range prog.Stmts {
		if err := r.resolveStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolveStmt(stmt Stmt) error {
	switch s := stmt.(type) {
	case *FunctionDecl:
		return r.resolveFunction(s)

	case *VarDecl:
		return r.resolveVarDecl(s)

	case *Block:
		s.Table = NewSymbolTable()
		r.scope.Enter(s.Table)
		defer r.scope.Leave(s.Table)
		return r.resolveStmts(s.Stmts)

	case *If:
		if err := r.resolveStmt(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			return r.resolveStmt(s.Else)
		}
		return nil

	case *While:
		return r.resolveStmt(s.Body)

	case *ExprStmt, *Assign, *Break, *Continue, *Return:
		return nil
	}
	panic(internalf("resolver: unhandled statement %T", stmt))
}

func (r *Resolver) resolveStmts(stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := r.resolveStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolveFunction(decl *FunctionDecl) error {
	if r.fn != nil || r.scope.Depth() != 1 {
		return errorAt(decl.Pos, "functions may only be declared at top level")
	}

	ft := &FunctionType{Params: make([]Type, len(decl.Params)), Result: VoidType}
	for i, p := range decl.Params {
		t, err := r.resolveType(p.Type)
		if err != nil {
			return err
		}
		ft.Params[i] = t
	}
	if decl.Result != nil {
		t, err := r.resolveType(decl.Result)
		if err != nil {
			return err
		}
		ft.Result = t
	}

	def := &FunctionDefinition{Name: decl.Name, Type: ft, Decl: decl}
	if err := r.declareFunction(decl.Pos, def); err != nil {
		return err
	}

	decl.Table = NewSymbolTable()
	r.scope.Enter(decl.Table)
	defer r.scope.Leave(decl.Table)

	for i, p := range decl.Params {
		if ft.Params[i] == Type(VoidType) {
			return errorAt(p.Pos, "parameter %q cannot have type void", p.Name)
		}
		id, err := r.declareVariable(p.Pos, p.Name, ft.Params[i])
		if err != nil {
			return err
		}
		p.Symbol = id
		def.Params = append(def.Params, id)
	}

	r.fn = def
	defer func() { r.fn = nil }()
	return r.resolveStmts(decl.Body)
}

func (r *Resolver) resolveVarDecl(decl *VarDecl) error {
	t, err := r.resolveType(decl.Type)
	if err != nil {
		return err
	}
	if t == Type(VoidType) {
		return errorAt(decl.Type.Pos, "variable %q cannot have type void", decl.Name)
	}

	id, err := r.declareVariable(decl.Pos, decl.Name, t)
	if err != nil {
		return err
	}
	decl.Symbol = id

	if r.fn != nil {
		r.fn.Locals = append(r.fn.Locals, id)
	} else {
		r.arena.Variable(id).Global = true
		r.prog.Globals = append(r.prog.Globals, id)
	}
	return nil
}

// resolveType looks a type annotation up as a TypeSymbol.
func (r *Resolver) resolveType(te *TypeExpr) (Type, error) {
	id, err := r.scope.Resolve(te.Pos, te.Name)
	if err != nil {
		return nil, err
	}
	ts, ok := r.arena.Symbol(id).(*TypeSymbol)
	if !ok {
		return nil, errorAt(te.Pos, "%q is not a type", te.Name)
	}
	return ts.Type, nil
}

// checkShadowsType rejects value names that would hide a global type name.
func (r *Resolver) checkShadowsType(pos Position, name string) error {
	if id, ok := r.scope.Global().Lookup(name); ok {
		if _, isType := r.arena.Symbol(id).(*TypeSymbol); isType {
			return errorAt(pos, "%q shadows a type name", name)
		}
	}
	return nil
}

func (r *Resolver) declareVariable(pos Position, name string, t Type) (SymbolID, error) {
	if err := r.checkShadowsType(pos, name); err != nil {
		return NoSymbol, err
	}
	id := r.arena.NewSymbol(&VariableSymbol{Name: name, Pos: pos, Type: t})
	if err := r.scope.Current().Declare(name, id); err != nil {
		return NoSymbol, errorAt(pos, "%v", err)
	}
	return id, nil
}

// declareFunction adds def to the overload set of its name in the current
// table, creating the set on first declaration.
func (r *Resolver) declareFunction(pos Position, def *FunctionDefinition) error {
	if err := r.checkShadowsType(pos, def.Name); err != nil {
		return err
	}

	table := r.scope.Current()
	if id, ok := table.Lookup(def.Name); ok {
		fs, isFn := r.arena.Symbol(id).(*FunctionSymbol)
		if !isFn {
			return errorAt(pos, "duplicate declaration of %q", def.Name)
		}
		for _, other := range fs.Defs {
			if sameTypes(r.arena.Def(other).Type.Params, def.Type.Params) {
				return errorAt(pos, "duplicate declaration of %s(%s)", def.Name, typeList(def.Type.Params))
			}
		}
		defID := r.arena.NewDef(def)
		fs.Defs = append(fs.Defs, defID)
		r.bind(def, defID)
		return nil
	}

	defID := r.arena.NewDef(def)
	id := r.arena.NewSymbol(&FunctionSymbol{Name: def.Name, Defs: []DefID{defID}})
	if err := table.Declare(def.Name, id); err != nil {
		return errorAt(pos, "%v", err)
	}
	r.bind(def, defID)
	return nil
}

func (r *Resolver) bind(def *FunctionDefinition, id DefID) {
	if def.Decl != nil {
		def.Decl.Def = id
	}
}
