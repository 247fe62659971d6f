package compiler

import (
	"fortio.org/safecast"

	"github.com/chazu/pix/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: lower a checked program to bytecode entries
// ---------------------------------------------------------------------------

// Generator is the third pass. Functions are generated on demand: the first
// call of a definition allocates its label and queues it, later calls reuse
// the label. The queue is drained after the top level.
type Generator struct {
	arena      *Arena
	memorySize int

	entries   []bytecode.Entry
	nextLabel int

	labels map[DefID]bytecode.Label
	queue  []DefID

	breakLabels    []bytecode.Label
	continueLabels []bytecode.Label

	fn *FunctionDefinition // function being generated, nil at top level
}

// NewGenerator creates a generator for an image of memorySize bytes. The
// size fixes the absolute addresses of global variables.
func NewGenerator(arena *Arena, memorySize int) *Generator {
	return &Generator{
		arena:      arena,
		memorySize: memorySize,
		labels:     make(map[DefID]bytecode.Label),
	}
}

// Generate lowers a checked program.
func Generate(prog *Program, memorySize int) ([]bytecode.Entry, error) {
	return NewGenerator(prog.Arena, memorySize).Generate(prog)
}

// Generate emits the entry label, the top-level statements, the exit
// epilogue, and then every function reachable through calls.
func (g *Generator) Generate(prog *Program) ([]bytecode.Entry, error) {
	if g.memorySize <= 0 || g.memorySize%bytecode.WordSize != 0 ||
		g.memorySize/bytecode.WordSize > bytecode.MaxPayload {
		return nil, errorAt(prog.Pos, "memory size %d cannot hold a program", g.memorySize)
	}

	for j, id := range prog.Globals {
		g.arena.Variable(id).SetOffset(g.offset(-(j + 1)))
	}

	g.emitLabel(g.newLabel())
	if n := len(prog.Globals); n > 0 {
		g.emitImm(bytecode.OpEnter, g.offset(n))
	}
	for _, stmt := range prog.Stmts {
		if _, isFn := stmt.(*FunctionDecl); isFn {
			continue
		}
		if err := g.genStmt(stmt); err != nil {
			return nil, err
		}
	}
	g.emitImm(bytecode.OpPush, 0)
	g.emit(bytecode.InstrECall(bytecode.IntrinsicExit))

	for len(g.queue) > 0 {
		id := g.queue[0]
		g.queue = g.queue[1:]
		if err := g.genFunction(id); err != nil {
			return nil, err
		}
	}

	log.Debugf("generated %d entries, %d functions", len(g.entries), len(g.labels))
	return g.entries, nil
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) newLabel() bytecode.Label {
	l := bytecode.Label{ID: g.nextLabel}
	g.nextLabel++
	return l
}

func (g *Generator) emit(instr bytecode.Instruction) {
	g.entries = append(g.entries, instr)
}

func (g *Generator) emitLabel(l bytecode.Label) {
	g.entries = append(g.entries, l)
}

func (g *Generator) emitOp(op bytecode.Opcode) {
	g.emit(bytecode.Instr(op))
}

func (g *Generator) emitImm(op bytecode.Opcode, v int32) {
	g.emit(bytecode.InstrImm(op, v))
}

func (g *Generator) emitJump(op bytecode.Opcode, l bytecode.Label) {
	g.emit(bytecode.InstrLabel(op, l))
}

// offset narrows a frame offset or count. Frames are bounded by memory
// size, which already fits a payload.
func (g *Generator) offset(n int) int32 {
	v, err := safecast.Conv[int32](n)
	if err != nil || !bytecode.FitsPayload(int64(v)) {
		panic(internalf("frame offset %d does not fit a payload", n))
	}
	return v
}

// labelFor returns the label of a user function, queueing the function the
// first time it is referenced.
func (g *Generator) labelFor(id DefID) bytecode.Label {
	if l, ok := g.labels[id]; ok {
		return l
	}
	l := g.newLabel()
	g.labels[id] = l
	g.queue = append(g.queue, id)
	return l
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// genFunction lays out the frame of a queued definition and emits its body.
// Parameter i of n sits at base+2+(n-1-i) above the return address and
// saved base; local j sits at base-(j+1).
func (g *Generator) genFunction(id DefID) error {
	def := g.arena.Def(id)
	if def.Decl == nil {
		panic(internalf("generating intrinsic %s as a function", def.Name))
	}

	n := len(def.Params)
	for i, p := range def.Params {
		g.arena.Variable(p).SetOffset(g.offset(2 + (n - 1 - i)))
	}
	for j, l := range def.Locals {
		g.arena.Variable(l).SetOffset(g.offset(-(j + 1)))
	}

	g.fn = def
	defer func() { g.fn = nil }()

	g.emitLabel(g.labels[id])
	if len(def.Locals) > 0 {
		g.emitImm(bytecode.OpEnter, g.offset(len(def.Locals)))
	}
	for _, stmt := range def.Decl.Body {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	// Falling off the end returns 0.
	g.emitImm(bytecode.OpPush, 0)
	g.emitImm(bytecode.OpRet, g.offset(n))
	return nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) genStmt(stmt Stmt) error {
	switch s := stmt.(type) {
	case *ExprStmt:
		if err := g.genExpr(s.Expr); err != nil {
			return err
		}
		g.emitOp(bytecode.OpPop)
		return nil

	case *VarDecl:
		if s.Init != nil {
			if err := g.genExpr(s.Init); err != nil {
				return err
			}
		} else {
			g.emitImm(bytecode.OpPush, 0)
		}
		g.store(s.Symbol)
		return nil

	case *Assign:
		if err := g.genExpr(s.Value); err != nil {
			return err
		}
		g.store(s.Symbol)
		return nil

	case *Block:
		for _, inner := range s.Stmts {
			if err := g.genStmt(inner); err != nil {
				return err
			}
		}
		return nil

	case *If:
		return g.genIf(s)

	case *While:
		return g.genWhile(s)

	case *Break:
		if len(g.breakLabels) == 0 {
			return errorAt(s.Pos, "no loop to break from")
		}
		g.emitJump(bytecode.OpJump, g.breakLabels[len(g.breakLabels)-1])
		return nil

	case *Continue:
		if len(g.continueLabels) == 0 {
			return errorAt(s.Pos, "no loop to continue")
		}
		g.emitJump(bytecode.OpJump, g.continueLabels[len(g.continueLabels)-1])
		return nil

	case *Return:
		if g.fn == nil {
			panic(internalf("return outside of a function reached code generation"))
		}
		if s.Value != nil {
			if err := g.genExpr(s.Value); err != nil {
				return err
			}
		} else {
			g.emitImm(bytecode.OpPush, 0)
		}
		g.emitImm(bytecode.OpRet, g.offset(len(g.fn.Params)))
		return nil

	case *FunctionDecl:
		panic(internalf("nested function %s reached code generation", s.Name))
	}
	panic(internalf("codegen: unhandled statement %T", stmt))
}

func (g *Generator) genIf(s *If) error {
	elseLabel, endLabel := g.newLabel(), g.newLabel()

	if err := g.genExpr(s.Cond); err != nil {
		return err
	}
	g.emitJump(bytecode.OpJumpIfNot, elseLabel)
	if err := g.genStmt(s.Then); err != nil {
		return err
	}
	if s.Else != nil {
		g.emitJump(bytecode.OpJump, endLabel)
	}
	g.emitLabel(elseLabel)
	if s.Else != nil {
		if err := g.genStmt(s.Else); err != nil {
			return err
		}
	}
	g.emitLabel(endLabel)
	return nil
}

func (g *Generator) genWhile(s *While) error {
	loopLabel, endLabel := g.newLabel(), g.newLabel()

	g.emitLabel(loopLabel)
	if err := g.genExpr(s.Cond); err != nil {
		return err
	}
	g.emitJump(bytecode.OpJumpIfNot, endLabel)

	g.breakLabels = append(g.breakLabels, endLabel)
	g.continueLabels = append(g.continueLabels, loopLabel)
	err := g.genStmt(s.Body)
	g.breakLabels = g.breakLabels[:len(g.breakLabels)-1]
	g.continueLabels = g.continueLabels[:len(g.continueLabels)-1]
	if err != nil {
		return err
	}

	g.emitJump(bytecode.OpJump, loopLabel)
	g.emitLabel(endLabel)
	return nil
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (g *Generator) variable(id SymbolID) (*VariableSymbol, int32) {
	v := g.arena.Variable(id)
	off, ok := v.Offset()
	if !ok {
		panic(internalf("variable %q has no frame offset", v.Name))
	}
	if v.Global {
		off += g.offset(g.memorySize / bytecode.WordSize)
	}
	return v, off
}

func (g *Generator) load(id SymbolID) {
	v, off := g.variable(id)
	if v.Global {
		g.emitImm(bytecode.OpLoadAbs, off)
	} else {
		g.emitImm(bytecode.OpLoadRel, off)
	}
}

func (g *Generator) store(id SymbolID) {
	v, off := g.variable(id)
	if v.Global {
		g.emitImm(bytecode.OpStoreAbs, off)
	} else {
		g.emitImm(bytecode.OpStoreRel, off)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[TokenType]bytecode.Opcode{
	TokenPlus:    bytecode.OpIAdd,
	TokenMinus:   bytecode.OpISub,
	TokenStar:    bytecode.OpIMul,
	TokenSlash:   bytecode.OpIDiv,
	TokenPercent: bytecode.OpIMod,
	TokenLt:      bytecode.OpILt,
	TokenLe:      bytecode.OpILe,
	TokenGt:      bytecode.OpIGt,
	TokenGe:      bytecode.OpIGe,
	TokenEq:      bytecode.OpEqu,
	TokenNe:      bytecode.OpNeq,
}

func (g *Generator) genExpr(e Expr) error {
	switch e := e.(type) {
	case *IntLiteral:
		if !bytecode.FitsPayload(e.Value) {
			return errorAt(e.Pos, "integer literal %d does not fit in 24 bits", e.Value)
		}
		v, err := safecast.Conv[int32](e.Value)
		if err != nil {
			return errorAt(e.Pos, "integer literal %d: %v", e.Value, err)
		}
		g.emitImm(bytecode.OpPush, v)
		return nil

	case *BoolLiteral:
		if e.Value {
			g.emitImm(bytecode.OpPush, 1)
		} else {
			g.emitImm(bytecode.OpPush, 0)
		}
		return nil

	case *Variable:
		g.load(e.Symbol)
		return nil

	case *UnaryExpr:
		switch e.Op {
		case TokenMinus:
			g.emitImm(bytecode.OpPush, 0)
			if err := g.genExpr(e.Operand); err != nil {
				return err
			}
			g.emitOp(bytecode.OpISub)
		case TokenBang:
			if err := g.genExpr(e.Operand); err != nil {
				return err
			}
			g.emitImm(bytecode.OpPush, 0)
			g.emitOp(bytecode.OpEqu)
		default:
			panic(internalf("codegen: unmapped unary operator %s", e.Op))
		}
		return nil

	case *BinaryExpr:
		op, ok := binaryOpcodes[e.Op]
		if !ok {
			panic(internalf("codegen: unmapped binary operator %s", e.Op))
		}
		if err := g.genExpr(e.Left); err != nil {
			return err
		}
		if err := g.genExpr(e.Right); err != nil {
			return err
		}
		g.emitOp(op)
		return nil

	case *Call:
		for _, arg := range e.Args {
			if err := g.genExpr(arg); err != nil {
				return err
			}
		}
		def := g.arena.Def(e.Def)
		if def.IsIntrinsic() {
			g.emit(bytecode.InstrECall(def.Intrinsic))
		} else {
			g.emitJump(bytecode.OpCall, g.labelFor(e.Def))
		}
		return nil
	}
	panic(internalf("codegen: unhandled expression %T", e))
}
