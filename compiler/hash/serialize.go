package hash

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/pix/compiler"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of a checked program.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width int64 / uint32
//   - Child nodes: serialized inline (flat), optional ones as TagAbsent
//   - Variables: by slot (global index, or parameter/local index within
//     the enclosing function), never by name
//   - Calls: by intrinsic id, or by the callee's declaration index
// ---------------------------------------------------------------------------

// Serialize produces a deterministic serialization of a resolved and
// checked program. Renaming variables, reformatting or editing comments
// does not change the result.
func Serialize(prog *compiler.Program) []byte {
	s := &serializer{
		buf:   make([]byte, 0, 256),
		arena: prog.Arena,
		slots: make(map[compiler.SymbolID]slot),
		fns:   make(map[compiler.DefID]uint32),
	}

	for i, id := range prog.Globals {
		s.slots[id] = slot{global: true, index: uint32(i)}
	}
	for i, fn := range prog.Functions() {
		s.fns[fn.Def] = uint32(i)
		def := prog.Arena.Def(fn.Def)
		for j, id := range def.Params {
			s.slots[id] = slot{index: uint32(j)}
		}
		for j, id := range def.Locals {
			s.slots[id] = slot{index: uint32(len(def.Params) + j)}
		}
	}

	s.writeByte(HashVersion)
	s.writeByte(TagProgram)
	s.writeUint32(uint32(len(prog.Stmts)))
	for _, stmt := range prog.Stmts {
		s.serializeStmt(stmt)
	}
	return s.buf
}

type slot struct {
	global bool
	index  uint32
}

type serializer struct {
	buf   []byte
	arena *compiler.Arena
	slots map[compiler.SymbolID]slot
	fns   map[compiler.DefID]uint32
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) writeInt64(v int64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, uint64(v))
}

func (s *serializer) writeType(t compiler.Type) {
	switch t {
	case compiler.Type(compiler.IntType):
		s.writeByte(TagTypeInt)
	case compiler.Type(compiler.BoolType):
		s.writeByte(TagTypeBool)
	case compiler.Type(compiler.VoidType):
		s.writeByte(TagTypeVoid)
	case compiler.Type(compiler.WordType):
		s.writeByte(TagTypeWord)
	default:
		panic(fmt.Sprintf("hash: unmapped type %s", t))
	}
}

func (s *serializer) writeVar(id compiler.SymbolID) {
	sl, ok := s.slots[id]
	if !ok {
		panic(fmt.Sprintf("hash: variable %d has no slot", id))
	}
	if sl.global {
		s.writeByte(TagGlobalRef)
	} else {
		s.writeByte(TagLocalRef)
	}
	s.writeUint32(sl.index)
}

func (s *serializer) serializeStmts(stmts []compiler.Stmt) {
	s.writeUint32(uint32(len(stmts)))
	for _, stmt := range stmts {
		s.serializeStmt(stmt)
	}
}

func (s *serializer) serializeOptionalStmt(stmt compiler.Stmt) {
	if stmt == nil {
		s.writeByte(TagAbsent)
		return
	}
	s.serializeStmt(stmt)
}

func (s *serializer) serializeOptionalExpr(e compiler.Expr) {
	if e == nil {
		s.writeByte(TagAbsent)
		return
	}
	s.serializeExpr(e)
}

func (s *serializer) serializeStmt(stmt compiler.Stmt) {
	switch n := stmt.(type) {
	case *compiler.FunctionDecl:
		def := s.arena.Def(n.Def)
		s.writeByte(TagFunction)
		s.writeUint32(uint32(len(def.Type.Params)))
		for _, p := range def.Type.Params {
			s.writeType(p)
		}
		s.writeType(def.Type.Result)
		s.writeUint32(uint32(len(def.Locals)))
		s.serializeStmts(n.Body)

	case *compiler.ExprStmt:
		s.writeByte(TagExprStmt)
		s.serializeExpr(n.Expr)

	case *compiler.VarDecl:
		s.writeByte(TagVarDecl)
		s.writeVar(n.Symbol)
		s.writeType(s.arena.Variable(n.Symbol).Type)
		s.serializeOptionalExpr(n.Init)

	case *compiler.Assign:
		s.writeByte(TagAssign)
		s.writeVar(n.Symbol)
		s.serializeExpr(n.Value)

	case *compiler.Block:
		s.writeByte(TagBlock)
		s.serializeStmts(n.Stmts)

	case *compiler.If:
		s.writeByte(TagIf)
		s.serializeExpr(n.Cond)
		s.serializeStmt(n.Then)
		s.serializeOptionalStmt(n.Else)

	case *compiler.While:
		s.writeByte(TagWhile)
		s.serializeExpr(n.Cond)
		s.serializeStmt(n.Body)

	case *compiler.Break:
		s.writeByte(TagBreak)

	case *compiler.Continue:
		s.writeByte(TagContinue)

	case *compiler.Return:
		s.writeByte(TagReturn)
		s.serializeOptionalExpr(n.Value)

	default:
		panic(fmt.Sprintf("hash: unhandled statement %T", stmt))
	}
}

var operatorTags = map[compiler.TokenType]byte{
	compiler.TokenPlus:    OpAdd,
	compiler.TokenMinus:   OpSub,
	compiler.TokenStar:    OpMul,
	compiler.TokenSlash:   OpDiv,
	compiler.TokenPercent: OpMod,
	compiler.TokenLt:      OpLt,
	compiler.TokenLe:      OpLe,
	compiler.TokenGt:      OpGt,
	compiler.TokenGe:      OpGe,
	compiler.TokenEq:      OpEq,
	compiler.TokenNe:      OpNe,
}

func (s *serializer) serializeExpr(e compiler.Expr) {
	switch n := e.(type) {
	case *compiler.IntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *compiler.BoolLiteral:
		s.writeByte(TagBoolLiteral)
		if n.Value {
			s.writeByte(1)
		} else {
			s.writeByte(0)
		}

	case *compiler.Variable:
		s.writeVar(n.Symbol)

	case *compiler.UnaryExpr:
		s.writeByte(TagUnary)
		switch n.Op {
		case compiler.TokenMinus:
			s.writeByte(OpNeg)
		case compiler.TokenBang:
			s.writeByte(OpNot)
		default:
			panic(fmt.Sprintf("hash: unmapped unary operator %s", n.Op))
		}
		s.serializeExpr(n.Operand)

	case *compiler.BinaryExpr:
		op, ok := operatorTags[n.Op]
		if !ok {
			panic(fmt.Sprintf("hash: unmapped binary operator %s", n.Op))
		}
		s.writeByte(TagBinary)
		s.writeByte(op)
		s.serializeExpr(n.Left)
		s.serializeExpr(n.Right)

	case *compiler.Call:
		def := s.arena.Def(n.Def)
		if def.IsIntrinsic() {
			s.writeByte(TagCallNative)
			s.writeUint32(uint32(def.Intrinsic))
		} else {
			s.writeByte(TagCallUser)
			s.writeUint32(s.fns[n.Def])
		}
		s.writeUint32(uint32(len(n.Args)))
		for _, arg := range n.Args {
			s.serializeExpr(arg)
		}

	default:
		panic(fmt.Sprintf("hash: unhandled expression %T", e))
	}
}
