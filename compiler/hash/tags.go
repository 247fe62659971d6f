package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the program fingerprint format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every fingerprint already stored in an image cache.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing fingerprints.
const HashVersion byte = 1

// Node tags.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Expressions
	TagIntLiteral  byte = 0x01
	TagBoolLiteral byte = 0x02
	TagGlobalRef   byte = 0x03
	TagLocalRef    byte = 0x04 // parameters and locals, by frame slot index
	TagUnary       byte = 0x05
	TagBinary      byte = 0x06
	TagCallUser    byte = 0x07
	TagCallNative  byte = 0x08

	// Statements
	TagExprStmt byte = 0x10
	TagVarDecl  byte = 0x11
	TagAssign   byte = 0x12
	TagBlock    byte = 0x13
	TagIf       byte = 0x14
	TagWhile    byte = 0x15
	TagBreak    byte = 0x16
	TagContinue byte = 0x17
	TagReturn   byte = 0x18

	// Declarations
	TagFunction byte = 0x20
	TagProgram  byte = 0x21

	// Types
	TagTypeInt  byte = 0x30
	TagTypeBool byte = 0x31
	TagTypeVoid byte = 0x32
	TagTypeWord byte = 0x33

	// Optional children
	TagAbsent byte = 0x3E
)

// Operator tags, independent of the lexer's token numbering.
const (
	OpAdd byte = 0x01
	OpSub byte = 0x02
	OpMul byte = 0x03
	OpDiv byte = 0x04
	OpMod byte = 0x05
	OpLt  byte = 0x06
	OpLe  byte = 0x07
	OpGt  byte = 0x08
	OpGe  byte = 0x09
	OpEq  byte = 0x0A
	OpNe  byte = 0x0B
	OpNeg byte = 0x0C
	OpNot byte = 0x0D
)
