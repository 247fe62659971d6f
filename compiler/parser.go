package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for pix
// ---------------------------------------------------------------------------

// Parser parses pix source code into an AST. Parsing stops at the first
// error.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program.
func Parse(input string) (*Program, error) {
	return NewParser(input).ParseProgram()
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise returns an error.
func (p *Parser) expect(t TokenType) error {
	if p.curTokenIs(t) {
		p.nextToken()
		return nil
	}
	return p.unexpected("expected %s", t)
}

// expectIdent consumes an identifier and returns its name.
func (p *Parser) expectIdent() (string, Position, error) {
	tok := p.curToken
	if tok.Type != TokenIdentifier {
		return "", tok.Pos, p.unexpected("expected identifier")
	}
	p.nextToken()
	return tok.Literal, tok.Pos, nil
}

// unexpected reports the current token. Lexical errors take precedence over
// the parser's expectation.
func (p *Parser) unexpected(format string, args ...any) error {
	tok := p.curToken
	if tok.Type == TokenError {
		return errorAt(tok.Pos, "%s", tok.Literal)
	}
	return errorAt(tok.Pos, "%s, got %s", fmt.Sprintf(format, args...), describeToken(tok))
}

func describeToken(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier:
		return fmt.Sprintf("identifier %q", tok.Literal)
	case TokenInteger:
		return "integer " + tok.Literal
	}
	return fmt.Sprintf("%q", tok.Literal)
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses function declarations and statements up to EOF.
func (p *Parser) ParseProgram() (*Program, error) {
	prog := &Program{Pos: p.curToken.Pos}
	for !p.curTokenIs(TokenEOF) {
		var (
			stmt Stmt
			err  error
		)
		if p.curTokenIs(TokenFunction) {
			stmt, err = p.parseFunction()
		} else {
			stmt, err = p.parseStatement()
		}
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}

func (p *Parser) parseFunction() (*FunctionDecl, error) {
	fn := &FunctionDecl{Pos: p.curToken.Pos}
	p.nextToken() // function

	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	fn.Name = name

	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	if !p.curTokenIs(TokenRParen) {
		for {
			param, err := p.parseParam()
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, param)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		fn.Result, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	fn.Body, err = p.parseBraced()
	if err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *Parser) parseParam() (*Param, error) {
	name, pos, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &Param{Pos: pos, Name: name, Type: typ}, nil
}

func (p *Parser) parseType() (*TypeExpr, error) {
	name, pos, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return &TypeExpr{Pos: pos, Name: name}, nil
}

// parseBraced parses "{" statement* "}".
func (p *Parser) parseBraced() ([]Stmt, error) {
	if err := p.expect(TokenLBrace); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for !p.curTokenIs(TokenRBrace) {
		if p.curTokenIs(TokenEOF) {
			return nil, p.unexpected("expected }")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	p.nextToken()
	return stmts, nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() (Stmt, error) {
	pos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenLBrace:
		stmts, err := p.parseBraced()
		if err != nil {
			return nil, err
		}
		return &Block{Pos: pos, Stmts: stmts}, nil

	case TokenVar:
		return p.parseVarDecl()

	case TokenIf:
		return p.parseIf()

	case TokenWhile:
		p.nextToken()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		body, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &While{Pos: pos, Cond: cond, Body: body}, nil

	case TokenBreak:
		p.nextToken()
		return &Break{Pos: pos}, p.expect(TokenSemicolon)

	case TokenContinue:
		p.nextToken()
		return &Continue{Pos: pos}, p.expect(TokenSemicolon)

	case TokenReturn:
		p.nextToken()
		ret := &Return{Pos: pos}
		if !p.curTokenIs(TokenSemicolon) {
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			ret.Value = value
		}
		return ret, p.expect(TokenSemicolon)

	case TokenFunction:
		return nil, errorAt(pos, "functions may only be declared at top level")

	case TokenIdentifier:
		if p.peekTokenIs(TokenAssign) {
			name := p.curToken.Literal
			p.nextToken()
			p.nextToken()
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return &Assign{Pos: pos, Name: name, Value: value}, p.expect(TokenSemicolon)
		}
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Pos: pos, Expr: expr}, p.expect(TokenSemicolon)
}

func (p *Parser) parseVarDecl() (*VarDecl, error) {
	decl := &VarDecl{Pos: p.curToken.Pos}
	p.nextToken() // var

	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	decl.Name = name
	if err := p.expect(TokenColon); err != nil {
		return nil, err
	}
	if decl.Type, err = p.parseType(); err != nil {
		return nil, err
	}
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		if decl.Init, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	return decl, p.expect(TokenSemicolon)
}

func (p *Parser) parseIf() (*If, error) {
	stmt := &If{Pos: p.curToken.Pos}
	p.nextToken() // if

	var err error
	if stmt.Cond, err = p.parseCondition(); err != nil {
		return nil, err
	}
	if stmt.Then, err = p.parseStatement(); err != nil {
		return nil, err
	}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if stmt.Else, err = p.parseStatement(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// parseCondition parses "(" expr ")".
func (p *Parser) parseCondition() (Expr, error) {
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return cond, p.expect(TokenRParen)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Binary operator precedence levels, loosest first.
var precedenceLevels = [][]TokenType{
	{TokenEq, TokenNe},
	{TokenLt, TokenLe, TokenGt, TokenGe},
	{TokenPlus, TokenMinus},
	{TokenStar, TokenSlash, TokenPercent},
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() (Expr, error) {
	return p.parseExpression()
}

func (p *Parser) parseExpression() (Expr, error) {
	return p.parseBinary(0)
}

// parseBinary parses a left-associative chain at the given precedence level.
func (p *Parser) parseBinary(level int) (Expr, error) {
	if level == len(precedenceLevels) {
		return p.parseUnary()
	}

	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for p.curTokenIn(precedenceLevels[level]) {
		op := p.curToken
		p.nextToken()
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: op.Pos, Op: op.Type, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) curTokenIn(types []TokenType) bool {
	for _, t := range types {
		if p.curTokenIs(t) {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.curTokenIs(TokenMinus) || p.curTokenIs(TokenBang) {
		op := p.curToken
		p.nextToken()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Pos: op.Pos, Op: op.Type, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.curToken

	switch tok.Type {
	case TokenInteger:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, errorAt(tok.Pos, "integer literal %s out of range", tok.Literal)
		}
		p.nextToken()
		return &IntLiteral{Pos: tok.Pos, Value: v}, nil

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{Pos: tok.Pos, Value: tok.Type == TokenTrue}, nil

	case TokenIdentifier:
		p.nextToken()
		if p.curTokenIs(TokenLParen) {
			return p.parseCall(tok)
		}
		return &Variable{Pos: tok.Pos, Name: tok.Literal}, nil

	case TokenLParen:
		p.nextToken()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return expr, p.expect(TokenRParen)
	}

	return nil, p.unexpected("expected expression")
}

// parseCall parses the argument list of a call whose name was consumed.
func (p *Parser) parseCall(name Token) (*Call, error) {
	call := &Call{Pos: name.Pos, Name: name.Literal}
	p.nextToken() // (

	if !p.curTokenIs(TokenRParen) {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	return call, p.expect(TokenRParen)
}
