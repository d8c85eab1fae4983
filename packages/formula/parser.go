package formula

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// Parser parses tokens into an AST. references are made relative to the
// cell the formula is parsed at.
type Parser struct {
	tokens []Token
	pos    int
	at     grid.Point
}

// Parse parses formula text, with or without the leading '=', as it
// reads at cell at.
func Parse(text string, at grid.Point) (Node, error) {
	tokens, err := NewLexer(text).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrParse, text, err)
	}
	p := &Parser{tokens: tokens, at: at}
	node, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrParse, text, err)
	}
	return node, nil
}

// ParseReference parses a single, possibly sheet qualified, cell or range
// reference such as Sheet1!$A$1:$B$4. the sheet is empty when the
// reference is unqualified.
func ParseReference(text string) (sheet string, rect grid.Rect, err error) {
	tokens, err := NewLexerForReference(text).Tokenize()
	if err != nil {
		return "", grid.Rect{}, fmt.Errorf("%w: %q: %v", ErrParse, text, err)
	}
	origin := grid.Point{Row: 1, Column: 1}
	node, err := (&Parser{tokens: tokens, at: origin}).parsePrimary()
	if err != nil {
		return "", grid.Rect{}, fmt.Errorf("%w: %q: %v", ErrParse, text, err)
	}
	switch n := node.(type) {
	case *CellRefNode:
		p, _ := n.Ref.resolve(origin)
		return n.Sheet, grid.CellRect(p), nil
	case *RangeNode:
		r, _ := n.rect(origin)
		return n.Sheet, r, nil
	}
	return "", grid.Rect{}, fmt.Errorf("%w: %q is not a reference", ErrParse, text)
}

// Parse parses the tokens into an AST
func (p *Parser) Parse() (Node, error) {
	if p.peek().Type == TokenEquals {
		p.pos++
	}
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type != TokenEOF {
		return nil, fmt.Errorf("unexpected token after expression: %s", tok.Value)
	}
	return node, nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// binaryLevel parses one left-associative precedence level
func (p *Parser) binaryLevel(next func() (Node, error), ops map[string]BinaryOp) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Type != TokenBinaryOp {
			return left, nil
		}
		op, ok := ops[tok.Value]
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right}
	}
}

var (
	comparisonOps = map[string]BinaryOp{
		"=": BinOpEqual, "<>": BinOpNotEqual,
		"<": BinOpLess, "<=": BinOpLessEqual,
		">": BinOpGreater, ">=": BinOpGreaterEqual,
	}
	concatOps   = map[string]BinaryOp{"&": BinOpConcat}
	additionOps = map[string]BinaryOp{"+": BinOpAdd, "-": BinOpSubtract}
	multiplyOps = map[string]BinaryOp{"*": BinOpMultiply, "/": BinOpDivide}
)

// parseComparison handles comparison operators (lowest precedence)
func (p *Parser) parseComparison() (Node, error) {
	return p.binaryLevel(p.parseConcatenation, comparisonOps)
}

func (p *Parser) parseConcatenation() (Node, error) {
	return p.binaryLevel(p.parseAddition, concatOps)
}

func (p *Parser) parseAddition() (Node, error) {
	return p.binaryLevel(p.parseMultiplication, additionOps)
}

func (p *Parser) parseMultiplication() (Node, error) {
	return p.binaryLevel(p.parsePower, multiplyOps)
}

// parsePower handles exponentiation, right-associative
func (p *Parser) parsePower() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Type == TokenBinaryOp && tok.Value == "^" {
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: BinOpPower, Left: left, Right: right}, nil
	}
	return left, nil
}

// parseUnary handles unary operators
func (p *Parser) parseUnary() (Node, error) {
	tok := p.peek()
	if tok.Type != TokenUnaryPrefixOp {
		return p.parsePostfix()
	}
	p.pos++
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	op := UnaryOpPlus
	if tok.Value == "-" {
		op = UnaryOpMinus
	}
	return &UnaryOpNode{Op: op, Operand: operand}, nil
}

// parsePostfix handles postfix percent, which may repeat
func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenUnaryPostfixOp {
		p.pos++
		node = &UnaryOpNode{Op: UnaryOpPercent, Operand: node}
	}
	return node, nil
}

// parsePrimary handles literals, references, functions and parentheses
func (p *Parser) parsePrimary() (Node, error) {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		p.pos++
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", tok.Value)
		}
		return &NumberNode{Value: val}, nil

	case TokenString:
		p.pos++
		return &StringNode{Value: tok.Value}, nil

	case TokenBoolean:
		p.pos++
		return &BooleanNode{Value: tok.Value == "TRUE"}, nil

	case TokenErrorLiteral:
		p.pos++
		code, ok := cells.ParseErrorCode(tok.Value)
		if !ok {
			return nil, fmt.Errorf("unknown error literal: %s", tok.Value)
		}
		return &ErrorNode{Code: code}, nil

	case TokenCell:
		p.pos++
		sheet, cell := splitSheet(tok.Value)
		ref, err := parseReference(cell, p.at)
		if err != nil {
			return nil, err
		}
		return &CellRefNode{Sheet: sheet, Ref: ref}, nil

	case TokenRange:
		p.pos++
		sheet, rng := splitSheet(tok.Value)
		from, to, _ := strings.Cut(rng, ":")
		fromRef, err := parseReference(from, p.at)
		if err != nil {
			return nil, err
		}
		toRef, err := parseReference(to, p.at)
		if err != nil {
			return nil, err
		}
		return &RangeNode{Sheet: sheet, From: fromRef, To: toRef}, nil

	case TokenIdentifier:
		p.pos++
		return &NameNode{Name: tok.Value}, nil

	case TokenFunction:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek().Type != TokenRightParen {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return &ParenNode{Inner: node}, nil
	}
	return nil, fmt.Errorf("unexpected token: %s", tok.Value)
}

// parseFunctionCall parses a function call
func (p *Parser) parseFunctionCall() (Node, error) {
	name := p.peek().Value
	p.pos++
	if p.peek().Type != TokenLeftParen {
		return nil, fmt.Errorf("expected '(' after function name")
	}
	p.pos++

	call := &FunctionCallNode{Name: name, Args: []Node{}}
	if p.peek().Type == TokenRightParen {
		p.pos++
		return call, nil
	}
	for {
		arg, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch p.peek().Type {
		case TokenRightParen:
			p.pos++
			return call, nil
		case TokenComma:
			p.pos++
		default:
			return nil, fmt.Errorf("expected ',' or ')' in arguments of %s", name)
		}
	}
}

// splitSheet separates an optional sheet prefix from a reference and
// unquotes it
func splitSheet(ref string) (sheet, rest string) {
	idx := strings.LastIndex(ref, "!")
	if idx == -1 {
		return "", ref
	}
	sheet = ref[:idx]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, ref[idx+1:]
}
