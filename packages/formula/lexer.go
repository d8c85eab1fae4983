package formula

import (
	"fmt"
	"strings"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenErrorLiteral
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenComma
	TokenLeftParen
	TokenRightParen
	TokenIdentifier
	TokenInvalid
)

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterComma
	StateAfterIdentifier
)

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charPercent    = '%'
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
	charDollar     = '$'
	charHash       = '#'
)

// operand tokens are valid wherever a value may start
var operandTokens = map[TokenType]bool{
	TokenNumber:        true,
	TokenString:        true,
	TokenBoolean:       true,
	TokenErrorLiteral:  true,
	TokenCell:          true,
	TokenRange:         true,
	TokenFunction:      true,
	TokenIdentifier:    true,
	TokenLeftParen:     true,
	TokenUnaryPrefixOp: true,
}

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart:         with(operandTokens, TokenEquals),
	StateAfterEquals:   operandTokens,
	StateAfterOperator: operandTokens,
	StateAfterComma:    operandTokens,
	// empty parens for arg-less functions like PI()
	StateAfterLeftParen: with(operandTokens, TokenRightParen),
	StateAfterValue: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
	StateAfterIdentifier: {
		TokenLeftParen:      true, // function call
		TokenBinaryOp:       true, // named range used as value
		TokenUnaryPostfixOp: true,
		TokenRightParen:     true,
		TokenComma:          true,
		TokenEOF:            true,
	},
}

func with(set map[TokenType]bool, extra ...TokenType) map[TokenType]bool {
	out := make(map[TokenType]bool, len(set)+len(extra))
	for t := range set {
		out[t] = true
	}
	for _, t := range extra {
		out[t] = true
	}
	return out
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// Lexer tokenizes formula expressions. the leading '=' is optional.
type Lexer struct {
	runes      []rune
	pos        int
	state      TokenState
	parenDepth int
	tokens     []Token
	expected   map[TokenType]bool
}

// NewLexer creates a lexer for a full formula expression.
func NewLexer(input string) *Lexer {
	return &Lexer{runes: []rune(input)}
}

// NewLexerForReference creates a lexer that accepts exactly one cell or
// range reference, optionally sheet qualified.
func NewLexerForReference(input string) *Lexer {
	return &Lexer{
		runes:    []rune(input),
		expected: map[TokenType]bool{TokenCell: true, TokenRange: true},
	}
}

// Tokenize tokenizes the entire input. the returned slice always ends with
// a TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			break
		}
		tok := l.nextToken()
		if tok.Type == TokenInvalid {
			return nil, fmt.Errorf("%s at position %d", tok.Value, tok.Pos)
		}
		if !l.validateTransition(tok.Type) {
			return nil, fmt.Errorf("unexpected token %q at position %d", tok.Value, tok.Pos)
		}
		l.tokens = append(l.tokens, tok)
		l.updateState(tok.Type)
	}

	if l.parenDepth > 0 {
		return nil, fmt.Errorf("unbalanced parentheses: missing closing parenthesis")
	}
	if l.expected == nil && !tokenTransitions[l.state][TokenEOF] {
		return nil, fmt.Errorf("unexpected end of formula")
	}
	if l.expected != nil && len(l.tokens) != 1 {
		return nil, fmt.Errorf("expected a single reference")
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	if l.expected != nil {
		return l.expected[tokenType]
	}
	return tokenTransitions[l.state][tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenErrorLiteral, TokenCell, TokenRange:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators keep the current state
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenComma:
		l.state = StateAfterComma
	case TokenIdentifier, TokenFunction:
		l.state = StateAfterIdentifier
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	startPos := l.pos
	ch := l.current()

	switch {
	case ch == charQuote:
		return l.scanString()
	case ch == charApostrophe:
		return l.scanQuotedSheetRef()
	case ch == charHash:
		return l.scanErrorLiteral()
	case isDigit(ch) || (ch == charPeriod && isDigit(l.peek(1))):
		return l.scanNumber()
	case isAlpha(ch) || ch == charUnderscore || ch == charDollar:
		return l.scanIdentifierOrCell()
	}

	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenInvalid, Value: "unexpected closing parenthesis", Pos: startPos}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}
	case charPlus, charMinus:
		l.pos++
		if l.isUnaryContext() {
			return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}
	case charEqual:
		l.pos++
		// the first '=' is the formula prefix, later ones compare
		if startPos == 0 {
			return Token{Type: TokenEquals, Value: "=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "=", Pos: startPos}
	case charAsterisk, charSlash, charCaret, charAmpersand, charLess, charGreater:
		return l.scanBinaryOp()
	}

	l.pos++
	return Token{Type: TokenInvalid, Value: "unexpected character: " + string(ch), Pos: startPos}
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isAlpha(ch rune) bool { return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }

func isWordRune(ch rune) bool {
	return isAlpha(ch) || isDigit(ch) || ch == charUnderscore || ch == charPeriod || ch == charDollar
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos
	for isDigit(l.current()) {
		l.pos++
	}
	if l.current() == charPeriod {
		l.pos++
		for isDigit(l.current()) {
			l.pos++
		}
	}
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++
		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}
		if !isDigit(l.current()) {
			// not scientific notation, restore position
			l.pos = savedPos
		} else {
			for isDigit(l.current()) {
				l.pos++
			}
		}
	}
	return Token{Type: TokenNumber, Value: string(l.runes[startPos:l.pos]), Pos: startPos}
}

// scanString scans a string literal; a doubled quote escapes a quote
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				b.WriteRune(charQuote)
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Value: b.String(), Pos: startPos}
		}
		b.WriteRune(ch)
		l.pos++
	}
	return Token{Type: TokenInvalid, Value: "unclosed string literal", Pos: startPos}
}

// scanErrorLiteral scans #DIV/0!, #N/A and friends
func (l *Lexer) scanErrorLiteral() Token {
	startPos := l.pos
	for _, name := range errorLiterals {
		n := len([]rune(name))
		if l.pos+n <= len(l.runes) && strings.EqualFold(string(l.runes[l.pos:l.pos+n]), name) {
			l.pos += n
			return Token{Type: TokenErrorLiteral, Value: name, Pos: startPos}
		}
	}
	l.pos++
	return Token{Type: TokenInvalid, Value: "unknown error literal", Pos: startPos}
}

// scanIdentifierOrCell scans identifiers, functions, cells, ranges and
// booleans, including the sheet-qualified forms Sheet1!A1 and Sheet1!A1:B2
func (l *Lexer) scanIdentifierOrCell() Token {
	startPos := l.pos
	for isWordRune(l.current()) {
		l.pos++
	}
	value := string(l.runes[startPos:l.pos])
	upperValue := strings.ToUpper(value)

	if l.current() == charExclaim {
		return l.scanSheetRef(startPos)
	}
	if upperValue == "TRUE" || upperValue == "FALSE" {
		return Token{Type: TokenBoolean, Value: upperValue, Pos: startPos}
	}
	// a name followed by '(' is a call even when it reads like a cell, LOG10(
	if l.current() == charLParen && !strings.Contains(value, "$") {
		return Token{Type: TokenFunction, Value: upperValue, Pos: startPos}
	}
	if isCell(value) {
		return l.scanRangeTail(startPos, value)
	}
	if strings.Contains(value, "$") {
		return Token{Type: TokenInvalid, Value: "invalid reference: " + value, Pos: startPos}
	}
	return Token{Type: TokenIdentifier, Value: value, Pos: startPos}
}

// scanRangeTail returns a cell token, or a range token when the cell is
// followed by ':' and a second cell
func (l *Lexer) scanRangeTail(startPos int, cell string) Token {
	if l.current() != charColon {
		return Token{Type: TokenCell, Value: string(l.runes[startPos:l.pos]), Pos: startPos}
	}
	savedPos := l.pos
	l.pos++
	secondStart := l.pos
	for isWordRune(l.current()) {
		l.pos++
	}
	if isCell(string(l.runes[secondStart:l.pos])) {
		return Token{Type: TokenRange, Value: string(l.runes[startPos:l.pos]), Pos: startPos}
	}
	l.pos = savedPos
	return Token{Type: TokenInvalid, Value: "invalid range reference after " + cell, Pos: startPos}
}

// scanSheetRef scans the reference after a sheet name and its '!'
func (l *Lexer) scanSheetRef(startPos int) Token {
	l.pos++ // consume !
	cellStart := l.pos
	for isWordRune(l.current()) {
		l.pos++
	}
	cell := string(l.runes[cellStart:l.pos])
	if !isCell(cell) {
		return Token{Type: TokenInvalid, Value: "invalid cell reference after worksheet", Pos: startPos}
	}
	return l.scanRangeTail(startPos, cell)
}

// scanQuotedSheetRef scans 'My Sheet'!A1; a doubled apostrophe escapes one
func (l *Lexer) scanQuotedSheetRef() Token {
	startPos := l.pos
	l.pos++
	for l.pos < len(l.runes) {
		if l.current() == charApostrophe {
			if l.peek(1) == charApostrophe {
				l.pos += 2
				continue
			}
			break
		}
		l.pos++
	}
	if l.pos >= len(l.runes) {
		return Token{Type: TokenInvalid, Value: "unclosed worksheet name", Pos: startPos}
	}
	l.pos++ // closing quote
	if l.current() != charExclaim {
		return Token{Type: TokenInvalid, Value: "expected ! after worksheet name", Pos: startPos}
	}
	return l.scanSheetRef(startPos)
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	switch ch {
	case charLess:
		switch l.current() {
		case charEqual:
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
		case charGreater:
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}
		}
	case charGreater:
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
		}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	switch l.state {
	case StateStart, StateAfterEquals, StateAfterOperator, StateAfterLeftParen, StateAfterComma:
		return true
	default:
		return false
	}
}

// isCell reports whether s is an A1 reference with optional '$' markers,
// e.g. A1, $B$12, C$3.
func isCell(s string) bool {
	i := 0
	if i < len(s) && s[i] == '$' {
		i++
	}
	letters := i
	for i < len(s) && isAlpha(rune(s[i])) {
		i++
	}
	if i == letters || i-letters > 3 {
		return false
	}
	if i < len(s) && s[i] == '$' {
		i++
	}
	digits := i
	for i < len(s) && isDigit(rune(s[i])) {
		i++
	}
	return i == len(s) && i > digits
}
