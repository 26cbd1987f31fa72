package lexer

import (
	"strconv"
	"strings"

	"zlang/token"
	"zlang/zerror"
)

func isLetter(char rune) bool {
	return rune('a') <= char && char <= rune('z') || rune('A') <= char && char <= rune('Z') || char == rune('_')
}

func isNumber(char rune) bool {
	return rune('0') <= char && char <= rune('9')
}

// Lexer represents a lexical scanner for processing Z source text into
// tokens. It maintains the current scanning state, including the position
// within the input, the current character, and metadata for line/column
// tracking. The Lexer also records tokens and errors encountered during
// scanning.
//
// A Lexer is single-use: it is restarted only by constructing a new
// instance with New.
type Lexer struct {
	// rune slice of the input string being scanned.
	characters []rune

	// Total number of runes in the input.
	totalChars int

	// Stores the sequence of tokens produced during lexing.
	tokens []token.Token

	// The index of the character that was previously read
	position int

	// The current character being examined.
	currentChar rune

	// The index of the next position where the next character
	// will be read
	readPosition int

	// 1-based line of the current character. Incremented when a newline
	// token is produced.
	line int32

	// 1-based column of the current character within its line.
	// Reset when a newline token is produced.
	column int

	// Stores any scanning errors that occur during lexing.
	errors []error
}

// New initializes and returns a new Lexer instance for the given source.
func New(input string) *Lexer {
	lexer := &Lexer{
		characters: []rune(input),
		line:       1,
	}
	lexer.totalChars = len(lexer.characters)
	lexer.readChar()
	return lexer
}

// Determines if the lexer has finished scanning all the source code.
func (lexer *Lexer) isFinished() bool {
	return lexer.readPosition >= lexer.totalChars
}

// Reads the character at the `Lexer`'s `readPosition`. If there
// are no more characters to scan, it sets the `Lexer`'s current
// character to null. The column counter advances by one.
func (lexer *Lexer) readChar() {
	if lexer.isFinished() {
		lexer.currentChar = rune(0)
	} else {
		lexer.currentChar = lexer.characters[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
	lexer.column++
}

// Returns the character at the `Lexer`s `readPosition` without consuming it.
// If the lexer has reached the end of the input, it returns 0 (null).
func (lexer *Lexer) peek() rune {
	if lexer.isFinished() {
		return rune(0)
	}
	return lexer.characters[lexer.readPosition]
}

// Determines if the next character in the source code matches the
// `expected` character, consuming it when it does.
func (lexer *Lexer) isMatch(expected rune) bool {
	if lexer.peek() != expected {
		return false
	}
	lexer.readChar()
	return true
}

// throw records a diagnostic at the lexer's current position.
func (lexer *Lexer) throw(message string) {
	lexer.errors = append(lexer.errors, zerror.New(lexer.line, lexer.column, 1, message))
}

// handleComment consumes a `//` line comment up to, but not including, the
// terminating newline, so the newline still produces its own token.
func (lexer *Lexer) handleComment() {
	for lexer.peek() != rune('\n') && !lexer.isFinished() {
		lexer.readChar()
	}
}

// handleNumber scans a base-10 numeric literal starting at the current
// character; when negative is set, that character is the leading minus and
// is read past here.
// Underscores inside the number are skipped; a `.` switches the literal
// from a 32-bit integer to a 32-bit float.
func (lexer *Lexer) handleNumber(startColumn int, negative bool) {
	var content strings.Builder
	if negative {
		content.WriteRune('-')
		lexer.readChar()
	}
	content.WriteRune(lexer.currentChar)

	floating := false
	for {
		next := lexer.peek()
		if next == rune('_') {
			lexer.readChar()
			continue
		}
		if next == rune('.') {
			floating = true
		} else if !isNumber(next) {
			break
		}
		lexer.readChar()
		content.WriteRune(lexer.currentChar)
	}

	lexeme := content.String()
	if floating {
		result, err := strconv.ParseFloat(lexeme, 32)
		if err != nil {
			lexer.throw("Invalid number.")
			return
		}
		tok := token.CreateLiteralToken(token.FLOAT, float32(result), lexeme, lexer.line, startColumn)
		lexer.tokens = append(lexer.tokens, tok)
		return
	}

	result, err := strconv.ParseInt(lexeme, 10, 32)
	if err != nil {
		lexer.throw("Invalid number.")
		return
	}
	tok := token.CreateLiteralToken(token.INT, int32(result), lexeme, lexer.line, startColumn)
	lexer.tokens = append(lexer.tokens, tok)
}

// handleIdentifier scans an identifier `[A-Za-z_][A-Za-z0-9_]*` and
// classifies it as a keyword when the full lexeme is a reserved word.
func (lexer *Lexer) handleIdentifier() {
	startColumn := lexer.column
	var word strings.Builder
	word.WriteRune(lexer.currentChar)

	for {
		next := lexer.peek()
		if !isLetter(next) && !isNumber(next) {
			break
		}
		lexer.readChar()
		word.WriteRune(lexer.currentChar)
	}

	lexeme := word.String()
	if keywordType, exists := token.KeyWords[lexeme]; exists {
		lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(keywordType, nil, lexeme, lexer.line, startColumn))
		return
	}
	lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(token.IDENTIFIER, lexeme, lexeme, lexer.line, startColumn))
}

// handleStringLiteral scans a double-quoted string literal. The recognized
// escapes are `\n`, `\"` and `\\`; any other escape is a diagnostic. A
// literal still open at end of input is a diagnostic at the opening quote.
func (lexer *Lexer) handleStringLiteral() {
	startColumn := lexer.column
	var word strings.Builder

	for {
		if lexer.isFinished() {
			lexer.errors = append(lexer.errors, zerror.New(lexer.line, startColumn, 1, "Unterminated string literal."))
			return
		}
		lexer.readChar()

		if lexer.currentChar == rune('"') {
			break
		}
		if lexer.currentChar == rune('\\') {
			lexer.readChar()
			switch lexer.currentChar {
			case rune('n'):
				word.WriteRune('\n')
			case rune('"'):
				word.WriteRune('"')
			case rune('\\'):
				word.WriteRune('\\')
			default:
				lexer.throw("Unknown escape char.")
				return
			}
			continue
		}
		word.WriteRune(lexer.currentChar)
	}

	literal := word.String()
	lexer.tokens = append(lexer.tokens, token.CreateLiteralToken(token.STRING, literal, literal, lexer.line, startColumn))
}

// createToken processes the current character and appends a token when the
// character class calls for one.
func (lexer *Lexer) createToken() {
	switch lexer.currentChar {
	case rune('('):
		lexer.push(token.LPA)
	case rune(')'):
		lexer.push(token.RPA)
	case rune('{'):
		lexer.push(token.LCUR)
	case rune('}'):
		lexer.push(token.RCUR)
	case rune('['):
		lexer.push(token.LBRACKET)
	case rune(']'):
		lexer.push(token.RBRACKET)
	case rune(','):
		lexer.push(token.COMMA)
	case rune(':'):
		lexer.push(token.COLON)
	case rune('\n'), rune(';'):
		lexer.push(token.NEWLINE)
		lexer.line++
		lexer.column = 0
	case rune(' '):
		// separation only
	case rune('"'):
		lexer.handleStringLiteral()
	case rune('='):
		if lexer.isMatch(rune('=')) {
			lexer.pushAt(token.EQUAL_EQUAL, lexer.column-1)
		} else {
			lexer.push(token.ASSIGN)
		}
	case rune('!'):
		if lexer.isMatch(rune('=')) {
			lexer.pushAt(token.NOT_EQUAL, lexer.column-1)
		} else {
			lexer.push(token.BANG)
		}
	case rune('>'):
		if lexer.isMatch(rune('=')) {
			lexer.pushAt(token.LARGER_EQUAL, lexer.column-1)
		} else {
			lexer.push(token.LARGER)
		}
	case rune('<'):
		if lexer.isMatch(rune('=')) {
			lexer.pushAt(token.LESS_EQUAL, lexer.column-1)
		} else {
			lexer.push(token.LESS)
		}
	case rune('-'):
		if lexer.peek() == rune('>') {
			lexer.readChar()
			lexer.pushAt(token.ARROW, lexer.column-1)
		} else if isNumber(lexer.peek()) {
			lexer.handleNumber(lexer.column, true)
		} else {
			lexer.push(token.SUB)
		}
	case rune('/'):
		if lexer.peek() == rune('/') {
			lexer.handleComment()
		} else {
			lexer.push(token.DIV)
		}
	case rune('+'):
		lexer.push(token.ADD)
	case rune('*'):
		lexer.push(token.MULT)
	case rune('%'):
		lexer.push(token.MOD)
	default:
		if isNumber(lexer.currentChar) {
			lexer.handleNumber(lexer.column, false)
		} else if isLetter(lexer.currentChar) {
			lexer.handleIdentifier()
		} else {
			lexer.throw("Unexpected char.")
		}
	}

	lexer.readChar()
}

// push appends a symbol token at the current position.
func (lexer *Lexer) push(tokenType token.TokenType) {
	lexer.pushAt(tokenType, lexer.column)
}

// pushAt appends a symbol token at an explicit column, used for
// multi-character symbols whose first character has already advanced the
// column counter.
func (lexer *Lexer) pushAt(tokenType token.TokenType, column int) {
	lexer.tokens = append(lexer.tokens, token.CreateToken(tokenType, lexer.line, column))
}

// Scan performs lexical analysis on the input and returns a slice of tokens.
//
// This method is the main entry point for the lexical analysis process. It
// iterates through the input, tokenizing it until the end of the input is
// reached. The first error aborts the scan and is returned alongside the
// tokens produced so far.
func (lexer *Lexer) Scan() ([]token.Token, error) {
	for lexer.position < lexer.totalChars {
		lexer.createToken()
		if len(lexer.errors) > 0 {
			return lexer.tokens, lexer.errors[0]
		}
	}
	lexer.tokens = append(lexer.tokens, token.CreateToken(token.EOF, lexer.line, lexer.column))
	return lexer.tokens, nil
}
