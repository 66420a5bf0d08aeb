/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

/*
LexToken represents a token which is returned by the lexer.
*/
type LexToken struct {
	ID    LexTokenID // Token kind
	Pos   int        // Starting position (in bytes)
	Val   string     // Token value
	Lline int        // Line in the input this token appears
	Lpos  int        // Position in the input line this token appears
}

/*
PosString returns the position of this token in the original input as a string.
*/
func (t LexToken) PosString() string {
	return fmt.Sprintf("Line %v, Pos %v", t.Lline, t.Lpos)
}

/*
String returns a string representation of a token.
*/
func (t LexToken) String() string {

	switch {

	case t.ID == TokenEOF:
		return "EOF"

	case t.ID == TokenError:
		return fmt.Sprintf("Error: %s (%s)", t.Val, t.PosString())

	case t.ID == TokenPARAM:
		return "$" + t.Val

	case t.ID > TOKENodeSYMBOLS && t.ID < TOKENodeKEYWORDS:
		return t.Val

	case t.ID > TOKENodeKEYWORDS:
		return fmt.Sprintf("<%s>", strings.ToUpper(t.Val))

	case len(t.Val) > 10:

		// Special case for very long values

		return fmt.Sprintf("%.10q...", t.Val)
	}

	return fmt.Sprintf("%q", t.Val)
}

/*
IsKeyword checks if this token is a keyword.
*/
func (t LexToken) IsKeyword() bool {
	return t.ID > TOKENodeKEYWORDS
}

/*
Map of keywords - keywords are case insensitive
*/
var keywordMap = map[string]LexTokenID{
	"match":      TokenMATCH,
	"optional":   TokenOPTIONAL,
	"where":      TokenWHERE,
	"return":     TokenRETURN,
	"distinct":   TokenDISTINCT,
	"as":         TokenAS,
	"order":      TokenORDER,
	"by":         TokenBY,
	"asc":        TokenASC,
	"ascending":  TokenASC,
	"desc":       TokenDESC,
	"descending": TokenDESC,
	"skip":       TokenSKIP,
	"limit":      TokenLIMIT,
	"and":        TokenAND,
	"or":         TokenOR,
	"xor":        TokenXOR,
	"not":        TokenNOT,
	"in":         TokenIN,
	"starts":     TokenSTARTS,
	"ends":       TokenENDS,
	"with":       TokenWITH,
	"contains":   TokenCONTAINS,
	"is":         TokenIS,
	"null":       TokenNULL,
	"true":       TokenTRUE,
	"false":      TokenFALSE,
	"create":     TokenCREATE,
	"merge":      TokenMERGE,
	"delete":     TokenDELETE,
	"detach":     TokenDETACH,
	"set":        TokenSET,
	"remove":     TokenREMOVE,
	"unwind":     TokenUNWIND,
	"union":      TokenUNION,
	"call":       TokenCALL,
	"case":       TokenCASE,
	"exists":     TokenEXISTS,
}

/*
Special symbols which separate other tokens
*/
var symbolMap = map[string]LexTokenID{
	"(":  TokenLPAREN,
	")":  TokenRPAREN,
	"[":  TokenLBRACK,
	"]":  TokenRBRACK,
	"{":  TokenLBRACE,
	"}":  TokenRBRACE,
	":":  TokenCOLON,
	",":  TokenCOMMA,
	".":  TokenDOT,
	"..": TokenDOTDOT,
	"|":  TokenPIPE,
	"+":  TokenPLUS,
	"-":  TokenMINUS,
	"*":  TokenTIMES,
	"/":  TokenDIV,
	"%":  TokenMOD,
	"=":  TokenEQ,
	"<>": TokenNEQ,
	"!=": TokenNEQ,
	"<":  TokenLT,
	">":  TokenGT,
	"<=": TokenLEQ,
	">=": TokenGEQ,
	"=~": TokenREGEX,
}

// Lexer
// =====

/*
RuneEOF is a special rune which represents the end of the input
*/
const RuneEOF = -1

/*
Function which represents the current state of the lexer and returns the next state
*/
type lexFunc func(*lexer) lexFunc

/*
Lexer data structure
*/
type lexer struct {
	name   string        // Name to identify the input
	input  string        // Input string of the lexer
	pos    int           // Current rune pointer
	line   int           // Current line pointer
	lastnl int           // Last newline position
	width  int           // Width of last rune
	start  int           // Start position of the current red token
	tokens chan LexToken // Channel for lexer output
}

/*
Lex lexes a given input. Returns a channel which contains tokens.
*/
func Lex(name string, input string) chan LexToken {
	l := &lexer{name, input, 0, 0, 0, 0, 0, make(chan LexToken)}
	go l.run()
	return l.tokens
}

/*
LexToList lexes a given input. Returns a list of tokens.
*/
func LexToList(name string, input string) []LexToken {
	var tokens []LexToken

	for t := range Lex(name, input) {
		tokens = append(tokens, t)
	}

	return tokens
}

/*
Main loop of the lexer.
*/
func (l *lexer) run() {

	if skipWhiteSpace(l) {
		for state := lexToken; state != nil; {
			state = state(l)

			if state == nil || !skipWhiteSpace(l) {
				break
			}
		}
	}

	close(l.tokens)
}

/*
next returns the next rune in the input and advances the current rune pointer
if the peek flag is not set. If the peek flag is set then the rune pointer
is not advanced.
*/
func (l *lexer) next(peek bool) rune {

	// Check if we reached the end

	if l.pos >= len(l.input) {
		if !peek {
			l.width = 0
		}
		return RuneEOF
	}

	// Decode the next rune

	r, w := utf8.DecodeRuneInString(l.input[l.pos:])

	if !peek {
		l.width = w
		l.pos += l.width
	}

	return r
}

/*
peekAt returns the rune at a given byte offset from the current position.
*/
func (l *lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return RuneEOF
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos+offset:])

	return r
}

/*
backup sets the pointer one rune back. Can only be called once per next call.
*/
func (l *lexer) backup() {
	if l.width == -1 {
		panic("Can only backup once per next call")
	}

	l.pos -= l.width
	l.width = -1
}

/*
startNew starts a new token.
*/
func (l *lexer) startNew() {
	l.start = l.pos
}

/*
emitToken passes a token back to the client.
*/
func (l *lexer) emitToken(t LexTokenID) {
	if t == TokenEOF {
		l.emitTokenAndValue(t, "")
		return
	}

	l.emitTokenAndValue(t, l.input[l.start:l.pos])
}

/*
emitTokenAndValue passes a token with a given value back to the client.
*/
func (l *lexer) emitTokenAndValue(t LexTokenID, val string) {
	if l.tokens != nil {
		l.tokens <- LexToken{t, l.start, val, l.line + 1, l.start - l.lastnl + 1}
	}
}

/*
emitError passes an error token back to the client.
*/
func (l *lexer) emitError(msg string) {
	if l.tokens != nil {
		l.tokens <- LexToken{TokenError, l.start, msg, l.line + 1, l.start - l.lastnl + 1}
	}
}

// State functions
// ===============

/*
lexToken is the main entry function for the lexer.
*/
func lexToken(l *lexer) lexFunc {
	l.startNew()

	r := l.next(false)
	nr := l.next(true)

	switch {

	case r == '/' && nr == '/':
		return skipRestOfLine

	case r == '"' || r == '\'':
		l.backup()
		return lexString

	case r == '`':
		return lexQuotedIdentifier

	case r == '$':
		return lexParameter

	case isDigit(r):
		l.backup()
		return lexNumber

	case isIdentifierStart(r):
		l.backup()
		return lexIdentifier
	}

	// Try two letter symbols before one letter symbols

	if token, ok := symbolMap[string(r)+string(nr)]; ok && nr != RuneEOF {
		l.next(false)
		l.emitToken(token)
		return lexToken
	}

	if token, ok := symbolMap[string(r)]; ok {
		l.emitToken(token)
		return lexToken
	}

	l.emitError(fmt.Sprintf("Unexpected character %q", r))

	return nil
}

/*
skipRestOfLine skips all characters until the next newline character.
*/
func skipRestOfLine(l *lexer) lexFunc {
	r := l.next(false)

	for r != '\n' && r != RuneEOF {
		r = l.next(false)
	}

	if r == RuneEOF {
		l.emitToken(TokenEOF)
		return nil
	}

	l.line++
	l.lastnl = l.pos

	return lexToken
}

/*
lexIdentifier lexes an identifier or a keyword.
*/
func lexIdentifier(l *lexer) lexFunc {

	for isIdentifierChar(l.next(true)) {
		l.next(false)
	}

	if token, ok := keywordMap[strings.ToLower(l.input[l.start:l.pos])]; ok {
		l.emitToken(token)
	} else {
		l.emitToken(TokenIDENT)
	}

	return lexToken
}

/*
lexQuotedIdentifier lexes an identifier in backticks. Quoted identifiers can
contain any character except a backtick.
*/
func lexQuotedIdentifier(l *lexer) lexFunc {
	r := l.next(false)

	for r != '`' {
		if r == RuneEOF {
			l.emitError("Unexpected end while reading quoted identifier")
			return nil
		}
		r = l.next(false)
	}

	if l.pos-l.start == 2 {
		l.emitError("Empty quoted identifier")
		return nil
	}

	l.emitTokenAndValue(TokenIDENT, l.input[l.start+1:l.pos-1])

	return lexToken
}

/*
lexParameter lexes a query parameter.
*/
func lexParameter(l *lexer) lexFunc {

	for isIdentifierChar(l.next(true)) {
		l.next(false)
	}

	if l.pos-l.start == 1 {
		l.emitError("Parameter name expected")
		return nil
	}

	l.emitTokenAndValue(TokenPARAM, l.input[l.start+1:l.pos])

	return lexToken
}

/*
lexNumber lexes an integer or a floating point number.
*/
func lexNumber(l *lexer) lexFunc {

	acceptDigits := func() {
		for isDigit(l.next(true)) {
			l.next(false)
		}
	}

	acceptDigits()

	// A dot must be followed by a digit to be part of the number (1..3 is a range)

	if l.next(true) == '.' && isDigit(l.peekAt(1)) {
		l.next(false)
		acceptDigits()
	}

	if r := l.next(true); r == 'e' || r == 'E' {
		offset := 1
		if s := l.peekAt(1); s == '+' || s == '-' {
			offset++
		}

		if isDigit(l.peekAt(offset)) {
			for i := 0; i < offset; i++ {
				l.next(false)
			}
			acceptDigits()
		}
	}

	if isIdentifierChar(l.next(true)) {
		l.emitError(fmt.Sprintf("Invalid number %v", l.input[l.start:l.pos+1]))
		return nil
	}

	l.emitToken(TokenNUMBER)

	return lexToken
}

/*
lexString lexes a string literal. Strings can be declared with single or double
quotes. Escape sequences are interpreted.
*/
func lexString(l *lexer) lexFunc {
	endToken := l.next(false)

	r := l.next(false)
	rprev := ' '
	lLine := l.line
	lLastnl := l.lastnl

	for r != endToken || rprev == '\\' {

		if r == '\n' {
			lLine++
			lLastnl = l.pos
		}

		// A double backslash does not escape the following quote

		if rprev == '\\' && r == '\\' {
			rprev = ' '
		} else {
			rprev = r
		}

		r = l.next(false)

		if r == RuneEOF {
			l.emitError("Unexpected end while reading string value")
			return nil
		}
	}

	val := l.input[l.start+1 : l.pos-1]

	// Interpret escape sequences right away

	if endToken == '\'' {

		// Escape double quotes and unescape single quotes in a single quoted string

		val = strings.Replace(val, "\"", "\\\"", -1)
		val = strings.Replace(val, "\\'", "'", -1)
	}

	s, err := strconv.Unquote("\"" + val + "\"")
	if err != nil {
		l.emitError(err.Error() + " while parsing escape sequences")
		return nil
	}

	l.emitTokenAndValue(TokenSTRING, s)

	//  Set newline

	l.line = lLine
	l.lastnl = lLastnl

	return lexToken
}

// Helper functions
// ================

/*
skipWhiteSpace skips any number of whitespace characters. Returns false if the parser
reaches EOF while skipping whitespaces.
*/
func skipWhiteSpace(l *lexer) bool {
	r := l.next(false)

	for unicode.IsSpace(r) || unicode.IsControl(r) || r == RuneEOF {
		if r == '\n' {
			l.line++
			l.lastnl = l.pos
		}

		if r == RuneEOF {
			l.startNew()
			l.emitToken(TokenEOF)
			return false
		}

		r = l.next(false)
	}

	l.backup()

	return true
}

/*
isDigit checks if a rune is a decimal digit.
*/
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

/*
isIdentifierStart checks if a rune can start an identifier.
*/
func isIdentifierStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

/*
isIdentifierChar checks if a rune can be part of an identifier.
*/
func isIdentifierChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
