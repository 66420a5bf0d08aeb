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
)

/*
Parser data structure
*/
type parser struct {
	name   string     // Name to identify the input
	tokens []LexToken // Lexed input
	pos    int        // Current token
	clause string     // Clause which is currently parsed
}

/*
Parse parses a given input string and returns an AST. Parse only checks the
syntax of the input. Use ValidateAST to check the semantics of the result.
*/
func Parse(name string, input string) (*ASTNode, error) {
	tokens := LexToList(name, input)

	p := &parser{name: name, tokens: tokens}

	for i, t := range tokens {
		if t.ID == TokenError {
			p.clause = clauseAt(tokens[:i])
			return nil, p.newError(ErrSyntax, t.Val, &tokens[i])
		}
	}

	return p.parseQuery()
}

/*
clauseAt determines the clause of the last token in a token list.
*/
func clauseAt(tokens []LexToken) string {
	for i := len(tokens) - 1; i >= 0; i-- {
		switch tokens[i].ID {
		case TokenMATCH, TokenWHERE, TokenRETURN, TokenSKIP, TokenLIMIT:
			return strings.ToUpper(tokens[i].Val)
		case TokenORDER:
			return "ORDER BY"
		}
	}
	return ""
}

// Token handling
// ==============

/*
peek returns the current token without consuming it.
*/
func (p *parser) peek() *LexToken {
	return p.peekAt(0)
}

/*
peekAt returns a following token without consuming it. The last token (EOF)
is returned for positions after the end of the input.
*/
func (p *parser) peekAt(offset int) *LexToken {
	if i := p.pos + offset; i < len(p.tokens) {
		return &p.tokens[i]
	}
	return &p.tokens[len(p.tokens)-1]
}

/*
next consumes the current token.
*/
func (p *parser) next() *LexToken {
	t := p.peek()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

/*
accept consumes the current token if it has a given type.
*/
func (p *parser) accept(id LexTokenID) (*LexToken, bool) {
	if t := p.peek(); t.ID == id {
		return p.next(), true
	}
	return nil, false
}

/*
expect consumes the current token which must have a given type.
*/
func (p *parser) expect(id LexTokenID, what string) (*LexToken, error) {
	if t, ok := p.accept(id); ok {
		return t, nil
	}
	return nil, p.unexpected(what)
}

/*
expectName consumes a name (identifiers and keywords are allowed as names of
labels, types and properties).
*/
func (p *parser) expectName(what string) (*LexToken, error) {
	if t := p.peek(); t.ID == TokenIDENT || t.IsKeyword() {
		return p.next(), nil
	}
	return nil, p.unexpected(what)
}

/*
unexpected returns a syntax error for the current token.
*/
func (p *parser) unexpected(expected string) error {
	t := p.peek()

	if t.ID == TokenEOF {
		return p.newError(ErrSyntax, fmt.Sprintf("Unexpected end of input - %v expected", expected), t)
	}

	return p.newError(ErrSyntax, fmt.Sprintf("Unexpected term %v - %v expected", t, expected), t)
}

/*
newError creates a new compilation error for a given token.
*/
func (p *parser) newError(errType error, detail string, t *LexToken) error {
	return &Error{p.name, errType, p.clause, detail, t.Lline, t.Lpos}
}

// Clauses
// =======

/*
unsupportedClauses maps keywords of recognized but unsupported clauses to
their clause names.
*/
var unsupportedClauses = map[LexTokenID]string{
	TokenOPTIONAL: "OPTIONAL MATCH",
	TokenCREATE:   "CREATE",
	TokenMERGE:    "MERGE",
	TokenDELETE:   "DELETE",
	TokenDETACH:   "DETACH DELETE",
	TokenSET:      "SET",
	TokenREMOVE:   "REMOVE",
	TokenWITH:     "WITH",
	TokenUNWIND:   "UNWIND",
	TokenUNION:    "UNION",
	TokenCALL:     "CALL",
}

/*
parseQuery parses a complete query.
*/
func (p *parser) parseQuery() (*ASTNode, error) {
	query := newASTNode(NodeQUERY, p.peek(), nil)

	for {
		t := p.peek()

		switch t.ID {

		case TokenMATCH:
			match, err := p.parseMatch()
			if err != nil {
				return nil, err
			}
			query.Children = append(query.Children, match)

		case TokenRETURN:
			if err := p.parseReturnPart(query); err != nil {
				return nil, err
			}

			if t := p.peek(); t.ID != TokenEOF {
				return nil, p.unexpectedClause(t)
			}

			return query, nil

		case TokenEOF:
			return nil, p.newError(ErrSyntax, "Query must end with a RETURN clause", t)

		default:
			return nil, p.unexpectedClause(t)
		}
	}
}

/*
unexpectedClause returns an error for a token which does not start a
supported clause.
*/
func (p *parser) unexpectedClause(t *LexToken) error {

	if name, ok := unsupportedClauses[t.ID]; ok {
		p.clause = name
		return p.newError(ErrUnsupported, fmt.Sprintf("%v clauses are not supported", name), t)
	}

	return p.unexpected("MATCH or RETURN clause")
}

/*
parseMatch parses a MATCH clause with an optional WHERE clause.
*/
func (p *parser) parseMatch() (*ASTNode, error) {
	p.clause = "MATCH"

	match := newASTNode(NodeMATCH, p.next(), nil)

	for {
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}

		match.Children = append(match.Children, pattern)

		if _, ok := p.accept(TokenCOMMA); !ok {
			break
		}
	}

	if t, ok := p.accept(TokenWHERE); ok {
		p.clause = "WHERE"

		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		match.Children = append(match.Children, newASTNode(NodeWHERE, t, nil, cond))
	}

	return match, nil
}

/*
parseReturnPart parses the RETURN clause and the following ORDER BY, SKIP and
LIMIT clauses.
*/
func (p *parser) parseReturnPart(query *ASTNode) error {
	p.clause = "RETURN"

	ret := newASTNode(NodeRETURN, p.next(), nil)

	if t, ok := p.accept(TokenDISTINCT); ok {
		ret.Children = append(ret.Children, newASTNode(NodeDISTINCT, t, nil))
	}

	if t, ok := p.accept(TokenTIMES); ok {
		ret.Children = append(ret.Children, newASTNode(NodeSTAR, t, nil))

		if _, ok := p.accept(TokenCOMMA); !ok {
			query.Children = append(query.Children, ret)
			return p.parseModifiers(query)
		}
	}

	for {
		t := p.peek()

		expr, err := p.parseExpression()
		if err != nil {
			return err
		}

		item := newASTNode(NodeRETURNITEM, t, PrettyPrint(expr), expr)

		if _, ok := p.accept(TokenAS); ok {
			at, err := p.expectName("alias")
			if err != nil {
				return err
			}

			item.Value = at.Val
			item.Children = append(item.Children, newASTNode(NodeALIAS, at, at.Val))
		}

		ret.Children = append(ret.Children, item)

		if _, ok := p.accept(TokenCOMMA); !ok {
			break
		}
	}

	query.Children = append(query.Children, ret)

	return p.parseModifiers(query)
}

/*
parseModifiers parses ORDER BY, SKIP and LIMIT clauses.
*/
func (p *parser) parseModifiers(query *ASTNode) error {

	if t, ok := p.accept(TokenORDER); ok {
		p.clause = "ORDER BY"

		if _, err := p.expect(TokenBY, "BY"); err != nil {
			return err
		}

		orderBy := newASTNode(NodeORDERBY, t, nil)

		for {
			st := p.peek()

			expr, err := p.parseExpression()
			if err != nil {
				return err
			}

			dir := "asc"
			if _, ok := p.accept(TokenDESC); ok {
				dir = "desc"
			} else {
				p.accept(TokenASC)
			}

			orderBy.Children = append(orderBy.Children, newASTNode(NodeSORTITEM, st, dir, expr))

			if _, ok := p.accept(TokenCOMMA); !ok {
				break
			}
		}

		query.Children = append(query.Children, orderBy)
	}

	for _, c := range []struct {
		id   LexTokenID
		node string
		name string
	}{{TokenSKIP, NodeSKIP, "SKIP"}, {TokenLIMIT, NodeLIMIT, "LIMIT"}} {

		if t, ok := p.accept(c.id); ok {
			p.clause = c.name

			expr, err := p.parseExpression()
			if err != nil {
				return err
			}

			query.Children = append(query.Children, newASTNode(c.node, t, nil, expr))
		}
	}

	return nil
}

// Patterns
// ========

/*
parsePattern parses a pattern which is a chain of node and relationship
patterns.
*/
func (p *parser) parsePattern() (*ASTNode, error) {
	t := p.peek()

	if t.ID == TokenIDENT && p.peekAt(1).ID == TokenEQ {
		return nil, p.newError(ErrUnsupported, "Named paths are not supported", t)
	}

	pattern := newASTNode(NodePATTERN, t, nil)

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}

	pattern.Children = append(pattern.Children, node)

	for t := p.peek(); t.ID == TokenMINUS || t.ID == TokenLT; t = p.peek() {

		rel, err := p.parseRelPattern()
		if err != nil {
			return nil, err
		}

		node, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}

		pattern.Children = append(pattern.Children, rel, node)
	}

	return pattern, nil
}

/*
parseNodePattern parses a node pattern: (var:Label1:Label2 {prop: value})
*/
func (p *parser) parseNodePattern() (*ASTNode, error) {
	t, err := p.expect(TokenLPAREN, "(")
	if err != nil {
		return nil, err
	}

	node := newASTNode(NodeNODEPAT, t, nil)

	if vt, ok := p.accept(TokenIDENT); ok {
		node.Children = append(node.Children, newASTNode(NodeVARIABLE, vt, vt.Val))
	}

	if lt := p.peek(); lt.ID == TokenCOLON {
		labels := newASTNode(NodeLABELS, lt, nil)

		for {
			if _, ok := p.accept(TokenCOLON); !ok {
				break
			}

			nt, err := p.expectName("label")
			if err != nil {
				return nil, err
			}

			labels.Children = append(labels.Children, newASTNode(NodeLABEL, nt, nt.Val))
		}

		node.Children = append(node.Children, labels)
	}

	if p.peek().ID == TokenLBRACE {
		props, err := p.parseMap()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, props)
	}

	if _, err := p.expect(TokenRPAREN, ")"); err != nil {
		return nil, err
	}

	return node, nil
}

/*
parseRelPattern parses a relationship pattern: -[var:TYPE1|TYPE2 {prop: value}]->
*/
func (p *parser) parseRelPattern() (*ASTNode, error) {
	t := p.peek()

	_, left := p.accept(TokenLT)

	if _, err := p.expect(TokenMINUS, "-"); err != nil {
		return nil, err
	}

	rel := newASTNode(NodeRELPAT, t, nil)

	if _, ok := p.accept(TokenLBRACK); ok {

		if vt, ok := p.accept(TokenIDENT); ok {
			rel.Children = append(rel.Children, newASTNode(NodeVARIABLE, vt, vt.Val))
		}

		if ct, ok := p.accept(TokenCOLON); ok {
			types := newASTNode(NodeRELTYPES, ct, nil)

			for {
				nt, err := p.expectName("relationship type")
				if err != nil {
					return nil, err
				}

				types.Children = append(types.Children, newASTNode(NodeLABEL, nt, nt.Val))

				if _, ok := p.accept(TokenPIPE); !ok {
					break
				}

				p.accept(TokenCOLON)
			}

			rel.Children = append(rel.Children, types)
		}

		if st := p.peek(); st.ID == TokenTIMES {
			return nil, p.newError(ErrUnsupported, "Variable length relationships are not supported", st)
		}

		if p.peek().ID == TokenLBRACE {
			props, err := p.parseMap()
			if err != nil {
				return nil, err
			}
			rel.Children = append(rel.Children, props)
		}

		if _, err := p.expect(TokenRBRACK, "]"); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(TokenMINUS, "-"); err != nil {
		return nil, err
	}

	_, right := p.accept(TokenGT)

	switch {
	case left && right:
		return nil, p.newError(ErrSyntax, "Relationship cannot point in both directions", t)
	case left:
		rel.Value = DirectionIn
	case right:
		rel.Value = DirectionOut
	default:
		rel.Value = DirectionBoth
	}

	return rel, nil
}

/*
parseMap parses a map literal: {key: value, ...}
*/
func (p *parser) parseMap() (*ASTNode, error) {
	t, err := p.expect(TokenLBRACE, "{")
	if err != nil {
		return nil, err
	}

	m := newASTNode(NodeMAP, t, nil)

	if _, ok := p.accept(TokenRBRACE); ok {
		return m, nil
	}

	for {
		kt, err := p.expectName("map key")
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenCOLON, ":"); err != nil {
			return nil, err
		}

		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		m.Children = append(m.Children, newASTNode(NodeMAPENTRY, kt, kt.Val, val))

		if _, ok := p.accept(TokenCOMMA); !ok {
			break
		}
	}

	if _, err := p.expect(TokenRBRACE, "}"); err != nil {
		return nil, err
	}

	return m, nil
}

// Expressions
// ===========

/*
parseExpression parses an expression. Operator precedence from low to high:
OR, XOR, AND, NOT, comparisons, additive, multiplicative, unary minus,
property access.
*/
func (p *parser) parseExpression() (*ASTNode, error) {
	return p.parseBinary(0)
}

/*
binaryLevels lists the binary boolean operators by precedence.
*/
var binaryLevels = []struct {
	token LexTokenID
	node  string
}{
	{TokenOR, NodeOR},
	{TokenXOR, NodeXOR},
	{TokenAND, NodeAND},
}

/*
parseBinary parses left associative boolean operators of a given precedence
level.
*/
func (p *parser) parseBinary(level int) (*ASTNode, error) {

	if level == len(binaryLevels) {
		return p.parseNot()
	}

	left, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}

	for t, ok := p.accept(binaryLevels[level].token); ok; t, ok = p.accept(binaryLevels[level].token) {

		right, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}

		left = newASTNode(binaryLevels[level].node, t, nil, left, right)
	}

	return left, nil
}

/*
parseNot parses a negation.
*/
func (p *parser) parseNot() (*ASTNode, error) {

	if t, ok := p.accept(TokenNOT); ok {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return newASTNode(NodeNOT, t, nil, operand), nil
	}

	return p.parseComparison()
}

/*
comparisonOps maps comparison tokens to AST node names.
*/
var comparisonOps = map[LexTokenID]string{
	TokenEQ:       NodeEQ,
	TokenNEQ:      NodeNEQ,
	TokenLT:       NodeLT,
	TokenGT:       NodeGT,
	TokenLEQ:      NodeLEQ,
	TokenGEQ:      NodeGEQ,
	TokenIN:       NodeIN,
	TokenCONTAINS: NodeCONTAINS,
}

/*
parseComparison parses comparisons, list membership, string matching and null
checks.
*/
func (p *parser) parseComparison() (*ASTNode, error) {

	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for {
		t := p.peek()

		name, ok := comparisonOps[t.ID]

		switch t.ID {

		case TokenREGEX:
			return nil, p.newError(ErrUnsupported, "Regular expression matching is not supported", t)

		case TokenSTARTS, TokenENDS:
			p.next()

			if _, err := p.expect(TokenWITH, "WITH"); err != nil {
				return nil, err
			}

			name, ok = NodeSTARTSWITH, true
			if t.ID == TokenENDS {
				name = NodeENDSWITH
			}

		case TokenIS:
			p.next()

			name = NodeISNULL
			if _, neg := p.accept(TokenNOT); neg {
				name = NodeISNOTNULL
			}

			if _, err := p.expect(TokenNULL, "NULL"); err != nil {
				return nil, err
			}

			left = newASTNode(name, t, nil, left)
			continue

		default:
			if !ok {
				return left, nil
			}
			p.next()
		}

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		left = newASTNode(name, t, nil, left, right)
	}
}

/*
parseAdditive parses additions and subtractions.
*/
func (p *parser) parseAdditive() (*ASTNode, error) {

	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for t := p.peek(); t.ID == TokenPLUS || t.ID == TokenMINUS; t = p.peek() {
		p.next()

		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		name := NodePLUS
		if t.ID == TokenMINUS {
			name = NodeMINUS
		}

		left = newASTNode(name, t, nil, left, right)
	}

	return left, nil
}

/*
parseMultiplicative parses multiplications, divisions and modulo operations.
*/
func (p *parser) parseMultiplicative() (*ASTNode, error) {

	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for t := p.peek(); t.ID == TokenTIMES || t.ID == TokenDIV || t.ID == TokenMOD; t = p.peek() {
		p.next()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		name := NodeTIMES
		if t.ID == TokenDIV {
			name = NodeDIV
		} else if t.ID == TokenMOD {
			name = NodeMOD
		}

		left = newASTNode(name, t, nil, left, right)
	}

	return left, nil
}

/*
parseUnary parses a unary minus or plus. Negative number literals are folded
into a single value.
*/
func (p *parser) parseUnary() (*ASTNode, error) {

	if _, ok := p.accept(TokenPLUS); ok {
		return p.parseUnary()
	}

	if t, ok := p.accept(TokenMINUS); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		if operand.Name == NodeVALUE {
			switch v := operand.Value.(type) {
			case int64:
				operand.Value = -v
				operand.Token = t
				return operand, nil
			case float64:
				operand.Value = -v
				operand.Token = t
				return operand, nil
			}
		}

		return newASTNode(NodeNEG, t, nil, operand), nil
	}

	return p.parsePostfix()
}

/*
parsePostfix parses property access.
*/
func (p *parser) parsePostfix() (*ASTNode, error) {

	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		t := p.peek()

		switch t.ID {

		case TokenDOT:
			p.next()

			nt, err := p.expectName("property name")
			if err != nil {
				return nil, err
			}

			expr = newASTNode(NodePROPERTY, nt, nt.Val, expr)

		case TokenCOLON:

			// Label predicate: n:Label1:Label2

			if expr.Name != NodeVARIABLE {
				return expr, nil
			}

			var labels []string

			for {
				if _, ok := p.accept(TokenCOLON); !ok {
					break
				}

				nt, err := p.expectName("label")
				if err != nil {
					return nil, err
				}

				labels = append(labels, nt.Val)
			}

			expr = newASTNode(NodeHASLABELS, t, labels, expr)

		case TokenLBRACK:
			return nil, p.newError(ErrUnsupported, "List indexing and slicing is not supported", t)

		default:
			return expr, nil
		}
	}
}

/*
parsePrimary parses literals, parameters, variables, function calls, lists,
maps and parenthesized expressions.
*/
func (p *parser) parsePrimary() (*ASTNode, error) {
	t := p.peek()

	switch t.ID {

	case TokenNUMBER:
		p.next()
		return p.parseNumber(t)

	case TokenSTRING:
		p.next()
		return newASTNode(NodeVALUE, t, t.Val), nil

	case TokenTRUE:
		p.next()
		return newASTNode(NodeTRUE, t, nil), nil

	case TokenFALSE:
		p.next()
		return newASTNode(NodeFALSE, t, nil), nil

	case TokenNULL:
		p.next()
		return newASTNode(NodeNULL, t, nil), nil

	case TokenPARAM:
		p.next()
		return newASTNode(NodePARAM, t, t.Val), nil

	case TokenLBRACE:
		return p.parseMap()

	case TokenLBRACK:
		return p.parseList()

	case TokenLPAREN:
		if p.isPatternPredicate() {
			return nil, p.newError(ErrUnsupported, "Pattern predicates are not supported", t)
		}

		p.next()

		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenRPAREN, ")"); err != nil {
			return nil, err
		}

		return expr, nil

	case TokenIDENT:
		p.next()

		if p.peek().ID == TokenLPAREN {
			return p.parseFunction(t)
		}

		return newASTNode(NodeVARIABLE, t, t.Val), nil

	case TokenCASE:
		return nil, p.newError(ErrUnsupported, "CASE expressions are not supported", t)

	case TokenEXISTS:
		return nil, p.newError(ErrUnsupported, "EXISTS subqueries are not supported", t)
	}

	return nil, p.unexpected("expression")
}

/*
isPatternPredicate checks if the current position starts a pattern like
(a)-->(b) or (a:Label) instead of a parenthesized expression.
*/
func (p *parser) isPatternPredicate() bool {
	t1, t2 := p.peekAt(1), p.peekAt(2)

	startsRel := func(offset int) bool {
		a, b := p.peekAt(offset), p.peekAt(offset+1)
		return (a.ID == TokenMINUS && (b.ID == TokenMINUS || b.ID == TokenLBRACK)) ||
			(a.ID == TokenLT && b.ID == TokenMINUS && (p.peekAt(offset+2).ID == TokenMINUS ||
				p.peekAt(offset+2).ID == TokenLBRACK))
	}

	switch {
	case t1.ID == TokenRPAREN:
		return startsRel(2)
	case t1.ID == TokenCOLON:
		return true
	case t1.ID == TokenIDENT && t2.ID == TokenCOLON:
		return true
	case t1.ID == TokenIDENT && t2.ID == TokenRPAREN:
		return startsRel(3)
	}

	return false
}

/*
parseNumber parses a number literal.
*/
func (p *parser) parseNumber(t *LexToken) (*ASTNode, error) {

	if !strings.ContainsAny(t.Val, ".eE") {
		i, err := strconv.ParseInt(t.Val, 10, 64)
		if err != nil {
			return nil, p.newError(ErrSyntax, fmt.Sprintf("Invalid integer %v", t.Val), t)
		}
		return newASTNode(NodeVALUE, t, i), nil
	}

	f, err := strconv.ParseFloat(t.Val, 64)
	if err != nil {
		return nil, p.newError(ErrSyntax, fmt.Sprintf("Invalid number %v", t.Val), t)
	}

	return newASTNode(NodeVALUE, t, f), nil
}

/*
parseList parses a list literal: [expr, ...]
*/
func (p *parser) parseList() (*ASTNode, error) {
	list := newASTNode(NodeLIST, p.next(), nil)

	if _, ok := p.accept(TokenRBRACK); ok {
		return list, nil
	}

	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		list.Children = append(list.Children, expr)

		if _, ok := p.accept(TokenCOMMA); !ok {
			break
		}
	}

	if _, err := p.expect(TokenRBRACK, "]"); err != nil {
		return nil, err
	}

	return list, nil
}

/*
parseFunction parses the arguments of a function call. The function name
token has already been consumed.
*/
func (p *parser) parseFunction(t *LexToken) (*ASTNode, error) {
	p.next()

	fn := newASTNode(NodeFUNC, t, t.Val)

	if st, ok := p.accept(TokenTIMES); ok {
		if !strings.EqualFold(t.Val, "count") {
			return nil, p.newError(ErrSyntax, fmt.Sprintf("Function %v does not accept *", t.Val), st)
		}

		if _, err := p.expect(TokenRPAREN, ")"); err != nil {
			return nil, err
		}

		return newASTNode(NodeCOUNTALL, t, t.Val), nil
	}

	if dt, ok := p.accept(TokenDISTINCT); ok {
		fn.Children = append(fn.Children, newASTNode(NodeDISTINCT, dt, nil))
	}

	if _, ok := p.accept(TokenRPAREN); ok {
		return fn, nil
	}

	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		fn.Children = append(fn.Children, arg)

		if _, ok := p.accept(TokenCOMMA); !ok {
			break
		}
	}

	if _, err := p.expect(TokenRPAREN, ")"); err != nil {
		return nil, err
	}

	return fn, nil
}
