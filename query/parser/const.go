/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package parser contains the query language parser.

The query language is a pattern matching language for property graphs. A query
consists of one or more MATCH clauses followed by a RETURN clause:

	MATCH (a:Person {name: 'Alice'})-[r:KNOWS|LIKES]->(b:Person), (b)<--(c)
	WHERE a.age > 30 AND NOT b.name STARTS WITH 'X'
	RETURN DISTINCT a.name AS name, count(c) AS friends
	ORDER BY friends DESC
	SKIP 10 LIMIT 5

The lexer turns a query string into a list of tokens. The parser then builds
an abstract syntax tree of ASTNode objects using recursive descent. Every
clause is an ASTNode whose children are patterns, expressions or items of the
clause. ValidateAST checks the tree for unbound variables, unknown functions
and type mismatches which can be detected before execution.

Errors are reported as *Error values whose Type is one of ErrSyntax,
ErrSemantic or ErrUnsupported.
*/
package parser

/*
LexTokenID represents a unique lexer token ID
*/
type LexTokenID int

/*
Available lexer token types
*/
const (
	TokenError LexTokenID = iota // Lexing error token with a message as val
	TokenEOF                     // End-of-file token

	TokenIDENT  // Identifier (variable, label, property or function name)
	TokenNUMBER // Number literal
	TokenSTRING // String literal
	TokenPARAM  // Query parameter ($name)

	TOKENodeSYMBOLS // Used to separate symbols from other tokens in this list

	// Brackets

	TokenLPAREN
	TokenRPAREN
	TokenLBRACK
	TokenRBRACK
	TokenLBRACE
	TokenRBRACE

	// Separators

	TokenCOLON
	TokenCOMMA
	TokenDOT
	TokenDOTDOT
	TokenPIPE

	// Arithmetic operators

	TokenPLUS
	TokenMINUS
	TokenTIMES
	TokenDIV
	TokenMOD

	// Comparison operators

	TokenEQ
	TokenNEQ
	TokenLT
	TokenGT
	TokenLEQ
	TokenGEQ
	TokenREGEX

	TOKENodeKEYWORDS // Used to separate keywords from other tokens in this list

	TokenMATCH
	TokenOPTIONAL
	TokenWHERE
	TokenRETURN
	TokenDISTINCT
	TokenAS
	TokenORDER
	TokenBY
	TokenASC
	TokenDESC
	TokenSKIP
	TokenLIMIT
	TokenAND
	TokenOR
	TokenXOR
	TokenNOT
	TokenIN
	TokenSTARTS
	TokenENDS
	TokenWITH
	TokenCONTAINS
	TokenIS
	TokenNULL
	TokenTRUE
	TokenFALSE

	// Recognized keywords which cannot be executed

	TokenCREATE
	TokenMERGE
	TokenDELETE
	TokenDETACH
	TokenSET
	TokenREMOVE
	TokenUNWIND
	TokenUNION
	TokenCALL
	TokenCASE
	TokenEXISTS
)

/*
Available parser AST node types
*/
const (
	NodeQUERY = "query"

	// Clauses

	NodeMATCH   = "match"
	NodeWHERE   = "where"
	NodeRETURN  = "return"
	NodeORDERBY = "orderby"
	NodeSKIP    = "skip"
	NodeLIMIT   = "limit"

	// Patterns

	NodePATTERN  = "pattern"
	NodeNODEPAT  = "nodepattern"
	NodeRELPAT   = "relpattern"
	NodeLABELS   = "labels"
	NodeLABEL    = "label"
	NodeRELTYPES = "reltypes"

	// Projection and ordering

	NodeDISTINCT   = "distinct"
	NodeRETURNITEM = "returnitem"
	NodeALIAS      = "alias"
	NodeSTAR       = "star"
	NodeSORTITEM   = "sortitem"

	// Values

	NodeVARIABLE = "variable"
	NodePARAM    = "param"
	NodeVALUE    = "value"
	NodeTRUE     = "true"
	NodeFALSE    = "false"
	NodeNULL     = "null"
	NodeLIST     = "list"
	NodeMAP      = "map"
	NodeMAPENTRY = "mapentry"
	NodePROPERTY = "property"
	NodeFUNC     = "func"
	NodeCOUNTALL = "countall"

	// Boolean operations

	NodeOR  = "or"
	NodeXOR = "xor"
	NodeAND = "and"
	NodeNOT = "not"

	// Comparisons

	NodeEQ  = "="
	NodeNEQ = "<>"
	NodeLT  = "<"
	NodeGT  = ">"
	NodeLEQ = "<="
	NodeGEQ = ">="

	// List and string operations

	NodeIN         = "in"
	NodeSTARTSWITH = "startswith"
	NodeENDSWITH   = "endswith"
	NodeCONTAINS   = "contains"
	NodeISNULL     = "isnull"
	NodeISNOTNULL  = "isnotnull"

	// Label check which is created by the planner for additional node labels

	NodeHASLABELS = "haslabels"

	// Simple arithmetic expressions

	NodePLUS  = "plus"
	NodeMINUS = "minus"
	NodeTIMES = "times"
	NodeDIV   = "div"
	NodeMOD   = "mod"
	NodeNEG   = "neg"
)

/*
Relationship directions of a relationship pattern (stored in the value of a
relpattern node)
*/
const (
	DirectionOut  = "out"
	DirectionIn   = "in"
	DirectionBoth = "both"
)
