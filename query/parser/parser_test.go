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
	"errors"
	"fmt"
	"testing"
)

func TestLexer(t *testing.T) {

	input := `MATCH (a:Person)-[:KNOWS]->(b) WHERE a.age >= 3.5 AND a.name <> 'x\'y' RETURN $p // comment`

	if res := fmt.Sprint(LexToList("test", input)); res != `[<MATCH> ( "a" : "Person" ) - [ : "KNOWS" ] - > ( "b" ) `+
		`<WHERE> "a" . "age" >= "3.5" <AND> "a" . "name" <> "x'y" <RETURN> $p EOF]` {
		t.Error("Unexpected lexer result:", res)
		return
	}

	// Keywords are case insensitive and numbers stop before a range operator

	if res := fmt.Sprint(LexToList("test", "match return Descending 1..3 1e3 `weird name`")); res !=
		`[<MATCH> <RETURN> <DESCENDING> "1" .. "3" "1e3" "weird name" EOF]` {
		t.Error("Unexpected lexer result:", res)
		return
	}

	tokens := LexToList("test", "MATCH\n  (a)")
	if tokens[1].PosString() != "Line 2, Pos 3" {
		t.Error("Unexpected position:", tokens[1].PosString())
		return
	}

	if res := fmt.Sprint(LexToList("test", "'abc")); res != "[Error: Unexpected end while reading string value (Line 1, Pos 1)]" {
		t.Error("Unexpected lexer result:", res)
		return
	}

	if res := fmt.Sprint(LexToList("test", "12abc")); res != "[Error: Invalid number 12a (Line 1, Pos 1)]" {
		t.Error("Unexpected lexer result:", res)
		return
	}
}

func TestParse(t *testing.T) {

	ast, err := Parse("test", "MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name, b.name")
	if err != nil {
		t.Error(err)
		return
	}

	if res := ast.String(); res != `query
  match
    pattern
      nodepattern
        variable: a
        labels
          label: Person
      relpattern: out
        reltypes
          label: KNOWS
      nodepattern
        variable: b
        labels
          label: Person
  return
    returnitem: a.name
      property: name
        variable: a
    returnitem: b.name
      property: name
        variable: b
` {
		t.Error("Unexpected result:", res)
		return
	}

	ast, _ = Parse("test", "MATCH (a) RETURN a.name, toUpper(a.name) AS up, count(*)")

	var columns []string
	for _, item := range ast.Child(NodeRETURN).Children {
		columns = append(columns, item.Str())
	}

	if res := fmt.Sprint(columns); res != "[a.name up count(*)]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Negative number literals are folded

	ast, _ = Parse("test", "RETURN -5, - 2.5, -(1)")
	if res := fmt.Sprint(ast.Child(NodeRETURN).Children[0].Children[0].Value,
		ast.Child(NodeRETURN).Children[1].Children[0].Value); res != "-5 -2.5" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestPrettyPrint(t *testing.T) {

	testPrettyPrint := func(input, expected string) {
		t.Helper()

		ast, err := Parse("test", input)
		if err != nil {
			t.Error(err)
			return
		}

		res := PrettyPrint(ast)
		if res != expected {
			t.Errorf("Unexpected result:\n%v\nexpected:\n%v", res, expected)
			return
		}

		ast2, err := Parse("test", res)
		if err != nil {
			t.Error(err)
			return
		}

		if !ast.Equal(ast2) {
			t.Errorf("ASTs are not equal:\n%v\n%v", ast, ast2)
		}
	}

	testPrettyPrint(`match (a:Person {name: 'Alice'})-[r:KNOWS|LIKES]->(b), (b)<--(c) `+
		`where a.age > 30 and not b.name starts with "X" `+
		`return distinct a.name as name, count(distinct c) as friends order by friends desc skip 1 limit 5`,
		`MATCH (a:Person {name: 'Alice'})-[r:KNOWS|LIKES]->(b), (b)<--(c)
WHERE a.age > 30 AND NOT b.name STARTS WITH 'X'
RETURN DISTINCT a.name AS name, count(DISTINCT c) AS friends
ORDER BY friends DESC
SKIP 1
LIMIT 5`)

	testPrettyPrint(`MATCH (n) WHERE (n.a + 1) * 2 = -n.b OR n.c IN [1, 2.5, 'x'] XOR n.d IS NOT NULL `+
		`RETURN n.a - (n.b - 1), {k: [true, false, null]}`,
		`MATCH (n)
WHERE (n.a + 1) * 2 = -n.b OR n.c IN [1, 2.5, 'x'] XOR n.d IS NOT NULL
RETURN n.a - (n.b - 1), {k: [true, false, null]}`)

	testPrettyPrint("MATCH (n) WHERE n:A:B AND NOT n:C RETURN n:D", "MATCH (n)\nWHERE n:A:B AND NOT n:C\nRETURN n:D")

	testPrettyPrint("MATCH (`my var`:`Odd Label`)-[:`TYPE`]-(x) RETURN *",
		"MATCH (`my var`:`Odd Label`)-[:TYPE]-(x)\nRETURN *")

	testPrettyPrint(`MATCH (d:Doc) WHERE search(d.text, "it's") RETURN d ORDER BY d.title, id(d) DESC`,
		`MATCH (d:Doc)
WHERE search(d.text, 'it\'s')
RETURN d
ORDER BY d.title, id(d) DESC`)
}

func TestParseErrors(t *testing.T) {

	testError := func(input string, category error, expected string) {
		t.Helper()

		_, err := Parse("test", input)

		if !errors.Is(err, category) || err.Error() != expected {
			t.Error("Unexpected result:", err)
		}
	}

	testError("MATCH (a:Person RETURN a", ErrSyntax,
		"Syntax error in test (MATCH clause): Unexpected term <RETURN> - ) expected (Line:1 Pos:17)")

	testError("MATCH (a)", ErrSyntax,
		"Syntax error in test (MATCH clause): Query must end with a RETURN clause (Line:1 Pos:10)")

	testError("MATCH (a) RETURN a.name # x", ErrSyntax,
		"Syntax error in test (RETURN clause): Unexpected character '#' (Line:1 Pos:25)")

	testError("MATCH (a)<-->(b) RETURN a", ErrSyntax,
		"Syntax error in test (MATCH clause): Relationship cannot point in both directions (Line:1 Pos:10)")

	testError("MATCH (a) RETURN a WHERE a.x = 1", ErrSyntax,
		"Syntax error in test (RETURN clause): Unexpected term <WHERE> - MATCH or RETURN clause expected (Line:1 Pos:20)")

	testError("MATCH (a) CREATE (b) RETURN a", ErrUnsupported,
		"Unsupported feature in test (CREATE clause): CREATE clauses are not supported (Line:1 Pos:11)")

	testError("OPTIONAL MATCH (a) RETURN a", ErrUnsupported,
		"Unsupported feature in test (OPTIONAL MATCH clause): OPTIONAL MATCH clauses are not supported (Line:1 Pos:1)")

	testError("MATCH (a)-[*1..3]->(b) RETURN a", ErrUnsupported,
		"Unsupported feature in test (MATCH clause): Variable length relationships are not supported (Line:1 Pos:12)")

	testError("MATCH (a) WHERE a.name =~ 'A.*' RETURN a", ErrUnsupported,
		"Unsupported feature in test (WHERE clause): Regular expression matching is not supported (Line:1 Pos:24)")

	testError("MATCH (a) WHERE (a)-->(b) RETURN a", ErrUnsupported,
		"Unsupported feature in test (WHERE clause): Pattern predicates are not supported (Line:1 Pos:17)")

	testError("MATCH (a) RETURN a UNION MATCH (b) RETURN b", ErrUnsupported,
		"Unsupported feature in test (UNION clause): UNION clauses are not supported (Line:1 Pos:20)")

	if Category(&Error{Type: ErrSemantic}) != "semantic" || Category(errors.New("x")) != "" {
		t.Error("Unexpected category")
		return
	}
}

func TestValidate(t *testing.T) {

	testValidate := func(input string, expected string) {
		t.Helper()

		ast, err := Parse("test", input)
		if err != nil {
			t.Error(err)
			return
		}

		err = ValidateAST("test", ast)

		if expected == "" {
			if err != nil {
				t.Error("Unexpected error:", err)
			}
			return
		}

		if !errors.Is(err, ErrSemantic) || err.Error() != expected {
			t.Error("Unexpected result:", err)
		}
	}

	testValidate("MATCH (a:Person) WHERE a.age > $min RETURN a.name AS name, count(*) AS c ORDER BY c DESC LIMIT 3", "")
	testValidate("MATCH (a)-[r]->(b) RETURN type(r), labels(b), a ORDER BY a.name SKIP $s", "")
	testValidate("MATCH (a), (a)-->(b) RETURN a, b", "")
	testValidate("RETURN 1 + 2 AS three", "")

	testValidate("MATCH (a) RETURN b",
		"Semantic error in test (RETURN clause): Variable b is not bound (Line:1 Pos:18)")

	testValidate("MATCH (a) WHERE sum(a.age) > 1 RETURN a",
		"Semantic error in test (WHERE clause): Aggregate function sum is not allowed here (Line:1 Pos:17)")

	testValidate("MATCH (a) RETURN sum('x')",
		"Semantic error in test (RETURN clause): Type mismatch: sum expects a number as argument 1 not a string (Line:1 Pos:18)")

	testValidate("MATCH (a) WHERE a.name < 5 + 'x' RETURN a",
		"Semantic error in test (WHERE clause): Type mismatch: + cannot be applied to number and string (Line:1 Pos:28)")

	testValidate("MATCH (a) RETURN a.name, count(a) ORDER BY a.age",
		"Semantic error in test (ORDER BY clause): Variable a is not part of the result (Line:1 Pos:44)")

	testValidate("MATCH (a)-[r]->(b), (b)-[r]->(c) RETURN a",
		"Semantic error in test (MATCH clause): Variable r is already bound to a relationship (Line:1 Pos:26)")

	testValidate("MATCH (a) RETURN a LIMIT -1",
		"Semantic error in test (LIMIT clause): LIMIT requires a non-negative integer (Line:1 Pos:26)")

	testValidate("MATCH (a) RETURN foo(a)",
		"Semantic error in test (RETURN clause): Unknown function foo (Line:1 Pos:18)")

	testValidate("MATCH (a) RETURN a.x + count(a)",
		"Semantic error in test (RETURN clause): Variable a must be used inside an aggregate function (Line:1 Pos:18)")

	testValidate("MATCH (a) RETURN a, a",
		"Semantic error in test (RETURN clause): Multiple result columns with the name a (Line:1 Pos:21)")
}
