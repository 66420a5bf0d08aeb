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
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/stringutil"
)

/*
Map of pretty printer templates for AST nodes

There is special treatment for NodeVALUE, NodeVARIABLE, NodePARAM,
NodePROPERTY, NodeFUNC, NodeCOUNTALL, NodeLIST, NodeMAP, NodeHASLABELS, all
pattern nodes and all clause nodes.
*/
var prettyPrinterMap = map[string]*template.Template{
	NodeTRUE:  template.Must(template.New(NodeTRUE).Parse("true")),
	NodeFALSE: template.Must(template.New(NodeFALSE).Parse("false")),
	NodeNULL:  template.Must(template.New(NodeNULL).Parse("null")),

	// Boolean operations

	NodeOR + "_2":  template.Must(template.New(NodeOR).Parse("{{.c1}} OR {{.c2}}")),
	NodeXOR + "_2": template.Must(template.New(NodeXOR).Parse("{{.c1}} XOR {{.c2}}")),
	NodeAND + "_2": template.Must(template.New(NodeAND).Parse("{{.c1}} AND {{.c2}}")),
	NodeNOT + "_1": template.Must(template.New(NodeNOT).Parse("NOT {{.c1}}")),

	NodeGEQ + "_2": template.Must(template.New(NodeGEQ).Parse("{{.c1}} >= {{.c2}}")),
	NodeLEQ + "_2": template.Must(template.New(NodeLEQ).Parse("{{.c1}} <= {{.c2}}")),
	NodeNEQ + "_2": template.Must(template.New(NodeNEQ).Parse("{{.c1}} <> {{.c2}}")),
	NodeEQ + "_2":  template.Must(template.New(NodeEQ).Parse("{{.c1}} = {{.c2}}")),
	NodeGT + "_2":  template.Must(template.New(NodeGT).Parse("{{.c1}} > {{.c2}}")),
	NodeLT + "_2":  template.Must(template.New(NodeLT).Parse("{{.c1}} < {{.c2}}")),

	// List and string operations

	NodeIN + "_2":         template.Must(template.New(NodeIN).Parse("{{.c1}} IN {{.c2}}")),
	NodeSTARTSWITH + "_2": template.Must(template.New(NodeSTARTSWITH).Parse("{{.c1}} STARTS WITH {{.c2}}")),
	NodeENDSWITH + "_2":   template.Must(template.New(NodeENDSWITH).Parse("{{.c1}} ENDS WITH {{.c2}}")),
	NodeCONTAINS + "_2":   template.Must(template.New(NodeCONTAINS).Parse("{{.c1}} CONTAINS {{.c2}}")),
	NodeISNULL + "_1":     template.Must(template.New(NodeISNULL).Parse("{{.c1}} IS NULL")),
	NodeISNOTNULL + "_1":  template.Must(template.New(NodeISNOTNULL).Parse("{{.c1}} IS NOT NULL")),

	// Simple arithmetic expressions

	NodePLUS + "_2":  template.Must(template.New(NodePLUS).Parse("{{.c1}} + {{.c2}}")),
	NodeMINUS + "_2": template.Must(template.New(NodeMINUS).Parse("{{.c1}} - {{.c2}}")),
	NodeTIMES + "_2": template.Must(template.New(NodeTIMES).Parse("{{.c1}} * {{.c2}}")),
	NodeDIV + "_2":   template.Must(template.New(NodeDIV).Parse("{{.c1}} / {{.c2}}")),
	NodeMOD + "_2":   template.Must(template.New(NodeMOD).Parse("{{.c1}} % {{.c2}}")),
	NodeNEG + "_1":   template.Must(template.New(NodeNEG).Parse("-{{.c1}}")),

	// Clauses with a single expression

	NodeWHERE + "_1": template.Must(template.New(NodeWHERE).Parse("WHERE {{.c1}}")),
	NodeSKIP + "_1":  template.Must(template.New(NodeSKIP).Parse("SKIP {{.c1}}")),
	NodeLIMIT + "_1": template.Must(template.New(NodeLIMIT).Parse("LIMIT {{.c1}}")),
}

/*
Binding power of expression nodes. Children with a lower binding power than
their parent are put in parentheses.
*/
var bindingPower = map[string]int{
	NodeOR:         10,
	NodeXOR:        20,
	NodeAND:        30,
	NodeNOT:        40,
	NodeEQ:         50,
	NodeNEQ:        50,
	NodeLT:         50,
	NodeGT:         50,
	NodeLEQ:        50,
	NodeGEQ:        50,
	NodeIN:         50,
	NodeSTARTSWITH: 50,
	NodeENDSWITH:   50,
	NodeCONTAINS:   50,
	NodeISNULL:     50,
	NodeISNOTNULL:  50,
	NodePLUS:       60,
	NodeMINUS:      60,
	NodeTIMES:      70,
	NodeDIV:        70,
	NodeMOD:        70,
	NodeNEG:        80,
}

/*
PrettyPrint produces a pretty printed query from a given AST. Parsing the
output again produces an equal AST.
*/
func PrettyPrint(ast *ASTNode) string {
	var visit func(ast *ASTNode) string

	visitAll := func(nodes []*ASTNode, sep string) string {
		var parts []string
		for _, c := range nodes {
			parts = append(parts, visit(c))
		}
		return strings.Join(parts, sep)
	}

	visit = func(ast *ASTNode) string {
		var buf bytes.Buffer

		// Handle special cases

		switch ast.Name {

		case NodeVALUE:
			return quoteValue(ast.Value)

		case NodeVARIABLE:
			return quoteName(ast.Str())

		case NodePARAM:
			return "$" + ast.Str()

		case NodePROPERTY:
			return fmt.Sprintf("%v.%v", visitOperand(ast, 0, visit), quoteName(ast.Str()))

		case NodeCOUNTALL:
			return ast.Str() + "(*)"

		case NodeFUNC:
			buf.WriteString(ast.Str())
			buf.WriteString("(")

			args := ast.Children
			if len(args) > 0 && args[0].Name == NodeDISTINCT {
				buf.WriteString("DISTINCT ")
				args = args[1:]
			}

			buf.WriteString(visitAll(args, ", "))
			buf.WriteString(")")

			return buf.String()

		case NodeLIST:
			return "[" + visitAll(ast.Children, ", ") + "]"

		case NodeMAP:
			var entries []string
			for _, c := range ast.Children {
				entries = append(entries, fmt.Sprintf("%v: %v", quoteName(c.Str()), visit(c.Children[0])))
			}
			return "{" + strings.Join(entries, ", ") + "}"

		case NodeHASLABELS:
			buf.WriteString(visit(ast.Children[0]))
			for _, l := range ast.Value.([]string) {
				buf.WriteString(":")
				buf.WriteString(quoteName(l))
			}
			return buf.String()

		case NodeQUERY:
			return visitAll(ast.Children, "\n")

		case NodeMATCH:
			var patterns []*ASTNode
			var where *ASTNode

			for _, c := range ast.Children {
				if c.Name == NodeWHERE {
					where = c
				} else {
					patterns = append(patterns, c)
				}
			}

			buf.WriteString("MATCH ")
			buf.WriteString(visitAll(patterns, ", "))

			if where != nil {
				buf.WriteString("\n")
				buf.WriteString(visit(where))
			}

			return buf.String()

		case NodePATTERN:
			return visitAll(ast.Children, "")

		case NodeNODEPAT:
			return "(" + patternDetail(ast, visit) + ")"

		case NodeRELPAT:
			detail := patternDetail(ast, visit)

			if detail != "" {
				detail = "[" + detail + "]"
			}

			switch ast.Value {
			case DirectionOut:
				return "-" + detail + "->"
			case DirectionIn:
				return "<-" + detail + "-"
			}

			return "-" + detail + "-"

		case NodeRETURN:
			buf.WriteString("RETURN ")

			items := ast.Children
			if len(items) > 0 && items[0].Name == NodeDISTINCT {
				buf.WriteString("DISTINCT ")
				items = items[1:]
			}

			buf.WriteString(visitAll(items, ", "))

			return buf.String()

		case NodeSTAR:
			return "*"

		case NodeRETURNITEM:
			buf.WriteString(visit(ast.Children[0]))
			if alias := ast.Child(NodeALIAS); alias != nil {
				buf.WriteString(" AS ")
				buf.WriteString(quoteName(alias.Str()))
			}
			return buf.String()

		case NodeORDERBY:
			return "ORDER BY " + visitAll(ast.Children, ", ")

		case NodeSORTITEM:
			if ast.Value == "desc" {
				return visit(ast.Children[0]) + " DESC"
			}
			return visit(ast.Children[0])
		}

		// Pretty print children

		var children map[string]string
		var tempKey = ast.Name

		if len(ast.Children) > 0 {
			children = make(map[string]string)
			for i := range ast.Children {
				children[fmt.Sprint("c", i+1)] = visitOperand(ast, i, visit)
			}

			tempKey += fmt.Sprint("_", len(children))
		}

		// Retrieve the template

		temp, ok := prettyPrinterMap[tempKey]
		if !ok {
			return fmt.Sprintf("<%v>", tempKey)
		}

		// Use the children as parameters for template

		errorutil.AssertOk(temp.Execute(&buf, children))

		return buf.String()
	}

	return visit(ast)
}

/*
visitOperand pretty prints a child of an expression node and adds parentheses
if the child binds weaker than its parent.
*/
func visitOperand(parent *ASTNode, i int, visit func(*ASTNode) string) string {
	child := parent.Children[i]
	res := visit(child)

	cp, ok := bindingPower[child.Name]
	if !ok {
		return res
	}

	pp, ok := bindingPower[parent.Name]
	if !ok {
		if parent.Name == NodePROPERTY {
			return fmt.Sprintf("(%v)", res)
		}
		return res
	}

	// Operators are left associative - a right operand with equal binding
	// power needs parentheses

	if cp < pp || (cp == pp && i > 0) {
		return fmt.Sprintf("(%v)", res)
	}

	return res
}

/*
patternDetail pretty prints variable, labels and properties of a node or
relationship pattern.
*/
func patternDetail(ast *ASTNode, visit func(*ASTNode) string) string {
	var buf bytes.Buffer

	for _, c := range ast.Children {
		switch c.Name {

		case NodeVARIABLE:
			buf.WriteString(quoteName(c.Str()))

		case NodeLABELS:
			for _, l := range c.Children {
				buf.WriteString(":")
				buf.WriteString(quoteName(l.Str()))
			}

		case NodeRELTYPES:
			for i, l := range c.Children {
				if i == 0 {
					buf.WriteString(":")
				} else {
					buf.WriteString("|")
				}
				buf.WriteString(quoteName(l.Str()))
			}

		case NodeMAP:
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(visit(c))
		}
	}

	return buf.String()
}

/*
quoteName quotes a name with backticks if it cannot be written as a plain
identifier.
*/
func quoteName(name string) string {
	_, isKeyword := keywordMap[strings.ToLower(name)]

	if name == "" || isKeyword || !stringutil.IsAlphaNumeric(name) || isDigit(rune(name[0])) {
		return "`" + name + "`"
	}

	return name
}

/*
quoteValue returns the literal representation of a value.
*/
func quoteValue(val interface{}) string {

	switch v := val.(type) {

	case string:
		s := strconv.Quote(v)
		s = strings.Replace(s[1:len(s)-1], `\"`, `"`, -1)
		return "'" + strings.Replace(s, "'", `\'`, -1) + "'"

	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	}

	return fmt.Sprint(val)
}
