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
)

/*
ASTNode models a node in the abstract syntax tree.
*/
type ASTNode struct {
	Name     string      // Name of the node
	Token    *LexToken   // Lexer token of this node
	Value    interface{} // Value of the node (literals, names, operators)
	Children []*ASTNode  // Child nodes
}

/*
newASTNode creates a new AST node for a given token.
*/
func newASTNode(name string, token *LexToken, value interface{}, children ...*ASTNode) *ASTNode {
	return &ASTNode{name, token, value, children}
}

/*
NewASTNode creates a new AST node without a source token.
*/
func NewASTNode(name string, value interface{}, children ...*ASTNode) *ASTNode {
	return &ASTNode{name, nil, value, children}
}

/*
Str returns the value of this node as a string.
*/
func (n *ASTNode) Str() string {
	if s, ok := n.Value.(string); ok {
		return s
	}
	return fmt.Sprint(n.Value)
}

/*
Child returns the first child with a given name or nil.
*/
func (n *ASTNode) Child(name string) *ASTNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

/*
ChildrenByName returns all children with a given name.
*/
func (n *ASTNode) ChildrenByName(name string) []*ASTNode {
	var ret []*ASTNode
	for _, c := range n.Children {
		if c.Name == name {
			ret = append(ret, c)
		}
	}
	return ret
}

/*
Walk calls a function for this node and all its descendants (depth first,
pre-order). Descending stops below nodes for which the function returns false.
*/
func (n *ASTNode) Walk(fn func(*ASTNode) bool) {
	if fn(n) {
		for _, c := range n.Children {
			c.Walk(fn)
		}
	}
}

/*
Position returns the line and position of this node in the input.
*/
func (n *ASTNode) Position() (int, int) {
	if n.Token == nil {
		return 0, 0
	}
	return n.Token.Lline, n.Token.Lpos
}

/*
Equal checks if this AST is equal to another AST. Tokens are not compared.
*/
func (n *ASTNode) Equal(other *ASTNode) bool {
	if other == nil || n.Name != other.Name || fmt.Sprintf("%#v", n.Value) != fmt.Sprintf("%#v", other.Value) ||
		len(n.Children) != len(other.Children) {
		return false
	}

	for i, c := range n.Children {
		if !c.Equal(other.Children[i]) {
			return false
		}
	}

	return true
}

/*
String returns a string representation of this AST.
*/
func (n *ASTNode) String() string {
	var buf bytes.Buffer
	n.levelString(0, &buf)
	return buf.String()
}

/*
levelString function to recursively print the tree.
*/
func (n *ASTNode) levelString(indent int, buf *bytes.Buffer) {

	// Print current level

	buf.WriteString(stringIndent(indent))

	if n.Value != nil {
		buf.WriteString(fmt.Sprintf("%v: %v", n.Name, n.Value))
	} else {
		buf.WriteString(n.Name)
	}

	buf.WriteString("\n")

	// Print children

	for _, child := range n.Children {
		child.levelString(indent+1, buf)
	}
}

/*
stringIndent returns an indent string.
*/
func stringIndent(indent int) string {
	var buf bytes.Buffer
	for i := 0; i < indent; i++ {
		buf.WriteString("  ")
	}
	return buf.String()
}
