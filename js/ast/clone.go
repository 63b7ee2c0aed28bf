// Copyright 2025 Livepack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ast

import "fmt"

// A Cloner deep-copies expression trees and records the mapping from
// original to copied nodes, so that external pointers into the original
// tree (variable rename sites held by the instrumenter metadata) can be
// carried over to the copy.
type Cloner struct {
	Map map[Node]Node
}

// NewCloner returns a Cloner with an empty node map.
func NewCloner() *Cloner {
	return &Cloner{Map: map[Node]Node{}}
}

// Ident returns the copy of an identifier from the original tree, or nil if
// the identifier was not part of the cloned tree.
func (c *Cloner) Ident(orig *Ident) *Ident {
	n, _ := c.Map[orig].(*Ident)
	return n
}

// Expr deep-copies an expression. A nil expression (an array hole) copies
// to nil.
func (c *Cloner) Expr(e Expr) Expr {
	if e == nil {
		return nil
	}
	var out Expr
	switch n := e.(type) {
	case *Ident:
		out = &Ident{Name: n.Name}
	case *NumberLit:
		out = &NumberLit{Value: n.Value}
	case *StringLit:
		out = &StringLit{Value: n.Value}
	case *BoolLit:
		out = &BoolLit{Value: n.Value}
	case *NullLit:
		out = &NullLit{}
	case *UndefinedLit:
		out = &UndefinedLit{}
	case *BigIntLit:
		out = &BigIntLit{Value: n.Value} // value is immutable by convention
	case *RegExpLit:
		out = &RegExpLit{Pattern: n.Pattern, Flags: n.Flags}
	case *ThisExpr:
		out = &ThisExpr{}
	case *RawExpr:
		out = &RawExpr{Src: n.Src}
	case *ArrayLit:
		out = &ArrayLit{Elems: c.exprs(n.Elems)}
	case *ObjectLit:
		props := make([]*Property, len(n.Props))
		for i, p := range n.Props {
			props[i] = &Property{
				Key:       c.Expr(p.Key),
				Value:     c.Expr(p.Value),
				Kind:      p.Kind,
				Computed:  p.Computed,
				Shorthand: p.Shorthand,
			}
		}
		out = &ObjectLit{Props: props}
	case *FuncExpr:
		out = &FuncExpr{
			Name:      n.Name,
			Params:    c.exprs(n.Params),
			Body:      c.block(n.Body),
			ExprBody:  c.Expr(n.ExprBody),
			Arrow:     n.Arrow,
			Async:     n.Async,
			Generator: n.Generator,
			IsMethod:  n.IsMethod,
		}
	case *ClassExpr:
		members := make([]*ClassMember, len(n.Members))
		for i, m := range n.Members {
			members[i] = &ClassMember{
				Key:      c.Expr(m.Key),
				Value:    c.Expr(m.Value).(*FuncExpr),
				Kind:     m.Kind,
				Static:   m.Static,
				Computed: m.Computed,
			}
		}
		out = &ClassExpr{Name: n.Name, Extends: c.Expr(n.Extends), Members: members}
	case *CallExpr:
		out = &CallExpr{Fn: c.Expr(n.Fn), Args: c.exprs(n.Args)}
	case *NewExpr:
		out = &NewExpr{Fn: c.Expr(n.Fn), Args: c.exprs(n.Args)}
	case *MemberExpr:
		out = &MemberExpr{Obj: c.Expr(n.Obj), Prop: c.Expr(n.Prop), Computed: n.Computed}
	case *AssignExpr:
		out = &AssignExpr{Op: n.Op, Lhs: c.Expr(n.Lhs), Rhs: c.Expr(n.Rhs)}
	case *BinaryExpr:
		out = &BinaryExpr{Op: n.Op, X: c.Expr(n.X), Y: c.Expr(n.Y)}
	case *UnaryExpr:
		out = &UnaryExpr{Op: n.Op, X: c.Expr(n.X)}
	case *UpdateExpr:
		out = &UpdateExpr{Op: n.Op, X: c.Expr(n.X), Prefix: n.Prefix}
	case *CondExpr:
		out = &CondExpr{Cond: c.Expr(n.Cond), Then: c.Expr(n.Then), Else: c.Expr(n.Else)}
	case *SeqExpr:
		out = &SeqExpr{Exprs: c.exprs(n.Exprs)}
	case *SpreadElem:
		out = &SpreadElem{X: c.Expr(n.X)}
	case *ParenExpr:
		out = &ParenExpr{X: c.Expr(n.X)}
	default:
		panic(fmt.Sprintf("ast: cannot clone %T", e))
	}
	c.Map[e] = out
	return out
}

// Stmt deep-copies a statement.
func (c *Cloner) Stmt(s Stmt) Stmt {
	var out Stmt
	switch n := s.(type) {
	case *ExprStmt:
		out = &ExprStmt{X: c.Expr(n.X)}
	case *VarDecl:
		decls := make([]*Declarator, len(n.Decls))
		for i, d := range n.Decls {
			decls[i] = &Declarator{
				Name: c.Expr(d.Name).(*Ident),
				Init: c.Expr(d.Init),
			}
		}
		out = &VarDecl{Tok: n.Tok, Decls: decls}
	case *ReturnStmt:
		out = &ReturnStmt{X: c.Expr(n.X)}
	case *BlockStmt:
		out = c.block(n)
	case *Directive:
		out = &Directive{Value: n.Value}
	case *RawStmt:
		out = &RawStmt{Src: n.Src}
	default:
		panic(fmt.Sprintf("ast: cannot clone %T", s))
	}
	c.Map[s] = out
	return out
}

func (c *Cloner) exprs(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = c.Expr(e)
	}
	return out
}

func (c *Cloner) block(b *BlockStmt) *BlockStmt {
	if b == nil {
		return nil
	}
	out := &BlockStmt{Stmts: make([]Stmt, len(b.Stmts))}
	for i, s := range b.Stmts {
		out.Stmts[i] = c.Stmt(s)
	}
	c.Map[b] = out
	return out
}

// CloneExpr deep-copies an expression without retaining a node map.
func CloneExpr(e Expr) Expr {
	return NewCloner().Expr(e)
}
