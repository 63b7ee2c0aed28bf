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

// Walk traverses an AST in depth-first order: it first calls f(node); if f
// returns true, Walk invokes f recursively for each of the children of
// node.
func Walk(node Node, f func(Node) bool) {
	if node == nil || !f(node) {
		return
	}
	walkChildren(node, f)
}

func walkExprs(list []Expr, f func(Node) bool) {
	for _, e := range list {
		if e != nil { // array holes
			Walk(e, f)
		}
	}
}

func walkChildren(node Node, f func(Node) bool) {
	switch n := node.(type) {
	case *ArrayLit:
		walkExprs(n.Elems, f)
	case *ObjectLit:
		for _, p := range n.Props {
			Walk(p.Key, f)
			Walk(p.Value, f)
		}
	case *FuncExpr:
		walkExprs(n.Params, f)
		if n.Body != nil {
			Walk(n.Body, f)
		}
		if n.ExprBody != nil {
			Walk(n.ExprBody, f)
		}
	case *ClassExpr:
		if n.Extends != nil {
			Walk(n.Extends, f)
		}
		for _, m := range n.Members {
			Walk(m.Key, f)
			Walk(m.Value, f)
		}
	case *CallExpr:
		Walk(n.Fn, f)
		walkExprs(n.Args, f)
	case *NewExpr:
		Walk(n.Fn, f)
		walkExprs(n.Args, f)
	case *MemberExpr:
		Walk(n.Obj, f)
		Walk(n.Prop, f)
	case *AssignExpr:
		Walk(n.Lhs, f)
		Walk(n.Rhs, f)
	case *BinaryExpr:
		Walk(n.X, f)
		Walk(n.Y, f)
	case *UnaryExpr:
		Walk(n.X, f)
	case *UpdateExpr:
		Walk(n.X, f)
	case *CondExpr:
		Walk(n.Cond, f)
		Walk(n.Then, f)
		Walk(n.Else, f)
	case *SeqExpr:
		walkExprs(n.Exprs, f)
	case *SpreadElem:
		Walk(n.X, f)
	case *ParenExpr:
		Walk(n.X, f)
	case *ExprStmt:
		Walk(n.X, f)
	case *VarDecl:
		for _, d := range n.Decls {
			Walk(d.Name, f)
			if d.Init != nil {
				Walk(d.Init, f)
			}
		}
	case *ReturnStmt:
		if n.X != nil {
			Walk(n.X, f)
		}
	case *BlockStmt:
		for _, s := range n.Stmts {
			Walk(s, f)
		}
	case *ExportDefault:
		Walk(n.X, f)
	case *File:
		for _, s := range n.Stmts {
			Walk(s, f)
		}
	}
}
