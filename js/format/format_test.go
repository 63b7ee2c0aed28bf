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

package format

import (
	"math"
	"testing"

	"github.com/go-quicktest/qt"

	"livepack.dev/go/js/ast"
)

func expr(t *testing.T, e ast.Expr, opts ...Option) string {
	t.Helper()
	b, err := Node(e, opts...)
	qt.Assert(t, qt.IsNil(err))
	return string(b)
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "-0"},
		{1, "1"},
		{-5, "-5"},
		{1.5, "1.5"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{1e21, "1e+21"},
		{100000, "100000"},
	}
	for _, tc := range tests {
		got := expr(t, ast.NewNumber(tc.in))
		qt.Assert(t, qt.Equals(got, tc.want), qt.Commentf("number %v", tc.in))
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", `"abc"`},
		{`say "hi"`, `"say \"hi\""`},
		{"a\nb", `"a\nb"`},
		{"tab\there", `"tab\there"`},
		{"\u2028", `"\u2028"`},
		{"\u2029", `"\u2029"`},
		{"\x00", `"\x00"`},
		{"emoji 🎈", `"emoji 🎈"`},
	}
	for _, tc := range tests {
		got := expr(t, ast.NewString(tc.in))
		qt.Assert(t, qt.Equals(got, tc.want), qt.Commentf("string %q", tc.in))
	}
}

func TestArrayHoles(t *testing.T) {
	// [,,1,,,2,,,3,,,] - the eleven-element sparse array.
	one := ast.NewNumber(1)
	two := ast.NewNumber(2)
	three := ast.NewNumber(3)
	arr := &ast.ArrayLit{Elems: []ast.Expr{
		nil, nil, one, nil, nil, two, nil, nil, three, nil, nil,
	}}
	qt.Assert(t, qt.Equals(expr(t, arr), "[,,1,,,2,,,3,,,]"))

	qt.Assert(t, qt.Equals(expr(t, &ast.ArrayLit{}), "[]"))
	qt.Assert(t, qt.Equals(expr(t, &ast.ArrayLit{Elems: []ast.Expr{one, nil, nil}}), "[1,,,]"))
}

func TestUndefined(t *testing.T) {
	qt.Assert(t, qt.Equals(expr(t, ast.Undefined()), "undefined"))
	qt.Assert(t, qt.Equals(expr(t, ast.Undefined(), Minify()), "void 0"))
}

func TestPrecedence(t *testing.T) {
	// (1 + 2) * 3 requires parens; 1 + 2 * 3 does not.
	add := &ast.BinaryExpr{Op: "+", X: ast.NewNumber(1), Y: ast.NewNumber(2)}
	mul := &ast.BinaryExpr{Op: "*", X: add, Y: ast.NewNumber(3)}
	qt.Assert(t, qt.Equals(expr(t, mul), "(1 + 2) * 3"))

	mul2 := &ast.BinaryExpr{Op: "*", X: ast.NewNumber(2), Y: ast.NewNumber(3)}
	add2 := &ast.BinaryExpr{Op: "+", X: ast.NewNumber(1), Y: mul2}
	qt.Assert(t, qt.Equals(expr(t, add2), "1 + 2 * 3"))

	// Calling a function expression needs parens around the callee.
	fn := &ast.FuncExpr{Body: &ast.BlockStmt{}}
	call := ast.Call(fn)
	qt.Assert(t, qt.Equals(expr(t, call, Minify()), "(function(){})()"))
}

func TestMemberAndCalls(t *testing.T) {
	m := ast.Member(ast.NewIdent("Object"), "create")
	qt.Assert(t, qt.Equals(expr(t, m), "Object.create"))

	computed := &ast.MemberExpr{Obj: ast.NewIdent("a"), Prop: ast.NewNumber(0), Computed: true}
	qt.Assert(t, qt.Equals(expr(t, computed), "a[0]"))

	odd := ast.Member(ast.NewIdent("o"), "a-b")
	qt.Assert(t, qt.Equals(expr(t, odd), `o["a-b"]`))
}

func TestObjectLit(t *testing.T) {
	lit := &ast.ObjectLit{Props: []*ast.Property{
		{Key: ast.NewIdent("a"), Value: ast.NewNumber(1)},
		{Key: ast.NewString("b-c"), Value: ast.NewNumber(2)},
		{Key: ast.NewString("__proto__"), Computed: true, Value: ast.NewNumber(3)},
	}}
	qt.Assert(t, qt.Equals(expr(t, lit), `{a: 1, "b-c": 2, ["__proto__"]: 3}`))
	qt.Assert(t, qt.Equals(expr(t, lit, Minify()), `{a:1,"b-c":2,["__proto__"]:3}`))
}

func TestArrow(t *testing.T) {
	b := ast.NewIdent("b")
	inc := &ast.UpdateExpr{Op: "++", X: ast.NewIdent("b"), Prefix: true}
	inner := &ast.FuncExpr{Arrow: true, ExprBody: inc}
	outer := &ast.FuncExpr{Arrow: true, Params: []ast.Expr{b}, ExprBody: inner}

	qt.Assert(t, qt.Equals(expr(t, outer), "(b) => () => ++b"))
	qt.Assert(t, qt.Equals(expr(t, outer, Minify()), "b=>()=>++b"))

	// An object-literal concise body gains parens.
	objBody := &ast.FuncExpr{Arrow: true, ExprBody: &ast.ObjectLit{}}
	qt.Assert(t, qt.Equals(expr(t, objBody, Minify()), "()=>({})"))
}

func TestStatements(t *testing.T) {
	file := &ast.File{Stmts: []ast.Stmt{
		&ast.VarDecl{Tok: "const", Decls: []*ast.Declarator{
			{Name: ast.NewIdent("a"), Init: &ast.ObjectLit{}},
		}},
		&ast.ExprStmt{X: ast.Assign(ast.Member(ast.NewIdent("a"), "self"), ast.NewIdent("a"))},
		&ast.ExprStmt{X: ast.Assign(ast.Member(ast.NewIdent("module"), "exports"), ast.NewIdent("a"))},
	}}
	b, err := Node(file)
	qt.Assert(t, qt.IsNil(err))
	want := "const a = {};\na.self = a;\nmodule.exports = a;\n"
	qt.Assert(t, qt.Equals(string(b), want))

	b, err = Node(file, Minify())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(string(b), "const a={};a.self=a;module.exports=a;"))
}

func TestDirectiveAndExports(t *testing.T) {
	file := &ast.File{Stmts: []ast.Stmt{
		&ast.Directive{Value: "use strict"},
		&ast.ExportDefault{X: ast.NewNumber(1)},
	}}
	b, err := Node(file)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(string(b), "\"use strict\";\nexport default 1;\n"))
}

func TestImports(t *testing.T) {
	file := &ast.File{Stmts: []ast.Stmt{
		&ast.ImportDecl{Default: "common", Source: "./chunk.js"},
		&ast.ImportDecl{Names: []ast.ImportSpec{{Imported: "a", Local: "a0"}}, Source: "./c.js"},
	}}
	b, err := Node(file)
	qt.Assert(t, qt.IsNil(err))
	want := "import common from \"./chunk.js\";\nimport {a as a0} from \"./c.js\";\n"
	qt.Assert(t, qt.Equals(string(b), want))
}

func TestExprStatementParens(t *testing.T) {
	// An object literal as an expression statement needs parens.
	stmt := &ast.ExprStmt{X: &ast.ObjectLit{}}
	b, err := Node(stmt, Minify())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(string(b), "({});"))
}

func TestRegExp(t *testing.T) {
	re := &ast.RegExpLit{Pattern: "a+", Flags: "gi"}
	qt.Assert(t, qt.Equals(expr(t, re), "/a+/gi"))
}

func TestNewExpr(t *testing.T) {
	n := &ast.NewExpr{Fn: ast.NewIdent("Uint16Array"), Args: []ast.Expr{ast.NewNumber(4)}}
	qt.Assert(t, qt.Equals(expr(t, n), "new Uint16Array(4)"))
}
