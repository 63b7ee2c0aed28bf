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

package scope

import (
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

// reconcileStrictness decides the mode of a block's factory.
//
// A frozen parameter named arguments or eval forces the factory sloppy:
// those names may not be bound in strict code. Otherwise the block is
// strict when all contained functions are strict, sloppy when any is
// sloppy. Indeterminate functions are compatible with either mode and a
// block containing only those stays sloppy-compatible with no directives.
func (p *Processor) reconcileStrictness(b *record.Block) {
	for _, param := range b.Params {
		if param.Frozen && ast.IsStrictReservedBinding(param.Name) {
			b.Strict = false
			return
		}
	}
	hasStrict, hasSloppy := subtreeModes(b)
	b.Strict = hasStrict && !hasSloppy
}

// subtreeModes scans the functions of b and every nested block.
func subtreeModes(b *record.Block) (hasStrict, hasSloppy bool) {
	for _, r := range b.Functions {
		switch r.Strictness {
		case value.Strict:
			hasStrict = true
		case value.Sloppy:
			hasSloppy = true
		}
	}
	for _, c := range b.Children {
		s, sl := subtreeModes(c)
		hasStrict = hasStrict || s
		hasSloppy = hasSloppy || sl
	}
	return hasStrict, hasSloppy
}

// applyFnStrictness makes a strict function inside a sloppy context carry
// its own mode: a "use strict" directive in its body, or a strict IIFE
// wrapper when the function has non-simple parameters, which may not be
// combined with a directive prologue.
func applyFnStrictness(fn *ast.FuncExpr) ast.Expr {
	if hasSimpleParams(fn) {
		if body := fn.Body; body != nil {
			body.Stmts = append([]ast.Stmt{&ast.Directive{Value: "use strict"}}, body.Stmts...)
			return fn
		}
		// A concise arrow body gains a block to hold the directive.
		fn.Body = &ast.BlockStmt{Stmts: []ast.Stmt{
			&ast.Directive{Value: "use strict"},
			&ast.ReturnStmt{X: fn.ExprBody},
		}}
		fn.ExprBody = nil
		return fn
	}
	wrapper := &ast.FuncExpr{
		Arrow: true,
		Body: &ast.BlockStmt{Stmts: []ast.Stmt{
			&ast.Directive{Value: "use strict"},
			&ast.ReturnStmt{X: fn},
		}},
	}
	return ast.Call(&ast.ParenExpr{X: wrapper})
}

func hasSimpleParams(fn *ast.FuncExpr) bool {
	for _, p := range fn.Params {
		if _, ok := p.(*ast.Ident); !ok {
			return false
		}
	}
	return true
}
