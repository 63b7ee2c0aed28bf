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

package emit

import (
	"livepack.dev/go/internal/names"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

// finishFile appends the format-specific terminal statement and applies
// whole-file rearrangement for expression formats. rootRefs are the
// expressions referring to the output's exports, in export order; an
// output with no exports yields a file exporting undefined.
func (oe *outputEmitter) finishFile(file *ast.File, rootRefs []ast.Expr) error {
	var root ast.Expr
	if len(rootRefs) > 0 {
		root = rootRefs[0]
	} else {
		root = ast.Undefined()
	}

	switch oe.e.opts.Format {
	case FormatCJS:
		oe.partitionStrictness()
		target := ast.Member(ast.NewIdent("module"), "exports")
		if len(rootRefs) <= 1 {
			file.Stmts = append(file.Stmts, &ast.ExprStmt{X: ast.Assign(target, root)})
			return nil
		}
		lit := &ast.ObjectLit{}
		for i, ref := range rootRefs {
			lit.Props = append(lit.Props, &ast.Property{
				Key:   ast.PropertyKey(names.ExportName(i)),
				Value: ref,
			})
		}
		file.Stmts = append(file.Stmts, &ast.ExprStmt{X: ast.Assign(target, lit)})
		return nil

	case FormatESM:
		oe.partitionStrictness()
		if len(rootRefs) <= 1 {
			file.Stmts = append(file.Stmts, &ast.ExportDefault{X: root})
			return nil
		}
		decl := &ast.ExportNamed{}
		for i, ref := range rootRefs {
			local, ok := ref.(*ast.Ident)
			if !ok {
				// An export that came back as a bare expression still
				// needs a binding to be named in the export clause. The
				// statement list is already assembled, so the
				// declaration goes straight into the file.
				name := oe.tr.Rename(names.ExportName(i))
				file.Stmts = append(file.Stmts, &ast.VarDecl{
					Tok:   "const",
					Decls: []*ast.Declarator{{Name: ast.NewIdent(name), Init: ref}},
				})
				local = ast.NewIdent(name)
			}
			decl.Specs = append(decl.Specs, ast.ExportSpec{
				Local:    local.Name,
				Exported: names.ExportName(i),
			})
		}
		file.Stmts = append(file.Stmts, decl)
		return nil

	case FormatJS:
		// A bare expression; bindings force an IIFE wrapper.
		if len(file.Stmts) == 0 {
			file.Stmts = []ast.Stmt{&ast.ExprStmt{X: root}}
			return nil
		}
		body := &ast.BlockStmt{Stmts: append(file.Stmts, &ast.ReturnStmt{X: root})}
		iife := ast.Call(&ast.ParenExpr{X: &ast.FuncExpr{Arrow: true, Body: body}})
		file.Stmts = []ast.Stmt{&ast.ExprStmt{X: iife}}
		return nil

	case FormatExec:
		// Immediate invocation: the root value is executed, not
		// exported.
		file.Stmts = append(file.Stmts, &ast.ExprStmt{X: ast.Call(root)})
		return nil
	}
	return nil
}

// partitionStrictness fills the output's function-mode partitions; the
// file-level strictness choice and tests read them.
func (oe *outputEmitter) partitionStrictness() {
	for _, r := range oe.out.Records {
		if r.Fn == nil {
			continue
		}
		switch r.Strictness {
		case value.Strict:
			oe.out.StrictFns = append(oe.out.StrictFns, r)
		case value.Sloppy:
			oe.out.SloppyFns = append(oe.out.SloppyFns, r)
		}
	}
}
