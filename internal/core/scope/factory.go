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
	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/js/token"
	"livepack.dev/go/value"
)

// emitFactory creates the scope-factory record for a root block. Nested
// blocks' factories become expressions inside the parent's return array;
// they close over the parent's parameters, so they cannot stand alone.
func (p *Processor) emitFactory(b *record.Block) error {
	expr, err := p.buildFactoryExpr(b)
	if err != nil {
		return err
	}
	rec := p.store.New(value.FunctionKind, factoryName(b))
	rec.Node = expr
	b.Factory = rec
	return nil
}

func factoryName(b *record.Block) string {
	if b.Meta.Name != "" {
		return "createScope" + titleCase(b.Meta.Name)
	}
	return "createScope"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; 'a' <= c && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}

// metaIndexFor records, per block, the return-array slot of each function
// definition.
func (p *Processor) metaIndexFor(b *record.Block) map[*value.FuncMeta]int {
	if p.retIndex == nil {
		p.retIndex = map[*record.Block]map[*value.FuncMeta]int{}
	}
	m, ok := p.retIndex[b]
	if !ok {
		m = map[*value.FuncMeta]int{}
		p.retIndex[b] = m
	}
	return m
}

// buildFactoryExpr assembles one block's factory: parameters for the
// frame's variables, local declarations for inline functions, and a return
// exposing the block's functions, nested factories and injectors.
func (p *Processor) buildFactoryExpr(b *record.Block) (ast.Expr, error) {
	for _, r := range b.Functions {
		m := r.Fn.Meta
		if m.ContainsEval && (m.UsesThis || m.UsesArguments) {
			b.InjectThis = true
		}
	}
	if b.InjectThis {
		for _, param := range b.Params {
			if param.Frozen && p.paramEverCircular(b, param) {
				return nil, errors.NewKindf(errors.FrozenConflict, token.NoPos,
					[]string{param.Name},
					"frozen binding %q needs both this-injection and circular injection", param.Name)
			}
		}
	}

	metaIdx := p.metaIndexFor(b)
	var items []ast.Expr
	var decls []ast.Stmt

	seen := map[*value.FuncMeta]bool{}
	for _, r := range b.Functions {
		m := r.Fn.Meta
		if seen[m] {
			continue
		}
		seen[m] = true
		if param := localParamFor(b, m); param != nil {
			fnExpr := p.buildFnExpr(b, param.LocalFn.Fn)
			declIdent := &ast.Ident{Name: param.Name}
			param.Sites = append(param.Sites, declIdent)
			decls = append(decls, &ast.VarDecl{
				Tok:   "const",
				Decls: []*ast.Declarator{{Name: declIdent, Init: fnExpr}},
			})
			if param.InternalOnly {
				continue
			}
			use := &ast.Ident{Name: param.Name}
			param.Sites = append(param.Sites, use)
			metaIdx[m] = len(items)
			items = append(items, use)
			continue
		}
		metaIdx[m] = len(items)
		items = append(items, p.buildFnExpr(b, r.Fn))
	}

	for _, c := range b.Children {
		cExpr, err := p.buildFactoryExpr(c)
		if err != nil {
			return nil, err
		}
		c.ReturnIndex = len(items)
		items = append(items, cExpr)
	}

	for _, param := range b.Params {
		if param.LocalFn != nil || !p.paramEverCircular(b, param) {
			continue
		}
		param.InjectorIndex = len(items)
		items = append(items, buildInjector(b, param))
	}

	b.SingleReturn = len(items) == 1
	var ret ast.Expr
	if b.SingleReturn {
		ret = items[0]
	} else {
		ret = &ast.ArrayLit{Elems: items}
	}

	var params []ast.Expr
	for _, param := range b.Params {
		if param.LocalFn != nil {
			continue
		}
		id := &ast.Ident{Name: param.Name}
		param.Sites = append(param.Sites, id)
		params = append(params, id)
	}

	needBody := len(decls) > 0 || b.Strict || b.InjectThis
	fn := &ast.FuncExpr{Params: params, Arrow: !b.InjectThis}
	if !needBody {
		fn.ExprBody = ret
		return fn, nil
	}
	var stmts []ast.Stmt
	if b.Strict {
		stmts = append(stmts, &ast.Directive{Value: "use strict"})
	}
	stmts = append(stmts, decls...)
	stmts = append(stmts, &ast.ReturnStmt{X: ret})
	fn.Body = &ast.BlockStmt{Stmts: stmts}
	return fn, nil
}

func (p *Processor) paramEverCircular(b *record.Block, param *record.ScopeParam) bool {
	for _, fr := range b.Frames {
		if vp, ok := fr.Values[param.Name]; ok && vp.IsCircular {
			return true
		}
	}
	return false
}

func localParamFor(b *record.Block, m *value.FuncMeta) *record.ScopeParam {
	for _, param := range b.Params {
		if param.LocalFn != nil && param.LocalFn.Fn.Meta == m {
			return param
		}
	}
	return nil
}

// buildInjector emits the deferred-delivery arrow for a circular
// parameter: v => p = v, added to the factory's return so the frame's
// construction can assign the value once it exists.
func buildInjector(b *record.Block, param *record.ScopeParam) ast.Expr {
	paramIdent := &ast.Ident{Name: "v"}
	useIdent := &ast.Ident{Name: "v"}
	target := &ast.Ident{Name: param.Name}
	param.Sites = append(param.Sites, target)

	sp := &record.ScopeParam{Name: "v", Sites: []*ast.Ident{paramIdent, useIdent}}
	b.Injectors = append(b.Injectors, sp)

	return &ast.FuncExpr{
		Arrow:    true,
		Params:   []ast.Expr{paramIdent},
		ExprBody: ast.Assign(target, useIdent),
	}
}

// buildFnExpr prepares one function definition for inclusion in a factory:
// it registers the body's variable sites against the enclosing blocks'
// parameters so later renames reach them, and gives strict functions in a
// sloppy factory their own mode.
func (p *Processor) buildFnExpr(b *record.Block, fnd *record.FnData) ast.Expr {
	for _, name := range fnd.Meta.Externals {
		if param := findParam(b, name); param != nil {
			param.Sites = append(param.Sites, fnd.VarSites[name]...)
		}
	}
	var expr ast.Expr = fnd.AST
	if fnd.Meta.Strictness == value.Strict && !b.Strict {
		expr = applyFnStrictness(fnd.AST)
	}
	return expr
}

func findParam(b *record.Block, name string) *record.ScopeParam {
	for blk := b; blk != nil; blk = blk.Parent {
		for _, param := range blk.Params {
			if param.Name == name {
				return param
			}
		}
	}
	return nil
}

// emitFrames creates the activation record for every frame: a call to the
// block's factory with the frame's captured values, parents before
// children.
func (p *Processor) emitFrames(b *record.Block) error {
	for _, fr := range b.Frames {
		if err := p.emitFrame(b, fr); err != nil {
			return err
		}
	}
	for _, c := range b.Children {
		if err := p.emitFrames(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) emitFrame(b *record.Block, fr *record.Frame) error {
	rec := p.store.New(value.NoKind, "scope")
	fr.Record = rec

	call := &ast.CallExpr{}
	if b.Parent == nil {
		record.AddDep(rec, b.Factory, &call.Fn)
	} else {
		parentRec := fr.Parent.Record
		if fr.Parent.Block.SingleReturn {
			record.AddDep(rec, parentRec, &call.Fn)
		} else {
			m := &ast.MemberExpr{Prop: ast.NewNumber(float64(b.ReturnIndex)), Computed: true}
			record.AddDep(rec, parentRec, &m.Obj)
			call.Fn = m
		}
	}

	// Arguments in parameter order; trailing unbound slots are dropped.
	type argSpec struct {
		target *record.Record // nil for a literal undefined
	}
	var specs []argSpec
	for _, param := range b.Params {
		if param.LocalFn != nil {
			continue
		}
		vp, ok := fr.Values[param.Name]
		if !ok || vp.IsCircular || vp.Record.Kind == value.UndefinedKind {
			specs = append(specs, argSpec{})
			continue
		}
		specs = append(specs, argSpec{target: vp.Record})
	}
	for len(specs) > 0 && specs[len(specs)-1].target == nil {
		specs = specs[:len(specs)-1]
	}

	args := make([]ast.Expr, len(specs))
	if b.InjectThis {
		// factory.apply(thisValue, argumentsValue)
		applyFn := call.Fn
		member := &ast.MemberExpr{Obj: applyFn, Prop: ast.NewIdent("apply")}
		if len(rec.Deps) > 0 && rec.Deps[0].Slot == &call.Fn {
			// Re-point the callee edge into the member expression.
			rec.Deps[0].Slot = &member.Obj
		}
		call.Fn = member
		call.Args = make([]ast.Expr, 2)
		if fr.This != nil {
			record.AddDep(rec, fr.This.Record, &call.Args[0])
		} else {
			call.Args[0] = ast.Undefined()
		}
		argList := &ast.ArrayLit{Elems: args}
		call.Args[1] = argList
		for i, s := range specs {
			if s.target == nil {
				argList.Elems[i] = ast.Undefined()
				continue
			}
			record.AddDep(rec, s.target, &argList.Elems[i])
		}
	} else {
		call.Args = args
		for i, s := range specs {
			if s.target == nil {
				call.Args[i] = ast.Undefined()
				continue
			}
			record.AddDep(rec, s.target, &call.Args[i])
		}
	}
	rec.Node = call

	// Post-hoc injector calls for circular values.
	for _, param := range b.Params {
		if param.InjectorIndex < 0 {
			continue
		}
		vp, ok := fr.Values[param.Name]
		if !ok || !vp.IsCircular {
			continue
		}
		m := &ast.MemberExpr{Prop: ast.NewNumber(float64(param.InjectorIndex)), Computed: true}
		injCall := &ast.CallExpr{Fn: m, Args: make([]ast.Expr, 1)}
		a := rec.AddAssignment(injCall)
		a.AddAssignmentDep(rec, &m.Obj)
		a.AddAssignmentDep(vp.Record, &injCall.Args[0])
	}

	// Wire this frame's function records to their return-array slots.
	metaIdx := p.metaIndexFor(b)
	for _, r := range b.Functions {
		if r.Scope != fr {
			continue
		}
		m := r.Fn.Meta
		if param := localParamFor(b, m); param != nil && param.InternalOnly {
			continue
		}
		idx, ok := metaIdx[m]
		if !ok {
			continue
		}
		if b.SingleReturn {
			record.AddDep(r, rec, &r.Node)
			continue
		}
		member := &ast.MemberExpr{Prop: ast.NewNumber(float64(idx)), Computed: true}
		record.AddDep(r, rec, &member.Obj)
		r.Node = member
	}
	return nil
}

// emitScopelessFunctions gives functions that capture nothing their node:
// the processed function expression itself.
func (p *Processor) emitScopelessFunctions() error {
	for _, r := range p.store.Records() {
		if r.Fn == nil || r.Scope != nil || r.Node != nil {
			continue
		}
		var expr ast.Expr = r.Fn.AST
		if r.Strictness == value.Strict {
			// Self-describing mode keeps the function correct whatever
			// the file-level choice turns out to be.
			expr = applyFnStrictness(r.Fn.AST)
		}
		r.Node = expr
	}
	return nil
}
