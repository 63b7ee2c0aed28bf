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
	"slices"
	"strings"

	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/internal/core/split"
	"livepack.dev/go/internal/names"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/js/format"
	"livepack.dev/go/js/token"
	"livepack.dev/go/value"
)

// alwaysReserved are names the emitted code may reference implicitly:
// globals used by helper snippets and the module-system bindings. Local
// bindings never take these.
var alwaysReserved = []string{
	"Object", "Array", "Promise", "Reflect", "Symbol", "TypeError",
	"require", "module", "exports", "eval", "arguments", "globalThis",
}

// An outputEmitter renders a single file.
type outputEmitter struct {
	e   *Emitter
	out *record.Output
	tr  names.Transform

	bindings   map[*record.Record]string
	inProgress map[*record.Record]bool
	exported   map[*record.Record]bool

	helperBindings map[string]string
	globalBindings map[*record.Record]string
	moduleBindings map[*record.Output]string
	namedImports   map[*record.Output]map[*record.Record]string

	imports []ast.Stmt
	decls   []ast.Stmt
	assigns []ast.Stmt

	pending []*record.Assignment
}

func newOutputEmitter(e *Emitter, out *record.Output) *outputEmitter {
	oe := &outputEmitter{
		e:              e,
		out:            out,
		tr:             names.New(e.opts.Mangle),
		bindings:       map[*record.Record]string{},
		inProgress:     map[*record.Record]bool{},
		exported:       map[*record.Record]bool{},
		helperBindings: map[string]string{},
		globalBindings: map[*record.Record]string{},
		moduleBindings: map[*record.Output]string{},
		namedImports:   map[*record.Output]map[*record.Record]string{},
	}
	for _, name := range alwaysReserved {
		oe.tr.Reserve(name)
	}
	for _, r := range out.Exports {
		oe.exported[r] = true
	}
	oe.seedGlobals()
	return oe
}

// seedGlobals reserves every global root name this file references, so
// generated bindings never shadow them.
func (oe *outputEmitter) seedGlobals() {
	seen := map[*record.Record]bool{}
	var walk func(r *record.Record)
	walk = func(r *record.Record) {
		if seen[r] {
			return
		}
		seen[r] = true
		if g, ok := r.Val.(*value.Global); ok && len(g.Path) > 0 {
			oe.tr.Reserve(g.Path[0])
		}
		for _, e := range r.Deps {
			walk(e.Target)
		}
		for _, a := range r.Assignments {
			for _, e := range a.Deps {
				walk(e.Target)
			}
		}
	}
	for _, r := range oe.out.Records {
		walk(r)
	}
}

// fileStrict reports whether the file body executes in strict mode no
// matter what the emitted code says: ESM is always strict, and StrictEnv
// declares the host wrapper strict.
func (oe *outputEmitter) fileStrict() bool {
	return oe.e.opts.Format == FormatESM || oe.e.opts.StrictEnv
}

func (oe *outputEmitter) emit() ([]byte, error) {
	rootRefs := make([]ast.Expr, len(oe.out.Exports))
	for i, root := range oe.out.Exports {
		ref, err := oe.emitRecord(root)
		if err != nil {
			return nil, err
		}
		rootRefs[i] = ref
	}
	if err := oe.flushAssignments(); err != nil {
		return nil, err
	}

	file := &ast.File{}
	file.Stmts = append(file.Stmts, oe.imports...)
	file.Stmts = append(file.Stmts, oe.decls...)
	file.Stmts = append(file.Stmts, oe.assigns...)

	if err := oe.finishFile(file, rootRefs); err != nil {
		return nil, err
	}

	var opts []format.Option
	if oe.e.opts.Minify {
		opts = append(opts, format.Minify())
	}
	return format.Node(file, opts...)
}

// flushAssignments patches and emits deferred statements until none are
// left. Processing may declare further records; their declarations land in
// the decls section, which always precedes the assignments in the file.
func (oe *outputEmitter) flushAssignments() error {
	for len(oe.pending) > 0 {
		a := oe.pending[0]
		oe.pending = oe.pending[1:]
		for _, e := range a.Deps {
			ref, err := oe.emitRecord(e.Target)
			if err != nil {
				return err
			}
			e.Patch(ref)
		}
		oe.assigns = append(oe.assigns, &ast.ExprStmt{X: a.Expr})
	}
	return nil
}

// emitRecord returns an expression referring to r in this output: its
// binding identifier, an inlined expression, an import reference, or a
// duplicated literal.
func (oe *outputEmitter) emitRecord(r *record.Record) (ast.Expr, error) {
	if name, ok := oe.bindings[r]; ok {
		return ast.NewIdent(name), nil
	}
	if split.Duplicable(r) {
		return oe.emitDuplicable(r)
	}
	if r.Output != oe.out {
		return oe.importRef(r)
	}
	if oe.inProgress[r] {
		// Node-dependency cycles are broken into assignments during
		// tracing and scope processing; reaching one here is a planning
		// bug, not a user error.
		return nil, errors.Newf(token.NoPos,
			"internal error: unbroken dependency cycle at record #%d (%s)", r.ID, r.Name)
	}
	oe.inProgress[r] = true
	defer delete(oe.inProgress, r)

	if b, ok := oe.e.factoryBlocks[r]; ok {
		oe.renameBlock(b)
	}
	if r.Fn != nil {
		oe.renameInternals(r)
	}

	for _, e := range r.Deps {
		ref, err := oe.emitRecord(e.Target)
		if err != nil {
			return nil, err
		}
		e.Patch(ref)
	}

	if r.Kind == value.ImportFnKind {
		if err := oe.completeImportFn(r); err != nil {
			return nil, err
		}
	}

	node := r.Node
	if node == nil {
		return nil, errors.Newf(token.NoPos,
			"internal error: record #%d (%s) has no node", r.ID, r.Name)
	}
	if r.Fn != nil && r.Strictness == value.Sloppy && oe.fileStrict() {
		wrapped, err := oe.indirectEvalWrap(node)
		if err != nil {
			return nil, err
		}
		node = wrapped
		r.Node = node
	}

	if oe.canInline(r) {
		r.MarkEmitted()
		return node, nil
	}

	name := oe.tr.Rename(nameHint(r))
	oe.bindings[r] = name
	oe.decls = append(oe.decls, &ast.VarDecl{
		Tok:   "const",
		Decls: []*ast.Declarator{{Name: ast.NewIdent(name), Init: node}},
	})
	oe.pending = append(oe.pending, r.Assignments...)
	r.SetBinding(name)
	r.MarkEmitted()
	return ast.NewIdent(name), nil
}

// canInline applies the inlining rule: the record is inlined at its single
// use site iff the inline option is set, the record is not an import, and
// it has exactly one dependent. Records with deferred assignments and
// export roots always get a binding.
func (oe *outputEmitter) canInline(r *record.Record) bool {
	return oe.e.opts.Inline &&
		len(r.Dependents) == 1 &&
		len(r.Assignments) == 0 &&
		!oe.exported[r] &&
		r.Kind != value.BuiltinModuleKind
}

func nameHint(r *record.Record) string {
	if r.Name != "" && ast.IsValidIdent(r.Name) {
		return r.Name
	}
	switch r.Kind {
	case value.FunctionKind, value.ClassKind:
		return "fn"
	case value.ArrayKind:
		return "arr"
	case value.NoKind:
		return "scope"
	default:
		return "v"
	}
}

// emitDuplicable renders a record every output may copy: literal
// primitives inline, globals inline or hoisted by usage, built-in modules
// and helpers hoisted once per file.
func (oe *outputEmitter) emitDuplicable(r *record.Record) (ast.Expr, error) {
	if r.Helper != "" {
		return oe.helperRef(r.Helper)
	}
	switch r.Kind {
	case value.GlobalKind:
		if r.UsageCount <= 1 {
			return ast.CloneExpr(r.Node), nil
		}
		if name, ok := oe.globalBindings[r]; ok {
			return ast.NewIdent(name), nil
		}
		name := oe.tr.Rename(nameHint(r))
		oe.globalBindings[r] = name
		oe.decls = append(oe.decls, &ast.VarDecl{
			Tok:   "const",
			Decls: []*ast.Declarator{{Name: ast.NewIdent(name), Init: ast.CloneExpr(r.Node)}},
		})
		return ast.NewIdent(name), nil
	case value.BuiltinModuleKind:
		if name, ok := oe.globalBindings[r]; ok {
			return ast.NewIdent(name), nil
		}
		name := oe.tr.Rename(r.Name)
		oe.globalBindings[r] = name
		if oe.e.opts.Format == FormatESM {
			oe.imports = append(oe.imports, &ast.ImportDecl{Default: name, Source: r.Name})
		} else {
			oe.decls = append(oe.decls, &ast.VarDecl{
				Tok:   "const",
				Decls: []*ast.Declarator{{Name: ast.NewIdent(name), Init: ast.CloneExpr(r.Node)}},
			})
		}
		return ast.NewIdent(name), nil
	default:
		// Literal primitive.
		return ast.CloneExpr(r.Node), nil
	}
}

// helperRef declares a runtime helper on first use and returns its
// binding.
func (oe *outputEmitter) helperRef(helper string) (ast.Expr, error) {
	if name, ok := oe.helperBindings[helper]; ok {
		return ast.NewIdent(name), nil
	}
	src, ok := helperSources[helper]
	if !ok {
		return nil, errors.Newf(token.NoPos, "internal error: unknown runtime helper %q", helper)
	}
	name := oe.tr.Rename(helper)
	oe.helperBindings[helper] = name
	oe.decls = append(oe.decls, &ast.VarDecl{
		Tok:   "const",
		Decls: []*ast.Declarator{{Name: ast.NewIdent(name), Init: &ast.RawExpr{Src: src}}},
	})
	return ast.NewIdent(name), nil
}

// importRef resolves a reference to a record owned by another output.
func (oe *outputEmitter) importRef(r *record.Record) (ast.Expr, error) {
	tgt := r.Output
	if tgt == nil {
		return nil, errors.Newf(token.NoPos,
			"internal error: record #%d (%s) reached emission without an output", r.ID, r.Name)
	}

	if len(tgt.Exports) == 1 && tgt.Exports[0] == r {
		name, err := oe.moduleBinding(tgt, nameHint(r))
		if err != nil {
			return nil, err
		}
		return ast.NewIdent(name), nil
	}

	exportName := ""
	for i, ex := range tgt.Exports {
		if ex == r {
			exportName = names.ExportName(i)
			break
		}
	}
	if exportName == "" {
		return nil, errors.Newf(token.NoPos,
			"internal error: record #%d (%s) is not exported by output %q", r.ID, r.Name, tgt.Name)
	}

	if oe.e.opts.Format == FormatESM {
		byRec := oe.namedImports[tgt]
		if byRec == nil {
			byRec = map[*record.Record]string{}
			oe.namedImports[tgt] = byRec
		}
		if local, ok := byRec[r]; ok {
			return ast.NewIdent(local), nil
		}
		local := oe.tr.Rename(nameHint(r))
		byRec[r] = local
		oe.imports = append(oe.imports, &ast.ImportDecl{
			Names:  []ast.ImportSpec{{Imported: exportName, Local: local}},
			Source: oe.importSource(tgt),
		})
		return ast.NewIdent(local), nil
	}

	name, err := oe.moduleBinding(tgt, tgt.Name)
	if err != nil {
		return nil, err
	}
	return ast.Member(ast.NewIdent(name), exportName), nil
}

// moduleBinding imports an output once, as a default import (ESM) or a
// require call (CJS).
func (oe *outputEmitter) moduleBinding(tgt *record.Output, hint string) (string, error) {
	if name, ok := oe.moduleBindings[tgt]; ok {
		return name, nil
	}
	if !ast.IsValidIdent(hint) {
		hint = "chunk"
	}
	name := oe.tr.Rename(hint)
	oe.moduleBindings[tgt] = name
	src := oe.importSource(tgt)
	if oe.e.opts.Format == FormatESM {
		// ESM only imports whole modules through their default export;
		// multi-export outputs go through named imports instead.
		oe.imports = append(oe.imports, &ast.ImportDecl{Default: name, Source: src})
	} else {
		call := ast.Call(ast.NewIdent("require"), ast.NewString(src))
		oe.imports = append(oe.imports, &ast.VarDecl{
			Tok:   "const",
			Decls: []*ast.Declarator{{Name: ast.NewIdent(name), Init: call}},
		})
	}
	return name, nil
}

// importSource renders the relative path of another output, counting the
// placeholder reference when the filename carries one.
func (oe *outputEmitter) importSource(tgt *record.Output) string {
	if oe.e.useHash && strings.Contains(tgt.Filename, placeholder(tgt.Index)) {
		oe.e.refCount++
	}
	return "./" + tgt.Filename
}

// completeImportFn fills an async import function's source argument now
// that the target output's filename (or its placeholder) is known.
func (oe *outputEmitter) completeImportFn(r *record.Record) error {
	call, ok := r.Node.(*ast.CallExpr)
	if !ok || r.ImportTarget == nil || r.ImportTarget.Output == nil {
		return errors.Newf(token.NoPos,
			"internal error: malformed import-fn record #%d", r.ID)
	}
	call.Args = append(call.Args, ast.NewString(oe.importSource(r.ImportTarget.Output)))
	return nil
}

// indirectEvalWrap keeps a sloppy function sloppy inside a strict file by
// constructing it through an indirect eval.
func (oe *outputEmitter) indirectEvalWrap(node ast.Expr) (ast.Expr, error) {
	var opts []format.Option
	if oe.e.opts.Minify {
		opts = append(opts, format.Minify())
	}
	src, err := format.Node(node, opts...)
	if err != nil {
		return nil, err
	}
	indirect := &ast.ParenExpr{X: &ast.SeqExpr{Exprs: []ast.Expr{
		ast.NewNumber(0), ast.NewIdent("eval"),
	}}}
	return ast.Call(indirect, ast.NewString("("+string(src)+")")), nil
}

// renameBlock renames the scope variables of a root block and its nested
// blocks against this file's transform. Frozen names are reserved instead:
// an eval or with may observe them.
func (oe *outputEmitter) renameBlock(b *record.Block) {
	for _, param := range b.Params {
		if param.Frozen {
			oe.tr.Reserve(param.Name)
			param.OutName = param.Name
			continue
		}
		name := oe.tr.Rename(param.Name)
		param.OutName = name
		for _, site := range param.Sites {
			site.Name = name
		}
	}
	for _, inj := range b.Injectors {
		name := oe.tr.Rename(inj.Name)
		inj.OutName = name
		for _, site := range inj.Sites {
			site.Name = name
		}
	}
	for _, c := range b.Children {
		oe.renameBlock(c)
	}
}

// renameInternals renames a function's non-captured variables when
// mangling. Frozen functions (a reachable direct eval) keep every name.
func (oe *outputEmitter) renameInternals(r *record.Record) {
	if !oe.e.opts.Mangle || r.Fn.Meta.ContainsEval {
		return
	}
	external := map[string]bool{}
	for _, name := range r.Fn.Meta.Externals {
		external[name] = true
	}
	vars := make([]string, 0, len(r.Fn.VarSites))
	for name := range r.Fn.VarSites {
		if !external[name] {
			vars = append(vars, name)
		}
	}
	slices.Sort(vars)
	for _, name := range vars {
		fresh := oe.tr.Rename(name)
		for _, site := range r.Fn.VarSites[name] {
			site.Name = fresh
		}
	}
}
