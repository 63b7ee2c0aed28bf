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

package trace

import (
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

// function traces a closure: it clones the function's AST defensively,
// remaps the rename sites into the clone, resolves the frame chain the
// closure was produced in, and records every observable attribute that
// differs from a plain function. The node itself is left nil; the block
// processor produces it.
func (t *Tracer) function(r *record.Record, f *value.Function) error {
	meta := t.reg.Func(f.Meta)
	if meta.Name != "" {
		r.Name = meta.Name
	}
	r.Strictness = meta.Strictness

	cl := ast.NewCloner()
	cloned := cl.Expr(meta.AST).(*ast.FuncExpr)
	sites := map[string][]*ast.Ident{}
	for name, ids := range meta.VarSites {
		for _, id := range ids {
			if nid := cl.Ident(id); nid != nil {
				sites[name] = append(sites[name], nid)
			}
		}
	}
	r.Fn = &record.FnData{Meta: meta, AST: cloned, VarSites: sites}

	frame, err := t.frame(f.Frame)
	if err != nil {
		return err
	}
	r.Scope = frame

	if meta.SuperOwner != nil {
		// The instrumenter rewrote super lookups to go through a
		// late-bound home object; tracing it here makes the owner
		// available to the block processor as an ordinary captured
		// value.
		if _, _, err := t.traceAt(meta.SuperOwner, "<super>"); err != nil {
			return err
		}
	}

	return t.finishCommonDeferred(r, &f.Common)
}

// frame resolves one observed activation, tracing its captured values.
// Frames are shared: many functions may close over the same activation.
func (t *Tracer) frame(id value.FrameID) (*record.Frame, error) {
	if id == 0 {
		return nil, nil
	}
	if fr, ok := t.frames[id]; ok {
		return fr, nil
	}
	meta := t.reg.Frame(id)
	fr := &record.Frame{Meta: meta, Values: map[string]*record.ValueProp{}}
	t.frames[id] = fr

	parent, err := t.frame(meta.ParentID)
	if err != nil {
		return nil, err
	}
	fr.Parent = parent

	// Iterate in block parameter order: map order must never leak into
	// record creation order.
	block := t.reg.Block(meta.BlockID)
	for _, p := range block.Params {
		v, ok := meta.Values[p.Name]
		if !ok {
			continue
		}
		rec, circular, err := t.traceAt(v, p.Name)
		if err != nil {
			return nil, err
		}
		fr.Values[p.Name] = &record.ValueProp{Record: rec, IsCircular: circular}
	}
	if meta.This != nil {
		rec, circular, err := t.traceAt(meta.This, "this")
		if err != nil {
			return nil, err
		}
		fr.This = &record.ValueProp{Record: rec, IsCircular: circular}
	}
	if meta.Args != nil {
		rec, circular, err := t.traceAt(meta.Args, "arguments")
		if err != nil {
			return nil, err
		}
		fr.Args = &record.ValueProp{Record: rec, IsCircular: circular}
	}
	return fr, nil
}

// finishCommonDeferred records object attributes entirely as deferred
// assignments. Function records need this: their node does not exist until
// the block processor runs, so there is nothing to wrap yet.
func (t *Tracer) finishCommonDeferred(r *record.Record, c *value.Common) error {
	props := orderProps(c.Props)
	for _, prop := range props {
		if prop.Key.IsSymbol() {
			if err := t.traceSymbolProp(r, prop, nil); err != nil {
				return err
			}
			continue
		}
		name := prop.Key.Name
		if !prop.IsAccessor() && prop.IsDefault() && name != "__proto__" {
			target, _, err := t.traceAt(prop.Value, name)
			if err != nil {
				return err
			}
			assign := ast.Assign(ast.Member(nil, name), nil)
			t.divertToAssignment(r, assign, target)
			continue
		}
		// Descriptor-bearing properties go through a deferred
		// defineProps call.
		m := &ast.ObjectLit{}
		if err := t.traceDescriptorProp(r, prop, m); err != nil {
			return err
		}
		if len(m.Props) == 0 {
			continue // the prop diverted itself
		}
		helper := t.store.Helper("defineProps")
		call := ast.Call(nil, nil, m)
		a := r.AddAssignment(call)
		a.AddAssignmentDep(helper, &call.Fn)
		a.AddAssignmentDep(r, &call.Args[0])
		// Rehome the map's value edges onto the assignment: they were
		// registered as node deps by traceDescriptorProp.
		t.rehomeMapDeps(r, a, m)
	}

	if c.HasProto {
		setProto, _, err := t.traceAt(&value.Global{Path: []string{"Object", "setPrototypeOf"}}, "setPrototypeOf")
		if err != nil {
			return err
		}
		call := ast.Call(nil, nil, nil)
		a := r.AddAssignment(call)
		a.AddAssignmentDep(setProto, &call.Fn)
		a.AddAssignmentDep(r, &call.Args[0])
		if c.Proto == nil {
			call.Args[1] = &ast.NullLit{}
		} else {
			pr, _, err := t.traceAt(c.Proto, "__proto__")
			if err != nil {
				return err
			}
			a.AddAssignmentDep(pr, &call.Args[1])
		}
	}
	return t.applyIntegrityDeferred(r, c.Integrity)
}

// rehomeMapDeps moves the node edges whose slots live inside m onto the
// assignment a, so cycle detection does not see them as declaration-time
// dependencies.
func (t *Tracer) rehomeMapDeps(r *record.Record, a *record.Assignment, m *ast.ObjectLit) {
	inMap := map[*ast.Expr]bool{}
	for _, p := range m.Props {
		collectSlots(p, inMap)
	}
	kept := r.Deps[:0]
	for _, e := range r.Deps {
		if inMap[e.Slot] {
			a.Deps = append(a.Deps, e)
			continue
		}
		kept = append(kept, e)
	}
	r.Deps = kept
}

func collectSlots(p *ast.Property, out map[*ast.Expr]bool) {
	out[&p.Value] = true
	if tuple, ok := p.Value.(*ast.ArrayLit); ok {
		for i := range tuple.Elems {
			out[&tuple.Elems[i]] = true
			if inner, ok := tuple.Elems[i].(*ast.ArrayLit); ok {
				for j := range inner.Elems {
					out[&inner.Elems[j]] = true
				}
			}
		}
	}
}

// applyIntegrityDeferred emits the integrity call as the final assignment.
func (t *Tracer) applyIntegrityDeferred(r *record.Record, level value.Integrity) error {
	var method string
	switch level {
	case value.Extensible:
		return nil
	case value.NonExtensible:
		method = "preventExtensions"
	case value.Sealed:
		method = "seal"
	case value.Frozen:
		method = "freeze"
	}
	g, _, err := t.traceAt(&value.Global{Path: []string{"Object", method}}, method)
	if err != nil {
		return err
	}
	call := ast.Call(nil, nil)
	a := r.AddAssignment(call)
	a.AddAssignmentDep(g, &call.Fn)
	a.AddAssignmentDep(r, &call.Args[0])
	return nil
}
