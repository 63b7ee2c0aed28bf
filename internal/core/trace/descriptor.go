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

// Descriptor bitmap bits of the defineProps property map.
const (
	bitNonWritable     = 1 << 0
	bitNonEnumerable   = 1 << 1
	bitNonConfigurable = 1 << 2
	bitProtoName       = 1 << 3
)

func descriptorBitmap(d value.Descriptor, protoName bool) int {
	bits := 0
	if !d.Writable && !d.IsAccessor() {
		bits |= bitNonWritable
	}
	if !d.Enumerable {
		bits |= bitNonEnumerable
	}
	if !d.Configurable {
		bits |= bitNonConfigurable
	}
	if protoName {
		bits |= bitProtoName
	}
	return bits
}

// finishCommon applies the shared object attributes to a record whose base
// node has been built: own properties beyond the kind's intrinsic content,
// a prototype override, and the integrity level. When base is non-nil it is
// the record's own object literal and plain properties go directly into it;
// otherwise every property goes through the defineProps helper.
func (t *Tracer) finishCommon(r *record.Record, c *value.Common, base *ast.ObjectLit) error {
	props := orderProps(c.Props)

	var mapLit *ast.ObjectLit
	ensureMap := func() *ast.ObjectLit {
		if mapLit == nil {
			mapLit = &ast.ObjectLit{}
		}
		return mapLit
	}

	for _, prop := range props {
		if err := t.traceProp(r, prop, base, ensureMap); err != nil {
			return err
		}
	}

	// Prototype override. A circular prototype is fixed up post hoc with
	// Object.setPrototypeOf.
	var protoExpr ast.Expr
	var protoRec *record.Record
	if c.HasProto {
		if c.Proto == nil {
			protoExpr = &ast.NullLit{}
		} else {
			pr, circular, err := t.traceAt(c.Proto, "__proto__")
			if err != nil {
				return err
			}
			if circular {
				setProto, _, err := t.traceAt(&value.Global{Path: []string{"Object", "setPrototypeOf"}}, "setPrototypeOf")
				if err != nil {
					return err
				}
				call := ast.Call(nil, nil, nil)
				a := r.AddAssignment(call)
				a.AddAssignmentDep(setProto, &call.Fn)
				a.AddAssignmentDep(r, &call.Args[0])
				a.AddAssignmentDep(pr, &call.Args[1])
			} else {
				protoRec = pr
			}
		}
	}

	if mapLit != nil || protoExpr != nil || protoRec != nil {
		helper := t.store.Helper("defineProps")
		call := ast.Call(nil, r.Node)
		record.AddDep(r, helper, &call.Fn)
		if mapLit == nil {
			mapLit = &ast.ObjectLit{}
		}
		call.Args = append(call.Args, mapLit)
		if protoExpr != nil {
			call.Args = append(call.Args, protoExpr)
		} else if protoRec != nil {
			call.Args = append(call.Args, nil)
			record.AddDep(r, protoRec, &call.Args[2])
		}
		r.Node = call
	}

	return t.applyIntegrity(r, c.Integrity)
}

// traceProp serializes one own property of r.
func (t *Tracer) traceProp(r *record.Record, prop value.Property, base *ast.ObjectLit, ensureMap func() *ast.ObjectLit) error {
	if prop.Key.IsSymbol() {
		return t.traceSymbolProp(r, prop, base)
	}

	name := prop.Key.Name
	isProtoName := name == "__proto__"

	if prop.IsAccessor() || !prop.IsDefault() || isProtoName {
		return t.traceDescriptorProp(r, prop, ensureMap())
	}

	// Plain data property with default flags.
	target, circular, err := t.traceAt(prop.Value, name)
	if err != nil {
		return err
	}
	if circular {
		assign := ast.Assign(ast.Member(nil, name), nil)
		t.divertToAssignment(r, assign, target)
		return nil
	}
	if base != nil {
		p := &ast.Property{Key: ast.PropertyKey(name)}
		base.Props = append(base.Props, p)
		record.AddDep(r, target, &p.Value)
		return nil
	}
	// No literal to extend; route through the props map in the simple
	// value shape, bracketing array values so the helper does not mistake
	// them for tuples.
	m := ensureMap()
	p := &ast.Property{Key: ast.PropertyKey(name)}
	m.Props = append(m.Props, p)
	if target.Kind == value.ArrayKind {
		wrap := &ast.ArrayLit{Elems: make([]ast.Expr, 1)}
		p.Value = wrap
		record.AddDep(r, target, &wrap.Elems[0])
	} else {
		record.AddDep(r, target, &p.Value)
	}
	return nil
}

// traceDescriptorProp encodes a property through the defineProps map using
// the tuple forms of the normative table.
func (t *Tracer) traceDescriptorProp(r *record.Record, prop value.Property, m *ast.ObjectLit) error {
	name := prop.Key.Name
	isProtoName := name == "__proto__"
	bitmap := descriptorBitmap(prop.Descriptor, isProtoName)

	key := ast.PropertyKey(name)
	computed := false
	if isProtoName {
		// A literal __proto__ key would set the map's prototype; the
		// computed form creates an own property, and the bitmap bit
		// tells the helper the real name.
		key = ast.NewString("__proto__")
		computed = true
	}
	p := &ast.Property{Key: key, Computed: computed}
	m.Props = append(m.Props, p)

	if prop.IsAccessor() {
		tuple := &ast.ArrayLit{Elems: make([]ast.Expr, 2, 3)}
		tuple.Elems[0] = ast.Undefined()
		tuple.Elems[1] = ast.Undefined()
		if prop.Get != nil {
			g, _, err := t.traceAt(prop.Get, name)
			if err != nil {
				return err
			}
			record.AddDep(r, g, &tuple.Elems[0])
		}
		if prop.Set != nil {
			s, _, err := t.traceAt(prop.Set, name)
			if err != nil {
				return err
			}
			record.AddDep(r, s, &tuple.Elems[1])
		}
		if bitmap != 0 {
			tuple.Elems = append(tuple.Elems, ast.NewNumber(float64(bitmap)))
		}
		p.Value = tuple
		return nil
	}

	target, circular, err := t.traceAt(prop.Value, name)
	if err != nil {
		return err
	}
	if circular {
		// Post-hoc defineProps with just this property.
		helper := t.store.Helper("defineProps")
		tuple := &ast.ArrayLit{Elems: make([]ast.Expr, 2)}
		tuple.Elems[1] = ast.NewNumber(float64(bitmap))
		inner := &ast.ObjectLit{Props: []*ast.Property{{Key: key, Computed: computed, Value: tuple}}}
		call := ast.Call(nil, nil, inner)
		a := r.AddAssignment(call)
		a.AddAssignmentDep(helper, &call.Fn)
		a.AddAssignmentDep(r, &call.Args[0])
		a.AddAssignmentDep(target, &tuple.Elems[0])
		// Drop the placeholder entry added eagerly above.
		m.Props = m.Props[:len(m.Props)-1]
		return nil
	}

	// Every path into this function carries a nonzero bitmap: accessors
	// are handled above, a non-default flag sets a flag bit, and the
	// __proto__ name sets bit 3. Array values are unambiguous in the
	// tuple form since the second element is a number.
	tuple := &ast.ArrayLit{Elems: make([]ast.Expr, 2)}
	tuple.Elems[1] = ast.NewNumber(float64(bitmap))
	p.Value = tuple
	record.AddDep(r, target, &tuple.Elems[0])
	return nil
}

// traceSymbolProp handles symbol-keyed properties: default data properties
// become computed literal entries, everything else goes through
// Object.defineProperty.
func (t *Tracer) traceSymbolProp(r *record.Record, prop value.Property, base *ast.ObjectLit) error {
	sym, _, err := t.traceAt(prop.Key.Sym, "@@"+prop.Key.Sym.Desc)
	if err != nil {
		return err
	}

	if base != nil && !prop.IsAccessor() && prop.IsDefault() {
		target, circular, err := t.traceAt(prop.Value, "@@"+prop.Key.Sym.Desc)
		if err != nil {
			return err
		}
		if !circular {
			p := &ast.Property{Computed: true}
			base.Props = append(base.Props, p)
			record.AddDep(r, sym, &p.Key)
			record.AddDep(r, target, &p.Value)
			return nil
		}
		assign := ast.Assign(&ast.MemberExpr{Computed: true}, nil)
		member := assign.Lhs.(*ast.MemberExpr)
		a := r.AddAssignment(assign)
		a.AddAssignmentDep(r, &member.Obj)
		a.AddAssignmentDep(sym, &member.Prop)
		a.AddAssignmentDep(target, &assign.Rhs)
		return nil
	}

	// Object.defineProperty(obj, sym, descriptor) after construction.
	dp, _, err := t.traceAt(&value.Global{Path: []string{"Object", "defineProperty"}}, "defineProperty")
	if err != nil {
		return err
	}
	desc := &ast.ObjectLit{}
	call := ast.Call(nil, nil, nil, desc)
	a := r.AddAssignment(call)
	a.AddAssignmentDep(dp, &call.Fn)
	a.AddAssignmentDep(r, &call.Args[0])
	a.AddAssignmentDep(sym, &call.Args[1])

	addFlag := func(name string, v bool) {
		desc.Props = append(desc.Props, &ast.Property{
			Key:   ast.NewIdent(name),
			Value: &ast.BoolLit{Value: v},
		})
	}
	if prop.IsAccessor() {
		if prop.Get != nil {
			g, _, err := t.traceAt(prop.Get, "@@get")
			if err != nil {
				return err
			}
			p := &ast.Property{Key: ast.NewIdent("get")}
			desc.Props = append(desc.Props, p)
			a.AddAssignmentDep(g, &p.Value)
		}
		if prop.Set != nil {
			s, _, err := t.traceAt(prop.Set, "@@set")
			if err != nil {
				return err
			}
			p := &ast.Property{Key: ast.NewIdent("set")}
			desc.Props = append(desc.Props, p)
			a.AddAssignmentDep(s, &p.Value)
		}
	} else {
		target, _, err := t.traceAt(prop.Value, "@@value")
		if err != nil {
			return err
		}
		p := &ast.Property{Key: ast.NewIdent("value")}
		desc.Props = append(desc.Props, p)
		a.AddAssignmentDep(target, &p.Value)
		addFlag("writable", prop.Writable)
	}
	addFlag("enumerable", prop.Enumerable)
	addFlag("configurable", prop.Configurable)
	return nil
}

// applyIntegrity wraps the record's node in the matching Object method.
func (t *Tracer) applyIntegrity(r *record.Record, level value.Integrity) error {
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
	if len(r.Assignments) > 0 {
		// Cycle fixups must run before the object locks down; the
		// integrity call becomes the final assignment.
		call := ast.Call(nil, nil)
		a := r.AddAssignment(call)
		a.AddAssignmentDep(g, &call.Fn)
		a.AddAssignmentDep(r, &call.Args[0])
		return nil
	}
	call := ast.Call(nil, r.Node)
	record.AddDep(r, g, &call.Fn)
	r.Node = call
	return nil
}
