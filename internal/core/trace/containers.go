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
	"encoding/binary"
	"math"
	"slices"

	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

func (t *Tracer) object(r *record.Record, o *value.Object) error {
	base := &ast.ObjectLit{}
	r.Node = base
	return t.finishCommon(r, &o.Common, base)
}

func (t *Tracer) array(r *record.Record, a *value.Array) error {
	lit := &ast.ArrayLit{Elems: make([]ast.Expr, len(a.Elems))}
	r.Node = lit
	for i, el := range a.Elems {
		if el == nil {
			continue // hole
		}
		key := keyOfIndex(i)
		elem, circular, err := t.traceAt(el, key)
		if err != nil {
			return err
		}
		if circular {
			// The slot stays a hole; the element is written after both
			// declarations exist.
			assign := ast.Assign(&ast.MemberExpr{
				Obj:      nil,
				Prop:     ast.NewNumber(float64(i)),
				Computed: true,
			}, nil)
			t.divertToAssignment(r, assign, elem)
			continue
		}
		lit.Elems[i] = nil
		record.AddDep(r, elem, &lit.Elems[i])
	}
	return t.finishCommon(r, &a.Common, nil)
}

// divertToAssignment finishes a cyclic edge: assign's member expression
// gets r itself as the object and target as the right-hand side, emitted
// after both declarations.
func (t *Tracer) divertToAssignment(r *record.Record, assign *ast.AssignExpr, target *record.Record) {
	a := r.AddAssignment(assign)
	member := assign.Lhs.(*ast.MemberExpr)
	a.AddAssignmentDep(r, &member.Obj)
	a.AddAssignmentDep(target, &assign.Rhs)
}

func (t *Tracer) regexp(r *record.Record, re *value.RegExp) error {
	r.Node = &ast.RegExpLit{Pattern: re.Pattern, Flags: re.Flags}
	setHint(r, "regexp")
	if re.LastIndex != 0 {
		assign := ast.Assign(ast.Member(nil, "lastIndex"), ast.NewNumber(re.LastIndex))
		a := r.AddAssignment(assign)
		a.AddAssignmentDep(r, &assign.Lhs.(*ast.MemberExpr).Obj)
	}
	return t.finishCommon(r, &re.Common, nil)
}

func (t *Tracer) date(r *record.Record, d *value.Date) error {
	g, _, err := t.traceAt(&value.Global{Path: []string{"Date"}}, "Date")
	if err != nil {
		return err
	}
	n := &ast.NewExpr{Args: []ast.Expr{ast.NewNumber(d.Ms)}}
	record.AddDep(r, g, &n.Fn)
	r.Node = n
	setHint(r, "date")
	return t.finishCommon(r, &d.Common, nil)
}

func (t *Tracer) mapValue(r *record.Record, m *value.Map) error {
	g, _, err := t.traceAt(&value.Global{Path: []string{"Map"}}, "Map")
	if err != nil {
		return err
	}
	n := &ast.NewExpr{}
	record.AddDep(r, g, &n.Fn)
	r.Node = n
	setHint(r, "map")

	entries := &ast.ArrayLit{Elems: make([]ast.Expr, 0, len(m.Entries))}
	for i, kv := range m.Entries {
		k, kCirc, err := t.traceAt(kv[0], keyOfIndex(i))
		if err != nil {
			return err
		}
		v, vCirc, err := t.traceAt(kv[1], keyOfIndex(i))
		if err != nil {
			return err
		}
		if kCirc || vCirc {
			// map.set(k, v) after construction.
			call := ast.Call(ast.Member(nil, "set"), nil, nil)
			a := r.AddAssignment(call)
			a.AddAssignmentDep(r, &call.Fn.(*ast.MemberExpr).Obj)
			a.AddAssignmentDep(k, &call.Args[0])
			a.AddAssignmentDep(v, &call.Args[1])
			continue
		}
		pair := &ast.ArrayLit{Elems: make([]ast.Expr, 2)}
		record.AddDep(r, k, &pair.Elems[0])
		record.AddDep(r, v, &pair.Elems[1])
		entries.Elems = append(entries.Elems, pair)
	}
	if len(entries.Elems) > 0 {
		n.Args = []ast.Expr{entries}
	}
	return t.finishCommon(r, &m.Common, nil)
}

func (t *Tracer) setValue(r *record.Record, s *value.Set) error {
	g, _, err := t.traceAt(&value.Global{Path: []string{"Set"}}, "Set")
	if err != nil {
		return err
	}
	n := &ast.NewExpr{}
	record.AddDep(r, g, &n.Fn)
	r.Node = n
	setHint(r, "set")

	elems := &ast.ArrayLit{}
	slots := make([]ast.Expr, 0, len(s.Elems))
	var deps []*record.Record
	for i, el := range s.Elems {
		e, circular, err := t.traceAt(el, keyOfIndex(i))
		if err != nil {
			return err
		}
		if circular {
			call := ast.Call(ast.Member(nil, "add"), nil)
			a := r.AddAssignment(call)
			a.AddAssignmentDep(r, &call.Fn.(*ast.MemberExpr).Obj)
			a.AddAssignmentDep(e, &call.Args[0])
			continue
		}
		slots = append(slots, nil)
		deps = append(deps, e)
	}
	elems.Elems = slots
	for i, dep := range deps {
		record.AddDep(r, dep, &elems.Elems[i])
	}
	if len(elems.Elems) > 0 {
		n.Args = []ast.Expr{elems}
	}
	return t.finishCommon(r, &s.Common, nil)
}

func (t *Tracer) typedArray(r *record.Record, ta *value.TypedArray) error {
	g, _, err := t.traceAt(&value.Global{Path: []string{ta.Ctor}}, ta.Ctor)
	if err != nil {
		return err
	}
	n := &ast.NewExpr{}
	record.AddDep(r, g, &n.Fn)
	if ta.IsZero() {
		// All-zero arrays use the constructor-with-length form.
		n.Args = []ast.Expr{ast.NewNumber(float64(ta.Len()))}
	} else {
		elems := make([]ast.Expr, ta.Len())
		for i := range elems {
			elems[i] = ast.NewNumber(typedElem(ta, i))
		}
		n.Args = []ast.Expr{&ast.ArrayLit{Elems: elems}}
	}
	r.Node = n
	setHint(r, "typedArray")
	return t.finishCommon(r, &ta.Common, nil)
}

// typedElem decodes element i of a typed array's little-endian backing
// bytes as a float64 for literal emission. BigInt64 arrays are not routed
// here; they fail classification earlier.
func typedElem(ta *value.TypedArray, i int) float64 {
	sz := ta.ElemSize()
	b := ta.Data[i*sz : (i+1)*sz]
	switch ta.Ctor {
	case "Int8Array":
		return float64(int8(b[0]))
	case "Uint8Array", "Uint8ClampedArray":
		return float64(b[0])
	case "Int16Array":
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case "Uint16Array":
		return float64(binary.LittleEndian.Uint16(b))
	case "Int32Array":
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case "Uint32Array":
		return float64(binary.LittleEndian.Uint32(b))
	case "Float32Array":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default: // Float64Array
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

func (t *Tracer) arrayBuffer(r *record.Record, ab *value.ArrayBuffer) error {
	// new Uint8Array([...]).buffer; an all-zero buffer only needs the
	// byte length.
	view := &value.TypedArray{Ctor: "Uint8Array", Data: ab.Data}
	g, _, err := t.traceAt(&value.Global{Path: []string{"Uint8Array"}}, "Uint8Array")
	if err != nil {
		return err
	}
	n := &ast.NewExpr{}
	record.AddDep(r, g, &n.Fn)
	if view.IsZero() {
		n.Args = []ast.Expr{ast.NewNumber(float64(len(ab.Data)))}
	} else {
		elems := make([]ast.Expr, len(ab.Data))
		for i, b := range ab.Data {
			elems[i] = ast.NewNumber(float64(b))
		}
		n.Args = []ast.Expr{&ast.ArrayLit{Elems: elems}}
	}
	r.Node = ast.Member(n, "buffer")
	setHint(r, "buffer")
	return t.finishCommon(r, &ab.Common, nil)
}

func (t *Tracer) boxed(r *record.Record, b *value.Boxed) error {
	prim, _, err := t.traceAt(b.Prim, "valueOf")
	if err != nil {
		return err
	}
	var node ast.Expr
	switch b.Prim.Kind() {
	case value.NumberKind, value.StringKind, value.BoolKind:
		ctor := map[value.Kind]string{
			value.NumberKind: "Number",
			value.StringKind: "String",
			value.BoolKind:   "Boolean",
		}[b.Prim.Kind()]
		g, _, err := t.traceAt(&value.Global{Path: []string{ctor}}, ctor)
		if err != nil {
			return err
		}
		n := &ast.NewExpr{Args: make([]ast.Expr, 1)}
		record.AddDep(r, g, &n.Fn)
		record.AddDep(r, prim, &n.Args[0])
		node = n
	default:
		// Symbols and bigints have no constructor form; Object() boxes.
		g, _, err := t.traceAt(&value.Global{Path: []string{"Object"}}, "Object")
		if err != nil {
			return err
		}
		call := ast.Call(nil, nil)
		record.AddDep(r, g, &call.Fn)
		record.AddDep(r, prim, &call.Args[0])
		node = call
	}
	r.Node = node
	setHint(r, "boxed")
	return t.finishCommon(r, &b.Common, nil)
}

func (t *Tracer) arguments(r *record.Record, a *value.Arguments) error {
	helper := t.store.Helper("createArguments")
	call := ast.Call(nil, make([]ast.Expr, len(a.Elems))...)
	record.AddDep(r, helper, &call.Fn)
	for i, el := range a.Elems {
		e, circular, err := t.traceAt(el, keyOfIndex(i))
		if err != nil {
			return err
		}
		if circular {
			assign := ast.Assign(&ast.MemberExpr{Prop: ast.NewNumber(float64(i)), Computed: true}, nil)
			t.divertToAssignment(r, assign, e)
			call.Args[i] = ast.Undefined()
			continue
		}
		record.AddDep(r, e, &call.Args[i])
	}
	r.Node = call
	setHint(r, "args")
	return t.finishCommon(r, &a.Common, nil)
}

func (t *Tracer) moduleNS(r *record.Record, ns *value.ModuleNS) error {
	// The namespace is an ordinary object with the exported bindings, a
	// Module toString tag, and sealed integrity. This form is used whatever
	// ns.Native and Config.NativeNamespaces say; no engine namespace object
	// is produced.
	lit := &ast.ObjectLit{}
	r.Node = lit
	for _, ex := range ns.Exports {
		v, circular, err := t.traceAt(ex.Value, ex.Name)
		if err != nil {
			return err
		}
		if circular {
			// Seed the binding so the slot exists before the object
			// seals; the real value arrives by assignment.
			lit.Props = append(lit.Props, &ast.Property{
				Key:   ast.PropertyKey(ex.Name),
				Value: ast.Undefined(),
			})
			assign := ast.Assign(ast.Member(nil, ex.Name), nil)
			t.divertToAssignment(r, assign, v)
			continue
		}
		prop := &ast.Property{Key: ast.PropertyKey(ex.Name)}
		lit.Props = append(lit.Props, prop)
		record.AddDep(r, v, &prop.Value)
	}
	g, _, err := t.traceAt(&value.Global{Path: []string{"Symbol", "toStringTag"}}, "toStringTag")
	if err != nil {
		return err
	}
	tag := &ast.Property{Computed: true, Value: ast.NewString("Module")}
	lit.Props = append(lit.Props, tag)
	record.AddDep(r, g, &tag.Key)

	setHint(r, "namespace")
	// applyIntegrity defers the seal behind the fixup assignments, so a
	// self-referential export writes before the object locks down.
	return t.applyIntegrity(r, value.Sealed)
}

func (t *Tracer) importFn(r *record.Record, f *value.ImportFn) error {
	target, _, err := t.traceAt(f.Target, f.Name)
	if err != nil {
		return err
	}
	r.ImportTarget = target
	r.Name = f.Name
	if r.Name == "" {
		r.Name = "importSplit"
	}
	// The node is completed by the emitter once the split output's
	// filename is known; the helper dependency is registered now so the
	// splitter sees it.
	helper := t.store.Helper("importValue")
	call := ast.Call(nil)
	record.AddDep(r, helper, &call.Fn)
	r.Node = call
	return nil
}

// setHint fills a record's name hint only when the traversal did not
// already provide one (a property key or entry name).
func setHint(r *record.Record, hint string) {
	if r.Name == "" {
		r.Name = hint
	}
}

// keyOfIndex formats an integer key for error paths.
func keyOfIndex(i int) string {
	return "[" + itoa(i) + "]"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	p := len(b)
	for i > 0 {
		p--
		b[p] = byte('0' + i%10)
		i /= 10
	}
	return string(b[p:])
}

// orderProps sorts own properties per the traversal contract: integer keys
// in numeric order first, then the remaining string keys and symbol keys in
// their own enumeration order. The sort is stable so equal categories keep
// capture order.
func orderProps(props []value.Property) []value.Property {
	out := slices.Clone(props)
	slices.SortStableFunc(out, func(a, b value.Property) int {
		ai, aok := indexKey(a)
		bi, bok := indexKey(b)
		switch {
		case aok && bok:
			if ai < bi {
				return -1
			} else if ai > bi {
				return 1
			}
			return 0
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
	return out
}

func indexKey(p value.Property) (uint32, bool) {
	if p.Key.IsSymbol() {
		return 0, false
	}
	return ast.ArrayIndex(p.Key.Name)
}
