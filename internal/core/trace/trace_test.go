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
	"testing"

	"github.com/go-quicktest/qt"

	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

func newTracer() (*record.Store, *Tracer) {
	store := record.NewStore()
	return store, New(store, value.NewRegistry(), Config{})
}

func TestSharedValueSingleRecord(t *testing.T) {
	store, tr := newTracer()
	shared := value.NewObject()
	root := value.NewObject()
	root.Props = []value.Property{
		{Key: value.StringKey("a"), Descriptor: value.DataProp(shared)},
		{Key: value.StringKey("b"), Descriptor: value.DataProp(shared)},
	}
	r, err := tr.Trace(root, "root")
	qt.Assert(t, qt.IsNil(err))

	// One record for the shared object, two edges to it.
	var sharedRec *record.Record
	for _, rec := range store.Records() {
		if rec.Val == value.Value(shared) {
			sharedRec = rec
		}
	}
	qt.Assert(t, qt.IsNotNil(sharedRec))
	qt.Assert(t, qt.Equals(len(sharedRec.Dependents), 2))
	qt.Assert(t, qt.Equals(len(r.Deps), 2))
}

func TestCircularSelfReference(t *testing.T) {
	_, tr := newTracer()
	a := value.NewObject()
	a.Props = []value.Property{{Key: value.StringKey("self"), Descriptor: value.DataProp(a)}}

	r, err := tr.Trace(a, "a")
	qt.Assert(t, qt.IsNil(err))

	// The cyclic edge was diverted into a deferred assignment; the
	// literal itself stays empty.
	lit, ok := r.Node.(*ast.ObjectLit)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(len(lit.Props), 0))
	qt.Assert(t, qt.Equals(len(r.Assignments), 1))
	qt.Assert(t, qt.Equals(len(r.Assignments[0].Deps), 2)) // obj and rhs, both a
}

func TestMutualCycle(t *testing.T) {
	store, tr := newTracer()
	a := value.NewObject()
	b := value.NewObject()
	a.Props = []value.Property{{Key: value.StringKey("x"), Descriptor: value.DataProp(b)}}
	b.Props = []value.Property{{Key: value.StringKey("y"), Descriptor: value.DataProp(a)}}

	ra, err := tr.Trace(a, "a")
	qt.Assert(t, qt.IsNil(err))
	var rb *record.Record
	for _, rec := range store.Records() {
		if rec.Val == value.Value(b) {
			rb = rec
		}
	}
	// a's literal keeps the x edge; b carries the deferred y assignment.
	qt.Assert(t, qt.Equals(len(ra.Deps), 1))
	qt.Assert(t, qt.Equals(len(ra.Assignments), 0))
	qt.Assert(t, qt.Equals(len(rb.Assignments), 1))
}

func TestSparseArrayHoles(t *testing.T) {
	_, tr := newTracer()
	arr := &value.Array{Elems: []value.Value{
		nil, nil, value.Num(1), nil, nil, value.Num(2),
		nil, nil, value.Num(3), nil, nil,
	}}
	r, err := tr.Trace(arr, "arr")
	qt.Assert(t, qt.IsNil(err))
	lit := r.Node.(*ast.ArrayLit)
	qt.Assert(t, qt.Equals(len(lit.Elems), 11))
	qt.Assert(t, qt.IsNil(lit.Elems[0]))
	qt.Assert(t, qt.Equals(len(r.Deps), 3))
}

func TestTypedArrayZeroForm(t *testing.T) {
	_, tr := newTracer()
	ta := &value.TypedArray{Ctor: "Uint16Array", Data: make([]byte, 8)}
	r, err := tr.Trace(ta, "ta")
	qt.Assert(t, qt.IsNil(err))
	n, ok := r.Node.(*ast.NewExpr)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(len(n.Args), 1))
	num, ok := n.Args[0].(*ast.NumberLit)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(num.Value, 4.0)) // length, not byte length
}

func TestTypedArrayNonZero(t *testing.T) {
	_, tr := newTracer()
	ta := &value.TypedArray{Ctor: "Uint16Array", Data: []byte{0x39, 0x05, 0x00, 0x00}}
	r, err := tr.Trace(ta, "ta")
	qt.Assert(t, qt.IsNil(err))
	n := r.Node.(*ast.NewExpr)
	arr := n.Args[0].(*ast.ArrayLit)
	qt.Assert(t, qt.Equals(arr.Elems[0].(*ast.NumberLit).Value, 1337.0))
	qt.Assert(t, qt.Equals(arr.Elems[1].(*ast.NumberLit).Value, 0.0))
}

func TestDescriptorWrapping(t *testing.T) {
	store, tr := newTracer()
	o := value.NewObject()
	o.Props = []value.Property{
		{Key: value.StringKey("plain"), Descriptor: value.DataProp(value.Num(1))},
		{Key: value.StringKey("hidden"), Descriptor: value.Descriptor{
			Value: value.Num(2), Writable: true, Enumerable: false, Configurable: true,
		}},
	}
	r, err := tr.Trace(o, "o")
	qt.Assert(t, qt.IsNil(err))

	// The node became defineProps(base, {hidden: [2, 2]}); the plain
	// property stayed in the base literal.
	call, ok := r.Node.(*ast.CallExpr)
	qt.Assert(t, qt.IsTrue(ok))
	base := call.Args[0].(*ast.ObjectLit)
	qt.Assert(t, qt.Equals(len(base.Props), 1))
	m := call.Args[1].(*ast.ObjectLit)
	qt.Assert(t, qt.Equals(len(m.Props), 1))
	tuple := m.Props[0].Value.(*ast.ArrayLit)
	qt.Assert(t, qt.Equals(tuple.Elems[1].(*ast.NumberLit).Value, 2.0)) // non-enumerable bit

	helper := store.Helper("defineProps")
	qt.Assert(t, qt.IsTrue(len(helper.Dependents) > 0))
}

func TestArrayValuedPropSingleWrap(t *testing.T) {
	// A default-flag array value in the props map uses the bracketed
	// shape with exactly one level of wrapping; the helper unwraps one.
	_, tr := newTracer()
	d := &value.Date{Ms: 1}
	d.Props = []value.Property{
		{Key: value.StringKey("list"), Descriptor: value.DataProp(value.NewArray(value.Num(1)))},
	}
	r, err := tr.Trace(d, "d")
	qt.Assert(t, qt.IsNil(err))

	call := r.Node.(*ast.CallExpr) // defineProps(new Date(1), {list: [<arr>]})
	m := call.Args[1].(*ast.ObjectLit)
	wrap := m.Props[0].Value.(*ast.ArrayLit)
	qt.Assert(t, qt.Equals(len(wrap.Elems), 1))

	var arrEdge *record.Edge
	for _, e := range r.Deps {
		if e.Target.Kind == value.ArrayKind {
			arrEdge = e
		}
	}
	qt.Assert(t, qt.IsNotNil(arrEdge))
	qt.Assert(t, qt.Equals(arrEdge.Slot, &wrap.Elems[0]))
}

func TestModuleNSSealAfterCircularExport(t *testing.T) {
	// A namespace exporting itself seals only after the fixup assignment
	// has written the binding.
	ns := &value.ModuleNS{}
	ns.Exports = []value.NamedExport{{Name: "self", Value: ns}}

	_, tr := newTracer()
	r, err := tr.Trace(ns, "ns")
	qt.Assert(t, qt.IsNil(err))

	// The node is the bare literal with the binding seeded undefined; the
	// export assignment and the seal follow, in that order.
	lit, ok := r.Node.(*ast.ObjectLit)
	qt.Assert(t, qt.IsTrue(ok))
	_, isUndef := lit.Props[0].Value.(*ast.UndefinedLit)
	qt.Assert(t, qt.IsTrue(isUndef))

	qt.Assert(t, qt.Equals(len(r.Assignments), 2))
	_, isAssign := r.Assignments[0].Expr.(*ast.AssignExpr)
	qt.Assert(t, qt.IsTrue(isAssign))
	sealCall, isCall := r.Assignments[1].Expr.(*ast.CallExpr)
	qt.Assert(t, qt.IsTrue(isCall))
	qt.Assert(t, qt.Equals(r.Assignments[1].Deps[0].Target.Name, "objectSeal"))
	qt.Assert(t, qt.Equals(len(sealCall.Args), 1))
}

func TestProtoKeyUsesFlag(t *testing.T) {
	_, tr := newTracer()
	o := value.NewObject()
	o.Props = []value.Property{
		{Key: value.StringKey("__proto__"), Descriptor: value.DataProp(value.Num(1))},
	}
	r, err := tr.Trace(o, "o")
	qt.Assert(t, qt.IsNil(err))
	call := r.Node.(*ast.CallExpr)
	m := call.Args[1].(*ast.ObjectLit)
	prop := m.Props[0]
	qt.Assert(t, qt.IsTrue(prop.Computed))
	tuple := prop.Value.(*ast.ArrayLit)
	// Bit 3 marks the literal __proto__ name; all descriptor flags stay
	// default.
	qt.Assert(t, qt.Equals(tuple.Elems[1].(*ast.NumberLit).Value, 8.0))
}

func TestIntegerKeyOrdering(t *testing.T) {
	_, tr := newTracer()
	o := value.NewObject()
	o.Props = []value.Property{
		{Key: value.StringKey("b"), Descriptor: value.DataProp(value.Num(1))},
		{Key: value.StringKey("2"), Descriptor: value.DataProp(value.Num(2))},
		{Key: value.StringKey("10"), Descriptor: value.DataProp(value.Num(3))},
		{Key: value.StringKey("1"), Descriptor: value.DataProp(value.Num(4))},
		{Key: value.StringKey("4294967295"), Descriptor: value.DataProp(value.Num(5))},
	}
	r, err := tr.Trace(o, "o")
	qt.Assert(t, qt.IsNil(err))
	lit := r.Node.(*ast.ObjectLit)
	var keys []string
	for _, p := range lit.Props {
		switch k := p.Key.(type) {
		case *ast.Ident:
			keys = append(keys, k.Name)
		case *ast.NumberLit:
			keys = append(keys, formatKey(k.Value))
		case *ast.StringLit:
			keys = append(keys, k.Value)
		}
	}
	// Integer keys numerically first; 2^32-1 is not an index and keeps
	// enumeration order among the string keys.
	qt.Assert(t, qt.DeepEquals(keys, []string{"1", "2", "10", "b", "4294967295"}))
}

func formatKey(f float64) string {
	return map[float64]string{1: "1", 2: "2", 10: "10"}[f]
}

func TestFrozenObject(t *testing.T) {
	_, tr := newTracer()
	o := value.NewObject()
	o.Integrity = value.Frozen
	r, err := tr.Trace(o, "o")
	qt.Assert(t, qt.IsNil(err))
	call, ok := r.Node.(*ast.CallExpr)
	qt.Assert(t, qt.IsTrue(ok))
	// Object.freeze(...) with the global as an edge.
	qt.Assert(t, qt.Equals(len(r.Deps), 1))
	qt.Assert(t, qt.Equals(r.Deps[0].Target.Name, "objectFreeze"))
	qt.Assert(t, qt.Equals(len(call.Args), 1))
}

func TestUnsupportedGlobal(t *testing.T) {
	_, tr := newTracer()
	g := &value.Global{Path: []string{"require"}}
	_, err := tr.Trace(g, "g")
	qt.Assert(t, qt.IsTrue(errors.Is(err, errors.UnsupportedGlobal)))
}

func TestUnreconstructible(t *testing.T) {
	_, tr := newTracer()
	_, err := tr.Trace(nil, "root")
	qt.Assert(t, qt.IsTrue(errors.Is(err, errors.Unreconstructible)))
}

func TestErrorPath(t *testing.T) {
	_, tr := newTracer()
	inner := value.NewObject()
	inner.Props = []value.Property{
		{Key: value.StringKey("bad"), Descriptor: value.DataProp(&value.Global{Path: []string{"module"}})},
	}
	root := value.NewObject()
	root.Props = []value.Property{
		{Key: value.StringKey("nested"), Descriptor: value.DataProp(inner)},
	}
	_, err := tr.Trace(root, "root")
	qt.Assert(t, qt.IsTrue(errors.Is(err, errors.UnsupportedGlobal)))
	qt.Assert(t, qt.DeepEquals(errors.Path(err), []string{"root", "nested", "bad"}))
}

func TestMapAndSet(t *testing.T) {
	_, tr := newTracer()
	m := &value.Map{Entries: [][2]value.Value{
		{value.Str("k"), value.Num(1)},
	}}
	r, err := tr.Trace(m, "m")
	qt.Assert(t, qt.IsNil(err))
	n := r.Node.(*ast.NewExpr)
	qt.Assert(t, qt.Equals(len(n.Args), 1))

	s := &value.Set{Elems: []value.Value{value.Num(1), value.Num(2)}}
	rs, err := tr.Trace(s, "s")
	qt.Assert(t, qt.IsNil(err))
	ns := rs.Node.(*ast.NewExpr)
	arr := ns.Args[0].(*ast.ArrayLit)
	qt.Assert(t, qt.Equals(len(arr.Elems), 2))
}

func TestGlobalNameHint(t *testing.T) {
	qt.Assert(t, qt.Equals(globalName([]string{"Object", "create"}), "objectCreate"))
	qt.Assert(t, qt.Equals(globalName([]string{"Symbol", "iterator"}), "symbolIterator"))
	qt.Assert(t, qt.Equals(globalName([]string{"Math"}), "math"))
}
