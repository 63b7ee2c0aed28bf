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

package record

import (
	"math"
	"math/big"
	"testing"

	"github.com/go-quicktest/qt"

	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

func TestPrimitiveIdentity(t *testing.T) {
	s := NewStore()

	// NaN interns to a single record regardless of payload bits.
	nan1 := value.Number(math.NaN())
	nan2 := value.Number(math.Float64frombits(math.Float64bits(math.NaN()) | 1))
	r := s.Add(nan1, "")
	got, ok := s.Find(nan2)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, r))

	// Negative zero is distinct from positive zero.
	pz := s.Add(value.Number(0), "")
	_, ok = s.Find(value.Number(math.Copysign(0, -1)))
	qt.Assert(t, qt.IsFalse(ok))
	nz := s.Add(value.Number(math.Copysign(0, -1)), "")
	qt.Assert(t, qt.IsFalse(pz == nz))

	// Strings intern by content.
	s1 := s.Add(value.Str("hello"), "")
	got, ok = s.Find(value.Str("hello"))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, s1))
	_, ok = s.Find(value.Str("world"))
	qt.Assert(t, qt.IsFalse(ok))

	// Bigints intern by value, not by pointer.
	b1 := s.Add(&value.BigInt{Int: big.NewInt(42)}, "")
	got, ok = s.Find(&value.BigInt{Int: big.NewInt(42)})
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, b1))
}

func TestReferenceIdentity(t *testing.T) {
	s := NewStore()
	o1 := value.NewObject()
	o2 := value.NewObject()
	r1 := s.Add(o1, "")
	_, ok := s.Find(o2)
	qt.Assert(t, qt.IsFalse(ok))
	got, ok := s.Find(o1)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, r1))

	// Symbols have reference identity even though they are primitives.
	sym1 := &value.Symbol{Desc: "tag"}
	sym2 := &value.Symbol{Desc: "tag"}
	s.Add(sym1, "")
	_, ok = s.Find(sym2)
	qt.Assert(t, qt.IsFalse(ok))
}

func TestGlobalIdentityByPath(t *testing.T) {
	s := NewStore()
	g1 := &value.Global{Path: []string{"Object", "create"}}
	g2 := &value.Global{Path: []string{"Object", "create"}}
	r := s.Add(g1, "")
	got, ok := s.Find(g2)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got, r))
}

func TestDependentsInverse(t *testing.T) {
	s := NewStore()
	parent := s.New(value.ObjectKind, "parent")
	child := s.New(value.NumberKind, "child")

	lit := &ast.ArrayLit{Elems: make([]ast.Expr, 1)}
	parent.Node = lit
	e := AddDep(parent, child, &lit.Elems[0])

	qt.Assert(t, qt.Equals(len(parent.Deps), 1))
	qt.Assert(t, qt.Equals(len(child.Dependents), 1))
	qt.Assert(t, qt.Equals(child.Dependents[0], e))
	qt.Assert(t, qt.Equals(e.From, parent))

	// Patching through the edge rewrites the located slot.
	e.Patch(ast.NewIdent("x"))
	qt.Assert(t, qt.Equals(lit.Elems[0].(*ast.Ident).Name, "x"))
}

func TestMoveDepToAssignment(t *testing.T) {
	s := NewStore()
	parent := s.New(value.ObjectKind, "parent")
	child := s.New(value.ObjectKind, "child")

	lit := &ast.ObjectLit{Props: []*ast.Property{{Key: ast.NewIdent("x")}}}
	parent.Node = lit
	e := AddDep(parent, child, &lit.Props[0].Value)

	assign := ast.Assign(ast.Member(nil, "x"), nil)
	parent.MoveDepToAssignment(e, assign, &assign.Rhs)

	qt.Assert(t, qt.Equals(len(parent.Deps), 0))
	qt.Assert(t, qt.Equals(len(parent.Assignments), 1))
	// The original slot was neutralized.
	_, isUndef := lit.Props[0].Value.(*ast.UndefinedLit)
	qt.Assert(t, qt.IsTrue(isUndef))
	// The assignment edge points at the new slot.
	a := parent.Assignments[0]
	qt.Assert(t, qt.Equals(len(a.Deps), 1))
	qt.Assert(t, qt.Equals(a.Deps[0].Target, child))
}

func TestHelperRecordsShared(t *testing.T) {
	s := NewStore()
	h1 := s.Helper("defineProps")
	h2 := s.Helper("defineProps")
	qt.Assert(t, qt.Equals(h1, h2))
	qt.Assert(t, qt.Equals(h1.Helper, "defineProps"))
}
