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

package ast

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func TestIsValidIdent(t *testing.T) {
	valid := []string{"a", "$", "_", "foo", "foo1", "$foo", "létter", "a$b"}
	for _, s := range valid {
		qt.Assert(t, qt.IsTrue(IsValidIdent(s)), qt.Commentf("ident %q", s))
	}
	invalid := []string{"", "1a", "a-b", "class", "await", "let", "a b", "✓"}
	for _, s := range invalid {
		qt.Assert(t, qt.IsFalse(IsValidIdent(s)), qt.Commentf("ident %q", s))
	}
}

func TestIsValidPropertyName(t *testing.T) {
	// Reserved words are fine after a dot.
	qt.Assert(t, qt.IsTrue(IsValidPropertyName("class")))
	qt.Assert(t, qt.IsTrue(IsValidPropertyName("default")))
	qt.Assert(t, qt.IsFalse(IsValidPropertyName("0abc")))
	qt.Assert(t, qt.IsFalse(IsValidPropertyName("a-b")))
}

func TestArrayIndex(t *testing.T) {
	tests := []struct {
		key  string
		want uint32
		ok   bool
	}{
		{"0", 0, true},
		{"1", 1, true},
		{"4294967294", 4294967294, true}, // 2^32-2: the largest index
		{"4294967295", 0, false},         // 2^32-1: an ordinary string key
		{"9007199254740992", 0, false},   // unsafe integer stays verbatim
		{"01", 0, false},                 // not canonical
		{"-1", 0, false},
		{"", 0, false},
		{"1.5", 0, false},
	}
	for _, tc := range tests {
		got, ok := ArrayIndex(tc.key)
		qt.Assert(t, qt.Equals(ok, tc.ok), qt.Commentf("key %q", tc.key))
		if ok {
			qt.Assert(t, qt.Equals(got, tc.want), qt.Commentf("key %q", tc.key))
		}
	}
}

func TestPropertyKey(t *testing.T) {
	qt.Assert(t, qt.DeepEquals[Expr](PropertyKey("foo"), NewIdent("foo")))
	qt.Assert(t, qt.DeepEquals[Expr](PropertyKey("3"), NewNumber(3)))
	qt.Assert(t, qt.DeepEquals[Expr](PropertyKey("a-b"), NewString("a-b")))
}

func TestClonerRemapsIdents(t *testing.T) {
	b := NewIdent("b")
	fn := &FuncExpr{Arrow: true, ExprBody: &UpdateExpr{Op: "++", X: b, Prefix: true}}

	c := NewCloner()
	clone := c.Expr(fn).(*FuncExpr)

	nb := c.Ident(b)
	qt.Assert(t, qt.IsNotNil(nb))
	qt.Assert(t, qt.Equals(nb.Name, "b"))
	// The copy is deep: renaming the clone's ident leaves the original
	// untouched.
	nb.Name = "z"
	qt.Assert(t, qt.Equals(b.Name, "b"))
	qt.Assert(t, qt.Equals(clone.ExprBody.(*UpdateExpr).X.(*Ident).Name, "z"))
}
