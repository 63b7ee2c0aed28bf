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

package errors

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"

	"livepack.dev/go/js/token"
)

func TestKinds(t *testing.T) {
	err := NewKindf(Unreconstructible, token.NoPos, []string{"root", "handle"},
		"cannot serialize socket")
	qt.Assert(t, qt.IsTrue(Is(err, Unreconstructible)))
	qt.Assert(t, qt.IsFalse(Is(err, HashCollision)))
	qt.Assert(t, qt.DeepEquals(Path(err), []string{"root", "handle"}))
	qt.Assert(t, qt.Equals(err.Error(), "cannot serialize socket"))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NewKindf(PlaceholderEscape, token.NoPos, nil, "bad literal")
	outer := Wrapf(inner, token.NoPos, "emitting output %q", "index")
	qt.Assert(t, qt.IsTrue(Is(outer, PlaceholderEscape)))
	qt.Assert(t, qt.Equals(outer.Error(), `emitting output "index": bad literal`))
}

func TestWrappedPath(t *testing.T) {
	inner := NewKindf(UnsupportedGlobal, token.NoPos, []string{"a", "b"}, "nope")
	outer := Wrapf(inner, token.NoPos, "context")
	qt.Assert(t, qt.DeepEquals(Path(outer), []string{"a", "b"}))
}

func TestPositions(t *testing.T) {
	pos := token.Pos{Filename: "src/app.js", Line: 3, Column: 7}
	err := Newf(pos, "boom")
	qt.Assert(t, qt.DeepEquals(Positions(err), []token.Pos{pos}))
	qt.Assert(t, qt.Equals(pos.String(), "src/app.js:3:7"))
	qt.Assert(t, qt.Equals(token.NoPos.String(), "-"))
}

func TestAppendFlattens(t *testing.T) {
	a := Newf(token.NoPos, "one")
	b := Newf(token.NoPos, "two")
	c := Newf(token.NoPos, "three")
	list := Append(Append(a, b), c)
	qt.Assert(t, qt.Equals(len(Errors(list)), 3))

	// Appending a list to a list keeps flat structure.
	other := Append(Newf(token.NoPos, "four"), Newf(token.NoPos, "five"))
	all := Append(list, other)
	qt.Assert(t, qt.Equals(len(Errors(all)), 5))
}

func TestPromote(t *testing.T) {
	plain := New("plain failure")
	err := Promote(plain, "while serializing")
	qt.Assert(t, qt.IsTrue(Is(err, plain)))
	qt.Assert(t, qt.Equals(err.Error(), "while serializing: plain failure"))
}

func TestPrint(t *testing.T) {
	var sb strings.Builder
	err := NewKindf(FrozenConflict, token.Pos{Filename: "f.js", Line: 1, Column: 2},
		[]string{"x", "y"}, "cannot inject")
	Print(&sb, err)
	out := sb.String()
	qt.Assert(t, qt.IsTrue(strings.Contains(out, "cannot inject")))
	qt.Assert(t, qt.IsTrue(strings.Contains(out, "x.y")))
	qt.Assert(t, qt.IsTrue(strings.Contains(out, "f.js:1:2")))
}

func TestSortAndSanitize(t *testing.T) {
	p1 := token.Pos{Filename: "a.js", Line: 2, Column: 1}
	p2 := token.Pos{Filename: "a.js", Line: 1, Column: 1}
	list := Append(Newf(p1, "later"), Newf(p2, "earlier"))
	list = Append(list, Newf(p2, "earlier"))
	got := Sanitize(list)
	errs := Errors(got)
	qt.Assert(t, qt.Equals(len(errs), 2))
	qt.Assert(t, qt.Equals(errs[0].Error(), "earlier"))
}
