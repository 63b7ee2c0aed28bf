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

package names

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func TestMangledSequence(t *testing.T) {
	tr := New(true)
	qt.Assert(t, qt.Equals(tr.Rename("whatever"), "a"))
	qt.Assert(t, qt.Equals(tr.Rename("x"), "b"))
	for i := 0; i < 23; i++ {
		tr.Rename("x")
	}
	// 25 names consumed: the next is the last lowercase letter.
	qt.Assert(t, qt.Equals(tr.Rename("x"), "z"))
	qt.Assert(t, qt.Equals(tr.Rename("x"), "A"))
}

func TestMangledSkipsReserved(t *testing.T) {
	tr := New(true)
	tr.Reserve("a")
	tr.Reserve("c")
	qt.Assert(t, qt.Equals(tr.Rename("x"), "b"))
	qt.Assert(t, qt.Equals(tr.Rename("x"), "d"))
}

func TestShortNameNeverReserved(t *testing.T) {
	// The sequence eventually produces two-letter names; "do", "in" and
	// "if" are keywords and must be skipped.
	tr := New(true)
	seen := map[string]bool{}
	for i := 0; i < 3000; i++ {
		name := tr.Rename("x")
		qt.Assert(t, qt.IsFalse(seen[name]), qt.Commentf("duplicate %q", name))
		seen[name] = true
	}
	qt.Assert(t, qt.IsFalse(seen["do"]))
	qt.Assert(t, qt.IsFalse(seen["in"]))
	qt.Assert(t, qt.IsFalse(seen["if"]))
}

func TestUnmangled(t *testing.T) {
	tr := New(false)
	qt.Assert(t, qt.Equals(tr.Rename("counter"), "counter"))
	qt.Assert(t, qt.Equals(tr.Rename("counter"), "counter$0"))
	qt.Assert(t, qt.Equals(tr.Rename("counter"), "counter$1"))

	// Reserved words and restricted bindings never come back verbatim.
	qt.Assert(t, qt.Equals(tr.Rename("class"), "class$0"))
	qt.Assert(t, qt.Equals(tr.Rename("arguments"), "arguments$0"))

	// Invalid hints fall back to a generated name.
	qt.Assert(t, qt.Equals(tr.Rename("a-b"), "_v"))
	qt.Assert(t, qt.Equals(tr.Rename(""), "_v$0"))
}

func TestReserve(t *testing.T) {
	tr := New(false)
	tr.Reserve("Object")
	qt.Assert(t, qt.IsTrue(tr.IsReserved("Object")))
	qt.Assert(t, qt.Equals(tr.Rename("Object"), "Object$0"))
}

func TestExportName(t *testing.T) {
	qt.Assert(t, qt.Equals(ExportName(0), "a"))
	qt.Assert(t, qt.Equals(ExportName(25), "z"))
	qt.Assert(t, qt.Equals(ExportName(26), "A"))
	qt.Assert(t, qt.Equals(ExportName(52), "aa"))
}
