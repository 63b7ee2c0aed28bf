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

// Package names produces the identifiers of emitted code. A Transform
// instance is created per output file, seeded with every name the file
// must not shadow: globals it references, frozen scope variables, and
// language reserved words.
package names

import (
	"fmt"

	"livepack.dev/go/js/ast"
)

// A Transform generates fresh identifiers for local bindings on demand.
type Transform interface {
	// Rename returns a fresh legal identifier for a binding whose
	// original name was orig. The result is reserved: no later call
	// returns it again.
	Rename(orig string) string

	// Reserve marks name as taken without producing it, for frozen names
	// and referenced globals.
	Reserve(name string)

	// IsReserved reports whether name is already taken.
	IsReserved(name string) bool
}

// New returns a Transform. With mangle set, generated names are the
// shortest legal identifiers (a, b, ..., z, A, ..., Z, aa, ab, ...);
// otherwise the original name is kept where possible, with a $0, $1, ...
// suffix on collision.
func New(mangle bool) Transform {
	if mangle {
		return &mangled{used: newUsed()}
	}
	return &unmangled{used: newUsed()}
}

// used tracks taken names. Language reserved words and the two
// strict-mode-restricted bindings are taken from the start.
type used map[string]bool

func newUsed() used {
	return used{"arguments": true, "eval": true}
}

func (u used) taken(name string) bool {
	return u[name] || ast.IsReservedWord(name)
}

type mangled struct {
	used used
	next int
}

func (t *mangled) Reserve(name string)         { t.used[name] = true }
func (t *mangled) IsReserved(name string) bool { return t.used.taken(name) }

func (t *mangled) Rename(string) string {
	for {
		name := shortName(t.next)
		t.next++
		if !t.used.taken(name) {
			t.used[name] = true
			return name
		}
	}
}

// shortName returns the n-th name of the sequence a..z, A..Z, aa, ab, ...
// The leading character cycles through 52 letters; subsequent characters
// also admit digits.
func shortName(n int) string {
	const first = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const rest = first + "0123456789"
	size, length := len(first), 1
	for n >= size {
		n -= size
		size *= len(rest)
		length++
	}
	b := make([]byte, length)
	for i := length - 1; i > 0; i-- {
		b[i] = rest[n%len(rest)]
		n /= len(rest)
	}
	b[0] = first[n]
	return string(b)
}

// ExportName returns the stable exported binding name for the i-th export
// of an output: the same shortest-identifier sequence the mangler uses.
// Export names are fixed before emission so importing files can be emitted
// in any order.
func ExportName(i int) string {
	return shortName(i)
}

type unmangled struct {
	used used
}

func (t *unmangled) Reserve(name string)         { t.used[name] = true }
func (t *unmangled) IsReserved(name string) bool { return t.used.taken(name) }

func (t *unmangled) Rename(orig string) string {
	// Reserved words pass as hints and collide below, gaining a suffix.
	if !ast.IsValidPropertyName(orig) {
		orig = "_v"
	}
	if !t.used.taken(orig) {
		t.used[orig] = true
		return orig
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s$%d", orig, i)
		if !t.used.taken(name) {
			t.used[name] = true
			return name
		}
	}
}
