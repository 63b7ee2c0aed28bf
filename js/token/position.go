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

// Package token defines source positions for values captured by the
// instrumenter. Positions refer to the original user source, not to the
// emitted output; they travel with function metadata and surface in error
// messages.
package token

import (
	"cmp"
	"fmt"
)

// A Pos describes a source position within an instrumented file, including
// line and column location.
//
// A Pos is valid if the line number is > 0.
type Pos struct {
	Filename string // filename, if any
	Line     int    // line number, starting at 1
	Column   int    // column number, starting at 1 (byte count)
}

// NoPos is the zero value for [Pos]; there is no file and line information
// associated with it, and [Pos.IsValid] is false.
var NoPos = Pos{}

// IsValid reports whether the position is valid.
func (p Pos) IsValid() bool { return p.Line > 0 }

// String returns a human-readable form of a position in one of several forms:
//
//	file:line:column    valid position with file name
//	line:column         valid position without file name
//	file                invalid position with file name
//	-                   invalid position without file name
func (p Pos) String() string {
	s := p.Filename
	if p.IsValid() {
		if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	if s == "" {
		s = "-"
	}
	return s
}

// Compare returns an integer comparing two positions. The result will be 0
// if p == q, -1 if p < q, and +1 if p > q. [NoPos] is always larger than any
// valid position, as it tends to relate to values produced from evaluating
// existing values with valid positions.
func (p Pos) Compare(q Pos) int {
	if p == q {
		return 0
	} else if p == NoPos {
		return +1
	} else if q == NoPos {
		return -1
	}
	if c := cmp.Compare(p.Filename, q.Filename); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Line, q.Line); c != 0 {
		return c
	}
	return cmp.Compare(p.Column, q.Column)
}
