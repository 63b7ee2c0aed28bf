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

// Package split partitions records into output files: one per entry point,
// one per user-declared split point, and a shared common file for records
// reachable from more than one output.
//
// Record to output is a function, not a relation. Values the emitter can
// duplicate freely (literal primitives, global references, helpers) are
// exempt from assignment: each output emits its own copy.
package split

import (
	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/token"
	"livepack.dev/go/value"
)

// An Entry is one user-declared entry point.
type Entry struct {
	Root *record.Record
	Name string
}

// A Point is one user-declared split point.
type Point struct {
	Root  *record.Record
	Name  string
	Async bool
}

// Result carries the splitter's decision.
type Result struct {
	// Outputs in emission order: entries in user order, then split and
	// common files by ascending depth, then assignment order.
	Outputs []*record.Output
}

// Assign gives every non-duplicable record exactly one output.
func Assign(store *record.Store, entries []Entry, points []Point) (*Result, error) {
	s := &splitter{
		owners: map[*record.Record]map[*record.Output]bool{},
		roots:  map[*record.Record]*record.Output{},
	}

	for _, e := range entries {
		out := &record.Output{Type: record.EntryPoint, Name: e.Name, Exports: []*record.Record{e.Root}}
		if out.Name == "" {
			out.Name = "index"
		}
		s.outputs = append(s.outputs, out)
		s.roots[e.Root] = out
	}
	for _, pt := range points {
		typ := record.SyncSplit
		if pt.Async {
			typ = record.AsyncSplit
		}
		out := &record.Output{Type: typ, Name: pt.Name, Exports: []*record.Record{pt.Root}}
		if out.Name == "" {
			out.Name = "split"
		}
		s.outputs = append(s.outputs, out)
		s.roots[pt.Root] = out
	}

	for _, out := range s.outputs {
		s.reach(out, out.Exports[0])
	}

	if err := s.checkAsyncCycles(store); err != nil {
		return nil, err
	}

	s.assign(store)
	s.wireImports(store)
	s.depths()
	s.index()

	return &Result{Outputs: s.outputs}, nil
}

type splitter struct {
	outputs []*record.Output
	common  *record.Output

	// owners is the set of outputs that reach each record.
	owners map[*record.Record]map[*record.Output]bool

	// roots maps a record that anchors its own output to that output.
	roots map[*record.Record]*record.Output
}

// Duplicable reports whether every output can emit its own copy of r
// instead of importing it: literal primitives, global references, built-in
// module requires, and runtime helpers. Symbols are primitives with
// observable identity and are excluded.
func Duplicable(r *record.Record) bool {
	switch r.Kind {
	case value.UndefinedKind, value.NullKind, value.BoolKind,
		value.NumberKind, value.StringKind, value.BigIntKind:
		return true
	case value.GlobalKind, value.BuiltinModuleKind:
		return true
	}
	return r.Helper != ""
}

// reach walks the dependency graph from r, marking ownership by out. The
// walk stops at records that anchor another output: the reference becomes
// an import, and the anchored output owns its own subgraph.
func (s *splitter) reach(out *record.Output, r *record.Record) {
	if Duplicable(r) {
		// Still recurse: a global's arguments may be records.
		for _, e := range r.Deps {
			s.reachEdge(out, e.Target)
		}
		return
	}
	if s.owners[r][out] {
		return
	}
	m := s.owners[r]
	if m == nil {
		m = map[*record.Output]bool{}
		s.owners[r] = m
	}
	m[out] = true

	for _, e := range r.Deps {
		s.reachEdge(out, e.Target)
	}
	for _, a := range r.Assignments {
		for _, e := range a.Deps {
			s.reachEdge(out, e.Target)
		}
	}
	if r.Scope != nil && r.Scope.Record != nil {
		s.reachEdge(out, r.Scope.Record)
	}
}

func (s *splitter) reachEdge(out *record.Output, target *record.Record) {
	if anchored, ok := s.roots[target]; ok && anchored != out {
		// Crossing into another output's subgraph: traverse it once on
		// behalf of its own output.
		s.reach(anchored, target)
		return
	}
	s.reach(out, target)
}

// checkAsyncCycles rejects async split points whose target transitively
// contains its own import function.
func (s *splitter) checkAsyncCycles(store *record.Store) error {
	for _, r := range store.Records() {
		if r.Kind != value.ImportFnKind || r.ImportTarget == nil {
			continue
		}
		if reaches(r.ImportTarget, r, map[*record.Record]bool{}) {
			return errors.NewKindf(errors.CircularSplitAsync, token.NoPos,
				[]string{r.Name},
				"async split point %q transitively contains its own import function", r.Name)
		}
	}
	return nil
}

func reaches(from, to *record.Record, seen map[*record.Record]bool) bool {
	if from == to {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	for _, e := range from.Deps {
		if reaches(e.Target, to, seen) {
			return true
		}
	}
	for _, a := range from.Assignments {
		for _, e := range a.Deps {
			if reaches(e.Target, to, seen) {
				return true
			}
		}
	}
	if from.Scope != nil && from.Scope.Record != nil {
		if reaches(from.Scope.Record, to, seen) {
			return true
		}
	}
	return false
}

// assign fixes each record's output: its sole owner, or the common file
// when several outputs reach it.
func (s *splitter) assign(store *record.Store) {
	for _, r := range store.Records() {
		owners := s.owners[r]
		if len(owners) == 0 {
			continue // duplicable or unreachable
		}
		if anchored, ok := s.roots[r]; ok {
			r.Output = anchored
		} else if len(owners) == 1 {
			for out := range owners {
				r.Output = out
			}
		} else {
			r.Output = s.commonOutput()
		}
		r.Output.Records = append(r.Output.Records, r)
	}
}

func (s *splitter) commonOutput() *record.Output {
	if s.common == nil {
		s.common = &record.Output{Type: record.Common, Name: "common"}
		s.outputs = append(s.outputs, s.common)
	}
	return s.common
}

// wireImports adds output dependencies and export lists for every
// cross-output edge. Async import functions do not create static imports;
// the emitter resolves their target filename instead.
func (s *splitter) wireImports(store *record.Store) {
	export := func(target *record.Record) {
		out := target.Output
		for _, ex := range out.Exports {
			if ex == target {
				return
			}
		}
		out.Exports = append(out.Exports, target)
	}
	for _, r := range store.Records() {
		if r.Output == nil {
			continue
		}
		cross := func(target *record.Record) {
			if Duplicable(target) || target.Output == nil || target.Output == r.Output {
				return
			}
			r.Output.AddDependency(target.Output)
			export(target)
		}
		for _, e := range r.Deps {
			cross(e.Target)
		}
		for _, a := range r.Assignments {
			for _, e := range a.Deps {
				cross(e.Target)
			}
		}
	}
}

// depths orders outputs: entry points keep user order at depth zero;
// everything else sorts by import distance from the nearest entry, then by
// creation order.
func (s *splitter) depths() {
	for _, out := range s.outputs {
		out.Depth = -1
	}
	var queue []*record.Output
	for _, out := range s.outputs {
		if out.Type.Is(record.EntryPoint) {
			out.Depth = 0
			queue = append(queue, out)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range cur.Dependencies {
			if dep.Depth == -1 || dep.Depth > cur.Depth+1 {
				dep.Depth = cur.Depth + 1
				queue = append(queue, dep)
			}
		}
	}
	// Async-only outputs may be unreached by static dependencies.
	for _, out := range s.outputs {
		if out.Depth == -1 {
			out.Depth = 1
		}
	}
}

// index assigns serial indexes in final emission order.
func (s *splitter) index() {
	ordered := make([]*record.Output, 0, len(s.outputs))
	for _, out := range s.outputs {
		if out.Type.Is(record.EntryPoint) {
			ordered = append(ordered, out)
		}
	}
	for depth := 1; len(ordered) < len(s.outputs); depth++ {
		for _, out := range s.outputs {
			if !out.Type.Is(record.EntryPoint) && out.Depth == depth {
				ordered = append(ordered, out)
			}
		}
		if depth > len(s.outputs) {
			// Disconnected leftovers keep creation order.
			for _, out := range s.outputs {
				if out.Index == 0 && !contains(ordered, out) {
					ordered = append(ordered, out)
				}
			}
			break
		}
	}
	s.outputs = ordered
	for i, out := range s.outputs {
		out.Index = i
	}
}

func contains(list []*record.Output, out *record.Output) bool {
	for _, o := range list {
		if o == out {
			return true
		}
	}
	return false
}
