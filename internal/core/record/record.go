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

// Package record defines the serialization planning graph: one record per
// distinct live value, dependency edges locating where each record's
// identifier is spliced into its dependents' syntax, and deferred
// assignments that close cycles.
//
// Records are created by the tracer, mutated by the scope processor, and
// finalized by the emitter; after emission they are read-only.
package record

import (
	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

// A Record is the planning node for one value.
type Record struct {
	// ID is a stable small integer, assigned in creation order. It exists
	// for debugging and deterministic tie-breaking, never for semantics.
	ID int

	Kind value.Kind

	// Name is a hint for the generated identifier, such as a function's
	// name or the global path tail. It may be empty.
	Name string

	// Val is the live value this record plans for. Internal records
	// created by the scope processor (scope factories, frame activations)
	// and helper records have no value.
	Val value.Value

	// Node is the AST fragment that reconstructs the value. Slots inside
	// it that refer to other records are located by Deps and patched at
	// emission time; until then they hold nil or placeholder expressions.
	Node ast.Expr

	// Deps are the ordered dependency edges of Node.
	Deps []*Edge

	// Dependents is the inverse of Deps over the whole graph: one entry
	// per edge that targets this record.
	Dependents []*Edge

	// Assignments are deferred statements emitted after this record's
	// declaration, used for cyclic property assignment, prototype fixup
	// and shared-buffer writes.
	Assignments []*Assignment

	// Scope is the frame a function record was produced in; nil for
	// everything else.
	Scope *Frame

	// Output is the file this record was assigned to by the splitter.
	Output *Output

	// IsCircular is set transiently while the tracer builds the record's
	// node, so that a cycle is recognized when the trace re-enters it.
	IsCircular bool

	// Strictness applies to function records.
	Strictness value.Strictness

	// UsageCount counts use sites of a global reference; single-use
	// globals are inlined rather than bound.
	UsageCount int

	// Helper names the runtime helper this record stands for, when the
	// record was created by Store.Helper.
	Helper string

	// Fn carries a function record's cloned AST and rename sites.
	Fn *FnData

	// ImportTarget is the split root an import-fn record loads; the
	// emitter completes the node once the target output's filename is
	// known.
	ImportTarget *Record

	// binding is the emitter-assigned identifier; empty until emission.
	binding string

	// emitted marks records whose declaration has been produced.
	emitted bool
}

// IsInternal reports whether the record was synthesized by the serializer
// rather than traced from a live value.
func (r *Record) IsInternal() bool { return r.Val == nil }

// Binding returns the identifier assigned at emission time, or "" before.
func (r *Record) Binding() string { return r.binding }

// SetBinding assigns the emitted identifier.
func (r *Record) SetBinding(name string) { r.binding = name }

// Emitted reports whether the record's declaration has been produced.
func (r *Record) Emitted() bool { return r.emitted }

// MarkEmitted finalizes the record.
func (r *Record) MarkEmitted() { r.emitted = true }

// FnData is the per-function-record working state: the defensively cloned
// AST and the rename sites remapped into the clone.
type FnData struct {
	Meta *value.FuncMeta

	// AST is this record's private copy of the function's syntax.
	AST *ast.FuncExpr

	// VarSites maps variable names to their identifier sites inside AST.
	VarSites map[string][]*ast.Ident
}

// An Edge locates one reference from a dependent record's syntax to a
// target record. Slot points at the expression slot inside the dependent's
// Node (or one of its assignments) where the target's identifier is
// spliced; all rewrites of that site must go through the edge.
type Edge struct {
	From   *Record
	Target *Record
	Slot   *ast.Expr
}

// Patch writes e's slot. It is the only sanctioned way to rewrite an
// insertion site.
func (e *Edge) Patch(x ast.Expr) { *e.Slot = x }

// An Assignment is a deferred top-level statement: an expression emitted
// after its owner's declaration, once every record it references has a
// binding. Its edges are tracked separately from the owner's so that cycle
// detection ignores them.
type Assignment struct {
	Owner *Record

	// Expr is the statement expression, typically an AssignExpr or a
	// helper call.
	Expr ast.Expr

	// Deps locate the record references inside Expr.
	Deps []*Edge
}

// AddDep registers that parent's Node references target at slot, keeping
// the dependent lists inverse-consistent.
func AddDep(parent, target *Record, slot *ast.Expr) *Edge {
	e := &Edge{From: parent, Target: target, Slot: slot}
	parent.Deps = append(parent.Deps, e)
	target.Dependents = append(target.Dependents, e)
	return e
}

// AddAssignment creates a deferred statement owned by r.
func (r *Record) AddAssignment(expr ast.Expr) *Assignment {
	a := &Assignment{Owner: r, Expr: expr}
	r.Assignments = append(r.Assignments, a)
	return a
}

// AddAssignmentDep registers a record reference inside an assignment's
// expression. Assignment edges do not participate in cycle detection: the
// assignment runs after both declarations by construction.
func (a *Assignment) AddAssignmentDep(target *Record, slot *ast.Expr) *Edge {
	e := &Edge{From: a.Owner, Target: target, Slot: slot}
	a.Deps = append(a.Deps, e)
	target.Dependents = append(target.Dependents, e)
	return e
}

// MoveDepToAssignment diverts an existing edge of r into a new deferred
// assignment with the given expression, replacing the original slot content
// with undefined. It is used when tracing detects a cycle.
func (r *Record) MoveDepToAssignment(e *Edge, expr ast.Expr, slot *ast.Expr) *Assignment {
	for i, d := range r.Deps {
		if d == e {
			r.Deps = append(r.Deps[:i], r.Deps[i+1:]...)
			break
		}
	}
	target := e.Target
	for i, d := range target.Dependents {
		if d == e {
			target.Dependents = append(target.Dependents[:i], target.Dependents[i+1:]...)
			break
		}
	}
	e.Patch(ast.Undefined())
	a := r.AddAssignment(expr)
	a.AddAssignmentDep(target, slot)
	return a
}
