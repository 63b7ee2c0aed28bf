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

// Package trace walks the live value graph and populates the record store.
//
// The tracer looks up identity before creating: a second visit to a value
// reuses its record and only adds a dependency edge. Classification is
// total; a value with no reconstructible form fails with
// [errors.Unreconstructible]. Circular shapes are not a failure: the edge
// that closes a cycle is diverted into a deferred assignment.
package trace

import (
	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/ast"
	"livepack.dev/go/js/token"
	"livepack.dev/go/value"
)

// Config carries the options the tracer consults.
type Config struct {
	// NativeNamespaces carries the serializer option of the same name. The
	// tracer does not read it: module namespace objects always take the
	// sealed-object form.
	NativeNamespaces bool
}

// A Tracer builds records for one serializer instance.
type Tracer struct {
	store *record.Store
	reg   *value.Registry
	cfg   Config

	// frames are the scope activations discovered through traced
	// functions, keyed by frame ID. The scope analyzer consumes them.
	frames map[value.FrameID]*record.Frame

	// path is the property chain from the current root, for error
	// reporting.
	path []string
}

// New returns a tracer over the given store and metadata registry.
func New(store *record.Store, reg *value.Registry, cfg Config) *Tracer {
	return &Tracer{
		store:  store,
		reg:    reg,
		cfg:    cfg,
		frames: map[value.FrameID]*record.Frame{},
	}
}

// Frames returns the scope activations discovered so far.
func (t *Tracer) Frames() map[value.FrameID]*record.Frame { return t.frames }

// Trace walks the graph rooted at v and returns its record.
func (t *Tracer) Trace(v value.Value, name string) (*record.Record, error) {
	t.path = t.path[:0]
	if name != "" {
		t.path = append(t.path, name)
	}
	return t.trace(v, name)
}

// trace returns the record for v, creating it on first visit. The record's
// IsCircular flag is held while its node is being built, so re-entry
// through a cycle is observable by the caller via [Record.IsCircular].
func (t *Tracer) trace(v value.Value, name string) (*record.Record, error) {
	if v == nil {
		return nil, t.fatalf(errors.Unreconstructible, token.NoPos, "cannot serialize missing value")
	}
	if r, ok := t.store.Find(v); ok {
		r.UsageCount++
		return r, nil
	}
	r := t.store.Add(v, name)
	r.UsageCount = 1
	r.IsCircular = true
	defer func() { r.IsCircular = false }()

	var err error
	switch x := v.(type) {
	case value.Undefined:
		r.Node = ast.Undefined()
	case value.Null:
		r.Node = &ast.NullLit{}
	case value.Bool:
		r.Node = &ast.BoolLit{Value: bool(x)}
	case value.Number:
		r.Node = &ast.NumberLit{Value: float64(x)}
	case value.String:
		r.Node = ast.NewString(string(x))
	case *value.BigInt:
		r.Node = &ast.BigIntLit{Value: x.Int}
	case *value.Symbol:
		err = t.symbol(r, x)
	case *value.Global:
		err = t.global(r, x)
	case *value.BuiltinModule:
		r.Name = x.Name
		r.Node = ast.Call(ast.NewIdent("require"), ast.NewString(x.Name))
	case *value.Object:
		err = t.object(r, x)
	case *value.Array:
		err = t.array(r, x)
	case *value.Function:
		err = t.function(r, x)
	case *value.RegExp:
		err = t.regexp(r, x)
	case *value.Date:
		err = t.date(r, x)
	case *value.Map:
		err = t.mapValue(r, x)
	case *value.Set:
		err = t.setValue(r, x)
	case *value.TypedArray:
		if x.Ctor == "BigInt64Array" || x.Ctor == "BigUint64Array" {
			err = t.fatalf(errors.Unreconstructible, token.NoPos,
				"cannot serialize %s", x.Ctor)
			break
		}
		err = t.typedArray(r, x)
	case *value.ArrayBuffer:
		err = t.arrayBuffer(r, x)
	case *value.Boxed:
		err = t.boxed(r, x)
	case *value.Arguments:
		err = t.arguments(r, x)
	case *value.ModuleNS:
		err = t.moduleNS(r, x)
	case *value.ImportFn:
		err = t.importFn(r, x)
	default:
		err = t.fatalf(errors.Unreconstructible, token.NoPos,
			"cannot serialize value of kind %s", v.Kind())
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// traceAt traces a child value with key appended to the error path, and
// reports whether the resulting edge closes a cycle.
func (t *Tracer) traceAt(v value.Value, key string) (r *record.Record, circular bool, err error) {
	t.path = append(t.path, key)
	r, err = t.trace(v, key)
	t.path = t.path[:len(t.path)-1]
	if err != nil {
		return nil, false, err
	}
	return r, r.IsCircular, nil
}

func (t *Tracer) fatalf(kind *errors.Kind, pos token.Pos, format string, args ...interface{}) error {
	return errors.NewKindf(kind, pos, t.path, format, args...)
}

// commonJSGlobals are CommonJS module-scope vars with no portable
// reconstruction.
var commonJSGlobals = map[string]bool{
	"module": true, "exports": true, "require": true,
	"__dirname": true, "__filename": true,
}

// global builds a member chain rooted at a global binding. Single-use
// globals are later inlined at their use site; the usage count drives that
// decision.
func (t *Tracer) global(r *record.Record, g *value.Global) error {
	if len(g.Path) == 0 {
		return t.fatalf(errors.UnsupportedGlobal, token.NoPos, "empty global path")
	}
	if commonJSGlobals[g.Path[0]] {
		return t.fatalf(errors.UnsupportedGlobal, token.NoPos,
			"CommonJS var %q cannot be serialized", g.Path[0])
	}
	var node ast.Expr = ast.NewIdent(g.Path[0])
	for _, p := range g.Path[1:] {
		node = ast.Member(node, p)
	}
	r.Node = node
	r.Name = globalName(g.Path)
	return nil
}

// globalName derives the binding hint for a global path: objectCreate for
// Object.create, symbolIterator for Symbol.iterator.
func globalName(path []string) string {
	name := path[0]
	for _, p := range path[1:] {
		if p == "" {
			continue
		}
		upper := p
		if c := upper[0]; 'a' <= c && c <= 'z' {
			upper = string(c-'a'+'A') + upper[1:]
		}
		name += upper
	}
	if len(name) > 0 && 'A' <= name[0] && name[0] <= 'Z' {
		name = string(name[0]-'A'+'a') + name[1:]
	}
	return name
}

// symbol reconstructs a symbol primitive. Registered symbols go through
// Symbol.for so cross-realm identity is preserved.
func (t *Tracer) symbol(r *record.Record, s *value.Symbol) error {
	path := []string{"Symbol"}
	if s.Registered {
		path = []string{"Symbol", "for"}
	}
	g, _, err := t.traceAt(&value.Global{Path: path}, "Symbol")
	if err != nil {
		return err
	}
	call := ast.Call(nil, ast.NewString(s.Desc))
	record.AddDep(r, g, &call.Fn)
	if s.Desc == "" && !s.Registered {
		call.Args = nil
	}
	r.Node = call
	if r.Name == "" {
		r.Name = "symbol"
		if s.Desc != "" {
			r.Name = s.Desc
		}
	}
	return nil
}
