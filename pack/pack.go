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

// Package pack is the serializer's public entry point. It turns a captured
// value graph plus the instrumenter's metadata tables into JavaScript
// source files that, executed in order, reconstruct an equivalent graph.
//
// A Serializer is single-threaded and deterministic: the same snapshot and
// options always produce byte-identical files. All state is per-instance;
// independent roots may be serialized concurrently only by independent
// Serializers.
package pack // import "livepack.dev/go/pack"

import (
	"encoding/json"

	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/emit"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/internal/core/scope"
	"livepack.dev/go/internal/core/split"
	"livepack.dev/go/internal/core/trace"
	"livepack.dev/go/js/token"
	"livepack.dev/go/value"
)

// Options mirrors the user-facing configuration.
type Options struct {
	// Format selects the final wrapper: "cjs" (default), "esm", "js" (a
	// bare expression), or "exec" (immediate invocation).
	Format string

	// StrictEnv declares that the host executes the output as strict
	// code.
	StrictEnv bool

	Minify bool
	Mangle bool
	Inline bool

	Comments   bool
	SourceMaps string // "", "true" or "inline"

	Ext    string
	MapExt string

	EntryChunkName  string
	SplitChunkName  string
	CommonChunkName string

	OutputDir string

	// Stats emits a sibling JSON file listing every produced file.
	Stats string

	// NativeNamespaces is passed to the tracer, which does not act on it:
	// module namespace objects are always emitted as sealed ordinary
	// objects. That form is observably different from an engine namespace:
	// util.types.isModuleNamespaceObject reports false and the default
	// binding is writable.
	NativeNamespaces bool
}

func (o Options) emitOptions() (emit.Options, error) {
	f, err := emit.ParseFormat(o.Format)
	if err != nil {
		return emit.Options{}, err
	}
	maps := emit.NoSourceMaps
	switch o.SourceMaps {
	case "", "false":
	case "true":
		maps = emit.ExternalSourceMaps
	case "inline":
		maps = emit.InlineSourceMaps
	default:
		return emit.Options{}, errors.Newf(token.NoPos, "unknown sourceMaps mode %q", o.SourceMaps)
	}
	return emit.Options{
		Format:          f,
		StrictEnv:       o.StrictEnv,
		Minify:          o.Minify,
		Mangle:          o.Mangle,
		Inline:          o.Inline,
		Comments:        o.Comments,
		SourceMaps:      maps,
		Ext:             o.Ext,
		MapExt:          o.MapExt,
		EntryChunkName:  o.EntryChunkName,
		SplitChunkName:  o.SplitChunkName,
		CommonChunkName: o.CommonChunkName,
		OutputDir:       o.OutputDir,
		Stats:           o.Stats != "",
	}.WithDefaults(), nil
}

// A File is one produced artifact. The driver, not the serializer, writes
// it to disk.
type File struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
}

// A Result is everything one Serialize call produced.
type Result struct {
	Files []File

	// Stats is the JSON stats document when Options.Stats is set.
	Stats []byte
}

// A Serializer owns the record store and name state for one serialization.
type Serializer struct {
	reg  *value.Registry
	opts Options

	entries []entry
	points  []splitPoint
}

type entry struct {
	name string
	root value.Value
}

type splitPoint struct {
	root  value.Value
	name  string
	async bool
}

// NewSerializer returns a serializer over the instrumenter's metadata
// tables. The registry and every value reachable from added entries form a
// logical snapshot: they must not be mutated until Serialize returns.
func NewSerializer(reg *value.Registry, opts Options) *Serializer {
	return &Serializer{reg: reg, opts: opts}
}

// AddEntry declares an entry point. Entries appear first in the produced
// file list, in declaration order.
func (s *Serializer) AddEntry(name string, root value.Value) {
	s.entries = append(s.entries, entry{name: name, root: root})
}

// Split declares that v should live in its own synchronously imported
// output. It returns v, matching the user-facing split helper.
func (s *Serializer) Split(v value.Value, name string) value.Value {
	s.points = append(s.points, splitPoint{root: v, name: name})
	return v
}

// SplitAsync declares an asynchronously imported split point and returns
// the import function to embed in the graph: each invocation of the
// emitted function yields a promise of a module namespace carrying v as
// its default export, stable per split point.
func (s *Serializer) SplitAsync(v value.Value, name string) value.Value {
	s.points = append(s.points, splitPoint{root: v, name: name, async: true})
	return &value.ImportFn{Target: v, Name: name}
}

// Serialize runs the pipeline: trace, scope analysis, splitting, emission.
func (s *Serializer) Serialize() (*Result, error) {
	if len(s.entries) == 0 {
		return nil, errors.Newf(token.NoPos, "no entry points declared")
	}
	emitOpts, err := s.opts.emitOptions()
	if err != nil {
		return nil, err
	}

	store := record.NewStore()
	tracer := trace.New(store, s.reg, trace.Config{NativeNamespaces: s.opts.NativeNamespaces})

	var splitEntries []split.Entry
	var splitPoints []split.Point
	var exported []*record.Record

	for _, e := range s.entries {
		root, err := tracer.Trace(e.root, e.name)
		if err != nil {
			return nil, err
		}
		splitEntries = append(splitEntries, split.Entry{Root: root, Name: e.name})
		exported = append(exported, root)
	}
	for _, pt := range s.points {
		root, err := tracer.Trace(pt.root, pt.name)
		if err != nil {
			return nil, err
		}
		splitPoints = append(splitPoints, split.Point{Root: root, Name: pt.name, Async: pt.async})
		exported = append(exported, root)
	}

	blocks, err := scope.New(store, s.reg).Process(tracer.Frames(), exported)
	if err != nil {
		return nil, err
	}

	assigned, err := split.Assign(store, splitEntries, splitPoints)
	if err != nil {
		return nil, err
	}

	res, err := emit.New(store, blocks, emitOpts).Emit(assigned.Outputs)
	if err != nil {
		return nil, err
	}

	out := &Result{}
	for _, f := range res.Files {
		out.Files = append(out.Files, File{
			Type:     f.Type,
			Name:     f.Name,
			Filename: f.Filename,
			Content:  f.Content,
		})
	}
	if s.opts.Stats != "" {
		stats, err := json.MarshalIndent(out.Files, "", "  ")
		if err != nil {
			return nil, err
		}
		out.Stats = stats
	}
	return out, nil
}

// Serialize is the one-shot form: a single unnamed entry.
func Serialize(root value.Value, reg *value.Registry, opts Options) (*Result, error) {
	s := NewSerializer(reg, opts)
	s.AddEntry("index", root)
	return s.Serialize()
}
