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

// Package emit schedules and renders output files. Within an output,
// declarations appear in dependency order (a depth-first walk with
// insertion order preserved for ties), deferred assignments follow, and a
// format-specific export statement terminates the file. Filenames carrying
// content hashes go through a two-pass placeholder protocol so mutually
// referencing files still get stable names.
package emit

import (
	"strings"

	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/token"
)

// Format selects the final wrapper of each output file.
type Format uint8

const (
	FormatCJS Format = iota
	FormatESM
	FormatJS   // a bare expression (wrapped in an IIFE when bindings exist)
	FormatExec // statements followed by an immediate invocation of the root
)

func (f Format) String() string {
	switch f {
	case FormatCJS:
		return "cjs"
	case FormatESM:
		return "esm"
	case FormatJS:
		return "js"
	case FormatExec:
		return "exec"
	}
	return "invalid"
}

// ParseFormat converts a configuration string.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "cjs", "":
		return FormatCJS, nil
	case "esm":
		return FormatESM, nil
	case "js":
		return FormatJS, nil
	case "exec":
		return FormatExec, nil
	}
	return 0, errors.Newf(token.NoPos, "unknown output format %q", s)
}

// SourceMapMode selects source-map emission.
type SourceMapMode uint8

const (
	NoSourceMaps SourceMapMode = iota
	ExternalSourceMaps
	InlineSourceMaps
)

// Options configures emission.
type Options struct {
	Format    Format
	StrictEnv bool // the host executes the output as strict code

	Minify bool // suppress whitespace, prefer shorter forms
	Mangle bool // shortest-legal identifiers
	Inline bool // inline single-use bindings

	Comments   bool
	SourceMaps SourceMapMode

	Ext    string // file extension for code, default ".js"
	MapExt string // file extension for source maps, default ".map"

	// Chunk name templates accept [name] and [hash]; [hash] is eight
	// characters of Base32-encoded SHA-1 of the content.
	EntryChunkName  string
	SplitChunkName  string
	CommonChunkName string

	OutputDir string

	Stats bool
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Ext == "" {
		o.Ext = ".js"
	}
	if o.MapExt == "" {
		o.MapExt = ".map"
	}
	if o.EntryChunkName == "" {
		o.EntryChunkName = "[name]"
	}
	if o.SplitChunkName == "" {
		o.SplitChunkName = "[name].[hash]"
	}
	if o.CommonChunkName == "" {
		o.CommonChunkName = "chunk.[hash]"
	}
	return o
}

// A File is one produced artifact.
type File struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
}

// A Result is the emitter's product: the files in final order.
type Result struct {
	Files []File
}

// An Emitter renders one serializer instance's outputs.
type Emitter struct {
	store  *record.Store
	opts   Options
	blocks []*record.Block

	// factoryBlocks maps a root block's factory record to the block, so
	// scope-variable renames run against the output that declares the
	// factory.
	factoryBlocks map[*record.Record]*record.Block

	// refCount counts filename placeholders written into content; the
	// hash pass uses it to detect placeholder-shaped literals.
	refCount int

	useHash bool
}

// New returns an emitter. blocks are the root blocks produced by the scope
// processor; their factories' scope variables are renamed per output.
func New(store *record.Store, blocks []*record.Block, opts Options) *Emitter {
	e := &Emitter{
		store:         store,
		opts:          opts.WithDefaults(),
		blocks:        blocks,
		factoryBlocks: map[*record.Record]*record.Block{},
	}
	for _, b := range blocks {
		if b.Factory != nil {
			e.factoryBlocks[b.Factory] = b
		}
	}
	return e
}

// Emit renders every output and resolves filenames.
func (e *Emitter) Emit(outputs []*record.Output) (*Result, error) {
	if len(outputs) > 1 && (e.opts.Format == FormatJS || e.opts.Format == FormatExec) {
		return nil, errors.Newf(token.NoPos,
			"format %s supports a single output; split points need cjs or esm", e.opts.Format)
	}

	for _, out := range outputs {
		out.Filename = e.filename(out)
	}
	if err := e.checkTemplateCollisions(outputs); err != nil {
		return nil, err
	}

	for _, out := range outputs {
		oe := newOutputEmitter(e, out)
		content, err := oe.emit()
		if err != nil {
			return nil, err
		}
		out.Content = content
	}

	if e.useHash {
		final, err := resolveHashes(outputs, e.refCount)
		if err != nil {
			return nil, err
		}
		for _, out := range outputs {
			if h, ok := final[out.Index]; ok {
				out.Filename = strings.Replace(out.Filename, placeholder(out.Index), h, 1)
			}
		}
		if err := e.checkFinalCollisions(outputs); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	for _, out := range outputs {
		res.Files = append(res.Files, File{
			Type:     out.Type.String(),
			Name:     out.Name,
			Filename: out.Filename,
			Content:  out.Content,
		})
	}
	return res, nil
}

// filename renders an output's chunk-name template. A [hash] placeholder
// stays a serial-indexed stand-in until hashing completes.
func (e *Emitter) filename(out *record.Output) string {
	var tmpl string
	switch {
	case out.Type.Is(record.EntryPoint):
		tmpl = e.opts.EntryChunkName
	case out.Type.Is(record.AnyCommon):
		tmpl = e.opts.CommonChunkName
	default:
		tmpl = e.opts.SplitChunkName
	}
	name := strings.ReplaceAll(tmpl, "[name]", out.Name)
	if strings.Contains(name, "[hash]") {
		e.useHash = true
		name = strings.ReplaceAll(name, "[hash]", placeholder(out.Index))
	}
	return name + e.opts.Ext
}

// checkTemplateCollisions rejects duplicate filenames that no [hash] can
// disambiguate. Reserved sibling source-map names participate: a code file
// must not collide with another file's map.
func (e *Emitter) checkTemplateCollisions(outputs []*record.Output) error {
	seen := map[string]*record.Output{}
	reserve := func(name string, out *record.Output) error {
		if prev, ok := seen[name]; ok {
			return errors.NewKindf(errors.HashCollision, token.NoPos, nil,
				"outputs %q and %q both produce file %q; add [hash] to the chunk name template",
				prev.Name, out.Name, name)
		}
		seen[name] = out
		return nil
	}
	for _, out := range outputs {
		if strings.Contains(out.Filename, placeholder(out.Index)) {
			continue // hash will disambiguate
		}
		if err := reserve(out.Filename, out); err != nil {
			return err
		}
		if e.opts.SourceMaps != NoSourceMaps {
			if err := reserve(out.Filename+e.opts.MapExt, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Emitter) checkFinalCollisions(outputs []*record.Output) error {
	seen := map[string]*record.Output{}
	for _, out := range outputs {
		if prev, ok := seen[out.Filename]; ok {
			return errors.NewKindf(errors.HashCollision, token.NoPos, nil,
				"outputs %q and %q hash to the same file %q; add [hash] or distinct names",
				prev.Name, out.Name, out.Filename)
		}
		seen[out.Filename] = out
	}
	return nil
}
