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

// Package snapshot decodes the instrumenter's JSON graph dump into the
// value model and metadata tables the serializer consumes. The driver uses
// it; programs embedding the serializer can construct values directly
// instead.
//
// Function bodies arrive as source text: the snapshot format carries no
// parsed syntax, so captured variables in snapshot-loaded functions keep
// their source names (there are no rename sites to rewrite).
package snapshot

import (
	"encoding/json"
	"fmt"
	"math/big"

	"livepack.dev/go/js/ast"
	"livepack.dev/go/js/token"
	"livepack.dev/go/value"
)

// A Document is the top-level snapshot file.
type Document struct {
	Values  []ValueDef `json:"values"`
	Funcs   []FuncDef  `json:"funcs,omitempty"`
	Blocks  []BlockDef `json:"blocks,omitempty"`
	Frames  []FrameDef `json:"frames,omitempty"`
	Entries []EntryDef `json:"entries"`
	Splits  []SplitDef `json:"splits,omitempty"`
}

// A ValueDef describes one captured value. Exactly the fields of its kind
// are set.
type ValueDef struct {
	ID   int    `json:"id"`
	Kind string `json:"kind"`

	Bool   bool     `json:"bool,omitempty"`
	Number *float64 `json:"number,omitempty"`
	String *string  `json:"string,omitempty"`
	BigInt string   `json:"bigint,omitempty"`

	Desc       string `json:"desc,omitempty"`
	Registered bool   `json:"registered,omitempty"`

	Elems     []*int    `json:"elems,omitempty"` // arrays and sets; null is a hole
	Props     []PropDef `json:"props,omitempty"`
	Proto     *int      `json:"proto,omitempty"`
	NullProto bool      `json:"nullProto,omitempty"`
	Integrity string    `json:"integrity,omitempty"` // "", "nonExtensible", "sealed", "frozen"

	Entries [][2]int `json:"entries,omitempty"` // maps

	Ctor string `json:"ctor,omitempty"`
	Data []byte `json:"data,omitempty"`

	Ms        float64 `json:"ms,omitempty"`
	Pattern   string  `json:"pattern,omitempty"`
	Flags     string  `json:"flags,omitempty"`
	LastIndex float64 `json:"lastIndex,omitempty"`

	Func  int  `json:"func,omitempty"`
	Frame int  `json:"frame,omitempty"`
	Class bool `json:"class,omitempty"`

	Path   []string `json:"path,omitempty"`
	Module string   `json:"module,omitempty"`

	Prim *int `json:"prim,omitempty"`

	Exports []NamedDef `json:"exports,omitempty"`
	Native  bool       `json:"native,omitempty"`
}

// A PropDef is one own property. Unset flags default to true.
type PropDef struct {
	Key string `json:"key"`
	Sym *int   `json:"sym,omitempty"`

	Value *int `json:"value,omitempty"`
	Get   *int `json:"get,omitempty"`
	Set   *int `json:"set,omitempty"`

	Writable     *bool `json:"writable,omitempty"`
	Enumerable   *bool `json:"enumerable,omitempty"`
	Configurable *bool `json:"configurable,omitempty"`
}

// A NamedDef is one binding of a module namespace.
type NamedDef struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// A FuncDef is one captured function definition.
type FuncDef struct {
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Block int    `json:"block"`

	Params    []string `json:"params,omitempty"`
	Body      string   `json:"body"`
	Arrow     bool     `json:"arrow,omitempty"`
	Async     bool     `json:"async,omitempty"`
	Generator bool     `json:"generator,omitempty"`

	Strict *bool `json:"strict,omitempty"`

	Externals []string `json:"externals,omitempty"`

	Eval          bool `json:"eval,omitempty"`
	UsesThis      bool `json:"usesThis,omitempty"`
	UsesArguments bool `json:"usesArguments,omitempty"`

	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

// A BlockDef is one lexical site.
type BlockDef struct {
	ID     int    `json:"id"`
	Parent int    `json:"parent,omitempty"`
	Name   string `json:"name,omitempty"`
	Params []struct {
		Name   string `json:"name"`
		Frozen bool   `json:"frozen,omitempty"`
	} `json:"params,omitempty"`
	Eval bool `json:"eval,omitempty"`
}

// A FrameDef is one observed activation.
type FrameDef struct {
	ID     int            `json:"id"`
	Block  int            `json:"block"`
	Parent int            `json:"parent,omitempty"`
	Values map[string]int `json:"values,omitempty"`
	This   *int           `json:"this,omitempty"`
	Args   *int           `json:"args,omitempty"`
}

// An EntryDef is one entry point.
type EntryDef struct {
	Name string `json:"name,omitempty"`
	Root int    `json:"root"`
}

// A SplitDef is one split point.
type SplitDef struct {
	Root  int    `json:"root"`
	Name  string `json:"name,omitempty"`
	Async bool   `json:"async,omitempty"`
}

// A Graph is the decoded snapshot: the metadata registry, the value table,
// and the declared roots.
type Graph struct {
	Registry *value.Registry
	Values   map[int]value.Value
	Entries  []EntryDef
	Splits   []SplitDef
}

// Value returns the value with the given snapshot id.
func (g *Graph) Value(id int) (value.Value, error) {
	v, ok := g.Values[id]
	if !ok {
		return nil, fmt.Errorf("snapshot: unknown value id %d", id)
	}
	return v, nil
}

// Decode parses a snapshot document and builds the value graph.
func Decode(data []byte) (*Graph, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: %v", err)
	}
	return build(&doc)
}

func build(doc *Document) (*Graph, error) {
	g := &Graph{
		Registry: value.NewRegistry(),
		Values:   map[int]value.Value{},
		Entries:  doc.Entries,
		Splits:   doc.Splits,
	}

	for _, b := range doc.Blocks {
		meta := &value.BlockMeta{
			ID:           value.BlockID(b.ID),
			ParentID:     value.BlockID(b.Parent),
			Name:         b.Name,
			ContainsEval: b.Eval,
		}
		for _, p := range b.Params {
			meta.Params = append(meta.Params, value.BlockParam{Name: p.Name, Frozen: p.Frozen || b.Eval})
		}
		g.Registry.AddBlock(meta)
	}
	for _, f := range doc.Funcs {
		strictness := value.Indeterminate
		if f.Strict != nil {
			if *f.Strict {
				strictness = value.Strict
			} else {
				strictness = value.Sloppy
			}
		}
		fn := &ast.FuncExpr{
			Name:      f.Name,
			Arrow:     f.Arrow,
			Async:     f.Async,
			Generator: f.Generator,
			Body:      &ast.BlockStmt{Stmts: []ast.Stmt{&ast.RawStmt{Src: f.Body}}},
		}
		for _, p := range f.Params {
			fn.Params = append(fn.Params, ast.NewIdent(p))
		}
		g.Registry.AddFunc(&value.FuncMeta{
			ID:            value.FuncID(f.ID),
			Name:          f.Name,
			AST:           fn,
			BlockID:       value.BlockID(f.Block),
			Strictness:    strictness,
			Externals:     f.Externals,
			VarSites:      map[string][]*ast.Ident{},
			ContainsEval:  f.Eval,
			UsesThis:      f.UsesThis,
			UsesArguments: f.UsesArguments,
			Pos:           token.Pos{Filename: f.File, Line: f.Line, Column: f.Col},
		})
	}

	// Two passes over values: allocate shells, then wire references.
	for _, def := range doc.Values {
		v, err := shell(&def)
		if err != nil {
			return nil, err
		}
		g.Values[def.ID] = v
	}
	for _, def := range doc.Values {
		if err := g.fill(&def); err != nil {
			return nil, err
		}
	}

	// Frames resolve after values: their captured variables are value
	// references.
	for _, f := range doc.Frames {
		meta := &value.FrameMeta{
			ID:       value.FrameID(f.ID),
			BlockID:  value.BlockID(f.Block),
			ParentID: value.FrameID(f.Parent),
			Values:   map[string]value.Value{},
		}
		for name, id := range f.Values {
			v, err := g.Value(id)
			if err != nil {
				return nil, err
			}
			meta.Values[name] = v
		}
		if f.This != nil {
			v, err := g.Value(*f.This)
			if err != nil {
				return nil, err
			}
			meta.This = v
		}
		if f.Args != nil {
			v, err := g.Value(*f.Args)
			if err != nil {
				return nil, err
			}
			meta.Args = v
		}
		g.Registry.AddFrame(meta)
	}
	return g, nil
}

// shell allocates a value of the right kind without resolving references.
func shell(def *ValueDef) (value.Value, error) {
	switch def.Kind {
	case "undefined":
		return value.Undefined{}, nil
	case "null":
		return value.Null{}, nil
	case "bool":
		return value.Bool(def.Bool), nil
	case "number":
		if def.Number == nil {
			return nil, fmt.Errorf("snapshot: value %d: number kind without number", def.ID)
		}
		return value.Number(*def.Number), nil
	case "string":
		if def.String == nil {
			return nil, fmt.Errorf("snapshot: value %d: string kind without string", def.ID)
		}
		return value.String(*def.String), nil
	case "bigint":
		n, ok := new(big.Int).SetString(def.BigInt, 10)
		if !ok {
			return nil, fmt.Errorf("snapshot: value %d: bad bigint %q", def.ID, def.BigInt)
		}
		return &value.BigInt{Int: n}, nil
	case "symbol":
		return &value.Symbol{Desc: def.Desc, Registered: def.Registered}, nil
	case "object":
		return &value.Object{}, nil
	case "array":
		return &value.Array{}, nil
	case "function":
		return &value.Function{
			Meta:    value.FuncID(def.Func),
			Frame:   value.FrameID(def.Frame),
			IsClass: def.Class,
		}, nil
	case "regexp":
		return &value.RegExp{Pattern: def.Pattern, Flags: def.Flags, LastIndex: def.LastIndex}, nil
	case "date":
		return &value.Date{Ms: def.Ms}, nil
	case "map":
		return &value.Map{}, nil
	case "set":
		return &value.Set{}, nil
	case "typed-array":
		return &value.TypedArray{Ctor: def.Ctor, Data: def.Data}, nil
	case "array-buffer":
		return &value.ArrayBuffer{Data: def.Data}, nil
	case "boxed":
		return &value.Boxed{}, nil
	case "arguments":
		return &value.Arguments{Frame: value.FrameID(def.Frame)}, nil
	case "module-namespace":
		return &value.ModuleNS{Native: def.Native}, nil
	case "global":
		return &value.Global{Path: def.Path}, nil
	case "builtin-module":
		return &value.BuiltinModule{Name: def.Module}, nil
	default:
		return nil, fmt.Errorf("snapshot: value %d: unknown kind %q", def.ID, def.Kind)
	}
}

// fill wires a shell's references to other values.
func (g *Graph) fill(def *ValueDef) error {
	v := g.Values[def.ID]
	c := value.CommonOf(v)
	if c != nil {
		if err := g.fillCommon(def, c); err != nil {
			return err
		}
	}
	switch x := v.(type) {
	case *value.Array:
		for _, id := range def.Elems {
			if id == nil {
				x.Elems = append(x.Elems, nil)
				continue
			}
			el, err := g.Value(*id)
			if err != nil {
				return err
			}
			x.Elems = append(x.Elems, el)
		}
	case *value.Set:
		for _, id := range def.Elems {
			if id == nil {
				continue
			}
			el, err := g.Value(*id)
			if err != nil {
				return err
			}
			x.Elems = append(x.Elems, el)
		}
	case *value.Arguments:
		for _, id := range def.Elems {
			if id == nil {
				continue
			}
			el, err := g.Value(*id)
			if err != nil {
				return err
			}
			x.Elems = append(x.Elems, el)
		}
	case *value.Map:
		for _, kv := range def.Entries {
			k, err := g.Value(kv[0])
			if err != nil {
				return err
			}
			val, err := g.Value(kv[1])
			if err != nil {
				return err
			}
			x.Entries = append(x.Entries, [2]value.Value{k, val})
		}
	case *value.Boxed:
		if def.Prim == nil {
			return fmt.Errorf("snapshot: value %d: boxed kind without prim", def.ID)
		}
		prim, err := g.Value(*def.Prim)
		if err != nil {
			return err
		}
		x.Prim = prim
	case *value.ModuleNS:
		for _, ex := range def.Exports {
			val, err := g.Value(ex.Value)
			if err != nil {
				return err
			}
			x.Exports = append(x.Exports, value.NamedExport{Name: ex.Name, Value: val})
		}
	}
	return nil
}

func (g *Graph) fillCommon(def *ValueDef, c *value.Common) error {
	for _, p := range def.Props {
		prop := value.Property{Key: value.StringKey(p.Key)}
		if p.Sym != nil {
			sym, err := g.Value(*p.Sym)
			if err != nil {
				return err
			}
			s, ok := sym.(*value.Symbol)
			if !ok {
				return fmt.Errorf("snapshot: value %d: property key %d is not a symbol", def.ID, *p.Sym)
			}
			prop.Key = value.PropKey{Sym: s}
		}
		if p.Value != nil {
			v, err := g.Value(*p.Value)
			if err != nil {
				return err
			}
			prop.Value = v
		}
		if p.Get != nil {
			v, err := g.Value(*p.Get)
			if err != nil {
				return err
			}
			prop.Get = v
		}
		if p.Set != nil {
			v, err := g.Value(*p.Set)
			if err != nil {
				return err
			}
			prop.Set = v
		}
		prop.Writable = flag(p.Writable)
		prop.Enumerable = flag(p.Enumerable)
		prop.Configurable = flag(p.Configurable)
		c.Props = append(c.Props, prop)
	}
	if def.Proto != nil {
		proto, err := g.Value(*def.Proto)
		if err != nil {
			return err
		}
		c.Proto = proto
		c.HasProto = true
	} else if def.NullProto {
		c.HasProto = true
	}
	switch def.Integrity {
	case "":
	case "nonExtensible":
		c.Integrity = value.NonExtensible
	case "sealed":
		c.Integrity = value.Sealed
	case "frozen":
		c.Integrity = value.Frozen
	default:
		return fmt.Errorf("snapshot: value %d: unknown integrity %q", def.ID, def.Integrity)
	}
	return nil
}

func flag(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}
