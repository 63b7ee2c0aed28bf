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

// Package scope turns the set of closures over shared scope frames into
// source code that recreates equivalent frames.
//
// The analyzer canonicalizes the frames observed by the tracer into
// blocks; the block processor then emits one scope factory per block whose
// calls reconstruct the activations. The algorithm follows a fixed order:
// missing-scope completion, inline-function detection, circular value
// detection, parameter ordering, strict/sloppy reconciliation, name
// mangling (deferred to emission), and frozen this/arguments injection.
package scope

import (
	"slices"

	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/value"
)

// A Processor runs scope analysis and factory emission for one serializer
// instance.
type Processor struct {
	store *record.Store
	reg   *value.Registry

	blocks map[value.BlockID]*record.Block

	// exported marks records exposed to importers; an inline function
	// referenced by nothing else must still surface in its factory's
	// return when exported.
	exported map[*record.Record]bool

	// circMemo caches dependsOnBlock results.
	circMemo map[circKey]bool

	// retIndex records, per block, the return-array slot of each function
	// definition.
	retIndex map[*record.Block]map[*value.FuncMeta]int

	nextFrameID value.FrameID
}

type circKey struct {
	rec   *record.Record
	block *record.Block
}

// New returns a processor over the tracer's outputs.
func New(store *record.Store, reg *value.Registry) *Processor {
	return &Processor{
		store:    store,
		reg:      reg,
		blocks:   map[value.BlockID]*record.Block{},
		exported: map[*record.Record]bool{},
		circMemo: map[circKey]bool{},
	}
}

// Process analyzes every frame discovered by the tracer and emits scope
// factories. exported lists the records directly exposed to importers
// (split roots and entry roots).
func (p *Processor) Process(frames map[value.FrameID]*record.Frame, exported []*record.Record) ([]*record.Block, error) {
	for _, r := range exported {
		p.exported[r] = true
	}

	p.buildBlocks(frames)
	p.completeMissingScopes()
	p.groupFunctions()

	roots := p.rootBlocks()
	for _, b := range roots {
		p.analyzeBlock(b)
	}
	for _, b := range roots {
		if err := p.emitFactory(b); err != nil {
			return nil, err
		}
	}
	for _, b := range roots {
		if err := p.emitFrames(b); err != nil {
			return nil, err
		}
	}
	if err := p.emitScopelessFunctions(); err != nil {
		return nil, err
	}
	return roots, nil
}

// buildBlocks creates the working block for every observed frame's block
// and each of its ancestors, and links frames to blocks.
func (p *Processor) buildBlocks(frames map[value.FrameID]*record.Frame) {
	// Deterministic frame order: by frame ID.
	ids := make([]value.FrameID, 0, len(frames))
	for id := range frames {
		ids = append(ids, id)
		if id >= p.nextFrameID {
			p.nextFrameID = id + 1
		}
	}
	slices.Sort(ids)

	for _, id := range ids {
		fr := frames[id]
		b := p.blockFor(fr.Meta.BlockID)
		fr.Block = b
		b.Frames = append(b.Frames, fr)
	}
}

// blockFor returns the working block for id, creating it and its ancestor
// chain as needed.
func (p *Processor) blockFor(id value.BlockID) *record.Block {
	if b, ok := p.blocks[id]; ok {
		return b
	}
	meta := p.reg.Block(id)
	b := &record.Block{Meta: meta}
	for _, mp := range meta.Params {
		b.Params = append(b.Params, &record.ScopeParam{
			Name:          mp.Name,
			Frozen:        mp.Frozen,
			OutName:       mp.Name,
			InjectorIndex: -1,
		})
	}
	p.blocks[id] = b
	if meta.ParentID != 0 {
		parent := p.blockFor(meta.ParentID)
		b.Parent = parent
		parent.Children = append(parent.Children, b)
	}
	return b
}

// completeMissingScopes synthesizes intermediate frames so that every
// frame's parent is an activation of its block's parent block. Frames may
// arrive with no recorded parent, or with a parent further up the chain
// than the immediate parent block.
func (p *Processor) completeMissingScopes() {
	var all []*record.Frame
	for _, b := range p.blockList() {
		all = append(all, b.Frames...)
	}
	for _, fr := range all {
		p.completeParent(fr)
	}
}

func (p *Processor) completeParent(fr *record.Frame) {
	b := fr.Block
	if b.Parent == nil {
		fr.Parent = nil
		return
	}
	if fr.Parent != nil && fr.Parent.Block == b.Parent {
		p.completeParent(fr.Parent)
		return
	}
	// The recorded parent is absent or skips blocks: synthesize an empty
	// activation of the parent block and keep walking up through it.
	recorded := fr.Parent
	synth := &record.Frame{
		Meta: &value.FrameMeta{
			ID:      p.nextFrameID,
			BlockID: b.Parent.Meta.ID,
		},
		Block:       b.Parent,
		Parent:      recorded,
		Synthesized: true,
		Values:      map[string]*record.ValueProp{},
	}
	p.nextFrameID++
	b.Parent.Frames = append(b.Parent.Frames, synth)
	fr.Parent = synth
	p.completeParent(synth)
}

// groupFunctions attaches each traced function record to the block of the
// frame it was produced in.
func (p *Processor) groupFunctions() {
	for _, r := range p.store.Records() {
		if r.Fn == nil || r.Scope == nil {
			continue
		}
		r.Scope.Block.Functions = append(r.Scope.Block.Functions, r)
	}
}

// rootBlocks returns the observed blocks with no parent, ordered by block
// ID for determinism.
func (p *Processor) rootBlocks() []*record.Block {
	var roots []*record.Block
	for _, b := range p.blockList() {
		if b.Parent == nil {
			roots = append(roots, b)
		}
	}
	return roots
}

func (p *Processor) blockList() []*record.Block {
	ids := make([]value.BlockID, 0, len(p.blocks))
	for id := range p.blocks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*record.Block, len(ids))
	for i, id := range ids {
		out[i] = p.blocks[id]
	}
	return out
}

// analyzeBlock runs the per-block analysis steps that precede factory
// emission, recursing into children.
func (p *Processor) analyzeBlock(b *record.Block) {
	p.detectInlineFunctions(b)
	p.detectCircularValues(b)
	p.orderParams(b)
	p.reconcileStrictness(b)
	for _, c := range b.Children {
		p.analyzeBlock(c)
	}
}

// detectInlineFunctions finds block parameters that every frame binds to a
// function defined in the same block. Such a parameter is omitted from the
// factory signature; the factory declares it locally instead, so the
// binding needs no injector even though it is self-referential.
func (p *Processor) detectInlineFunctions(b *record.Block) {
	for _, param := range b.Params {
		var meta *value.FuncMeta
		local := true
		bound := 0
		for _, fr := range b.Frames {
			vp, ok := fr.Values[param.Name]
			if !ok {
				continue
			}
			bound++
			r := vp.Record
			if r.Fn == nil || r.Scope != fr {
				local = false
				break
			}
			if meta == nil {
				meta = r.Fn.Meta
			} else if meta != r.Fn.Meta {
				local = false
				break
			}
		}
		if !local || meta == nil || bound == 0 {
			continue
		}
		// Representative record: the first frame's binding carries the
		// cloned AST the factory will inline.
		for _, fr := range b.Frames {
			if vp, ok := fr.Values[param.Name]; ok {
				param.LocalFn = vp.Record
				break
			}
		}
		param.InternalOnly = true
		for _, fr := range b.Frames {
			vp, ok := fr.Values[param.Name]
			if !ok {
				continue
			}
			if len(vp.Record.Dependents) > 0 || p.exported[vp.Record] {
				param.InternalOnly = false
				break
			}
		}
	}
}

// detectCircularValues marks frame values that cannot be passed at
// factory-call time: functions of this block or a nested one, and values
// that transitively depend on such a function.
func (p *Processor) detectCircularValues(b *record.Block) {
	for _, fr := range b.Frames {
		for _, param := range b.Params {
			if param.LocalFn != nil {
				continue
			}
			vp, ok := fr.Values[param.Name]
			if !ok {
				param.UnboundFrames++
				continue
			}
			if vp.IsCircular || p.dependsOnBlock(vp.Record, b, map[*record.Record]bool{}) {
				vp.IsCircular = true
				param.UnboundFrames++
			} else if vp.Record.Kind == value.UndefinedKind {
				param.UnboundFrames++
			}
		}
	}
}

// dependsOnBlock reports whether rec is a function of block b or one of
// its descendants, or transitively depends on one.
func (p *Processor) dependsOnBlock(rec *record.Record, b *record.Block, seen map[*record.Record]bool) bool {
	if seen[rec] {
		return false
	}
	seen[rec] = true
	key := circKey{rec, b}
	if v, ok := p.circMemo[key]; ok {
		return v
	}
	result := false
	if rec.Fn != nil && rec.Scope != nil {
		for blk := rec.Scope.Block; blk != nil; blk = blk.Parent {
			if blk == b {
				result = true
				break
			}
		}
	}
	if !result {
		for _, e := range rec.Deps {
			if p.dependsOnBlock(e.Target, b, seen) {
				result = true
				break
			}
		}
	}
	p.circMemo[key] = result
	return result
}

// orderParams sorts block parameters so those most commonly unbound come
// last; call sites can then drop trailing undefined arguments. The sort is
// stable: equally-bound params keep source order. Inline-function params
// sort to the very end since they never appear in the signature.
func (p *Processor) orderParams(b *record.Block) {
	slices.SortStableFunc(b.Params, func(x, y *record.ScopeParam) int {
		xl, yl := 0, 0
		if x.LocalFn != nil {
			xl = 1
		}
		if y.LocalFn != nil {
			yl = 1
		}
		if xl != yl {
			return xl - yl
		}
		return x.UnboundFrames - y.UnboundFrames
	})
}
