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

package record

import (
	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

// A Block is the working representation of one lexical site during scope
// processing. It aggregates the frames observed for that site and the
// traced functions closing over it.
type Block struct {
	Meta     *value.BlockMeta
	Parent   *Block
	Children []*Block

	// Frames are the observed activations, in trace order.
	Frames []*Frame

	// Functions are the function records whose definition site is this
	// block, in trace order. Their order fixes the factory's return
	// array layout.
	Functions []*Record

	// Params is the working copy of the block's parameters. The scope
	// processor reorders and annotates it; Meta.Params stays pristine.
	Params []*ScopeParam

	// Strict records the outcome of strict/sloppy reconciliation for the
	// emitted factory.
	Strict bool

	// InjectThis is set when a contained eval-bearing function forces the
	// factory to be invoked via .apply(thisValue, argumentsValue).
	InjectThis bool

	// Factory is the scope-factory record emitted for this block. Only
	// root blocks get their own record; nested factories are expressions
	// inside their parent's return array.
	Factory *Record

	// Injectors are the synthetic variables of injector arrows, tracked
	// so emission renames them against the whole file like scope params.
	Injectors []*ScopeParam

	// ReturnIndex is this block's factory position in the parent
	// factory's return array.
	ReturnIndex int

	// SingleReturn is set when the factory returns its only inner
	// directly rather than an array.
	SingleReturn bool
}

// A ScopeParam is one frame parameter of a block, annotated by the scope
// processor.
type ScopeParam struct {
	Name   string
	Frozen bool

	// OutName is the emitted parameter name after mangling; equal to Name
	// for frozen params.
	OutName string

	// LocalFn is set when every frame binds this param to a function
	// defined in this same block; the param is then omitted from the
	// factory signature and declared inside the factory body.
	LocalFn *Record

	// InternalOnly marks a locally-produced function referenced only by
	// sibling functions of the same block; it is not exposed in the
	// factory's return.
	InternalOnly bool

	// UnboundFrames counts frames where the param is undefined or
	// diverted to an injector; parameter ordering sorts commonly-unbound
	// params last so call sites can drop trailing undefined arguments.
	UnboundFrames int

	// InjectorIndex is the slot of this param's injector in the factory's
	// return array, or -1 when the param never needs injection.
	InjectorIndex int

	// Sites are every identifier occurrence of this variable in the
	// emitted factory: the parameter itself, the local declaration for
	// inline functions, the injector body, and all uses inside function
	// bodies. Renaming mutates all of them together at emission time.
	Sites []*ast.Ident
}

// A Frame is the working representation of one runtime activation during
// scope processing. Its record, once created, is the factory call
// reconstructing the activation.
type Frame struct {
	Meta   *value.FrameMeta
	Block  *Block
	Parent *Frame

	// Synthesized marks frames invented by missing-scope completion; they
	// carry no values.
	Synthesized bool

	// Values maps param names to the records of the captured values.
	Values map[string]*ValueProp

	// This and Args hold the frame's captured this binding and arguments
	// object, when some contained function uses them.
	This *ValueProp
	Args *ValueProp

	// Record is the frame-activation record: a call to the block's
	// factory. Function records of this frame hang off it.
	Record *Record
}

// A ValueProp is one captured variable of a frame.
type ValueProp struct {
	Record *Record

	// IsCircular marks values that cannot be passed at factory-call time
	// because they depend on a function of this block or a nested one;
	// they are delivered post hoc through an injector.
	IsCircular bool
}
