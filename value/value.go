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

// Package value defines the data model for the live values handed to the
// serializer: a snapshot of the program graph captured by the instrumenter.
//
// Primitives carry value identity (NaN equals NaN, -0 is distinct from +0);
// all other values are pointers and carry reference identity. The snapshot
// must not be mutated while serialization runs.
package value

import (
	"math/big"
)

// Kind classifies every value the tracer can encounter. Classification is
// total: a value maps to exactly one Kind.
type Kind uint8

const (
	NoKind Kind = iota

	// Primitives.
	UndefinedKind
	NullKind
	BoolKind
	NumberKind
	StringKind
	BigIntKind
	SymbolKind

	// Reference values.
	ObjectKind
	ArrayKind
	FunctionKind
	ClassKind
	RegExpKind
	DateKind
	MapKind
	SetKind
	TypedArrayKind
	ArrayBufferKind
	BoxedKind
	ArgumentsKind
	ModuleNSKind
	GlobalKind
	BuiltinModuleKind
	ImportFnKind
)

var kindStrings = [...]string{
	NoKind:            "none",
	UndefinedKind:     "undefined",
	NullKind:          "null",
	BoolKind:          "bool",
	NumberKind:        "number",
	StringKind:        "string",
	BigIntKind:        "bigint",
	SymbolKind:        "symbol",
	ObjectKind:        "object",
	ArrayKind:         "array",
	FunctionKind:      "function",
	ClassKind:         "class",
	RegExpKind:        "regexp",
	DateKind:          "date",
	MapKind:           "map",
	SetKind:           "set",
	TypedArrayKind:    "typed-array",
	ArrayBufferKind:   "array-buffer",
	BoxedKind:         "boxed",
	ArgumentsKind:     "arguments",
	ModuleNSKind:      "module-namespace",
	GlobalKind:        "global",
	BuiltinModuleKind: "builtin-module",
	ImportFnKind:      "import-fn",
}

func (k Kind) String() string {
	if int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return "unknown"
}

// IsPrimitive reports whether values of this kind are JavaScript
// primitives. All of them except symbols are compared by value; a Symbol
// carries reference identity.
func (k Kind) IsPrimitive() bool {
	return k >= UndefinedKind && k <= SymbolKind
}

// A Value is any value of the captured graph.
type Value interface {
	Kind() Kind
}

// ----------------------------------------------------------------------------
// Primitives

type Undefined struct{}
type Null struct{}
type Bool bool
type Number float64
type String string

func (Undefined) Kind() Kind { return UndefinedKind }
func (Null) Kind() Kind      { return NullKind }
func (Bool) Kind() Kind      { return BoolKind }
func (Number) Kind() Kind    { return NumberKind }
func (String) Kind() Kind    { return StringKind }

// A BigInt is an arbitrary-precision integer primitive. The Int must not be
// mutated after capture.
type BigInt struct {
	Int *big.Int
}

func (*BigInt) Kind() Kind { return BigIntKind }

// A Symbol has reference-like identity: two symbols with the same
// description are distinct unless they are the same *Symbol. Registered
// symbols (Symbol.for) are reconstructed through the global registry.
type Symbol struct {
	Desc       string
	Registered bool
}

func (*Symbol) Kind() Kind { return SymbolKind }

// ----------------------------------------------------------------------------
// Properties and descriptors

// A PropKey is an own-property key: a string or a symbol.
type PropKey struct {
	Name string
	Sym  *Symbol // non-nil for symbol keys; Name is ignored then
}

func (k PropKey) IsSymbol() bool { return k.Sym != nil }

// StringKey returns a string-valued property key.
func StringKey(name string) PropKey { return PropKey{Name: name} }

// A Descriptor captures an own property's value or accessor pair together
// with its three attribute flags.
type Descriptor struct {
	Value Value // data property value; nil for accessor properties
	Get   Value // nil when absent
	Set   Value // nil when absent

	Writable     bool
	Enumerable   bool
	Configurable bool
}

// DataProp returns a data descriptor with all flags set, the default for
// ordinary assignment.
func DataProp(v Value) Descriptor {
	return Descriptor{Value: v, Writable: true, Enumerable: true, Configurable: true}
}

// IsAccessor reports whether the descriptor describes an accessor property.
func (d Descriptor) IsAccessor() bool { return d.Get != nil || d.Set != nil }

// IsDefault reports whether all three attribute flags are set.
func (d Descriptor) IsDefault() bool {
	return d.Writable && d.Enumerable && d.Configurable
}

// A Property is one own property of an object-like value.
type Property struct {
	Key PropKey
	Descriptor
}

// Integrity is the extensibility state of an object.
type Integrity uint8

const (
	Extensible Integrity = iota
	NonExtensible
	Sealed
	Frozen
)

// Common holds the attributes shared by every object-like value: the own
// properties beyond the kind's intrinsic content, the prototype when it
// deviates from the kind's default, and the integrity level.
type Common struct {
	// Props are own properties in capture order. For arrays and typed
	// arrays these exclude the integer-keyed elements, which live in the
	// kind's own representation; integer keys here would violate the
	// traversal order contract.
	Props []Property

	// Proto overrides the kind's standard prototype when HasProto is set.
	// HasProto with a nil Proto means a null prototype.
	Proto    Value
	HasProto bool

	Integrity Integrity
}

func (c *Common) common() *Common { return c }

// HasCommon is implemented by all object-like values.
type HasCommon interface {
	Value
	common() *Common
}

// CommonOf returns the shared object attributes of v, or nil when v is a
// primitive.
func CommonOf(v Value) *Common {
	if h, ok := v.(HasCommon); ok {
		return h.common()
	}
	return nil
}

// ----------------------------------------------------------------------------
// Reference values

// An Object is a plain object, or an object of unknown native class traced
// as plain with its prototype captured.
type Object struct {
	Common
}

func (*Object) Kind() Kind { return ObjectKind }

// An Array is a JavaScript array. Elems holds the integer-keyed slots in
// numeric order; a nil element is a hole. Non-index properties live in
// Common.Props.
type Array struct {
	Common
	Elems []Value
}

func (*Array) Kind() Kind { return ArrayKind }

// A Function is a captured closure. Meta identifies its instrumentation
// metadata; Frame identifies the scope frame it was produced in.
type Function struct {
	Common
	Meta  FuncID
	Frame FrameID // 0 when the function captures nothing

	// IsClass distinguishes class constructors; they serialize through
	// the same machinery with class-specific output.
	IsClass bool
}

func (f *Function) Kind() Kind {
	if f.IsClass {
		return ClassKind
	}
	return FunctionKind
}

// A RegExp is a regular expression with its lastIndex state.
type RegExp struct {
	Common
	Pattern   string
	Flags     string
	LastIndex float64
}

func (*RegExp) Kind() Kind { return RegExpKind }

// A Date is a Date object captured as its time value in milliseconds.
type Date struct {
	Common
	Ms float64
}

func (*Date) Kind() Kind { return DateKind }

// A Map is a Map with entries in insertion order.
type Map struct {
	Common
	Entries [][2]Value
}

func (*Map) Kind() Kind { return MapKind }

// A Set is a Set with elements in insertion order.
type Set struct {
	Common
	Elems []Value
}

func (*Set) Kind() Kind { return SetKind }

// A TypedArray is any of the typed array classes. Data is the raw bytes in
// element order; Ctor names the constructor (Uint8Array, Float64Array, ...).
type TypedArray struct {
	Common
	Ctor string
	Data []byte
}

func (*TypedArray) Kind() Kind { return TypedArrayKind }

// ElemSize returns the byte width of one element of the typed array class.
func (t *TypedArray) ElemSize() int {
	switch t.Ctor {
	case "Int8Array", "Uint8Array", "Uint8ClampedArray":
		return 1
	case "Int16Array", "Uint16Array":
		return 2
	case "Int32Array", "Uint32Array", "Float32Array":
		return 4
	default:
		return 8
	}
}

// Len returns the element count.
func (t *TypedArray) Len() int { return len(t.Data) / t.ElemSize() }

// IsZero reports whether every byte of the backing data is zero, in which
// case the array serializes in constructor-with-length form.
func (t *TypedArray) IsZero() bool {
	for _, b := range t.Data {
		if b != 0 {
			return false
		}
	}
	return true
}

// An ArrayBuffer is a raw buffer, possibly shared between typed arrays.
type ArrayBuffer struct {
	Common
	Data []byte
}

func (*ArrayBuffer) Kind() Kind { return ArrayBufferKind }

// A Boxed value is a primitive wrapper object: new Number(1), Object("x").
type Boxed struct {
	Common
	Prim Value
}

func (*Boxed) Kind() Kind { return BoxedKind }

// An Arguments value is an exotic arguments object. It is reconstructed by
// a createArguments helper call over the current slot values. Frame is
// recorded but not used: the slots are not linked to the frame's
// variables.
type Arguments struct {
	Common
	Elems []Value
	Frame FrameID
}

func (*Arguments) Kind() Kind { return ArgumentsKind }

// A ModuleNS is a module namespace object. It is reconstructed as an
// ordinary sealed object, which is observably different from an engine
// namespace (util.types.isModuleNamespaceObject is false). Native is
// recorded but the tracer does not read it.
type ModuleNS struct {
	Common
	Exports []NamedExport
	Native  bool
}

// A NamedExport is one binding of a module namespace.
type NamedExport struct {
	Name  string
	Value Value
}

func (*ModuleNS) Kind() Kind { return ModuleNSKind }

// A Global is a reference to a built-in reachable from globalThis by a
// property path, such as Object.create or Symbol.iterator.
type Global struct {
	Path []string
}

func (*Global) Kind() Kind { return GlobalKind }

// A BuiltinModule is a reference to a Node built-in module.
type BuiltinModule struct {
	Name string
}

func (*BuiltinModule) Kind() Kind { return BuiltinModuleKind }

// An ImportFn is the import function produced for an async split point:
// calling it imports the split output and resolves to a namespace whose
// default export is Target.
type ImportFn struct {
	Common
	Target Value
	Name   string
}

func (*ImportFn) Kind() Kind { return ImportFnKind }

// ----------------------------------------------------------------------------
// Constructors for common cases

// Num returns a Number value.
func Num(f float64) Number { return Number(f) }

// Str returns a String value.
func Str(s string) String { return String(s) }

// NewObject returns an empty plain object.
func NewObject() *Object { return &Object{} }

// NewArray returns an array with the given elements.
func NewArray(elems ...Value) *Array { return &Array{Elems: elems} }
