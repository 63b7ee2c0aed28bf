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

package value

import (
	"testing"

	"github.com/go-quicktest/qt"
)

func TestKindPredicates(t *testing.T) {
	qt.Assert(t, qt.IsTrue(UndefinedKind.IsPrimitive()))
	qt.Assert(t, qt.IsTrue(SymbolKind.IsPrimitive()))
	qt.Assert(t, qt.IsFalse(ObjectKind.IsPrimitive()))
	qt.Assert(t, qt.IsFalse(FunctionKind.IsPrimitive()))
	qt.Assert(t, qt.Equals(TypedArrayKind.String(), "typed-array"))
}

func TestFunctionClassKind(t *testing.T) {
	fn := &Function{}
	qt.Assert(t, qt.Equals(fn.Kind(), FunctionKind))
	fn.IsClass = true
	qt.Assert(t, qt.Equals(fn.Kind(), ClassKind))
}

func TestTypedArrayHelpers(t *testing.T) {
	ta := &TypedArray{Ctor: "Uint16Array", Data: make([]byte, 8)}
	qt.Assert(t, qt.Equals(ta.ElemSize(), 2))
	qt.Assert(t, qt.Equals(ta.Len(), 4))
	qt.Assert(t, qt.IsTrue(ta.IsZero()))

	ta.Data[3] = 1
	qt.Assert(t, qt.IsFalse(ta.IsZero()))

	f64 := &TypedArray{Ctor: "Float64Array", Data: make([]byte, 16)}
	qt.Assert(t, qt.Equals(f64.ElemSize(), 8))
	qt.Assert(t, qt.Equals(f64.Len(), 2))
}

func TestCommonOf(t *testing.T) {
	o := NewObject()
	qt.Assert(t, qt.IsNotNil(CommonOf(o)))
	qt.Assert(t, qt.IsNil(CommonOf(Num(1))))
	qt.Assert(t, qt.IsNil(CommonOf(Str("x"))))
}

func TestDescriptor(t *testing.T) {
	d := DataProp(Num(1))
	qt.Assert(t, qt.IsTrue(d.IsDefault()))
	qt.Assert(t, qt.IsFalse(d.IsAccessor()))

	acc := Descriptor{Get: NewObject(), Enumerable: true, Configurable: true}
	qt.Assert(t, qt.IsTrue(acc.IsAccessor()))
}

func TestRegistryFrames(t *testing.T) {
	reg := NewRegistry()
	qt.Assert(t, qt.IsNil(reg.Frame(0)))

	id := reg.AddFrame(&FrameMeta{BlockID: 1})
	qt.Assert(t, qt.Equals(reg.Frame(id).ID, id))
}
