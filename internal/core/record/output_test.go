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
	"testing"

	"github.com/go-quicktest/qt"
)

func TestOutputTypeMasks(t *testing.T) {
	qt.Assert(t, qt.IsTrue(SyncSplit.Is(AnySplit)))
	qt.Assert(t, qt.IsTrue(AsyncSplit.Is(AnySplit)))
	qt.Assert(t, qt.IsTrue(CommonSplit.Is(AnySplit)))
	qt.Assert(t, qt.IsFalse(EntryPoint.Is(AnySplit)))
	qt.Assert(t, qt.IsTrue(Common.Is(AnyCommon)))
	qt.Assert(t, qt.IsTrue(EntryPoint.Is(AnyOutput)))
	qt.Assert(t, qt.Equals(AsyncSplit.String(), "async-split"))
}

func TestAddDependencyDedupes(t *testing.T) {
	a := &Output{Name: "a"}
	b := &Output{Name: "b"}
	a.AddDependency(b)
	a.AddDependency(b)
	a.AddDependency(a)
	qt.Assert(t, qt.Equals(len(a.Dependencies), 1))
}
