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

package pack

import (
	"strings"
	"testing"

	"github.com/go-quicktest/qt"

	"livepack.dev/go/js/ast"
	"livepack.dev/go/value"
)

// TestNestedBlocks exercises missing-scope completion: the inner frame
// arrives with no recorded parent activation, so an empty outer activation
// is synthesized.
func TestNestedBlocks(t *testing.T) {
	reg := value.NewRegistry()
	outerID := reg.AddBlock(&value.BlockMeta{
		Name:   "outer",
		Params: []value.BlockParam{{Name: "a"}},
	})
	innerID := reg.AddBlock(&value.BlockMeta{
		ParentID: outerID,
		Name:     "inner",
		Params:   []value.BlockParam{{Name: "b"}},
	})

	aSite := ast.NewIdent("a")
	bSite := ast.NewIdent("b")
	fnID := reg.AddFunc(&value.FuncMeta{
		AST: &ast.FuncExpr{
			Arrow:    true,
			ExprBody: &ast.BinaryExpr{Op: "+", X: aSite, Y: bSite},
		},
		BlockID:   innerID,
		Externals: []string{"a", "b"},
		VarSites:  map[string][]*ast.Ident{"a": {aSite}, "b": {bSite}},
	})

	// The inner frame has no recorded parent.
	frID := reg.AddFrame(&value.FrameMeta{
		BlockID: innerID,
		Values:  map[string]value.Value{"b": value.Num(5)},
	})
	fn := &value.Function{Meta: fnID, Frame: frID}

	res, err := Serialize(fn, reg, Options{Inline: true})
	qt.Assert(t, qt.IsNil(err))
	content := string(res.Files[0].Content)

	// The outer factory returns the inner factory, which closes over a.
	qt.Assert(t, qt.IsTrue(strings.Contains(content, "(a) => (b) => () => a + b")),
		qt.Commentf("content:\n%s", content))
	// The synthesized outer activation is an argument-less call.
	qt.Assert(t, qt.IsTrue(strings.Contains(content, ")()(5)")),
		qt.Commentf("content:\n%s", content))
}

// TestFrozenNamesSurvive keeps eval-observable names intact even when
// mangling.
func TestFrozenNamesSurvive(t *testing.T) {
	reg := value.NewRegistry()
	blockID := reg.AddBlock(&value.BlockMeta{
		Params:       []value.BlockParam{{Name: "secret", Frozen: true}},
		ContainsEval: true,
	})
	site := ast.NewIdent("secret")
	fnID := reg.AddFunc(&value.FuncMeta{
		AST:          &ast.FuncExpr{Arrow: true, ExprBody: site},
		BlockID:      blockID,
		Externals:    []string{"secret"},
		VarSites:     map[string][]*ast.Ident{"secret": {site}},
		ContainsEval: true,
	})
	frID := reg.AddFrame(&value.FrameMeta{
		BlockID: blockID,
		Values:  map[string]value.Value{"secret": value.Num(1)},
	})
	fn := &value.Function{Meta: fnID, Frame: frID}

	res, err := Serialize(fn, reg, Options{Mangle: true, Inline: true})
	qt.Assert(t, qt.IsNil(err))
	content := string(res.Files[0].Content)
	qt.Assert(t, qt.IsTrue(strings.Contains(content, "secret")),
		qt.Commentf("content:\n%s", content))
}
