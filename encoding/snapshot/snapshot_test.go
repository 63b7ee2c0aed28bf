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

package snapshot

import (
	"bytes"
	"testing"

	"github.com/go-quicktest/qt"

	"livepack.dev/go/internal/txtartest"
	"livepack.dev/go/pack"
)

// TestBuild decodes each testdata snapshot, serializes it, and checks the
// emitted files against the archive's expectations.
func TestBuild(t *testing.T) {
	txtartest.Run(t, "testdata", func(tt *txtartest.Test) []byte {
		data := tt.File("snapshot.json")
		qt.Assert(tt.T, qt.IsNotNil(data))

		g, err := Decode(data)
		qt.Assert(tt.T, qt.IsNil(err))

		s := pack.NewSerializer(g.Registry, pack.Options{Inline: true})
		for _, e := range g.Entries {
			root, err := g.Value(e.Root)
			qt.Assert(tt.T, qt.IsNil(err))
			name := e.Name
			if name == "" {
				name = "index"
			}
			s.AddEntry(name, root)
		}
		for _, sp := range g.Splits {
			root, err := g.Value(sp.Root)
			qt.Assert(tt.T, qt.IsNil(err))
			if sp.Async {
				s.SplitAsync(root, sp.Name)
			} else {
				s.Split(root, sp.Name)
			}
		}

		res, err := s.Serialize()
		qt.Assert(tt.T, qt.IsNil(err))

		var buf bytes.Buffer
		for _, f := range res.Files {
			buf.WriteString("== " + f.Filename + "\n")
			buf.Write(f.Content)
		}
		return buf.Bytes()
	})
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{`))
	qt.Assert(t, qt.IsNotNil(err))

	_, err = Decode([]byte(`{"values": [{"id": 1, "kind": "socket"}], "entries": []}`))
	qt.Assert(t, qt.ErrorMatches(err, `snapshot: value 1: unknown kind "socket"`))

	_, err = Decode([]byte(`{"values": [{"id": 1, "kind": "number"}], "entries": []}`))
	qt.Assert(t, qt.ErrorMatches(err, `snapshot: value 1: number kind without number`))
}
