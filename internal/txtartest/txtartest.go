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

// Package txtartest runs table tests stored as txtar archives under a
// package's testdata directory.
//
// An archive holds input files consumed by the test function and,
// optionally, an "expect" file: one substring per line that must occur in
// the test's output. Lines starting with # are comments.
package txtartest

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/txtar"
)

// A Test wraps one archive.
type Test struct {
	*testing.T
	Archive *txtar.Archive
}

// File returns the contents of a file in the archive, or nil.
func (t *Test) File(name string) []byte {
	for _, f := range t.Archive.Files {
		if f.Name == name {
			return f.Data
		}
	}
	return nil
}

// Run invokes fn for every .txtar archive under root. fn returns the
// test's output, which is matched against the archive's expect file.
func Run(t *testing.T, root string, fn func(t *Test) []byte) {
	paths, err := filepath.Glob(filepath.Join(root, "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatalf("no txtar archives under %s", root)
	}
	for _, path := range paths {
		path := path
		name := strings.TrimSuffix(filepath.Base(path), ".txtar")
		t.Run(name, func(t *testing.T) {
			a, err := txtar.ParseFile(path)
			if err != nil {
				t.Fatal(err)
			}
			tt := &Test{T: t, Archive: a}
			out := fn(tt)
			checkExpect(t, tt.File("expect"), out)
		})
	}
}

func checkExpect(t *testing.T, expect, out []byte) {
	if expect == nil {
		return
	}
	for _, line := range strings.Split(string(expect), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !bytes.Contains(out, []byte(line)) {
			t.Errorf("output does not contain %q\n-- output --\n%s", line, out)
		}
	}
}
