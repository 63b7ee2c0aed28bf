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

package emit

import (
	"bytes"
	"crypto/sha1"
	"encoding/base32"
	"slices"
	"strconv"
	"strings"

	"livepack.dev/go/errors"
	"livepack.dev/go/internal/core/record"
	"livepack.dev/go/js/token"
)

// HashLength is the width of a filename content hash and of the
// placeholder that stands in for one until hashing completes.
const HashLength = 8

const padChar = '%'

// uniformPlaceholder replaces every placeholder before content hashing, so
// a file's hash does not depend on which outputs it references.
var uniformPlaceholder = strings.Repeat(string(rune(padChar)), HashLength)

// placeholder returns the stand-in for output index: pad characters
// followed by the decimal serial, HashLength bytes in total.
func placeholder(index int) string {
	digits := strconv.Itoa(index)
	return strings.Repeat(string(rune(padChar)), HashLength-len(digits)) + digits
}

// contentHash is the Base32-encoded SHA-1 of the emitted JS, truncated to
// HashLength characters. It hashes js as given; callers normalize the
// placeholders beforehand.
func contentHash(js []byte) string {
	sum := sha1.Sum(js)
	return base32.StdEncoding.EncodeToString(sum[:])[:HashLength]
}

// placeholderAt reports whether an 8-byte window is a placeholder, and the
// output index it refers to.
func placeholderAt(b []byte) (int, bool) {
	i := 0
	for i < HashLength && b[i] == padChar {
		i++
	}
	if i == 0 || i == HashLength {
		return 0, false
	}
	n := 0
	for _, c := range b[i:HashLength] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// findPlaceholders returns the byte positions of every placeholder in js,
// with the output index each refers to.
type placeholderSite struct {
	pos   int
	index int
}

func findPlaceholders(js []byte) []placeholderSite {
	var sites []placeholderSite
	for i := 0; i+HashLength <= len(js); {
		if js[i] != padChar {
			i++
			continue
		}
		if idx, ok := placeholderAt(js[i : i+HashLength]); ok {
			sites = append(sites, placeholderSite{pos: i, index: idx})
			i += HashLength
			continue
		}
		i++
	}
	return sites
}

// resolveHashes runs the two-pass placeholder protocol over the emitted
// outputs: normalize and content-hash each file, derive cycle-stable final
// hashes, then splice the final hashes into the recorded placeholder
// positions.
//
// expected is the total number of placeholders the emitter wrote across
// all files; any placeholder-shaped byte run beyond those escaped from a
// source literal and is rejected.
func resolveHashes(outputs []*record.Output, expected int) (map[int]string, error) {
	sites := make([][]placeholderSite, len(outputs))
	total := 0
	for i, out := range outputs {
		sites[i] = findPlaceholders(out.Content)
		total += len(sites[i])
	}
	if total != expected {
		return nil, errors.NewKindf(errors.PlaceholderEscape, token.NoPos, nil,
			"emitted code contains a byte run matching the filename hash placeholder pattern; "+
				"disable content hashing or change the offending literal")
	}

	// Pass one: content hashes over normalized bytes, keyed by output
	// serial index.
	hashes := make(map[int]string, len(outputs))
	for i, out := range outputs {
		normalized := make([]byte, len(out.Content))
		copy(normalized, out.Content)
		for _, s := range sites[i] {
			copy(normalized[s.pos:], uniformPlaceholder)
		}
		hashes[out.Index] = contentHash(normalized)
	}

	// Pass two: the final hash folds in the content hashes of every
	// referenced output, ordered by hash value so output renumbering
	// cannot change any filename.
	final := make(map[int]string, len(outputs))
	for i, out := range outputs {
		refs := map[int]bool{}
		for _, s := range sites[i] {
			if s.index != out.Index {
				refs[s.index] = true
			}
		}
		if len(refs) == 0 {
			final[out.Index] = hashes[out.Index]
			continue
		}
		parts := make([]string, 0, len(refs))
		for idx := range refs {
			parts = append(parts, hashes[idx])
		}
		slices.Sort(parts)
		final[out.Index] = contentHash([]byte(hashes[out.Index] + strings.Join(parts, "")))
	}

	// Splice.
	for i, out := range outputs {
		if len(sites[i]) == 0 {
			continue
		}
		var buf bytes.Buffer
		buf.Grow(len(out.Content))
		last := 0
		for _, s := range sites[i] {
			buf.Write(out.Content[last:s.pos])
			buf.WriteString(final[s.index])
			last = s.pos + HashLength
		}
		buf.Write(out.Content[last:])
		out.Content = buf.Bytes()
	}
	return final, nil
}
