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
	"math"
	"strings"

	"github.com/minio/highwayhash"

	"livepack.dev/go/value"
)

// internKey is the fixed HighwayHash key used for content-keyed interning.
// It only needs to be stable within one process; interning is an identity
// optimization, never an output-visible choice.
var internKey = func() []byte {
	k := make([]byte, 32)
	copy(k, "livepack-record-intern-key")
	return k
}()

// scalarKey is the identity key for fixed-size primitives.
type scalarKey struct {
	kind value.Kind
	bits uint64
}

// canonicalNaN is the single observable NaN; all NaN payloads intern to it.
var canonicalNaN = math.Float64bits(math.NaN())

// A Store is the content-addressed record table for one serializer
// instance. Primitives intern by value (NaN equals NaN, -0 distinct from
// +0), globals by property path and built-in modules by name; everything
// else interns by reference identity.
type Store struct {
	records []*Record

	byRef     map[value.Value]*Record
	byScalar  map[scalarKey]*Record
	byContent map[uint64][]*Record
	globals   map[string]*Record
	builtins  map[string]*Record
	helpers   map[string]*Record
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		byRef:     map[value.Value]*Record{},
		byScalar:  map[scalarKey]*Record{},
		byContent: map[uint64][]*Record{},
		globals:   map[string]*Record{},
		builtins:  map[string]*Record{},
		helpers:   map[string]*Record{},
	}
}

// Records returns all records in creation order. The slice is shared; the
// caller must not mutate it.
func (s *Store) Records() []*Record { return s.records }

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// New creates a record without registering any identity. It is used for
// internal records: scope factories, frame activations, assignments'
// synthetic owners.
func (s *Store) New(kind value.Kind, name string) *Record {
	r := &Record{ID: len(s.records) + 1, Kind: kind, Name: name}
	s.records = append(s.records, r)
	return r
}

// Find returns the existing record for v, if any. A second visit to a
// value reuses its record; only a new dependency edge is added by the
// caller.
func (s *Store) Find(v value.Value) (*Record, bool) {
	switch key, mode := s.identity(v); mode {
	case idScalar:
		r, ok := s.byScalar[key.(scalarKey)]
		return r, ok
	case idContent:
		for _, r := range s.byContent[key.(uint64)] {
			if contentEqual(r.Val, v) {
				return r, true
			}
		}
		return nil, false
	case idPath:
		r, ok := s.globals[key.(string)]
		return r, ok
	case idModule:
		r, ok := s.builtins[key.(string)]
		return r, ok
	default:
		r, ok := s.byRef[v]
		return r, ok
	}
}

// Add creates a record for v and registers its identity. The caller must
// have checked Find first.
func (s *Store) Add(v value.Value, name string) *Record {
	r := s.New(v.Kind(), name)
	r.Val = v
	switch key, mode := s.identity(v); mode {
	case idScalar:
		s.byScalar[key.(scalarKey)] = r
	case idContent:
		h := key.(uint64)
		s.byContent[h] = append(s.byContent[h], r)
	case idPath:
		s.globals[key.(string)] = r
	case idModule:
		s.builtins[key.(string)] = r
	default:
		s.byRef[v] = r
	}
	return r
}

// Helper returns the shared record for a runtime helper, creating it on
// first use. Helper records serialize as the helper's source snippet.
func (s *Store) Helper(name string) *Record {
	if r, ok := s.helpers[name]; ok {
		return r
	}
	r := s.New(value.FunctionKind, name)
	r.Helper = name
	s.helpers[name] = r
	return r
}

type idMode uint8

const (
	idRef idMode = iota
	idScalar
	idContent
	idPath
	idModule
)

func (s *Store) identity(v value.Value) (any, idMode) {
	switch x := v.(type) {
	case value.Undefined:
		return scalarKey{kind: value.UndefinedKind}, idScalar
	case value.Null:
		return scalarKey{kind: value.NullKind}, idScalar
	case value.Bool:
		bits := uint64(0)
		if x {
			bits = 1
		}
		return scalarKey{kind: value.BoolKind, bits: bits}, idScalar
	case value.Number:
		bits := math.Float64bits(float64(x))
		if math.IsNaN(float64(x)) {
			bits = canonicalNaN
		}
		return scalarKey{kind: value.NumberKind, bits: bits}, idScalar
	case value.String:
		return highwayhash.Sum64([]byte(x), internKey), idContent
	case *value.BigInt:
		return highwayhash.Sum64(x.Int.Bytes(), internKey) ^ uint64(x.Int.Sign()+2), idContent
	case *value.Global:
		return strings.Join(x.Path, "."), idPath
	case *value.BuiltinModule:
		return x.Name, idModule
	default:
		return nil, idRef
	}
}

// contentEqual resolves HighwayHash bucket collisions by full comparison.
func contentEqual(a, b value.Value) bool {
	switch x := a.(type) {
	case value.String:
		y, ok := b.(value.String)
		return ok && x == y
	case *value.BigInt:
		y, ok := b.(*value.BigInt)
		return ok && x.Int.Cmp(y.Int) == 0
	}
	return false
}
