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

// Package errors defines shared types for handling livepack errors.
//
// The pivotal error type in livepack packages is the interface type Error.
// The information available in such errors can be most easily retrieved using
// the Path, Positions, and Print functions. Path reports the chain of
// property keys from the serialization root to the value that caused the
// error; Positions reports the original source locations supplied by the
// instrumenter.
package errors

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"livepack.dev/go/js/token"
)

// New is a convenience wrapper for [errors.New] in the core library.
// It does not return a livepack error.
func New(msg string) error {
	return errors.New(msg)
}

// Unwrap returns the result of calling the Unwrap method on err, if err
// implements Unwrap. Otherwise, Unwrap returns nil.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches the type to which
// target points, and if so, sets the target to its value and returns true.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// A Kind identifies a class of fatal serialization failure. Kinds are
// compared by identity; use [Is] with one of the exported kinds to test an
// error's class.
type Kind struct {
	name string
}

func (k *Kind) Error() string { return k.name }

// The fatal error kinds produced by the serializer.
var (
	// Unreconstructible marks a value for which no reconstruction exists,
	// such as a host-only native handle.
	Unreconstructible = &Kind{"value cannot be serialized"}

	// CircularSplitAsync marks an async split point whose target
	// transitively contains its own import function.
	CircularSplitAsync = &Kind{"circular async split point"}

	// FrozenConflict marks a frozen name that would need both this- and
	// arguments-injection while also being circular.
	FrozenConflict = &Kind{"cannot inject frozen binding"}

	// HashCollision marks duplicate output filenames with no [hash]
	// placeholder available to disambiguate.
	HashCollision = &Kind{"output filename collision"}

	// UnsupportedGlobal marks CommonJS-only vars and other non-portable
	// host globals.
	UnsupportedGlobal = &Kind{"unsupported global"}

	// PlaceholderEscape marks a source literal containing a byte run that
	// matches the filename hash placeholder pattern.
	PlaceholderEscape = &Kind{"hash placeholder pattern in source"}
)

// A Message implements the error interface as well as Msg to allow
// deferred formatting of messages.
type Message struct {
	format string
	args   []interface{}
}

// NewMessagef creates an error message for human consumption. The passed
// argument list should not be modified.
func NewMessagef(format string, args ...interface{}) Message {
	if false {
		// Let go vet know that we're expecting printf-like arguments.
		_ = fmt.Sprintf(format, args...)
	}
	return Message{format: format, args: args}
}

// Msg returns a printf-style format string and its arguments for human
// consumption.
func (m *Message) Msg() (format string, args []interface{}) {
	return m.format, m.args
}

func (m *Message) Error() string {
	return fmt.Sprintf(m.format, m.args...)
}

// Error is the common error type for serialization failures.
type Error interface {
	// Position returns the source position associated with an error, if
	// the instrumenter supplied one.
	Position() token.Pos

	// Error reports the error message without path information.
	Error() string

	// Path returns the chain of property keys from the serialization root
	// to the value where the error occurred. This path may be nil if the
	// error is not associated with such a location.
	Path() []string

	// Msg returns the unformatted error message and its arguments for
	// human consumption.
	Msg() (format string, args []interface{})
}

// Path returns the path of an Error if err is of that type.
func Path(err error) []string {
	if e := Error(nil); errors.As(err, &e) {
		return e.Path()
	}
	return nil
}

// Positions returns all positions returned by an error, sorted by relevance
// when possible and with duplicates removed.
func Positions(err error) []token.Pos {
	var a []token.Pos
	for _, e := range Errors(err) {
		if p := e.Position(); p.IsValid() && !slices.Contains(a, p) {
			a = append(a, p)
		}
	}
	return a
}

// Newf creates an Error with the associated position and message.
func Newf(p token.Pos, format string, args ...interface{}) Error {
	return &posError{
		pos:     p,
		Message: NewMessagef(format, args...),
	}
}

// NewKindf creates a fatal Error of the given kind, carrying the path from
// the serialization root to the offending value.
func NewKindf(k *Kind, p token.Pos, path []string, format string, args ...interface{}) Error {
	return &posError{
		kind:    k,
		pos:     p,
		path:    slices.Clone(path),
		Message: NewMessagef(format, args...),
	}
}

// Wrapf creates an Error with the associated position and message. The
// provided error is added for inspection context.
func Wrapf(err error, p token.Pos, format string, args ...interface{}) Error {
	pErr := &posError{
		pos:     p,
		Message: NewMessagef(format, args...),
	}
	return Wrap(pErr, err)
}

// Wrap creates a new error where child is a subordinate error of parent.
// If child is a list of Errors, the result will itself be a list of errors
// where child is a subordinate error of each parent.
func Wrap(parent Error, child error) Error {
	if child == nil {
		return parent
	}
	a, ok := child.(list)
	if !ok {
		return &wrapped{parent, child}
	}
	b := make(list, len(a))
	for i, err := range a {
		b[i] = &wrapped{parent, err}
	}
	return b
}

type wrapped struct {
	main Error
	wrap error
}

// Error implements the error interface.
func (e *wrapped) Error() string {
	switch msg := e.main.Error(); {
	case e.wrap == nil:
		return msg
	case msg == "":
		return e.wrap.Error()
	default:
		return fmt.Sprintf("%s: %s", msg, e.wrap)
	}
}

func (e *wrapped) Is(target error) bool {
	return Is(e.main, target)
}

func (e *wrapped) As(target interface{}) bool {
	return As(e.main, target)
}

func (e *wrapped) Msg() (format string, args []interface{}) {
	return e.main.Msg()
}

func (e *wrapped) Path() []string {
	if p := e.main.Path(); p != nil {
		return p
	}
	return Path(e.wrap)
}

func (e *wrapped) Position() token.Pos {
	if p := e.main.Position(); p != token.NoPos {
		return p
	}
	if wrap, ok := e.wrap.(Error); ok {
		return wrap.Position()
	}
	return token.NoPos
}

func (e *wrapped) Unwrap() error { return e.wrap }

// Promote converts a regular Go error to an Error if it isn't already one.
func Promote(err error, msg string) Error {
	switch x := err.(type) {
	case Error:
		return x
	default:
		return Wrapf(err, token.NoPos, "%s", msg)
	}
}

var _ Error = &posError{}

// In a list, an error is represented by a *posError. The position pos, if
// valid, points to the instrumented source of the offending value, and the
// error condition is described by Message.
type posError struct {
	kind *Kind
	pos  token.Pos
	path []string
	Message
}

func (e *posError) Path() []string      { return e.path }
func (e *posError) Position() token.Pos { return e.pos }

func (e *posError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// Append combines two errors, flattening lists as necessary.
func Append(a, b Error) Error {
	switch x := a.(type) {
	case nil:
		return b
	case list:
		return appendToList(x, b)
	}
	// Preserve order of errors.
	return appendToList(list{a}, b)
}

// Errors reports the individual errors associated with an error, which is
// the error itself if there is only one or, if the underlying type is list,
// its individual elements. If the given error is not an Error, it will be
// promoted to one.
func Errors(err error) []Error {
	if err == nil {
		return nil
	}
	var listErr list
	var errorErr Error
	switch {
	case As(err, &listErr):
		return listErr
	case As(err, &errorErr):
		return []Error{errorErr}
	default:
		return []Error{Promote(err, "")}
	}
}

func appendToList(a list, err Error) list {
	switch x := err.(type) {
	case nil:
		return a
	case list:
		if len(a) == 0 {
			return x
		}
		for _, e := range x {
			a = appendToList(a, e)
		}
		return a
	default:
		for _, e := range a {
			if e == err {
				return a
			}
		}
		return append(a, err)
	}
}

// list is a list of Errors.
// The zero value for a list is an empty list ready to use.
type list []Error

func (p list) Is(target error) bool {
	for _, e := range p {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}

func (p list) As(target interface{}) bool {
	for _, e := range p {
		if errors.As(e, target) {
			return true
		}
	}
	return false
}

// Add adds an Error to a list.
func (p *list) Add(err Error) {
	*p = appendToList(*p, err)
}

// Error reports the error of the first of the list of errors.
func (p list) Error() string {
	format, args := p.Msg()
	return fmt.Sprintf(format, args...)
}

// Msg reports the unformatted error of the first of the list of errors.
func (p list) Msg() (format string, args []interface{}) {
	switch len(p) {
	case 0:
		return "no errors", nil
	case 1:
		return p[0].Msg()
	}
	return "%s (and %d more errors)", []interface{}{p[0], len(p) - 1}
}

func (p list) Position() token.Pos {
	if len(p) == 0 {
		return token.NoPos
	}
	return p[0].Position()
}

func (p list) Path() []string {
	if len(p) == 0 {
		return nil
	}
	return p[0].Path()
}

// Sort sorts a list. Entries are sorted by position, then path, then
// message.
func (p list) Sort() {
	slices.SortFunc(p, func(a, b Error) int {
		if c := comparePosNoPosFirst(a.Position(), b.Position()); c != 0 {
			return c
		}
		if c := slices.Compare(a.Path(), b.Path()); c != 0 {
			return c
		}
		return cmp.Compare(a.Error(), b.Error())
	})
}

// comparePosNoPosFirst wraps [token.Pos.Compare] to place [token.NoPos]
// first, which is required for errors to be sorted correctly.
func comparePosNoPosFirst(a, b token.Pos) int {
	if a == b {
		return 0
	} else if a == token.NoPos {
		return -1
	} else if b == token.NoPos {
		return +1
	}
	return a.Compare(b)
}

// Print is a utility function that prints a list of errors to w, one error
// per line, if the err parameter is a list. Otherwise it prints the err
// string.
func Print(w io.Writer, err error) {
	for _, e := range Errors(Sanitize(toError(err))) {
		printError(w, e)
	}
}

func toError(err error) Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		return e
	}
	return Promote(err, "")
}

// Sanitize sorts multiple errors and removes duplicates on a best effort
// basis. If err represents a single or no error, it returns the error as is.
func Sanitize(err Error) Error {
	if l, ok := err.(list); ok && err != nil {
		a := slices.Clone(l)
		a.Sort()
		a = slices.CompactFunc(a, approximateEqual)
		if len(a) == 1 {
			return a[0]
		}
		return a
	}
	return err
}

func approximateEqual(a, b Error) bool {
	aPos := a.Position()
	bPos := b.Position()
	if aPos == token.NoPos || bPos == token.NoPos {
		return a.Error() == b.Error()
	}
	return aPos == bPos && slices.Compare(a.Path(), b.Path()) == 0
}

func printError(w io.Writer, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if path := Path(err); len(path) > 0 {
		msg = fmt.Sprintf("%s (at %s)", msg, strings.Join(path, "."))
	}
	if positions := Positions(err); len(positions) > 0 {
		strs := make([]string, len(positions))
		for i, p := range positions {
			strs[i] = p.String()
		}
		msg = fmt.Sprintf("%s:\n    %s", msg, strings.Join(strs, "\n    "))
	}
	fmt.Fprintln(w, msg)
}
