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

package ast

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

func isIdentStart(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$' ||
		ch >= utf8.RuneSelf && unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || '0' <= ch && ch <= '9' ||
		ch >= utf8.RuneSelf && unicode.IsDigit(ch)
}

// IsValidIdent reports whether name is a valid JavaScript identifier that is
// not a reserved word.
func IsValidIdent(name string) bool {
	if name == "" || IsReservedWord(name) {
		return false
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if i > 0 && !isIdentPart(r) {
			return false
		}
	}
	return true
}

// IsValidPropertyName reports whether name can appear unquoted after a dot
// or as a plain object literal key. Reserved words are permitted in this
// position.
func IsValidPropertyName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if i > 0 && !isIdentPart(r) {
			return false
		}
	}
	return true
}

// reservedWords holds the ECMAScript keywords and future reserved words,
// including those reserved only in strict mode. Generated identifiers avoid
// all of them regardless of the strictness of the surrounding code.
var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true,
	"class": true, "const": true, "continue": true, "debugger": true,
	"default": true, "delete": true, "do": true, "else": true,
	"enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true,
	"implements": true, "import": true, "in": true, "instanceof": true,
	"interface": true, "let": true, "new": true, "null": true,
	"package": true, "private": true, "protected": true, "public": true,
	"return": true, "static": true, "super": true, "switch": true,
	"this": true, "throw": true, "true": true, "try": true,
	"typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,
}

// IsReservedWord reports whether name is a keyword or future reserved word
// in any mode.
func IsReservedWord(name string) bool {
	return reservedWords[name]
}

// IsStrictReservedBinding reports whether name may not be bound in strict
// mode code even though it is not a reserved word.
func IsStrictReservedBinding(name string) bool {
	return name == "arguments" || name == "eval"
}

// maxArrayIndex is the largest property key treated as an array index.
// 2^32-1 itself is an ordinary string key.
const maxArrayIndex = 1<<32 - 2

// ArrayIndex reports whether key is a canonical array index string, i.e.
// the shortest decimal form of an integer in [0, 2^32-2], and returns its
// numeric value.
func ArrayIndex(key string) (uint32, bool) {
	if key == "" || len(key) > 10 {
		return 0, false
	}
	if key != "0" && key[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 64)
	if err != nil || n > maxArrayIndex {
		return 0, false
	}
	return uint32(n), true
}
