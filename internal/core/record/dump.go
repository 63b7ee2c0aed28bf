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
	"fmt"
	"io"

	"github.com/kr/pretty"
)

// Dump writes a human-readable description of the record graph to w.
// For debugging purposes. Do not delete.
func Dump(w io.Writer, s *Store) {
	for _, r := range s.records {
		fmt.Fprintf(w, "#%d %s %q deps=%d dependents=%d assignments=%d\n",
			r.ID, r.Kind, r.Name, len(r.Deps), len(r.Dependents), len(r.Assignments))
		if r.Val != nil {
			pretty.Fprintf(w, "    %# v\n", r.Val)
		}
	}
}
