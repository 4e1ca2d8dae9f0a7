// Copyright 2026 flatwave Authors
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

package ir

import "fmt"

// Log is an append-only diagnostic log. Passes record why they declined to
// parallelize something; the driver decides whether to show it. A nil *Log
// discards everything, so callers never need to guard.
type Log struct {
	entries []string
}

// Notef appends a formatted entry.
func (l *Log) Notef(format string, args ...any) {
	if l == nil {
		return
	}
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

// Entries returns the recorded entries in append order.
func (l *Log) Entries() []string {
	if l == nil {
		return nil
	}
	return l.entries
}
