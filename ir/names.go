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

// Package ir defines the typed array intermediate representation consumed by
// the distribution engine and kernel lowering: names, types, statements,
// bodies, lambdas, and the closed union of parallel combinators.
package ir

import (
	"fmt"
	"sort"
)

// VName is a unique variable name: a human-readable base plus a tag that
// disambiguates it from every other name in the program.
type VName struct {
	Base string
	Tag  int
}

// String returns the printed form of the name, e.g. "xs_3".
func (v VName) String() string {
	return fmt.Sprintf("%s_%d", v.Base, v.Tag)
}

// Less orders names by (Base, Tag) for deterministic output.
func (v VName) Less(o VName) bool {
	if v.Base != o.Base {
		return v.Base < o.Base
	}
	return v.Tag < o.Tag
}

// NameSet is a set of variable names.
type NameSet map[VName]struct{}

// NewNameSet returns a set containing the given names.
func NewNameSet(names ...VName) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts names into the set.
func (s NameSet) Add(names ...VName) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// AddSet inserts every name of o into the set.
func (s NameSet) AddSet(o NameSet) {
	for n := range o {
		s[n] = struct{}{}
	}
}

// Has reports whether n is in the set.
func (s NameSet) Has(n VName) bool {
	_, ok := s[n]
	return ok
}

// Delete removes names from the set.
func (s NameSet) Delete(names ...VName) {
	for _, n := range names {
		delete(s, n)
	}
}

// Intersects reports whether the two sets share any name.
func (s NameSet) Intersects(o NameSet) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for n := range small {
		if large.Has(n) {
			return true
		}
	}
	return false
}

// Sorted returns the names in deterministic (Base, Tag) order.
func (s NameSet) Sorted() []VName {
	names := make([]VName, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Less(names[j]) })
	return names
}

// Source allocates fresh names. The counter is monotonically increasing and
// threaded explicitly through every pass; it is the only mutable compiler
// state besides the diagnostic log.
type Source struct {
	ctr int
}

// NewSource returns a Source whose first fresh tag is start.
func NewSource(start int) *Source {
	return &Source{ctr: start}
}

// Fresh returns a new name with the given base and a never-before-used tag.
func (s *Source) Fresh(base string) VName {
	s.ctr++
	return VName{Base: base, Tag: s.ctr}
}

// FreshFrom returns a new name reusing the base of an existing one.
func (s *Source) FreshFrom(v VName) VName {
	return s.Fresh(v.Base)
}

// Counter returns the current counter value, for checkpointing in tests.
func (s *Source) Counter() int {
	return s.ctr
}
