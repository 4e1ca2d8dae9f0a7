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

// Scope maps names to their declared types. The distribution engine and
// kernel lowering receive it as an explicit value, never as global state.
type Scope map[VName]Type

// Clone returns an independent copy of the scope.
func (sc Scope) Clone() Scope {
	out := make(Scope, len(sc))
	for n, t := range sc {
		out[n] = t
	}
	return out
}

// BindPattern records the types a statement pattern binds.
func (sc Scope) BindPattern(p Pattern) {
	for _, pe := range p {
		sc[pe.Name] = pe.Type
	}
}

// BindParams records the types a parameter list binds.
func (sc Scope) BindParams(ps []Param) {
	for _, p := range ps {
		sc[p.Name] = p.Type
	}
}

// TypeOf returns the type of an operand: the scalar type of a constant, or
// the declared type of a variable.
func (sc Scope) TypeOf(se SubExp) (Type, bool) {
	switch se := se.(type) {
	case Constant:
		return Prim(se.Value.T), true
	case Var:
		t, ok := sc[se.Name]
		return t, ok
	}
	return Type{}, false
}
