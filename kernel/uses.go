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

package kernel

import (
	"sort"

	"github.com/ajroetker/flatwave/ir"
)

// Use is one external value a device body touches: a scalar passed by
// value or a memory buffer passed by pointer and byte size.
type Use interface {
	isUse()
	UseName() ir.VName
}

// ScalarUse is a by-value scalar argument.
type ScalarUse struct {
	Name ir.VName
}

// MemUse is a global buffer argument. Bytes is -1 when the buffer's shape
// is not known at compile time.
type MemUse struct {
	Name  ir.VName
	Bytes int64
}

func (ScalarUse) isUse() {}
func (MemUse) isUse()    {}

func (u ScalarUse) UseName() ir.VName { return u.Name }
func (u MemUse) UseName() ir.VName    { return u.Name }

// ByteSize returns the byte size of a value of type t, or -1 when any
// extent is symbolic.
func ByteSize(t ir.Type) int64 {
	n := t.Elem.Size()
	for _, d := range t.Shape {
		c, ok := d.(ir.Constant)
		if !ok || c.Value.T != ir.Int64 {
			return -1
		}
		n *= c.Value.Int
	}
	return n
}

// ComputeUses turns a device body's free names into its declared uses:
// free names minus names bound inside the kernel and minus certificate
// tokens, each classified by its scoped type. Destinations are always
// included, written-only or not. The result is sorted by name so lowering
// is deterministic.
func ComputeUses(free, bound ir.NameSet, certs []ir.VName, dests ir.Pattern, scope ir.Scope) ([]Use, error) {
	ext := ir.NameSet{}
	ext.AddSet(free)
	for n := range bound {
		ext.Delete(n)
	}
	ext.Delete(certs...)

	destType := map[ir.VName]ir.Type{}
	for _, pe := range dests {
		if pe.Type.Rank() == 0 {
			return nil, Errorf("kernel lowering", "destination %s is not an array", pe.Name)
		}
		ext.Add(pe.Name)
		destType[pe.Name] = pe.Type
	}

	uses := make([]Use, 0, len(ext))
	for _, n := range ext.Sorted() {
		t, ok := destType[n]
		if !ok {
			t, ok = scope.TypeOf(ir.VarExp(n))
			if !ok {
				return nil, Errorf("kernel lowering", "use %s has no known type", n)
			}
		}
		if t.Rank() == 0 {
			uses = append(uses, ScalarUse{Name: n})
		} else {
			uses = append(uses, MemUse{Name: n, Bytes: ByteSize(t)})
		}
	}
	sort.Slice(uses, func(i, j int) bool {
		return uses[i].UseName().Less(uses[j].UseName())
	})
	return uses, nil
}
