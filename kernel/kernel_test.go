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
	"errors"
	"testing"

	"github.com/ajroetker/flatwave/ir"
)

func TestComputeLaunch(t *testing.T) {
	tests := []struct {
		name                        string
		groupSize, maxGroups, elems int64
		wantGroups, wantEPT         int64
	}{
		{"exact", 64, 0, 128, 2, 1},
		{"round_up", 64, 0, 130, 3, 1},
		{"single_partial_group", 64, 0, 5, 1, 1},
		{"capped_grid", 64, 2, 1000, 2, 8},
		{"capped_exact", 64, 4, 512, 4, 2},
		{"zero_elements", 64, 0, 0, 1, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := ComputeLaunch(tc.groupSize, tc.maxGroups, tc.elems)
			if l.NumGroups != tc.wantGroups || l.ElemsPerThread != tc.wantEPT {
				t.Errorf("got %d groups x %d elems/thread, want %d x %d",
					l.NumGroups, l.ElemsPerThread, tc.wantGroups, tc.wantEPT)
			}
			if tc.elems > 0 && l.Threads()*l.ElemsPerThread < tc.elems {
				t.Errorf("grid covers %d elements, need %d",
					l.Threads()*l.ElemsPerThread, tc.elems)
			}
		})
	}
}

// TestComputeUses checks the use set is exactly the body's free names and
// buffers minus kernel-bound names and certificates, with destinations
// always present.
func TestComputeUses(t *testing.T) {
	src := ir.NewSource(0)
	gi := src.Fresh("gi")
	xs := src.Fresh("xs")
	alpha := src.Fresh("alpha")
	cert := src.Fresh("c")
	kcert := src.Fresh("kc")
	x := src.Fresh("x")
	y := src.Fresh("y")
	out := src.Fresh("out")

	body := ir.Body{
		Stmts: []ir.Stmt{
			{
				Pat: ir.Pattern{{Name: x, Type: ir.Prim(ir.Float64)}},
				Exp: &ir.IndexExp{Array: xs, Indices: []ir.SubExp{ir.VarExp(gi)}},
			},
			{
				Pat:   ir.Pattern{{Name: y, Type: ir.Prim(ir.Float64)}},
				Certs: []ir.VName{cert},
				Exp:   &ir.BinExp{Op: ir.Mul, X: ir.VarExp(x), Y: ir.VarExp(alpha)},
			},
		},
		Result: []ir.SubExp{ir.VarExp(y)},
	}

	scope := ir.Scope{
		xs:    ir.ArrayOf(ir.Prim(ir.Float64), ir.IntConst(16)),
		alpha: ir.Prim(ir.Float64),
		cert:  ir.Prim(ir.Cert),
		kcert: ir.Prim(ir.Cert),
	}
	dims := []Dim{{Index: gi, Width: ir.IntConst(16)}}
	dest := ir.Pattern{{Name: out, Type: ir.ArrayOf(ir.Prim(ir.Float64), ir.IntConst(16))}}

	// kcert stands in for a certificate carried on the kernel itself rather
	// than on a body statement.
	uses, err := mapUses(dims, body, dest, []ir.VName{kcert}, scope)
	if err != nil {
		t.Fatalf("mapUses: %v", err)
	}

	want := map[ir.VName]Use{
		alpha: ScalarUse{Name: alpha},
		xs:    MemUse{Name: xs, Bytes: 16 * 8},
		out:   MemUse{Name: out, Bytes: 16 * 8},
	}
	if len(uses) != len(want) {
		t.Fatalf("got %d uses %v, want %d", len(uses), uses, len(want))
	}
	for _, u := range uses {
		w, ok := want[u.UseName()]
		if !ok {
			t.Errorf("unexpected use %v", u)
			continue
		}
		if u != w {
			t.Errorf("use for %s = %v, want %v", u.UseName(), u, w)
		}
		// Bound-in-kernel names must never appear.
		if u.UseName() == gi || u.UseName() == x || u.UseName() == y ||
			u.UseName() == cert || u.UseName() == kcert {
			t.Errorf("kernel-bound name %s listed as a use", u.UseName())
		}
	}
}

func TestComputeUsesRejectsScalarDest(t *testing.T) {
	src := ir.NewSource(0)
	out := src.Fresh("out")
	dest := ir.Pattern{{Name: out, Type: ir.Prim(ir.Int64)}}
	_, err := ComputeUses(ir.NameSet{}, ir.NameSet{}, nil, dest, ir.Scope{})
	var kerr *Error
	if !errors.As(err, &kerr) {
		t.Fatalf("got %v, want a pass-tagged fatal error", err)
	}
}

func TestVirtualize(t *testing.T) {
	src := ir.NewSource(0)
	mk := &MapKernel{Dims: []Dim{{Index: src.Fresh("gi"), Width: ir.IntConst(1 << 20)}}}

	if _, ok := Virtualize(mk, 1<<16).(*ChunkedMapKernel); !ok {
		t.Error("large constant width was not chunked")
	}
	if _, ok := Virtualize(mk, 1<<24).(*MapKernel); !ok {
		t.Error("small width was chunked")
	}

	sym := &MapKernel{Dims: []Dim{{Index: src.Fresh("gi"), Width: ir.VarExp(src.Fresh("n"))}}}
	if _, ok := Virtualize(sym, 1<<16).(*MapKernel); !ok {
		t.Error("symbolic width was chunked at compile time")
	}
}

func TestSpecializeCopy(t *testing.T) {
	src := ir.NewSource(0)
	a := src.Fresh("a")
	b := src.Fresh("b")

	flat := func(n ir.VName, dims ...int64) View {
		perm := make([]int, len(dims))
		for i := range perm {
			perm[i] = i
		}
		return View{Name: n, Elem: ir.Int64, Dims: dims, Perm: perm}
	}

	t.Run("transpose", func(t *testing.T) {
		srcView := View{Name: a, Elem: ir.Int64, Dims: []int64{8, 16}, Perm: []int{1, 0}}
		k, err := SpecializeCopy(flat(b, 8, 16), srcView)
		if err != nil {
			t.Fatalf("SpecializeCopy: %v", err)
		}
		tk, ok := k.(*TransposeKernel)
		if !ok {
			t.Fatalf("got %s kernel, want transpose", k.Kind())
		}
		if tk.Blocks != 1 || tk.Rows != 16 || tk.Cols != 8 {
			t.Errorf("got %d blocks of %dx%d", tk.Blocks, tk.Rows, tk.Cols)
		}
	})

	t.Run("batched_transpose", func(t *testing.T) {
		srcView := View{Name: a, Elem: ir.Int64, Dims: []int64{5, 8, 16}, Perm: []int{0, 2, 1}}
		k, err := SpecializeCopy(flat(b, 5, 8, 16), srcView)
		if err != nil {
			t.Fatalf("SpecializeCopy: %v", err)
		}
		tk, ok := k.(*TransposeKernel)
		if !ok {
			t.Fatalf("got %s kernel, want transpose", k.Kind())
		}
		if tk.Blocks != 5 {
			t.Errorf("got %d blocks, want 5", tk.Blocks)
		}
	})

	t.Run("linear", func(t *testing.T) {
		k, err := SpecializeCopy(flat(b, 128), flat(a, 128))
		if err != nil {
			t.Fatalf("SpecializeCopy: %v", err)
		}
		bk, ok := k.(*ByteCopyKernel)
		if !ok {
			t.Fatalf("got %s kernel, want byte-copy", k.Kind())
		}
		if bk.Bytes != 128*8 {
			t.Errorf("got %d bytes, want %d", bk.Bytes, 128*8)
		}
	})

	t.Run("generic_fallback", func(t *testing.T) {
		srcView := View{Name: a, Elem: ir.Int64, Dims: []int64{2, 3, 4}, Perm: []int{2, 0, 1}}
		k, err := SpecializeCopy(flat(b, 2, 3, 4), srcView)
		if err != nil {
			t.Fatalf("SpecializeCopy: %v", err)
		}
		if _, ok := k.(*GenericCopyKernel); !ok {
			t.Fatalf("got %s kernel, want generic-copy", k.Kind())
		}
	})

	t.Run("size_mismatch_fatal", func(t *testing.T) {
		_, err := SpecializeCopy(flat(b, 4), flat(a, 8))
		var kerr *Error
		if !errors.As(err, &kerr) {
			t.Fatalf("got %v, want a fatal error", err)
		}
	})
}

func TestCheckDeviceBodyRejectsDynamicAlloc(t *testing.T) {
	src := ir.NewSource(0)
	gi := src.Fresh("gi")
	buf := src.Fresh("buf")

	dims := []Dim{{Index: gi, Width: ir.IntConst(64)}}

	t.Run("index_dependent_scratch", func(t *testing.T) {
		body := ir.Body{Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: buf, Type: ir.ArrayOf(ir.Prim(ir.Int64), ir.VarExp(gi))}},
			Exp: &ir.ScratchExp{Elem: ir.Int64, Shape: []ir.SubExp{ir.VarExp(gi)}},
		}}}
		var kerr *Error
		if err := CheckDeviceBody(dims, body); !errors.As(err, &kerr) {
			t.Fatalf("got %v, want a fatal error", err)
		}
	})

	t.Run("fixed_scratch_allowed", func(t *testing.T) {
		body := ir.Body{Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: buf, Type: ir.ArrayOf(ir.Prim(ir.Int64), ir.IntConst(32))}},
			Exp: &ir.ScratchExp{Elem: ir.Int64, Shape: []ir.SubExp{ir.IntConst(32)}},
		}}}
		if err := CheckDeviceBody(dims, body); err != nil {
			t.Fatalf("fixed-extent scratch rejected: %v", err)
		}
	})

	t.Run("unlowered_combinator_fatal", func(t *testing.T) {
		body := ir.Body{Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: buf, Type: ir.ArrayOf(ir.Prim(ir.Int64), ir.IntConst(4))}},
			Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(4)}},
		}}}
		var kerr *Error
		if err := CheckDeviceBody(dims, body); !errors.As(err, &kerr) {
			t.Fatalf("got %v, want a fatal error", err)
		}
	})
}
