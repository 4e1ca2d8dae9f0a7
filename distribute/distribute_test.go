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

package distribute

import (
	"strings"
	"testing"

	"github.com/ajroetker/flatwave/ir"
	"github.com/ajroetker/flatwave/kernel"
)

var i64 = ir.Prim(ir.Int64)

func arr(t ir.Type, n int64) ir.Type { return ir.ArrayOf(t, ir.IntConst(n)) }

// incLambda is \x -> x + 1.
func incLambda(src *ir.Source) ir.Lambda {
	x := src.Fresh("x")
	y := src.Fresh("y")
	return ir.Lambda{
		Params: []ir.Param{{Name: x, Type: i64}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: y, Type: i64}},
				Exp: &ir.BinExp{Op: ir.Add, X: ir.VarExp(x), Y: ir.IntConst(1)},
			}},
			Result: []ir.SubExp{ir.VarExp(y)},
		},
		RetTypes: []ir.Type{i64},
	}
}

// rowMapLambda is \xs -> map w inner [xs], the body of a nested map.
func rowMapLambda(src *ir.Source, w ir.SubExp, rowT ir.Type) ir.Lambda {
	xs := src.Fresh("xs")
	r := src.Fresh("r")
	return ir.Lambda{
		Params: []ir.Param{{Name: xs, Type: rowT}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: r, Type: rowT}},
				Exp: &ir.ParExp{Op: &ir.Map{W: w, Lam: incLambda(src), Arrs: []ir.VName{xs}}},
			}},
			Result: []ir.SubExp{ir.VarExp(r)},
		},
		RetTypes: []ir.Type{rowT},
	}
}

func launches(p *kernel.Program) []kernel.Kernel { return p.Kernels() }

func hasCombinator(stmts []ir.Stmt) bool {
	for _, s := range stmts {
		switch e := s.Exp.(type) {
		case *ir.ParExp:
			return true
		case *ir.IfExp:
			if hasCombinator(e.Then.Stmts) || hasCombinator(e.Else.Stmts) {
				return true
			}
		case *ir.LoopExp:
			if hasCombinator(e.Body.Stmts) {
				return true
			}
		}
	}
	return false
}

// seqStmts collects the plain host statements of a program, recursing into
// host loops.
func seqStmts(stmts []kernel.HostStmt) []ir.Stmt {
	var out []ir.Stmt
	for _, hs := range stmts {
		if hs.Seq != nil {
			out = append(out, *hs.Seq)
		}
		if hs.Loop != nil {
			out = append(out, seqStmts(hs.Loop.Body)...)
		}
	}
	return out
}

func TestNestedMapFlattens(t *testing.T) {
	src := ir.NewSource(0)
	xss := src.Fresh("xss")
	ys := src.Fresh("ys")
	matT := arr(arr(i64, 4), 8)
	scope := ir.Scope{xss: matT}

	body := ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: ys, Type: matT}},
			Exp: &ir.ParExp{Op: &ir.Map{
				W:    ir.IntConst(8),
				Lam:  rowMapLambda(src, ir.IntConst(4), arr(i64, 4)),
				Arrs: []ir.VName{xss},
			}},
		}},
		Result: []ir.SubExp{ir.VarExp(ys)},
	}

	e := New(src, scope)
	p, err := e.TransformBody(body)
	if err != nil {
		t.Fatalf("TransformBody: %v", err)
	}
	if e.Depth() != 0 {
		t.Fatalf("Depth = %d after the walk, want 0", e.Depth())
	}
	ks := launches(p)
	if len(ks) != 2 {
		t.Fatalf("got %d kernels, want an inner flattened kernel and an outer gather", len(ks))
	}
	inner, ok := ks[0].(*kernel.MapKernel)
	if !ok {
		t.Fatalf("first kernel is %s, want map", ks[0].Kind())
	}
	if len(inner.Dims) != 2 {
		t.Fatalf("inner kernel has %d dims, want 2", len(inner.Dims))
	}
	if got := inner.Dest[0].Type.String(); got != "[8][4]i64" {
		t.Errorf("inner dest type = %s, want [8][4]i64", got)
	}
	if hasCombinator(inner.Body.Stmts) {
		t.Errorf("inner kernel body still contains a combinator:\n%s", ir.SprintBody(inner.Body))
	}
	outer, ok := ks[1].(*kernel.MapKernel)
	if !ok {
		t.Fatalf("second kernel is %s, want map", ks[1].Kind())
	}
	if len(outer.Dims) != 1 {
		t.Errorf("outer kernel has %d dims, want 1", len(outer.Dims))
	}
	if outer.Dest[0].Name != ys {
		t.Errorf("outer kernel binds %s, want %s", outer.Dest[0].Name, ys)
	}
}

// TestCommitCarriesCerts attaches a bounds-check token to a nested map and
// checks that both committed kernels keep it: the token witnesses a host
// check and must survive flattening, but never surfaces as a device use.
func TestCommitCarriesCerts(t *testing.T) {
	src := ir.NewSource(0)
	c := src.Fresh("c")
	xss := src.Fresh("xss")
	ys := src.Fresh("ys")
	matT := arr(arr(i64, 4), 8)
	scope := ir.Scope{c: ir.Prim(ir.Cert), xss: matT}

	body := ir.Body{
		Stmts: []ir.Stmt{{
			Pat:   ir.Pattern{{Name: ys, Type: matT}},
			Certs: []ir.VName{c},
			Exp: &ir.ParExp{Op: &ir.Map{
				W:    ir.IntConst(8),
				Lam:  rowMapLambda(src, ir.IntConst(4), arr(i64, 4)),
				Arrs: []ir.VName{xss},
			}},
		}},
		Result: []ir.SubExp{ir.VarExp(ys)},
	}
	p, err := New(src, scope).TransformBody(body)
	if err != nil {
		t.Fatalf("TransformBody: %v", err)
	}
	ks := launches(p)
	if len(ks) != 2 {
		t.Fatalf("got %d kernels, want 2", len(ks))
	}
	for i, k := range ks {
		mk, ok := k.(*kernel.MapKernel)
		if !ok {
			t.Fatalf("kernel %d is %s, want map", i, k.Kind())
		}
		found := false
		for _, cert := range mk.Certs {
			if cert == c {
				found = true
			}
		}
		if !found {
			t.Errorf("kernel %d dropped certificate %s: certs = %v", i, c, mk.Certs)
		}
	}
	if err := kernel.Lower(p, scope.Clone()); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	for i, k := range ks {
		for _, u := range k.(*kernel.MapKernel).Uses {
			if u.UseName() == c {
				t.Errorf("kernel %d declares certificate %s as a use", i, c)
			}
		}
	}
}

func TestVariantInnerWidthSequentializes(t *testing.T) {
	mkBody := func(src *ir.Source, scope ir.Scope, innerW func(param ir.VName) ir.SubExp) ir.Body {
		ks := src.Fresh("ks")
		zs := src.Fresh("zs")
		out := src.Fresh("out")
		scope[ks] = arr(i64, 8)
		scope[zs] = arr(i64, 100)

		k := src.Fresh("k")
		s := src.Fresh("s")
		lam := ir.Lambda{
			Params: []ir.Param{{Name: k, Type: i64}},
			Body: ir.Body{
				Stmts: []ir.Stmt{{
					Pat: ir.Pattern{{Name: s, Type: i64}},
					Exp: &ir.ParExp{Op: &ir.Reduce{
						W:       innerW(k),
						Lam:     ir.BinOpLambda(src, ir.Add, ir.Int64),
						Neutral: []ir.SubExp{ir.IntConst(0)},
						Arrs:    []ir.VName{zs},
					}},
				}},
				Result: []ir.SubExp{ir.VarExp(s)},
			},
			RetTypes: []ir.Type{i64},
		}
		return ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: out, Type: arr(i64, 8)}},
				Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(8), Lam: lam, Arrs: []ir.VName{ks}}},
			}},
			Result: []ir.SubExp{ir.VarExp(out)},
		}
	}

	t.Run("variant", func(t *testing.T) {
		src := ir.NewSource(0)
		scope := ir.Scope{}
		log := &ir.Log{}
		// The inner width is the map's own element, so each row folds a
		// different number of values.
		body := mkBody(src, scope, func(param ir.VName) ir.SubExp { return ir.VarExp(param) })
		p, err := New(src, scope, WithLog(log)).TransformBody(body)
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		if n := len(launches(p)); n != 0 {
			t.Fatalf("got %d kernels, want a fully sequential program", n)
		}
		if hasCombinator(seqStmts(p.Stmts)) {
			t.Error("sequentialized program still contains a combinator")
		}
		if len(log.Entries()) == 0 {
			t.Error("no diagnostic was logged for the declined map")
		}
	})
	t.Run("invariant", func(t *testing.T) {
		src := ir.NewSource(0)
		scope := ir.Scope{}
		body := mkBody(src, scope, func(ir.VName) ir.SubExp { return ir.IntConst(100) })
		p, err := New(src, scope).TransformBody(body)
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		// A uniform inner reduce is still sequentialized inside the kernel
		// (segmented folds have no device lowering), but the map itself is
		// distributed.
		ks := launches(p)
		if len(ks) != 1 {
			t.Fatalf("got %d kernels, want 1", len(ks))
		}
		mk, ok := ks[0].(*kernel.MapKernel)
		if !ok {
			t.Fatalf("kernel is %s, want map", ks[0].Kind())
		}
		if hasCombinator(mk.Body.Stmts) {
			t.Error("kernel body still contains a combinator")
		}
	})
}

// TestSequentializedOutputIsStable feeds a declined map's loops back
// through distribution: the second pass must not decompose further.
func TestSequentializedOutputIsStable(t *testing.T) {
	src := ir.NewSource(0)
	scope := ir.Scope{}
	ks := src.Fresh("ks")
	zs := src.Fresh("zs")
	out := src.Fresh("out")
	scope[ks] = arr(i64, 8)
	scope[zs] = arr(i64, 100)

	k := src.Fresh("k")
	s := src.Fresh("s")
	lam := ir.Lambda{
		Params: []ir.Param{{Name: k, Type: i64}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: s, Type: i64}},
				Exp: &ir.ParExp{Op: &ir.Reduce{
					W:       ir.VarExp(k),
					Lam:     ir.BinOpLambda(src, ir.Add, ir.Int64),
					Neutral: []ir.SubExp{ir.IntConst(0)},
					Arrs:    []ir.VName{zs},
				}},
			}},
			Result: []ir.SubExp{ir.VarExp(s)},
		},
		RetTypes: []ir.Type{i64},
	}
	body := ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: out, Type: arr(i64, 8)}},
			Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(8), Lam: lam, Arrs: []ir.VName{ks}}},
		}},
		Result: []ir.SubExp{ir.VarExp(out)},
	}

	first, err := New(src, scope).TransformBody(body)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	again := ir.Body{Stmts: seqStmts(first.Stmts), Result: first.Result}
	second, err := New(src, scope).TransformBody(again)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if n := len(launches(second)); n != 0 {
		t.Errorf("second pass produced %d kernels, want 0", n)
	}
	if got, want := len(second.Stmts), len(first.Stmts); got != want {
		t.Errorf("second pass emitted %d statements, first emitted %d", got, want)
	}
}

func TestMapReduceFusion(t *testing.T) {
	build := func(src *ir.Source, scope ir.Scope, alsoReturnSquares bool) ir.Body {
		xs := src.Fresh("xs")
		ss := src.Fresh("ss")
		tot := src.Fresh("tot")
		scope[xs] = arr(i64, 8)

		x := src.Fresh("x")
		sq := src.Fresh("sq")
		square := ir.Lambda{
			Params: []ir.Param{{Name: x, Type: i64}},
			Body: ir.Body{
				Stmts: []ir.Stmt{{
					Pat: ir.Pattern{{Name: sq, Type: i64}},
					Exp: &ir.BinExp{Op: ir.Mul, X: ir.VarExp(x), Y: ir.VarExp(x)},
				}},
				Result: []ir.SubExp{ir.VarExp(sq)},
			},
			RetTypes: []ir.Type{i64},
		}
		b := ir.Body{
			Stmts: []ir.Stmt{
				{
					Pat: ir.Pattern{{Name: ss, Type: arr(i64, 8)}},
					Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(8), Lam: square, Arrs: []ir.VName{xs}}},
				},
				{
					Pat: ir.Pattern{{Name: tot, Type: i64}},
					Exp: &ir.ParExp{Op: &ir.Reduce{
						W:       ir.IntConst(8),
						Comm:    true,
						Lam:     ir.BinOpLambda(src, ir.Add, ir.Int64),
						Neutral: []ir.SubExp{ir.IntConst(0)},
						Arrs:    []ir.VName{ss},
					}},
				},
			},
			Result: []ir.SubExp{ir.VarExp(tot)},
		}
		if alsoReturnSquares {
			b.Result = append(b.Result, ir.VarExp(ss))
		}
		return b
	}

	t.Run("fused", func(t *testing.T) {
		src := ir.NewSource(0)
		scope := ir.Scope{}
		p, err := New(src, scope).TransformBody(build(src, scope, false))
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		ks := launches(p)
		if len(ks) != 1 {
			t.Fatalf("got %d kernels, want the fused reduction only", len(ks))
		}
		rk, ok := ks[0].(*kernel.ReduceKernel)
		if !ok {
			t.Fatalf("kernel is %s, want reduce", ks[0].Kind())
		}
		if !rk.Comm {
			t.Error("fusion dropped the commutativity flag")
		}
		if len(rk.MapLam.Body.Stmts) == 0 {
			t.Error("fused kernel has an empty map stage, want the squaring lambda")
		}
	})
	t.Run("intermediate_escapes", func(t *testing.T) {
		src := ir.NewSource(0)
		scope := ir.Scope{}
		p, err := New(src, scope).TransformBody(build(src, scope, true))
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		ks := launches(p)
		if len(ks) != 2 {
			t.Fatalf("got %d kernels, want unfused map and reduce", len(ks))
		}
		if _, ok := ks[0].(*kernel.MapKernel); !ok {
			t.Errorf("first kernel is %s, want map", ks[0].Kind())
		}
		if _, ok := ks[1].(*kernel.ReduceKernel); !ok {
			t.Errorf("second kernel is %s, want reduce", ks[1].Kind())
		}
	})
}

// headLambda is \row -> row[0], a map stage consuming whole rows.
func headLambda(src *ir.Source, rowT ir.Type) ir.Lambda {
	row := src.Fresh("row")
	h := src.Fresh("h")
	return ir.Lambda{
		Params: []ir.Param{{Name: row, Type: rowT}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: h, Type: i64}},
				Exp: &ir.IndexExp{Array: row, Indices: []ir.SubExp{ir.IntConst(0)}},
			}},
			Result: []ir.SubExp{ir.VarExp(h)},
		},
		RetTypes: []ir.Type{i64},
	}
}

// TestRowFoldsStayOffDevice covers folds whose element type is a row: the
// device feeds fold lambdas one scalar per array, so such folds must never
// reach a reduce kernel.
func TestRowFoldsStayOffDevice(t *testing.T) {
	rowT := arr(i64, 4)

	t.Run("fusion_declines_row_map", func(t *testing.T) {
		src := ir.NewSource(0)
		xss := src.Fresh("xss")
		ys := src.Fresh("ys")
		tot := src.Fresh("tot")
		scope := ir.Scope{xss: arr(rowT, 8)}

		stmts := []ir.Stmt{
			{
				Pat: ir.Pattern{{Name: ys, Type: arr(i64, 8)}},
				Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(8), Lam: headLambda(src, rowT), Arrs: []ir.VName{xss}}},
			},
			{
				Pat: ir.Pattern{{Name: tot, Type: i64}},
				Exp: &ir.ParExp{Op: &ir.Reduce{
					W:       ir.IntConst(8),
					Comm:    true,
					Lam:     ir.BinOpLambda(src, ir.Add, ir.Int64),
					Neutral: []ir.SubExp{ir.IntConst(0)},
					Arrs:    []ir.VName{ys},
				}},
			},
		}
		result := []ir.SubExp{ir.VarExp(tot)}
		if got := len(FuseStmts(stmts, result)); got != 2 {
			t.Fatalf("FuseStmts kept %d statements, want the pair unfused", got)
		}

		// Unfused, the row map is still worth a kernel of its own and the
		// scalar reduce follows it onto the device.
		p, err := New(src, scope).TransformBody(ir.Body{Stmts: stmts, Result: result})
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		ks := launches(p)
		if len(ks) != 2 {
			t.Fatalf("got %d kernels, want map and reduce", len(ks))
		}
		if _, ok := ks[0].(*kernel.MapKernel); !ok {
			t.Errorf("first kernel is %s, want map", ks[0].Kind())
		}
		if _, ok := ks[1].(*kernel.ReduceKernel); !ok {
			t.Errorf("second kernel is %s, want reduce", ks[1].Kind())
		}
	})

	t.Run("row_redomap_sequentializes", func(t *testing.T) {
		src := ir.NewSource(0)
		xss := src.Fresh("xss")
		tot := src.Fresh("tot")
		scope := ir.Scope{xss: arr(rowT, 8)}
		log := &ir.Log{}

		body := ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: tot, Type: i64}},
				Exp: &ir.ParExp{Op: &ir.Redomap{
					W:       ir.IntConst(8),
					Comm:    true,
					RedLam:  ir.BinOpLambda(src, ir.Add, ir.Int64),
					MapLam:  headLambda(src, rowT),
					Neutral: []ir.SubExp{ir.IntConst(0)},
					Arrs:    []ir.VName{xss},
				}},
			}},
			Result: []ir.SubExp{ir.VarExp(tot)},
		}
		p, err := New(src, scope, WithLog(log)).TransformBody(body)
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		if n := len(launches(p)); n != 0 {
			t.Fatalf("got %d kernels, want a fully sequential program", n)
		}
		if hasCombinator(seqStmts(p.Stmts)) {
			t.Error("sequentialized redomap still contains a combinator")
		}
		joined := strings.Join(log.Entries(), "\n")
		if !strings.Contains(joined, "sequentializing") {
			t.Errorf("log does not note the declined redomap:\n%s", joined)
		}
	})
}

func TestInterchange(t *testing.T) {
	mkLoop := func(src *ir.Source, w, bound ir.SubExp, ys0 ir.VName) ir.Stmt {
		ysIter := src.Fresh("ys_iter")
		zs := src.Fresh("zs")
		i := src.Fresh("i")
		final := src.Fresh("final")
		rowT := arr(i64, 4)
		return ir.Stmt{
			Pat: ir.Pattern{{Name: final, Type: rowT}},
			Exp: &ir.LoopExp{
				Merge: []ir.MergeParam{{
					Param: ir.Param{Name: ysIter, Type: rowT},
					Init:  ir.VarExp(ys0),
				}},
				Bound:    bound,
				IndexVar: i,
				Body: ir.Body{
					Stmts: []ir.Stmt{{
						Pat: ir.Pattern{{Name: zs, Type: rowT}},
						Exp: &ir.ParExp{Op: &ir.Map{W: w, Lam: incLambda(src), Arrs: []ir.VName{ysIter}}},
					}},
					Result: []ir.SubExp{ir.VarExp(zs)},
				},
			},
		}
	}

	t.Run("applies", func(t *testing.T) {
		src := ir.NewSource(0)
		ys0 := src.Fresh("ys0")
		ns, ok := Interchange(src, mkLoop(src, ir.IntConst(4), ir.IntConst(10), ys0))
		if !ok {
			t.Fatal("Interchange declined a loop-invariant map")
		}
		pe, ok := ns.Exp.(*ir.ParExp)
		if !ok {
			t.Fatalf("rewrite produced %T, want a combinator", ns.Exp)
		}
		mp, ok := pe.Op.(*ir.Map)
		if !ok {
			t.Fatalf("rewrite produced %s, want map", pe.Op.Kind())
		}
		if mp.Arrs[0] != ys0 {
			t.Errorf("map consumes %s, want the loop's initial array %s", mp.Arrs[0], ys0)
		}
		if _, ok := mp.Lam.Body.Stmts[0].Exp.(*ir.LoopExp); !ok {
			t.Error("map lambda does not carry the element-level loop")
		}
	})
	t.Run("refused_carried_array_read", func(t *testing.T) {
		// The lambda adds the head of the carried array to each element, so
		// every element depends on all of the previous iteration. The loop
		// must stay sequential, and the map inside it still becomes a kernel
		// relaunched per iteration.
		src := ir.NewSource(0)
		ys0 := src.Fresh("ys0")
		ysIter := src.Fresh("ys_iter")
		zs := src.Fresh("zs")
		i := src.Fresh("i")
		final := src.Fresh("final")
		rowT := arr(i64, 4)

		y := src.Fresh("y")
		head := src.Fresh("head")
		sum := src.Fresh("sum")
		lam := ir.Lambda{
			Params: []ir.Param{{Name: y, Type: i64}},
			Body: ir.Body{
				Stmts: []ir.Stmt{
					{
						Pat: ir.Pattern{{Name: head, Type: i64}},
						Exp: &ir.IndexExp{Array: ysIter, Indices: []ir.SubExp{ir.IntConst(0)}},
					},
					{
						Pat: ir.Pattern{{Name: sum, Type: i64}},
						Exp: &ir.BinExp{Op: ir.Add, X: ir.VarExp(y), Y: ir.VarExp(head)},
					},
				},
				Result: []ir.SubExp{ir.VarExp(sum)},
			},
			RetTypes: []ir.Type{i64},
		}
		s := ir.Stmt{
			Pat: ir.Pattern{{Name: final, Type: rowT}},
			Exp: &ir.LoopExp{
				Merge: []ir.MergeParam{{
					Param: ir.Param{Name: ysIter, Type: rowT},
					Init:  ir.VarExp(ys0),
				}},
				Bound:    ir.IntConst(3),
				IndexVar: i,
				Body: ir.Body{
					Stmts: []ir.Stmt{{
						Pat: ir.Pattern{{Name: zs, Type: rowT}},
						Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(4), Lam: lam, Arrs: []ir.VName{ysIter}}},
					}},
					Result: []ir.SubExp{ir.VarExp(zs)},
				},
			},
		}

		if _, ok := Interchange(src, s); ok {
			t.Fatal("Interchange accepted a lambda reading the carried array whole")
		}

		scope := ir.Scope{ys0: rowT}
		log := &ir.Log{}
		p, err := New(src, scope, WithLog(log)).TransformBody(ir.Body{
			Stmts:  []ir.Stmt{s},
			Result: []ir.SubExp{ir.VarExp(final)},
		})
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		if len(p.Stmts) != 1 || p.Stmts[0].Loop == nil {
			t.Fatalf("program is not a single host loop: %+v", p.Stmts)
		}
		if n := len(launches(p)); n != 1 {
			t.Fatalf("got %d kernels, want the per-iteration map", n)
		}
		if joined := strings.Join(log.Entries(), "\n"); strings.Contains(joined, "interchanged") {
			t.Errorf("log claims an interchange happened:\n%s", joined)
		}
	})
	t.Run("refused_variant_width", func(t *testing.T) {
		src := ir.NewSource(0)
		ys0 := src.Fresh("ys0")
		s := mkLoop(src, ir.IntConst(4), ir.IntConst(10), ys0)
		loop := s.Exp.(*ir.LoopExp)
		inner := loop.Body.Stmts[0].Exp.(*ir.ParExp).Op.(*ir.Map)
		inner.W = ir.VarExp(loop.IndexVar)
		if _, ok := Interchange(src, s); ok {
			t.Error("Interchange accepted a width depending on the loop index")
		}
	})
	t.Run("engine_distributes_interchanged_loop", func(t *testing.T) {
		src := ir.NewSource(0)
		ys0 := src.Fresh("ys0")
		scope := ir.Scope{ys0: arr(i64, 4)}
		s := mkLoop(src, ir.IntConst(4), ir.IntConst(10), ys0)
		log := &ir.Log{}
		p, err := New(src, scope, WithLog(log)).TransformBody(ir.Body{
			Stmts:  []ir.Stmt{s},
			Result: []ir.SubExp{ir.VarExp(s.Pat[0].Name)},
		})
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		ks := launches(p)
		if len(ks) != 1 {
			t.Fatalf("got %d kernels, want 1", len(ks))
		}
		mk, ok := ks[0].(*kernel.MapKernel)
		if !ok {
			t.Fatalf("kernel is %s, want map", ks[0].Kind())
		}
		foundLoop := false
		for _, bs := range mk.Body.Stmts {
			if _, ok := bs.Exp.(*ir.LoopExp); ok {
				foundLoop = true
			}
		}
		if !foundLoop {
			t.Error("kernel body lost the sequential element loop")
		}
		joined := strings.Join(log.Entries(), "\n")
		if !strings.Contains(joined, "interchanged") {
			t.Errorf("log does not record the interchange:\n%s", joined)
		}
	})
}

func TestHostLoopAroundKernel(t *testing.T) {
	// A two-merge loop is not interchangeable, but the map inside it still
	// becomes a kernel relaunched per iteration.
	src := ir.NewSource(0)
	xs0 := src.Fresh("xs0")
	scope := ir.Scope{xs0: arr(i64, 16)}

	xsIter := src.Fresh("xs_iter")
	cnt := src.Fresh("cnt")
	cnt2 := src.Fresh("cnt2")
	ys := src.Fresh("ys")
	i := src.Fresh("i")
	final := src.Fresh("final")
	finalCnt := src.Fresh("final_cnt")
	rowT := arr(i64, 16)

	loop := ir.Stmt{
		Pat: ir.Pattern{
			{Name: final, Type: rowT},
			{Name: finalCnt, Type: i64},
		},
		Exp: &ir.LoopExp{
			Merge: []ir.MergeParam{
				{Param: ir.Param{Name: xsIter, Type: rowT}, Init: ir.VarExp(xs0)},
				{Param: ir.Param{Name: cnt, Type: i64}, Init: ir.IntConst(0)},
			},
			Bound:    ir.IntConst(5),
			IndexVar: i,
			Body: ir.Body{
				Stmts: []ir.Stmt{
					{
						Pat: ir.Pattern{{Name: ys, Type: rowT}},
						Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(16), Lam: incLambda(src), Arrs: []ir.VName{xsIter}}},
					},
					{
						Pat: ir.Pattern{{Name: cnt2, Type: i64}},
						Exp: &ir.BinExp{Op: ir.Add, X: ir.VarExp(cnt), Y: ir.IntConst(1)},
					},
				},
				Result: []ir.SubExp{ir.VarExp(ys), ir.VarExp(cnt2)},
			},
		},
	}

	p, err := New(src, scope).TransformBody(ir.Body{
		Stmts:  []ir.Stmt{loop},
		Result: []ir.SubExp{ir.VarExp(final)},
	})
	if err != nil {
		t.Fatalf("TransformBody: %v", err)
	}
	if len(p.Stmts) != 1 || p.Stmts[0].Loop == nil {
		t.Fatalf("program is not a single host loop: %+v", p.Stmts)
	}
	hl := p.Stmts[0].Loop
	if len(launches(p)) != 1 {
		t.Fatalf("got %d kernels, want the per-iteration map", len(launches(p)))
	}
	foundLaunch := false
	for _, hs := range hl.Body {
		if hs.Launch != nil {
			foundLaunch = true
		}
	}
	if !foundLaunch {
		t.Error("host loop body carries no launch")
	}
}

func TestScanAndScatterDispatch(t *testing.T) {
	src := ir.NewSource(0)
	xs := src.Fresh("xs")
	ps := src.Fresh("ps")
	scope := ir.Scope{xs: arr(i64, 32)}

	scan := ir.Stmt{
		Pat: ir.Pattern{{Name: ps, Type: arr(i64, 32)}},
		Exp: &ir.ParExp{Op: &ir.Scan{
			W:       ir.IntConst(32),
			Comm:    true,
			Lam:     ir.BinOpLambda(src, ir.Add, ir.Int64),
			Neutral: []ir.SubExp{ir.IntConst(0)},
			Arrs:    []ir.VName{xs},
		}},
	}
	p, err := New(src, scope).TransformBody(ir.Body{
		Stmts:  []ir.Stmt{scan},
		Result: []ir.SubExp{ir.VarExp(ps)},
	})
	if err != nil {
		t.Fatalf("TransformBody: %v", err)
	}
	ks := launches(p)
	if len(ks) != 1 {
		t.Fatalf("got %d kernels, want 1", len(ks))
	}
	sk, ok := ks[0].(*kernel.ScanKernel)
	if !ok {
		t.Fatalf("kernel is %s, want scan", ks[0].Kind())
	}
	if sk.Layout != kernel.ThreadMajor {
		t.Errorf("scan layout = %s, want %s", sk.Layout, kernel.ThreadMajor)
	}
	if !sk.Comm {
		t.Error("scan kernel dropped the commutativity flag")
	}

	// A scatter has no device lowering and runs as host loops.
	src2 := ir.NewSource(0)
	dst := src2.Fresh("dst")
	ixs := src2.Fresh("ixs")
	out := src2.Fresh("out")
	scope2 := ir.Scope{dst: arr(i64, 8), ixs: arr(i64, 4)}
	v := src2.Fresh("v")
	wLam := ir.Lambda{
		Params: []ir.Param{{Name: v, Type: i64}},
		Body: ir.Body{
			Result: []ir.SubExp{ir.VarExp(v), ir.VarExp(v)},
		},
		RetTypes: []ir.Type{i64, i64},
	}
	log := &ir.Log{}
	p2, err := New(src2, scope2, WithLog(log)).TransformBody(ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: out, Type: arr(i64, 8)}},
			Exp: &ir.ParExp{Op: &ir.Write{
				W:         ir.IntConst(4),
				Lam:       wLam,
				Arrs:      []ir.VName{ixs},
				Dests:     []ir.VName{dst},
				DestTypes: []ir.Type{arr(i64, 8)},
			}},
		}},
		Result: []ir.SubExp{ir.VarExp(out)},
	})
	if err != nil {
		t.Fatalf("TransformBody: %v", err)
	}
	if n := len(launches(p2)); n != 0 {
		t.Fatalf("scatter produced %d kernels, want 0", n)
	}
	if hasCombinator(seqStmts(p2.Stmts)) {
		t.Error("sequentialized scatter still contains a combinator")
	}
	joined := strings.Join(log.Entries(), "\n")
	if !strings.Contains(joined, "no device lowering") {
		t.Errorf("log does not note the declined scatter:\n%s", joined)
	}
}

func TestRearrangeSpecializes(t *testing.T) {
	t.Run("constant_shape", func(t *testing.T) {
		src := ir.NewSource(0)
		xss := src.Fresh("xss")
		ys := src.Fresh("ys")
		scope := ir.Scope{xss: arr(arr(i64, 16), 8)}
		p, err := New(src, scope).TransformBody(ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: ys, Type: arr(arr(i64, 8), 16)}},
				Exp: &ir.RearrangeExp{Perm: []int{1, 0}, Array: xss},
			}},
			Result: []ir.SubExp{ir.VarExp(ys)},
		})
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		ks := launches(p)
		if len(ks) != 1 {
			t.Fatalf("got %d kernels, want 1", len(ks))
		}
		tk, ok := ks[0].(*kernel.TransposeKernel)
		if !ok {
			t.Fatalf("kernel is %s, want transpose", ks[0].Kind())
		}
		if tk.Blocks != 1 || tk.Rows*tk.Cols != 128 {
			t.Errorf("transpose geometry blocks=%d rows=%d cols=%d, want one 8x16 tile",
				tk.Blocks, tk.Rows, tk.Cols)
		}
	})
	t.Run("symbolic_shape", func(t *testing.T) {
		src := ir.NewSource(0)
		n := src.Fresh("n")
		xss := src.Fresh("xss")
		ys := src.Fresh("ys")
		matT := ir.ArrayOf(ir.ArrayOf(i64, ir.IntConst(16)), ir.VarExp(n))
		scope := ir.Scope{n: i64, xss: matT}
		p, err := New(src, scope).TransformBody(ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: ys, Type: ir.ArrayOf(ir.ArrayOf(i64, ir.VarExp(n)), ir.IntConst(16))}},
				Exp: &ir.RearrangeExp{Perm: []int{1, 0}, Array: xss},
			}},
			Result: []ir.SubExp{ir.VarExp(ys)},
		})
		if err != nil {
			t.Fatalf("TransformBody: %v", err)
		}
		if n := len(launches(p)); n != 0 {
			t.Fatalf("symbolic rearrange produced %d kernels, want host copy", n)
		}
	})
}

func TestVirtualizedWideMap(t *testing.T) {
	src := ir.NewSource(0)
	xs := src.Fresh("xs")
	ys := src.Fresh("ys")
	const wide = int64(1 << 12)
	scope := ir.Scope{xs: arr(i64, wide)}
	p, err := New(src, scope, WithMaxThreads(1<<8)).TransformBody(ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: ys, Type: arr(i64, wide)}},
			Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(wide), Lam: incLambda(src), Arrs: []ir.VName{xs}}},
		}},
		Result: []ir.SubExp{ir.VarExp(ys)},
	})
	if err != nil {
		t.Fatalf("TransformBody: %v", err)
	}
	ks := launches(p)
	if len(ks) != 1 {
		t.Fatalf("got %d kernels, want 1", len(ks))
	}
	ck, ok := ks[0].(*kernel.ChunkedMapKernel)
	if !ok {
		t.Fatalf("kernel is %s, want a chunked map", ks[0].Kind())
	}
	if ck.MaxThreads != 1<<8 {
		t.Errorf("MaxThreads = %d, want %d", ck.MaxThreads, 1<<8)
	}
}
