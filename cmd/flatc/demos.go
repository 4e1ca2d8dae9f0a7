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

package main

import (
	"github.com/ajroetker/flatwave/interp"
	"github.com/ajroetker/flatwave/ir"
)

// binding pairs a global name with the array it holds before the program
// starts.
type binding struct {
	name ir.VName
	arr  *interp.Array
}

type demoProgram struct {
	name  string
	about string
	build func(src *ir.Source) (ir.Scope, ir.Body, []binding)
}

var demos = []demoProgram{
	{"nested-map", "flatten a map over rows of a matrix into one 2D kernel", buildNestedMap},
	{"dot", "fuse an elementwise product into the reduction that consumes it", buildDot},
	{"prefix-sum", "two-phase inclusive scan across groups", buildPrefixSum},
	{"transpose", "specialize a dimension permutation to a transpose kernel", buildTranspose},
	{"power", "interchange a bounded loop with the map it iterates", buildPower},
}

var i64 = ir.Prim(ir.Int64)

func arrT(t ir.Type, n int64) ir.Type { return ir.ArrayOf(t, ir.IntConst(n)) }

func intArray(dims []int64, f func(i int64) int64) *interp.Array {
	a := interp.NewArray(ir.Int64, dims)
	for i := range a.Data {
		a.Data[i] = ir.IntValue(f(int64(i)))
	}
	return a
}

// buildNestedMap is ys = map (\row -> map (+1) row) xss over an 8x4 matrix.
func buildNestedMap(src *ir.Source) (ir.Scope, ir.Body, []binding) {
	xss := src.Fresh("xss")
	ys := src.Fresh("ys")
	rowT := arrT(i64, 4)
	matT := arrT(rowT, 8)

	xs := src.Fresh("row")
	r := src.Fresh("r")
	x := src.Fresh("x")
	y := src.Fresh("y")
	inc := ir.Lambda{
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
	rowLam := ir.Lambda{
		Params: []ir.Param{{Name: xs, Type: rowT}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: r, Type: rowT}},
				Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(4), Lam: inc, Arrs: []ir.VName{xs}}},
			}},
			Result: []ir.SubExp{ir.VarExp(r)},
		},
		RetTypes: []ir.Type{rowT},
	}

	body := ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: ys, Type: matT}},
			Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(8), Lam: rowLam, Arrs: []ir.VName{xss}}},
		}},
		Result: []ir.SubExp{ir.VarExp(ys)},
	}
	scope := ir.Scope{xss: matT}
	input := intArray([]int64{8, 4}, func(i int64) int64 { return i })
	return scope, body, []binding{{xss, input}}
}

// buildDot is tot = reduce (+) 0 (map (*) xs ys) over 64-element vectors.
func buildDot(src *ir.Source) (ir.Scope, ir.Body, []binding) {
	const n = 64
	xs := src.Fresh("xs")
	ys := src.Fresh("ys")
	ps := src.Fresh("ps")
	tot := src.Fresh("tot")
	vecT := arrT(i64, n)

	a := src.Fresh("a")
	b := src.Fresh("b")
	p := src.Fresh("p")
	mul := ir.Lambda{
		Params: []ir.Param{{Name: a, Type: i64}, {Name: b, Type: i64}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: p, Type: i64}},
				Exp: &ir.BinExp{Op: ir.Mul, X: ir.VarExp(a), Y: ir.VarExp(b)},
			}},
			Result: []ir.SubExp{ir.VarExp(p)},
		},
		RetTypes: []ir.Type{i64},
	}

	body := ir.Body{
		Stmts: []ir.Stmt{
			{
				Pat: ir.Pattern{{Name: ps, Type: vecT}},
				Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(n), Lam: mul, Arrs: []ir.VName{xs, ys}}},
			},
			{
				Pat: ir.Pattern{{Name: tot, Type: i64}},
				Exp: &ir.ParExp{Op: &ir.Reduce{
					W:       ir.IntConst(n),
					Comm:    true,
					Lam:     ir.BinOpLambda(src, ir.Add, ir.Int64),
					Neutral: []ir.SubExp{ir.IntConst(0)},
					Arrs:    []ir.VName{ps},
				}},
			},
		},
		Result: []ir.SubExp{ir.VarExp(tot)},
	}
	scope := ir.Scope{xs: vecT, ys: vecT}
	return scope, body, []binding{
		{xs, intArray([]int64{n}, func(i int64) int64 { return i })},
		{ys, intArray([]int64{n}, func(i int64) int64 { return 2 })},
	}
}

// buildPrefixSum is ps = scan (+) 0 xs over 1..100.
func buildPrefixSum(src *ir.Source) (ir.Scope, ir.Body, []binding) {
	const n = 100
	xs := src.Fresh("xs")
	ps := src.Fresh("ps")
	vecT := arrT(i64, n)

	body := ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: ps, Type: vecT}},
			Exp: &ir.ParExp{Op: &ir.Scan{
				W:       ir.IntConst(n),
				Lam:     ir.BinOpLambda(src, ir.Add, ir.Int64),
				Neutral: []ir.SubExp{ir.IntConst(0)},
				Arrs:    []ir.VName{xs},
			}},
		}},
		Result: []ir.SubExp{ir.VarExp(ps)},
	}
	scope := ir.Scope{xs: vecT}
	return scope, body, []binding{
		{xs, intArray([]int64{n}, func(i int64) int64 { return i + 1 })},
	}
}

// buildTranspose is ys = rearrange [1,0] xss over an 8x16 matrix.
func buildTranspose(src *ir.Source) (ir.Scope, ir.Body, []binding) {
	xss := src.Fresh("xss")
	ys := src.Fresh("ys")
	srcT := arrT(arrT(i64, 16), 8)
	dstT := arrT(arrT(i64, 8), 16)

	body := ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: ys, Type: dstT}},
			Exp: &ir.RearrangeExp{Perm: []int{1, 0}, Array: xss},
		}},
		Result: []ir.SubExp{ir.VarExp(ys)},
	}
	scope := ir.Scope{xss: srcT}
	return scope, body, []binding{
		{xss, intArray([]int64{8, 16}, func(i int64) int64 { return i })},
	}
}

// buildPower doubles a vector five times: the loop is interchanged with
// the map inside it, so each element runs its own sequential loop.
func buildPower(src *ir.Source) (ir.Scope, ir.Body, []binding) {
	const n = 16
	xs0 := src.Fresh("xs0")
	vecT := arrT(i64, n)

	ysIter := src.Fresh("ys_iter")
	zs := src.Fresh("zs")
	i := src.Fresh("i")
	final := src.Fresh("final")

	x := src.Fresh("x")
	y := src.Fresh("y")
	double := ir.Lambda{
		Params: []ir.Param{{Name: x, Type: i64}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: y, Type: i64}},
				Exp: &ir.BinExp{Op: ir.Mul, X: ir.VarExp(x), Y: ir.IntConst(2)},
			}},
			Result: []ir.SubExp{ir.VarExp(y)},
		},
		RetTypes: []ir.Type{i64},
	}

	body := ir.Body{
		Stmts: []ir.Stmt{{
			Pat: ir.Pattern{{Name: final, Type: vecT}},
			Exp: &ir.LoopExp{
				Merge: []ir.MergeParam{{
					Param: ir.Param{Name: ysIter, Type: vecT},
					Init:  ir.VarExp(xs0),
				}},
				Bound:    ir.IntConst(5),
				IndexVar: i,
				Body: ir.Body{
					Stmts: []ir.Stmt{{
						Pat: ir.Pattern{{Name: zs, Type: vecT}},
						Exp: &ir.ParExp{Op: &ir.Map{W: ir.IntConst(n), Lam: double, Arrs: []ir.VName{ysIter}}},
					}},
					Result: []ir.SubExp{ir.VarExp(zs)},
				},
			},
		}},
		Result: []ir.SubExp{ir.VarExp(final)},
	}
	scope := ir.Scope{xs0: vecT}
	return scope, body, []binding{
		{xs0, intArray([]int64{n}, func(i int64) int64 { return i + 1 })},
	}
}
