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

import "github.com/ajroetker/flatwave/ir"

// Interchange tries to swap a bounded loop with the map it iterates, so
// the map becomes outermost and eligible for flattening:
//
//	loop (ys = ys0) for i < n { map f ys }
//	==>
//	map (\y0 -> loop (y = y0) for i < n { f y }) ys0
//
// Legal only when the loop's trip count and the map's width are mutually
// invariant and each element evolves independently of the rest of the
// carried array. Returns the rewritten statement and true on success.
func Interchange(src *ir.Source, s ir.Stmt) (ir.Stmt, bool) {
	loop, ok := s.Exp.(*ir.LoopExp)
	if !ok || len(loop.Merge) != 1 || len(loop.Body.Stmts) != 1 {
		return ir.Stmt{}, false
	}
	merge := loop.Merge[0]

	inner := loop.Body.Stmts[0]
	pe, ok := inner.Exp.(*ir.ParExp)
	if !ok {
		return ir.Stmt{}, false
	}
	mp, ok := pe.Op.(*ir.Map)
	if !ok || len(mp.Arrs) != 1 || len(mp.Lam.Params) != 1 || len(inner.Pat) != 1 {
		return ir.Stmt{}, false
	}

	// The map must consume exactly the loop-carried array and the loop must
	// yield exactly the map's result. A lambda that also reads the carried
	// array whole sees every element of the previous iteration; after the
	// swap only its own element survives, so such a loop stays put.
	if mp.Arrs[0] != merge.Param.Name {
		return ir.Stmt{}, false
	}
	if ir.FreeInLambda(mp.Lam).Has(merge.Param.Name) {
		return ir.Stmt{}, false
	}
	if len(loop.Body.Result) != 1 || !ir.SameSubExp(loop.Body.Result[0], ir.VarExp(inner.Pat[0].Name)) {
		return ir.Stmt{}, false
	}

	// Mutual invariance: the width may not depend on the loop, the trip
	// count may not depend on the map.
	loopBound := ir.NewNameSet(loop.IndexVar, merge.Param.Name)
	if ir.FreeInSubExp(mp.W).Intersects(loopBound) {
		return ir.Stmt{}, false
	}
	mapBound := ir.NewNameSet(mp.Lam.Params[0].Name)
	mapBound.AddSet(ir.BoundInBody(mp.Lam.Body))
	if ir.FreeInSubExp(loop.Bound).Intersects(mapBound) {
		return ir.Stmt{}, false
	}

	// Build the element-level loop: carry one element of the array through
	// the original iteration count, applying the old map lambda each step.
	lam := ir.RenameLambda(src, mp.Lam)
	elemT := lam.RetTypes[0]
	y0 := src.Fresh("y0")
	y := src.Fresh("y")
	out := src.Fresh("out")

	bodyStmts := []ir.Stmt{{
		Pat: ir.Pattern{{Name: lam.Params[0].Name, Type: lam.Params[0].Type}},
		Exp: &ir.SubExpOp{SE: ir.VarExp(y)},
	}}
	bodyStmts = append(bodyStmts, lam.Body.Stmts...)

	elemLoop := &ir.LoopExp{
		Merge: []ir.MergeParam{{
			Param: ir.Param{Name: y, Type: elemT},
			Init:  ir.VarExp(y0),
		}},
		Bound:    loop.Bound,
		IndexVar: loop.IndexVar,
		Body:     ir.Body{Stmts: bodyStmts, Result: lam.Body.Result},
	}

	newLam := ir.Lambda{
		Params: []ir.Param{{Name: y0, Type: elemT}},
		Body: ir.Body{
			Stmts: []ir.Stmt{{
				Pat: ir.Pattern{{Name: out, Type: elemT}},
				Exp: elemLoop,
			}},
			Result: []ir.SubExp{ir.VarExp(out)},
		},
		RetTypes: []ir.Type{elemT},
	}

	// The initial loop value supplies the map's input. It must be an array
	// variable for the rewrite to name it.
	init, ok := merge.Init.(ir.Var)
	if !ok {
		return ir.Stmt{}, false
	}
	return ir.Stmt{
		Pat:   s.Pat,
		Certs: s.Certs,
		Exp:   &ir.ParExp{Op: &ir.Map{W: mp.W, Lam: newLam, Arrs: []ir.VName{init.Name}}},
	}, true
}
