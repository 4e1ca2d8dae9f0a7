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

// FuseStmts pushes map producers into consuming reductions: a map whose
// outputs feed exactly one reduce of the same width becomes the map stage
// of a redomap, and the intermediate arrays are never materialized. Maps
// with inner parallelism are left alone so distribution still sees them.
func FuseStmts(stmts []ir.Stmt, result []ir.SubExp) []ir.Stmt {
	out := append([]ir.Stmt(nil), stmts...)
	for i := 0; i < len(out); i++ {
		pm, ok := out[i].Exp.(*ir.ParExp)
		if !ok {
			continue
		}
		mp, ok := pm.Op.(*ir.Map)
		if !ok || containsParOp(mp.Lam.Body) {
			continue
		}
		// The fused form runs element-at-a-time on the device; a map that
		// consumes whole rows is worth more as its own kernel.
		if _, ok := scalarElemTypes(mp.Lam, 0); !ok {
			continue
		}
		j, red := findConsumer(out, i, out[i].Pat)
		if red == nil {
			continue
		}
		if !ir.SameSubExp(mp.W, red.W) {
			continue
		}
		if usedOutsideConsumer(out, result, i, j, out[i].Pat) {
			continue
		}
		out[j] = ir.Stmt{
			Pat:   out[j].Pat,
			Certs: append(append([]ir.VName(nil), out[i].Certs...), out[j].Certs...),
			Exp: &ir.ParExp{Op: &ir.Redomap{
				W:       red.W,
				Comm:    red.Comm,
				RedLam:  red.Lam,
				MapLam:  mp.Lam,
				Neutral: red.Neutral,
				Arrs:    mp.Arrs,
			}},
		}
		out = append(out[:i], out[i+1:]...)
		i--
	}
	return out
}

// findConsumer locates a reduce statement after i whose inputs are exactly
// the pattern names of statement i, in order.
func findConsumer(stmts []ir.Stmt, i int, pat ir.Pattern) (int, *ir.Reduce) {
	names := pat.Names()
	for j := i + 1; j < len(stmts); j++ {
		pe, ok := stmts[j].Exp.(*ir.ParExp)
		if !ok {
			continue
		}
		red, ok := pe.Op.(*ir.Reduce)
		if !ok || len(red.Arrs) != len(names) {
			continue
		}
		match := true
		for k := range names {
			if red.Arrs[k] != names[k] {
				match = false
				break
			}
		}
		if match {
			return j, red
		}
	}
	return -1, nil
}

// usedOutsideConsumer reports whether any output of statement i is
// referenced by a statement other than j or by the body result.
func usedOutsideConsumer(stmts []ir.Stmt, result []ir.SubExp, i, j int, pat ir.Pattern) bool {
	produced := ir.NewNameSet(pat.Names()...)
	for k := range stmts {
		if k == i || k == j {
			continue
		}
		if ir.FreeInStmt(stmts[k]).Intersects(produced) {
			return true
		}
	}
	for _, se := range result {
		if ir.FreeInSubExp(se).Intersects(produced) {
			return true
		}
	}
	return false
}

func containsParOp(b ir.Body) bool {
	for _, s := range b.Stmts {
		switch e := s.Exp.(type) {
		case *ir.ParExp:
			return true
		case *ir.IfExp:
			if containsParOp(e.Then) || containsParOp(e.Else) {
				return true
			}
		case *ir.LoopExp:
			if containsParOp(e.Body) {
				return true
			}
		}
	}
	return false
}
