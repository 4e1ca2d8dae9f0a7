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

// Unbalanced reports whether some combinator inside lam has a width that
// varies per iteration of the enclosing map: the width mentions one of the
// lambda's parameters or a name bound anywhere inside its body. Such a map
// cannot flatten to a rectangular kernel and must run sequentially.
func Unbalanced(lam ir.Lambda) bool {
	bound := ir.NameSet{}
	for _, p := range lam.Params {
		bound.Add(p.Name)
	}
	bound.AddSet(ir.BoundInBody(lam.Body))
	return widthVariant(lam.Body, bound)
}

func widthVariant(b ir.Body, bound ir.NameSet) bool {
	for _, s := range b.Stmts {
		if expWidthVariant(s.Exp, bound) {
			return true
		}
	}
	return false
}

func expWidthVariant(e ir.Exp, bound ir.NameSet) bool {
	switch e := e.(type) {
	case *ir.ParExp:
		if ir.FreeInSubExp(e.Op.Width()).Intersects(bound) {
			return true
		}
		for _, lam := range opLambdas(e.Op) {
			if widthVariant(lam.Body, bound) {
				return true
			}
		}
	case *ir.IfExp:
		return widthVariant(e.Then, bound) || widthVariant(e.Else, bound)
	case *ir.LoopExp:
		return widthVariant(e.Body, bound)
	}
	return false
}

func opLambdas(op ir.ParOp) []ir.Lambda {
	switch op := op.(type) {
	case *ir.Map:
		return []ir.Lambda{op.Lam}
	case *ir.Reduce:
		return []ir.Lambda{op.Lam}
	case *ir.Scan:
		return []ir.Lambda{op.Lam}
	case *ir.Redomap:
		return []ir.Lambda{op.RedLam, op.MapLam}
	case *ir.Stream:
		return []ir.Lambda{op.Lam}
	case *ir.Write:
		return []ir.Lambda{op.Lam}
	}
	return nil
}
