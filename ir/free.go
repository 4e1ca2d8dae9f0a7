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

// FreeInSubExp returns the names a sub-expression references.
func FreeInSubExp(se SubExp) NameSet {
	if v, ok := se.(Var); ok {
		return NewNameSet(v.Name)
	}
	return NameSet{}
}

// FreeInType returns the names a type's shape references.
func FreeInType(t Type) NameSet {
	fv := NameSet{}
	for _, d := range t.Shape {
		fv.AddSet(FreeInSubExp(d))
	}
	return fv
}

// FreeInExp returns the names an expression references.
func FreeInExp(e Exp) NameSet {
	fv := NameSet{}
	switch e := e.(type) {
	case *SubExpOp:
		fv.AddSet(FreeInSubExp(e.SE))
	case *UnExp:
		fv.AddSet(FreeInSubExp(e.X))
	case *BinExp:
		fv.AddSet(FreeInSubExp(e.X))
		fv.AddSet(FreeInSubExp(e.Y))
	case *CmpExp:
		fv.AddSet(FreeInSubExp(e.X))
		fv.AddSet(FreeInSubExp(e.Y))
	case *IndexExp:
		fv.Add(e.Array)
		for _, ix := range e.Indices {
			fv.AddSet(FreeInSubExp(ix))
		}
	case *UpdateExp:
		fv.Add(e.Array)
		for _, ix := range e.Indices {
			fv.AddSet(FreeInSubExp(ix))
		}
		fv.AddSet(FreeInSubExp(e.Value))
	case *IotaExp:
		fv.AddSet(FreeInSubExp(e.N))
	case *ReplicateExp:
		fv.AddSet(FreeInSubExp(e.N))
		fv.AddSet(FreeInSubExp(e.V))
	case *ScratchExp:
		for _, d := range e.Shape {
			fv.AddSet(FreeInSubExp(d))
		}
	case *RearrangeExp:
		fv.Add(e.Array)
	case *CopyExp:
		fv.Add(e.Array)
	case *IfExp:
		fv.AddSet(FreeInSubExp(e.Cond))
		fv.AddSet(FreeInBody(e.Then))
		fv.AddSet(FreeInBody(e.Else))
	case *LoopExp:
		bound := NameSet{}
		bound.Add(e.IndexVar)
		for _, mp := range e.Merge {
			fv.AddSet(FreeInSubExp(mp.Init))
			fv.AddSet(FreeInType(mp.Param.Type))
			bound.Add(mp.Param.Name)
		}
		fv.AddSet(FreeInSubExp(e.Bound))
		inner := FreeInBody(e.Body)
		inner.Delete(bound.Sorted()...)
		fv.AddSet(inner)
	case *ParExp:
		fv.AddSet(e.Op.Free())
	default:
		panic(fmt.Sprintf("ir: FreeInExp: unhandled expression %T", e))
	}
	return fv
}

// FreeInStmt returns the names a statement references, including its
// certificates and the shapes of its pattern.
func FreeInStmt(s Stmt) NameSet {
	fv := FreeInExp(s.Exp)
	fv.Add(s.Certs...)
	for _, pe := range s.Pat {
		fv.AddSet(FreeInType(pe.Type))
	}
	return fv
}

// FreeInBody returns the names a body references that it does not bind.
func FreeInBody(b Body) NameSet {
	fv := NameSet{}
	bound := NameSet{}
	for _, s := range b.Stmts {
		for n := range FreeInStmt(s) {
			if !bound.Has(n) {
				fv.Add(n)
			}
		}
		bound.Add(s.Pat.Names()...)
	}
	for _, r := range b.Result {
		for n := range FreeInSubExp(r) {
			if !bound.Has(n) {
				fv.Add(n)
			}
		}
	}
	return fv
}

// FreeInLambda returns the names a lambda captures from its environment.
func FreeInLambda(lam Lambda) NameSet {
	fv := FreeInBody(lam.Body)
	for _, p := range lam.Params {
		fv.Delete(p.Name)
	}
	for _, p := range lam.Params {
		fv.AddSet(FreeInType(p.Type))
	}
	for _, t := range lam.RetTypes {
		fv.AddSet(FreeInType(t))
	}
	return fv
}

// BoundInBody returns every name a body binds anywhere inside itself,
// including loop variables, merge parameters, and nested lambda parameters.
// The balance analyzer uses it to decide whether an inner combinator's
// width varies with its enclosing context.
func BoundInBody(b Body) NameSet {
	bound := NameSet{}
	for _, s := range b.Stmts {
		bound.Add(s.Pat.Names()...)
		boundInExp(s.Exp, bound)
	}
	return bound
}

func boundInExp(e Exp, bound NameSet) {
	switch e := e.(type) {
	case *IfExp:
		bound.AddSet(BoundInBody(e.Then))
		bound.AddSet(BoundInBody(e.Else))
	case *LoopExp:
		bound.Add(e.IndexVar)
		for _, mp := range e.Merge {
			bound.Add(mp.Param.Name)
		}
		bound.AddSet(BoundInBody(e.Body))
	case *ParExp:
		for _, lam := range opLambdas(e.Op) {
			for _, p := range lam.Params {
				bound.Add(p.Name)
			}
			bound.AddSet(BoundInBody(lam.Body))
		}
	}
}

func opLambdas(op ParOp) []Lambda {
	switch op := op.(type) {
	case *Map:
		return []Lambda{op.Lam}
	case *Reduce:
		return []Lambda{op.Lam}
	case *Scan:
		return []Lambda{op.Lam}
	case *Redomap:
		return []Lambda{op.RedLam, op.MapLam}
	case *Stream:
		return []Lambda{op.Lam}
	case *Write:
		return []Lambda{op.Lam}
	default:
		panic(fmt.Sprintf("ir: opLambdas: unhandled combinator %T", op))
	}
}
