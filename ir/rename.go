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

// renamer rewrites names in a deep copy of IR. When src is non-nil, every
// binder encountered is freshened and subsequent references follow; when src
// is nil only the initial substitution applies.
type renamer struct {
	src *Source
	m   map[VName]VName
}

func (r *renamer) name(v VName) VName {
	if n, ok := r.m[v]; ok {
		return n
	}
	return v
}

func (r *renamer) bind(v VName) VName {
	if r.src == nil {
		return r.name(v)
	}
	n := r.src.FreshFrom(v)
	r.m[v] = n
	return n
}

func (r *renamer) subExp(se SubExp) SubExp {
	if v, ok := se.(Var); ok {
		return Var{Name: r.name(v.Name)}
	}
	return se
}

func (r *renamer) subExps(ses []SubExp) []SubExp {
	if ses == nil {
		return nil
	}
	out := make([]SubExp, len(ses))
	for i, se := range ses {
		out[i] = r.subExp(se)
	}
	return out
}

func (r *renamer) typ(t Type) Type {
	return Type{Elem: t.Elem, Shape: r.subExps(t.Shape)}
}

func (r *renamer) types(ts []Type) []Type {
	if ts == nil {
		return nil
	}
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = r.typ(t)
	}
	return out
}

func (r *renamer) names(ns []VName) []VName {
	if ns == nil {
		return nil
	}
	out := make([]VName, len(ns))
	for i, n := range ns {
		out[i] = r.name(n)
	}
	return out
}

// param binds the parameter name; the type is rewritten first since shapes
// reference outer names.
func (r *renamer) param(p Param) Param {
	t := r.typ(p.Type)
	return Param{Name: r.bind(p.Name), Type: t}
}

func (r *renamer) params(ps []Param) []Param {
	out := make([]Param, len(ps))
	for i, p := range ps {
		out[i] = r.param(p)
	}
	return out
}

func (r *renamer) pattern(p Pattern) Pattern {
	out := make(Pattern, len(p))
	for i, pe := range p {
		t := r.typ(pe.Type)
		out[i] = PatElem{Name: r.bind(pe.Name), Type: t}
	}
	return out
}

func (r *renamer) stmt(s Stmt) Stmt {
	e := r.exp(s.Exp)
	certs := r.names(s.Certs)
	return Stmt{Pat: r.pattern(s.Pat), Certs: certs, Exp: e}
}

func (r *renamer) body(b Body) Body {
	stmts := make([]Stmt, len(b.Stmts))
	for i, s := range b.Stmts {
		stmts[i] = r.stmt(s)
	}
	return Body{Stmts: stmts, Result: r.subExps(b.Result)}
}

func (r *renamer) lambda(lam Lambda) Lambda {
	params := r.params(lam.Params)
	body := r.body(lam.Body)
	return Lambda{Params: params, Body: body, RetTypes: r.types(lam.RetTypes)}
}

func (r *renamer) exp(e Exp) Exp {
	switch e := e.(type) {
	case *SubExpOp:
		return &SubExpOp{SE: r.subExp(e.SE)}
	case *UnExp:
		return &UnExp{Op: e.Op, X: r.subExp(e.X)}
	case *BinExp:
		return &BinExp{Op: e.Op, X: r.subExp(e.X), Y: r.subExp(e.Y)}
	case *CmpExp:
		return &CmpExp{Op: e.Op, X: r.subExp(e.X), Y: r.subExp(e.Y)}
	case *IndexExp:
		return &IndexExp{Array: r.name(e.Array), Indices: r.subExps(e.Indices)}
	case *UpdateExp:
		return &UpdateExp{
			Array:   r.name(e.Array),
			Indices: r.subExps(e.Indices),
			Value:   r.subExp(e.Value),
		}
	case *IotaExp:
		return &IotaExp{N: r.subExp(e.N)}
	case *ReplicateExp:
		return &ReplicateExp{N: r.subExp(e.N), V: r.subExp(e.V)}
	case *ScratchExp:
		return &ScratchExp{Elem: e.Elem, Shape: r.subExps(e.Shape)}
	case *RearrangeExp:
		perm := make([]int, len(e.Perm))
		copy(perm, e.Perm)
		return &RearrangeExp{Perm: perm, Array: r.name(e.Array)}
	case *CopyExp:
		return &CopyExp{Array: r.name(e.Array)}
	case *IfExp:
		return &IfExp{Cond: r.subExp(e.Cond), Then: r.body(e.Then), Else: r.body(e.Else)}
	case *LoopExp:
		bound := r.subExp(e.Bound)
		merge := make([]MergeParam, len(e.Merge))
		for i, mp := range e.Merge {
			init := r.subExp(mp.Init)
			merge[i] = MergeParam{Param: r.param(mp.Param), Init: init}
		}
		idx := r.bind(e.IndexVar)
		return &LoopExp{Merge: merge, Bound: bound, IndexVar: idx, Body: r.body(e.Body)}
	case *ParExp:
		return &ParExp{Op: r.parOp(e.Op)}
	default:
		panic(fmt.Sprintf("ir: rename: unhandled expression %T", e))
	}
}

func (r *renamer) parOp(op ParOp) ParOp {
	switch op := op.(type) {
	case *Map:
		return &Map{W: r.subExp(op.W), Lam: r.lambda(op.Lam), Arrs: r.names(op.Arrs)}
	case *Reduce:
		return &Reduce{
			W:       r.subExp(op.W),
			Comm:    op.Comm,
			Lam:     r.lambda(op.Lam),
			Neutral: r.subExps(op.Neutral),
			Arrs:    r.names(op.Arrs),
		}
	case *Scan:
		return &Scan{
			W:       r.subExp(op.W),
			Comm:    op.Comm,
			Lam:     r.lambda(op.Lam),
			Neutral: r.subExps(op.Neutral),
			Arrs:    r.names(op.Arrs),
		}
	case *Redomap:
		return &Redomap{
			W:       r.subExp(op.W),
			Comm:    op.Comm,
			RedLam:  r.lambda(op.RedLam),
			MapLam:  r.lambda(op.MapLam),
			Neutral: r.subExps(op.Neutral),
			Arrs:    r.names(op.Arrs),
		}
	case *Stream:
		return &Stream{
			W:    r.subExp(op.W),
			Lam:  r.lambda(op.Lam),
			Accs: r.subExps(op.Accs),
			Arrs: r.names(op.Arrs),
		}
	case *Write:
		return &Write{
			W:         r.subExp(op.W),
			Lam:       r.lambda(op.Lam),
			Arrs:      r.names(op.Arrs),
			Dests:     r.names(op.Dests),
			DestTypes: r.types(op.DestTypes),
		}
	default:
		panic(fmt.Sprintf("ir: rename: unhandled combinator %T", op))
	}
}

// RenameLambda deep-copies lam with every bound name inside replaced by a
// fresh one. Inlining a lambda body more than once requires this first so
// global name uniqueness is preserved.
func RenameLambda(src *Source, lam Lambda) Lambda {
	r := &renamer{src: src, m: map[VName]VName{}}
	return r.lambda(lam)
}

// RenameStmt deep-copies s with its bound names (but not its free names)
// freshened.
func RenameStmt(src *Source, s Stmt) Stmt {
	r := &renamer{src: src, m: map[VName]VName{}}
	return r.stmt(s)
}

// SubstNamesExp deep-copies e substituting free occurrences per m.
func SubstNamesExp(m map[VName]VName, e Exp) Exp {
	r := &renamer{m: m}
	return r.exp(e)
}

// SubstNamesBody deep-copies b substituting free occurrences per m.
func SubstNamesBody(m map[VName]VName, b Body) Body {
	r := &renamer{m: m}
	return r.body(b)
}

// SubstNamesStmt deep-copies s substituting free occurrences per m.
func SubstNamesStmt(m map[VName]VName, s Stmt) Stmt {
	r := &renamer{m: m}
	return r.stmt(s)
}
