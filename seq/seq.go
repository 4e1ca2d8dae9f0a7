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

// Package seq turns parallel combinators into sequential loops. The output
// contains no parallel operator at any depth, so feeding it back through
// extraction causes no further decomposition.
package seq

import (
	"fmt"

	"github.com/ajroetker/flatwave/ir"
)

// Transform rewrites a single combinator binding into equivalent loop
// statements. The final statement binds pat; certificates carry over to it.
// Lambda bodies are sequentialized recursively as they are inlined.
func Transform(src *ir.Source, pat ir.Pattern, certs []ir.VName, op ir.ParOp) ([]ir.Stmt, error) {
	switch op := op.(type) {
	case *ir.Map:
		return transformMap(src, pat, certs, op)
	case *ir.Reduce:
		return transformFold(src, pat, certs, op.W, op.Lam, ir.Lambda{}, false, op.Neutral, op.Arrs)
	case *ir.Scan:
		return transformScan(src, pat, certs, op)
	case *ir.Redomap:
		return transformFold(src, pat, certs, op.W, op.RedLam, op.MapLam, true, op.Neutral, op.Arrs)
	case *ir.Stream:
		return transformStream(src, pat, certs, op)
	case *ir.Write:
		return transformWrite(src, pat, certs, op)
	default:
		return nil, fmt.Errorf("seq: unhandled combinator %s", op.Kind())
	}
}

// TransformBody sequentializes every combinator in a body, at any depth.
func TransformBody(src *ir.Source, b ir.Body) (ir.Body, error) {
	stmts, err := TransformStmts(src, b.Stmts)
	if err != nil {
		return ir.Body{}, err
	}
	return ir.Body{Stmts: stmts, Result: b.Result}, nil
}

// TransformStmts sequentializes combinators in a statement list, recursing
// into conditional and loop bodies.
func TransformStmts(src *ir.Source, stmts []ir.Stmt) ([]ir.Stmt, error) {
	var out []ir.Stmt
	for _, s := range stmts {
		switch e := s.Exp.(type) {
		case *ir.ParExp:
			seq, err := Transform(src, s.Pat, s.Certs, e.Op)
			if err != nil {
				return nil, err
			}
			out = append(out, seq...)
		case *ir.IfExp:
			then, err := TransformBody(src, e.Then)
			if err != nil {
				return nil, err
			}
			els, err := TransformBody(src, e.Else)
			if err != nil {
				return nil, err
			}
			out = append(out, ir.Stmt{Pat: s.Pat, Certs: s.Certs,
				Exp: &ir.IfExp{Cond: e.Cond, Then: then, Else: els}})
		case *ir.LoopExp:
			body, err := TransformBody(src, e.Body)
			if err != nil {
				return nil, err
			}
			out = append(out, ir.Stmt{Pat: s.Pat, Certs: s.Certs,
				Exp: &ir.LoopExp{Merge: e.Merge, Bound: e.Bound, IndexVar: e.IndexVar, Body: body}})
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

// inlineLambda renames lam, sequentializes its body, and returns statements
// binding its parameters to args followed by the body statements, plus the
// renamed result operands.
func inlineLambda(src *ir.Source, lam ir.Lambda, args []ir.Exp) ([]ir.Stmt, []ir.SubExp, error) {
	if len(args) != len(lam.Params) {
		return nil, nil, fmt.Errorf("seq: lambda arity %d inlined with %d arguments",
			len(lam.Params), len(args))
	}
	fresh := ir.RenameLambda(src, lam)
	body, err := TransformBody(src, fresh.Body)
	if err != nil {
		return nil, nil, err
	}
	var stmts []ir.Stmt
	for i, p := range fresh.Params {
		stmts = append(stmts, ir.Stmt{
			Pat: ir.Pattern{{Name: p.Name, Type: p.Type}},
			Exp: args[i],
		})
	}
	stmts = append(stmts, body.Stmts...)
	return stmts, body.Result, nil
}

func elemArgs(arrs []ir.VName, i ir.VName) []ir.Exp {
	args := make([]ir.Exp, len(arrs))
	for k, a := range arrs {
		args[k] = &ir.IndexExp{Array: a, Indices: []ir.SubExp{ir.VarExp(i)}}
	}
	return args
}

func subExpArgs(ses []ir.SubExp) []ir.Exp {
	args := make([]ir.Exp, len(ses))
	for k, se := range ses {
		args[k] = &ir.SubExpOp{SE: se}
	}
	return args
}

// transformMap writes each element of the result into a scratch destination.
func transformMap(src *ir.Source, pat ir.Pattern, certs []ir.VName, op *ir.Map) ([]ir.Stmt, error) {
	var stmts []ir.Stmt
	i := src.Fresh("i")

	merge := make([]ir.MergeParam, len(pat))
	for j, pe := range pat {
		if pe.Type.Rank() == 0 {
			return nil, fmt.Errorf("seq: map binding %s has scalar type", pe.Name)
		}
		scratch := src.FreshFrom(pe.Name)
		stmts = append(stmts, ir.Stmt{
			Pat: ir.Pattern{{Name: scratch, Type: pe.Type}},
			Exp: &ir.ScratchExp{Elem: pe.Type.Elem, Shape: pe.Type.Shape},
		})
		acc := src.FreshFrom(pe.Name)
		merge[j] = ir.MergeParam{
			Param: ir.Param{Name: acc, Type: pe.Type},
			Init:  ir.VarExp(scratch),
		}
	}

	body, results, err := inlineLambda(src, op.Lam, elemArgs(op.Arrs, i))
	if err != nil {
		return nil, err
	}
	loopRes := make([]ir.SubExp, len(pat))
	for j := range pat {
		upd := src.FreshFrom(pat[j].Name)
		body = append(body, ir.Stmt{
			Pat: ir.Pattern{{Name: upd, Type: pat[j].Type}},
			Exp: &ir.UpdateExp{
				Array:   merge[j].Param.Name,
				Indices: []ir.SubExp{ir.VarExp(i)},
				Value:   results[j],
			},
		})
		loopRes[j] = ir.VarExp(upd)
	}

	stmts = append(stmts, ir.Stmt{
		Pat:   pat,
		Certs: certs,
		Exp: &ir.LoopExp{
			Merge:    merge,
			Bound:    op.W,
			IndexVar: i,
			Body:     ir.Body{Stmts: body, Result: loopRes},
		},
	})
	return stmts, nil
}

// transformFold covers reduce (no map lambda) and redomap.
func transformFold(src *ir.Source, pat ir.Pattern, certs []ir.VName, w ir.SubExp,
	redLam, mapLam ir.Lambda, hasMap bool, neutral []ir.SubExp, arrs []ir.VName) ([]ir.Stmt, error) {
	i := src.Fresh("i")

	merge := make([]ir.MergeParam, len(neutral))
	accArgs := make([]ir.SubExp, len(neutral))
	for j, ne := range neutral {
		acc := src.FreshFrom(pat[j].Name)
		merge[j] = ir.MergeParam{
			Param: ir.Param{Name: acc, Type: pat[j].Type},
			Init:  ne,
		}
		accArgs[j] = ir.VarExp(acc)
	}

	elems := elemArgs(arrs, i)
	var body []ir.Stmt
	if hasMap {
		mapStmts, mapRes, err := inlineLambda(src, mapLam, elems)
		if err != nil {
			return nil, err
		}
		body = mapStmts
		elems = subExpArgs(mapRes)
	}
	redStmts, redRes, err := inlineLambda(src, redLam, append(subExpArgs(accArgs), elems...))
	if err != nil {
		return nil, err
	}
	body = append(body, redStmts...)

	return []ir.Stmt{{
		Pat:   pat,
		Certs: certs,
		Exp: &ir.LoopExp{
			Merge:    merge,
			Bound:    w,
			IndexVar: i,
			Body:     ir.Body{Stmts: body, Result: redRes},
		},
	}}, nil
}

// transformScan threads the running accumulators through the loop alongside
// scratch destinations that collect each prefix.
func transformScan(src *ir.Source, pat ir.Pattern, certs []ir.VName, op *ir.Scan) ([]ir.Stmt, error) {
	var stmts []ir.Stmt
	i := src.Fresh("i")
	n := len(op.Neutral)

	merge := make([]ir.MergeParam, 0, 2*n)
	accArgs := make([]ir.SubExp, n)
	for j, ne := range op.Neutral {
		acc := src.Fresh("acc")
		merge = append(merge, ir.MergeParam{
			Param: ir.Param{Name: acc, Type: op.Lam.RetTypes[j]},
			Init:  ne,
		})
		accArgs[j] = ir.VarExp(acc)
	}
	for _, pe := range pat {
		scratch := src.FreshFrom(pe.Name)
		stmts = append(stmts, ir.Stmt{
			Pat: ir.Pattern{{Name: scratch, Type: pe.Type}},
			Exp: &ir.ScratchExp{Elem: pe.Type.Elem, Shape: pe.Type.Shape},
		})
		dest := src.FreshFrom(pe.Name)
		merge = append(merge, ir.MergeParam{
			Param: ir.Param{Name: dest, Type: pe.Type},
			Init:  ir.VarExp(scratch),
		})
	}

	body, results, err := inlineLambda(src, op.Lam, append(subExpArgs(accArgs), elemArgs(op.Arrs, i)...))
	if err != nil {
		return nil, err
	}
	loopRes := make([]ir.SubExp, 0, 2*n)
	loopRes = append(loopRes, results...)
	for j := range pat {
		upd := src.FreshFrom(pat[j].Name)
		body = append(body, ir.Stmt{
			Pat: ir.Pattern{{Name: upd, Type: pat[j].Type}},
			Exp: &ir.UpdateExp{
				Array:   merge[n+j].Param.Name,
				Indices: []ir.SubExp{ir.VarExp(i)},
				Value:   results[j],
			},
		})
		loopRes = append(loopRes, ir.VarExp(upd))
	}

	// The loop yields the final accumulators first; only the destinations
	// are named by the caller's pattern.
	loopPat := make(ir.Pattern, 0, 2*n)
	for j := range op.Neutral {
		loopPat = append(loopPat, ir.PatElem{
			Name: src.Fresh("final"),
			Type: op.Lam.RetTypes[j],
		})
	}
	loopPat = append(loopPat, pat...)

	stmts = append(stmts, ir.Stmt{
		Pat:   loopPat,
		Certs: certs,
		Exp: &ir.LoopExp{
			Merge:    merge,
			Bound:    op.W,
			IndexVar: i,
			Body:     ir.Body{Stmts: body, Result: loopRes},
		},
	})
	return stmts, nil
}

// transformStream inlines the chunk lambda once over the whole input.
func transformStream(src *ir.Source, pat ir.Pattern, certs []ir.VName, op *ir.Stream) ([]ir.Stmt, error) {
	args := make([]ir.Exp, 0, 1+len(op.Accs)+len(op.Arrs))
	args = append(args, &ir.SubExpOp{SE: op.W})
	for _, acc := range op.Accs {
		args = append(args, &ir.SubExpOp{SE: acc})
	}
	for _, a := range op.Arrs {
		args = append(args, &ir.SubExpOp{SE: ir.VarExp(a)})
	}
	stmts, results, err := inlineLambda(src, op.Lam, args)
	if err != nil {
		return nil, err
	}
	if len(results) != len(pat) {
		return nil, fmt.Errorf("seq: stream lambda yields %d values for %d bindings",
			len(results), len(pat))
	}
	for j, pe := range pat {
		certsFor := []ir.VName(nil)
		if j == len(pat)-1 {
			certsFor = certs
		}
		stmts = append(stmts, ir.Stmt{
			Pat:   ir.Pattern{{Name: pe.Name, Type: pe.Type}},
			Certs: certsFor,
			Exp:   &ir.SubExpOp{SE: results[j]},
		})
	}
	return stmts, nil
}

// transformWrite folds bounds-checked in-place updates over the index and
// value streams. Out-of-bounds indices leave the destination untouched.
func transformWrite(src *ir.Source, pat ir.Pattern, certs []ir.VName, op *ir.Write) ([]ir.Stmt, error) {
	i := src.Fresh("i")
	n := len(op.Dests)

	merge := make([]ir.MergeParam, n)
	for j, d := range op.Dests {
		out := src.FreshFrom(d)
		merge[j] = ir.MergeParam{
			Param: ir.Param{Name: out, Type: op.DestTypes[j]},
			Init:  ir.VarExp(d),
		}
	}

	body, results, err := inlineLambda(src, op.Lam, elemArgs(op.Arrs, i))
	if err != nil {
		return nil, err
	}
	if len(results) != 2*n {
		return nil, fmt.Errorf("seq: write lambda yields %d values for %d destinations",
			len(results), n)
	}

	loopRes := make([]ir.SubExp, n)
	for j := 0; j < n; j++ {
		ix, val := results[j], results[n+j]
		nonNeg := src.Fresh("nonneg")
		below := src.Fresh("below")
		ok := src.Fresh("ok")
		body = append(body,
			ir.Stmt{
				Pat: ir.Pattern{{Name: nonNeg, Type: ir.Prim(ir.Bool)}},
				Exp: &ir.CmpExp{Op: ir.CmpLe, X: ir.IntConst(0), Y: ix},
			},
			ir.Stmt{
				Pat: ir.Pattern{{Name: below, Type: ir.Prim(ir.Bool)}},
				Exp: &ir.CmpExp{Op: ir.CmpLt, X: ix, Y: op.DestTypes[j].Shape[0]},
			},
			ir.Stmt{
				Pat: ir.Pattern{{Name: ok, Type: ir.Prim(ir.Bool)}},
				Exp: &ir.BinExp{Op: ir.LogAnd, X: ir.VarExp(nonNeg), Y: ir.VarExp(below)},
			},
		)
		upd := src.FreshFrom(op.Dests[j])
		written := src.FreshFrom(op.Dests[j])
		body = append(body, ir.Stmt{
			Pat: ir.Pattern{{Name: upd, Type: op.DestTypes[j]}},
			Exp: &ir.IfExp{
				Cond: ir.VarExp(ok),
				Then: ir.Body{
					Stmts: []ir.Stmt{{
						Pat: ir.Pattern{{Name: written, Type: op.DestTypes[j]}},
						Exp: &ir.UpdateExp{
							Array:   merge[j].Param.Name,
							Indices: []ir.SubExp{ix},
							Value:   val,
						},
					}},
					Result: []ir.SubExp{ir.VarExp(written)},
				},
				Else: ir.Body{Result: []ir.SubExp{ir.VarExp(merge[j].Param.Name)}},
			},
		})
		loopRes[j] = ir.VarExp(upd)
	}

	return []ir.Stmt{{
		Pat:   pat,
		Certs: certs,
		Exp: &ir.LoopExp{
			Merge:    merge,
			Bound:    op.W,
			IndexVar: i,
			Body:     ir.Body{Stmts: body, Result: loopRes},
		},
	}}, nil
}
