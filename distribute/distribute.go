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

// Package distribute decides which nested parallel combinators flatten
// into device kernels. It walks a function body in definition order,
// tracking the open parallel nest, and commits, defers, rewrites, or
// sequentializes each statement. Every dispatch path has a sequential
// fallback; distribution declines to parallelize but never fails on input
// that merely cannot be flattened.
package distribute

import (
	"github.com/ajroetker/flatwave/ir"
	"github.com/ajroetker/flatwave/kernel"
	"github.com/ajroetker/flatwave/seq"
)

const distPass = "distribution"

// DefaultMaxThreads caps the one-thread-per-element grid before a map is
// virtualized into a chunked kernel.
const DefaultMaxThreads = 1 << 20

// Sequentializer turns a combinator into equivalent ordinary loop
// statements. It is the universal fallback every dispatch path relies on.
type Sequentializer interface {
	Transform(src *ir.Source, pat ir.Pattern, certs []ir.VName, op ir.ParOp) ([]ir.Stmt, error)
}

type seqFallback struct{}

func (seqFallback) Transform(src *ir.Source, pat ir.Pattern, certs []ir.VName, op ir.ParOp) ([]ir.Stmt, error) {
	return seq.Transform(src, pat, certs, op)
}

// Option configures an Engine.
type Option func(*Engine)

// WithSequentializer replaces the fallback transform.
func WithSequentializer(s Sequentializer) Option {
	return func(e *Engine) { e.seq = s }
}

// WithLog attaches a diagnostic log the engine notes its decisions to.
func WithLog(l *ir.Log) Option {
	return func(e *Engine) { e.log = l }
}

// WithMaxThreads sets the virtualization threshold.
func WithMaxThreads(n int64) Option {
	return func(e *Engine) { e.maxThreads = n }
}

// Engine carries the distribution state: the fresh-name source and scope
// it was given, the open nest, and the host statements produced so far.
type Engine struct {
	src        *ir.Source
	scope      ir.Scope
	seq        Sequentializer
	log        *ir.Log
	maxThreads int64

	levels []level
	emit   []kernel.HostStmt
}

// New builds an engine over the given host scope. The scope must cover
// every name free in the body passed to TransformBody.
func New(src *ir.Source, scope ir.Scope, opts ...Option) *Engine {
	e := &Engine{
		src:        src,
		scope:      scope.Clone(),
		seq:        seqFallback{},
		maxThreads: DefaultMaxThreads,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Depth returns the number of open nesting levels.
func (e *Engine) Depth() int { return len(e.levels) }

func (e *Engine) notef(format string, args ...any) {
	e.log.Notef(format, args...)
}

// TransformBody distributes a function body, producing the lowered host
// program. The nest must unwind completely; a leftover level is an
// internal invariant violation.
func (e *Engine) TransformBody(b ir.Body) (*kernel.Program, error) {
	for _, s := range FuseStmts(b.Stmts, b.Result) {
		if err := e.hostStmt(s); err != nil {
			return nil, err
		}
	}
	if len(e.levels) != 0 {
		return nil, kernel.Errorf(distPass, "%d nesting levels still open after the walk", len(e.levels))
	}
	p := &kernel.Program{Stmts: e.emit, Result: b.Result}
	e.emit = nil
	return p, nil
}

func (e *Engine) emitSeq(s ir.Stmt) {
	e.emit = append(e.emit, kernel.HostStmt{Seq: &s})
	e.scope.BindPattern(s.Pat)
}

func (e *Engine) emitLaunch(k kernel.Kernel) {
	e.emit = append(e.emit, kernel.HostStmt{Launch: k})
	e.scope.BindPattern(k.Dests())
}

// hostStmt dispatches a statement outside any open nest.
func (e *Engine) hostStmt(s ir.Stmt) error {
	switch exp := s.Exp.(type) {
	case *ir.ParExp:
		switch op := exp.Op.(type) {
		case *ir.Map:
			return e.distributeMap(s, op)
		case *ir.Reduce:
			prims, ok := scalarElemTypes(op.Lam, len(op.Neutral))
			if !ok {
				e.notef("reduce %s folds non-scalar elements, sequentializing", s.Pat.Names())
				return e.hostSequentialize(s, op)
			}
			return e.hostReduce(s, op.W, op.Comm, op.Lam,
				ir.IdentityLambda(e.src, prims), op.Neutral, op.Arrs)
		case *ir.Redomap:
			// The device feeds MapLam one scalar per array and RedLam reads
			// its output, so both stages must work element-at-a-time.
			_, mapOK := scalarElemTypes(op.MapLam, 0)
			_, redOK := scalarElemTypes(op.RedLam, 0)
			if !mapOK || !redOK {
				e.notef("redomap %s folds non-scalar elements, sequentializing", s.Pat.Names())
				return e.hostSequentialize(s, op)
			}
			return e.hostReduce(s, op.W, op.Comm, op.RedLam, op.MapLam, op.Neutral, op.Arrs)
		case *ir.Scan:
			return e.hostScan(s, op)
		default:
			e.notef("%s has no device lowering, sequentializing", op.Kind())
			return e.hostSequentialize(s, op)
		}
	case *ir.LoopExp:
		return e.hostLoop(s, exp)
	case *ir.IfExp:
		then, err := e.sequentializeAll(exp.Then.Stmts)
		if err != nil {
			return err
		}
		els, err := e.sequentializeAll(exp.Else.Stmts)
		if err != nil {
			return err
		}
		e.emitSeq(ir.Stmt{Pat: s.Pat, Certs: s.Certs, Exp: &ir.IfExp{
			Cond: exp.Cond,
			Then: ir.Body{Stmts: then, Result: exp.Then.Result},
			Else: ir.Body{Stmts: els, Result: exp.Else.Result},
		}})
		return nil
	case *ir.RearrangeExp:
		if k, ok := e.specializeRearrange(s, exp); ok {
			e.emitLaunch(k)
			return nil
		}
		e.emitSeq(s)
		return nil
	default:
		e.emitSeq(s)
		return nil
	}
}

// hostSequentialize rewrites a combinator to loops and emits the result as
// plain host statements.
func (e *Engine) hostSequentialize(s ir.Stmt, op ir.ParOp) error {
	stmts, err := e.seq.Transform(e.src, s.Pat, s.Certs, op)
	if err != nil {
		return err
	}
	for _, ss := range stmts {
		e.emitSeq(ss)
	}
	return nil
}

// distributeMap handles a map statement at any depth: sequentialize when
// unbalanced or uncoverable, otherwise open a level, walk the lambda body,
// and commit the level into a kernel on the way out.
func (e *Engine) distributeMap(s ir.Stmt, op *ir.Map) error {
	if Unbalanced(op.Lam) {
		e.notef("map %s is unbalanced, sequentializing", s.Pat.Names())
		return e.spliceSequential(s, op)
	}
	if len(e.levels) > 0 {
		nestBound := e.nestBound()
		if ir.FreeInSubExp(op.W).Intersects(nestBound) {
			e.notef("map %s has a width varying per enclosing iteration, sequentializing", s.Pat.Names())
			return e.spliceSequential(s, op)
		}
		if !e.coverable(s, nestBound) {
			e.notef("map %s cannot be covered by the open nest, sequentializing", s.Pat.Names())
			return e.spliceSequential(s, op)
		}
	}
	if !e.widthSizable(op.W) {
		e.notef("map %s has a width unknown to the host, sequentializing", s.Pat.Names())
		return e.spliceSequential(s, op)
	}
	if len(op.Lam.Params) != len(op.Arrs) {
		return kernel.Errorf(distPass, "map %s draws %d arrays for %d parameters",
			s.Pat.Names(), len(op.Arrs), len(op.Lam.Params))
	}

	args := make([]LoopArg, len(op.Arrs))
	for i, a := range op.Arrs {
		args[i] = LoopArg{Param: op.Lam.Params[i], Array: a}
	}
	e.levels = append(e.levels, level{
		frame: Nesting{
			Index: e.src.Fresh("gtid"),
			Width: op.W,
			Args:  args,
			Certs: s.Certs,
		},
		target: Target{Pat: s.Pat, Result: op.Lam.Body.Result},
	})

	for _, inner := range FuseStmts(op.Lam.Body.Stmts, op.Lam.Body.Result) {
		if err := e.nestStmt(inner); err != nil {
			return err
		}
	}
	return e.commit()
}

// nestStmt dispatches a statement inside an open nest.
func (e *Engine) nestStmt(s ir.Stmt) error {
	switch exp := s.Exp.(type) {
	case *ir.ParExp:
		switch op := exp.Op.(type) {
		case *ir.Map:
			return e.distributeMap(s, op)
		default:
			// Segmented reduce and scan are future work; everything that
			// is not a map runs sequentially inside the kernel.
			e.notef("segmented %s %s not supported, sequentializing", op.Kind(), s.Pat.Names())
			return e.spliceSequential(s, op)
		}
	case *ir.LoopExp:
		if ns, ok := Interchange(e.src, s); ok {
			e.notef("interchanged loop %s with its inner map", s.Pat.Names())
			return e.nestStmt(ns)
		}
		e.pend(s)
		return nil
	default:
		e.pend(s)
		return nil
	}
}

func (e *Engine) pend(s ir.Stmt) {
	top := &e.levels[len(e.levels)-1]
	top.pending = append(top.pending, s)
}

// spliceSequential rewrites a combinator to loops and places the result
// where the statement lived: pending inside a nest, host output otherwise.
func (e *Engine) spliceSequential(s ir.Stmt, op ir.ParOp) error {
	if len(e.levels) == 0 {
		return e.hostSequentialize(s, op)
	}
	stmts, err := e.seq.Transform(e.src, s.Pat, s.Certs, op)
	if err != nil {
		return err
	}
	top := &e.levels[len(e.levels)-1]
	top.pending = append(top.pending, stmts...)
	return nil
}

// nestBound is every name bound by any open level.
func (e *Engine) nestBound() ir.NameSet {
	s := ir.NameSet{}
	for i := range e.levels {
		s.AddSet(e.levels[i].bound())
	}
	return s
}

// coverable reports whether every free name of s is host-known or bound by
// the open nest (frames, parameters, or pending statements).
func (e *Engine) coverable(s ir.Stmt, nestBound ir.NameSet) bool {
	for n := range ir.FreeInStmt(s) {
		if nestBound.Has(n) {
			continue
		}
		if _, ok := e.scope[n]; !ok {
			return false
		}
	}
	return true
}

// widthSizable reports whether a width can be evaluated on the host before
// the launch.
func (e *Engine) widthSizable(w ir.SubExp) bool {
	for n := range ir.FreeInSubExp(w) {
		if _, ok := e.scope[n]; !ok {
			return false
		}
	}
	return true
}

// commit pops the innermost level and collapses the whole open nest plus
// the level's pending statements into one map kernel. Enclosing pending
// statements are pulled into the body and recomputed per thread. When the
// popped level is not outermost, fresh destination arrays are introduced
// and the parent receives index statements rebinding the original pattern.
func (e *Engine) commit() error {
	d := len(e.levels)
	if d == 0 {
		return kernel.Errorf(distPass, "nesting stack underflow on commit")
	}
	top := e.levels[d-1]

	dims := make([]kernel.Dim, d)
	var body []ir.Stmt
	var certs []ir.VName
	for li := range e.levels {
		lvl := &e.levels[li]
		dims[li] = kernel.Dim{Index: lvl.frame.Index, Width: lvl.frame.Width}
		certs = append(certs, lvl.frame.Certs...)
		for _, a := range lvl.frame.Args {
			body = append(body, ir.Stmt{
				Pat: ir.Pattern{{Name: a.Param.Name, Type: a.Param.Type}},
				Exp: &ir.IndexExp{Array: a.Array, Indices: []ir.SubExp{ir.VarExp(lvl.frame.Index)}},
			})
		}
		if li < d-1 {
			body = append(body, lvl.pending...)
		}
	}
	body = append(body, top.pending...)

	body, err := e.sequentializeAll(body)
	if err != nil {
		return err
	}
	kbody := ir.Body{Stmts: body, Result: top.target.Result}

	free := ir.FreeInBody(kbody)
	for _, dim := range dims {
		free.Delete(dim.Index)
		free.AddSet(ir.FreeInSubExp(dim.Width))
	}
	for n := range free {
		if _, ok := e.scope[n]; !ok {
			return kernel.Errorf(distPass,
				"committed kernel body references %s, which no open frame or host binding covers", n)
		}
	}

	var rebinds []ir.Stmt
	dest := make(ir.Pattern, len(top.target.Pat))
	for j, pe := range top.target.Pat {
		dt := pe.Type
		for li := d - 2; li >= 0; li-- {
			dt = ir.ArrayOf(dt, e.levels[li].frame.Width)
		}
		name := pe.Name
		if d > 1 {
			name = e.src.FreshFrom(pe.Name)
			idx := make([]ir.SubExp, d-1)
			for li := 0; li < d-1; li++ {
				idx[li] = ir.VarExp(e.levels[li].frame.Index)
			}
			rebinds = append(rebinds, ir.Stmt{
				Pat: ir.Pattern{{Name: pe.Name, Type: pe.Type}},
				Exp: &ir.IndexExp{Array: name, Indices: idx},
			})
		}
		dest[j] = ir.PatElem{Name: name, Type: dt}
	}

	mk := &kernel.MapKernel{Dims: dims, Body: kbody, Dest: dest, Certs: certs}
	e.levels = e.levels[:d-1]
	e.emitLaunch(kernel.Virtualize(mk, e.maxThreads))
	if d > 1 {
		parent := &e.levels[d-2]
		parent.pending = append(parent.pending, rebinds...)
	}
	return nil
}

// hostReduce lowers a top-level fold to the tree-reduction kernel. The
// combine and map stages run on the device, so any parallelism inside them
// is sequentialized first.
func (e *Engine) hostReduce(s ir.Stmt, w ir.SubExp, comm bool,
	redLam, mapLam ir.Lambda, neutral []ir.SubExp, arrs []ir.VName) error {
	redLam, err := e.sequentializeLambda(redLam)
	if err != nil {
		return err
	}
	mapLam, err = e.sequentializeLambda(mapLam)
	if err != nil {
		return err
	}
	e.emitLaunch(&kernel.ReduceKernel{
		W:       w,
		Comm:    comm,
		RedLam:  redLam,
		MapLam:  mapLam,
		Neutral: neutral,
		Arrs:    arrs,
		Dest:    s.Pat,
	})
	return nil
}

func (e *Engine) hostScan(s ir.Stmt, op *ir.Scan) error {
	if _, ok := scalarElemTypes(op.Lam, len(op.Neutral)); !ok {
		e.notef("scan %s carries non-scalar accumulators, sequentializing", s.Pat.Names())
		return e.hostSequentialize(s, op)
	}
	lam, err := e.sequentializeLambda(op.Lam)
	if err != nil {
		return err
	}
	e.emitLaunch(&kernel.ScanKernel{
		W:       op.W,
		Comm:    op.Comm,
		Lam:     lam,
		Neutral: op.Neutral,
		Arrs:    op.Arrs,
		Dest:    s.Pat,
		Layout:  kernel.ThreadMajor,
	})
	return nil
}

// hostLoop keeps a loop sequential when interchange is illegal, but still
// walks its body: parallelism found inside becomes kernels launched from a
// host-side loop.
func (e *Engine) hostLoop(s ir.Stmt, loop *ir.LoopExp) error {
	if ns, ok := Interchange(e.src, s); ok {
		e.notef("interchanged loop %s with its inner map", s.Pat.Names())
		return e.hostStmt(ns)
	}

	savedEmit := e.emit
	savedScope := e.scope
	e.emit = nil
	e.scope = savedScope.Clone()
	e.scope[loop.IndexVar] = ir.Prim(ir.Int64)
	for _, mp := range loop.Merge {
		e.scope[mp.Param.Name] = mp.Param.Type
	}
	var inner []kernel.HostStmt
	err := func() error {
		for _, bs := range FuseStmts(loop.Body.Stmts, loop.Body.Result) {
			if err := e.hostStmt(bs); err != nil {
				return err
			}
		}
		inner = e.emit
		return nil
	}()
	e.emit = savedEmit
	e.scope = savedScope
	if err != nil {
		return err
	}

	if !anyLaunch(inner) {
		seqBody, err := e.sequentializeAll(loop.Body.Stmts)
		if err != nil {
			return err
		}
		e.emitSeq(ir.Stmt{Pat: s.Pat, Certs: s.Certs, Exp: &ir.LoopExp{
			Merge: loop.Merge, Bound: loop.Bound, IndexVar: loop.IndexVar,
			Body: ir.Body{Stmts: seqBody, Result: loop.Body.Result},
		}})
		return nil
	}

	e.emit = append(e.emit, kernel.HostStmt{Loop: &kernel.HostLoop{
		Pat:      s.Pat,
		Merge:    loop.Merge,
		Bound:    loop.Bound,
		IndexVar: loop.IndexVar,
		Body:     inner,
		Result:   loop.Body.Result,
	}})
	e.scope.BindPattern(s.Pat)
	return nil
}

func anyLaunch(stmts []kernel.HostStmt) bool {
	for _, hs := range stmts {
		if hs.Launch != nil {
			return true
		}
		if hs.Loop != nil && anyLaunch(hs.Loop.Body) {
			return true
		}
	}
	return false
}

// specializeRearrange lowers a permutation of a concretely shaped array to
// a bulk-copy kernel.
func (e *Engine) specializeRearrange(s ir.Stmt, exp *ir.RearrangeExp) (kernel.Kernel, bool) {
	srcT, ok := e.scope.TypeOf(ir.VarExp(exp.Array))
	if !ok || len(s.Pat) != 1 {
		return nil, false
	}
	srcDims, ok := constDims(srcT.Shape)
	if !ok {
		return nil, false
	}
	viewDims := make([]int64, len(exp.Perm))
	for i, p := range exp.Perm {
		viewDims[i] = srcDims[p]
	}
	dstPerm := make([]int, len(viewDims))
	for i := range dstPerm {
		dstPerm[i] = i
	}
	k, err := kernel.SpecializeCopy(
		kernel.View{Name: s.Pat[0].Name, Elem: srcT.Elem, Dims: viewDims, Perm: dstPerm},
		kernel.View{Name: exp.Array, Elem: srcT.Elem, Dims: viewDims, Perm: exp.Perm},
	)
	if err != nil {
		return nil, false
	}
	switch k := k.(type) {
	case *kernel.TransposeKernel:
		k.DestPat = s.Pat
	case *kernel.ByteCopyKernel:
		k.DestPat = s.Pat
	case *kernel.GenericCopyKernel:
		k.DestPat = s.Pat
	}
	e.notef("rearrange %s lowered to a %s kernel", s.Pat.Names(), k.Kind())
	return k, true
}

func constDims(shape []ir.SubExp) ([]int64, bool) {
	dims := make([]int64, len(shape))
	for i, se := range shape {
		c, ok := se.(ir.Constant)
		if !ok || c.Value.T != ir.Int64 {
			return nil, false
		}
		dims[i] = c.Value.Int
	}
	return dims, true
}

// scalarElemTypes returns the primitive element types a fold consumes,
// when they are all scalars.
func scalarElemTypes(lam ir.Lambda, numAccs int) ([]ir.PrimType, bool) {
	if len(lam.Params) < numAccs {
		return nil, false
	}
	elems := lam.Params[numAccs:]
	prims := make([]ir.PrimType, len(elems))
	for i, p := range elems {
		if p.Type.Rank() != 0 {
			return nil, false
		}
		prims[i] = p.Type.Elem
	}
	return prims, true
}

// sequentializeAll removes every combinator from a statement list via the
// fallback transform, recursing into conditionals and loops.
func (e *Engine) sequentializeAll(stmts []ir.Stmt) ([]ir.Stmt, error) {
	var out []ir.Stmt
	for _, s := range stmts {
		switch exp := s.Exp.(type) {
		case *ir.ParExp:
			seqd, err := e.seq.Transform(e.src, s.Pat, s.Certs, exp.Op)
			if err != nil {
				return nil, err
			}
			// The fallback may itself be shallow; keep going until no
			// combinator remains.
			seqd, err = e.sequentializeAll(seqd)
			if err != nil {
				return nil, err
			}
			out = append(out, seqd...)
		case *ir.IfExp:
			then, err := e.sequentializeAll(exp.Then.Stmts)
			if err != nil {
				return nil, err
			}
			els, err := e.sequentializeAll(exp.Else.Stmts)
			if err != nil {
				return nil, err
			}
			out = append(out, ir.Stmt{Pat: s.Pat, Certs: s.Certs, Exp: &ir.IfExp{
				Cond: exp.Cond,
				Then: ir.Body{Stmts: then, Result: exp.Then.Result},
				Else: ir.Body{Stmts: els, Result: exp.Else.Result},
			}})
		case *ir.LoopExp:
			bs, err := e.sequentializeAll(exp.Body.Stmts)
			if err != nil {
				return nil, err
			}
			out = append(out, ir.Stmt{Pat: s.Pat, Certs: s.Certs, Exp: &ir.LoopExp{
				Merge: exp.Merge, Bound: exp.Bound, IndexVar: exp.IndexVar,
				Body: ir.Body{Stmts: bs, Result: exp.Body.Result},
			}})
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

func (e *Engine) sequentializeLambda(lam ir.Lambda) (ir.Lambda, error) {
	stmts, err := e.sequentializeAll(lam.Body.Stmts)
	if err != nil {
		return ir.Lambda{}, err
	}
	return ir.Lambda{
		Params:   lam.Params,
		Body:     ir.Body{Stmts: stmts, Result: lam.Body.Result},
		RetTypes: lam.RetTypes,
	}, nil
}
