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

// ParOp is the closed union of parallel combinators. Every variant carries a
// width (its parallel trip count) and at least one lambda. The companion
// methods answer the queries the distribution engine and kernel lowering
// need without knowing the concrete variant; extend the operation set by
// adding union members implementing this interface.
type ParOp interface {
	isParOp()

	// Kind returns the combinator's name for diagnostics.
	Kind() string

	// Width returns the parallel trip count.
	Width() SubExp

	// Inputs returns the arrays the combinator iterates over.
	Inputs() []VName

	// ResultTypes returns the types the combinator produces, in pattern
	// order.
	ResultTypes() []Type

	// Free returns every name the combinator references.
	Free() NameSet

	// Consumed returns the names whose buffers the combinator overwrites.
	Consumed() NameSet
}

// Map applies Lam to corresponding elements of Arrs, producing arrays of
// the lambda's results.
type Map struct {
	W    SubExp
	Lam  Lambda
	Arrs []VName
}

// Reduce folds Arrs pairwise with Lam starting from Neutral. Comm records
// whether the combine function is commutative (associativity is assumed).
type Reduce struct {
	W       SubExp
	Comm    bool
	Lam     Lambda
	Neutral []SubExp
	Arrs    []VName
}

// Scan produces the inclusive prefix fold of Arrs under Lam. Comm records
// that Lam commutes; executors may reorder partial combines when it is set.
type Scan struct {
	W       SubExp
	Comm    bool
	Lam     Lambda
	Neutral []SubExp
	Arrs    []VName
}

// Redomap is a fused map-then-reduce: MapLam is applied to each element
// tuple and RedLam folds the transformed values.
type Redomap struct {
	W       SubExp
	Comm    bool
	RedLam  Lambda
	MapLam  Lambda
	Neutral []SubExp
	Arrs    []VName
}

// Stream folds Arrs one chunk at a time. Lam's parameters are the chunk
// size, the accumulators, and per-array chunk views; Accs are the initial
// accumulator values.
type Stream struct {
	W    SubExp
	Lam  Lambda
	Accs []SubExp
	Arrs []VName
}

// Write scatters values into Dests: for each i, Lam maps the i-th elements
// of Arrs to one index and one value per destination; out-of-bounds indices
// are dropped. The destination buffers are consumed.
type Write struct {
	W         SubExp
	Lam       Lambda
	Arrs      []VName
	Dests     []VName
	DestTypes []Type
}

func (*Map) isParOp()     {}
func (*Reduce) isParOp()  {}
func (*Scan) isParOp()    {}
func (*Redomap) isParOp() {}
func (*Stream) isParOp()  {}
func (*Write) isParOp()   {}

func (*Map) Kind() string     { return "map" }
func (*Reduce) Kind() string  { return "reduce" }
func (*Scan) Kind() string    { return "scan" }
func (*Redomap) Kind() string { return "redomap" }
func (*Stream) Kind() string  { return "stream" }
func (*Write) Kind() string   { return "write" }

func (op *Map) Width() SubExp     { return op.W }
func (op *Reduce) Width() SubExp  { return op.W }
func (op *Scan) Width() SubExp    { return op.W }
func (op *Redomap) Width() SubExp { return op.W }
func (op *Stream) Width() SubExp  { return op.W }
func (op *Write) Width() SubExp   { return op.W }

func (op *Map) Inputs() []VName     { return op.Arrs }
func (op *Reduce) Inputs() []VName  { return op.Arrs }
func (op *Scan) Inputs() []VName    { return op.Arrs }
func (op *Redomap) Inputs() []VName { return op.Arrs }
func (op *Stream) Inputs() []VName  { return op.Arrs }
func (op *Write) Inputs() []VName   { return op.Arrs }

// ResultTypes of a map are arrays of the lambda results over the width.
func (op *Map) ResultTypes() []Type {
	ts := make([]Type, len(op.Lam.RetTypes))
	for i, t := range op.Lam.RetTypes {
		ts[i] = ArrayOf(t, op.W)
	}
	return ts
}

func (op *Reduce) ResultTypes() []Type { return op.Lam.RetTypes }

// ResultTypes of a scan are arrays: one prefix per input element.
func (op *Scan) ResultTypes() []Type {
	ts := make([]Type, len(op.Lam.RetTypes))
	for i, t := range op.Lam.RetTypes {
		ts[i] = ArrayOf(t, op.W)
	}
	return ts
}

func (op *Redomap) ResultTypes() []Type { return op.RedLam.RetTypes }

func (op *Stream) ResultTypes() []Type { return op.Lam.RetTypes }

func (op *Write) ResultTypes() []Type { return op.DestTypes }

func (op *Map) Free() NameSet {
	return opFree(op.W, op.Arrs, nil, op.Lam)
}

func (op *Reduce) Free() NameSet {
	return opFree(op.W, op.Arrs, op.Neutral, op.Lam)
}

func (op *Scan) Free() NameSet {
	return opFree(op.W, op.Arrs, op.Neutral, op.Lam)
}

func (op *Redomap) Free() NameSet {
	fv := opFree(op.W, op.Arrs, op.Neutral, op.RedLam)
	fv.AddSet(FreeInLambda(op.MapLam))
	return fv
}

func (op *Stream) Free() NameSet {
	return opFree(op.W, op.Arrs, op.Accs, op.Lam)
}

func (op *Write) Free() NameSet {
	fv := opFree(op.W, op.Arrs, nil, op.Lam)
	fv.Add(op.Dests...)
	for _, t := range op.DestTypes {
		fv.AddSet(FreeInType(t))
	}
	return fv
}

func (op *Map) Consumed() NameSet     { return NameSet{} }
func (op *Reduce) Consumed() NameSet  { return NameSet{} }
func (op *Scan) Consumed() NameSet    { return NameSet{} }
func (op *Redomap) Consumed() NameSet { return NameSet{} }
func (op *Stream) Consumed() NameSet  { return NameSet{} }

// Consumed destinations of a scatter are overwritten in place.
func (op *Write) Consumed() NameSet { return NewNameSet(op.Dests...) }

func opFree(w SubExp, arrs []VName, ses []SubExp, lam Lambda) NameSet {
	fv := FreeInLambda(lam)
	fv.AddSet(FreeInSubExp(w))
	fv.Add(arrs...)
	for _, se := range ses {
		fv.AddSet(FreeInSubExp(se))
	}
	return fv
}

// IdentityLambda returns a lambda that passes its arguments through
// unchanged, one parameter per type.
func IdentityLambda(src *Source, types []PrimType) Lambda {
	params := make([]Param, len(types))
	res := make([]SubExp, len(types))
	rets := make([]Type, len(types))
	for i, t := range types {
		params[i] = Param{Name: src.Fresh("x"), Type: Prim(t)}
		res[i] = VarExp(params[i].Name)
		rets[i] = Prim(t)
	}
	return Lambda{
		Params:   params,
		Body:     Body{Result: res},
		RetTypes: rets,
	}
}

// BinOpLambda returns the two-parameter lambda (\a b -> a `op` b) over the
// given scalar type, the usual combine function of reductions and scans.
func BinOpLambda(src *Source, op BinOp, t PrimType) Lambda {
	a := Param{Name: src.Fresh("a"), Type: Prim(t)}
	b := Param{Name: src.Fresh("b"), Type: Prim(t)}
	r := src.Fresh("r")
	return Lambda{
		Params: []Param{a, b},
		Body: Body{
			Stmts: []Stmt{{
				Pat: Pattern{{Name: r, Type: Prim(t)}},
				Exp: &BinExp{Op: op, X: VarExp(a.Name), Y: VarExp(b.Name)},
			}},
			Result: []SubExp{VarExp(r)},
		},
		RetTypes: []Type{Prim(t)},
	}
}
