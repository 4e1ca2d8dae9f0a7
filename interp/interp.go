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

// Package interp evaluates the array IR directly. It provides the reference
// semantics that the lowered kernels must reproduce: the device simulator
// uses it to apply combine lambdas and kernel bodies, and differential tests
// compare lowered output against it.
package interp

import (
	"fmt"

	"github.com/ajroetker/flatwave/ir"
)

// Value is a scalar or a flat row-major array.
type Value interface {
	isValue()
}

// Scalar wraps a single primitive value.
type Scalar struct {
	V ir.PrimValue
}

func (Scalar) isValue() {}

// Array is a rank-n array stored flat in row-major order. Kernels executing
// on the simulated device share the backing slice, so concurrent threads
// writing disjoint positions behave like device global memory.
type Array struct {
	Elem ir.PrimType
	Dims []int64
	Data []ir.PrimValue
}

func (*Array) isValue() {}

// NewArray returns a zero-initialized array of the given shape.
func NewArray(elem ir.PrimType, dims []int64) *Array {
	n := int64(1)
	for _, d := range dims {
		n *= d
	}
	data := make([]ir.PrimValue, n)
	for i := range data {
		data[i] = ir.PrimValue{T: elem}
	}
	return &Array{Elem: elem, Dims: append([]int64(nil), dims...), Data: data}
}

// Size returns the total element count.
func (a *Array) Size() int64 {
	n := int64(1)
	for _, d := range a.Dims {
		n *= d
	}
	return n
}

// Clone returns an independent copy.
func (a *Array) Clone() *Array {
	return &Array{
		Elem: a.Elem,
		Dims: append([]int64(nil), a.Dims...),
		Data: append([]ir.PrimValue(nil), a.Data...),
	}
}

// Env is a chained name environment. The root env acts as global memory;
// each simulated thread evaluates in its own child env so locals never
// escape, while arrays bound in the root are shared.
type Env struct {
	parent *Env
	vals   map[ir.VName]Value
}

// NewEnv returns an environment chained onto parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, vals: map[ir.VName]Value{}}
}

// Bind records a value in this environment level.
func (e *Env) Bind(n ir.VName, v Value) {
	e.vals[n] = v
}

// Lookup resolves a name through the chain.
func (e *Env) Lookup(n ir.VName) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vals[n]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *Env) lookup(n ir.VName) (Value, error) {
	if v, ok := e.Lookup(n); ok {
		return v, nil
	}
	return nil, fmt.Errorf("interp: unbound name %s", n)
}

func (e *Env) lookupArray(n ir.VName) (*Array, error) {
	v, err := e.lookup(n)
	if err != nil {
		return nil, err
	}
	a, ok := v.(*Array)
	if !ok {
		return nil, fmt.Errorf("interp: %s is not an array", n)
	}
	return a, nil
}

// EvalSubExp evaluates a constant or variable operand.
func EvalSubExp(env *Env, se ir.SubExp) (Value, error) {
	switch se := se.(type) {
	case ir.Constant:
		return Scalar{V: se.Value}, nil
	case ir.Var:
		return env.lookup(se.Name)
	}
	return nil, fmt.Errorf("interp: unhandled operand %T", se)
}

// EvalInt evaluates an operand that must be an Int64 scalar.
func EvalInt(env *Env, se ir.SubExp) (int64, error) {
	v, err := EvalSubExp(env, se)
	if err != nil {
		return 0, err
	}
	s, ok := v.(Scalar)
	if !ok || s.V.T != ir.Int64 {
		return 0, fmt.Errorf("interp: %s is not an i64", se)
	}
	return s.V.Int, nil
}

// EvalBody evaluates a body's statements in order, binding each pattern,
// and returns the result values.
func EvalBody(env *Env, b ir.Body) ([]Value, error) {
	for _, s := range b.Stmts {
		if err := EvalStmt(env, s); err != nil {
			return nil, err
		}
	}
	res := make([]Value, len(b.Result))
	for i, r := range b.Result {
		v, err := EvalSubExp(env, r)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

// EvalStmt evaluates one statement and binds its pattern in env.
func EvalStmt(env *Env, s ir.Stmt) error {
	vals, err := EvalExp(env, s.Exp)
	if err != nil {
		return err
	}
	if len(vals) != len(s.Pat) {
		return fmt.Errorf("interp: pattern arity %d does not match %d results",
			len(s.Pat), len(vals))
	}
	for i, pe := range s.Pat {
		env.Bind(pe.Name, vals[i])
	}
	return nil
}

// Apply evaluates a lambda on the given arguments.
func Apply(env *Env, lam ir.Lambda, args []Value) ([]Value, error) {
	if len(args) != len(lam.Params) {
		return nil, fmt.Errorf("interp: lambda arity %d applied to %d arguments",
			len(lam.Params), len(args))
	}
	inner := NewEnv(env)
	for i, p := range lam.Params {
		inner.Bind(p.Name, args[i])
	}
	return EvalBody(inner, lam.Body)
}

// EvalExp evaluates one expression to its (possibly multiple) values.
func EvalExp(env *Env, e ir.Exp) ([]Value, error) {
	switch e := e.(type) {
	case *ir.SubExpOp:
		v, err := EvalSubExp(env, e.SE)
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil

	case *ir.UnExp:
		x, err := evalScalar(env, e.X)
		if err != nil {
			return nil, err
		}
		v, err := evalUnOp(e.Op, x)
		if err != nil {
			return nil, err
		}
		return []Value{Scalar{V: v}}, nil

	case *ir.BinExp:
		x, err := evalScalar(env, e.X)
		if err != nil {
			return nil, err
		}
		y, err := evalScalar(env, e.Y)
		if err != nil {
			return nil, err
		}
		v, err := EvalBinOp(e.Op, x, y)
		if err != nil {
			return nil, err
		}
		return []Value{Scalar{V: v}}, nil

	case *ir.CmpExp:
		x, err := evalScalar(env, e.X)
		if err != nil {
			return nil, err
		}
		y, err := evalScalar(env, e.Y)
		if err != nil {
			return nil, err
		}
		v, err := evalCmpOp(e.Op, x, y)
		if err != nil {
			return nil, err
		}
		return []Value{Scalar{V: v}}, nil

	case *ir.IndexExp:
		arr, err := env.lookupArray(e.Array)
		if err != nil {
			return nil, err
		}
		v, err := indexArray(env, arr, e.Indices)
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil

	case *ir.UpdateExp:
		arr, err := env.lookupArray(e.Array)
		if err != nil {
			return nil, err
		}
		out, err := updateArray(env, arr, e.Indices, e.Value)
		if err != nil {
			return nil, err
		}
		return []Value{out}, nil

	case *ir.IotaExp:
		n, err := EvalInt(env, e.N)
		if err != nil {
			return nil, err
		}
		out := NewArray(ir.Int64, []int64{n})
		for i := int64(0); i < n; i++ {
			out.Data[i] = ir.IntValue(i)
		}
		return []Value{out}, nil

	case *ir.ReplicateExp:
		n, err := EvalInt(env, e.N)
		if err != nil {
			return nil, err
		}
		v, err := EvalSubExp(env, e.V)
		if err != nil {
			return nil, err
		}
		return []Value{replicate(n, v)}, nil

	case *ir.ScratchExp:
		dims, err := evalDims(env, e.Shape)
		if err != nil {
			return nil, err
		}
		return []Value{NewArray(e.Elem, dims)}, nil

	case *ir.RearrangeExp:
		arr, err := env.lookupArray(e.Array)
		if err != nil {
			return nil, err
		}
		out, err := rearrange(arr, e.Perm)
		if err != nil {
			return nil, err
		}
		return []Value{out}, nil

	case *ir.CopyExp:
		arr, err := env.lookupArray(e.Array)
		if err != nil {
			return nil, err
		}
		return []Value{arr.Clone()}, nil

	case *ir.IfExp:
		c, err := evalScalar(env, e.Cond)
		if err != nil {
			return nil, err
		}
		if c.T != ir.Bool {
			return nil, fmt.Errorf("interp: if condition is %s, not bool", c.T)
		}
		if c.Bool {
			return EvalBody(NewEnv(env), e.Then)
		}
		return EvalBody(NewEnv(env), e.Else)

	case *ir.LoopExp:
		return evalLoop(env, e)

	case *ir.ParExp:
		return evalParOp(env, e.Op)

	default:
		return nil, fmt.Errorf("interp: unhandled expression %T", e)
	}
}

func evalScalar(env *Env, se ir.SubExp) (ir.PrimValue, error) {
	v, err := EvalSubExp(env, se)
	if err != nil {
		return ir.PrimValue{}, err
	}
	s, ok := v.(Scalar)
	if !ok {
		return ir.PrimValue{}, fmt.Errorf("interp: %s is not a scalar", se)
	}
	return s.V, nil
}

func evalDims(env *Env, shape []ir.SubExp) ([]int64, error) {
	dims := make([]int64, len(shape))
	for i, d := range shape {
		n, err := EvalInt(env, d)
		if err != nil {
			return nil, err
		}
		dims[i] = n
	}
	return dims, nil
}

// EvalBinOp applies a binary operation to two scalars of the same type.
func EvalBinOp(op ir.BinOp, x, y ir.PrimValue) (ir.PrimValue, error) {
	if x.T != y.T {
		return ir.PrimValue{}, fmt.Errorf("interp: %s applied to %s and %s", op, x.T, y.T)
	}
	switch x.T {
	case ir.Int64:
		switch op {
		case ir.Add:
			return ir.IntValue(x.Int + y.Int), nil
		case ir.Sub:
			return ir.IntValue(x.Int - y.Int), nil
		case ir.Mul:
			return ir.IntValue(x.Int * y.Int), nil
		case ir.Div:
			if y.Int == 0 {
				return ir.PrimValue{}, fmt.Errorf("interp: division by zero")
			}
			return ir.IntValue(x.Int / y.Int), nil
		case ir.Min:
			return ir.IntValue(min(x.Int, y.Int)), nil
		case ir.Max:
			return ir.IntValue(max(x.Int, y.Int)), nil
		}
	case ir.Float64:
		switch op {
		case ir.Add:
			return ir.FloatValue(x.Float + y.Float), nil
		case ir.Sub:
			return ir.FloatValue(x.Float - y.Float), nil
		case ir.Mul:
			return ir.FloatValue(x.Float * y.Float), nil
		case ir.Div:
			return ir.FloatValue(x.Float / y.Float), nil
		case ir.Min:
			return ir.FloatValue(min(x.Float, y.Float)), nil
		case ir.Max:
			return ir.FloatValue(max(x.Float, y.Float)), nil
		}
	case ir.Bool:
		switch op {
		case ir.LogAnd:
			return ir.BoolValue(x.Bool && y.Bool), nil
		case ir.LogOr:
			return ir.BoolValue(x.Bool || y.Bool), nil
		}
	}
	return ir.PrimValue{}, fmt.Errorf("interp: %s not defined on %s", op, x.T)
}

func evalUnOp(op ir.UnOp, x ir.PrimValue) (ir.PrimValue, error) {
	switch op {
	case ir.Neg:
		switch x.T {
		case ir.Int64:
			return ir.IntValue(-x.Int), nil
		case ir.Float64:
			return ir.FloatValue(-x.Float), nil
		}
	case ir.Not:
		if x.T == ir.Bool {
			return ir.BoolValue(!x.Bool), nil
		}
	}
	return ir.PrimValue{}, fmt.Errorf("interp: %s not defined on %s", op, x.T)
}

func evalCmpOp(op ir.CmpOp, x, y ir.PrimValue) (ir.PrimValue, error) {
	if x.T != y.T {
		return ir.PrimValue{}, fmt.Errorf("interp: %s applied to %s and %s", op, x.T, y.T)
	}
	switch x.T {
	case ir.Int64:
		switch op {
		case ir.CmpEq:
			return ir.BoolValue(x.Int == y.Int), nil
		case ir.CmpLt:
			return ir.BoolValue(x.Int < y.Int), nil
		case ir.CmpLe:
			return ir.BoolValue(x.Int <= y.Int), nil
		}
	case ir.Float64:
		switch op {
		case ir.CmpEq:
			return ir.BoolValue(x.Float == y.Float), nil
		case ir.CmpLt:
			return ir.BoolValue(x.Float < y.Float), nil
		case ir.CmpLe:
			return ir.BoolValue(x.Float <= y.Float), nil
		}
	case ir.Bool:
		if op == ir.CmpEq {
			return ir.BoolValue(x.Bool == y.Bool), nil
		}
	}
	return ir.PrimValue{}, fmt.Errorf("interp: %s not defined on %s", op, x.T)
}

func indexArray(env *Env, arr *Array, indices []ir.SubExp) (Value, error) {
	if len(indices) > len(arr.Dims) {
		return nil, fmt.Errorf("interp: %d indices into rank-%d array", len(indices), len(arr.Dims))
	}
	off := int64(0)
	stride := arr.Size()
	for i, ixse := range indices {
		ix, err := EvalInt(env, ixse)
		if err != nil {
			return nil, err
		}
		if ix < 0 || ix >= arr.Dims[i] {
			return nil, fmt.Errorf("interp: index %d out of bounds [0, %d)", ix, arr.Dims[i])
		}
		stride /= arr.Dims[i]
		off += ix * stride
	}
	if len(indices) == len(arr.Dims) {
		return Scalar{V: arr.Data[off]}, nil
	}
	sub := NewArray(arr.Elem, arr.Dims[len(indices):])
	copy(sub.Data, arr.Data[off:off+sub.Size()])
	return sub, nil
}

func updateArray(env *Env, arr *Array, indices []ir.SubExp, value ir.SubExp) (*Array, error) {
	out := arr.Clone()
	off := int64(0)
	stride := arr.Size()
	for i, ixse := range indices {
		ix, err := EvalInt(env, ixse)
		if err != nil {
			return nil, err
		}
		if ix < 0 || ix >= arr.Dims[i] {
			return nil, fmt.Errorf("interp: update index %d out of bounds [0, %d)", ix, arr.Dims[i])
		}
		stride /= arr.Dims[i]
		off += ix * stride
	}
	v, err := EvalSubExp(env, value)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case Scalar:
		if len(indices) != len(arr.Dims) {
			return nil, fmt.Errorf("interp: scalar update with partial index")
		}
		out.Data[off] = v.V
	case *Array:
		if v.Size() != stride {
			return nil, fmt.Errorf("interp: block update size %d does not fit %d", v.Size(), stride)
		}
		copy(out.Data[off:off+stride], v.Data)
	}
	return out, nil
}

func replicate(n int64, v Value) *Array {
	switch v := v.(type) {
	case Scalar:
		out := NewArray(v.V.T, []int64{n})
		for i := range out.Data {
			out.Data[i] = v.V
		}
		return out
	case *Array:
		out := NewArray(v.Elem, append([]int64{n}, v.Dims...))
		sz := v.Size()
		for i := int64(0); i < n; i++ {
			copy(out.Data[i*sz:(i+1)*sz], v.Data)
		}
		return out
	}
	return nil
}

func rearrange(arr *Array, perm []int) (*Array, error) {
	if len(perm) != len(arr.Dims) {
		return nil, fmt.Errorf("interp: permutation rank %d on rank-%d array", len(perm), len(arr.Dims))
	}
	outDims := make([]int64, len(perm))
	for i, p := range perm {
		outDims[i] = arr.Dims[p]
	}
	out := NewArray(arr.Elem, outDims)
	srcStrides := rowMajorStrides(arr.Dims)
	n := arr.Size()
	idx := make([]int64, len(outDims))
	for flat := int64(0); flat < n; flat++ {
		unflatten(flat, outDims, idx)
		src := int64(0)
		for i, p := range perm {
			src += idx[i] * srcStrides[p]
		}
		out.Data[flat] = arr.Data[src]
	}
	return out, nil
}

func rowMajorStrides(dims []int64) []int64 {
	strides := make([]int64, len(dims))
	s := int64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = s
		s *= dims[i]
	}
	return strides
}

func unflatten(flat int64, dims []int64, out []int64) {
	for i := len(dims) - 1; i >= 0; i-- {
		out[i] = flat % dims[i]
		flat /= dims[i]
	}
}

func evalLoop(env *Env, e *ir.LoopExp) ([]Value, error) {
	bound, err := EvalInt(env, e.Bound)
	if err != nil {
		return nil, err
	}
	inner := NewEnv(env)
	cur := make([]Value, len(e.Merge))
	for i, mp := range e.Merge {
		v, err := EvalSubExp(env, mp.Init)
		if err != nil {
			return nil, err
		}
		cur[i] = v
	}
	for it := int64(0); it < bound; it++ {
		inner.Bind(e.IndexVar, Scalar{V: ir.IntValue(it)})
		for i, mp := range e.Merge {
			inner.Bind(mp.Param.Name, cur[i])
		}
		vals, err := EvalBody(inner, e.Body)
		if err != nil {
			return nil, err
		}
		if len(vals) != len(e.Merge) {
			return nil, fmt.Errorf("interp: loop body yields %d values for %d merge parameters",
				len(vals), len(e.Merge))
		}
		cur = vals
	}
	return cur, nil
}

func evalParOp(env *Env, op ir.ParOp) ([]Value, error) {
	switch op := op.(type) {
	case *ir.Map:
		return evalMap(env, op)
	case *ir.Reduce:
		return evalFold(env, op.W, op.Lam, ir.Lambda{}, false, op.Neutral, op.Arrs)
	case *ir.Scan:
		return evalScan(env, op)
	case *ir.Redomap:
		return evalFold(env, op.W, op.RedLam, op.MapLam, true, op.Neutral, op.Arrs)
	case *ir.Stream:
		return evalStream(env, op)
	case *ir.Write:
		return evalWrite(env, op)
	default:
		return nil, fmt.Errorf("interp: unhandled combinator %T", op)
	}
}

func elemArgs(env *Env, arrs []ir.VName, i int64) ([]Value, error) {
	args := make([]Value, len(arrs))
	for k, a := range arrs {
		arr, err := env.lookupArray(a)
		if err != nil {
			return nil, err
		}
		v, err := indexArray(env, arr, []ir.SubExp{ir.IntConst(i)})
		if err != nil {
			return nil, err
		}
		args[k] = v
	}
	return args, nil
}

func evalMap(env *Env, op *ir.Map) ([]Value, error) {
	w, err := EvalInt(env, op.W)
	if err != nil {
		return nil, err
	}
	outs := make([]*Array, len(op.Lam.RetTypes))
	for i := int64(0); i < w; i++ {
		args, err := elemArgs(env, op.Arrs, i)
		if err != nil {
			return nil, err
		}
		vals, err := Apply(env, op.Lam, args)
		if err != nil {
			return nil, err
		}
		for j, v := range vals {
			if outs[j] == nil {
				outs[j] = allocMapOut(v, w, op.Lam.RetTypes[j].Elem)
			}
			writeMapOut(outs[j], i, v)
		}
	}
	res := make([]Value, len(op.Lam.RetTypes))
	for j := range res {
		if outs[j] == nil {
			// Width zero: shapes must still be resolvable.
			dims, err := evalDims(env, op.Lam.RetTypes[j].Shape)
			if err != nil {
				return nil, err
			}
			outs[j] = NewArray(op.Lam.RetTypes[j].Elem, append([]int64{0}, dims...))
		}
		res[j] = outs[j]
	}
	return res, nil
}

func allocMapOut(v Value, w int64, elem ir.PrimType) *Array {
	switch v := v.(type) {
	case Scalar:
		return NewArray(elem, []int64{w})
	case *Array:
		return NewArray(elem, append([]int64{w}, v.Dims...))
	}
	return nil
}

func writeMapOut(out *Array, i int64, v Value) {
	switch v := v.(type) {
	case Scalar:
		out.Data[i] = v.V
	case *Array:
		sz := v.Size()
		copy(out.Data[i*sz:(i+1)*sz], v.Data)
	}
}

func evalFold(env *Env, w ir.SubExp, redLam, mapLam ir.Lambda, hasMap bool,
	neutral []ir.SubExp, arrs []ir.VName) ([]Value, error) {
	n, err := EvalInt(env, w)
	if err != nil {
		return nil, err
	}
	acc := make([]Value, len(neutral))
	for i, ne := range neutral {
		v, err := EvalSubExp(env, ne)
		if err != nil {
			return nil, err
		}
		acc[i] = v
	}
	for i := int64(0); i < n; i++ {
		args, err := elemArgs(env, arrs, i)
		if err != nil {
			return nil, err
		}
		if hasMap {
			args, err = Apply(env, mapLam, args)
			if err != nil {
				return nil, err
			}
		}
		acc, err = Apply(env, redLam, append(append([]Value{}, acc...), args...))
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func evalScan(env *Env, op *ir.Scan) ([]Value, error) {
	n, err := EvalInt(env, op.W)
	if err != nil {
		return nil, err
	}
	acc := make([]Value, len(op.Neutral))
	for i, ne := range op.Neutral {
		v, err := EvalSubExp(env, ne)
		if err != nil {
			return nil, err
		}
		acc[i] = v
	}
	outs := make([]*Array, len(acc))
	for j, t := range op.Lam.RetTypes {
		outs[j] = NewArray(t.Elem, []int64{n})
	}
	for i := int64(0); i < n; i++ {
		args, err := elemArgs(env, op.Arrs, i)
		if err != nil {
			return nil, err
		}
		acc, err = Apply(env, op.Lam, append(append([]Value{}, acc...), args...))
		if err != nil {
			return nil, err
		}
		for j, v := range acc {
			s, ok := v.(Scalar)
			if !ok {
				return nil, fmt.Errorf("interp: scan over non-scalar accumulator")
			}
			outs[j].Data[i] = s.V
		}
	}
	res := make([]Value, len(outs))
	for j, o := range outs {
		res[j] = o
	}
	return res, nil
}

func evalStream(env *Env, op *ir.Stream) ([]Value, error) {
	// Reference semantics: one chunk covering the whole width.
	w, err := EvalSubExp(env, op.W)
	if err != nil {
		return nil, err
	}
	args := []Value{w}
	for _, acc := range op.Accs {
		v, err := EvalSubExp(env, acc)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	for _, a := range op.Arrs {
		arr, err := env.lookupArray(a)
		if err != nil {
			return nil, err
		}
		args = append(args, arr)
	}
	return Apply(env, op.Lam, args)
}

func evalWrite(env *Env, op *ir.Write) ([]Value, error) {
	n, err := EvalInt(env, op.W)
	if err != nil {
		return nil, err
	}
	outs := make([]*Array, len(op.Dests))
	for j, d := range op.Dests {
		arr, err := env.lookupArray(d)
		if err != nil {
			return nil, err
		}
		outs[j] = arr.Clone()
	}
	for i := int64(0); i < n; i++ {
		args, err := elemArgs(env, op.Arrs, i)
		if err != nil {
			return nil, err
		}
		vals, err := Apply(env, op.Lam, args)
		if err != nil {
			return nil, err
		}
		if len(vals) != 2*len(op.Dests) {
			return nil, fmt.Errorf("interp: write lambda yields %d values for %d destinations",
				len(vals), len(op.Dests))
		}
		for j := range op.Dests {
			ixv, ok := vals[j].(Scalar)
			if !ok || ixv.V.T != ir.Int64 {
				return nil, fmt.Errorf("interp: write index is not an i64")
			}
			ix := ixv.V.Int
			if ix < 0 || ix >= outs[j].Dims[0] {
				continue // out-of-bounds writes are dropped
			}
			vv, ok := vals[len(op.Dests)+j].(Scalar)
			if !ok {
				return nil, fmt.Errorf("interp: write value is not a scalar")
			}
			outs[j].Data[ix] = vv.V
		}
	}
	res := make([]Value, len(outs))
	for j, o := range outs {
		res[j] = o
	}
	return res, nil
}
