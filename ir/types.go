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

import (
	"fmt"
	"strings"
)

// PrimType enumerates the scalar element types of the IR.
type PrimType int

const (
	// Bool is the boolean type, also used for comparison results.
	Bool PrimType = iota

	// Int64 is the only integer type; widths and indices are Int64.
	Int64

	// Float64 is the only floating-point type.
	Float64

	// Cert is the type of runtime-check tokens ("certificates"). Values of
	// this type carry no data; they only thread safety obligations.
	Cert
)

// String returns the printed form of the type.
func (t PrimType) String() string {
	switch t {
	case Bool:
		return "bool"
	case Int64:
		return "i64"
	case Float64:
		return "f64"
	case Cert:
		return "cert"
	default:
		return fmt.Sprintf("PrimType(%d)", int(t))
	}
}

// Size returns the byte size of a value of this type in device memory.
func (t PrimType) Size() int64 {
	switch t {
	case Bool, Cert:
		return 1
	default:
		return 8
	}
}

// PrimValue is a scalar constant.
type PrimValue struct {
	T     PrimType
	Bool  bool
	Int   int64
	Float float64
}

// BoolValue returns a Bool constant.
func BoolValue(b bool) PrimValue { return PrimValue{T: Bool, Bool: b} }

// IntValue returns an Int64 constant.
func IntValue(i int64) PrimValue { return PrimValue{T: Int64, Int: i} }

// FloatValue returns a Float64 constant.
func FloatValue(f float64) PrimValue { return PrimValue{T: Float64, Float: f} }

// String returns the printed form of the constant.
func (v PrimValue) String() string {
	switch v.T {
	case Bool:
		return fmt.Sprintf("%t", v.Bool)
	case Int64:
		return fmt.Sprintf("%di64", v.Int)
	case Float64:
		return fmt.Sprintf("%gf64", v.Float)
	case Cert:
		return "cert"
	default:
		return "?"
	}
}

// Equal reports whether two constants are identical.
func (v PrimValue) Equal(o PrimValue) bool {
	return v.T == o.T && v.Bool == o.Bool && v.Int == o.Int && v.Float == o.Float
}

// SubExp is either a constant or a variable: the only operand forms
// expressions may embed.
type SubExp interface {
	isSubExp()
	String() string
}

// Constant is a literal scalar operand.
type Constant struct {
	Value PrimValue
}

func (Constant) isSubExp() {}

func (c Constant) String() string { return c.Value.String() }

// Var is a variable operand.
type Var struct {
	Name VName
}

func (Var) isSubExp() {}

func (v Var) String() string { return v.Name.String() }

// IntConst returns an Int64 constant operand.
func IntConst(i int64) SubExp { return Constant{Value: IntValue(i)} }

// FloatConst returns a Float64 constant operand.
func FloatConst(f float64) SubExp { return Constant{Value: FloatValue(f)} }

// BoolConst returns a Bool constant operand.
func BoolConst(b bool) SubExp { return Constant{Value: BoolValue(b)} }

// VarExp returns a variable operand.
func VarExp(n VName) SubExp { return Var{Name: n} }

// SameSubExp reports whether two operands are syntactically identical.
func SameSubExp(a, b SubExp) bool {
	switch av := a.(type) {
	case Constant:
		bv, ok := b.(Constant)
		return ok && av.Value.Equal(bv.Value)
	case Var:
		bv, ok := b.(Var)
		return ok && av.Name == bv.Name
	}
	return false
}

// Type is a scalar or multi-dimensional array type. Rank 0 means scalar;
// otherwise Shape holds the extents, outermost first. Extents are SubExps
// because shapes may be symbolic.
type Type struct {
	Elem  PrimType
	Shape []SubExp
}

// Prim returns the scalar type of pt.
func Prim(pt PrimType) Type { return Type{Elem: pt} }

// ArrayOf returns t with an extra outer dimension of extent w.
func ArrayOf(t Type, w SubExp) Type {
	shape := make([]SubExp, 0, len(t.Shape)+1)
	shape = append(shape, w)
	shape = append(shape, t.Shape...)
	return Type{Elem: t.Elem, Shape: shape}
}

// Rank returns the number of array dimensions.
func (t Type) Rank() int { return len(t.Shape) }

// IsScalar reports whether t has no array dimensions.
func (t Type) IsScalar() bool { return len(t.Shape) == 0 }

// RowType returns the type of one element along the outer dimension.
// Calling it on a scalar is an internal error.
func (t Type) RowType() Type {
	if t.IsScalar() {
		panic("ir: RowType of scalar type")
	}
	return Type{Elem: t.Elem, Shape: t.Shape[1:]}
}

// PeelDims returns the type with the n outermost dimensions removed.
func (t Type) PeelDims(n int) Type {
	if n > len(t.Shape) {
		panic("ir: PeelDims past rank")
	}
	return Type{Elem: t.Elem, Shape: t.Shape[n:]}
}

// String returns the printed form, e.g. "[n_1][4i64]f64".
func (t Type) String() string {
	var sb strings.Builder
	for _, d := range t.Shape {
		fmt.Fprintf(&sb, "[%s]", d)
	}
	sb.WriteString(t.Elem.String())
	return sb.String()
}

// Param is a lambda or loop parameter.
type Param struct {
	Name VName
	Type Type
}

// String returns "name: type".
func (p Param) String() string {
	return fmt.Sprintf("%s: %s", p.Name, p.Type)
}

// PatElem is one element of a statement pattern: a name bound to a result,
// with its declared type.
type PatElem struct {
	Name VName
	Type Type
}

// Pattern is the ordered list of names a statement binds.
type Pattern []PatElem

// Names returns the bound names in pattern order.
func (p Pattern) Names() []VName {
	names := make([]VName, len(p))
	for i, pe := range p {
		names[i] = pe.Name
	}
	return names
}

// Stmt binds a pattern to the value of an expression. Certs are the
// runtime-check tokens that must hold before the expression may execute.
type Stmt struct {
	Pat   Pattern
	Certs []VName
	Exp   Exp
}

// Body is an ordered statement sequence plus its result operands. Bodies are
// referentially transparent: statement order only needs to respect data
// dependencies.
type Body struct {
	Stmts  []Stmt
	Result []SubExp
}

// Lambda is the payload of a combinator: parameters, a body, and the
// declared types of the body result.
type Lambda struct {
	Params   []Param
	Body     Body
	RetTypes []Type
}

// MergeParam is one loop-carried value of a bounded loop: the parameter it
// is visible as inside the body, and its initial value.
type MergeParam struct {
	Param Param
	Init  SubExp
}
