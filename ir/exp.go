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

// BinOp enumerates binary scalar operations.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Min
	Max
	LogAnd
	LogOr
)

// String returns the operation mnemonic.
func (op BinOp) String() string {
	switch op {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Min:
		return "min"
	case Max:
		return "max"
	case LogAnd:
		return "and"
	case LogOr:
		return "or"
	default:
		return fmt.Sprintf("BinOp(%d)", int(op))
	}
}

// UnOp enumerates unary scalar operations.
type UnOp int

const (
	Neg UnOp = iota
	Not
)

// String returns the operation mnemonic.
func (op UnOp) String() string {
	switch op {
	case Neg:
		return "neg"
	case Not:
		return "not"
	default:
		return fmt.Sprintf("UnOp(%d)", int(op))
	}
}

// CmpOp enumerates comparison operations; all produce Bool.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpLt
	CmpLe
)

// String returns the operation mnemonic.
func (op CmpOp) String() string {
	switch op {
	case CmpEq:
		return "eq"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	default:
		return fmt.Sprintf("CmpOp(%d)", int(op))
	}
}

// Exp is the closed union of expression forms. Extend by adding union
// members; every analysis dispatches with a type switch.
type Exp interface {
	isExp()
}

// SubExpOp evaluates to its operand unchanged.
type SubExpOp struct {
	SE SubExp
}

// UnExp applies a unary scalar operation.
type UnExp struct {
	Op UnOp
	X  SubExp
}

// BinExp applies a binary scalar operation.
type BinExp struct {
	Op   BinOp
	X, Y SubExp
}

// CmpExp applies a comparison.
type CmpExp struct {
	Op   CmpOp
	X, Y SubExp
}

// IndexExp reads from an array. Fewer indices than the array's rank yield
// the remaining sub-array.
type IndexExp struct {
	Array   VName
	Indices []SubExp
}

// UpdateExp produces a copy of an array with one position (or sub-array,
// for partial indexing) replaced.
type UpdateExp struct {
	Array   VName
	Indices []SubExp
	Value   SubExp
}

// IotaExp produces the array [0, 1, ..., N-1] of Int64.
type IotaExp struct {
	N SubExp
}

// ReplicateExp produces an array of N copies of V.
type ReplicateExp struct {
	N SubExp
	V SubExp
}

// ScratchExp produces an uninitialized array; the sequentializer uses it as
// the destination a loop writes into.
type ScratchExp struct {
	Elem  PrimType
	Shape []SubExp
}

// RearrangeExp permutes the dimensions of an array. Perm maps result
// dimension to source dimension; [1,0] is a rank-2 transpose.
type RearrangeExp struct {
	Perm  []int
	Array VName
}

// CopyExp produces a fresh copy of an array in new memory.
type CopyExp struct {
	Array VName
}

// IfExp chooses between two bodies on a boolean operand.
type IfExp struct {
	Cond SubExp
	Then Body
	Else Body
}

// LoopExp is a bounded sequential loop. Merge values are bound to the merge
// parameters on entry, rebound to the body result after each iteration, and
// are the value of the expression after Bound iterations. IndexVar counts
// from 0.
type LoopExp struct {
	Merge    []MergeParam
	Bound    SubExp
	IndexVar VName
	Body     Body
}

// ParExp wraps a parallel combinator.
type ParExp struct {
	Op ParOp
}

func (*SubExpOp) isExp()     {}
func (*UnExp) isExp()        {}
func (*BinExp) isExp()       {}
func (*CmpExp) isExp()       {}
func (*IndexExp) isExp()     {}
func (*UpdateExp) isExp()    {}
func (*IotaExp) isExp()      {}
func (*ReplicateExp) isExp() {}
func (*ScratchExp) isExp()   {}
func (*RearrangeExp) isExp() {}
func (*CopyExp) isExp()      {}
func (*IfExp) isExp()        {}
func (*LoopExp) isExp()      {}
func (*ParExp) isExp()       {}

// IsIdentityPerm reports whether perm maps every dimension to itself.
func IsIdentityPerm(perm []int) bool {
	for i, p := range perm {
		if i != p {
			return false
		}
	}
	return true
}
