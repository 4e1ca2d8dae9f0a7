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

// Package kernel defines the descriptors a committed parallel construct
// lowers to, the sizing and use computation for each launch, and the
// bulk-copy specialization. Descriptors are what the runtime executes;
// nothing here makes parallelization decisions.
package kernel

import "github.com/ajroetker/flatwave/ir"

// Dim is one flattened parallel dimension of a kernel, outermost first.
// Index is the name the device body sees for its coordinate along Width.
type Dim struct {
	Index ir.VName
	Width ir.SubExp
}

// Kernel is the closed union of kernel descriptors.
type Kernel interface {
	isKernel()
	Kind() string
	// Dests are the global arrays (or scalars, for reductions) the host
	// binds after the launch completes.
	Dests() ir.Pattern
}

// MapKernel runs Body once per point of the iteration space spanned by
// Dims, one point per thread. Result j of the body is written to
// Dests[j] at the point's indices.
type MapKernel struct {
	Dims []Dim
	Body ir.Body
	Dest ir.Pattern
	// Certs are the bounds-check tokens of the collapsed parallel levels.
	// They witness host-side checks and never travel to the device.
	Certs []ir.VName
	Uses  []Use
}

// ChunkedMapKernel is a MapKernel over a flat space too large for one
// thread per element: the grid is fixed and each thread handles
// elements-per-thread consecutive flat indices.
type ChunkedMapKernel struct {
	Dims  []Dim
	Body  ir.Body
	Dest  ir.Pattern
	Certs []ir.VName
	Uses  []Use
	// MaxThreads caps the grid; sizing derives elements per thread from it.
	MaxThreads int64
}

// ReduceKernel folds W elements with RedLam after applying MapLam to each,
// one result set per group; the host folds group results in group order.
type ReduceKernel struct {
	W       ir.SubExp
	Comm    bool
	RedLam  ir.Lambda
	MapLam  ir.Lambda
	Neutral []ir.SubExp
	Arrs    []ir.VName
	Dest    ir.Pattern
	Uses    []Use
}

// ScanLayout selects how a scan kernel's per-thread chunks interleave in
// the flat output.
type ScanLayout int

const (
	// ThreadMajor stores thread t's j-th element at t*ept + j.
	ThreadMajor ScanLayout = iota
	// ChunkMajor stores thread t's j-th element at j*threads + t.
	ChunkMajor
)

func (l ScanLayout) String() string {
	switch l {
	case ThreadMajor:
		return "thread-major"
	case ChunkMajor:
		return "chunk-major"
	}
	return "unknown"
}

// ScanKernel computes a group-local inclusive prefix with Lam; per-group
// totals come back to the host, which propagates carries across groups.
// The executor is order-preserving either way; Comm licenses layouts that
// reorder partial combines.
type ScanKernel struct {
	W       ir.SubExp
	Comm    bool
	Lam     ir.Lambda
	Neutral []ir.SubExp
	Arrs    []ir.VName
	Dest    ir.Pattern
	Layout  ScanLayout
	Uses    []Use
}

// View is a possibly-permuted window over a contiguous backing array with
// concrete extents. Perm maps view dimension to backing dimension.
type View struct {
	Name   ir.VName
	Elem   ir.PrimType
	Dims   []int64
	Perm   []int
	Offset int64
}

// Contiguous reports whether the view reads its backing in order.
func (v View) Contiguous() bool {
	return ir.IsIdentityPerm(v.Perm)
}

// Size returns the element count of the view.
func (v View) Size() int64 {
	n := int64(1)
	for _, d := range v.Dims {
		n *= d
	}
	return n
}

// TransposeKernel copies Blocks contiguous Rows x Cols matrices from Src,
// transposing each into Dst. Group-local tiles keep both the read and the
// write side coalesced.
type TransposeKernel struct {
	Dst, Src View
	Blocks   int64
	Rows     int64
	Cols     int64
	DestPat  ir.Pattern
	Uses     []Use
}

// ByteCopyKernel copies a flat byte range between two contiguous views.
type ByteCopyKernel struct {
	Dst, Src View
	Bytes    int64
	DestPat  ir.Pattern
	Uses     []Use
}

// GenericCopyKernel is the element-wise copy fallback: each thread flattens
// its index, unflattens it into the iteration space, and performs one
// strided read and one strided write.
type GenericCopyKernel struct {
	Dst, Src View
	DestPat  ir.Pattern
	Uses     []Use
}

func (*MapKernel) isKernel()         {}
func (*ChunkedMapKernel) isKernel()  {}
func (*ReduceKernel) isKernel()      {}
func (*ScanKernel) isKernel()        {}
func (*TransposeKernel) isKernel()   {}
func (*ByteCopyKernel) isKernel()    {}
func (*GenericCopyKernel) isKernel() {}

func (*MapKernel) Kind() string         { return "map" }
func (*ChunkedMapKernel) Kind() string  { return "chunked-map" }
func (*ReduceKernel) Kind() string      { return "reduce" }
func (*ScanKernel) Kind() string        { return "scan" }
func (*TransposeKernel) Kind() string   { return "transpose" }
func (*ByteCopyKernel) Kind() string    { return "byte-copy" }
func (*GenericCopyKernel) Kind() string { return "generic-copy" }

func (k *MapKernel) Dests() ir.Pattern         { return k.Dest }
func (k *ChunkedMapKernel) Dests() ir.Pattern  { return k.Dest }
func (k *ReduceKernel) Dests() ir.Pattern      { return k.Dest }
func (k *ScanKernel) Dests() ir.Pattern        { return k.Dest }
func (k *TransposeKernel) Dests() ir.Pattern   { return k.DestPat }
func (k *ByteCopyKernel) Dests() ir.Pattern    { return k.DestPat }
func (k *GenericCopyKernel) Dests() ir.Pattern { return k.DestPat }

// FlatWidth returns the compile-time flat width of the dims, or -1 when
// any width is symbolic.
func FlatWidth(dims []Dim) int64 {
	n := int64(1)
	for _, d := range dims {
		c, ok := d.Width.(ir.Constant)
		if !ok || c.Value.T != ir.Int64 {
			return -1
		}
		n *= c.Value.Int
	}
	return n
}

// Virtualize caps a map kernel's grid: when the flat width is known at
// compile time and exceeds maxThreads, the kernel becomes chunked so each
// thread loops over several elements. Symbolic widths stay one-per-thread;
// the runtime re-checks at launch.
func Virtualize(mk *MapKernel, maxThreads int64) Kernel {
	if n := FlatWidth(mk.Dims); maxThreads > 0 && n >= 0 && n > maxThreads {
		return &ChunkedMapKernel{
			Dims:       mk.Dims,
			Body:       mk.Body,
			Dest:       mk.Dest,
			Certs:      mk.Certs,
			Uses:       mk.Uses,
			MaxThreads: maxThreads,
		}
	}
	return mk
}
