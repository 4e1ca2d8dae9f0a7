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

package kernel

// isTrailingSwap reports whether perm is the identity except for its last
// two positions, which are exchanged. This is the shape a batched matrix
// transpose leaves behind.
func isTrailingSwap(perm []int) bool {
	k := len(perm)
	if k < 2 {
		return false
	}
	for i := 0; i < k-2; i++ {
		if perm[i] != i {
			return false
		}
	}
	return perm[k-2] == k-1 && perm[k-1] == k-2
}

// SpecializeCopy picks the cheapest copy routine for dst <- src. Tried in
// order: block transpose when one side is a trailing-pair permutation of
// contiguous memory, flat byte copy when both sides are contiguous, and a
// generic element-wise kernel otherwise. Element type or size mismatch is
// a fatal input inconsistency.
func SpecializeCopy(dst, src View) (Kernel, error) {
	if dst.Elem != src.Elem {
		return nil, Errorf("bulk copy", "copying %s elements into %s buffer", src.Elem, dst.Elem)
	}
	if dst.Size() != src.Size() {
		return nil, Errorf("bulk copy", "copying %d elements into %d-element buffer",
			src.Size(), dst.Size())
	}

	if dst.Contiguous() && isTrailingSwap(src.Perm) {
		k := len(src.Dims)
		blocks := int64(1)
		for _, d := range src.Dims[:k-2] {
			blocks *= d
		}
		return &TransposeKernel{
			Dst:    dst,
			Src:    src,
			Blocks: blocks,
			// Extents of the blocks as laid out in the source backing.
			Rows: src.Dims[k-1],
			Cols: src.Dims[k-2],
		}, nil
	}
	if src.Contiguous() && isTrailingSwap(dst.Perm) {
		k := len(dst.Dims)
		blocks := int64(1)
		for _, d := range dst.Dims[:k-2] {
			blocks *= d
		}
		return &TransposeKernel{
			Dst:    dst,
			Src:    src,
			Blocks: blocks,
			Rows:   src.Dims[k-2],
			Cols:   src.Dims[k-1],
		}, nil
	}

	if dst.Contiguous() && src.Contiguous() {
		return &ByteCopyKernel{
			Dst:   dst,
			Src:   src,
			Bytes: src.Size() * src.Elem.Size(),
		}, nil
	}

	return &GenericCopyKernel{Dst: dst, Src: src}, nil
}
