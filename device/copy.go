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

package device

import (
	"fmt"

	"github.com/ajroetker/flatwave/interp"
	"github.com/ajroetker/flatwave/ir"
	"github.com/ajroetker/flatwave/kernel"
)

// viewStrides returns the stride of each view dimension in the backing
// array. The backing is row-major over the permuted extents, so view
// dimension i advances by the backing stride of the dimension it maps to.
func viewStrides(v kernel.View) []int64 {
	backing := make([]int64, len(v.Dims))
	for i, d := range v.Dims {
		backing[v.Perm[i]] = d
	}
	stride := make([]int64, len(backing))
	s := int64(1)
	for i := len(backing) - 1; i >= 0; i-- {
		stride[i] = s
		s *= backing[i]
	}
	out := make([]int64, len(v.Dims))
	for i := range v.Dims {
		out[i] = stride[v.Perm[i]]
	}
	return out
}

// copyArrays allocates the destination backing and resolves both sides of
// a copy to their flat data.
func (d *Device) copyArrays(env *interp.Env, k kernel.Kernel, dst, src kernel.View) (*interp.Array, *interp.Array, error) {
	if _, err := allocDests(env, k.Dests()); err != nil {
		return nil, nil, err
	}
	arrs, err := lookupArrays(env, []ir.VName{dst.Name, src.Name})
	if err != nil {
		return nil, nil, err
	}
	return arrs[0], arrs[1], nil
}

func (d *Device) runTranspose(k *kernel.TransposeKernel, env *interp.Env) error {
	dstArr, srcArr, err := d.copyArrays(env, k, k.Dst, k.Src)
	if err != nil {
		return err
	}
	rows, cols := k.Rows, k.Cols
	tile := rows * cols
	return d.pool.runGroups(k.Blocks, func(b int64) error {
		dstBase := k.Dst.Offset + b*tile
		srcBase := k.Src.Offset + b*tile
		for r := int64(0); r < rows; r++ {
			for c := int64(0); c < cols; c++ {
				dstArr.Data[dstBase+c*rows+r] = srcArr.Data[srcBase+r*cols+c]
			}
		}
		return nil
	})
}

func (d *Device) runByteCopy(k *kernel.ByteCopyKernel, env *interp.Env) error {
	dstArr, srcArr, err := d.copyArrays(env, k, k.Dst, k.Src)
	if err != nil {
		return err
	}
	sz := k.Src.Elem.Size()
	if sz <= 0 || k.Bytes%sz != 0 {
		return fmt.Errorf("device: byte copy of %d bytes is not a whole number of %s elements",
			k.Bytes, k.Src.Elem)
	}
	n := k.Bytes / sz
	copy(dstArr.Data[k.Dst.Offset:k.Dst.Offset+n], srcArr.Data[k.Src.Offset:k.Src.Offset+n])
	return nil
}

func (d *Device) runGenericCopy(k *kernel.GenericCopyKernel, env *interp.Env) error {
	dstArr, srcArr, err := d.copyArrays(env, k, k.Dst, k.Src)
	if err != nil {
		return err
	}
	dims := k.Dst.Dims
	dstStride := viewStrides(k.Dst)
	srcStride := viewStrides(k.Src)
	n := k.Dst.Size()
	launch := kernel.ComputeLaunch(d.Plat.GroupSize, d.Plat.MaxGroups, n)
	span := launch.GroupSize * launch.ElemsPerThread
	return d.pool.runGroups(launch.NumGroups, func(g int64) error {
		for e := g * span; e < (g+1)*span && e < n; e++ {
			rem := e
			srcOff, dstOff := k.Src.Offset, k.Dst.Offset
			for i := len(dims) - 1; i >= 0; i-- {
				idx := rem % dims[i]
				rem /= dims[i]
				srcOff += idx * srcStride[i]
				dstOff += idx * dstStride[i]
			}
			dstArr.Data[dstOff] = srcArr.Data[srcOff]
		}
		return nil
	})
}
