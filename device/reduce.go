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
	"github.com/ajroetker/flatwave/interp"
	"github.com/ajroetker/flatwave/ir"
	"github.com/ajroetker/flatwave/kernel"
)

// foldVals applies a combine lambda to two accumulator tuples, left first.
func foldVals(env *interp.Env, lam ir.Lambda, a, b []interp.Value) ([]interp.Value, error) {
	args := make([]interp.Value, 0, len(a)+len(b))
	args = append(args, a...)
	args = append(args, b...)
	return interp.Apply(env, lam, args)
}

// runReduce executes the two-phase tree reduction. Each thread folds its
// chunk sequentially, partials meet inside each wave without a barrier
// (lock-step execution), wave results meet across waves with a barrier
// before every doubling step, and the host folds the per-group results in
// group order. Only associativity is required; the element order is
// preserved end to end unless the commutativity flag allows the strided,
// coalescing-friendly chunk assignment.
func (d *Device) runReduce(k *kernel.ReduceKernel, env *interp.Env) error {
	n, err := interp.EvalInt(env, k.W)
	if err != nil {
		return err
	}
	arrs, err := lookupArrays(env, k.Arrs)
	if err != nil {
		return err
	}
	neutral, err := evalNeutral(env, k.Neutral)
	if err != nil {
		return err
	}

	launch := kernel.ComputeLaunch(d.Plat.GroupSize, d.Plat.MaxGroups, n)
	groupSize := launch.GroupSize
	ept := launch.ElemsPerThread
	wave := d.Plat.WaveWidth
	numWaves := d.Plat.numWaves()
	partials := make([][]interp.Value, launch.NumGroups)

	err = d.pool.runGroups(launch.NumGroups, func(g int64) error {
		genv := interp.NewEnv(env)

		// Phase 0: sequential chunk fold, one local slot set per thread.
		slots := make([][]interp.Value, groupSize)
		for lid := int64(0); lid < groupSize; lid++ {
			t := g*groupSize + lid
			acc := append([]interp.Value(nil), neutral...)
			for j := int64(0); j < ept; j++ {
				i := t*ept + j
				if k.Comm {
					// Strided assignment keeps global reads coalesced;
					// legal only because the operator commutes.
					i = j*launch.Threads() + t
				}
				if i >= n {
					break
				}
				mapped, err := interp.Apply(genv, k.MapLam, elemAt(arrs, i))
				if err != nil {
					return err
				}
				acc, err = foldVals(genv, k.RedLam, acc, mapped)
				if err != nil {
					return err
				}
			}
			slots[lid] = acc
		}

		// In-wave phase: no barrier. An active thread is at a multiple of
		// 2*offset and combines with the slot offset lanes ahead; the
		// wave's total lands in its first lane.
		for offset := int64(1); offset < wave; offset *= 2 {
			for lid := int64(0); lid < groupSize; lid++ {
				if lid&(2*offset-1) != 0 {
					continue
				}
				partner := lid + offset
				if partner >= groupSize {
					continue
				}
				merged, err := foldVals(genv, k.RedLam, slots[lid], slots[partner])
				if err != nil {
					return err
				}
				slots[lid] = merged
			}
		}

		// Cross-wave phase: barrier, then double over the wave slots.
		for skip := int64(1); skip < numWaves; skip *= 2 {
			// barrier: every in-flight write above is visible here
			for w := int64(0); w < numWaves; w++ {
				if w&(2*skip-1) != 0 || w+skip >= numWaves {
					continue
				}
				merged, err := foldVals(genv, k.RedLam, slots[w*wave], slots[(w+skip)*wave])
				if err != nil {
					return err
				}
				slots[w*wave] = merged
			}
		}

		// Thread 0 writes the group result.
		partials[g] = slots[0]
		return nil
	})
	if err != nil {
		return err
	}

	res := append([]interp.Value(nil), neutral...)
	for g := int64(0); g < launch.NumGroups; g++ {
		res, err = foldVals(env, k.RedLam, res, partials[g])
		if err != nil {
			return err
		}
	}
	for j, pe := range k.Dest {
		env.Bind(pe.Name, res[j])
	}
	return nil
}
