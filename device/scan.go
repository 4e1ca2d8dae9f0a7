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
	"github.com/ajroetker/flatwave/kernel"
)

// physPos maps a thread's j-th logical chunk element to its position in
// the flat output. Chunk-major interleaving needs a full tile; a ragged
// final group stores thread-major so no position lands past the end.
func physPos(layout kernel.ScanLayout, base, m, span, groupSize, ept, lid, j int64) int64 {
	if layout == kernel.ChunkMajor && m == span {
		return base + j*groupSize + lid
	}
	return base + lid*ept + j
}

// runScan computes a group-local inclusive prefix per group, then the host
// threads per-group totals across groups and folds the carry into every
// later group. Within a group: sequential chunk scan per thread, in-wave
// inclusive scan of the chunk totals (lock-step, no barrier), wave totals
// packed into slots by each wave's last thread, the first wave rescanning
// the slots, and a final fold of each thread's carry into its chunk.
func (d *Device) runScan(k *kernel.ScanKernel, env *interp.Env) error {
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
	dests, err := allocDests(env, k.Dest)
	if err != nil {
		return err
	}

	launch := kernel.ComputeLaunch(d.Plat.GroupSize, d.Plat.MaxGroups, n)
	groupSize := launch.GroupSize
	ept := launch.ElemsPerThread
	span := groupSize * ept
	wave := d.Plat.WaveWidth
	numWaves := d.Plat.numWaves()
	totals := make([][]interp.Value, launch.NumGroups)

	writeAt := func(phys int64, acc []interp.Value) error {
		for a, v := range acc {
			s, ok := v.(interp.Scalar)
			if !ok {
				return fmt.Errorf("device: scan over non-scalar accumulator")
			}
			dests[a].Data[phys] = s.V
		}
		return nil
	}
	readAt := func(phys int64) []interp.Value {
		cur := make([]interp.Value, len(dests))
		for a := range dests {
			cur[a] = interp.Scalar{V: dests[a].Data[phys]}
		}
		return cur
	}

	err = d.pool.runGroups(launch.NumGroups, func(g int64) error {
		genv := interp.NewEnv(env)
		base := g * span
		m := n - base
		if m > span {
			m = span
		}

		// Phase 0: each thread scans its chunk, writing every prefix, and
		// keeps its running total.
		slots := make([][]interp.Value, groupSize)
		for lid := int64(0); lid < groupSize; lid++ {
			acc := append([]interp.Value(nil), neutral...)
			for j := int64(0); j < ept; j++ {
				l := lid*ept + j
				if l >= m {
					break
				}
				var ferr error
				acc, ferr = foldVals(genv, k.Lam, acc, elemAt(arrs, base+l))
				if ferr != nil {
					return ferr
				}
				phys := physPos(k.Layout, base, m, span, groupSize, ept, lid, j)
				if err := writeAt(phys, acc); err != nil {
					return err
				}
			}
			slots[lid] = acc
		}

		// Phase 1: in-wave inclusive scan of the chunk totals. Lock-step
		// semantics: every thread reads before any thread writes.
		for offset := int64(1); offset < wave; offset *= 2 {
			snap := make([][]interp.Value, groupSize)
			copy(snap, slots)
			for lid := int64(0); lid < groupSize; lid++ {
				if lid%wave < offset {
					continue
				}
				merged, err := foldVals(genv, k.Lam, snap[lid-offset], snap[lid])
				if err != nil {
					return err
				}
				slots[lid] = merged
			}
		}

		// Phase 2: the last thread of each wave packs its wave's total
		// into a slot indexed by wave id.
		waveSlots := make([][]interp.Value, numWaves)
		for w := int64(0); w < numWaves; w++ {
			last := (w+1)*wave - 1
			if last >= groupSize {
				last = groupSize - 1
			}
			waveSlots[w] = slots[last]
		}

		// Phase 3: the first wave rescans the slots, producing each wave's
		// carry-in (barrier before and after on hardware).
		for offset := int64(1); offset < numWaves; offset *= 2 {
			snap := make([][]interp.Value, numWaves)
			copy(snap, waveSlots)
			for w := offset; w < numWaves; w++ {
				merged, err := foldVals(genv, k.Lam, snap[w-offset], snap[w])
				if err != nil {
					return err
				}
				waveSlots[w] = merged
			}
		}

		// Phase 4: every thread folds its carry back into its chunk. The
		// carry is the previous wave's inclusive total combined with the
		// in-wave exclusive prefix.
		for lid := int64(0); lid < groupSize; lid++ {
			w := lid / wave
			var carry []interp.Value
			if w > 0 {
				carry = waveSlots[w-1]
			}
			if lid%wave > 0 {
				if carry == nil {
					carry = slots[lid-1]
				} else {
					merged, ferr := foldVals(genv, k.Lam, carry, slots[lid-1])
					if ferr != nil {
						return ferr
					}
					carry = merged
				}
			}
			if carry == nil {
				continue
			}
			for j := int64(0); j < ept; j++ {
				l := lid*ept + j
				if l >= m {
					break
				}
				phys := physPos(k.Layout, base, m, span, groupSize, ept, lid, j)
				fixed, err := foldVals(genv, k.Lam, carry, readAt(phys))
				if err != nil {
					return err
				}
				if err := writeAt(phys, fixed); err != nil {
					return err
				}
			}
		}

		totals[g] = waveSlots[numWaves-1]
		return nil
	})
	if err != nil {
		return err
	}

	// Later pass: propagate the carry across groups in order.
	carry := append([]interp.Value(nil), neutral...)
	for g := int64(1); g < launch.NumGroups; g++ {
		carry, err = foldVals(env, k.Lam, carry, totals[g-1])
		if err != nil {
			return err
		}
		base := g * span
		m := n - base
		if m > span {
			m = span
		}
		for lid := int64(0); lid < groupSize; lid++ {
			for j := int64(0); j < ept; j++ {
				l := lid*ept + j
				if l >= m {
					break
				}
				phys := physPos(k.Layout, base, m, span, groupSize, ept, lid, j)
				fixed, err := foldVals(env, k.Lam, carry, readAt(phys))
				if err != nil {
					return err
				}
				if err := writeAt(phys, fixed); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
