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

// Package device executes lowered kernel programs against the execution
// model they were compiled for: a grid of groups, each a fixed set of
// threads; barriers and group-local memory inside a group, global memory
// between launches. Wave-level phases run without barriers, matching
// lock-step hardware. Independent groups are dispatched on a worker pool.
package device

import "fmt"

// Platform describes the simulated device. WaveWidth is the lock-step
// execution width within a group and must be a power of two; GroupSize
// need not be a multiple of it.
type Platform struct {
	GroupSize int64
	WaveWidth int64
	MaxGroups int64
}

// DefaultPlatform returns a platform sized from the host CPU's vector
// capability.
func DefaultPlatform() Platform {
	return Platform{
		GroupSize: 256,
		WaveWidth: probedWaveWidth(),
		MaxGroups: 1024,
	}
}

// Validate checks the platform parameters are usable.
func (p Platform) Validate() error {
	if p.GroupSize <= 0 {
		return fmt.Errorf("device: group size %d", p.GroupSize)
	}
	if p.WaveWidth <= 0 || p.WaveWidth&(p.WaveWidth-1) != 0 {
		return fmt.Errorf("device: wave width %d is not a power of two", p.WaveWidth)
	}
	return nil
}

// numWaves returns the wave count of one group, counting a trailing
// partial wave.
func (p Platform) numWaves() int64 {
	return (p.GroupSize + p.WaveWidth - 1) / p.WaveWidth
}
