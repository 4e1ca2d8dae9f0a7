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

// Launch is the concrete grid for one kernel launch.
type Launch struct {
	NumGroups      int64
	GroupSize      int64
	ElemsPerThread int64
	NumElements    int64
}

// Threads returns the total thread count of the grid.
func (l Launch) Threads() int64 {
	return l.NumGroups * l.GroupSize
}

// CeilDiv returns ceil(a / b) for positive b.
func CeilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// ComputeLaunch sizes a grid for elems total elements: one thread per
// element while the group count stays within maxGroups, otherwise a capped
// grid with each thread covering elems-per-thread consecutive elements.
// A zero-element launch still gets one group so destination bindings exist.
func ComputeLaunch(groupSize, maxGroups, elems int64) Launch {
	l := Launch{GroupSize: groupSize, ElemsPerThread: 1, NumElements: elems}
	if elems <= 0 {
		l.NumGroups = 1
		return l
	}
	l.NumGroups = CeilDiv(elems, groupSize)
	if maxGroups > 0 && l.NumGroups > maxGroups {
		l.NumGroups = maxGroups
		l.ElemsPerThread = CeilDiv(elems, l.Threads())
	}
	return l
}
