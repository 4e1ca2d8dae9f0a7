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

//go:build amd64

package device

import "golang.org/x/sys/cpu"

// probedWaveWidth derives a default lock-step width from the widest vector
// unit the CPU offers: 8 float64 lanes with AVX-512, 4 with AVX, 2 with
// bare SSE2.
func probedWaveWidth() int64 {
	switch {
	case cpu.X86.HasAVX512:
		return 8
	case cpu.X86.HasAVX:
		return 4
	default:
		return 2
	}
}
