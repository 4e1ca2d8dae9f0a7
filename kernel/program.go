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

import "github.com/ajroetker/flatwave/ir"

// HostStmt is a step of the lowered program: exactly one of a sequential
// statement evaluated on the host, a kernel launch, or a bounded host loop
// whose body contains launches.
type HostStmt struct {
	Seq    *ir.Stmt
	Launch Kernel
	Loop   *HostLoop
}

// HostLoop is a sequential host-side loop carrying merge values, kept
// sequential because interchange was illegal or the body's parallelism
// lives deeper inside.
type HostLoop struct {
	Pat      ir.Pattern
	Merge    []ir.MergeParam
	Bound    ir.SubExp
	IndexVar ir.VName
	Body     []HostStmt
	Result   []ir.SubExp
}

// Program is the output of distribution plus lowering: host statements in
// definition order. A launch never reads a value produced by a later step.
type Program struct {
	Stmts  []HostStmt
	Result []ir.SubExp
}

// Kernels returns every launch in the program in execution order,
// descending into host loops.
func (p *Program) Kernels() []Kernel {
	var out []Kernel
	var walk func(stmts []HostStmt)
	walk = func(stmts []HostStmt) {
		for _, hs := range stmts {
			switch {
			case hs.Launch != nil:
				out = append(out, hs.Launch)
			case hs.Loop != nil:
				walk(hs.Loop.Body)
			}
		}
	}
	walk(p.Stmts)
	return out
}
