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

package distribute

import "github.com/ajroetker/flatwave/ir"

// LoopArg binds one lambda parameter of an open map to the array it draws
// its per-iteration element from.
type LoopArg struct {
	Param ir.Param
	Array ir.VName
}

// Nesting is one open outer-parallel level: the flattened kernel gains one
// dimension of extent Width, and device threads see their coordinate along
// it as Index.
type Nesting struct {
	Index ir.VName
	Width ir.SubExp
	Args  []LoopArg
	Certs []ir.VName
}

// Target is what a level must produce when it commits: the pattern the
// enclosing code sees, fed by the level's body result.
type Target struct {
	Pat    ir.Pattern
	Result []ir.SubExp
}

// level couples a nesting frame with its target and its not-yet-committed
// statements. Keeping the three in one struct makes the frame and target
// stacks structurally equal in length.
type level struct {
	frame   Nesting
	target  Target
	pending []ir.Stmt
}

// bound returns every name a level binds for the code beneath it: its
// index, its loop-arg parameters, and the patterns of its pending
// statements.
func (l *level) bound() ir.NameSet {
	s := ir.NewNameSet(l.frame.Index)
	for _, a := range l.frame.Args {
		s.Add(a.Param.Name)
	}
	for _, ps := range l.pending {
		s.Add(ps.Pat.Names()...)
	}
	return s
}
