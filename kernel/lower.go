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

const lowerPass = "kernel lowering"

// CheckDeviceBody rejects device code that would need a dynamically sized
// allocation: a scratch, iota, or replicate whose extent depends on a name
// bound inside the kernel. Fixed-extent local buffers are legal; they are
// pre-sized and allocated by the host.
func CheckDeviceBody(dims []Dim, body ir.Body) error {
	inside := ir.NameSet{}
	for _, d := range dims {
		inside.Add(d.Index)
	}
	return checkStmts(body.Stmts, inside)
}

func checkStmts(stmts []ir.Stmt, inside ir.NameSet) error {
	for _, s := range stmts {
		if err := checkExp(s.Exp, inside); err != nil {
			return err
		}
		inside.Add(s.Pat.Names()...)
	}
	return nil
}

func checkExtent(what string, ses []ir.SubExp, inside ir.NameSet) error {
	for _, se := range ses {
		v, ok := se.(ir.Var)
		if !ok {
			continue
		}
		if inside.Has(v.Name) {
			return Errorf(lowerPass,
				"device code allocates a %s whose extent depends on %s bound inside the kernel",
				what, v.Name)
		}
	}
	return nil
}

func checkExp(e ir.Exp, inside ir.NameSet) error {
	switch e := e.(type) {
	case *ir.ScratchExp:
		return checkExtent("scratch buffer", e.Shape, inside)
	case *ir.IotaExp:
		return checkExtent("iota", []ir.SubExp{e.N}, inside)
	case *ir.ReplicateExp:
		return checkExtent("replicate", []ir.SubExp{e.N}, inside)
	case *ir.IfExp:
		scoped := ir.NameSet{}
		scoped.AddSet(inside)
		if err := checkStmts(e.Then.Stmts, scoped); err != nil {
			return err
		}
		scoped = ir.NameSet{}
		scoped.AddSet(inside)
		return checkStmts(e.Else.Stmts, scoped)
	case *ir.LoopExp:
		scoped := ir.NameSet{}
		scoped.AddSet(inside)
		scoped.Add(e.IndexVar)
		for _, mp := range e.Merge {
			scoped.Add(mp.Param.Name)
		}
		return checkStmts(e.Body.Stmts, scoped)
	case *ir.ParExp:
		return Errorf(lowerPass, "device body contains an unlowered %s", e.Op.Kind())
	}
	return nil
}

// collectCerts gathers every certificate token attached to a statement in
// the body, at any depth.
func collectCerts(body ir.Body) []ir.VName {
	var certs []ir.VName
	var walkStmts func([]ir.Stmt)
	walkStmts = func(stmts []ir.Stmt) {
		for _, s := range stmts {
			certs = append(certs, s.Certs...)
			switch e := s.Exp.(type) {
			case *ir.IfExp:
				walkStmts(e.Then.Stmts)
				walkStmts(e.Else.Stmts)
			case *ir.LoopExp:
				walkStmts(e.Body.Stmts)
			}
		}
	}
	walkStmts(body.Stmts)
	return certs
}

// Lower validates every kernel of a program and fills in its use set.
// Scope must cover every name the program is allowed to reference from the
// host. Lower is the last step before execution; it makes no
// parallelization decisions.
func Lower(p *Program, scope ir.Scope) error {
	var walk func(stmts []HostStmt) error
	walk = func(stmts []HostStmt) error {
		for i := range stmts {
			hs := &stmts[i]
			switch {
			case hs.Seq != nil:
				scope.BindPattern(hs.Seq.Pat)
			case hs.Launch != nil:
				if err := lowerKernel(hs.Launch, scope); err != nil {
					return err
				}
				scope.BindPattern(hs.Launch.Dests())
			case hs.Loop != nil:
				for _, mp := range hs.Loop.Merge {
					scope[mp.Param.Name] = mp.Param.Type
				}
				scope[hs.Loop.IndexVar] = ir.Prim(ir.Int64)
				if err := walk(hs.Loop.Body); err != nil {
					return err
				}
				scope.BindPattern(hs.Loop.Pat)
			}
		}
		return nil
	}
	return walk(p.Stmts)
}

func lowerKernel(k Kernel, scope ir.Scope) error {
	switch k := k.(type) {
	case *MapKernel:
		if err := CheckDeviceBody(k.Dims, k.Body); err != nil {
			return err
		}
		uses, err := mapUses(k.Dims, k.Body, k.Dest, k.Certs, scope)
		if err != nil {
			return err
		}
		k.Uses = uses
	case *ChunkedMapKernel:
		if err := CheckDeviceBody(k.Dims, k.Body); err != nil {
			return err
		}
		uses, err := mapUses(k.Dims, k.Body, k.Dest, k.Certs, scope)
		if err != nil {
			return err
		}
		k.Uses = uses
	case *ReduceKernel:
		if err := CheckDeviceBody(nil, k.RedLam.Body); err != nil {
			return err
		}
		if err := CheckDeviceBody(nil, k.MapLam.Body); err != nil {
			return err
		}
		free := ir.NameSet{}
		free.AddSet(ir.FreeInSubExp(k.W))
		free.Add(k.Arrs...)
		free.AddSet(ir.FreeInLambda(k.RedLam))
		free.AddSet(ir.FreeInLambda(k.MapLam))
		for _, ne := range k.Neutral {
			free.AddSet(ir.FreeInSubExp(ne))
		}
		// Reduce results are scalars the host binds after folding the
		// per-group partials; there is no destination buffer to declare.
		uses, err := ComputeUses(free, ir.NameSet{}, nil, nil, scope)
		if err != nil {
			return err
		}
		k.Uses = uses
	case *ScanKernel:
		if err := CheckDeviceBody(nil, k.Lam.Body); err != nil {
			return err
		}
		free := ir.NameSet{}
		free.AddSet(ir.FreeInSubExp(k.W))
		free.Add(k.Arrs...)
		free.AddSet(ir.FreeInLambda(k.Lam))
		for _, ne := range k.Neutral {
			free.AddSet(ir.FreeInSubExp(ne))
		}
		uses, err := ComputeUses(free, ir.NameSet{}, nil, k.Dest, scope)
		if err != nil {
			return err
		}
		k.Uses = uses
	case *TransposeKernel:
		k.Uses = copyUses(k.Dst, k.Src)
	case *ByteCopyKernel:
		k.Uses = copyUses(k.Dst, k.Src)
	case *GenericCopyKernel:
		k.Uses = copyUses(k.Dst, k.Src)
	}
	return nil
}

func mapUses(dims []Dim, body ir.Body, dest ir.Pattern, certs []ir.VName, scope ir.Scope) ([]Use, error) {
	free := ir.FreeInBody(body)
	bound := ir.NameSet{}
	for _, d := range dims {
		// Every extent travels to the device so threads can unflatten
		// their flat index.
		free.AddSet(ir.FreeInSubExp(d.Width))
		bound.Add(d.Index)
	}
	certs = append(append([]ir.VName(nil), certs...), collectCerts(body)...)
	return ComputeUses(free, bound, certs, dest, scope)
}

func copyUses(dst, src View) []Use {
	return []Use{
		MemUse{Name: dst.Name, Bytes: dst.Size() * dst.Elem.Size()},
		MemUse{Name: src.Name, Bytes: src.Size() * src.Elem.Size()},
	}
}
