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

// Device runs lowered programs. One Device owns one worker pool; create it
// once and reuse it across programs.
type Device struct {
	Plat Platform
	pool *pool
}

// Option configures a Device.
type Option func(*Device)

// WithWorkers fixes the worker count of the group pool.
func WithWorkers(n int) Option {
	return func(d *Device) { d.pool = newPool(n) }
}

// New builds a device for the given platform.
func New(plat Platform, opts ...Option) (*Device, error) {
	if err := plat.Validate(); err != nil {
		return nil, err
	}
	d := &Device{Plat: plat}
	for _, o := range opts {
		o(d)
	}
	if d.pool == nil {
		d.pool = newPool(0)
	}
	return d, nil
}

// Close releases the worker pool.
func (d *Device) Close() {
	d.pool.close()
}

// RunProgram executes a lowered program against env, which acts as global
// memory: sequential statements evaluate on the host, launches run on the
// simulated device, and each step's bindings are visible to the next.
func (d *Device) RunProgram(p *kernel.Program, env *interp.Env) error {
	return d.runHostStmts(p.Stmts, env)
}

func (d *Device) runHostStmts(stmts []kernel.HostStmt, env *interp.Env) error {
	for _, hs := range stmts {
		switch {
		case hs.Seq != nil:
			if err := interp.EvalStmt(env, *hs.Seq); err != nil {
				return err
			}
		case hs.Launch != nil:
			if err := d.RunKernel(hs.Launch, env); err != nil {
				return err
			}
		case hs.Loop != nil:
			if err := d.runHostLoop(hs.Loop, env); err != nil {
				return err
			}
		default:
			return fmt.Errorf("device: empty host statement")
		}
	}
	return nil
}

// RunKernel launches one kernel against global memory.
func (d *Device) RunKernel(k kernel.Kernel, env *interp.Env) error {
	switch k := k.(type) {
	case *kernel.MapKernel:
		return d.runMap(k, env)
	case *kernel.ChunkedMapKernel:
		return d.runChunkedMap(k, env)
	case *kernel.ReduceKernel:
		return d.runReduce(k, env)
	case *kernel.ScanKernel:
		return d.runScan(k, env)
	case *kernel.TransposeKernel:
		return d.runTranspose(k, env)
	case *kernel.ByteCopyKernel:
		return d.runByteCopy(k, env)
	case *kernel.GenericCopyKernel:
		return d.runGenericCopy(k, env)
	}
	return fmt.Errorf("device: unhandled kernel kind %s", k.Kind())
}

func (d *Device) runHostLoop(hl *kernel.HostLoop, env *interp.Env) error {
	bound, err := interp.EvalInt(env, hl.Bound)
	if err != nil {
		return err
	}
	cur := make([]interp.Value, len(hl.Merge))
	for i, mp := range hl.Merge {
		v, err := interp.EvalSubExp(env, mp.Init)
		if err != nil {
			return err
		}
		cur[i] = v
	}
	inner := interp.NewEnv(env)
	for it := int64(0); it < bound; it++ {
		inner.Bind(hl.IndexVar, interp.Scalar{V: ir.IntValue(it)})
		for i, mp := range hl.Merge {
			inner.Bind(mp.Param.Name, cur[i])
		}
		if err := d.runHostStmts(hl.Body, inner); err != nil {
			return err
		}
		for i, se := range hl.Result {
			v, err := interp.EvalSubExp(inner, se)
			if err != nil {
				return err
			}
			cur[i] = v
		}
	}
	for i, pe := range hl.Pat {
		env.Bind(pe.Name, cur[i])
	}
	return nil
}

// evalDims resolves a type's extents against global memory.
func evalDims(env *interp.Env, shape []ir.SubExp) ([]int64, error) {
	dims := make([]int64, len(shape))
	for i, se := range shape {
		n, err := interp.EvalInt(env, se)
		if err != nil {
			return nil, err
		}
		dims[i] = n
	}
	return dims, nil
}

// allocDests allocates one global array per destination and binds it
// before any thread runs.
func allocDests(env *interp.Env, dest ir.Pattern) ([]*interp.Array, error) {
	arrs := make([]*interp.Array, len(dest))
	for j, pe := range dest {
		dims, err := evalDims(env, pe.Type.Shape)
		if err != nil {
			return nil, err
		}
		arrs[j] = interp.NewArray(pe.Type.Elem, dims)
		env.Bind(pe.Name, arrs[j])
	}
	return arrs, nil
}

func dimWidths(env *interp.Env, dims []kernel.Dim) ([]int64, int64, error) {
	widths := make([]int64, len(dims))
	flat := int64(1)
	for i, dim := range dims {
		w, err := interp.EvalInt(env, dim.Width)
		if err != nil {
			return nil, 0, err
		}
		widths[i] = w
		flat *= w
	}
	return widths, flat, nil
}

// runPoint executes a map body at one point of the iteration space and
// writes its results to the destinations. Threads write disjoint
// positions, so the shared backing needs no locking.
func runPoint(env *interp.Env, dims []kernel.Dim, widths []int64,
	body ir.Body, dests []*interp.Array, flatIdx int64) error {
	tenv := interp.NewEnv(env)
	rem := flatIdx
	for i := len(dims) - 1; i >= 0; i-- {
		tenv.Bind(dims[i].Index, interp.Scalar{V: ir.IntValue(rem % widths[i])})
		rem /= widths[i]
	}
	vals, err := interp.EvalBody(tenv, body)
	if err != nil {
		return err
	}
	if len(vals) != len(dests) {
		return fmt.Errorf("device: kernel body yields %d values for %d destinations",
			len(vals), len(dests))
	}
	for j, v := range vals {
		switch v := v.(type) {
		case interp.Scalar:
			dests[j].Data[flatIdx] = v.V
		case *interp.Array:
			sz := v.Size()
			copy(dests[j].Data[flatIdx*sz:(flatIdx+1)*sz], v.Data)
		}
	}
	return nil
}

func (d *Device) runMap(k *kernel.MapKernel, env *interp.Env) error {
	widths, flat, err := dimWidths(env, k.Dims)
	if err != nil {
		return err
	}
	dests, err := allocDests(env, k.Dest)
	if err != nil {
		return err
	}
	launch := kernel.ComputeLaunch(d.Plat.GroupSize, 0, flat)
	return d.pool.runGroups(launch.NumGroups, func(g int64) error {
		genv := interp.NewEnv(env)
		for lid := int64(0); lid < launch.GroupSize; lid++ {
			t := g*launch.GroupSize + lid
			if t >= flat {
				break
			}
			if err := runPoint(genv, k.Dims, widths, k.Body, dests, t); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Device) runChunkedMap(k *kernel.ChunkedMapKernel, env *interp.Env) error {
	widths, flat, err := dimWidths(env, k.Dims)
	if err != nil {
		return err
	}
	dests, err := allocDests(env, k.Dest)
	if err != nil {
		return err
	}
	maxGroups := kernel.CeilDiv(k.MaxThreads, d.Plat.GroupSize)
	launch := kernel.ComputeLaunch(d.Plat.GroupSize, maxGroups, flat)
	ept := launch.ElemsPerThread
	return d.pool.runGroups(launch.NumGroups, func(g int64) error {
		genv := interp.NewEnv(env)
		for lid := int64(0); lid < launch.GroupSize; lid++ {
			t := g*launch.GroupSize + lid
			for e := t * ept; e < (t+1)*ept && e < flat; e++ {
				if err := runPoint(genv, k.Dims, widths, k.Body, dests, e); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// elemAt gathers the arguments one flat input position contributes.
func elemAt(arrs []*interp.Array, i int64) []interp.Value {
	args := make([]interp.Value, len(arrs))
	for k, a := range arrs {
		args[k] = interp.Scalar{V: a.Data[i]}
	}
	return args
}

func lookupArrays(env *interp.Env, names []ir.VName) ([]*interp.Array, error) {
	arrs := make([]*interp.Array, len(names))
	for i, n := range names {
		v, ok := env.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("device: unbound array %s", n)
		}
		a, ok := v.(*interp.Array)
		if !ok {
			return nil, fmt.Errorf("device: %s is not an array", n)
		}
		arrs[i] = a
	}
	return arrs, nil
}

func evalNeutral(env *interp.Env, neutral []ir.SubExp) ([]interp.Value, error) {
	vals := make([]interp.Value, len(neutral))
	for i, ne := range neutral {
		v, err := interp.EvalSubExp(env, ne)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}
