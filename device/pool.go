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
	"runtime"
	"sync"
	"sync/atomic"
)

// pool runs the independent groups of a launch on a fixed set of
// goroutines that persist for the life of a Device. Groups never
// communicate within a launch, so any interleaving is equivalent to
// some sequential order.
type pool struct {
	workers int
	jobs    chan func()
	stop    sync.Once
	stopped atomic.Bool
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &pool{workers: workers, jobs: make(chan func())}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// close stops the goroutines once in-flight jobs finish. Safe to call
// twice; launches after close run their groups on the calling goroutine.
func (p *pool) close() {
	p.stop.Do(func() {
		p.stopped.Store(true)
		close(p.jobs)
	})
}

// runGroups executes fn once per group id in [0, n). Ids are handed out
// by a shared counter so a slow group does not stall the rest; the first
// error stops the handout and is returned. Blocks until every group that
// started has finished.
func (p *pool) runGroups(n int64, fn func(group int64) error) error {
	if n <= 0 {
		return nil
	}
	callers := int64(p.workers)
	if callers > n {
		callers = n
	}
	if callers == 1 || p.stopped.Load() {
		for g := int64(0); g < n; g++ {
			if err := fn(g); err != nil {
				return err
			}
		}
		return nil
	}

	var next atomic.Int64
	var firstErr atomic.Pointer[error]
	var wg sync.WaitGroup
	wg.Add(int(callers))
	for i := int64(0); i < callers; i++ {
		p.jobs <- func() {
			defer wg.Done()
			for firstErr.Load() == nil {
				g := next.Add(1) - 1
				if g >= n {
					return
				}
				if err := fn(g); err != nil {
					firstErr.CompareAndSwap(nil, &err)
					return
				}
			}
		}
	}
	wg.Wait()

	if ep := firstErr.Load(); ep != nil {
		return *ep
	}
	return nil
}
