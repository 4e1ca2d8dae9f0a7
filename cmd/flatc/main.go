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

// Command flatc runs the distribution pipeline over bundled demo programs:
// it flattens nested parallelism into kernels, lowers them, and executes
// the result on the simulated device.
//
// Usage:
//
//	flatc -list                         # show the bundled demos
//	flatc -demo dot                     # lower and run one demo
//	flatc -demo all -dump               # print every lowered plan
//	flatc -demo prefix-sum -verbose     # include distribution diagnostics
//
// The platform is configurable through flags; FLATWAVE_GROUP_SIZE,
// FLATWAVE_WAVE_WIDTH and FLATWAVE_MAX_GROUPS supply the defaults.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/ajroetker/flatwave/device"
	"github.com/ajroetker/flatwave/distribute"
	"github.com/ajroetker/flatwave/interp"
	"github.com/ajroetker/flatwave/ir"
	"github.com/ajroetker/flatwave/kernel"
)

var (
	demoName  = flag.String("demo", "", "Demo program to compile ('all' for every demo)")
	listDemos = flag.Bool("list", false, "List the bundled demo programs")
	dump      = flag.Bool("dump", false, "Print the lowered host program")
	noRun     = flag.Bool("norun", false, "Skip execution, only lower")
	verbose   = flag.Bool("verbose", false, "Print distribution diagnostics")
	workers   = flag.Int("workers", 0, "Worker goroutines for the device pool (0 = GOMAXPROCS)")
	groupSize = flag.Int64("group-size", int64(env.Int("FLATWAVE_GROUP_SIZE", 256)), "Threads per group")
	waveWidth = flag.Int64("wave-width", int64(env.Int("FLATWAVE_WAVE_WIDTH", 0)), "Lanes per wave (0 = probe the host CPU)")
	maxGroups = flag.Int64("max-groups", int64(env.Int("FLATWAVE_MAX_GROUPS", 1024)), "Group cap for sized launches")
)

func main() {
	flag.Parse()

	if *listDemos {
		for _, d := range demos {
			fmt.Printf("%-12s %s\n", d.name, d.about)
		}
		return
	}
	if *demoName == "" {
		fmt.Fprintf(os.Stderr, "Error: -demo flag is required (or -list)\n\n")
		flag.Usage()
		os.Exit(1)
	}

	selected := pickDemos(*demoName)
	if len(selected) == 0 {
		fmt.Fprintf(os.Stderr, "Error: unknown demo %q\n", *demoName)
		os.Exit(1)
	}

	plat := device.Platform{
		GroupSize: *groupSize,
		WaveWidth: *waveWidth,
		MaxGroups: *maxGroups,
	}
	if plat.WaveWidth == 0 {
		plat.WaveWidth = device.DefaultPlatform().WaveWidth
	}
	if err := plat.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, d := range selected {
		if err := runDemo(d, plat); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", d.name, err)
			os.Exit(1)
		}
	}
}

func pickDemos(name string) []demoProgram {
	if name == "all" {
		return demos
	}
	for _, d := range demos {
		if d.name == name {
			return []demoProgram{d}
		}
	}
	return nil
}

func runDemo(d demoProgram, plat device.Platform) error {
	src := ir.NewSource(0)
	scope, body, inputs := d.build(src)

	log := &ir.Log{}
	eng := distribute.New(src, scope, distribute.WithLog(log))
	prog, err := eng.TransformBody(body)
	if err != nil {
		return err
	}
	if err := kernel.Lower(prog, scope); err != nil {
		return err
	}

	fmt.Printf("== %s: %s\n", d.name, d.about)
	if *verbose {
		for _, e := range log.Entries() {
			fmt.Printf("   note: %s\n", e)
		}
	}
	if *dump {
		printPlan(prog.Stmts, "   ")
	}
	if *noRun {
		return nil
	}

	dev, err := device.New(plat, device.WithWorkers(*workers))
	if err != nil {
		return err
	}
	defer dev.Close()

	genv := interp.NewEnv(nil)
	for _, b := range inputs {
		genv.Bind(b.name, b.arr)
	}
	if err := dev.RunProgram(prog, genv); err != nil {
		return err
	}
	for _, se := range prog.Result {
		v, ok := se.(ir.Var)
		if !ok {
			continue
		}
		val, bound := genv.Lookup(v.Name)
		if !bound {
			return fmt.Errorf("result %s was never bound", v.Name)
		}
		fmt.Printf("   %s = %s\n", v.Name.Base, formatValue(val))
	}
	return nil
}

func printPlan(stmts []kernel.HostStmt, indent string) {
	for _, hs := range stmts {
		switch {
		case hs.Seq != nil:
			fmt.Printf("%shost %s\n", indent, ir.SprintStmt(*hs.Seq))
		case hs.Launch != nil:
			k := hs.Launch
			fmt.Printf("%slaunch %s -> %s\n", indent, k.Kind(), destNames(k.Dests()))
			if mk, ok := k.(*kernel.MapKernel); ok {
				fmt.Printf("%s  body:\n%s", indent, indentLines(ir.SprintBody(mk.Body), indent+"    "))
			}
		case hs.Loop != nil:
			fmt.Printf("%sloop %s times {\n", indent, ir.SprintExp(&ir.SubExpOp{SE: hs.Loop.Bound}))
			printPlan(hs.Loop.Body, indent+"  ")
			fmt.Printf("%s}\n", indent)
		}
	}
}

func destNames(pat ir.Pattern) string {
	parts := make([]string, len(pat))
	for i, pe := range pat {
		parts[i] = fmt.Sprintf("%s: %s", pe.Name, pe.Type)
	}
	return strings.Join(parts, ", ")
}

func indentLines(s, indent string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = indent + l
	}
	return strings.Join(lines, "\n") + "\n"
}

func formatValue(v interp.Value) string {
	switch v := v.(type) {
	case interp.Scalar:
		return v.V.String()
	case *interp.Array:
		var sb strings.Builder
		for _, d := range v.Dims {
			fmt.Fprintf(&sb, "[%d]", d)
		}
		sb.WriteString("{")
		limit := len(v.Data)
		if limit > 16 {
			limit = 16
		}
		for i := 0; i < limit; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.Data[i].String())
		}
		if limit < len(v.Data) {
			fmt.Fprintf(&sb, ", ... (%d elements)", len(v.Data))
		}
		sb.WriteString("}")
		return sb.String()
	}
	return "?"
}
