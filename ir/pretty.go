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

package ir

import (
	"fmt"
	"strings"
)

// SprintBody renders a body as readable multi-line text. The output is
// deterministic and is what golden tests and the CLI dump compare against.
func SprintBody(b Body) string {
	var sb strings.Builder
	fprintBody(&sb, 0, b)
	return sb.String()
}

// SprintStmt renders a single statement.
func SprintStmt(s Stmt) string {
	var sb strings.Builder
	fprintStmt(&sb, 0, s)
	return sb.String()
}

// SprintExp renders a single expression.
func SprintExp(e Exp) string {
	var sb strings.Builder
	fprintExp(&sb, 0, e)
	return sb.String()
}

func ind(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("  ")
	}
}

func fprintBody(sb *strings.Builder, depth int, b Body) {
	for _, s := range b.Stmts {
		fprintStmt(sb, depth, s)
		sb.WriteString("\n")
	}
	ind(sb, depth)
	sb.WriteString("in ")
	for i, r := range b.Result {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.String())
	}
}

func fprintStmt(sb *strings.Builder, depth int, s Stmt) {
	ind(sb, depth)
	sb.WriteString("let ")
	for i, pe := range s.Pat {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%s: %s", pe.Name, pe.Type)
	}
	if len(s.Certs) > 0 {
		sb.WriteString(" <")
		for i, c := range s.Certs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.String())
		}
		sb.WriteString(">")
	}
	sb.WriteString(" = ")
	fprintExp(sb, depth, s.Exp)
}

func fprintExp(sb *strings.Builder, depth int, e Exp) {
	switch e := e.(type) {
	case *SubExpOp:
		sb.WriteString(e.SE.String())
	case *UnExp:
		fmt.Fprintf(sb, "%s %s", e.Op, e.X)
	case *BinExp:
		fmt.Fprintf(sb, "%s %s %s", e.Op, e.X, e.Y)
	case *CmpExp:
		fmt.Fprintf(sb, "%s %s %s", e.Op, e.X, e.Y)
	case *IndexExp:
		fmt.Fprintf(sb, "%s[%s]", e.Array, joinSubExps(e.Indices))
	case *UpdateExp:
		fmt.Fprintf(sb, "%s with [%s] = %s", e.Array, joinSubExps(e.Indices), e.Value)
	case *IotaExp:
		fmt.Fprintf(sb, "iota %s", e.N)
	case *ReplicateExp:
		fmt.Fprintf(sb, "replicate %s %s", e.N, e.V)
	case *ScratchExp:
		sb.WriteString("scratch ")
		for _, d := range e.Shape {
			fmt.Fprintf(sb, "[%s]", d)
		}
		sb.WriteString(e.Elem.String())
	case *RearrangeExp:
		sb.WriteString("rearrange (")
		for i, p := range e.Perm {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(sb, "%d", p)
		}
		fmt.Fprintf(sb, ") %s", e.Array)
	case *CopyExp:
		fmt.Fprintf(sb, "copy %s", e.Array)
	case *IfExp:
		fmt.Fprintf(sb, "if %s then {\n", e.Cond)
		fprintBody(sb, depth+1, e.Then)
		sb.WriteString("\n")
		ind(sb, depth)
		sb.WriteString("} else {\n")
		fprintBody(sb, depth+1, e.Else)
		sb.WriteString("\n")
		ind(sb, depth)
		sb.WriteString("}")
	case *LoopExp:
		sb.WriteString("loop {")
		for i, mp := range e.Merge {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s = %s", mp.Param, mp.Init)
		}
		fmt.Fprintf(sb, "} for %s < %s {\n", e.IndexVar, e.Bound)
		fprintBody(sb, depth+1, e.Body)
		sb.WriteString("\n")
		ind(sb, depth)
		sb.WriteString("}")
	case *ParExp:
		fprintParOp(sb, depth, e.Op)
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

func fprintParOp(sb *strings.Builder, depth int, op ParOp) {
	switch op := op.(type) {
	case *Map:
		fmt.Fprintf(sb, "map %s ", op.W)
		fprintLambda(sb, depth, op.Lam)
		fprintArrs(sb, op.Arrs)
	case *Reduce:
		kind := "reduce"
		if op.Comm {
			kind = "reduce_comm"
		}
		fmt.Fprintf(sb, "%s %s ", kind, op.W)
		fprintLambda(sb, depth, op.Lam)
		fmt.Fprintf(sb, " {%s}", joinSubExps(op.Neutral))
		fprintArrs(sb, op.Arrs)
	case *Scan:
		fmt.Fprintf(sb, "scan %s ", op.W)
		fprintLambda(sb, depth, op.Lam)
		fmt.Fprintf(sb, " {%s}", joinSubExps(op.Neutral))
		fprintArrs(sb, op.Arrs)
	case *Redomap:
		fmt.Fprintf(sb, "redomap %s ", op.W)
		fprintLambda(sb, depth, op.RedLam)
		sb.WriteString(" ")
		fprintLambda(sb, depth, op.MapLam)
		fmt.Fprintf(sb, " {%s}", joinSubExps(op.Neutral))
		fprintArrs(sb, op.Arrs)
	case *Stream:
		fmt.Fprintf(sb, "stream %s ", op.W)
		fprintLambda(sb, depth, op.Lam)
		fmt.Fprintf(sb, " {%s}", joinSubExps(op.Accs))
		fprintArrs(sb, op.Arrs)
	case *Write:
		fmt.Fprintf(sb, "write %s ", op.W)
		fprintLambda(sb, depth, op.Lam)
		fprintArrs(sb, op.Arrs)
		sb.WriteString(" ->")
		fprintArrs(sb, op.Dests)
	default:
		fmt.Fprintf(sb, "<%T>", op)
	}
}

func fprintLambda(sb *strings.Builder, depth int, lam Lambda) {
	sb.WriteString("(\\")
	for i, p := range lam.Params {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(sb, "(%s)", p)
	}
	if len(lam.Body.Stmts) == 0 {
		fmt.Fprintf(sb, " -> %s)", joinSubExps(lam.Body.Result))
		return
	}
	sb.WriteString(" -> {\n")
	fprintBody(sb, depth+1, lam.Body)
	sb.WriteString("\n")
	ind(sb, depth)
	sb.WriteString("})")
}

func fprintArrs(sb *strings.Builder, arrs []VName) {
	for _, a := range arrs {
		sb.WriteString(" ")
		sb.WriteString(a.String())
	}
}

func joinSubExps(ses []SubExp) string {
	parts := make([]string, len(ses))
	for i, se := range ses {
		parts[i] = se.String()
	}
	return strings.Join(parts, ", ")
}
