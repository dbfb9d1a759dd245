package back

import (
	"context"
	"sort"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/reloop"
)

// RemoveDeadCode deletes instructions whose result is live at no
// successor, iterating full passes until nothing changes so that chains
// of newly-dead definitions are exposed. A dead call is kept, its
// destination rewritten to the discard sentinel. Block tree and
// flowgraph are mutated together, under the same instruction ids.
func RemoveDeadCode(ctx context.Context, blk reloop.Block, m *ir.Meta) *Flowgraph {
	tr := tlog.SpanFromContext(ctx)

	g := NewFlowgraph(blk)

	for pass := 0; ; pass++ {
		live := Liveness(ctx, g)

		var remove []ir.InstrID
		var replace []ir.Instr

		for id, x := range g.Instrs {
			d := ir.Def(x)
			if d == ir.Nil || d == m.Discard {
				continue
			}

			alive := false

			g.Succ[id].Range(func(s ir.InstrID) bool {
				alive = live[s].IsSet(d)

				return !alive
			})

			if alive {
				continue
			}

			if !ir.HasSideEffect(x) {
				remove = append(remove, id)
				continue
			}

			switch x := x.(type) {
			case ir.Call:
				x.Dest = m.Discard
				replace = append(replace, x)
			default:
				panic(x)
			}
		}

		if len(remove) == 0 && len(replace) == 0 {
			tr.V("dce").Printw("dead code removed", "passes", pass)

			return g
		}

		sort.Slice(remove, func(i, j int) bool { return remove[i] < remove[j] })
		sort.Slice(replace, func(i, j int) bool { return replace[i].Ident() < replace[j].Ident() })

		for _, id := range remove {
			drop(tr, g, blk, id)
		}

		for _, x := range replace {
			id := x.Ident()

			tr.V("dce").Printw("discard dead call result", "id", id, "typ", tlog.NextAsType, x)

			g.ReplaceInstr(id, x)
			reloop.ReplaceInstr(blk, id, x)
		}
	}
}

func drop(tr tlog.Span, g *Flowgraph, blk reloop.Block, id ir.InstrID) {
	tr.V("dce").Printw("remove dead instr", "id", id, "typ", tlog.NextAsType, g.Instrs[id], "from", loc.Caller(1))

	g.RemoveInstr(id)
	reloop.RemoveInstr(blk, id)
}
