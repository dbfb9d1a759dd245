package back

import (
	"context"
	"sort"

	"tlog.app/go/tlog"

	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/set"
)

// LiveMap records, per instruction, the variables live at it: everything
// its successors may still read, minus its own definition, plus its own
// references.
type LiveMap map[ir.InstrID]*set.Bits[ir.Var]

// Liveness runs backward may-liveness over the flowgraph, relaxing the
// whole graph until the map stops changing. Sets only grow between
// rounds, so plain equality detects the fixpoint. A var referenced with
// no reaching definition (a parameter) stays live up to function entry;
// that is expected.
func Liveness(ctx context.Context, g *Flowgraph) LiveMap {
	tr := tlog.SpanFromContext(ctx)

	live := make(LiveMap, len(g.Instrs))

	ids := make([]ir.InstrID, 0, len(g.Instrs))

	for id := range g.Instrs {
		ids = append(ids, id)
	}

	// reverse id order converges fast on mostly-sequential code and
	// makes the round count deterministic
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	var refs []ir.Var

	rounds := 0

	for changed := true; changed; rounds++ {
		changed = false

		for _, id := range ids {
			x := g.Instrs[id]

			out := set.New[ir.Var]()

			g.Succ[id].Range(func(s ir.InstrID) bool {
				out.Or(live[s])

				return true
			})

			if d := ir.Def(x); d != ir.Nil {
				out.Clear(d)
			}

			refs = ir.Refs(x, refs[:0])

			for _, v := range refs {
				out.Set(v)
			}

			if prev, ok := live[id]; !ok || !prev.Equal(out) {
				live[id] = out
				changed = true
			}
		}
	}

	if tr.If("liveness") {
		for _, id := range ids {
			tr.Printw("live", "id", id, "typ", tlog.NextAsType, g.Instrs[id], "vars", live[id])
		}

		tr.Printw("liveness fixpoint", "instrs", len(ids), "rounds", rounds)
	}

	return live
}
