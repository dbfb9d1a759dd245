package back

import (
	"context"
	"math"

	"tlog.app/go/tlog"

	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/reloop"
	"github.com/stacclang/stacc/compiler/set"
)

// ClashMax is returned by CountClashes for universally clashing vars.
const ClashMax = math.MaxInt

// ClashGraph is a symmetric interference relation: two vars clash when
// they may be live at the same time and so must never share bytes.
// Address-taken vars clash universally: a pointer may alias their
// storage, and liveness alone cannot bound that.
type ClashGraph struct {
	clashes   map[ir.Var]*set.Bits[ir.Var]
	universal *set.Bits[ir.Var]
}

// BuildClashGraph regenerates a flowgraph and liveness map from the
// (already dead-code-eliminated) block tree and records a clash between
// every pair of vars that appear in one live set together.
func BuildClashGraph(ctx context.Context, blk reloop.Block) *ClashGraph {
	tr := tlog.SpanFromContext(ctx)

	g := NewFlowgraph(blk)
	live := Liveness(ctx, g)

	cg := &ClashGraph{
		clashes:   map[ir.Var]*set.Bits[ir.Var]{},
		universal: set.New[ir.Var](),
	}

	for _, d := range live {
		if d.Size() < 2 {
			// still register the var so the allocator can place it
			d.Range(func(v ir.Var) bool {
				cg.AddVar(v)

				return true
			})

			continue
		}

		d.Range(func(x ir.Var) bool {
			d.Range(func(y ir.Var) bool {
				if x != y {
					cg.AddClash(x, y)
				}

				return true
			})

			return true
		})
	}

	for _, x := range g.Instrs {
		a, ok := x.(ir.AddrOf)
		if !ok {
			continue
		}

		if v, ok := ir.SrcVar(a.Src); ok {
			cg.MarkUniversal(v)
		}
	}

	if tr.If("clash_graph") {
		tr.Printw("clash graph", "text", string(DumpClashGraph(nil, cg)))
	}

	return cg
}

func (g *ClashGraph) AddVar(v ir.Var) {
	if _, ok := g.clashes[v]; !ok {
		g.clashes[v] = set.New[ir.Var]()
	}
}

func (g *ClashGraph) AddClash(a, b ir.Var) {
	g.AddVar(a)
	g.clashes[a].Set(b)

	g.AddVar(b)
	g.clashes[b].Set(a)
}

func (g *ClashGraph) MarkUniversal(v ir.Var) {
	g.AddVar(v)
	g.universal.Set(v)
}

// CountClashes is the allocation-order heuristic: ClashMax for
// universally clashing vars, the edge count otherwise. A var absent
// from the graph has no clashes.
func (g *ClashGraph) CountClashes(v ir.Var) int {
	if g.universal.IsSet(v) {
		return ClashMax
	}

	return g.clashes[v].Size()
}

// Clash reports whether two vars may not share bytes. Symmetric; a var
// absent from the graph clashes with nothing.
func (g *ClashGraph) Clash(a, b ir.Var) bool {
	if a == b {
		return false
	}

	if g.universal.IsSet(a) || g.universal.IsSet(b) {
		return true
	}

	return g.clashes[a].IsSet(b)
}

func (g *ClashGraph) Universal(v ir.Var) bool {
	return g.universal.IsSet(v)
}

// AllClashes returns a copy of the vars v clashes with by edge.
// Universal clashing is reported separately by Universal.
func (g *ClashGraph) AllClashes(v ir.Var) *set.Bits[ir.Var] {
	return g.clashes[v].Copy()
}

// RemoveVar deletes v and every edge incident to it.
func (g *ClashGraph) RemoveVar(v ir.Var) {
	delete(g.clashes, v)

	for _, d := range g.clashes {
		d.Clear(v)
	}

	g.universal.Clear(v)
}

func (g *ClashGraph) Copy() *ClashGraph {
	cp := &ClashGraph{
		clashes:   make(map[ir.Var]*set.Bits[ir.Var], len(g.clashes)),
		universal: g.universal.Copy(),
	}

	for v, d := range g.clashes {
		cp.clashes[v] = d.Copy()
	}

	return cp
}
