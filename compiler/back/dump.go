package back

import (
	"sort"

	"github.com/nikandfor/hacked/hfmt"

	"github.com/stacclang/stacc/compiler/ir"
)

// DumpClashGraph appends a readable rendering of the graph, for debug
// logs and failing tests.
func DumpClashGraph(b []byte, g *ClashGraph) []byte {
	vars := make([]ir.Var, 0, len(g.clashes))

	for v := range g.clashes {
		vars = append(vars, v)
	}

	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })

	for _, v := range vars {
		b = hfmt.Appendf(b, "%d:", v)

		if g.universal.IsSet(v) {
			b = hfmt.Appendf(b, " universal")
		}

		g.clashes[v].Range(func(c ir.Var) bool {
			b = hfmt.Appendf(b, " %d", c)

			return true
		})

		b = append(b, '\n')
	}

	return b
}

// DumpAlloc appends var offsets sorted by var id.
func DumpAlloc(b []byte, m AllocationMap) []byte {
	vars := make([]ir.Var, 0, len(m))

	for v := range m {
		vars = append(vars, v)
	}

	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })

	for _, v := range vars {
		b = hfmt.Appendf(b, "%d: +%d\n", v, m[v])
	}

	return b
}
