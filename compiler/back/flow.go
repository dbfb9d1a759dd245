package back

import (
	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/reloop"
	"github.com/stacclang/stacc/compiler/set"
)

type (
	// Flowgraph is the instruction-level graph rebuilt from a block
	// tree before each analysis pass and discarded after it. Loop
	// cycles and dispatch fan-out live here, not in the tree.
	Flowgraph struct {
		Instrs map[ir.InstrID]ir.Instr

		Succ map[ir.InstrID]*set.Bits[ir.InstrID]
		Pred map[ir.InstrID]*set.Bits[ir.InstrID]

		Entries *set.Bits[ir.InstrID]
		Exits   *set.Bits[ir.InstrID]
	}

	flowBuilder struct {
		g *Flowgraph

		brk  map[ir.LoopID][]ir.InstrID
		cont map[ir.LoopID][]ir.InstrID
		endh map[ir.MultID][]ir.InstrID
	}
)

// NewFlowgraph walks the block tree and links every instruction to its
// possible successors. Multiple blocks are linked conservatively: every
// predecessor of the dispatch point can reach every handled entry and
// the next block.
func NewFlowgraph(blk reloop.Block) *Flowgraph {
	b := &flowBuilder{
		g: &Flowgraph{
			Instrs:  map[ir.InstrID]ir.Instr{},
			Succ:    map[ir.InstrID]*set.Bits[ir.InstrID]{},
			Pred:    map[ir.InstrID]*set.Bits[ir.InstrID]{},
			Entries: set.New[ir.InstrID](),
			Exits:   set.New[ir.InstrID](),
		},

		brk:  map[ir.LoopID][]ir.InstrID{},
		cont: map[ir.LoopID][]ir.InstrID{},
		endh: map[ir.MultID][]ir.InstrID{},
	}

	entries, exits := b.block(blk)

	b.g.Entries.Or(entries)
	b.g.Exits.Or(exits)

	return b.g
}

func (g *Flowgraph) add(x ir.Instr) ir.InstrID {
	id := x.Ident()

	g.Instrs[id] = x
	g.Succ[id] = set.New[ir.InstrID]()
	g.Pred[id] = set.New[ir.InstrID]()

	return id
}

func (g *Flowgraph) link(from, to ir.InstrID) {
	g.Succ[from].Set(to)
	g.Pred[to].Set(from)
}

func (g *Flowgraph) linkAll(from *set.Bits[ir.InstrID], to *set.Bits[ir.InstrID]) {
	from.Range(func(f ir.InstrID) bool {
		to.Range(func(t ir.InstrID) bool {
			g.link(f, t)

			return true
		})

		return true
	})
}

// RemoveInstr deletes a node, rewiring its predecessors' successor sets
// to the removed node's own successors.
func (g *Flowgraph) RemoveInstr(id ir.InstrID) {
	preds := g.Pred[id]
	succs := g.Succ[id]

	// a single-instruction loop body links to itself; that edge dies with the node
	preds.Clear(id)
	succs.Clear(id)

	preds.Range(func(p ir.InstrID) bool {
		g.Succ[p].Clear(id)
		g.Succ[p].Or(succs)

		return true
	})

	succs.Range(func(s ir.InstrID) bool {
		g.Pred[s].Clear(id)
		g.Pred[s].Or(preds)

		return true
	})

	if g.Entries.IsSet(id) {
		g.Entries.Clear(id)
		g.Entries.Or(succs)
	}

	if g.Exits.IsSet(id) {
		g.Exits.Clear(id)
		g.Exits.Or(preds)
	}

	delete(g.Instrs, id)
	delete(g.Succ, id)
	delete(g.Pred, id)
}

// ReplaceInstr swaps the instruction stored under id. The graph shape
// is untouched, so the replacement must keep the id.
func (g *Flowgraph) ReplaceInstr(id ir.InstrID, x ir.Instr) {
	if x.Ident() != id {
		panic(x)
	}

	g.Instrs[id] = x
}

func (b *flowBuilder) block(blk reloop.Block) (entries, exits *set.Bits[ir.InstrID]) {
	switch blk := blk.(type) {
	case nil:
		return set.New[ir.InstrID](), set.New[ir.InstrID]()
	case *reloop.Simple:
		if len(blk.Instrs) == 0 {
			return b.block(blk.Next)
		}

		entries, exits = b.instrs(blk.Instrs)

		if blk.Next == nil {
			return entries, exits
		}

		nentries, nexits := b.block(blk.Next)

		b.g.linkAll(exits, nentries)

		return entries, nexits
	case *reloop.Loop:
		entries, exits = b.block(blk.Body)

		// back edge
		b.g.linkAll(exits, entries)

		for _, id := range b.cont[blk.ID] {
			b.g.linkAll(single(id), entries)
		}

		breaks := set.New[ir.InstrID]()

		for _, id := range b.brk[blk.ID] {
			breaks.Set(id)
		}

		if blk.Next == nil {
			return entries, breaks
		}

		nentries, nexits := b.block(blk.Next)

		b.g.linkAll(breaks, nentries)

		return entries, nexits
	case *reloop.Multiple:
		entries = set.New[ir.InstrID]()
		hexits := set.New[ir.InstrID]()

		for _, h := range blk.Handled {
			he, hx := b.block(h)

			entries.Or(he)
			hexits.Or(hx)
		}

		for _, id := range b.endh[blk.ID] {
			hexits.Set(id)
		}

		if blk.Next == nil {
			return entries, hexits
		}

		nentries, nexits := b.block(blk.Next)

		// the dispatch may also fall through past all handled blocks
		entries.Or(nentries)

		b.g.linkAll(hexits, nentries)

		return entries, nexits
	default:
		panic(blk)
	}
}

func (b *flowBuilder) instrs(list []ir.Instr) (entries, exits *set.Bits[ir.InstrID]) {
	entries = set.New[ir.InstrID]()
	prev := set.New[ir.InstrID]()

	for i, x := range list {
		id := b.g.add(x)

		if i == 0 {
			entries.Set(id)
		}

		switch x := x.(type) {
		case ir.Br, ir.BrIf:
			// the restructuring stage replaces all unstructured branches
			panic(x)
		case ir.Ret, ir.TailCall:
			b.g.linkAll(prev, single(id))
			b.g.Exits.Set(id)

			prev = set.New[ir.InstrID]()
		case ir.Break:
			b.g.linkAll(prev, single(id))
			b.brk[x.Loop] = append(b.brk[x.Loop], id)

			prev = set.New[ir.InstrID]()
		case ir.Continue:
			b.g.linkAll(prev, single(id))
			b.cont[x.Loop] = append(b.cont[x.Loop], id)

			prev = set.New[ir.InstrID]()
		case ir.EndHandled:
			b.g.linkAll(prev, single(id))
			b.endh[x.Mult] = append(b.endh[x.Mult], id)

			prev = set.New[ir.InstrID]()
		case ir.IfElse:
			b.g.linkAll(prev, single(id))

			prev = set.New[ir.InstrID]()

			for _, arm := range [][]ir.Instr{x.Then, x.Else} {
				if len(arm) == 0 {
					// empty arm falls straight through
					prev.Set(id)
					continue
				}

				ae, ax := b.instrs(arm)

				b.g.linkAll(single(id), ae)
				prev.Or(ax)
			}
		default:
			b.g.linkAll(prev, single(id))

			prev = set.New[ir.InstrID]()
			prev.Set(id)
		}
	}

	return entries, prev
}

func single(id ir.InstrID) *set.Bits[ir.InstrID] {
	s := set.New[ir.InstrID]()
	s.Set(id)

	return s
}
