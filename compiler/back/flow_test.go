package back

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/reloop"
	"github.com/stacclang/stacc/compiler/set"
)

func newI32(m *ir.Meta) ir.Var {
	return m.NewVar(ir.Int{Bits: 32, Signed: true}, ir.KindRValue)
}

func newPtr(m *ir.Meta) ir.Var {
	return m.NewVar(ir.Ptr{X: ir.Int{Bits: 32, Signed: true}}, ir.KindLValue)
}

func keys[K set.Key](s *set.Bits[K]) []K {
	var r []K

	s.Range(func(k K) bool {
		r = append(r, k)

		return true
	})

	return r
}

func assertSet[K set.Key](t *testing.T, s *set.Bits[K], want ...K) {
	t.Helper()

	got := keys(s)

	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	assert.Equal(t, want, got)
}

func TestFlowgraphChain(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)
	b := newI32(m)

	i0, i1, i2 := m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{Instrs: []ir.Instr{
		ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(1)},
		ir.Binary{InstrID: i1, Op: ir.Add, Dest: b, L: a, R: ir.Imm(2)},
		ir.Ret{InstrID: i2, Src: b},
	}}

	g := NewFlowgraph(blk)

	require.Len(t, g.Instrs, 3)

	assertSet(t, g.Entries, i0)
	assertSet(t, g.Exits, i2)

	assertSet(t, g.Succ[i0], i1)
	assertSet(t, g.Succ[i1], i2)
	assertSet(t, g.Succ[i2])

	assertSet(t, g.Pred[i0])
	assertSet(t, g.Pred[i1], i0)
	assertSet(t, g.Pred[i2], i1)
}

func TestFlowgraphIfElse(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)
	b := newI32(m)

	i0, i1, i2, i3 := m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{Instrs: []ir.Instr{
		ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(1)},
		ir.IfElse{
			InstrID: i1,
			Cond:    ir.IfEq,
			L:       a, R: ir.Imm(0),
			Then: []ir.Instr{ir.Assign{InstrID: i2, Dest: b, Src: ir.Imm(2)}},
		},
		ir.Ret{InstrID: i3},
	}}

	g := NewFlowgraph(blk)

	assertSet(t, g.Succ[i0], i1)
	// taken arm and empty-arm fall-through
	assertSet(t, g.Succ[i1], i2, i3)
	assertSet(t, g.Succ[i2], i3)
	assertSet(t, g.Pred[i3], i1, i2)
}

func TestFlowgraphLoop(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)

	i0, i1, i2, i3, i4, i5 := m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{
		Instrs: []ir.Instr{
			ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(0)},
		},
		Next: &reloop.Loop{
			ID: 0,
			Body: &reloop.Simple{Instrs: []ir.Instr{
				ir.Binary{InstrID: i1, Op: ir.Add, Dest: a, L: a, R: ir.Imm(1)},
				ir.IfElse{
					InstrID: i2,
					Cond:    ir.IfEq,
					L:       a, R: ir.Imm(10),
					Then: []ir.Instr{ir.Break{InstrID: i3, Loop: 0}},
					Else: []ir.Instr{ir.Continue{InstrID: i4, Loop: 0}},
				},
			}},
			Next: &reloop.Simple{Instrs: []ir.Instr{
				ir.Ret{InstrID: i5, Src: a},
			}},
		},
	}

	g := NewFlowgraph(blk)

	assertSet(t, g.Entries, i0)
	assertSet(t, g.Exits, i5)

	assertSet(t, g.Succ[i0], i1)
	assertSet(t, g.Succ[i1], i2)
	assertSet(t, g.Succ[i2], i3, i4)
	// break leaves to the block after the loop
	assertSet(t, g.Succ[i3], i5)
	// continue goes back to the loop entry
	assertSet(t, g.Succ[i4], i1)

	assertSet(t, g.Pred[i1], i0, i4)
}

func TestFlowgraphLoopBackEdge(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)

	i0, i1, i2 := m.NewInstr(), m.NewInstr(), m.NewInstr()

	// body falls off its end, so the whole body repeats
	blk := &reloop.Loop{
		ID: 0,
		Body: &reloop.Simple{Instrs: []ir.Instr{
			ir.Binary{InstrID: i0, Op: ir.Add, Dest: a, L: a, R: ir.Imm(1)},
			ir.IfElse{
				InstrID: i1,
				Cond:    ir.IfEq,
				L:       a, R: ir.Imm(10),
				Then: []ir.Instr{ir.Break{InstrID: i2, Loop: 0}},
			},
		}},
	}

	g := NewFlowgraph(blk)

	assertSet(t, g.Succ[i1], i0, i2)
	// loop without a next block: break exits the graph
	assertSet(t, g.Exits, i2)
}

func TestFlowgraphMultiple(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)

	i0, i1, i2, i3, i4 := m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{
		Instrs: []ir.Instr{
			ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(0)},
		},
		Next: &reloop.Multiple{
			ID: 0,
			Handled: []reloop.Block{
				&reloop.Simple{Instrs: []ir.Instr{
					ir.Assign{InstrID: i1, Dest: a, Src: ir.Imm(1)},
					ir.EndHandled{InstrID: i2, Mult: 0},
				}},
				&reloop.Simple{Instrs: []ir.Instr{
					ir.Assign{InstrID: i3, Dest: a, Src: ir.Imm(2)},
				}},
			},
			Next: &reloop.Simple{Instrs: []ir.Instr{
				ir.Ret{InstrID: i4, Src: a},
			}},
		},
	}

	g := NewFlowgraph(blk)

	// dispatch may enter any handled block or fall through
	assertSet(t, g.Succ[i0], i1, i3, i4)
	assertSet(t, g.Succ[i1], i2)
	assertSet(t, g.Succ[i2], i4)
	assertSet(t, g.Succ[i3], i4)
	assertSet(t, g.Pred[i4], i0, i2, i3)
}

func TestFlowgraphRemoveInstr(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)
	b := newI32(m)

	i0, i1, i2 := m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{Instrs: []ir.Instr{
		ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(1)},
		ir.Assign{InstrID: i1, Dest: b, Src: ir.Imm(2)},
		ir.Ret{InstrID: i2},
	}}

	g := NewFlowgraph(blk)

	g.RemoveInstr(i1)

	require.Len(t, g.Instrs, 2)

	assertSet(t, g.Succ[i0], i2)
	assertSet(t, g.Pred[i2], i0)
	assertSet(t, g.Entries, i0)
	assertSet(t, g.Exits, i2)

	g.RemoveInstr(i0)

	assertSet(t, g.Entries, i2)
	assertSet(t, g.Pred[i2])
}

func TestFlowgraphRemoveInstrSelfEdge(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)
	b := newI32(m)

	i0, i1 := m.NewInstr(), m.NewInstr()

	// single-instruction loop body carries a self edge
	blk := &reloop.Simple{
		Instrs: []ir.Instr{
			ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(1)},
		},
		Next: &reloop.Loop{
			ID: 0,
			Body: &reloop.Simple{Instrs: []ir.Instr{
				ir.Binary{InstrID: i1, Op: ir.Add, Dest: b, L: a, R: ir.Imm(2)},
			}},
		},
	}

	g := NewFlowgraph(blk)

	assertSet(t, g.Succ[i1], i1)
	assertSet(t, g.Pred[i1], i0, i1)

	g.RemoveInstr(i1)

	require.Len(t, g.Instrs, 1)

	// no edge may point at the deleted node
	assertSet(t, g.Succ[i0])
	assert.NotContains(t, g.Succ, i1)
	assert.NotContains(t, g.Pred, i1)
}

func TestFlowgraphUnstructuredBranchPanics(t *testing.T) {
	m := ir.NewMeta()

	i0 := m.NewInstr()

	assert.Panics(t, func() {
		NewFlowgraph(&reloop.Simple{Instrs: []ir.Instr{
			ir.Br{InstrID: i0, Target: 0},
		}})
	})
}
