package back

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/reloop"
)

func TestClashGraphPairs(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)
	b := newI32(m)
	c := newI32(m)

	i0, i1, i2, i3 := m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{Instrs: []ir.Instr{
		ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(1)},
		ir.Assign{InstrID: i1, Dest: b, Src: ir.Imm(2)},
		ir.Binary{InstrID: i2, Op: ir.Add, Dest: c, L: a, R: b},
		ir.Ret{InstrID: i3, Src: c},
	}}

	g := BuildClashGraph(context.Background(), blk)

	// a and b are live together at the sum, c never overlaps either
	assert.True(t, g.Clash(a, b))
	assert.True(t, g.Clash(b, a))
	assert.False(t, g.Clash(a, c))
	assert.False(t, g.Clash(b, c))
	assert.False(t, g.Clash(a, a))

	assert.Equal(t, 1, g.CountClashes(a))
	assert.Equal(t, 1, g.CountClashes(b))
	assert.Equal(t, 0, g.CountClashes(c))
}

func TestClashGraphDisjointLifetimes(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)
	b := newI32(m)

	i0, i1, i2, i3, i4 := m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{Instrs: []ir.Instr{
		ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(1)},
		ir.Call{InstrID: i1, Dest: m.Discard, Fun: ir.Fun(0), Args: []ir.Src{a}},
		ir.Assign{InstrID: i2, Dest: b, Src: ir.Imm(2)},
		ir.Call{InstrID: i3, Dest: m.Discard, Fun: ir.Fun(0), Args: []ir.Src{b}},
		ir.Ret{InstrID: i4},
	}}

	g := BuildClashGraph(context.Background(), blk)

	assert.False(t, g.Clash(a, b))
	assert.Equal(t, 0, g.CountClashes(a))
	assert.Equal(t, 0, g.CountClashes(b))
}

func TestClashGraphAddrOf(t *testing.T) {
	m := ir.NewMeta()

	a := newI32(m)
	p := newPtr(m)
	b := newI32(m)

	i0, i1, i2, i3, i4 := m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr(), m.NewInstr()

	blk := &reloop.Simple{Instrs: []ir.Instr{
		ir.Assign{InstrID: i0, Dest: a, Src: ir.Imm(1)},
		ir.AddrOf{InstrID: i1, Dest: p, Src: a},
		ir.Assign{InstrID: i2, Dest: b, Src: ir.Imm(5)},
		ir.Store{InstrID: i3, Addr: p, Src: b},
		ir.Ret{InstrID: i4},
	}}

	g := BuildClashGraph(context.Background(), blk)

	assert.True(t, g.Universal(a))

	// the address may alias a's storage at any point, so a clashes with
	// everything even though its tracked lifetime ends at the addr-of
	assert.True(t, g.Clash(a, p))
	assert.True(t, g.Clash(a, b))
	assert.True(t, g.Clash(b, a))
	assert.False(t, g.Clash(a, a))

	assert.Equal(t, ClashMax, g.CountClashes(a))
	assert.Equal(t, 1, g.CountClashes(p))
	assert.Equal(t, 1, g.CountClashes(b))
}

func TestClashGraphRemoveVar(t *testing.T) {
	g := BuildClashGraph(context.Background(), nil)

	g.AddClash(1, 2)
	g.AddClash(2, 3)
	g.MarkUniversal(4)

	assert.Equal(t, 2, g.CountClashes(2))

	g.RemoveVar(2)

	assert.Equal(t, 0, g.CountClashes(1))
	assert.Equal(t, 0, g.CountClashes(3))
	assert.False(t, g.Clash(1, 3))

	g.RemoveVar(4)

	assert.False(t, g.Universal(4))
	assert.False(t, g.Clash(4, 1))

	// never added at all
	assert.False(t, g.Clash(99, 1))
	assert.False(t, g.Clash(1, 99))
	assert.Equal(t, 0, g.CountClashes(99))
}

func TestClashGraphCopy(t *testing.T) {
	g := BuildClashGraph(context.Background(), nil)

	g.AddClash(1, 2)
	g.MarkUniversal(3)

	cp := g.Copy()

	cp.RemoveVar(1)
	cp.RemoveVar(3)

	assert.True(t, g.Clash(1, 2))
	assert.True(t, g.Universal(3))
	assert.False(t, cp.Clash(1, 2))
	assert.False(t, cp.Universal(3))
}
