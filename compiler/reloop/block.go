// Package reloop holds the nested control flow form produced by the
// upstream restructuring stage: a tree of Simple, Loop and Multiple
// blocks. The tree itself is acyclic and owned top-down; loop cycles
// and dispatch fan-out exist only in the flowgraph rebuilt from it.
package reloop

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/stacclang/stacc/compiler/ir"
)

type (
	// Block is *Simple, *Loop or *Multiple, or nil for "no block".
	Block any

	Simple struct {
		Instrs []ir.Instr
		Next   Block
	}

	Loop struct {
		ID   ir.LoopID
		Body Block
		Next Block
	}

	Multiple struct {
		ID      ir.MultID
		Handled []Block
		Next    Block
	}
)

// RemoveInstr deletes the instruction with the given id from the tree,
// including from nested if-else arms. Reports whether it was found.
func RemoveInstr(b Block, id ir.InstrID) bool {
	switch b := b.(type) {
	case nil:
		return false
	case *Simple:
		if removeFromList(&b.Instrs, id) {
			return true
		}

		return RemoveInstr(b.Next, id)
	case *Loop:
		return RemoveInstr(b.Body, id) || RemoveInstr(b.Next, id)
	case *Multiple:
		for _, h := range b.Handled {
			if RemoveInstr(h, id) {
				return true
			}
		}

		return RemoveInstr(b.Next, id)
	default:
		panic(b)
	}
}

// ReplaceInstr swaps the instruction with the given id for x, which
// must carry the same id. Reports whether it was found.
func ReplaceInstr(b Block, id ir.InstrID, x ir.Instr) bool {
	if x.Ident() != id {
		panic(x)
	}

	switch b := b.(type) {
	case nil:
		return false
	case *Simple:
		if replaceInList(b.Instrs, id, x) {
			return true
		}

		return ReplaceInstr(b.Next, id, x)
	case *Loop:
		return ReplaceInstr(b.Body, id, x) || ReplaceInstr(b.Next, id, x)
	case *Multiple:
		for _, h := range b.Handled {
			if ReplaceInstr(h, id, x) {
				return true
			}
		}

		return ReplaceInstr(b.Next, id, x)
	default:
		panic(b)
	}
}

func removeFromList(l *[]ir.Instr, id ir.InstrID) bool {
	for i, x := range *l {
		if x.Ident() == id {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return true
		}

		if ife, ok := x.(ir.IfElse); ok {
			if removeFromList(&ife.Then, id) || removeFromList(&ife.Else, id) {
				(*l)[i] = ife
				return true
			}
		}
	}

	return false
}

func replaceInList(l []ir.Instr, id ir.InstrID, y ir.Instr) bool {
	for i, x := range l {
		if x.Ident() == id {
			l[i] = y
			return true
		}

		if ife, ok := x.(ir.IfElse); ok {
			if replaceInList(ife.Then, id, y) || replaceInList(ife.Else, id, y) {
				return true
			}
		}
	}

	return false
}

// Dump appends a readable rendering of the tree, for debug logs.
func Dump(b []byte, blk Block) []byte {
	return dump(b, blk, 0)
}

func dump(b []byte, blk Block, d int) []byte {
	switch blk := blk.(type) {
	case nil:
		b = hfmt.Appendf(b, "%*snull\n", d*2, "")
	case *Simple:
		b = hfmt.Appendf(b, "%*ssimple\n", d*2, "")

		for _, x := range blk.Instrs {
			b = hfmt.Appendf(b, "%*s%d: %T%+v\n", d*2+2, "", x.Ident(), x, x)
		}

		b = dump(b, blk.Next, d)
	case *Loop:
		b = hfmt.Appendf(b, "%*sloop %d\n", d*2, "", blk.ID)
		b = dump(b, blk.Body, d+1)
		b = dump(b, blk.Next, d)
	case *Multiple:
		b = hfmt.Appendf(b, "%*smultiple %d\n", d*2, "", blk.ID)

		for _, h := range blk.Handled {
			b = dump(b, h, d+1)
		}

		b = dump(b, blk.Next, d)
	default:
		panic(blk)
	}

	return b
}
