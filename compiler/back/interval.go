package back

import (
	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/set"
)

type (
	// treeLocations keeps placements in an interval tree. Each node
	// holds the union of clash sets of every location placed at that
	// exact byte range, and the max end of its subtree, so overlap
	// queries skip whole subtrees.
	treeLocations struct {
		root *treeNode
	}

	treeNode struct {
		left, right, parent *treeNode
		red                 bool

		start, end uint32 // inclusive
		max        uint32 // max end in this subtree

		clashes   *set.Bits[ir.Var]
		universal bool
	}
)

func (s *treeLocations) FindLowestNonClashing(v ir.Var, size uint64, g *ClashGraph) VarLoc {
	l := VarLoc{Var: v, Size: locSize(size)}

restart:
	for {
		for _, n := range s.overlaps(s.root, l, nil) {
			if n.universal || g.Universal(v) || n.clashes.IsSet(v) {
				l.Start = n.end + 1

				continue restart
			}
		}

		return l
	}
}

func (s *treeLocations) Insert(l VarLoc, g *ClashGraph) {
	s.insert(l.Start, l.End()-1, g.AllClashes(l.Var), g.Universal(l.Var))
}

func (s *treeLocations) overlaps(n *treeNode, l VarLoc, out []*treeNode) []*treeNode {
	if n == nil {
		return out
	}

	if n.left != nil && n.left.max >= l.Start {
		out = s.overlaps(n.left, l, out)
	}

	if n.start <= l.End()-1 && l.Start <= n.end {
		out = append(out, n)
	}

	if n.right != nil && n.start <= l.End()-1 && n.right.max >= l.Start {
		out = s.overlaps(n.right, l, out)
	}

	return out
}

// insert adds the range, merging clash data into an existing node with
// the exact same range.
func (s *treeLocations) insert(start, end uint32, clashes *set.Bits[ir.Var], universal bool) {
	var parent *treeNode
	x := s.root

	for x != nil {
		parent = x

		if start == x.start && end == x.end {
			x.clashes.Or(clashes)
			x.universal = x.universal || universal

			return
		}

		if start <= x.start {
			x = x.left
		} else {
			x = x.right
		}
	}

	n := &treeNode{
		parent:    parent,
		red:       true,
		start:     start,
		end:       end,
		max:       end,
		clashes:   clashes,
		universal: universal,
	}

	if parent == nil {
		s.root = n
	} else if n.start <= parent.start {
		parent.left = n
	} else {
		parent.right = n
	}

	s.fixupInsert(n)
	s.bubbleMax(n)
}

func (s *treeLocations) bubbleMax(n *treeNode) {
	for n.parent != nil && n.parent.max < n.max {
		n.parent.max = n.max
		n = n.parent
	}
}

func (n *treeNode) updateMax() {
	n.max = n.end

	if n.left != nil && n.left.max > n.max {
		n.max = n.left.max
	}

	if n.right != nil && n.right.max > n.max {
		n.max = n.right.max
	}
}

func (s *treeLocations) leftRotate(x *treeNode) {
	y := x.right
	if y == nil {
		return
	}

	x.right = y.left
	if x.right != nil {
		x.right.parent = x
	}

	y.parent = x.parent

	switch {
	case x.parent == nil:
		s.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}

	y.left = x
	x.parent = y

	y.max = x.max
	x.updateMax()
}

func (s *treeLocations) rightRotate(x *treeNode) {
	y := x.left
	if y == nil {
		return
	}

	x.left = y.right
	if x.left != nil {
		x.left.parent = x
	}

	y.parent = x.parent

	switch {
	case x.parent == nil:
		s.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}

	y.right = x
	x.parent = y

	y.max = x.max
	x.updateMax()
}

func (s *treeLocations) fixupInsert(n *treeNode) {
	for n.parent != nil && n.parent.red {
		// parent is red, so the grandparent exists: the root is black
		gp := n.parent.parent

		if n.parent == gp.left {
			u := gp.right

			if u != nil && u.red {
				n.parent.red = false
				u.red = false
				gp.red = true
				n = gp

				continue
			}

			if n == n.parent.right {
				n = n.parent
				s.leftRotate(n)
			}

			n.parent.red = false
			n.parent.parent.red = true
			s.rightRotate(n.parent.parent)
		} else {
			u := gp.left

			if u != nil && u.red {
				n.parent.red = false
				u.red = false
				gp.red = true
				n = gp

				continue
			}

			if n == n.parent.left {
				n = n.parent
				s.rightRotate(n)
			}

			n.parent.red = false
			n.parent.parent.red = true
			s.leftRotate(n.parent.parent)
		}
	}

	s.root.red = false
}
