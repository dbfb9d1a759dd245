package back

import (
	"sort"

	"fortio.org/safecast"

	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/set"
)

type (
	// VarLoc is a half-open byte interval [Start, Start+Size) relative
	// to the start of the local region. Two locations may share bytes
	// only if their vars do not clash.
	VarLoc struct {
		Var   ir.Var
		Start uint32
		Size  uint32
	}

	// Locations indexes the placements made so far. The three
	// implementations are interchangeable and produce identical
	// placements for identical inputs.
	Locations interface {
		// FindLowestNonClashing returns the lowest-starting location of
		// the given size that overlaps no already-placed clashing var.
		FindLowestNonClashing(v ir.Var, size uint64, g *ClashGraph) VarLoc
		Insert(l VarLoc, g *ClashGraph)
	}

	IndexKind int8
)

const (
	LinearIndex IndexKind = iota
	IntervalIndex
	TreeIndex
)

func newLocations(k IndexKind) Locations {
	switch k {
	case LinearIndex:
		return &linearLocations{}
	case IntervalIndex:
		return &intervalLocations{}
	case TreeIndex:
		return &treeLocations{}
	default:
		panic(k)
	}
}

// End is the exclusive end of the interval.
func (l VarLoc) End() uint32 {
	return l.Start + l.Size
}

func (l VarLoc) Overlaps(o VarLoc) bool {
	return l.Start < o.End() && o.Start < l.End()
}

func locSize(size uint64) uint32 {
	s, err := safecast.Conv[uint32](size)
	if err != nil {
		panic(err)
	}

	return s
}

// linearLocations scans every placed location on each query.
type linearLocations struct {
	locs []VarLoc
}

func (s *linearLocations) FindLowestNonClashing(v ir.Var, size uint64, g *ClashGraph) VarLoc {
	l := VarLoc{Var: v, Size: locSize(size)}

restart:
	for {
		for _, e := range s.locs {
			if !e.Overlaps(l) || !g.Clash(v, e.Var) {
				continue
			}

			// move past the clashing placement and rescan
			l.Start = e.End()

			continue restart
		}

		return l
	}
}

func (s *linearLocations) Insert(l VarLoc, g *ClashGraph) {
	s.locs = append(s.locs, l)
}

// intervalLocations keeps a sorted list of merged clash intervals.
// Placements with the same byte range merge their clash sets, so the
// scan touches each distinct range once and can stop early.
type intervalLocations struct {
	ivs []clashInterval
}

type clashInterval struct {
	start, end uint32 // inclusive
	clashes    *set.Bits[ir.Var]
	universal  bool
}

func (iv *clashInterval) clashesWith(v ir.Var, g *ClashGraph) bool {
	return iv.universal || g.Universal(v) || iv.clashes.IsSet(v)
}

func (s *intervalLocations) FindLowestNonClashing(v ir.Var, size uint64, g *ClashGraph) VarLoc {
	l := VarLoc{Var: v, Size: locSize(size)}

restart:
	for {
		for i := range s.ivs {
			iv := &s.ivs[i]

			if iv.start > l.End()-1 {
				// sorted: everything further is past our range
				break
			}

			if iv.end < l.Start {
				continue
			}

			if iv.clashesWith(v, g) {
				l.Start = iv.end + 1

				continue restart
			}
		}

		return l
	}
}

func (s *intervalLocations) Insert(l VarLoc, g *ClashGraph) {
	iv := clashInterval{
		start:     l.Start,
		end:       l.End() - 1,
		clashes:   g.AllClashes(l.Var),
		universal: g.Universal(l.Var),
	}

	i := sort.Search(len(s.ivs), func(i int) bool {
		e := &s.ivs[i]

		return e.start > iv.start || e.start == iv.start && e.end >= iv.end
	})

	if i < len(s.ivs) && s.ivs[i].start == iv.start && s.ivs[i].end == iv.end {
		s.ivs[i].clashes.Or(iv.clashes)
		s.ivs[i].universal = s.ivs[i].universal || iv.universal

		return
	}

	s.ivs = append(s.ivs, clashInterval{})
	copy(s.ivs[i+1:], s.ivs[i:])
	s.ivs[i] = iv
}
