package back

import (
	"context"
	"sort"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/stacclang/stacc/compiler/ir"
	"github.com/stacclang/stacc/compiler/reloop"
)

type (
	Strategy int8

	// Allocator assigns frame-relative byte offsets to every local var
	// of a function body. The optimized strategy packs vars that never
	// clash into the same bytes; the naive one lays everything out
	// disjointly.
	Allocator struct {
		Strategy Strategy
		Index    IndexKind
	}

	// AllocationMap is the one persisted artifact of this stage:
	// frame-relative offsets per var, excluding parameters and the
	// discard sentinel.
	AllocationMap map[ir.Var]uint32

	clashEntry struct {
		v       ir.Var
		clashes int
		size    uint64
	}
)

const (
	Naive Strategy = iota
	Optimized
)

func New(s Strategy, ix IndexKind) *Allocator {
	return &Allocator{Strategy: s, Index: ix}
}

// AllocateLocals lays out the local vars of one function body. The
// region below the locals holds the frame pointer, the return slot and
// the parameters, in that order; parameters are allocated there by the
// caller convention before this stage runs and are excluded from the
// map. Returns the offsets and the extra frame bytes the locals take.
func (a *Allocator) AllocateLocals(ctx context.Context, blk reloop.Block, ret ir.Type, params []ir.Var, m *ir.Meta) (_ AllocationMap, _ uint32, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "allocate locals", "strategy", a.Strategy, "index", a.Index)
	defer tr.Finish("err", &err)

	start := uint32(ir.PtrSize)

	rs := ret.Size()
	if rs.Runtime {
		return nil, 0, errors.New("runtime sized return type")
	}

	start += rs.Const

	skip := map[ir.Var]struct{}{}

	for _, p := range params {
		sz, err := m.SizeOf(p)
		if err != nil {
			return nil, 0, errors.Wrap(err, "param %v", p)
		}
		if sz.Runtime {
			return nil, 0, errors.New("runtime sized param %v", p)
		}

		start += sz.Const
		skip[p] = struct{}{}
	}

	var offsets AllocationMap
	var frame uint32

	switch a.Strategy {
	case Naive:
		offsets, frame, err = a.naive(ctx, blk, start, skip, m)
	case Optimized:
		offsets, frame, err = a.optimized(ctx, blk, start, skip, m)
	default:
		panic(a.Strategy)
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "locals")
	}

	if tr.If("alloc") {
		tr.Printw("locals allocated", "start", start, "frame", frame, "text", string(DumpAlloc(nil, offsets)))
	}

	return offsets, frame, nil
}

// AllocateGlobals lays out module-level vars from the initial top of
// stack address. Globals live for the whole program, so only the
// disjoint layout applies.
func (a *Allocator) AllocateGlobals(ctx context.Context, blk reloop.Block, topOfStack uint32, m *ir.Meta) (_ AllocationMap, _ uint32, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "allocate globals", "top", topOfStack)
	defer tr.Finish("err", &err)

	return a.naive(ctx, blk, topOfStack, nil, m)
}

// naive places vars at strictly increasing disjoint offsets in var id
// order, ignoring the clash graph. Correct for any input; the baseline
// the optimized strategy is measured against.
func (a *Allocator) naive(ctx context.Context, blk reloop.Block, start uint32, skip map[ir.Var]struct{}, m *ir.Meta) (AllocationMap, uint32, error) {
	vars, err := collectVars(blk, skip, m)
	if err != nil {
		return nil, 0, err
	}

	order := sortedVars(vars)

	offsets := make(AllocationMap, len(order))
	var inc uint32

	for _, v := range order {
		offsets[v] = start + inc
		inc += locSize(vars[v])
	}

	return offsets, inc, nil
}

// optimized runs dead code elimination, builds the clash graph, orders
// vars from fewest clashes up and places each at the lowest offset not
// overlapping any clashing placement. Vars that cannot be live together
// end up sharing bytes.
func (a *Allocator) optimized(ctx context.Context, blk reloop.Block, start uint32, skip map[ir.Var]struct{}, m *ir.Meta) (AllocationMap, uint32, error) {
	tr := tlog.SpanFromContext(ctx)

	RemoveDeadCode(ctx, blk, m)

	cg := BuildClashGraph(ctx, blk)

	vars, err := collectVars(blk, skip, m)
	if err != nil {
		return nil, 0, err
	}

	order := allocationOrder(vars, cg)

	tr.V("alloc_order").Printw("allocation order", "order", order)

	index := newLocations(a.Index)
	offsets := make(AllocationMap, len(order))
	var frame uint32

	for _, v := range order {
		l := index.FindLowestNonClashing(v, vars[v], cg)
		index.Insert(l, cg)

		offsets[v] = start + l.Start

		if l.End() > frame {
			frame = l.End()
		}

		tr.V("alloc_place").Printw("place", "var", v, "start", l.Start, "size", l.Size)
	}

	return offsets, frame, nil
}

// allocationOrder repeatedly extracts the var with fewest clashes
// (ties: smaller size, then smaller id) from a working copy of the
// graph, deleting it as it goes so later picks see reduced counts.
// Low-clash vars come first and so land at low addresses, leaving
// maximal room for the high-clash vars placed after them.
func allocationOrder(vars map[ir.Var]uint64, cg *ClashGraph) []ir.Var {
	wg := cg.Copy()

	h := heap.Heap[clashEntry]{Less: clashLess}

	for v, size := range vars {
		h.Push(clashEntry{v: v, clashes: wg.CountClashes(v), size: size})
	}

	order := make([]ir.Var, 0, len(vars))

	for h.Len() != 0 {
		e := h.Pop()

		// counts drop as vars are removed; re-queue stale entries
		if cur := wg.CountClashes(e.v); cur != e.clashes {
			e.clashes = cur
			h.Push(e)

			continue
		}

		order = append(order, e.v)
		wg.RemoveVar(e.v)
	}

	return order
}

func clashLess(d []clashEntry, i, j int) bool {
	if d[i].clashes != d[j].clashes {
		return d[i].clashes < d[j].clashes
	}

	if d[i].size != d[j].size {
		return d[i].size < d[j].size
	}

	return d[i].v < d[j].v
}

// collectVars gathers every var the block tree defines, with its byte
// size. The discard sentinel and skipped (parameter) vars are left out,
// as are zero-sized vars, which need no storage. A runtime-sized var
// here is a defect in an earlier stage: it must already have been
// lowered to a pointer.
func collectVars(blk reloop.Block, skip map[ir.Var]struct{}, m *ir.Meta) (map[ir.Var]uint64, error) {
	vars := map[ir.Var]uint64{}

	err := collectBlockVars(blk, skip, m, vars)
	if err != nil {
		return nil, err
	}

	return vars, nil
}

func collectBlockVars(blk reloop.Block, skip map[ir.Var]struct{}, m *ir.Meta, vars map[ir.Var]uint64) error {
	switch blk := blk.(type) {
	case nil:
		return nil
	case *reloop.Simple:
		err := collectListVars(blk.Instrs, skip, m, vars)
		if err != nil {
			return err
		}

		return collectBlockVars(blk.Next, skip, m, vars)
	case *reloop.Loop:
		err := collectBlockVars(blk.Body, skip, m, vars)
		if err != nil {
			return err
		}

		return collectBlockVars(blk.Next, skip, m, vars)
	case *reloop.Multiple:
		for _, h := range blk.Handled {
			err := collectBlockVars(h, skip, m, vars)
			if err != nil {
				return err
			}
		}

		return collectBlockVars(blk.Next, skip, m, vars)
	default:
		panic(blk)
	}
}

func collectListVars(list []ir.Instr, skip map[ir.Var]struct{}, m *ir.Meta, vars map[ir.Var]uint64) error {
	for _, x := range list {
		if ife, ok := x.(ir.IfElse); ok {
			err := collectListVars(ife.Then, skip, m, vars)
			if err != nil {
				return err
			}

			err = collectListVars(ife.Else, skip, m, vars)
			if err != nil {
				return err
			}

			continue
		}

		d := ir.Def(x)
		if d == ir.Nil || d == m.Discard {
			continue
		}

		if _, ok := skip[d]; ok {
			continue
		}

		sz, err := m.SizeOf(d)
		if err != nil {
			return errors.Wrap(err, "var %v", d)
		}

		if sz.Runtime {
			return errors.New("runtime sized var %v reached the stack allocator", d)
		}

		if sz.Const == 0 {
			continue
		}

		vars[d] = uint64(sz.Const)
	}

	return nil
}

func sortedVars(vars map[ir.Var]uint64) []ir.Var {
	order := make([]ir.Var, 0, len(vars))

	for v := range vars {
		order = append(order, v)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return order
}
