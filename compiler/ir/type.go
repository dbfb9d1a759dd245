package ir

import "tlog.app/go/errors"

type (
	Type interface {
		Size() Size
	}

	// Size is a byte size, known either at compile time or only at
	// run time (arrays with runtime length).
	Size struct {
		Const   uint32
		Runtime bool
	}

	Int struct {
		Bits   int16
		Signed bool
	}

	Float struct {
		Bits int16
	}

	Ptr struct {
		X Type
	}

	Array struct {
		X          Type
		Len        int
		RuntimeLen bool
	}

	Struct struct {
		Fields []StructField
	}

	StructField struct {
		Name   string
		Offset uint32
		Type   Type
	}

	FuncType struct {
		In       []Type
		Out      Type
		Variadic bool
	}

	Void struct{}
)

// PtrSize is the byte size of a pointer on the target (wasm32 linear memory).
const PtrSize = 4

func (x Int) Size() Size {
	return Size{Const: uint32(x.Bits) / 8}
}

func (x Float) Size() Size {
	return Size{Const: uint32(x.Bits) / 8}
}

func (x Ptr) Size() Size {
	return Size{Const: PtrSize}
}

func (x Array) Size() Size {
	if x.RuntimeLen {
		return Size{Runtime: true}
	}

	el := x.X.Size()
	if el.Runtime {
		return Size{Runtime: true}
	}

	return Size{Const: el.Const * uint32(x.Len)}
}

func (x Struct) Size() Size {
	var s uint32

	for _, f := range x.Fields {
		fs := f.Type.Size()
		if fs.Runtime {
			return Size{Runtime: true}
		}

		s += fs.Const
	}

	return Size{Const: s}
}

func (x FuncType) Size() Size {
	return Size{Const: PtrSize}
}

func (x Void) Size() Size {
	return Size{}
}

type (
	// Gen hands out fresh ids. Passes that create vars or labels take
	// it explicitly instead of sharing a global counter.
	Gen[T ~int32] struct {
		next T
	}

	// Meta is the program-wide metadata shared read-only by all
	// per-function passes: var types and categories, the discard
	// sentinel, and id generators.
	Meta struct {
		Types map[Var]Type
		Kinds map[Var]Kind

		// Discard stands in for "no one reads this result". It is
		// never allocated storage.
		Discard Var

		Vars   Gen[Var]
		Labels Gen[LabelID]
		Instrs Gen[InstrID]
	}
)

func (g *Gen[T]) Next() T {
	id := g.next
	g.next++

	return id
}

func NewMeta() *Meta {
	m := &Meta{
		Types: map[Var]Type{},
		Kinds: map[Var]Kind{},
	}

	m.Discard = m.NewVar(Void{}, KindNone)

	return m
}

func (m *Meta) NewVar(tp Type, k Kind) Var {
	v := m.Vars.Next()

	m.Types[v] = tp
	m.Kinds[v] = k

	return v
}

func (m *Meta) NewInstr() InstrID {
	return m.Instrs.Next()
}

func (m *Meta) TypeOf(v Var) (Type, error) {
	tp, ok := m.Types[v]
	if !ok {
		return nil, errors.New("no type recorded for var %v", v)
	}

	return tp, nil
}

func (m *Meta) SizeOf(v Var) (Size, error) {
	tp, err := m.TypeOf(v)
	if err != nil {
		return Size{}, err
	}

	return tp.Size(), nil
}
