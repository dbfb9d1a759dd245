package ir

type (
	// Var is a variable id. Ids are dense, unique and never reused
	// within a program. The value category of a var is kept in Meta.
	Var int32

	// InstrID is an instruction id, assigned once when the instruction
	// is created and stable across all passes mutating the code.
	InstrID int32

	Fun     int32
	LabelID int32
	StrID   int32

	// LoopID and MultID tie break/continue/end instructions to the
	// restructured block they leave.
	LoopID int32
	MultID int32

	// Kind is the value category of a variable.
	Kind int8

	// Instr is one of the instruction forms below.
	// Every form embeds its InstrID.
	Instr interface {
		Ident() InstrID
	}

	// Src is an instruction operand: Var, Imm, FloatImm or Fun.
	Src any

	Imm      int64
	FloatImm float64
)

const (
	Nil     Var     = -1
	NoInstr InstrID = -1
)

const (
	KindNone Kind = iota
	KindLValue
	KindRValue
)

func (id InstrID) Ident() InstrID { return id }

// SrcVar extracts the variable behind an operand, if any.
// Constants and function references carry no variable.
func SrcVar(s Src) (Var, bool) {
	v, ok := s.(Var)
	return v, ok
}

type (
	UnOp   int8
	BinOp  int8
	BrCond int8
	ConvOp int8
)

const (
	BitNot UnOp = iota
	LogNot
)

const (
	Mul BinOp = iota
	Div
	Mod
	Add
	Sub
	Shl
	Shr
	BitAnd
	BitOr
	BitXor
	LogAnd
	LogOr
	Lt
	Gt
	Le
	Ge
	Eq
	Ne
)

const (
	IfEq BrCond = iota
	IfNe
)

const (
	I8toI16 ConvOp = iota
	I8toU16
	U8toI16
	U8toU16
	I16toI32
	U16toI32
	I16toU32
	U16toU32
	I32toU32
	I32toU64
	U32toU64
	I64toU64
	I32toI64
	U32toI64
	U32toF32
	I32toF32
	U64toF32
	I64toF32
	U32toF64
	I32toF64
	U64toF64
	I64toF64
	F32toF64
	F64toI32
	I32toI8
	U32toI8
	I64toI8
	U64toI8
	I32toU8
	U32toU8
	I64toU8
	U64toU8
	I64toI32
	U64toI32
	U32toPtr
	I32toPtr
	PtrToI32
)

type (
	Assign struct {
		InstrID
		Dest Var
		Src  Src
	}

	// Load reads through the pointer in Addr into Dest.
	Load struct {
		InstrID
		Dest Var
		Addr Src
	}

	// Store writes Src through the pointer held by Addr.
	// It defines nothing.
	Store struct {
		InstrID
		Addr Var
		Src  Src
	}

	Declare struct {
		InstrID
		Dest Var
	}

	// AllocDyn reserves Size bytes at run time and defines Dest as a
	// pointer to them. Runtime-sized vars reach the allocator only in
	// this lowered form.
	AllocDyn struct {
		InstrID
		Dest Var
		Size Src
	}

	// AddrOf takes the address of Src. The operand var becomes
	// aliasable and must clash with everything.
	AddrOf struct {
		InstrID
		Dest Var
		Src  Src
	}

	Unary struct {
		InstrID
		Op   UnOp
		Dest Var
		Src  Src
	}

	Binary struct {
		InstrID
		Op   BinOp
		Dest Var
		L, R Src
	}

	Conv struct {
		InstrID
		Op   ConvOp
		Dest Var
		Src  Src
	}

	// StrPtr defines Dest as a pointer to a string literal.
	StrPtr struct {
		InstrID
		Dest Var
		Str  StrID
	}

	Call struct {
		InstrID
		Dest Var
		Fun  Src
		Args []Src
	}

	TailCall struct {
		InstrID
		Fun  Src
		Args []Src
	}

	Ret struct {
		InstrID
		Src Src // nil for void
	}

	Label struct {
		InstrID
		L LabelID
	}

	// Br and BrIf are only legal before the restructuring stage.
	Br struct {
		InstrID
		Target LabelID
	}

	BrIf struct {
		InstrID
		Cond   BrCond
		L, R   Src
		Target LabelID
	}

	Nop struct {
		InstrID
	}

	Break struct {
		InstrID
		Loop LoopID
	}

	Continue struct {
		InstrID
		Loop LoopID
	}

	EndHandled struct {
		InstrID
		Mult MultID
	}

	// IfElse dispatches on a comparison into one of two nested
	// instruction lists.
	IfElse struct {
		InstrID
		Cond BrCond
		L, R Src
		Then []Instr
		Else []Instr
	}
)
