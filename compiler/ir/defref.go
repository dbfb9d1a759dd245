package ir

// Def returns the variable an instruction defines, or Nil.
// At most one variable is ever defined.
func Def(x Instr) Var {
	switch x := x.(type) {
	case Assign:
		return x.Dest
	case Load:
		return x.Dest
	case Declare:
		return x.Dest
	case AllocDyn:
		return x.Dest
	case AddrOf:
		return x.Dest
	case Unary:
		return x.Dest
	case Binary:
		return x.Dest
	case Conv:
		return x.Dest
	case StrPtr:
		return x.Dest
	case Call:
		return x.Dest
	case Store, TailCall, Ret, Label, Br, BrIf, Nop, Break, Continue, EndHandled, IfElse:
		return Nil
	default:
		panic(x)
	}
}

// Refs appends the variables an instruction reads to buf.
// Constants and function references contribute nothing. For IfElse only
// the compared operands count; the nested instructions are classified
// on their own.
func Refs(x Instr, buf []Var) []Var {
	src := func(s Src) {
		if v, ok := SrcVar(s); ok {
			buf = append(buf, v)
		}
	}

	switch x := x.(type) {
	case Assign:
		src(x.Src)
	case Load:
		src(x.Addr)
	case Store:
		buf = append(buf, x.Addr)
		src(x.Src)
	case Declare:
	case AllocDyn:
		src(x.Size)
	case AddrOf:
		src(x.Src)
	case Unary:
		src(x.Src)
	case Binary:
		src(x.L)
		src(x.R)
	case Conv:
		src(x.Src)
	case StrPtr:
	case Call:
		for _, a := range x.Args {
			src(a)
		}
	case TailCall:
		for _, a := range x.Args {
			src(a)
		}
	case Ret:
		if x.Src != nil {
			src(x.Src)
		}
	case BrIf:
		src(x.L)
		src(x.R)
	case IfElse:
		src(x.L)
		src(x.R)
	case Label, Br, Nop, Break, Continue, EndHandled:
	default:
		panic(x)
	}

	return buf
}

// HasSideEffect reports whether an instruction has an externally
// visible effect beyond defining its destination. Only calls do.
func HasSideEffect(x Instr) bool {
	switch x.(type) {
	case Call, TailCall:
		return true
	default:
		return false
	}
}
