package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int32 | ~int64
	}

	// Bits is a bitmap set over dense non-negative ids.
	Bits[K Key] struct {
		b []uint64
	}
)

func New[K Key]() *Bits[K] {
	return &Bits[K]{}
}

func Make[K Key](Len int) Bits[K] {
	s := Bits[K]{}

	Len = (Len + 63) / 64

	if Len > 0 {
		s.b = make([]uint64, Len)
	}

	return s
}

func (s *Bits[K]) Set(k K) {
	i, j := s.ij(k)

	s.grow(i)

	s.b[i] |= 1 << j
}

func (s *Bits[K]) Clear(k K) {
	i, j := s.ij(k)

	if i >= len(s.b) {
		return
	}

	s.b[i] &^= 1 << j
}

func (s *Bits[K]) IsSet(k K) bool {
	if s == nil {
		return false
	}

	i, j := s.ij(k)

	if i >= len(s.b) {
		return false
	}

	return (s.b[i] & (1 << j)) != 0
}

func (s *Bits[K]) Or(x *Bits[K]) {
	if x == nil {
		return
	}

	s.grow(len(x.b) - 1)

	for i, x := range x.b {
		s.b[i] |= x
	}
}

func (s *Bits[K]) AndNot(x *Bits[K]) {
	if x == nil {
		return
	}

	for i, x := range x.b {
		if i == len(s.b) {
			break
		}

		s.b[i] &^= x
	}
}

func (s *Bits[K]) Size() (r int) {
	if s == nil {
		return 0
	}

	for _, c := range s.b {
		r += bits.OnesCount64(c)
	}

	return r
}

func (s *Bits[K]) Copy() *Bits[K] {
	r := New[K]()
	r.Or(s)

	return r
}

func (s *Bits[K]) Reset() {
	for i := range s.b {
		s.b[i] = 0
	}
}

func (s *Bits[K]) Equal(x *Bits[K]) bool {
	l, r := s.b, x.b

	if len(l) > len(r) {
		l, r = r, l
	}

	for i, c := range l {
		if c != r[i] {
			return false
		}
	}

	for _, c := range r[len(l):] {
		if c != 0 {
			return false
		}
	}

	return true
}

func (s *Bits[K]) Range(f func(k K) bool) {
	if s == nil {
		return
	}

	for i, x := range s.b {
		if x == 0 {
			continue
		}

		for j := 0; j < 64; j++ {
			if (x & (1 << j)) == 0 {
				continue
			}

			if !f(K(i*64 + j)) {
				return
			}
		}
	}
}

func (s *Bits[K]) First() K {
	for i, x := range s.b {
		if x == 0 {
			continue
		}

		j := bits.TrailingZeros64(x)

		return K(i*64 + j)
	}

	return -1
}

func (s *Bits[K]) Last() K {
	for i := len(s.b) - 1; i >= 0; i-- {
		if s.b[i] == 0 {
			continue
		}

		j := 64 - bits.LeadingZeros64(s.b[i]) - 1

		return K(i*64 + j)
	}

	return -1
}

func (s *Bits[K]) Len() int {
	return int(s.Last()) + 1
}

func (s *Bits[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s == nil || s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func (s *Bits[K]) ij(k K) (i int, j int) {
	i, j = int(k)/64, int(k)%64

	return i, j
}

func (s *Bits[K]) grow(i int) {
	for i >= len(s.b) {
		s.b = append(s.b, 0)
	}
}
