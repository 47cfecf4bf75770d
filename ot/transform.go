package ot

import "fmt"

// Transform takes two concurrent operations a and b (both based on the same
// document state) and returns aPrime and bPrime such that:
//
//	Apply(Apply(doc, a), bPrime) == Apply(Apply(doc, b), aPrime)
//
// When both sides insert at the same position, a's insert lands first; when
// both delete the same span, the span is removed once. The engine passes the
// already-applied operation as a, so concurrent inserts land in the order the
// server applied them.
func Transform(a, b Operation) (aPrime, bPrime Operation, err error) {
	if a.BaseLen() != b.BaseLen() {
		return Operation{}, Operation{}, fmt.Errorf(
			"base lengths differ: a=%d, b=%d", a.BaseLen(), b.BaseLen())
	}

	var ap, bp []Component
	sa := newScanner(a.Ops)
	sb := newScanner(b.Ops)

	for sa.hasNext() || sb.hasNext() {
		// Inserts consume no input and go first; a wins the tie-break.
		if sa.peekType() == compInsert {
			c := sa.take(0)
			ap = append(ap, Component{Insert: c.Insert})
			bp = append(bp, Component{Retain: len(c.Insert)})
			continue
		}
		if sb.peekType() == compInsert {
			c := sb.take(0)
			bp = append(bp, Component{Insert: c.Insert})
			ap = append(ap, Component{Retain: len(c.Insert)})
			continue
		}

		// Both sides consume input now. Take the shorter chunk.
		if !sa.hasNext() || !sb.hasNext() {
			return Operation{}, Operation{}, fmt.Errorf("transform ran out of components")
		}

		n := min(sa.peekLen(), sb.peekLen())
		ca := sa.take(n)
		cb := sb.take(n)

		switch {
		case ca.IsRetain() && cb.IsRetain():
			ap = append(ap, Component{Retain: n})
			bp = append(bp, Component{Retain: n})
		case ca.IsDelete() && cb.IsRetain():
			ap = append(ap, Component{Delete: n})
		case ca.IsRetain() && cb.IsDelete():
			bp = append(bp, Component{Delete: n})
		case ca.IsDelete() && cb.IsDelete():
			// Both delete the same chars; nothing left to transform.
		}
	}

	return Operation{Ops: compact(ap)}, Operation{Ops: compact(bp)}, nil
}

// compact merges adjacent components of the same kind.
func compact(ops []Component) []Component {
	if len(ops) == 0 {
		return ops
	}
	var result []Component
	for _, c := range ops {
		if len(result) == 0 {
			result = append(result, c)
			continue
		}
		last := &result[len(result)-1]
		switch {
		case c.IsRetain() && last.IsRetain():
			last.Retain += c.Retain
		case c.IsDelete() && last.IsDelete():
			last.Delete += c.Delete
		case c.IsInsert() && last.IsInsert():
			last.Insert += c.Insert
		default:
			result = append(result, c)
		}
	}
	return result
}

type compType int

const (
	compNone compType = iota
	compRetain
	compInsert
	compDelete
)

// scanner walks operation components, allowing partial consumption.
type scanner struct {
	ops    []Component
	index  int
	offset int
}

func newScanner(ops []Component) *scanner {
	return &scanner{ops: ops}
}

func (s *scanner) hasNext() bool {
	return s.index < len(s.ops)
}

func (s *scanner) peekType() compType {
	if !s.hasNext() {
		return compNone
	}
	c := s.ops[s.index]
	switch {
	case c.IsInsert():
		return compInsert
	case c.IsDelete():
		return compDelete
	default:
		return compRetain
	}
}

func (s *scanner) peekLen() int {
	if !s.hasNext() {
		return 0
	}
	c := s.ops[s.index]
	switch {
	case c.IsRetain():
		return c.Retain - s.offset
	case c.IsInsert():
		return len(c.Insert) - s.offset
	case c.IsDelete():
		return c.Delete - s.offset
	}
	return 0
}

// take consumes n units from the current component. For inserts, n=0 takes
// the whole remainder.
func (s *scanner) take(n int) Component {
	c := s.ops[s.index]
	remaining := s.peekLen()

	switch {
	case c.IsRetain():
		if n >= remaining {
			s.index++
			s.offset = 0
			return Component{Retain: remaining}
		}
		s.offset += n
		return Component{Retain: n}

	case c.IsInsert():
		if n == 0 || n >= remaining {
			text := c.Insert[s.offset:]
			s.index++
			s.offset = 0
			return Component{Insert: text}
		}
		text := c.Insert[s.offset : s.offset+n]
		s.offset += n
		return Component{Insert: text}

	case c.IsDelete():
		if n >= remaining {
			s.index++
			s.offset = 0
			return Component{Delete: remaining}
		}
		s.offset += n
		return Component{Delete: n}
	}

	s.index++
	return Component{}
}
