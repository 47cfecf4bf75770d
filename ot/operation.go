package ot

import (
	"fmt"
	"strings"
)

// Component is a single step in an operation. Exactly one field is set.
type Component struct {
	Retain int    `json:"retain,omitempty"` // skip N chars unchanged
	Insert string `json:"insert,omitempty"` // insert text at the cursor
	Delete int    `json:"delete,omitempty"` // remove N chars at the cursor
}

func (c Component) IsRetain() bool { return c.Retain > 0 && c.Insert == "" && c.Delete == 0 }
func (c Component) IsInsert() bool { return c.Insert != "" }
func (c Component) IsDelete() bool { return c.Delete > 0 && c.Insert == "" }

// Operation is an atomic edit to a room's document, expressed as a sequence
// of components applied left-to-right while a cursor advances through the
// input text.
type Operation struct {
	Ops []Component `json:"ops"`
}

// BaseLen returns the document length the operation expects as input.
func (op Operation) BaseLen() int {
	n := 0
	for _, c := range op.Ops {
		if c.IsRetain() {
			n += c.Retain
		} else if c.IsDelete() {
			n += c.Delete
		}
	}
	return n
}

// TargetLen returns the document length after the operation is applied.
func (op Operation) TargetLen() int {
	n := 0
	for _, c := range op.Ops {
		if c.IsRetain() {
			n += c.Retain
		} else if c.IsInsert() {
			n += len(c.Insert)
		}
	}
	return n
}

// IsNoop reports whether the operation changes nothing.
func (op Operation) IsNoop() bool {
	for _, c := range op.Ops {
		if c.IsInsert() || c.IsDelete() {
			return false
		}
	}
	return true
}

// Apply applies the operation to a document string.
func Apply(doc string, op Operation) (string, error) {
	if len(doc) != op.BaseLen() {
		return "", fmt.Errorf("document length %d != operation base length %d", len(doc), op.BaseLen())
	}
	var b strings.Builder
	b.Grow(op.TargetLen())
	pos := 0
	for _, c := range op.Ops {
		switch {
		case c.IsRetain():
			b.WriteString(doc[pos : pos+c.Retain])
			pos += c.Retain
		case c.IsInsert():
			b.WriteString(c.Insert)
		case c.IsDelete():
			pos += c.Delete
		}
	}
	return b.String(), nil
}

// NewInsert builds an operation inserting text at pos in a document of docLen.
func NewInsert(pos int, text string, docLen int) Operation {
	return NewReplace(pos, 0, text, docLen)
}

// NewDelete builds an operation deleting count chars at pos in a document of docLen.
func NewDelete(pos, count, docLen int) Operation {
	return NewReplace(pos, count, "", docLen)
}

// NewReplace builds an operation replacing count chars at pos with text in a
// document of docLen. count == 0 is a plain insert, text == "" a plain delete.
func NewReplace(pos, count int, text string, docLen int) Operation {
	var ops []Component
	if pos > 0 {
		ops = append(ops, Component{Retain: pos})
	}
	if count > 0 {
		ops = append(ops, Component{Delete: count})
	}
	if text != "" {
		ops = append(ops, Component{Insert: text})
	}
	if remaining := docLen - pos - count; remaining > 0 {
		ops = append(ops, Component{Retain: remaining})
	}
	return Operation{Ops: ops}
}
