package ot

import "fmt"

// Engine abstracts the rebase algorithm applied to incoming operations.
type Engine interface {
	// TransformIncoming rebases a client operation created at the given base
	// version against every operation applied to the document since then.
	// It returns the operation transformed to apply at the current document
	// state, or ErrVersionTooOld when the base precedes the retained log.
	TransformIncoming(op Operation, base int, doc *Document) (Operation, error)
}

// JupiterEngine implements the Jupiter OT algorithm: the incoming operation
// is transformed sequentially against each server operation the client has
// not yet seen. Server arrival order is the single source of truth for
// operation ordering.
type JupiterEngine struct{}

func (e *JupiterEngine) TransformIncoming(op Operation, base int, doc *Document) (Operation, error) {
	pending, err := doc.OpsSince(base)
	if err != nil {
		return Operation{}, err
	}

	transformed := op
	for i, applied := range pending {
		// The applied op is a, so its inserts keep their place and the
		// incoming op shifts past them on position ties.
		_, transformed, err = Transform(applied, transformed)
		if err != nil {
			return Operation{}, fmt.Errorf("rebase against v%d: %w", base+i+1, err)
		}
	}
	return transformed, nil
}
