package ot

import (
	"errors"
	"fmt"
)

// ErrVersionTooOld is returned when an operation's base version precedes the
// oldest version retained in the document's history. The client cannot be
// rebased and must resynchronize from the full current document.
var ErrVersionTooOld = errors.New("base version precedes retained history")

// Document holds a room's text, its monotonically increasing version, and
// the retained tail of the operation log. The version equals the number of
// operations ever applied; history may be trimmed from the front, in which
// case firstVersion marks the base version of the oldest retained op.
type Document struct {
	Content string
	Version int

	history      []Operation
	firstVersion int
	retention    int // max retained ops; 0 means unlimited
}

// NewDocument creates a document at version 0 with the given content.
func NewDocument(content string) *Document {
	return &Document{Content: content}
}

// NewDocumentAt restores a document at a known version with a (possibly
// partial) history tail ending at that version.
func NewDocumentAt(content string, version int, history []Operation) *Document {
	return &Document{
		Content:      content,
		Version:      version,
		history:      history,
		firstVersion: version - len(history),
	}
}

// SetRetention bounds the number of retained history entries. Operations
// older than the window can no longer be rebased against.
func (d *Document) SetRetention(n int) {
	d.retention = n
	d.trim()
}

// OpsSince returns the operations applied after the given version, oldest
// first. ErrVersionTooOld is returned when version precedes the retained
// window.
func (d *Document) OpsSince(version int) ([]Operation, error) {
	if version < d.firstVersion {
		return nil, fmt.Errorf("version %d, oldest retained %d: %w", version, d.firstVersion, ErrVersionTooOld)
	}
	if version > d.Version {
		return nil, fmt.Errorf("version %d is ahead of document version %d", version, d.Version)
	}
	return d.history[version-d.firstVersion:], nil
}

// Apply applies an operation to the document, bumping the version and
// appending to the retained history.
func (d *Document) Apply(op Operation) error {
	if op.IsNoop() {
		return nil
	}
	result, err := Apply(d.Content, op)
	if err != nil {
		return fmt.Errorf("apply to document v%d: %w", d.Version, err)
	}
	d.Content = result
	d.Version++
	d.history = append(d.history, op)
	d.trim()
	return nil
}

func (d *Document) trim() {
	if d.retention <= 0 || len(d.history) <= d.retention {
		return
	}
	drop := len(d.history) - d.retention
	d.history = append([]Operation(nil), d.history[drop:]...)
	d.firstVersion += drop
}
