package memstore

import (
	"context"

	"github.com/dt4safeguards/safeguards"
)

// A writer implements [safeguards.InventoryWriter] over a staged copy of the
// inventory. All modifications are visible only to the mutation holding the
// writer until Apply commits the staged copy.
type writer struct {
	staged inventory
}

func (w writer) AssertElement(ctx context.Context, rec safeguards.ElementRecord) error {
	w.staged.elements[rec.Seal()] = rec
	return nil
}

func (w writer) RetractElement(ctx context.Context, rec safeguards.ElementRecord) error {
	seal := rec.Seal()
	delete(w.staged.elements, seal)
	for child := range w.staged.children[seal] {
		delete(w.staged.parents[child], seal)
	}
	delete(w.staged.children, seal)
	for parent := range w.staged.parents[seal] {
		delete(w.staged.children[parent], seal)
	}
	delete(w.staged.parents, seal)
	return nil
}

func (w writer) AssertContainment(ctx context.Context, parent, child safeguards.ElementRecord) error {
	from, to := parent.Seal(), child.Seal()
	w.staged.elements[from] = parent
	w.staged.elements[to] = child
	if w.staged.children[from] == nil {
		w.staged.children[from] = make(map[safeguards.Seal]struct{})
	}
	w.staged.children[from][to] = struct{}{}
	if w.staged.parents[to] == nil {
		w.staged.parents[to] = make(map[safeguards.Seal]struct{})
	}
	w.staged.parents[to][from] = struct{}{}
	return nil
}

func (w writer) RetractContainments(ctx context.Context, rec safeguards.ElementRecord, kind safeguards.ElementKind) (n int, err error) {
	seal := rec.Seal()
	// Containments are retracted in both directions, matching the untyped
	// relationship match of the Neo4j engine.
	for child := range w.staged.children[seal] {
		if w.staged.elements[child].Kind != kind {
			continue
		}
		delete(w.staged.children[seal], child)
		delete(w.staged.parents[child], seal)
		n++
	}
	for parent := range w.staged.parents[seal] {
		if w.staged.elements[parent].Kind != kind {
			continue
		}
		delete(w.staged.parents[seal], parent)
		delete(w.staged.children[parent], seal)
		n++
	}
	return n, nil
}
