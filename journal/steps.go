package journal

import (
	"context"
	"encoding/gob"
	"iter"

	"github.com/dt4safeguards/safeguards"
	"github.com/dt4safeguards/safeguards/assert"
)

// We register all Step implementations with gob.Register to enable
// serialisation and deserialisation across process boundaries.
//
// This registration is essential for the distributed mutation workflow,
// allowing steps to be transmitted between different environments and
// processes.
//
// Without this registration, the gob encoder would fail when attempting to
// serialise these types.
func init() {
	gob.Register(assertElement{})
	gob.Register(retractElement{})
	gob.Register(assertContainment{})
	gob.Register(retractContainments{})
	gob.Register(holdContainer{})
	gob.Register(containElement{})
}

// An assertElement is a Step that ensures a specific element exists in the
// inventory.
type assertElement struct {
	Rec safeguards.ElementRecord
}

func (s assertElement) Do(ctx context.Context, w safeguards.InventoryWriter) error {
	return w.AssertElement(ctx, s.Rec)
}

func (s assertElement) Targets() iter.Seq[safeguards.ElementRecord] {
	return func(yield func(safeguards.ElementRecord) bool) {
		if !yield(s.Rec) {
			return
		}
	}
}

// A retractElement is a Step that removes a specific element from the
// inventory along with all its containment relationships.
type retractElement struct {
	Rec safeguards.ElementRecord
}

func (s retractElement) Do(ctx context.Context, w safeguards.InventoryWriter) error {
	return w.RetractElement(ctx, s.Rec)
}

func (s retractElement) Targets() iter.Seq[safeguards.ElementRecord] {
	return func(yield func(safeguards.ElementRecord) bool) {
		if !yield(s.Rec) {
			return
		}
	}
}

// An assertContainment is a Step that creates a containment relationship
// between two elements in the inventory.
type assertContainment struct {
	Parent, Child safeguards.ElementRecord
}

func (s assertContainment) Do(ctx context.Context, w safeguards.InventoryWriter) error {
	return w.AssertContainment(ctx, s.Parent, s.Child)
}

func (s assertContainment) Targets() iter.Seq[safeguards.ElementRecord] {
	return func(yield func(safeguards.ElementRecord) bool) {
		if !yield(s.Parent) {
			return
		}
		if !yield(s.Child) {
			return
		}
	}
}

// A retractContainments is a Step that performs a bulk removal of
// relationships between an element and elements of a specific kind.
type retractContainments struct {
	Rec  safeguards.ElementRecord
	Kind safeguards.ElementKind
}

func (s retractContainments) Do(ctx context.Context, w safeguards.InventoryWriter) error {
	// InventoryWriter.RetractContainments returns the count of relationships
	// actually retracted when called. Retracting an unexpected number of
	// relationships indicates the underlying inventory had become invalid.
	// When we say "invalid" we mean that the specific containment should not
	// have been created while the system operates as expected. The system is
	// designed to always maintain the same relationships between the same
	// element kinds, e.g. a one-to-one relationship between holding areas and
	// containers.
	_, err := w.RetractContainments(ctx, s.Rec, s.Kind)
	if err != nil {
		return err
	}

	return nil
}

func (s retractContainments) Targets() iter.Seq[safeguards.ElementRecord] {
	return func(yield func(safeguards.ElementRecord) bool) {
		if !yield(s.Rec) {
			return
		}
	}
}

// holdContainer is a Step that asserts the one-to-one holding relationship
// between a holding area and a container.
type holdContainer struct {
	Area      safeguards.ElementRecord
	Container safeguards.ElementRecord
}

func (s holdContainer) Do(ctx context.Context, w safeguards.InventoryWriter) error {
	return assert.Inventory(w).Holds(ctx, s.Area, s.Container)
}

func (s holdContainer) Targets() iter.Seq[safeguards.ElementRecord] {
	return func(yield func(safeguards.ElementRecord) bool) {
		if !yield(s.Area) {
			return
		}
		if !yield(s.Container) {
			return
		}
	}
}

// containElement is a Step that asserts the one-to-many containment
// relationship from a parent element to a child element.
type containElement struct {
	Parent safeguards.ElementRecord
	Child  safeguards.ElementRecord
}

func (s containElement) Do(ctx context.Context, w safeguards.InventoryWriter) error {
	return assert.Inventory(w).Contains(ctx, s.Parent, s.Child)
}

func (s containElement) Targets() iter.Seq[safeguards.ElementRecord] {
	return func(yield func(safeguards.ElementRecord) bool) {
		if !yield(s.Parent) {
			return
		}
		if !yield(s.Child) {
			return
		}
	}
}
