/*
Package assert provides syntax sugar for modifying the containment
relationships between elements of persisted safeguards inventories according
to the patterns of the domain. A holding area holds at most one container (a
one-to-one association), while facilities and rooms contain any number of
child elements, each child belonging to exactly one parent (a one-to-many
association).

Ensuring that these relationships are correctly established, maintained, and
modified is essential for accurately reflecting the physical containment of
nuclear material within the model.

The package defines interfaces that allow specific
[safeguards.InventoryWriter] implementations to specialise for those
patterns. For example, holding a container involves two wildcard
retractions, which can be omitted if the area and the container are already
connected according to the association's constraints.
*/
package assert

import (
	"context"
	"fmt"

	"github.com/dt4safeguards/safeguards"
)

// Inventory extends the given [safeguards.InventoryWriter]. It returns a
// type that supports additional assertions of the domain's containment
// relationships.
//
// When asserting relationships between two given records, the relation must
// be true for all records of the same kinds. That is, every pair of a
// holding area and a container must always be asserted with Holds, and every
// other parent and child pair with Contains.
//
// Relationship assertion functions panic if they detect that the inventory
// they are operating on violated that constraint before calling them. The
// store is not directly observed, rather the number of retracted
// relationships hints about its prior state. It is safe to assume that the
// inventory lost its integrity because the existence of more relationships
// than allowed by the association violates the above constraint.
func Inventory(w safeguards.InventoryWriter) relationshipWriter {
	return relationshipWriter{w}
}

type relationshipWriter struct {
	safeguards.InventoryWriter
}

// Holds asserts that a strict one-to-one relationship exists between the
// given holding area and container records.
//
// If the underlying InventoryWriter implements the HoldsAsserter interface,
// its specialised implementation is called instead.
//
// To maintain the one-to-one relationship between the two given records, any
// prior connections are adjusted. Specifically:
//
//   - Relationships between the given area and any container are retracted.
//   - Relationships between the given container and any holding area are
//     retracted.
//
// If during its operation, the function had retracted too many
// relationships (more than one) in any direction, the function panics,
// according to the constraints mentioned on [Inventory].
func (a relationshipWriter) Holds(ctx context.Context, area, container safeguards.ElementRecord) error {
	if x, ok := a.InventoryWriter.(HoldsAsserter); ok {
		return x.AssertHolds(ctx, area, container)
	}

	fromArea, err := a.RetractContainments(ctx, area, container.Kind)
	if err != nil {
		return fmt.Errorf("retract containments of area: %w", err)
	} else if fromArea > 1 {
		// A holding area always holds at most a single container.
		panic(newInventoryIntegrityError("holds", "of the area", fromArea))
	}

	toContainer, err := a.RetractContainments(ctx, container, area.Kind)
	if err != nil {
		return fmt.Errorf("retract containments of container: %w", err)
	} else if toContainer > 1 {
		// A container is always held by at most a single holding area.
		panic(newInventoryIntegrityError("holds", "of the container", toContainer))
	}

	err = a.AssertContainment(ctx, area, container)
	if err != nil {
		return fmt.Errorf("assert containment: %w", err)
	}

	return nil
}

// HoldsAsserter is the interface implemented by
// [safeguards.InventoryWriter] types that specialise in asserting the
// holding relationship between areas and containers.
//
// Implementations may choose to not revert the modifications made to the
// store during AssertHolds because transaction management (or other
// equivalent rollback mechanisms) is up to the [safeguards.Applier].
type HoldsAsserter interface {
	// AssertHolds returns a nil error after it had successfully asserted
	// that:
	//
	//  - There's only a single containment relationship between the given
	//    area and any container.
	//  - There's only a single containment relationship between the given
	//    container and any holding area.
	//  - That single relationship connects the given area and the given
	//    container.
	//
	// Otherwise, it returns a non-nil error and the inventory may have been
	// partially modified. Callers should be aware of that and manage rollback
	// on their own.
	AssertHolds(ctx context.Context, area, container safeguards.ElementRecord) error
}

// Contains asserts that a strict one-to-many relationship exists between
// the given parent and child records.
//
// If the underlying InventoryWriter implements the ContainsAsserter
// interface, its specialised implementation is called instead.
//
// To maintain the one-to-many relationship between the two given records,
// some prior connections are adjusted. Specifically:
//
//   - Relationships between the given parent and other children of the same
//     kind are retained.
//   - Relationships between the given child and any parent of the same kind
//     as the given parent are retracted.
//
// If during its operation, the function had retracted too many
// relationships (more than one) of the child record, the function panics,
// according to the constraints mentioned on [Inventory].
func (a relationshipWriter) Contains(ctx context.Context, parent, child safeguards.ElementRecord) error {
	if x, ok := a.InventoryWriter.(ContainsAsserter); ok {
		return x.AssertContains(ctx, parent, child)
	}

	toChild, err := a.RetractContainments(ctx, child, parent.Kind)
	if err != nil {
		return fmt.Errorf("retract containments of child: %w", err)
	} else if toChild > 1 {
		// A containment tree gives every element at most one parent.
		panic(newInventoryIntegrityError("contains", "of the child", toChild))
	}

	err = a.AssertContainment(ctx, parent, child)
	if err != nil {
		return fmt.Errorf("assert containment: %w", err)
	}

	return nil
}

// ContainsAsserter is the interface implemented by
// [safeguards.InventoryWriter] types that specialise in asserting the
// containment relationship between parents and their children.
//
// Implementations may choose to not revert the modifications made to the
// store during AssertContains because transaction management (or other
// equivalent rollback mechanisms) is up to the [safeguards.Applier].
type ContainsAsserter interface {
	// AssertContains returns a nil error after it had successfully asserted
	// that:
	//
	//  - There's only a single containment relationship between the given
	//    child and any parent of the same kind as the given parent.
	//  - That single relationship connects the given parent and the given
	//    child.
	//
	// Otherwise, it returns a non-nil error and the inventory may have been
	// partially modified. Callers should be aware of that and manage rollback
	// on their own.
	AssertContains(ctx context.Context, parent, child safeguards.ElementRecord) error
}

// Assertions call newInventoryIntegrityError when the stored containment
// violates the expected relationships between elements, indicating an
// inconsistency in the inventory's state.
//
// The returned error is panicked to enforce developer consistency when
// asserting the strict relationships (holds or contains), where the number
// of retracted relationships suggests the inventory lost its integrity,
// probably due to developer misuse (e.g. asserting different relationships
// in different mutations).
//
// This function expects the relationship argument to be one of "holds" or
// "contains".
//
// This function expects the direction argument to be one of "of the area",
// "of the container" or "of the child".
func newInventoryIntegrityError(relationship, direction string, affected int) error {
	switch relationship {
	case "holds", "contains":
	default:
		panic("github.com/dt4safeguards/safeguards/assert: unknown relationship: " + relationship)
	}
	switch direction {
	case "of the area", "of the container", "of the child":
	default:
		panic("github.com/dt4safeguards/safeguards/assert: unknown direction: " + direction)
	}
	return fmt.Errorf("inconsistent inventory detected: relationship %v was violated with %v affected containments %v", relationship, affected, direction)
}
