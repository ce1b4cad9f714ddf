package safeguards

import "context"

// ChangeObserver defines an interface for implementing the observation of
// changes to a persisted safeguards inventory. Implementers of
// ChangeObserver are responsible for detecting and summarising changes to
// the stored declarations since the last observation, with the goal of
// maintaining an accurate and up-to-date reflection of the supervised site.
//
// The WhatChanged method is the primary means of tracking these changes. It
// serves as an observer that methodically scans the store for mutations,
// effectively differentiating between newly declared, updated, and removed
// facilities. WhatChanged should provide high-level insights into the site's
// evolution without the need for implementers to understand the intricacies
// of the underlying store mechanisms.
type ChangeObserver interface {
	WhatChanged(context.Context) (InventoryChanged, error)
}

// A Mutation is a function that applies a set of changes to a persisted
// inventory using the given InventoryWriter and returns a non-nil error if
// those fail. It supports transactional semantics via an Applier.
//
// See the examples for demonstrations on how to write mutations.
type Mutation func(ctx context.Context, w InventoryWriter) error

// An Applier applies a Mutation to a persisted inventory atomically and
// concurrently.
//
// It is up to the Applier to maintain the inventory's data integrity;
// therefore, any Mutations that fail must not commit changes to the store.
//
// An Applier's Apply method is called concurrently. Thus, implementations
// must allow for concurrent execution.
//
// A Mutation is called with an InventoryWriter. It's up to the
// implementation to determine how to acquire such an InventoryWriter and
// pass it to each Mutation.
type Applier interface {
	Apply(ctx context.Context, mutation Mutation) error
}

// InventoryWriter defines the operations used to modify a persisted
// safeguards inventory. Specific store engines (e.g. Neo4j) are expected to
// implement these primitive operations.
type InventoryWriter interface {
	// AssertElement guarantees that by the time it returns with a nil error,
	// the provided record will have been present in the persisted inventory.
	//
	// If the record is already present, the function has no meaningful effect
	// (though implementations may update metadata about the element in the
	// store engine), and a nil error is returned. Otherwise, it attempts to
	// insert a new element with properties that correspond to the provided
	// record.
	AssertElement(ctx context.Context, rec ElementRecord) (err error)

	// RetractElement guarantees that by the time it returns with a nil error,
	// the provided record will have no longer been represented in the
	// persisted inventory.
	//
	// If the record is not present, the function has no meaningful effect and
	// a nil error is returned. Otherwise, it attempts to remove the element
	// that corresponds to the provided record.
	RetractElement(ctx context.Context, rec ElementRecord) (err error)

	// AssertContainment guarantees that by the time it returns with a nil
	// error, a containment relationship from the parent record to the child
	// record will have been present in the persisted inventory. It also
	// ensures that both elements exist in the store, creating them if they do
	// not.
	//
	// If the relationship already exists, the function has no meaningful
	// effect (though implementations may update metadata about the
	// relationship within the store engine), and a nil error is returned.
	AssertContainment(ctx context.Context, parent, child ElementRecord) (err error)

	// RetractContainments guarantees that by the time it returns with a nil
	// error, any containment relationships between the given element and
	// elements of the given kind will have been removed from the persisted
	// inventory.
	//
	// If no such relationships are present, the function has no meaningful
	// effect and a nil error is returned. Otherwise, it attempts to remove
	// any relationships that satisfy the criteria of having the given element
	// at one end and another element of the given kind at the other,
	// regardless of the relationship's direction. Either way, the number of
	// detached relationships is returned.
	//
	// The exact stored element is uniquely identified by the Seal of the
	// given record.
	RetractContainments(ctx context.Context, rec ElementRecord, kind ElementKind) (n int, err error)
}
