/*
Package journal enables distributed inventory mutations across processes by
enabling callers to create reproducible changesets that can be stored,
transmitted, and applied consistently across different environments.

The package provides a [Recorder] for collecting and managing inventory
mutation steps, and a [Replay] function for executing these steps. This
enables efficient recording, storage, and replay of store operations,
supporting distributed processing and transaction-like behaviour over
safeguards inventories.

The journal package decouples between domain-specific operations and
applying store mutations, providing a clear separation of responsibilities
between components and inventory stores.
*/
package journal

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"iter"

	"github.com/dt4safeguards/safeguards"
)

// Step represents a single atomic mutation operation on a persisted
// inventory. Each Step encapsulates a specific change that can be applied to
// the store.
//
// In distributed mutation scenarios, Steps form the fundamental units of
// work that can be serialised and transmitted across process boundaries.
//
// All Step implementations must be properly registered with gob to ensure
// consistent behaviour across environments.
type Step interface {
	// Do applies the mutation to the inventory using the provided
	// safeguards.InventoryWriter. It transforms the stored state according to
	// the Step's specific semantics and returns an error if the mutation
	// cannot be applied due to constraints or inconsistencies.
	Do(context.Context, safeguards.InventoryWriter) error
	// Targets returns a sequence of records that this Step affects. This is
	// used to identify which elements are involved in the mutation, allowing
	// engines to track dependencies between steps and optimise execution.
	Targets() iter.Seq[safeguards.ElementRecord]
}

// Encode serialises a slice of Steps into a byte array for storage or
// transmission. It transforms journal steps into a portable format that can
// cross process boundaries while preserving their semantic meaning.
//
// The function uses gob encoding to ensure consistent serialisation across
// Go environments. It returns the encoded bytes and any error encountered
// during the encoding process.
func Encode(s []Step) (data []byte, err error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)
	if err := encoder.Encode(s); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs a slice of Steps from a previously encoded byte
// array. It restores journal steps from their portable format back into
// executable inventory mutations that can be replayed in any compatible
// environment.
//
// This function is essential for distributed mutations, enabling steps
// recorded in one process to be faithfully reproduced in another. It returns
// the decoded steps and any error encountered during the decoding process.
func Decode(data []byte) (steps []Step, err error) {
	var s []Step
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return s, nil
}

// Recorder collects a sequence of inventory mutations (assertions and
// retractions) that can be applied to a store via a
// [safeguards.InventoryWriter]. Each mutation is stored as a separate [Step]
// in the order it was added.
//
// The Recorder acts as the primary entry point for building mutations,
// providing methods to express inventory transformations in domain terms
// rather than low-level store operations.
//
// The zero value of Recorder is ready to use. Do not copy a non-zero
// Recorder.
type Recorder struct {
	steps []Step
}

// Reset clears all accumulated steps, returning the Recorder to its initial
// empty state. This allows the Recorder to be reused for a new mutation
// sequence without allocating a new instance.
func (r *Recorder) Reset() {
	r.steps = nil
}

// Steps returns a copy of the currently recorded mutation steps. The
// returned slice represents the complete sequence of inventory
// transformations captured by this Recorder.
//
// Modifying the returned slice does not affect the Recorder's internal
// state, ensuring the integrity of the original recording.
func (r *Recorder) Steps() []Step {
	s := make([]Step, len(r.steps))
	copy(s, r.steps)
	return s
}

// Replay creates a [safeguards.Mutation] function that sequentially applies
// a series of mutation steps. It transforms recorded steps into an
// executable mutation that can be applied to a persisted inventory.
//
// The returned mutation will process each [Step] in order using the
// provided [safeguards.InventoryWriter], applying the recorded changes to
// the store in a consistent and reproducible manner.
//
// If any step fails during execution, the process stops immediately and
// returns the error, leaving the inventory in a partially modified state.
// Callers may need to implement additional error handling or
// transaction-like behaviour if atomicity is required.
func Replay(steps []Step) safeguards.Mutation {
	return func(ctx context.Context, w safeguards.InventoryWriter) error {
		for _, step := range steps {
			if err := step.Do(ctx, w); err != nil {
				return err
			}
		}
		return nil
	}
}

// Targets iterates over all records affected by the provided steps,
// yielding each target record to the provided function once.
//
// This function is useful for identifying which elements are involved in
// the journal steps, allowing callers to understand the scope of the
// mutations being applied.
func Targets(steps []Step) iter.Seq[safeguards.ElementRecord] {
	return func(yield func(safeguards.ElementRecord) bool) {
		// We are using [safeguards.Seal] because for each record there is a
		// 1-to-1 mapping to a Seal.
		var seen = make(map[safeguards.Seal]struct{})
		for _, step := range steps {
			for target := range step.Targets() {
				// Ensure we only yield each target record once.
				seal := target.Seal()
				if _, ok := seen[seal]; ok {
					continue
				}
				seen[seal] = struct{}{}
				if !yield(target) {
					return
				}
			}
		}
	}
}

// AssertElement records a mutation step that will assert an element in the
// inventory.
//
// When replayed, this step ensures the specified element exists in the
// store, creating it if it doesn't already exist. The element's identity is
// preserved throughout the journal.
func (r *Recorder) AssertElement(rec safeguards.ElementRecord) {
	r.steps = append(r.steps, assertElement{Rec: rec})
}

// RetractElement records a mutation step that will retract an element from
// the inventory.
//
// When replayed, this step removes the specified element from the store
// along with all its containment relationships. This is a destructive
// operation that removes both the element and all its relationships in a
// single step.
func (r *Recorder) RetractElement(rec safeguards.ElementRecord) {
	r.steps = append(r.steps, retractElement{Rec: rec})
}

// AssertContainment records a mutation step that will assert a containment
// relationship between two elements.
//
// When replayed, this step establishes a directed relationship between the
// specified parent and child elements. It also ensures that both elements
// exist in the store, creating them if they do not.
//
// The relationship direction is significant and preserved during replay.
func (r *Recorder) AssertContainment(parent, child safeguards.ElementRecord) {
	r.steps = append(r.steps, assertContainment{Parent: parent, Child: child})
}

// RetractContainments records a mutation step that will retract containment
// relationships from an element.
//
// When replayed, this step removes all relationships between the specified
// element and elements of the specified kind. This is a bulk operation that
// affects all matching relationships in a single step.
func (r *Recorder) RetractContainments(rec safeguards.ElementRecord, kind safeguards.ElementKind) {
	r.steps = append(r.steps, retractContainments{Rec: rec, Kind: kind})
}

// Hold records a mutation step that will assert the one-to-one holding
// relationship between a holding area and a container.
//
// When replayed, this step ensures that the area holds exactly the given
// container and the container is held by exactly the given area. Other
// relationships are not affected. If the relationship already exists, this
// operation is a no-op. If either element does not exist, it will be
// created.
func (r *Recorder) Hold(area, container safeguards.ElementRecord) {
	r.steps = append(r.steps, holdContainer{Area: area, Container: container})
}

// Contain records a mutation step that will assert the one-to-many
// containment relationship from a parent element to a child element.
//
// When replayed, this step ensures that the parent contains the child,
// allowing the parent to contain multiple children, but each child to
// belong to at most one parent of that kind. If either element does not
// exist, it will be created.
func (r *Recorder) Contain(parent, child safeguards.ElementRecord) {
	r.steps = append(r.steps, containElement{Parent: parent, Child: child})
}
