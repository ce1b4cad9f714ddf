package safeguards_test

import (
	"context"
	"fmt"

	"github.com/dt4safeguards/safeguards"
)

// It is common for a Mutation to be an anonymous function that captures in
// its closure the records with which the inventory is modified.
func ExampleMutation_anonymous() {
	var applier printApplier

	// Usually, domain components define a set of functions, each returning a
	// mutation that modifies the inventory according to its domain-specific
	// parameters.
	contain := func(parent, child safeguards.ElementRecord) safeguards.Mutation {
		// A mutation is often an anonymous function because its signature forces that
		// the records (to be represented in the inventory) are passed in via closure.
		return func(ctx context.Context, w safeguards.InventoryWriter) error {
			return w.AssertContainment(ctx, parent, child)
		}
	}

	facility := safeguards.ElementRecord{Kind: safeguards.KindFacility, ID: 0, Name: "Gorleben"}
	room := safeguards.ElementRecord{Kind: safeguards.KindRoom, ID: 1, Name: "Hall 1"}
	_ = applier.Apply(context.Background(), contain(facility, room))
	// Output:
	// Facility(#0 Gorleben) -> Room(#1 Hall 1)
}

// This example showcases the relationship between the [safeguards.Applier]
// and [safeguards.InventoryWriter] interfaces.
func ExampleApplier() {
	// Specific store engines (e.g. neo4j) provide types that implement the
	// Applier interface. This example relies on the printApplier.
	applier := printApplier{}

	area := safeguards.ElementRecord{Kind: safeguards.KindHoldingArea, ID: 2, Name: "Bay 1"}
	cask := safeguards.ElementRecord{Kind: safeguards.KindContainer, ID: 3, Name: "Cask V/19", Category: "Castor"}
	_ = applier.Apply(context.Background(), func(ctx context.Context, w safeguards.InventoryWriter) error {
		_ = w.AssertElement(ctx, cask)
		_ = w.AssertContainment(ctx, area, cask)
		_, _ = w.RetractContainments(ctx, area, safeguards.KindContainer)
		_ = w.RetractElement(ctx, cask)
		return nil
	})
	// Output:
	// + Container(#3 Cask V/19)
	// HoldingArea(#2 Bay 1) -> Container(#3 Cask V/19)
	// HoldingArea(#2 Bay 1) <-/-> Container
	// - Container(#3 Cask V/19)
}

// A printApplier applies mutations with a safeguards.InventoryWriter that
// prints inventory modifications to stdout.
type printApplier struct{}

func (x printApplier) Apply(ctx context.Context, mutation safeguards.Mutation) error {
	return mutation(ctx, x)
}

func (x printApplier) AssertElement(ctx context.Context, rec safeguards.ElementRecord) (err error) {
	fmt.Println("+", rec)
	return nil
}

func (x printApplier) RetractElement(ctx context.Context, rec safeguards.ElementRecord) (err error) {
	fmt.Println("-", rec)
	return nil
}

func (x printApplier) AssertContainment(ctx context.Context, parent, child safeguards.ElementRecord) (err error) {
	fmt.Println(parent, "->", child)
	return nil
}

func (x printApplier) RetractContainments(_ context.Context, rec safeguards.ElementRecord, kind safeguards.ElementKind) (n int, err error) {
	fmt.Println(rec, "<-/->", kind)
	return 0, nil
}
