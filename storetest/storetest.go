/*
Package storetest provides a suite of tests designed to assess safeguards
inventory stores (e.g. in-memory, neo4j).

The tests operate on the specific store via the [safeguards.Applier] and
[safeguards.ChangeObserver] interfaces to check functional correctness and
compliance with the behaviours defined by those interfaces.

Call storetest.Run in its own test to invoke the test-suite:

	func TestEngine(t *testing.T) {
		// Create a new store engine over the underlying database.
		engine := NewEngine(context.Background(), driver, database)
		// Call storetest.Run, passing the engine as both safeguards.Applier
		// and safeguards.ChangeObserver implementation.
		storetest.Run(t, engine, engine)
	}

The test cases in this suite focus on the basic inventory operations:

  - Modifying facility inventories by containing and releasing elements.
  - Observing changes to facility inventories over time.

So, specific store engines are encouraged to perform additional tests which
are specific to the underlying database.
*/
package storetest

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/dt4safeguards/safeguards"
	"github.com/dt4safeguards/safeguards/assert"
)

// The suite declares a small site: two facilities, each with a single room
// and holding area, and one container that moves between them. All records
// are synthetic, so their registry IDs are assigned here rather than by a
// [safeguards.Monitor].
var (
	facilityA = safeguards.ElementRecord{
		Kind: safeguards.KindFacility, ID: 1, Name: "Interim storage", Category: "Wet storage",
		Dimensions: safeguards.Dimensions{DX: 120, DY: 80, DZ: 15},
	}
	roomA = safeguards.ElementRecord{
		Kind: safeguards.KindRoom, ID: 2, Name: "Room 1", Category: "Storage room",
		Dimensions: safeguards.Dimensions{DX: 40, DY: 30, DZ: 12},
	}
	areaA = safeguards.ElementRecord{
		Kind: safeguards.KindHoldingArea, ID: 3, Name: "Holding area 1",
		Position: safeguards.Position{X: 4, Y: 6},
	}

	facilityB = safeguards.ElementRecord{
		Kind: safeguards.KindFacility, ID: 4, Name: "Geological repository", Category: "Deep geological",
		Dimensions: safeguards.Dimensions{DX: 500, DY: 500, DZ: 600},
	}
	roomB = safeguards.ElementRecord{
		Kind: safeguards.KindRoom, ID: 5, Name: "Drift 1", Category: "Emplacement drift",
		Dimensions: safeguards.Dimensions{DX: 200, DY: 8, DZ: 6},
	}
	areaB = safeguards.ElementRecord{
		Kind: safeguards.KindHoldingArea, ID: 6, Name: "Emplacement 1",
		Position: safeguards.Position{X: 30, Y: 2},
	}

	castor = safeguards.ElementRecord{
		Kind: safeguards.KindContainer, ID: 7, Name: "Castor 1", Category: "Castor",
		Dimensions: safeguards.Dimensions{DX: 3, DY: 3, DZ: 6},
	}
)

type testCase struct {
	// Subtest name.
	name string
	// A path leading to the test-case's file and line in the source code.
	location string
	// A mutation executes a single modification on the tested store using
	// its argument [safeguards.InventoryWriter].
	mutation safeguards.Mutation
	// A list of checks to run on the resulting [safeguards.InventoryChanged].
	// Keep in mind failing to specify any of created, updated, or removed
	// causes the test-case to not verify the respective field in the case's
	// [safeguards.InventoryChanged] message.
	checks []check
	// The declarations of the entire site as expected after the mutation has
	// been applied successfully. This site takes into account the order and
	// the successful execution of previous test-cases.
	site site
}

var cases = []testCase{
	{
		name:     "retract-nonexistent-element",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			return w.RetractElement(ctx, facilityA)
		},
		site: site{},
		checks: []check{
			created(),
			updated(),
			removed(),
		},
	},
	{
		name:     "retract-nonexistent-containments",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			n, err := w.RetractContainments(ctx, areaA, safeguards.KindContainer)
			if err != nil {
				return err
			}
			if n != 0 {
				return fmt.Errorf("expected zero containments, got %d", n)
			}
			return nil
		},
		site: site{},
		checks: []check{
			created(),
			updated(),
			removed(),
		},
	},
	{
		name:     "new-facility",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			return w.AssertElement(ctx, facilityA)
		},
		site: site{declare(facilityA)},
		checks: []check{
			created(declare(facilityA)),
			updated(),
			removed(),
		},
	},
	{
		name:     "retire-facility",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			return w.RetractElement(ctx, facilityA)
		},
		site: site{},
		checks: []check{
			created(),
			updated(),
			removed(declare(facilityA)),
		},
	},
	{
		name:     "declare-room",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			return assert.Inventory(w).Contains(ctx, facilityA, roomA)
		},
		site: site{declare(facilityA, roomA)},
		checks: []check{
			created(declare(facilityA, roomA)),
			updated(),
			removed(),
		},
	},
	{
		name:     "commission-holding-area",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			return assert.Inventory(w).Contains(ctx, roomA, areaA)
		},
		site: site{declare(facilityA, roomA, areaA)},
		checks: []check{
			created(),
			updated(declare(facilityA, roomA, areaA)),
			removed(),
		},
	},
	{
		name:     "receive-container",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			return assert.Inventory(w).Holds(ctx, areaA, castor)
		},
		site: site{declare(facilityA, roomA, areaA, castor)},
		checks: []check{
			created(),
			updated(declare(facilityA, roomA, areaA, castor)),
			removed(),
		},
	},
	{
		name:     "second-facility",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			if err := assert.Inventory(w).Contains(ctx, facilityB, roomB); err != nil {
				return err
			}
			return assert.Inventory(w).Contains(ctx, roomB, areaB)
		},
		site: site{
			declare(facilityA, roomA, areaA, castor),
			declare(facilityB, roomB, areaB),
		},
		checks: []check{
			created(declare(facilityB, roomB, areaB)),
			updated(),
			removed(),
		},
	},
	{
		name:     "transport-container",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			n, err := w.RetractContainments(ctx, areaA, safeguards.KindContainer)
			if err != nil {
				return err
			}
			if n != 1 {
				return fmt.Errorf("expected 1 containment, got %d", n)
			}
			return assert.Inventory(w).Holds(ctx, areaB, castor)
		},
		site: site{
			declare(facilityA, roomA, areaA),
			declare(facilityB, roomB, areaB, castor),
		},
		checks: []check{
			created(),
			updated(
				declare(facilityA, roomA, areaA),
				declare(facilityB, roomB, areaB, castor),
			),
			removed(),
		},
	},
	{
		name:     "decommission-facility",
		location: locateSource(),
		mutation: func(ctx context.Context, w safeguards.InventoryWriter) error {
			// Elements are retracted leaves-first so that no intermediate
			// state leaves a detached element rooting its own tree.
			for _, rec := range []safeguards.ElementRecord{castor, areaB, roomB, facilityB} {
				if err := w.RetractElement(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		},
		site: site{declare(facilityA, roomA, areaA)},
		checks: []check{
			created(),
			updated(),
			removed(declare(facilityB, roomB, areaB, castor)),
		},
	},
}

// Run executes a sequence of test cases on a safeguards store using the given
// safeguards.Applier and safeguards.ChangeObserver interfaces. It verifies
// that the store correctly applies inventory changes and monitors their
// effects.
//
// We deliberately avoid receiving a contextual argument for each test to
// ensure that the test suite runs under neutral conditions without any
// external influences or timeouts. This approach is consistent across test
// cases because the intention is to test the correctness of operations, not
// their performance or context-dependent behaviours.
//
// The testing process requires all cases to execute in a strict sequence
// because the state of the site at the end of one test is the starting point
// for the next. This sequential execution is crucial in evaluating whether
// the state progresses correctly over a series of transactions, akin to the
// real-world use of a store over time.
func Run(t *testing.T, applier safeguards.Applier, observer safeguards.ChangeObserver) {
	t.Helper()

	// We deliberately use the background context because this test-suite does
	// not check performance. Also, store implementations should not depend on
	// specific context values. When this assumption changes, this test-suite
	// will have to change accordingly as well.
	ctx := context.Background()

	// All test-cases run in-order, on the same store, because each case's
	// site checks depend on the previous mutations. Otherwise, we would not
	// be able to check the continuity of the store across time.
	//
	// That is, a test case cannot run if the previous case had failed.
	var lastSite site
	for _, c := range cases {
		// We encourage developers to read the source code directly,
		// especially when failures are not clear enough. We'd put a lot of
		// effort into making this suite readable and understandable.
		t.Logf("Read the source for test-case %v at %v", c.name, c.location)
		// Test cases begin by applying their mutation using the tested store.
		err := applier.Apply(ctx, c.mutation)
		if err != nil {
			t.Fatalf("Apply(%v) failed: %v", c.name, err)
		}
		// Then, the tested store is consulted to detect changes to the site.
		changes, err := observer.WhatChanged(ctx)
		if err != nil {
			t.Fatalf("WhatChanged(%v) failed: %v", c.name, err)
		}
		// Each test-case specifies a set of checks to perform against the
		// resulting changes.
		for _, check := range c.checks {
			if problem := check(changes); problem != "" {
				t.Errorf("Check changes of %v: %v", c.name, problem)
			}
		}
		// Regardless of the checks specified for each test-case, there are
		// checks to perform for every site state.
		for _, check := range c.site.Checks(lastSite) {
			if problem := check(changes); problem != "" {
				// This time we do not include the test-case's explanation
				// because these checks already include a different
				// explanation.
				t.Errorf("Check site of %v: %v", c.name, problem)
			}
		}
		// Finally, we remember the current state of the entire site to
		// compare against during the next test-case.
		lastSite = c.site
	}
}

// We support only narrow containment chains here to focus on depth
// progression (facility, room, holding area, container), which is exactly
// the shape a transport traverses. The emphasis on narrow chains allows the
// function to operate with a predictable pattern of declaration and
// simplicity in containment.
func declare(root safeguards.ElementRecord, children ...safeguards.ElementRecord) safeguards.Declaration {
	var b safeguards.DeclarationBuilder
	b.Facility(root)
	// We begin the building pattern with the root as the starting leaf.
	// Subsequently, for each child provided, we contain the child in the
	// current leaf, and the child becomes the new leaf. This iterative
	// process effectively constructs a single containment chain from the
	// facility down to the last leaf.
	leaf := root
	for _, child := range children {
		b.Contain(leaf, child)
		leaf = child
	}
	return b.Declare()
}

// Call this function to set the location of every test-case in the source
// file. The returned string is used to guide developers of safeguards stores
// to the appropriate test-case.
func locateSource() (path string) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		panic("runtime.Caller failed")
	}
	return fmt.Sprintf("%v:%v", file, line)
}
