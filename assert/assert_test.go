package assert_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dt4safeguards/safeguards"
	"github.com/dt4safeguards/safeguards/assert"
)

var (
	area = safeguards.ElementRecord{Kind: safeguards.KindHoldingArea, ID: 2, Name: "Bay 1"}
	cask = safeguards.ElementRecord{Kind: safeguards.KindContainer, ID: 3, Name: "Cask V/19", Category: "Castor"}
	hall = safeguards.ElementRecord{Kind: safeguards.KindRoom, ID: 1, Name: "Hall 1"}
)

// An opLog is an InventoryWriter that records the operations applied to it.
// The retractions map configures the count RetractContainments reports for a
// given operation string.
type opLog struct {
	ops         []string
	retractions map[string]int
	fail        error
}

func (l *opLog) record(op string) error {
	l.ops = append(l.ops, op)
	return l.fail
}

func (l *opLog) AssertElement(_ context.Context, rec safeguards.ElementRecord) error {
	return l.record(fmt.Sprintf("assert %v", rec))
}

func (l *opLog) RetractElement(_ context.Context, rec safeguards.ElementRecord) error {
	return l.record(fmt.Sprintf("retract %v", rec))
}

func (l *opLog) AssertContainment(_ context.Context, parent, child safeguards.ElementRecord) error {
	return l.record(fmt.Sprintf("contain %v -> %v", parent, child))
}

func (l *opLog) RetractContainments(_ context.Context, rec safeguards.ElementRecord, kind safeguards.ElementKind) (int, error) {
	op := fmt.Sprintf("detach %v from %v", rec, kind)
	return l.retractions[op], l.record(op)
}

func TestHolds(t *testing.T) {
	w := &opLog{}
	if err := assert.Inventory(w).Holds(context.Background(), area, cask); err != nil {
		t.Fatal("Holds()", err)
	}

	// Both ends of the one-to-one association are detached before the single
	// relationship is asserted.
	want := []string{
		"detach HoldingArea(#2 Bay 1) from Container",
		"detach Container(#3 Cask V/19) from HoldingArea",
		"contain HoldingArea(#2 Bay 1) -> Container(#3 Cask V/19)",
	}
	if diff := cmp.Diff(want, w.ops); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestContains(t *testing.T) {
	w := &opLog{}
	if err := assert.Inventory(w).Contains(context.Background(), hall, area); err != nil {
		t.Fatal("Contains()", err)
	}

	// Only the child end of the one-to-many association is detached: the
	// parent keeps its other children.
	want := []string{
		"detach HoldingArea(#2 Bay 1) from Room",
		"contain Room(#1 Hall 1) -> HoldingArea(#2 Bay 1)",
	}
	if diff := cmp.Diff(want, w.ops); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestAssertionsPropagateErrors(t *testing.T) {
	boom := errors.New("boom")

	w := &opLog{fail: boom}
	if err := assert.Inventory(w).Holds(context.Background(), area, cask); !errors.Is(err, boom) {
		t.Errorf("Holds() = %v, want %v", err, boom)
	}
	w = &opLog{fail: boom}
	if err := assert.Inventory(w).Contains(context.Background(), hall, area); !errors.Is(err, boom) {
		t.Errorf("Contains() = %v, want %v", err, boom)
	}
}

func TestAssertionsPanicOnLostIntegrity(t *testing.T) {
	tests := []struct {
		name string
		fn   func(w safeguards.InventoryWriter) error
		op   string
	}{
		{
			name: "HoldsAreaEnd",
			fn: func(w safeguards.InventoryWriter) error {
				return assert.Inventory(w).Holds(context.Background(), area, cask)
			},
			op: "detach HoldingArea(#2 Bay 1) from Container",
		},
		{
			name: "HoldsContainerEnd",
			fn: func(w safeguards.InventoryWriter) error {
				return assert.Inventory(w).Holds(context.Background(), area, cask)
			},
			op: "detach Container(#3 Cask V/19) from HoldingArea",
		},
		{
			name: "ContainsChildEnd",
			fn: func(w safeguards.InventoryWriter) error {
				return assert.Inventory(w).Contains(context.Background(), hall, area)
			},
			op: "detach HoldingArea(#2 Bay 1) from Room",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("no panic after retracting two relationships of a strict association")
				}
			}()
			// Reporting two retracted relationships where the association
			// allows at most one means the inventory lost its integrity.
			w := &opLog{retractions: map[string]int{tt.op: 2}}
			_ = tt.fn(w)
		})
	}
}

// A specialisedWriter records whether its specialised assertions were
// dispatched to.
type specialisedWriter struct {
	opLog
	holds, contains bool
}

func (w *specialisedWriter) AssertHolds(context.Context, safeguards.ElementRecord, safeguards.ElementRecord) error {
	w.holds = true
	return nil
}

func (w *specialisedWriter) AssertContains(context.Context, safeguards.ElementRecord, safeguards.ElementRecord) error {
	w.contains = true
	return nil
}

func TestSpecialisedAsserters(t *testing.T) {
	w := &specialisedWriter{}
	if err := assert.Inventory(w).Holds(context.Background(), area, cask); err != nil {
		t.Fatal("Holds()", err)
	}
	if err := assert.Inventory(w).Contains(context.Background(), hall, area); err != nil {
		t.Fatal("Contains()", err)
	}

	if !w.holds || !w.contains {
		t.Error("specialised assertions were not dispatched to")
	}
	if len(w.ops) != 0 {
		t.Errorf("generic operations were applied despite the specialisations: %v", w.ops)
	}
}
