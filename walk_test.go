package safeguards

import (
	"fmt"
	"testing"
)

func TestInspect(t *testing.T) {
	// Create the declaration for the test.
	//       ┌─ Area 1
	//       │
	// Room 1┤
	//   │   │
	//   │   └─ Area 2
	//   │
	// F ┤
	//   │
	//   │   ┌─ Area 3
	//   │   │
	// Room 2┤
	//       │
	//       └─ Area 4

	facility := ElementRecord{Kind: KindFacility, ID: 0, Name: "F"}
	room1 := ElementRecord{Kind: KindRoom, ID: 1, Name: "Room 1"}
	room2 := ElementRecord{Kind: KindRoom, ID: 2, Name: "Room 2"}
	areas := []ElementRecord{
		{Kind: KindHoldingArea, ID: 3, Name: "Area 1"},
		{Kind: KindHoldingArea, ID: 4, Name: "Area 2"},
		{Kind: KindHoldingArea, ID: 5, Name: "Area 3"},
		{Kind: KindHoldingArea, ID: 6, Name: "Area 4"},
	}

	var builder DeclarationBuilder
	builder.Facility(facility)
	builder.Contain(facility, room1)
	builder.Contain(facility, room2)
	builder.Contain(room1, areas[0])
	builder.Contain(room1, areas[1])
	builder.Contain(room2, areas[2])
	builder.Contain(room2, areas[3])
	d := builder.Declare()

	position := make(map[Seal]int)
	Inspect(d, func(rec *ElementRecord) bool {
		if rec == nil {
			return false
		}
		position[rec.Seal()] = len(position)
		return true
	})

	for seal := range d.Records() {
		if _, seen := position[seal]; !seen {
			t.Errorf("Inspect did not visit all records: %v wasn't visited", d.Record(seal))
		}
	}

	// Depth-first order: every element is visited after its parent.
	d.VisitContainment(func(parent, child ElementRecord) bool {
		if position[child.Seal()] < position[parent.Seal()] {
			t.Errorf("%v (at %d) was visited before its parent %v (at %d)",
				child, position[child.Seal()], parent, position[parent.Seal()])
		}
		return true
	})
}

func ExampleInspect() {
	facility := ElementRecord{Kind: KindFacility, ID: 0, Name: "Gorleben"}
	room := ElementRecord{Kind: KindRoom, ID: 1, Name: "Hall 1"}
	area := ElementRecord{Kind: KindHoldingArea, ID: 2, Name: "Bay 1"}

	var builder DeclarationBuilder
	builder.Facility(facility)
	builder.Contain(facility, room)
	builder.Contain(room, area)

	Inspect(builder.Declare(), func(rec *ElementRecord) bool {
		if rec == nil {
			fmt.Println("<ascend>")
			return false
		}
		fmt.Println(*rec)
		return true
	})
	// Output:
	// Facility(#0 Gorleben)
	// Room(#1 Hall 1)
	// HoldingArea(#2 Bay 1)
	// <ascend>
	// <ascend>
	// <ascend>
}
