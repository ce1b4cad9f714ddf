package safeguards

import (
	"errors"
	"fmt"
	"testing"
)

func TestMonitorAssignsOrdinalIDs(t *testing.T) {
	m := NewMonitor()

	f := NewFacility(m, "Interim storage", "Facility 1", Dimensions{}, Position{})
	r := NewRoom(m, "Storage", "Room 1", Dimensions{}, Position{})
	a := NewHoldingArea(m, "HoldingArea 1", Position{})
	c := NewContainer(m, "Castor", "Container 1", Dimensions{})

	for i, e := range []Element{f, r, a, c} {
		if got, want := e.ElementID(), ID(i); got != want {
			t.Errorf("ElementID() = %v, want %v", got, want)
		}
	}

	// Commands draw from the same ID sequence as elements but are not
	// retrievable from the registry.
	cmd := NewTransportCommand(m, c, Location{}, Location{})
	if got, want := cmd.CommandID(), ID(4); got != want {
		t.Errorf("CommandID() = %v, want %v", got, want)
	}
	if _, err := m.Lookup(cmd.CommandID()); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("Lookup(command ID) = %v, want %v", err, ErrElementNotFound)
	}
}

func TestMonitorLookup(t *testing.T) {
	m := NewMonitor()
	f := NewFacility(m, "Interim storage", "Facility 1", Dimensions{}, Position{})

	e, err := m.Lookup(f.ElementID())
	if err != nil {
		t.Fatal("Lookup()", err)
	}
	if e != Element(f) {
		t.Errorf("Lookup(%v) = %v, want %v", f.ElementID(), e, f)
	}

	if _, err := m.Lookup(42); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("Lookup(unknown) = %v, want %v", err, ErrElementNotFound)
	}
}

func TestVisitRegistry(t *testing.T) {
	m := NewMonitor()
	// Register out of the natural iteration order of a map by interleaving
	// kinds.
	NewContainer(m, "Castor", "Container 1", Dimensions{})
	NewFacility(m, "Interim storage", "Facility 1", Dimensions{}, Position{})
	NewRoom(m, "Storage", "Room 1", Dimensions{}, Position{})

	var visited []ID
	m.VisitRegistry(func(id ID, e Element) bool {
		if e.ElementID() != id {
			t.Errorf("element registered under %v reports ID %v", id, e.ElementID())
		}
		visited = append(visited, id)
		return true
	})
	for i := 1; i < len(visited); i++ {
		if visited[i-1] >= visited[i] {
			t.Fatalf("VisitRegistry() order = %v, want ascending IDs", visited)
		}
	}
	if len(visited) != 3 {
		t.Errorf("VisitRegistry() visited %d elements, want 3", len(visited))
	}

	var stopped int
	m.VisitRegistry(func(ID, Element) bool {
		stopped++
		return false
	})
	if stopped != 1 {
		t.Errorf("VisitRegistry() continued after fn returned false: %d visits", stopped)
	}
}

func ExampleMonitor_FormatRegistry() {
	m := NewMonitor()
	fmt.Print(m.FormatRegistry())

	f := NewFacility(m, "Interim storage", "Gorleben", Dimensions{}, Position{})
	r := NewRoom(m, "Storage", "Hall 1", Dimensions{}, Position{})
	_ = f.AddRoom(r)
	NewContainer(m, "Castor", "Cask V/19", Dimensions{})

	fmt.Print(m.FormatRegistry())
	// Output:
	// registry is empty
	// #0: Facility(#0 Gorleben)
	// #1: Room(#1 Hall 1)
	// #2: Container(#2 Cask V/19)
}
