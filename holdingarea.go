package safeguards

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAreaOccupied is returned when a container is placed into a holding area
// that already holds one.
var ErrAreaOccupied = errors.New("holding area is occupied")

// A HoldingArea is the deepest level of a containment tree: a designated
// spot inside a room that holds at most one container of nuclear material.
//
// Holding areas are registered with the Monitor they are constructed with
// and are safe for concurrent use.
type HoldingArea struct {
	element
	position Position

	mu       sync.Mutex
	location Location
	occupant *Container
}

// NewHoldingArea constructs a holding area and registers it with the
// monitor. The area is unplaced until a room adopts it with AddHoldingArea.
func NewHoldingArea(m *Monitor, name string, position Position) *HoldingArea {
	a := &HoldingArea{position: position}
	a.element = element{kind: KindHoldingArea, name: name}
	a.element.id = m.register(a)
	return a
}

// Position returns the cartesian position of the holding area within its
// room.
func (a *HoldingArea) Position() Position { return a.position }

// Location returns the holding area's location: the facility and room
// containing it, or the zero Location while the area is unplaced.
func (a *HoldingArea) Location() Location {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.location
}

// setLocation places the holding area. The location must reference a
// facility and a room and nothing deeper, and the area must not be placed
// already.
func (a *HoldingArea) setLocation(loc Location) error {
	if err := loc.forArea(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.location.IsZero() {
		return ErrAlreadyPlaced
	}
	a.location = loc
	return nil
}

func (a *HoldingArea) clearLocation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.location = Location{}
}

// Record returns the serialisable description of the holding area. Holding
// areas carry no category and no dimensions of their own.
func (a *HoldingArea) Record() ElementRecord {
	return ElementRecord{
		Kind:     KindHoldingArea,
		ID:       a.id,
		Name:     a.name,
		Position: a.position,
	}
}

// Occupied reports whether the holding area currently holds a container.
func (a *HoldingArea) Occupied() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.occupant != nil
}

// Container returns the container held in the area, or nil when the area is
// vacant.
func (a *HoldingArea) Container() *Container {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.occupant
}

// Place puts the container into the holding area, assigning the container
// its complete location. It returns ErrAreaOccupied when the area already
// holds a container, and fails when the area itself is unplaced or the
// container is placed elsewhere.
func (a *HoldingArea) Place(c *Container) error {
	a.mu.Lock()
	loc := a.location
	occupied := a.occupant != nil
	a.mu.Unlock()
	if loc.IsZero() {
		return fmt.Errorf("place container %v: holding area %v is unplaced", c.ElementID(), a.ElementID())
	}
	if occupied {
		return fmt.Errorf("place container %v: %w", c.ElementID(), ErrAreaOccupied)
	}
	if err := c.setLocation(AreaLocation(loc.Facility(), loc.Room(), a)); err != nil {
		return fmt.Errorf("place container %v: %w", c.ElementID(), err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.occupant != nil {
		// A concurrent Place won the race between the vacancy check above and
		// this commit. Undo the loser's location before reporting.
		c.clearLocation()
		return fmt.Errorf("place container %v: %w", c.ElementID(), ErrAreaOccupied)
	}
	a.occupant = c
	return nil
}

// Clear vacates the holding area, clearing the removed container's location.
// It returns the removed container, or nil when the area was already vacant.
func (a *HoldingArea) Clear() *Container {
	a.mu.Lock()
	c := a.occupant
	a.occupant = nil
	a.mu.Unlock()
	if c != nil {
		c.clearLocation()
	}
	return c
}
