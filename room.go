package safeguards

import (
	"fmt"
	"sort"
	"sync"
)

// A Room is the middle level of a containment tree: it belongs to exactly
// one facility and contains the holding areas where containers are held.
//
// Rooms are registered with the Monitor they are constructed with and are
// safe for concurrent use.
type Room struct {
	element
	category   string
	dimensions Dimensions
	position   Position

	mu       sync.Mutex
	location Location
	areas    map[ID]*HoldingArea
}

// NewRoom constructs a room and registers it with the monitor. The category
// names the kind of room, e.g. "Storage", "Shaft" or "Drift". The room is
// unplaced until a facility adopts it with AddRoom.
func NewRoom(m *Monitor, category, name string, dimensions Dimensions, position Position) *Room {
	r := &Room{
		category:   category,
		dimensions: dimensions,
		position:   position,
		areas:      make(map[ID]*HoldingArea),
	}
	r.element = element{kind: KindRoom, name: name}
	r.element.id = m.register(r)
	return r
}

// Category returns the declared kind of the room.
func (r *Room) Category() string { return r.category }

// Dimensions returns the declared extent of the room.
func (r *Room) Dimensions() Dimensions { return r.dimensions }

// Position returns the cartesian position of the room within its facility.
func (r *Room) Position() Position { return r.position }

// Location returns the room's location: the facility containing it, or the
// zero Location while the room is unplaced.
func (r *Room) Location() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// setLocation places the room. The location must reference a facility and
// nothing deeper, and the room must not be placed already.
func (r *Room) setLocation(loc Location) error {
	if err := loc.forRoom(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.location.IsZero() {
		return ErrAlreadyPlaced
	}
	r.location = loc
	return nil
}

func (r *Room) clearLocation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = Location{}
}

// Record returns the serialisable description of the room.
func (r *Room) Record() ElementRecord {
	return ElementRecord{
		Kind:       KindRoom,
		ID:         r.id,
		Name:       r.name,
		Category:   r.category,
		Dimensions: r.dimensions,
		Position:   r.position,
	}
}

// AddHoldingArea places the holding area into the room's inventory,
// assigning the area its location. The room itself must be placed in a
// facility first, so that the area's location is complete up to the facility
// level.
func (r *Room) AddHoldingArea(a *HoldingArea) error {
	r.mu.Lock()
	loc := r.location
	r.mu.Unlock()
	if loc.IsZero() {
		return fmt.Errorf("add holding area %v: room %v is unplaced", a.ElementID(), r.ElementID())
	}
	if err := a.setLocation(RoomLocation(loc.Facility(), r)); err != nil {
		return fmt.Errorf("add holding area %v: %w", a.ElementID(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.areas[a.ElementID()] = a
	return nil
}

// RemoveHoldingArea removes the holding area with the given ID from the
// room's inventory and clears the area's location. It returns an error
// wrapping ErrElementNotFound when the room contains no such area.
func (r *Room) RemoveHoldingArea(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[id]
	if !ok {
		return fmt.Errorf("holding area %v: %w", id, ErrElementNotFound)
	}
	delete(r.areas, id)
	a.clearLocation()
	return nil
}

// HoldingArea retrieves a contained holding area by its ID.
func (r *Room) HoldingArea(id ID) (*HoldingArea, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.areas[id]
	return a, ok
}

// HoldingAreas returns the room's holding area inventory in ID order.
func (r *Room) HoldingAreas() []*HoldingArea {
	r.mu.Lock()
	defer r.mu.Unlock()
	areas := make([]*HoldingArea, 0, len(r.areas))
	for _, a := range r.areas {
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool {
		return areas[i].ElementID() < areas[j].ElementID()
	})
	return areas
}
