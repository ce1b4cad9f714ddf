package safeguards

import (
	"fmt"
	"sort"
	"sync"
)

// A Facility is the root of a containment tree: it contains rooms, which in
// turn contain the holding areas where containers of nuclear material are
// held.
//
// Facilities are registered with the Monitor they are constructed with and
// are safe for concurrent use.
type Facility struct {
	element
	category   string
	dimensions Dimensions
	position   Position

	mu    sync.Mutex
	rooms map[ID]*Room
}

// NewFacility constructs a facility and registers it with the monitor. The
// category names the kind of site, e.g. "Interim storage" or "Geological
// repository".
func NewFacility(m *Monitor, category, name string, dimensions Dimensions, position Position) *Facility {
	f := &Facility{
		category:   category,
		dimensions: dimensions,
		position:   position,
		rooms:      make(map[ID]*Room),
	}
	f.element = element{kind: KindFacility, name: name}
	f.element.id = m.register(f)
	return f
}

// Category returns the declared kind of the facility.
func (f *Facility) Category() string { return f.category }

// Dimensions returns the declared extent of the facility.
func (f *Facility) Dimensions() Dimensions { return f.dimensions }

// Position returns the cartesian position of the facility on the site.
func (f *Facility) Position() Position { return f.position }

// Record returns the serialisable description of the facility.
func (f *Facility) Record() ElementRecord {
	return ElementRecord{
		Kind:       KindFacility,
		ID:         f.id,
		Name:       f.name,
		Category:   f.category,
		Dimensions: f.dimensions,
		Position:   f.position,
	}
}

// AddRoom places the room into the facility's inventory, assigning the room
// its location. It fails when the room is already placed somewhere.
func (f *Facility) AddRoom(r *Room) error {
	if err := r.setLocation(FacilityLocation(f)); err != nil {
		return fmt.Errorf("add room %v: %w", r.ElementID(), err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[r.ElementID()] = r
	return nil
}

// RemoveRoom removes the room with the given ID from the facility's
// inventory and clears the room's location. It returns an error wrapping
// ErrElementNotFound when the facility contains no such room.
func (f *Facility) RemoveRoom(id ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return fmt.Errorf("room %v: %w", id, ErrElementNotFound)
	}
	delete(f.rooms, id)
	r.clearLocation()
	return nil
}

// Room retrieves a contained room by its ID.
func (f *Facility) Room(id ID) (*Room, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	return r, ok
}

// Rooms returns the facility's room inventory in ID order.
func (f *Facility) Rooms() []*Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := make([]*Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ElementID() < rooms[j].ElementID()
	})
	return rooms
}
