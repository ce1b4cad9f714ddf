package safeguards

import (
	"errors"
	"fmt"
	"strings"
)

// Location errors returned by the per-level validation performed when an
// element is placed into an inventory.
var (
	ErrMissingFacility    = errors.New("location must reference a facility")
	ErrMissingRoom        = errors.New("location must reference a room")
	ErrMissingHoldingArea = errors.New("location must reference a holding area")
	ErrTooDeep            = errors.New("location is deeper than the element allows")
)

// ErrAlreadyPlaced is returned when an element that already has a location is
// added to a second inventory. Elements must be removed from their current
// inventory first; containers move only through transport commands.
var ErrAlreadyPlaced = errors.New("element is already placed")

// A Location pins an element within the containment tree by referencing the
// facility, room and holding area that (transitively) contain it. Locations
// are partial by level: a room's location names only its facility, a holding
// area's location names a facility and a room, and a container's location is
// complete.
//
// The zero Location references nothing; it is the location of an element that
// has not been placed yet.
type Location struct {
	facility *Facility
	room     *Room
	area     *HoldingArea
}

// FacilityLocation returns the location of an element contained directly in
// the given facility.
func FacilityLocation(f *Facility) Location {
	return Location{facility: f}
}

// RoomLocation returns the location of an element contained in the given room
// of the given facility.
func RoomLocation(f *Facility, r *Room) Location {
	return Location{facility: f, room: r}
}

// AreaLocation returns the complete location of an element held in the given
// holding area.
func AreaLocation(f *Facility, r *Room, a *HoldingArea) Location {
	return Location{facility: f, room: r, area: a}
}

// Facility returns the referenced facility, or nil.
func (l Location) Facility() *Facility { return l.facility }

// Room returns the referenced room, or nil.
func (l Location) Room() *Room { return l.room }

// HoldingArea returns the referenced holding area, or nil.
func (l Location) HoldingArea() *HoldingArea { return l.area }

// IsZero reports whether l references nothing at all.
func (l Location) IsZero() bool {
	return l.facility == nil && l.room == nil && l.area == nil
}

// forRoom validates l as the location of a room: the facility must be set and
// the deeper levels must not.
func (l Location) forRoom() error {
	if l.facility == nil {
		return ErrMissingFacility
	}
	if l.room != nil || l.area != nil {
		return ErrTooDeep
	}
	return nil
}

// forArea validates l as the location of a holding area: facility and room
// must be set, the holding area must not.
func (l Location) forArea() error {
	if l.facility == nil {
		return ErrMissingFacility
	}
	if l.room == nil {
		return ErrMissingRoom
	}
	if l.area != nil {
		return ErrTooDeep
	}
	return nil
}

// forContainer validates l as the location of a container: all three levels
// must be set.
func (l Location) forContainer() error {
	if l.facility == nil {
		return ErrMissingFacility
	}
	if l.room == nil {
		return ErrMissingRoom
	}
	if l.area == nil {
		return ErrMissingHoldingArea
	}
	return nil
}

// String returns a human-readable path through the containment tree, e.g.
// "Facility 1/Room 2/HoldingArea 1". The zero Location renders as
// "(unplaced)".
func (l Location) String() string {
	if l.IsZero() {
		return "(unplaced)"
	}
	var parts []string
	if l.facility != nil {
		parts = append(parts, fmt.Sprintf("%s%v", l.facility.Name(), l.facility.ElementID()))
	}
	if l.room != nil {
		parts = append(parts, fmt.Sprintf("%s%v", l.room.Name(), l.room.ElementID()))
	}
	if l.area != nil {
		parts = append(parts, fmt.Sprintf("%s%v", l.area.Name(), l.area.ElementID()))
	}
	return strings.Join(parts, "/")
}

// Record returns the serialisable description of the location: the seals of
// the referenced levels, zero for the levels not referenced.
func (l Location) Record() LocationRecord {
	var rec LocationRecord
	if l.facility != nil {
		rec.Facility = l.facility.Record().Seal()
	}
	if l.room != nil {
		rec.Room = l.room.Record().Seal()
	}
	if l.area != nil {
		rec.HoldingArea = l.area.Record().Seal()
	}
	return rec
}

// A LocationRecord is the serialisable form of a Location, suitable for
// change-notification messages. Levels that the location does not reference
// carry a zero Seal.
type LocationRecord struct {
	Facility    Seal
	Room        Seal
	HoldingArea Seal
}
