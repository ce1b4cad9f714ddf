package safeguards

import (
	"fmt"
	"strings"
	"time"
)

// InventoryChanged notifies that the declared state of the supervised site
// has changed. The message contains the bulk changeset relative to the
// previously notified baseline. This baseline state of the site is hashed as
// SiteBefore. The latest state of the site at the time of this notification
// is hashed as SiteAfter.
type InventoryChanged struct {
	SiteBefore SiteHash
	Created    []DeclarationCreated
	Updated    []DeclarationUpdated
	Removed    []DeclarationRemoved
	SiteAfter  SiteHash
	// The time, in UTC, the change was computed. The information in this
	// message is accurate up to this timestamp, not a moment afterwards.
	Timestamp time.Time
}

// IsEmpty returns true if the notification contains no changes. Meaning, the
// site had not changed between SiteBefore and SiteAfter.
func (c InventoryChanged) IsEmpty() bool {
	return c.SiteAfter == c.SiteBefore
}

// DeclarationCreated notifies about a facility that appeared in the
// supervised site's declared state.
//
// The message contains both the new declaration and its reference, i.e.,
// exposing DeclarationRef.FacilitySeal() and DeclarationRef.InventoryHash().
type DeclarationCreated struct {
	Declaration // an independent snapshot of the facility's inventory
}

// DeclarationUpdated notifies about a modification to an existing (through a
// concomitant DeclarationCreated notification) facility's inventory.
//
// The message contains both the modified declaration (like
// DeclarationCreated) and a Baseline hash referencing the latest snapshot of
// the inventory before it has been updated.
type DeclarationUpdated struct {
	Baseline    InventoryHash // hash of the declared inventory before the update
	Declaration               // an independent snapshot of the facility's inventory
}

// DeclarationRemoved notifies about the disappearance of an existing
// (through a concomitant DeclarationCreated or DeclarationUpdated
// notification) facility.
//
// The message contains both the Seal of the removed facility and a Hash
// referencing the latest snapshot of its inventory before it has been
// removed.
//
// Although a DeclarationRemoved represents an inventory that no longer
// exists, it still implements the Declaration interface. It follows an
// 'empty' pattern implementation since a removed declaration is still
// considered a declaration, albeit an empty one.
type DeclarationRemoved struct {
	Facility Seal          // seal of the removed facility
	Hash     InventoryHash // hash of the removed facility's inventory
}

func (c DeclarationRemoved) FacilitySeal() Seal           { return c.Facility }
func (c DeclarationRemoved) InventoryHash() InventoryHash { return c.Hash }

// Records returns a nil map because an empty declaration has no elements.
func (c DeclarationRemoved) Records() map[Seal]ElementRecord { return nil }

// Record returns the zero record because an empty declaration has no
// elements.
func (c DeclarationRemoved) Record(Seal) ElementRecord { return ElementRecord{} }

// Contained returns a nil slice because an empty declaration has no
// elements.
func (c DeclarationRemoved) Contained(Seal) []Seal { return nil }

// VisitContainment returns without performing any operations because an
// empty declaration has no elements, and consequently, no containment to
// visit.
func (c DeclarationRemoved) VisitContainment(func(parent, child ElementRecord) bool) {}

// FormatChanges returns a human-readable representation of the changeset.
// The indent string is prepended to each line.
func FormatChanges(changes InventoryChanged, indent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, indent+"baseline snapshot: %v\n", changes.SiteBefore)
	for _, c := range changes.Created {
		fmt.Fprintf(&b, indent+"+ %v | %v\n", c.FacilitySeal(), c.InventoryHash())
		c.VisitContainment(func(parent, child ElementRecord) bool {
			fmt.Fprintf(&b, indent+"  %v -> %v\n", parent, child)
			return true
		})
	}
	for _, c := range changes.Updated {
		fmt.Fprintf(&b, indent+"* %v | %v\n", c.FacilitySeal(), c.InventoryHash())
		c.VisitContainment(func(parent, child ElementRecord) bool {
			fmt.Fprintf(&b, indent+"  %v -> %v\n", parent, child)
			return true
		})
	}
	for _, c := range changes.Removed {
		fmt.Fprintf(&b, indent+"- %v | %v\n", c.FacilitySeal(), c.InventoryHash())
	}
	fmt.Fprintf(&b, indent+"current snapshot: %v\n", changes.SiteAfter)
	return b.String()
}
