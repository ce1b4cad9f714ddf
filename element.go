package safeguards

import (
	"encoding/gob"
	"fmt"
)

// An ID is a unique identifier assigned by a Monitor to every registered
// element and command. IDs are ordinal: they reflect the order in which
// instances were registered.
type ID int

func (id ID) String() string { return fmt.Sprintf("#%d", int(id)) }

// ElementKind discriminates the physical element types of the containment
// tree. The kind doubles as the node label under which stores persist
// elements of that type.
type ElementKind string

const (
	KindFacility    ElementKind = "Facility"
	KindRoom        ElementKind = "Room"
	KindHoldingArea ElementKind = "HoldingArea"
	KindContainer   ElementKind = "Container"
)

// Element is the interface implemented by every physical part of a safeguards
// model. Although the package could track any type, we guard against
// accidental use by requiring this interface - it cannot be implemented
// outside this package because activation (history recording) is reserved for
// the Commander.
type Element interface {
	// ElementID returns the ID assigned by the Monitor the element was
	// registered with.
	ElementID() ID
	// Name returns the declared name of the element. Names need not be unique;
	// identity comes from the element's ID and Seal.
	Name() string
	// Kind returns the element's kind.
	Kind() ElementKind
	// Record returns the serialisable, store-facing description of the element.
	Record() ElementRecord
	// History returns a copy of the element's command log, oldest first.
	History() []HistoryRecord

	// activate registers a command with this element, recording it in the
	// element's history and applying kind-specific effects.
	//
	// it is unexported so that elements can only be activated from within this
	// package - specifically, by the Commander during command execution.
	activate(cmd Command)
}

// ElementRecord is the serialisable description of an element, exchanged with
// stores and change-notification consumers. The Kind, ID, Name, Category and Dimensions
// fields form the element's declared identity and are covered by its Seal;
// Position is state and is not.
type ElementRecord struct {
	Kind ElementKind
	ID   ID
	Name string
	// Category is the declared sub-kind of the element, e.g. "Interim storage"
	// for a facility, "Drift" for a room, "Castor" for a container. Holding
	// areas carry no category.
	Category   string
	Dimensions Dimensions
	Position   Position
}

// Seal returns the content address of the record's declared identity.
func (r ElementRecord) Seal() Seal { return SealOf(r) }

func (r ElementRecord) String() string {
	return fmt.Sprintf("%s(%s %s)", r.Kind, r.ID, r.Name)
}

func init() {
	gob.Register(ElementRecord{})
}

// element carries the state shared by all physical model types. It implements
// the pieces of Element that do not vary by kind.
type element struct {
	id   ID
	kind ElementKind
	name string
	log  history
}

func (e *element) ElementID() ID            { return e.id }
func (e *element) Kind() ElementKind        { return e.kind }
func (e *element) Name() string             { return e.name }
func (e *element) History() []HistoryRecord { return e.log.records() }

// activate records the command in the element's history. The physical effects
// of a command (vacating and occupying holding areas, relocating the target)
// are carried out by the Commander before the activation cascade.
func (e *element) activate(cmd Command) {
	e.log.append(newHistoryRecord(cmd))
}
