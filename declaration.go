package safeguards

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"slices"
	"sort"
)

// A Declaration is a self-sufficient snapshot of one facility's complete
// containment tree: every element's record, keyed by its Seal, together with
// the containment edges between them. Declarations are what an operator
// submits and what inspections compare.
//
// Do not modify the values returned from its functions.
type Declaration interface {
	DeclarationRef
	// Records returns every element of the declared inventory, keyed by seal.
	// The facility itself is included.
	Records() map[Seal]ElementRecord
	// Record returns the record sealed with s, or the zero record when the
	// declaration contains no such element.
	Record(s Seal) ElementRecord
	// Contained returns the seals of the elements contained directly in the
	// element sealed with s.
	Contained(s Seal) []Seal
	// VisitContainment calls fn for every containment edge of the declared
	// inventory. Iteration stops early when fn returns false.
	VisitContainment(fn func(parent, child ElementRecord) bool)
}

// DeclarationRef exposes methods to consistently reference declarations
// across our distributed system. A consistent reference consists of the
// declared facility's Seal and a consistent hash of the declared inventory.
type DeclarationRef interface {
	// FacilitySeal returns the seal of the facility at the root of the
	// declared containment tree.
	FacilitySeal() Seal
	// InventoryHash computes a consistent hash over the entire declared
	// inventory (element seals and containment edges).
	InventoryHash() InventoryHash
}

// Declare snapshots the facility's current containment tree into a
// Declaration. The snapshot is detached: later transports do not modify it.
func Declare(f *Facility) Declaration {
	var b DeclarationBuilder
	root := f.Record()
	b.Facility(root)
	for _, r := range f.Rooms() {
		b.Contain(root, r.Record())
		for _, a := range r.HoldingAreas() {
			b.Contain(r.Record(), a.Record())
			if c := a.Container(); c != nil {
				b.Contain(a.Record(), c.Record())
			}
		}
	}
	return b.Declare()
}

// A DeclarationBuilder is used to safely and elegantly build a Declaration
// using fluent calls.
// The zero value is ready to use.
// Do not copy a non-zero DeclarationBuilder.
type DeclarationBuilder struct {
	facility Seal
	records  map[Seal]ElementRecord
	children map[Seal]map[Seal]struct{}
	// address of receiver - to detect copies by value.
	// see copyCheck below for details.
	addr *DeclarationBuilder
}

// Facility sets the root of the declared containment tree.
func (b *DeclarationBuilder) Facility(root ElementRecord) {
	b.copyCheck()
	b.Records(root)
	b.facility = root.Seal()
}

// Records appends the given records to b's inventory.
func (b *DeclarationBuilder) Records(record ...ElementRecord) {
	b.copyCheck()
	if b.records == nil {
		b.records = make(map[Seal]ElementRecord, len(record))
	}
	for _, r := range record {
		b.records[r.Seal()] = r
	}
}

// Contain appends the given parent and child records to b's inventory and a
// containment edge between them.
func (b *DeclarationBuilder) Contain(parent, child ElementRecord) {
	b.copyCheck()
	b.Records(parent, child)
	from := parent.Seal()
	to := child.Seal()
	if b.children == nil {
		b.children = make(map[Seal]map[Seal]struct{})
	}
	if b.children[from] == nil {
		b.children[from] = make(map[Seal]struct{})
	}
	b.children[from][to] = struct{}{}
}

// Declare returns the accumulated Declaration.
func (b *DeclarationBuilder) Declare() Declaration {
	t := InventoryTree{Facility: b.facility}

	// copy records map to allow further modifications to the builder
	if len(b.records) != 0 {
		t.Vertices = make(map[Seal]ElementRecord, len(b.records))
		for s, r := range b.records {
			t.Vertices[s] = r
		}
	}

	// copy children map to allow further modifications to the builder
	if len(b.children) != 0 {
		t.Children = make(map[Seal][]Seal, len(b.children))
		for s, children := range b.children {
			t.Children[s] = make([]Seal, 0, len(children))
			for c := range children {
				t.Children[s] = append(t.Children[s], c)
			}
		}
	}

	return t
}

// Reset resets the builder to be empty.
func (b *DeclarationBuilder) Reset() {
	b.facility = Seal{}
	b.records = nil
	b.children = nil
	b.addr = nil
}

func (b *DeclarationBuilder) copyCheck() {
	if b.addr == nil {
		b.addr = b
	} else if b.addr != b {
		panic("safeguards: illegal use of non-zero DeclarationBuilder copied by value")
	}
}

//=============================================================================

func init() {
	gob.Register(InventoryTree{})
}

// InventoryTree is the concrete, serialisable representation of a
// Declaration. DO NOT modify its Facility, Vertices and Children manually.
type InventoryTree struct {
	Facility Seal
	Vertices map[Seal]ElementRecord
	Children map[Seal][]Seal
}

func (t InventoryTree) FacilitySeal() Seal              { return t.Facility }
func (t InventoryTree) Records() map[Seal]ElementRecord { return t.Vertices }
func (t InventoryTree) Record(s Seal) ElementRecord     { return t.Vertices[s] }
func (t InventoryTree) Contained(s Seal) []Seal         { return t.Children[s] }

func (t InventoryTree) VisitContainment(fn func(parent, child ElementRecord) bool) {
	for from, children := range t.Children {
		for _, to := range children {
			if !fn(t.Vertices[from], t.Vertices[to]) {
				return
			}
		}
	}
}

func (t InventoryTree) InventoryHash() InventoryHash {
	h := sha1.New()
	// don't forget to hash the root (the declared facility)
	h.Write(t.Facility[:])

	// sort element seals lexicographically
	seals := make([]Seal, 0, len(t.Vertices))
	for s := range t.Vertices {
		seals = append(seals, s)
	}
	sort.Slice(seals, func(i, j int) bool {
		return bytes.Compare(seals[i][:], seals[j][:]) < 0
	})

	// hash seals in sorted order, then hash their sorted children
	for _, from := range seals {
		h.Write(from[:])
		// sort a copy so hashing never reorders the declared edges
		children := slices.Clone(t.Children[from])
		sort.Slice(children, func(i, j int) bool {
			return bytes.Compare(children[i][:], children[j][:]) < 0
		})
		for _, to := range children {
			h.Write(to[:])
		}
	}
	return InventoryHash(h.Sum(nil))
}
