package safeguards

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"maps"
	"sync"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
)

// An AttributeFunc is a function that defines a specific attribute of
// declared inventories. For a given Declaration, it returns the attribute's
// value and a bool indicating whether that attribute is valid for that
// Declaration.
//
// It usually visits the given Declaration to extract the appropriate value
// from it, but any value of type V is appropriate.
type AttributeFunc[V any] func(d Declaration) (V, bool)

// An Index correlates between the declared facilities of a supervised site
// and a corresponding attribute value. The generic parameter V denotes the
// type of the attribute's value.
//
// Use the index's Update and Find methods to modify and access the stored
// attribute values by a facility's Seal.
//
// An Index is designed to be concurrently safe and can be accessed by
// multiple goroutines simultaneously.
type Index[V any] struct {
	m           map[Seal]V
	mu          sync.Mutex
	attributeOf AttributeFunc[V]
}

// NewIndex returns a mapping/view of a single attribute from a facility's
// declaration. The provided attr function defines the desired attribute to
// store for every Declaration.
//
// If an existing map 'm' is provided to NewIndex, it will be used;
// otherwise, a new empty map is initialized. Note that the type of 'm'
// should correspond to the type expected by the attr function.
func NewIndex[V any](attr AttributeFunc[V], m map[Seal]V) Index[V] {
	newMap := make(map[Seal]V)
	if m != nil {
		maps.Copy(newMap, m)
	}

	return Index[V]{
		m:           newMap,
		attributeOf: attr,
	}
}

// Find looks up the given facility Seal and returns its last known attribute
// value. If the given Seal cannot be found, Find indicates that by returning
// ok == false.
//
// Find is safe for concurrent use.
func (x *Index[V]) Find(facility Seal) (v V, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	v, ok = x.m[facility]
	return v, ok
}

// Update determines the effective value of the indexed attribute based on
// the given Declaration.
//
// If the declaration's attribute value is deemed invalid, this function will
// expunge the facility from the Index. In cases where the facility is not
// previously registered within the index, the Update function becomes a
// no-op, and the index is left unmodified.
//
// Update is safe for concurrent use.
func (x *Index[V]) Update(d Declaration) {
	x.mu.Lock()
	defer x.mu.Unlock()
	v, ok := x.attributeOf(d)
	if ok {
		x.m[d.FacilitySeal()] = v
	} else {
		// We are expunging the stored attribute value as it was deemed invalid by the
		// attribute function for the declaration at hand. We cannot keep the previous
		// value (if any) because of the definition of an "invalid" attribute for a
		// specific declaration (see comment on AttributeFunc).
		delete(x.m, d.FacilitySeal())
	}
}

// Iter applies the provided function 'fn' to each facility and its
// associated attribute. Iteration continues until 'fn' returns false, or
// once all facilities have been visited.
func (x *Index[V]) Iter(fn func(facility Seal, v V) bool) {
	for k, v := range x.m {
		if !fn(k, v) {
			break
		}
	}
}

// TrackIndex returns a component.Proc that tracks InventoryChanged
// notifications of a supervised site and maintains an up-to-date view of
// attribute values for the declared facilities. The tracked attribute is
// defined by the provided Index.
//
// This procedure runs sequentially over InventoryChanged messages and
// updates the given Index one declaration at a time. Use the Find method of
// Index to receive the attribute of a specific facility.
func TrackIndex[V any](x *Index[V], source *pubsub.Subscription) component.Proc {
	return func(l *component.L) {
		var trackedSite SiteHash
		for l.Continue() {
			msg, err := source.Receive(l.GraceContext())
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				l.Errorf("receive: %v", err)
				continue
			}
			var changed InventoryChanged
			dec := gob.NewDecoder(bytes.NewReader(msg.Body))
			if err := dec.Decode(&changed); err != nil {
				l.Fatalf("Failed to unmarshal inventory changes; stopping index tracking: %v\n", err)
			}

			if trackedSite != (SiteHash{}) && trackedSite != changed.SiteBefore {
				l.Logf("Detected a discontinuity in InventoryChanged messages: last handled site hash %s, received previous site hash %s",
					trackedSite.String(), changed.SiteBefore.String())
				l.Fatalf("Exiting due to detected discontinuity")
			}

			for _, created := range changed.Created {
				x.Update(created)
			}
			for _, updated := range changed.Updated {
				x.Update(updated)
			}
			for _, removed := range changed.Removed {
				// An empty declaration carries no valid attribute value, so
				// the update expunges the removed facility from the index.
				x.Update(removed)
			}
			trackedSite = changed.SiteAfter
			msg.Ack()
		}
	}
}
