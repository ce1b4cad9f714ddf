/*
Package memstore provides an in-memory safeguards inventory store.

The store implements the [safeguards.Applier] and [safeguards.ChangeObserver]
interfaces with the same semantics as the Neo4j-backed engine, without any
external database. It is intended for tests and for single-process
deployments in which durability is not required.
*/
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dt4safeguards/safeguards"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dt4safeguards/safeguards/memstore")

// This error is returned from Store.WhatChanged when any stray elements are
// found during a sweep.
var errFoundStrayElements = errors.New("found stray elements while sweeping the inventory")

// A Store keeps a complete safeguards inventory in process memory.
//
// It applies mutations atomically. Each mutation runs against a private copy
// of the inventory, which replaces the live inventory only if the mutation
// returns a nil error. A failed mutation therefore leaves the store
// untouched, as if it was never executed.
//
// It returns changesets containing the amalgamation of the applied
// modifications (i.e. calls to Apply) between calls to WhatChanged. Unlike
// the Neo4j engine, the in-memory store sweeps its entire inventory on every
// call to WhatChanged; the inventory is local memory, so a full sweep is
// cheap and taint bookkeeping would buy nothing.
//
// A Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	inventory inventory
	// Facility inventories observed up to the last call to WhatChanged.
	snapshot map[safeguards.Seal]safeguards.InventoryHash
}

// An inventory holds the element records and the containment edges between
// them.
type inventory struct {
	elements map[safeguards.Seal]safeguards.ElementRecord
	children map[safeguards.Seal]map[safeguards.Seal]struct{}
	parents  map[safeguards.Seal]map[safeguards.Seal]struct{}
}

// NewStore returns a ready-to-use empty Store.
func NewStore() *Store {
	return &Store{
		inventory: newInventory(),
		snapshot:  make(map[safeguards.Seal]safeguards.InventoryHash),
	}
}

func newInventory() inventory {
	return inventory{
		elements: make(map[safeguards.Seal]safeguards.ElementRecord),
		children: make(map[safeguards.Seal]map[safeguards.Seal]struct{}),
		parents:  make(map[safeguards.Seal]map[safeguards.Seal]struct{}),
	}
}

func (v inventory) clone() inventory {
	next := newInventory()
	for seal, rec := range v.elements {
		next.elements[seal] = rec
	}
	for from, children := range v.children {
		next.children[from] = make(map[safeguards.Seal]struct{}, len(children))
		for to := range children {
			next.children[from][to] = struct{}{}
		}
	}
	for to, parents := range v.parents {
		next.parents[to] = make(map[safeguards.Seal]struct{}, len(parents))
		for from := range parents {
			next.parents[to][from] = struct{}{}
		}
	}
	return next
}

// Apply runs the given mutation against a private copy of the inventory.
//
// If the mutation returns a non-nil error, the copy is discarded and the
// error is returned to the caller of Apply. In which case, the store is not
// modified, as if the mutation was never executed.
func (s *Store) Apply(ctx context.Context, mutation safeguards.Mutation) (err error) {
	ctx, span := tracer.Start(ctx, "Apply")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.inventory.clone()
	if err := mutation(ctx, writer{staged}); err != nil {
		return err
	}
	s.inventory = staged
	return nil
}

// WhatChanged sweeps the inventory to assemble the current facility
// declarations. This allows detecting any new facilities that have appeared,
// any existing ones whose inventories have changed, and any that are no
// longer there.
//
// Before returning, the function updates its internal records to keep a
// snapshot of the facility inventories that is up to date with this sweep.
// If a stray element is found, the function does not update its internal
// records so that the next call runs as if the failed execution had never
// been called.
func (s *Store) WhatChanged(ctx context.Context) (changes safeguards.InventoryChanged, err error) {
	_, span := tracer.Start(ctx, "WhatChanged")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	declarations, strays := s.inventory.declarations()

	next := make(map[safeguards.Seal]safeguards.InventoryHash, len(declarations))
	for root, d := range declarations {
		next[root] = d.InventoryHash()
	}

	changes.SiteBefore = safeguards.HashInventories(s.snapshot)
	changes.Timestamp = time.Now().UTC()

	for root, newHash := range next {
		if oldHash, ok := s.snapshot[root]; !ok {
			changes.Created = append(changes.Created, safeguards.DeclarationCreated{Declaration: declarations[root]})
		} else if oldHash != newHash {
			changes.Updated = append(changes.Updated, safeguards.DeclarationUpdated{Baseline: oldHash, Declaration: declarations[root]})
		} // else: no change
	}
	for root, oldHash := range s.snapshot {
		if _, ok := next[root]; !ok {
			changes.Removed = append(changes.Removed, safeguards.DeclarationRemoved{Facility: root, Hash: oldHash})
		}
	}

	// A stray element roots a containment tree without being a facility. Such
	// an element has been detached from its facility without being deleted,
	// which makes its declaration unattributable, so this InventoryChanged
	// notification becomes invalid. We keep the previous snapshot so that
	// calling WhatChanged again may recover once the stray element is
	// re-contained or deleted.
	if strays > 0 {
		span.RecordError(errFoundStrayElements, trace.WithAttributes(
			attribute.Int("changeset.strays", strays),
		))
		return changes, fmt.Errorf("%w: %d strays", errFoundStrayElements, strays)
	}

	s.snapshot = next
	changes.SiteAfter = safeguards.HashInventories(s.snapshot)
	return changes, nil
}

// The declarations method assembles a declaration for every root of the
// containment forest, keyed by the root's seal. It also counts roots that are
// not facilities.
func (v inventory) declarations() (declarations map[safeguards.Seal]safeguards.Declaration, strays int) {
	declarations = make(map[safeguards.Seal]safeguards.Declaration)
	for seal, rec := range v.elements {
		if len(v.parents[seal]) > 0 {
			continue // not a root
		}
		var b safeguards.DeclarationBuilder
		b.Facility(rec)
		v.descend(rec, &b)
		declarations[seal] = b.Declare()
		if rec.Kind != safeguards.KindFacility {
			strays++
		}
	}
	return declarations, strays
}

func (v inventory) descend(parent safeguards.ElementRecord, b *safeguards.DeclarationBuilder) {
	for child := range v.children[parent.Seal()] {
		rec := v.elements[child]
		b.Contain(parent, rec)
		v.descend(rec, b)
	}
}
