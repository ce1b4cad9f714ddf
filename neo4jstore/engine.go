package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/dt4safeguards/safeguards"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Engine provides the basic operations required to maintain a safeguards
// inventory on Neo4j.
//
// It applies mutations to the underlying Neo4j database. Each mutation
// executes in its own transaction, which is rolled back should the mutation
// fail. This ensures each mutation applies atomically. Each mutation is
// called with a [safeguards.InventoryWriter] that is scoped to the respective
// transaction.
//
// It returns changesets containing the amalgamation of the applied
// modifications (i.e. calls to Apply) between calls to WhatChanged. To
// facilitate that behaviour, the engine keeps a snapshot (mapping from
// facility seal to inventory hash) of all facility inventories it had
// observed up to the last call to WhatChanged. NewEngine configures the
// initial value of that internal snapshot.
type Engine struct {
	driver   neo4j.DriverWithContext // Connection to the neo4j server/cluster.
	database string                  // Target database name that identifies the specific underlying inventory.
	snapshot snapshot

	taintedNodes nodeMap // Maps safeguards.Seal to RawNode for tracking changes of facility inventories.
	// Ensures multiple concurrent write transactions can safely modify the
	// inventory, while read transactions get an exclusive lock to maintain
	// data integrity.
	txMutex inventoryWRMutex
}

// A nodeMap stores the tainted nodes of facility inventories that were
// modified during a mutation.
//
// The zero-value nodeMap is ready for use.
//
// A nodeMap is safe for concurrent-use.
type nodeMap struct {
	m  map[safeguards.Seal]RawNode
	mu sync.Mutex
}

// Taint marks the given RawNodes as "dirty", storing them for later use by
// calling ClearTaints.
//
// If a node is already "dirty", its value is updated. A node is uniquely
// identified by its seal.
func (t *nodeMap) Taint(nodes ...RawNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Make the zero-value meaningful.
	if t.m == nil {
		t.m = make(map[safeguards.Seal]RawNode)
	}
	for _, node := range nodes {
		t.m[node.Seal] = node
	}
}

// ClearTaints returns the "dirty" nodes, as marked by prior calls to Taint,
// and "cleans" the nodeMap. So, further calls to ClearTaints without calling
// Taint return an empty slice.
func (t *nodeMap) ClearTaints() []RawNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Shortcut, do nothing.
	if t.m == nil {
		return nil
	}
	// We need to both return the marked nodes and clear the internal memory.
	nodes := make([]RawNode, 0, len(t.m))
	for _, node := range t.m {
		nodes = append(nodes, node)
	}
	t.m = nil
	return nodes
}

// NewEngine returns a ready-to-use Engine using the given database as the
// underlying inventory store.
//
// The function initialises the Engine with a snapshot of the current facility
// inventories in the given database. In the future, we plan to enable callers
// to replace this (potentially expensive) initialisation with an externally
// composed snapshot.
func NewEngine(ctx context.Context, driver neo4j.DriverWithContext, database string) (*Engine, error) {
	s, err := captureSnapshot(ctx, driver, database)
	if err != nil {
		return nil, fmt.Errorf("capture initial snapshot: %w", err)
	}
	return &Engine{
		driver:   driver,
		database: database,
		snapshot: s,
	}, nil
}

// WhatChanged reviews the store to create a map of its facility inventories.
// This allows detecting any new facilities that have appeared, any existing
// ones whose inventories have changed, and any that are no longer there.
//
// Once it has finished its detailed sweep, WhatChanged returns the changes it
// has detected. It lists all the new, updated, and removed facility
// inventories, providing a full copy of all changed declarations since the
// last call.
//
// Before returning, the function updates its internal records to keep a
// snapshot of the facility inventories that is up to date with this review.
// If an error occurs during the sweep, the function does not update its
// internal records so that the next call runs as if the failed execution had
// never been called.
func (e *Engine) WhatChanged(ctx context.Context) (changes safeguards.InventoryChanged, err error) {
	ctx, span := tracer.Start(ctx, "WhatChanged", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
	))
	defer span.End()
	logger := component.Logger(ctx).With("neo4j.database", e.database)
	ctx = component.InjectLogger(ctx, logger) // Inject for further logs down the call-stack.

	taints, declarations, err := e.fetchTaintedDeclarations(ctx)
	if err != nil {
		return safeguards.InventoryChanged{}, fmt.Errorf("fetch tainted declarations: %w", err)
	}

	// While iterating the facility inventories, we must store all
	// declarations that have changed between the previously stored and the
	// currently fetched snapshots.
	//
	// We use these declarations to populate the InventoryChanged result
	// later. While populating the result, we access the declarations by their
	// facility seal, so we store them in a map for convenient random access.
	var changedDeclarations = make(map[safeguards.Seal]safeguards.Declaration)

	// Look further down this function for what we do when a stray element is
	// found.
	var strayElements int

	// We iterate over all facility inventories while building a new snapshot
	// of the site.
	next := make(snapshot)
	for _, d := range declarations {
		// Add the declaration to the new snapshot.
		next[d.FacilitySeal()] = d.InventoryHash()
		// If the stored snapshot does not contain the declaration (either
		// because it is new or has changed), then add it to the list of
		// changed declarations.
		if !e.snapshot.ContainsDeclaration(d) {
			changedDeclarations[d.FacilitySeal()] = d
		}

		// Detect elements that root a containment tree without being a
		// facility. Such an element has been detached from its facility
		// without being deleted, which makes the declaration unattributable.
		// We do not terminate the inspection here because we want to count
		// all stray elements; the handling is done after all the declarations
		// have been inspected.
		if d.Record(d.FacilitySeal()).Kind != safeguards.KindFacility {
			strayElements++
		}
	}

	// Every tainted node is considered a potential facility root. If its seal
	// was in the old snapshot but roots no inventory in the newer partial
	// snapshot, the declaration has been removed.
	dirtySeals := make([]safeguards.Seal, len(taints))
	for i, n := range taints {
		dirtySeals[i] = n.Seal
	}

	// Diff snapshots to find out what has changed.
	created, updated, removed := e.snapshot.PartialDiff(next, dirtySeals)
	// Now, we have all the information we need to populate the
	// InventoryChanged result.
	changes.SiteBefore = e.snapshot.SiteHash()
	changes.Timestamp = time.Now().UTC()

	for _, seal := range created {
		// Since created declarations were not in the previous snapshot, we
		// have already stored them in the `changedDeclarations` map while
		// iterating the site above.
		changes.Created = append(changes.Created, safeguards.DeclarationCreated{Declaration: changedDeclarations[seal]})
	}
	for _, seal := range updated {
		// Since updated declarations had a different hash in the previous
		// snapshot, we have already stored them in the `changedDeclarations`
		// map while iterating the site above. We also know their previous
		// hash from the previous snapshot.
		changes.Updated = append(changes.Updated, safeguards.DeclarationUpdated{Baseline: e.snapshot[seal], Declaration: changedDeclarations[seal]})
	}
	for _, seal := range removed {
		// Since removed declarations were in the previous snapshot but not in
		// the current snapshot, we know their hash from the previous
		// snapshot.
		changes.Removed = append(changes.Removed, safeguards.DeclarationRemoved{Facility: seal, Hash: e.snapshot[seal]})
	}

	// If during iterating the site, we've stumbled upon an element that roots
	// an inventory without being a facility, then this InventoryChanged
	// notification becomes invalid, and we return an error.
	//
	// Thus, we make sure that the current snapshot will not be updated, so
	// calling WhatChanged again may recover once the stray element is
	// re-contained or deleted.
	if strayElements > 0 {
		trace.SpanFromContext(ctx).RecordError(errFoundStrayElements, trace.WithAttributes(
			attribute.Int("changeset.strays", strayElements),
			attribute.String("changeset.pretty", safeguards.FormatChanges(changes, "")),
		))
		strayElementCounter.Add(ctx, int64(strayElements), metric.WithAttributes(
			attribute.String("neo4j.database", e.database),
		))
		return changes, errFoundStrayElements
	}

	// Before returning, we don't forget to update the previously stored
	// snapshot for the next time this function is called.
	e.snapshot.Update(changes)
	// As we handle partial snapshots, we must derive SiteAfter from the
	// complete snapshot. This comprehensive state, SiteAfter, reflects the
	// site following the most recent updates. Therefore, the calculation
	// should occur post the snapshot update.
	changes.SiteAfter = e.snapshot.SiteHash()

	return changes, nil
}

// WhatChanged calls fetchTaintedDeclarations to exclusively read the store,
// without side effects from concurrent write-transactions (calls to Apply).
//
// It uses the internal taintedNodes structure to "atomically" fetch all
// declarations that were modified by prior calls to Apply since the last call
// to WhatChanged. We say "atomically" in the sense that the returned taints
// and declarations are a single unit.
func (e *Engine) fetchTaintedDeclarations(ctx context.Context) (taints []RawNode, declarations []safeguards.Declaration, err error) {
	// We open a new session for every query cycle to ensure transactional
	// isolation and to prevent any state carryover between different query
	// executions. This practice enhances robustness because any
	// session-specific errors or resources are contained and do not affect
	// subsequent operations.
	s := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "read")
		}
	}()

	// Acquire an exclusive lock before starting the read operation to ensure
	// that the inventory state remains consistent and is not being modified
	// by concurrent write transactions. See inventoryWRMutex documentation
	// for more information.
	e.txMutex.Lock()
	// Release the exclusive lock to allow write transactions to proceed now
	// that the read operation is complete.
	defer e.txMutex.Unlock()

	// We take a snapshot of all the nodes that were tainted up to this point
	// in time. This ensures that we consider all declarations that may have
	// changed in prior write operations.
	//
	// The taints are cleared from the nodeMap to prepare for the next call to
	// WhatChanged.
	taints = e.taintedNodes.ClearTaints()

	declarations, err = fetchPartialDeclarations(ctx, s, taints)
	if err != nil {
		return nil, nil, err
	}
	return taints, declarations, nil
}

// This error is returned from Engine.WhatChanged when any stray elements are
// found during a sweep.
var errFoundStrayElements = errors.New("found stray elements while sweeping the inventory")

// Apply opens a new transaction and passes a [safeguards.InventoryWriter]
// that executes Cypher queries within that transaction to the given mutation.
//
// If the mutation returns a non-nil error, the transaction is rolled back and
// the error is returned to the caller of Apply. In which case, the underlying
// database is not modified, as if the mutation was never executed.
//
// The function panics in two scenarios:
//
//   - The underlying inventory has been corrupted. This is detected by the
//     transaction-scoped safeguards.InventoryWriter which panics on its own.
//
//   - A developer changed a Cypher query, but missed some code that relied on
//     that query. This is indicated by the safeguards.InventoryWriter
//     returning errPropertyNotFound or unexpectedPropertyTypeError, causing
//     this function to issue the panic directive.
func (e *Engine) Apply(ctx context.Context, mutation safeguards.Mutation) (err error) {
	ctx, span := tracer.Start(ctx, "Apply", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
	))
	defer span.End()
	logger := component.Logger(ctx).With("neo4j.database", e.database)

	// We open a new session for every query cycle to ensure transactional
	// isolation and to prevent any state carryover between different query
	// executions. This practice enhances robustness because any
	// session-specific errors or resources are contained and do not affect
	// subsequent operations.
	s := e.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: e.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Error("Failed to close session", "error", err, "mode", "write")
		}
	}()

	// We use a special mutex to exclusively either write or read.
	//
	// Here we lock for concurrent write-operations before initiating the
	// write-transaction to prevent read operations from happening, which
	// could interfere with the consistent state of the inventory as this
	// transaction intends to modify it.
	e.txMutex.WLock()
	defer e.txMutex.WUnlock()

	// We use write transactions because the neo4j SDK can provide transaction
	// management features such as retries, error handling, and deadlock
	// resolution.
	_, err = s.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		return nil, mutation(ctx, inventoryWriter{tx: tx, nodeTainter: &e.taintedNodes})
	})
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	} else if errors.Is(err, errPropertyNotFound) || errors.As(err, &unexpectedPropertyTypeError{}) {
		component.Logger(ctx).Error("A Cypher query was modified without care", "error", err)
		panic(fmt.Errorf("seek developer attention: neo4j cypher query: %w", err))
	} else if err != nil {
		return fmt.Errorf("neo4j execute: %w", err)
	}
	return nil
}

// A errPropertyNotFound occurs when a property of a Node/Edge is missing.
//
// When encountering this error, it most likely occurs when changing a Cypher
// query without modifying the surrounding code properly. Expect a panic
// eventually.
var errPropertyNotFound = errors.New("property not found")

// An unexpectedPropertyTypeError occurs when a property of a Node/Edge has a
// runtime type that is different from the expected type. The error message
// contains the effective type of the property at runtime.
//
// When encountering this error, it most likely occurs when changing a Cypher
// query without modifying dependent code properly. Expect a panic eventually.
type unexpectedPropertyTypeError struct {
	Type reflect.Type // Effective type encountered at runtime.
}

func (e unexpectedPropertyTypeError) Error() string {
	return "unexpected property type: " + e.Type.String()
}
