package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/danielorbach/go-component"
	"github.com/dt4safeguards/safeguards"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
)

// A snapshot stores the current facility inventories of a supervised site. It
// is mostly used to compute the difference between two snapshots using the
// WhatChanged method.
type snapshot map[safeguards.Seal]safeguards.InventoryHash

// This function uses the given neo4j connection to iterate over the entire
// store (specified by the given database name) while identifying facility
// inventories.
//
// The returned snapshot records all the identified facility inventories.
func captureSnapshot(ctx context.Context, d neo4j.DriverWithContext, database string) (snapshot, error) {
	logger := component.Logger(ctx).With("neo4j.database", database)

	s := d.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() {
		if err := s.Close(ctx); err != nil {
			logger.Error("Failed to close engine's read session", "error", err)
		}
	}()

	ss := make(snapshot)
	// First, get a cursor into the entire store.
	result, err := fetchDeclarations(ctx, s)
	if err != nil {
		return ss, fmt.Errorf("fetch declarations: %w", err)
	}
	// Remember to consume (discards all remaining records) before exiting.
	// Failing to do so may leak resources, we're not sure.
	defer func() {
		_, err := result.Consume(ctx) // Currently, we do not know what to do with the summary, so ignore it.
		if err != nil {
			logger.Error("Failed to drain a neo4j connection", "error", err)
		}
	}()

	for result.Next(ctx) {
		d, err := safelyParseDeclaration(ctx, result.Record())
		if err != nil {
			return ss, fmt.Errorf("parse declaration: %w", err)
		}
		ss[d.FacilitySeal()] = d.InventoryHash()
	}
	// Neo4j's result cursor is exhausted by now. We check its Err method to
	// get the error that caused the iteration to stop, if any.
	if err := result.Err(); err != nil {
		return ss, fmt.Errorf("iterate declarations: %w", err)
	}
	return ss, nil
}

// SiteHash calculates and returns a consolidated hash representing the entire
// state of the snapshot by hashing its inventories. Using this, one can
// quickly determine if two snapshots are identical or if any changes have
// occurred between them.
func (s snapshot) SiteHash() safeguards.SiteHash {
	return safeguards.HashInventories(s)
}

// ContainsDeclaration determines whether the snapshot contains a declaration
// with the same facility seal and an unchanged inventory hash, indicating
// that the facility's inventory has not been altered since the snapshot was
// taken. It returns true if both the declaration exists and the hash matches.
func (s snapshot) ContainsDeclaration(d safeguards.DeclarationRef) bool {
	hash, exists := s[d.FacilitySeal()]
	return exists && hash == d.InventoryHash()
}

// The fetchDeclarations function returns a list of facility inventories from
// the Neo4j store associated with the given session.
//
// Every record in the query results contains:
//
//   - A "root" property marking the facility node of the inventory.
//
//   - A list of containment "tuples", such that every tuple has a "from" and
//     a "to" Node.
//
// Containment trees have a fixed shape: facility, room, holding area, and
// container, in that order. So the longest path from a facility to any of its
// elements spans three CONTAINS edges, and the variable-length match below is
// bounded accordingly.
func fetchDeclarations(ctx context.Context, s neo4j.SessionWithContext) (neo4j.ResultWithContext, error) {
	query := `
		CALL {
			// find facility roots
			MATCH (root) WHERE NOT EXISTS {()-[:CONTAINS]->(root)}

			// collect every containment edge reachable from the root
			MATCH (root)-[:CONTAINS*0..2]->(path_node)-[:CONTAINS]->(adjacent_path_node)

			// group all tuples by root, tuples are unique since they are added
			WITH root, COLLECT({from: path_node, to: adjacent_path_node}) AS tuples
			RETURN root, tuples
			UNION
			MATCH (root) WHERE NOT EXISTS {()-[:CONTAINS]->(root)} AND NOT EXISTS {()<-[:CONTAINS]-(root)}
			RETURN root, [{from: null, to: null}] AS tuples
		}
		RETURN root, tuples
	`
	result, err := s.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return result, nil
}

// Call fetchPartialDeclarations to fetch (from the Neo4j store associated
// with the given session) the facility inventories that were touched, as
// marked by the given slice of tainted nodes.
//
// Every record in the query results contains:
//
//   - A "root" property marking the facility node of the inventory.
//
//   - A list of containment "tuples", such that every tuple has a "from" and
//     a "to" Node.
func fetchPartialDeclarations(ctx context.Context, s neo4j.SessionWithContext, taints []RawNode) (declarations []safeguards.Declaration, err error) {
	ctx, span := tracer.Start(ctx, "fetchPartialDeclarations")
	defer span.End()

	work := func(tx neo4j.ManagedTransaction) (interface{}, error) {
		// We use a map to track facility inventories and their respective
		// hashes, to ensure consistency during read iterations, since we do
		// not fully understand Neo4j's isolation levels.
		//
		// We think that concurrent transactions might affect our data
		// accuracy because we've noticed that modifications made in one
		// write-transaction spill over into an already running
		// read-transaction.
		//
		// As we read the store during a single transaction, we must guarantee
		// identical results for repeated reads of the same facility
		// inventory. Any discrepancy in results would invalidate our ability
		// to compare inventory states, so we choose to immediately abort the
		// operation and panic.
		seen := make(map[safeguards.Seal]safeguards.InventoryHash)

		// We are only collecting inventories containing nodes we have already
		// tainted.
		for _, taint := range taints {
			seal, err := taint.Seal.MarshalText()
			if err != nil {
				return nil, fmt.Errorf("marshal seal: %w", err)
			}
			query := `
				CALL{
					MATCH (root)-[:CONTAINS*]->(target:` + taint.Label + `{_seal: $seal})
					WHERE NOT ()-[:CONTAINS]->(root)
					WITH root
					MATCH (root)-[:CONTAINS*0..2]->(path_node)-[:CONTAINS]->(adjacent_path_node)
					WITH root, COLLECT({from: path_node, to: adjacent_path_node}) AS tuples
					RETURN root, tuples

					UNION

					MATCH (root:` + taint.Label + `{_seal: $seal})
					WHERE NOT ()-[:CONTAINS]->(root) AND NOT ()<-[:CONTAINS]-(root)
					RETURN root, [{from: null, to: null}] AS tuples
				}
				return root, tuples
			`
			result, err := tx.Run(ctx, query, map[string]any{"seal": string(seal)})
			if err != nil {
				return nil, fmt.Errorf("run: %w", err)
			}
			for result.Next(ctx) {
				d, err := safelyParseDeclaration(ctx, result.Record())
				if err != nil {
					return nil, fmt.Errorf("parse declaration: %w", err)
				}

				root := d.FacilitySeal()
				h, exists := seen[root]
				// If it's the first time encountering this declaration, mark
				// it.
				if !exists {
					seen[root] = d.InventoryHash()
					declarations = append(declarations, d)
				}
				// If the current declaration has been previously marked as
				// seen, we check whether the stored hash matches the already
				// seen hash.
				//
				// A mismatch indicates an inconsistency in the transaction's
				// isolation, so we inevitably panic.
				if exists && h != d.InventoryHash() {
					span.SetAttributes(
						attribute.Stringer("facility.seal", root),
						attribute.Stringer("inventory.hash", d.InventoryHash()),
						attribute.Stringer("seen.hash", h),
					)
					component.Logger(ctx).Error(
						"An inventory was modified while in a read transaction, this should not happen",
						slog.String("facility.seal", root.String()),
						slog.String("inventory.hash", d.InventoryHash().String()),
						slog.String("inventory.seenHash", h.String()),
					)
					panic(fmt.Errorf("seek developer attention: a neo4j transaction isolation was violated"))
				}
			}
			// Neo4j's result cursor is exhausted by now. We check its Err
			// method to get the error that caused the iteration to stop, if
			// any.
			if err := result.Err(); err != nil {
				return nil, fmt.Errorf("iterate declarations: %w", err)
			}
		}
		return nil, nil
	}

	// The work function above appends directly into the returned declarations
	// variable.
	_, err = s.ExecuteRead(ctx, work)
	if err != nil {
		return nil, fmt.Errorf("execute read: %w", err)
	}
	return declarations, nil
}

// Call this function to parse a record representing a facility inventory (as
// constructed by the Cypher query defined at fetchDeclarations) with a
// possible panic due to developer errors.
//
// Developer errors happen when a developer had changed some code that depends
// on the specifics of the Cypher query, but missed some bits.
func safelyParseDeclaration(ctx context.Context, record *neo4j.Record) (declaration safeguards.Declaration, err error) {
	declaration, err = parseDeclaration(record)
	if errors.Is(err, errPropertyNotFound) || errors.As(err, &unexpectedPropertyTypeError{}) {
		component.Logger(ctx).Error("A Cypher query was modified without care", "error", err)
		panic(fmt.Errorf("seek developer attention: neo4j cypher query: %w", err))
	}
	return
}

// Call safelyParseDeclaration instead of calling this function directly.
// Following this directive ensures the same developer errors are panicked
// regardless of the code-path that encounters them.
func parseDeclaration(record *neo4j.Record) (safeguards.Declaration, error) {
	r, err := getRecordProperty[neo4j.Node](record, "root")
	if err != nil {
		return nil, fmt.Errorf("get root: %w", err)
	}
	root, err := parseElementNode(r)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}

	var builder safeguards.DeclarationBuilder
	builder.Facility(root)
	if err := parseContainments(record, &builder); err != nil {
		return nil, fmt.Errorf("parse containments: %w", err)
	}
	return builder.Declare(), nil
}

// This function is here to make parsing neo4j.Node into
// safeguards.ElementRecord more readable at the call-site.
func parseElementNode(node neo4j.Node) (safeguards.ElementRecord, error) {
	raw, err := newRawNode(node)
	if err != nil {
		return safeguards.ElementRecord{}, fmt.Errorf("construct raw node: %w", err)
	}
	rec, err := ParseRecord(raw)
	if err != nil {
		return safeguards.ElementRecord{}, fmt.Errorf("parse raw node: %w", err)
	}
	return rec, nil
}

func parseContainments(record *neo4j.Record, builder *safeguards.DeclarationBuilder) error {
	tuples, err := getRecordProperty[[]interface{}](record, "tuples")
	if err != nil {
		return fmt.Errorf("get tuples: %w", err)
	}

	for i, tuple := range tuples {
		edge, ok := tuple.(map[string]interface{})
		if !ok {
			return fmt.Errorf("containment tuple #%v: %w", i, unexpectedPropertyTypeError{Type: reflect.TypeOf(tuple)})
		}
		// If the query encounters a floating node in the store, it outputs
		// its tuple list as a single entry containing an edge [from: null,
		// to: null]. This signifies that the node is an isolated root. The
		// following check ensures we only process valid edges by skipping
		// such standalone nodes as they are already set by parseDeclaration.
		if edge["from"] == nil && edge["to"] == nil {
			continue
		}

		err := parseContainment(edge, builder)
		if err != nil {
			return fmt.Errorf("containment #%v: %w", i, err)
		}
	}

	return nil
}

// Call parseContainment with a single "tuple" from the "tuples" slice, as
// collected by the Cypher query defined at fetchDeclarations.
func parseContainment(edge map[string]interface{}, builder *safeguards.DeclarationBuilder) error {
	// Construct the parent node of the edge.
	from, ok := edge["from"]
	if !ok {
		return fmt.Errorf("get from: %w", errPropertyNotFound)
	}
	fromNode, ok := from.(neo4j.Node)
	if !ok {
		return fmt.Errorf("get from: %w", unexpectedPropertyTypeError{Type: reflect.TypeOf(from)})
	}
	parent, err := parseElementNode(fromNode)
	if err != nil {
		return fmt.Errorf("parent node: %w", err)
	}

	// Construct the child node of the edge.
	to, ok := edge["to"]
	if !ok {
		return fmt.Errorf("get to: %w", errPropertyNotFound)
	}
	toNode, ok := to.(neo4j.Node)
	if !ok {
		return fmt.Errorf("get to: %w", unexpectedPropertyTypeError{Type: reflect.TypeOf(to)})
	}
	child, err := parseElementNode(toNode)
	if err != nil {
		return fmt.Errorf("child node: %w", err)
	}

	// Connect the two nodes of the edge.
	builder.Contain(parent, child)
	return nil
}

// Diff calculates the difference between two snapshots, each containing the
// facility inventories of complete supervised sites (usually the same site at
// different points in time).
//
// Diff returns which facility inventories were created, updated, or removed,
// while those that did not change are not returned.
func (s snapshot) Diff(newer snapshot) (created, updated, removed []safeguards.Seal) {
	// Facilities that appear in the newer snapshot could be created, updated,
	// or unchanged.
	for seal, newHash := range newer {
		if oldHash, ok := s[seal]; !ok {
			created = append(created, seal)
		} else if oldHash != newHash {
			updated = append(updated, seal)
		} // else: no change
	}

	// Facilities that appear in the older snapshot but not in the newer
	// snapshot have been removed.
	for seal := range s {
		if _, ok := newer[seal]; !ok {
			removed = append(removed, seal)
		}
	}

	return created, updated, removed
}

// PartialDiff calculates the difference between this full snapshot
// (containing all facility inventories of a supervised site) and a partial
// snapshot containing some facility inventories.
//
// PartialDiff returns which facility inventories were created, updated, or
// removed, while those that did not change are not returned.
//
// PartialDiff compares against a partial snapshot, so its knowledge of the
// entire site is limited by the declarations contained in that snapshot. That
// is, the function cannot conclude if a declaration that was part of this
// snapshot is removed with certainty, solely based on the given partial
// snapshot.
//
// The dirtySeals contain the seals of all nodes that were touched during the
// write operations leading to the given partial snapshot. With this
// knowledge, we can know for sure which declarations were removed from this
// snapshot. Read the iteration over the dirtySeals with care to see this in
// action.
func (s snapshot) PartialDiff(partial snapshot, dirtySeals []safeguards.Seal) (created, updated, removed []safeguards.Seal) {
	// Facilities that appear in the newer snapshot could be created, updated,
	// or unchanged.
	for seal, newHash := range partial {
		if oldHash, ok := s[seal]; !ok {
			created = append(created, seal)
		} else if oldHash != newHash {
			updated = append(updated, seal)
		}
	}

	for _, seal := range dirtySeals {
		_, wasRoot := s[seal]       // Check if the tainted node rooted an inventory in the old snapshot.
		_, nowRoot := partial[seal] // Check if the tainted node still roots an inventory in the newer partial snapshot.
		// If the tainted node rooted an inventory in the old snapshot but
		// doesn't in the newer partial snapshot, we assume that the
		// declaration has been removed.
		//
		// This assumption is legitimate since dirtySeals contain the nodes
		// that we know were affected by the write operations leading to the
		// creation of the partial snapshot.
		if !nowRoot && wasRoot {
			removed = append(removed, seal)
		}
	}
	return created, updated, removed
}

// Update modifies the current snapshot based on the changes observed in the
// supervised site. It processes information about which declarations have
// been created, updated, or removed, and adjusts the snapshot to reflect the
// new state of the entire site.
//
// This ensures that the snapshot stays current and accurately represents the
// site's state after the changes have occurred.
//
// It is designed to work hand in hand with PartialDiff.
func (s snapshot) Update(changes safeguards.InventoryChanged) {
	for _, created := range changes.Created {
		s[created.FacilitySeal()] = created.InventoryHash()
	}
	for _, updated := range changes.Updated {
		s[updated.FacilitySeal()] = updated.InventoryHash()
	}
	for _, removed := range changes.Removed {
		delete(s, removed.FacilitySeal())
	}
}

// The recordProperty interface defines generic constraints for supported
// values by getRecordProperty.
//
// These type constraints protect against unsupported neo4j types like int,
// uint32, etc.
//
// This is a subset of all types supported by the neo4j package because
// listing all of them would be troublesome. When a new type is necessary,
// developers can simply add it to the list here.
type recordProperty interface {
	int64 | string | neo4j.Node | []interface{}
}

func getRecordProperty[T recordProperty](record *neo4j.Record, key string) (value T, err error) {
	prop, exists := record.Get(key)
	if !exists {
		return value, errPropertyNotFound
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)}
	}
	return v, nil
}
