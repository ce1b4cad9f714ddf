package neo4jstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/danielorbach/go-component"
	"github.com/dt4safeguards/safeguards"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// An inventoryWriter implements [safeguards.InventoryWriter] within a single
// neo4j transaction.
//
// It translates between safeguards.ElementRecord and RawNode, and performs
// the actual modifications on the inventory using carefully crafted Cypher
// queries.
type inventoryWriter struct {
	tx neo4j.ManagedTransaction
	// A nodeTainter defines how to taint nodes of facility inventories that
	// were modified during a mutation.
	nodeTainter interface {
		Taint(node ...RawNode)
	}
}

func (w inventoryWriter) AssertElement(ctx context.Context, rec safeguards.ElementRecord) (err error) {
	x, err := FormatRecord(rec)
	if err != nil {
		return fmt.Errorf("format record: %w", err)
	}
	return w.assertNode(ctx, x)
}

func (w inventoryWriter) assertNode(ctx context.Context, node RawNode) (err error) {
	seal, err := node.Seal.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal seal: %w", err)
	}

	query := `
		MERGE (s:` + node.Label + ` {_seal: $seal})
		ON CREATE SET s._created_at = datetime()
		SET s += $node_prop, s._last_modified = datetime()
		RETURN count(s) as nodes
	`
	result, err := w.tx.Run(ctx, query, map[string]any{
		"seal":      string(seal),
		"node_prop": node.Props,
	})
	if err != nil {
		return fmt.Errorf("run cypher: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("query single result: %w", err)
	}

	nodes, err := getRecordProperty[int64](record, "nodes")
	if err != nil {
		return fmt.Errorf("get nodes: %w", err)
	}
	// A single safeguards.ElementRecord is represented by a single node in the
	// underlying store. Asserting that record should create at most a single
	// node (either it is present in the store, or it isn't). If the query
	// creates/updates more than a single node, it implies the underlying
	// inventory has lost its integrity, so we cannot continue to operate on
	// it.
	if nodes != 1 {
		panicWithCorruptedInventory(ctx, fmt.Sprintf("assert-element modified %v nodes instead of 1", nodes))
	}

	// We taint only the asserted node, as it is the sole node being created or
	// updated; no other nodes are affected by this operation.
	w.nodeTainter.Taint(node)

	return nil
}

func (w inventoryWriter) RetractElement(ctx context.Context, rec safeguards.ElementRecord) (err error) {
	x, err := FormatRecord(rec)
	if err != nil {
		return fmt.Errorf("format record: %w", err)
	}
	return w.retractNode(ctx, x)
}

func (w inventoryWriter) retractNode(ctx context.Context, node RawNode) (err error) {
	seal, err := node.Seal.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal seal: %w", err)
	}

	query := `
		MATCH (n :` + node.Label + `{ _seal: $seal })
		OPTIONAL MATCH (n)-[]-(taint)
		DETACH DELETE n
		RETURN count(DISTINCT n) AS nodes, COLLECT(DISTINCT taint) AS taints
	`
	result, err := w.tx.Run(ctx, query, map[string]any{
		"seal": string(seal),
	})
	if err != nil {
		return fmt.Errorf("run cypher: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("query single result: %w", err)
	}

	nodes, err := getRecordProperty[int64](record, "nodes")
	if err != nil {
		return fmt.Errorf("get nodes: %w", err)
	}
	// A single safeguards.ElementRecord is represented by a single node in the
	// underlying store. Retracting that record should delete at most a single
	// node (either it is present in the store, or it isn't). If the query
	// deletes more than a single node, it implies the underlying inventory has
	// lost its integrity, so we cannot continue to operate on it.
	if nodes != 1 && nodes != 0 {
		panicWithCorruptedInventory(ctx, fmt.Sprintf("retract-element modified %v nodes instead of 0/1", nodes))
	}

	// Lastly, mark touched nodes as tainted.
	taints, err := parseTaintedNodes(record)
	if err != nil {
		return fmt.Errorf("parse taints: %w", err)
	}
	// Only the retracted node is initially tainted as it has been directly
	// changed; however, nodes previously connected to it may also be
	// contextually affected.
	w.nodeTainter.Taint(node)
	// Connected nodes are tainted because the structure of their containments
	// has now changed due to the element retraction.
	w.nodeTainter.Taint(taints...)

	return nil
}

func (w inventoryWriter) AssertContainment(ctx context.Context, parent, child safeguards.ElementRecord) (err error) {
	src, err := FormatRecord(parent)
	if err != nil {
		return fmt.Errorf("format parent record: %w", err)
	}
	dst, err := FormatRecord(child)
	if err != nil {
		return fmt.Errorf("format child record: %w", err)
	}
	return w.assertEdge(ctx, src, dst)
}

func (w inventoryWriter) assertEdge(ctx context.Context, from, to RawNode) (err error) {
	fromSeal, err := from.Seal.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal seal: %w", err)
	}

	toSeal, err := to.Seal.MarshalText()
	if err != nil {
		return fmt.Errorf("marshal seal: %w", err)
	}

	query := `
		MERGE (s:` + from.Label + ` {_seal: $from})
		ON CREATE SET s._created_at = datetime()
		SET s += $src, s._last_modified = datetime()

		MERGE (d:` + to.Label + ` {_seal: $to})
		ON CREATE SET d._created_at = datetime()
		SET d += $dst, d._last_modified = datetime()

		MERGE (s)-[e:CONTAINS]->(d)
		ON CREATE SET e._created_at = datetime()
		SET e._last_modified = datetime()

		RETURN count(e) as edges
	`
	result, err := w.tx.Run(ctx, query, map[string]any{
		"from": string(fromSeal),
		"src":  from.Props,
		"to":   string(toSeal),
		"dst":  to.Props,
	})
	if err != nil {
		return fmt.Errorf("run cypher: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("query single result: %w", err)
	}

	edges, err := getRecordProperty[int64](record, "edges")
	if err != nil {
		return fmt.Errorf("get edges: %w", err)
	}
	// Asserting a containment between two safeguards.ElementRecord ensures
	// the existence of a single CONTAINS edge (either it is present in the
	// store, or it isn't). If the query creates more than a single edge, it
	// implies the underlying inventory has lost its integrity, so we cannot
	// continue to operate on it.
	if edges != 1 {
		panicWithCorruptedInventory(ctx, fmt.Sprintf("assert-containment modified %v edges instead of 1", edges))
	}

	// We taint the parent and child nodes as they are directly involved in
	// the creation or validation of a containment, without impacting any
	// other nodes.
	w.nodeTainter.Taint(from, to)

	return nil
}

func (w inventoryWriter) RetractContainments(ctx context.Context, rec safeguards.ElementRecord, kind safeguards.ElementKind) (n int, err error) {
	x, err := FormatRecord(rec)
	if err != nil {
		return 0, fmt.Errorf("format record: %w", err)
	}
	label, ok := LabelOf(kind)
	if !ok {
		return 0, fmt.Errorf("unknown element kind %q", kind)
	}
	return w.retractEdges(ctx, x, label)
}

func (w inventoryWriter) retractEdges(ctx context.Context, node RawNode, label string) (n int, err error) {
	seal, err := node.Seal.MarshalText()
	if err != nil {
		return 0, fmt.Errorf("marshal seal: %w", err)
	}

	query := `
		MATCH (:` + node.Label + `{_seal: $from})-[e:CONTAINS]-(taint:` + label + `)
		DELETE e
		RETURN count(e) as edges, COLLECT(DISTINCT taint) AS taints
	`
	result, err := w.tx.Run(ctx, query, map[string]interface{}{
		"from": string(seal),
	})
	if err != nil {
		return 0, fmt.Errorf("run cypher: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, fmt.Errorf("query single result: %w", err)
	}

	edges, err := getRecordProperty[int64](record, "edges")
	if err != nil {
		return 0, fmt.Errorf("get edges: %w", err)
	}

	// Lastly, mark touched nodes as tainted.
	taints, err := parseTaintedNodes(record)
	if err != nil {
		return 0, fmt.Errorf("parse taints: %w", err)
	}
	// The originating node of the retracted containment is tainted because it
	// loses a connection; yet this operation doesn't affect its other
	// relationships.
	w.nodeTainter.Taint(node)
	// Connected nodes are also tainted as their direct links to the
	// originating node have been removed, altering their adjacency.
	w.nodeTainter.Taint(taints...)

	return int(edges), nil
}

// We modify the underlying neo4j database in a way that prompts us when the
// inventory violates some of our basic constraints.
//
// When we suspect the inventory has lost its integrity, we may no longer
// operate on it. In which case, we must immediately stop all operations. This
// is achieved with a panic preceded by telemetry signals (traces, metrics,
// and logs) to bring the situation to our immediate attention.
func panicWithCorruptedInventory(ctx context.Context, reason string) {
	component.Logger(ctx).ErrorContext(ctx, "Encountered corrupted neo4j inventory that violates safeguards axioms", "error", reason)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, reason)
	panic(fmt.Errorf("neo4j inventory violates safeguards axioms: %v", reason))
}

// Call this function to extract the tainted nodes (as defined by the Cypher
// query in the individual inventoryWriter methods) that change during an
// inventory modification.
func parseTaintedNodes(record *neo4j.Record) (taints []RawNode, err error) {
	nodes, err := getRecordProperty[[]interface{}](record, "taints")
	if err != nil {
		return nil, fmt.Errorf("get taints: %w", err)
	}
	taints = make([]RawNode, len(nodes))
	for i, n := range nodes {
		node, ok := n.(neo4j.Node)
		if !ok {
			return nil, unexpectedPropertyTypeError{Type: reflect.TypeOf(n)}
		}
		taint, err := newRawNode(node)
		if err != nil {
			return taints, fmt.Errorf("parse raw node: %w", err)
		}
		taints[i] = taint
	}
	return taints, nil
}
