package neo4jstore

import (
	"fmt"
	"reflect"

	"github.com/dt4safeguards/safeguards"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// RawNode describes a safeguards.ElementRecord in a store engine.
type RawNode struct {
	// The label of the node indicates its element kind. If the neo4j.Node has
	// several labels, only the one that corresponds to a known kind is used
	// here.
	Label string
	// A Seal uniquely identifies the node within the store; it is computed
	// from the element's declared identity.
	//
	// Users of this package rarely create RawNodes manually.
	Seal safeguards.Seal
	// The properties of the node bearing business value. That is, these are
	// the attributes that are relevant to the safeguards model.
	Props PropertyMap
	// The properties of the node that are used by the store engine, usually
	// for manual debugging purposes.
	Metadata PropertyMap
}

type PropertyMap map[string]any

// Call newRawNode to construct a RawNode from the given neo4j.Node. This
// package's safeguards.InventoryWriter must adhere to the conventions set in
// this function.
//
// The conventions (if you've reached this far, read the code anyway):
//
//   - The neo4j.Node must have only a single label, naming the element kind.
//   - All values are stored as properties of the neo4j.Node.
//   - Properties starting with underscore ('_') are considered metadata, and
//     for internal use by this package only.
//   - The rest of the properties are used to populate the PropertyMap for
//     ParseRecord.
//   - RawNode.Seal is stored in the metadata property and uses a string
//     returned from [safeguards.Seal.MarshalText].
func newRawNode(node neo4j.Node) (RawNode, error) {
	if len(node.Labels) != 1 {
		return RawNode{}, fmt.Errorf("node must have a single label")
	}

	raw := RawNode{
		Label:    node.Labels[0],
		Props:    make(map[string]any),
		Metadata: make(map[string]any),
	}
	for key, value := range node.Props {
		if key[0] == '_' {
			raw.Metadata[key] = value
		} else {
			raw.Props[key] = value
		}
	}
	v, ok := node.Props["_seal"]
	if !ok {
		return RawNode{}, fmt.Errorf("key not found: _seal")
	}
	// The _seal is a string property, but we don't want to panic in case this
	// changes without us knowing (bug or otherwise).
	h, ok := v.(string)
	if !ok {
		return RawNode{}, fmt.Errorf("unexpected type: _seal is %T", v)
	}

	err := raw.Seal.UnmarshalText([]byte(h))
	if err != nil {
		return RawNode{}, fmt.Errorf("unmarshal seal: %w", err)
	}
	return raw, nil
}

// The element kinds of the safeguards model are a closed set, so the node
// labels of this store are too. Unlike an open registry, an unknown label in
// the store means data written by foreign code and is rejected on parsing.
var knownLabels = []safeguards.ElementKind{
	safeguards.KindFacility,
	safeguards.KindRoom,
	safeguards.KindHoldingArea,
	safeguards.KindContainer,
}

// KnownLabels returns a list of all labels under which this store persists
// elements (i.e. all labels that can be used to identify a node).
func KnownLabels() []string {
	labels := make([]string, len(knownLabels))
	for i, kind := range knownLabels {
		labels[i] = string(kind)
	}
	return labels
}

// LabelOf returns the neo4j node label for the given element kind.
func LabelOf(kind safeguards.ElementKind) (label string, ok bool) {
	for _, k := range knownLabels {
		if k == kind {
			return string(k), true
		}
	}
	return "", false
}

// FormatRecord deconstructs the given safeguards.ElementRecord to a RawNode.
func FormatRecord(rec safeguards.ElementRecord) (node RawNode, err error) {
	label, ok := LabelOf(rec.Kind)
	if !ok {
		return RawNode{}, fmt.Errorf("unknown element kind %q", rec.Kind)
	}
	return RawNode{
		Label: label,
		Seal:  rec.Seal(),
		Props: PropertyMap{
			"id":       int64(rec.ID),
			"name":     rec.Name,
			"category": rec.Category,
			"dx":       rec.Dimensions.DX,
			"dy":       rec.Dimensions.DY,
			"dz":       rec.Dimensions.DZ,
			"x":        rec.Position.X,
			"y":        rec.Position.Y,
			"z":        rec.Position.Z,
		},
	}, nil
}

// ParseRecord constructs a safeguards.ElementRecord from the given RawNode.
func ParseRecord(n RawNode) (safeguards.ElementRecord, error) {
	kind := safeguards.ElementKind(n.Label)
	if _, ok := LabelOf(kind); !ok {
		return safeguards.ElementRecord{}, fmt.Errorf("unknown label %q", n.Label)
	}

	id, err := getProperty[int64](n.Props, "id")
	if err != nil {
		return safeguards.ElementRecord{}, err
	}
	name, err := getProperty[string](n.Props, "name")
	if err != nil {
		return safeguards.ElementRecord{}, err
	}
	category, err := getProperty[string](n.Props, "category")
	if err != nil {
		return safeguards.ElementRecord{}, err
	}
	rec := safeguards.ElementRecord{
		Kind:     kind,
		ID:       safeguards.ID(id),
		Name:     name,
		Category: category,
	}
	if rec.Dimensions.DX, err = getProperty[float64](n.Props, "dx"); err != nil {
		return safeguards.ElementRecord{}, err
	}
	if rec.Dimensions.DY, err = getProperty[float64](n.Props, "dy"); err != nil {
		return safeguards.ElementRecord{}, err
	}
	if rec.Dimensions.DZ, err = getProperty[float64](n.Props, "dz"); err != nil {
		return safeguards.ElementRecord{}, err
	}
	if rec.Position.X, err = getProperty[float64](n.Props, "x"); err != nil {
		return safeguards.ElementRecord{}, err
	}
	if rec.Position.Y, err = getProperty[float64](n.Props, "y"); err != nil {
		return safeguards.ElementRecord{}, err
	}
	if rec.Position.Z, err = getProperty[float64](n.Props, "z"); err != nil {
		return safeguards.ElementRecord{}, err
	}

	// Defensive: make sure the seal is correct (will not panic here because
	// although this is a defensive check and the error is likely to be a bug
	// in the code, the developer does not have control over the input, meaning
	// that the error may not repeat itself - for example, by manually removing
	// a problematic node from the store).
	if h := rec.Seal(); h != n.Seal {
		return safeguards.ElementRecord{}, fmt.Errorf("defensive: seal mismatch: %q != %q", h.String(), n.Seal)
	}

	return rec, nil
}

func getProperty[T int64 | float64 | string](props PropertyMap, key string) (value T, err error) {
	prop, exists := props[key]
	if !exists {
		return value, fmt.Errorf("get %v: %w", key, errPropertyNotFound)
	}
	v, ok := prop.(T)
	if !ok {
		return value, fmt.Errorf("get %v: %w", key, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)})
	}
	return v, nil
}
