package neo4jstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dt4safeguards/safeguards"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestRecordRoundTrip(t *testing.T) {
	var tests = []struct {
		name string
		rec  safeguards.ElementRecord
	}{
		{
			name: "Facility",
			rec: safeguards.ElementRecord{
				Kind: safeguards.KindFacility, ID: 1, Name: "Interim storage", Category: "Wet storage",
				Dimensions: safeguards.Dimensions{DX: 120, DY: 80, DZ: 15},
			},
		},
		{
			name: "Room",
			rec: safeguards.ElementRecord{
				Kind: safeguards.KindRoom, ID: 2, Name: "Room 1", Category: "Storage room",
				Dimensions: safeguards.Dimensions{DX: 40, DY: 30, DZ: 12},
			},
		},
		{
			name: "HoldingArea",
			rec: safeguards.ElementRecord{
				Kind: safeguards.KindHoldingArea, ID: 3, Name: "Holding area 1",
				Position: safeguards.Position{X: 4, Y: 6},
			},
		},
		{
			name: "Container",
			rec: safeguards.ElementRecord{
				Kind: safeguards.KindContainer, ID: 4, Name: "Castor 1", Category: "Castor",
				Dimensions: safeguards.Dimensions{DX: 3, DY: 3, DZ: 6},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := FormatRecord(tt.rec)
			if err != nil {
				t.Fatal("FormatRecord:", err)
			}
			if node.Label != string(tt.rec.Kind) {
				t.Errorf("Label = %q, want %q", node.Label, tt.rec.Kind)
			}
			if node.Seal != tt.rec.Seal() {
				t.Errorf("Seal = %v, want %v", node.Seal, tt.rec.Seal())
			}

			out, err := ParseRecord(node)
			if err != nil {
				t.Fatal("ParseRecord:", err)
			}
			if diff := cmp.Diff(tt.rec, out); diff != "" {
				t.Errorf("Round-trip mismatch (-want +got):\n%v", diff)
			}
		})
	}
}

func TestUnknownKind(t *testing.T) {
	rec := safeguards.ElementRecord{Kind: "Reactor", ID: 1, Name: "Unit 1"}
	if _, err := FormatRecord(rec); err == nil {
		t.Errorf("FormatRecord() = nil; want error")
	}

	node := RawNode{Label: "Reactor"}
	if _, err := ParseRecord(node); err == nil {
		t.Errorf("ParseRecord() = nil; want error")
	}
}

// A node whose stored seal does not match the seal recomputed from its
// properties indicates tampering or manual edits; parsing must reject it.
func TestSealMismatch(t *testing.T) {
	rec := safeguards.ElementRecord{
		Kind: safeguards.KindContainer, ID: 4, Name: "Castor 1", Category: "Castor",
	}
	node, err := FormatRecord(rec)
	if err != nil {
		t.Fatal("FormatRecord:", err)
	}

	node.Props["name"] = "Castor 2"
	if _, err := ParseRecord(node); err == nil {
		t.Errorf("ParseRecord() = nil; want seal mismatch error")
	}
}

func TestNewRawNodeConventions(t *testing.T) {
	rec := safeguards.ElementRecord{
		Kind: safeguards.KindRoom, ID: 2, Name: "Room 1", Category: "Storage room",
	}
	seal, err := rec.Seal().MarshalText()
	if err != nil {
		t.Fatal("marshal seal:", err)
	}

	t.Run("SplitsMetadata", func(t *testing.T) {
		raw, err := newRawNode(neo4j.Node{
			Labels: []string{string(safeguards.KindRoom)},
			Props: map[string]any{
				"_seal":          string(seal),
				"_created_at":    "2026-08-31",
				"_last_modified": "2026-08-31",
				"name":           "Room 1",
			},
		})
		if err != nil {
			t.Fatal("newRawNode:", err)
		}
		if raw.Seal != rec.Seal() {
			t.Errorf("Seal = %v, want %v", raw.Seal, rec.Seal())
		}
		if _, ok := raw.Props["name"]; !ok {
			t.Error("Props is missing the name property")
		}
		if _, ok := raw.Props["_created_at"]; ok {
			t.Error("Props contains metadata property _created_at")
		}
		if _, ok := raw.Metadata["_created_at"]; !ok {
			t.Error("Metadata is missing the _created_at property")
		}
	})

	t.Run("RejectsMultipleLabels", func(t *testing.T) {
		_, err := newRawNode(neo4j.Node{
			Labels: []string{string(safeguards.KindRoom), string(safeguards.KindFacility)},
			Props:  map[string]any{"_seal": string(seal)},
		})
		if err == nil {
			t.Error("newRawNode() = nil; want error")
		}
	})

	t.Run("RejectsMissingSeal", func(t *testing.T) {
		_, err := newRawNode(neo4j.Node{
			Labels: []string{string(safeguards.KindRoom)},
			Props:  map[string]any{"name": "Room 1"},
		})
		if err == nil {
			t.Error("newRawNode() = nil; want error")
		}
	})
}
