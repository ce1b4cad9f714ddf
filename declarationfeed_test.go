package safeguards

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielorbach/go-component"
)

func TestDeclarationChangedGobMarshalling(t *testing.T) {
	tests := []struct {
		Name  string
		Value DeclarationChanged
	}{
		{
			Name: "DeclarationCreated",
			Value: DeclarationChanged{
				Declaration: DeclarationCreated{Declaration: newDeclaration("1")},
				SiteHash:    SiteHash{1},
			},
		},
		{
			Name: "DeclarationUpdated",
			Value: DeclarationChanged{
				Declaration: DeclarationUpdated{Declaration: newDeclaration("2"), Baseline: InventoryHash{0xbb}},
				SiteHash:    SiteHash{1},
			},
		},
		{
			Name: "DeclarationRemoved",
			Value: DeclarationChanged{
				Declaration: DeclarationRemoved{
					Facility: Seal{1},
					Hash:     InventoryHash{0xaa},
				},
				SiteHash: SiteHash{1},
			},
		},
	}

	for _, tt := range tests {
		var p bytes.Buffer
		enc := gob.NewEncoder(&p)
		if err := enc.Encode(tt.Value); err != nil {
			t.Errorf("Encode(%s): %s", tt.Name, err)
			continue
		}

		var reconstructed DeclarationChanged
		dec := gob.NewDecoder(&p)
		if err := dec.Decode(&reconstructed); err != nil {
			t.Errorf("Decode(%s): %s", tt.Name, err)
			continue
		}

		if diff := cmp.Diff(tt.Value, reconstructed); diff != "" {
			t.Errorf("Reconstructed %s value differs: %s", tt.Name, diff)
			continue
		}
	}
}

func TestDeclarationChangedKind(t *testing.T) {
	created := DeclarationChanged{Declaration: DeclarationCreated{Declaration: newDeclaration("1")}}
	updated := DeclarationChanged{Declaration: DeclarationUpdated{Declaration: newDeclaration("2")}}
	removed := DeclarationChanged{Declaration: DeclarationRemoved{Facility: Seal{1}}}

	if !created.IsCreated() || created.IsUpdated() || created.IsRemoved() {
		t.Error("DeclarationCreated misreports its change kind")
	}
	if !updated.IsUpdated() || updated.IsCreated() || updated.IsRemoved() {
		t.Error("DeclarationUpdated misreports its change kind")
	}
	if !removed.IsRemoved() || removed.IsCreated() || removed.IsUpdated() {
		t.Error("DeclarationRemoved misreports its change kind")
	}
}

func TestFanOutChanges(t *testing.T) {
	site := InventoryChanged{
		SiteBefore: SiteHash{1},
		Created:    []DeclarationCreated{{Declaration: newDeclaration("1")}},
		Updated:    []DeclarationUpdated{{Declaration: newDeclaration("2"), Baseline: InventoryHash{3}}},
		Removed:    []DeclarationRemoved{{Facility: Seal{4}, Hash: InventoryHash{5}}},
		SiteAfter:  SiteHash{2},
	}

	changes := fanOutChanges(site)
	if len(changes) != 3 {
		t.Fatalf("fanOutChanges() produced %d messages, want 3", len(changes))
	}
	if !changes[0].IsCreated() || !changes[1].IsUpdated() || !changes[2].IsRemoved() {
		t.Error("fanned-out changes are not in created, updated, removed order")
	}
	for _, c := range changes {
		if c.SiteHash != site.SiteAfter {
			t.Errorf("message carries site hash %v, want %v", c.SiteHash, site.SiteAfter)
		}
		if !c.Timestamp.Equal(site.Timestamp) {
			t.Errorf("message carries timestamp %v, want %v", c.Timestamp, site.Timestamp)
		}
	}

	if got := fanOutChanges(InventoryChanged{SiteBefore: SiteHash{1}, SiteAfter: SiteHash{1}}); len(got) != 0 {
		t.Errorf("fanOutChanges(no changes) produced %d messages, want 0", len(got))
	}
}

// ExampleNewDeclarationFeed shows a [component.Descriptor] for a declaration
// feed with an example bootstrap function.
func ExampleNewDeclarationFeed() {
	inventoryChangedAspect := "safeguards.inventory-changed"
	declarationChangedAspect := "safeguards.declaration-changed"

	d := &component.Descriptor{
		Name: "safeguards-declarationfeed",
		Doc:  "....",
		Bootstrap: func(l *component.L, target component.Linker, options any) error {
			logger := component.Logger(l.Context())

			logger.Debug("Opening interest subscription...", slog.String("topic-name", inventoryChangedAspect))
			siteChanges, err := target.LinkInterest(l.GraceContext(), inventoryChangedAspect)
			if err != nil {
				return fmt.Errorf("open interest %q: %w", inventoryChangedAspect, err)
			}
			l.CleanupBackground(siteChanges.Shutdown)
			logger.Info("Interest subscription opened successfully")

			logger.Debug("Opening aspect topic...", slog.String("topic-name", declarationChangedAspect))
			declarationChanges, err := target.LinkAspect(l.GraceContext(), declarationChangedAspect)
			if err != nil {
				return fmt.Errorf("open aspect %q: %w", declarationChangedAspect, err)
			}
			l.CleanupContext(declarationChanges.Shutdown)
			logger.Info("Aspect topic opened successfully")

			l.Fork("declarationfeed", NewDeclarationFeed("gorleben", siteChanges, declarationChanges))

			return nil
		},
		Aspects:   []string{declarationChangedAspect},
		Interests: []string{inventoryChangedAspect},
	}

	fmt.Print(d)
}
