package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dt4safeguards/safeguards"
	"github.com/dt4safeguards/safeguards/memstore"
	"github.com/dt4safeguards/safeguards/storetest"
)

func TestStore(t *testing.T) {
	s := memstore.NewStore()
	storetest.Run(t, s, s)
}

func TestFailedMutationRollsBack(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewStore()

	facility := safeguards.ElementRecord{
		Kind: safeguards.KindFacility, ID: 1, Name: "Interim storage", Category: "Wet storage",
	}

	boom := errors.New("boom")
	err := s.Apply(ctx, func(ctx context.Context, w safeguards.InventoryWriter) error {
		if err := w.AssertElement(ctx, facility); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Apply() = %v, want %v", err, boom)
	}

	changes, err := s.WhatChanged(ctx)
	if err != nil {
		t.Fatalf("WhatChanged() failed: %v", err)
	}
	if !changes.IsEmpty() {
		t.Errorf("WhatChanged() reported changes after a failed mutation:\n%v", safeguards.FormatChanges(changes, "\t"))
	}
}

func TestStrayElementFailsSweep(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewStore()

	container := safeguards.ElementRecord{
		Kind: safeguards.KindContainer, ID: 1, Name: "Castor 1", Category: "Castor",
	}

	err := s.Apply(ctx, func(ctx context.Context, w safeguards.InventoryWriter) error {
		return w.AssertElement(ctx, container)
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	if _, err := s.WhatChanged(ctx); err == nil {
		t.Fatal("WhatChanged() = nil error, want stray element failure")
	}

	// Deleting the stray recovers the store, and the sweep reports no
	// changes because the stray never made it into a valid changeset.
	err = s.Apply(ctx, func(ctx context.Context, w safeguards.InventoryWriter) error {
		return w.RetractElement(ctx, container)
	})
	if err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	changes, err := s.WhatChanged(ctx)
	if err != nil {
		t.Fatalf("WhatChanged() failed: %v", err)
	}
	if !changes.IsEmpty() {
		t.Errorf("WhatChanged() reported changes after the stray was deleted:\n%v", safeguards.FormatChanges(changes, "\t"))
	}
}
