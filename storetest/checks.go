package storetest

import (
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/dt4safeguards/safeguards"
)

// A check is any function that returns unexpected problems with the given
// [safeguards.InventoryChanged].
type check func(safeguards.InventoryChanged) (problem string)

// Checks that the created declarations are exactly as expected.
//
// We identify declarations by their facility seal, and compare their contents
// using their safeguards.InventoryHash.
func created(declarations ...safeguards.DeclarationRef) check {
	return func(changed safeguards.InventoryChanged) string {
		if len(changed.Created) != len(declarations) {
			return fmt.Sprintf("len(.Created) = %v, want %v", len(changed.Created), len(declarations))
		}

		// Slices are not friendly to compare but maps are (using cmp.Diff).
		var (
			want = make(map[safeguards.Seal]safeguards.InventoryHash)
			got  = make(map[safeguards.Seal]safeguards.InventoryHash)
		)
		for _, d := range declarations {
			want[d.FacilitySeal()] = d.InventoryHash()
		}
		for _, d := range changed.Created {
			got[d.FacilitySeal()] = d.InventoryHash()
		}

		if diff := cmp.Diff(want, got); diff != "" {
			return fmt.Sprintf("Created mismatch (-want +got):\n%v", diff)
		}
		return ""
	}
}

// Checks that the updated declarations are exactly as expected.
//
// We identify declarations by their facility seal, and compare their contents
// using their safeguards.InventoryHash.
func updated(declarations ...safeguards.DeclarationRef) check {
	return func(changed safeguards.InventoryChanged) string {
		if len(changed.Updated) != len(declarations) {
			return fmt.Sprintf("len(.Updated) = %v, want %v", len(changed.Updated), len(declarations))
		}

		// Slices are not friendly to compare but maps are (using cmp.Diff).
		var (
			want = make(map[safeguards.Seal]safeguards.InventoryHash)
			got  = make(map[safeguards.Seal]safeguards.InventoryHash)
		)
		for _, d := range declarations {
			want[d.FacilitySeal()] = d.InventoryHash()
		}
		for _, d := range changed.Updated {
			got[d.FacilitySeal()] = d.InventoryHash()
		}

		if diff := cmp.Diff(want, got); diff != "" {
			return fmt.Sprintf("Updated mismatch (-want +got):\n%v", diff)
		}
		return ""
	}
}

// Checks that the removed declarations are exactly as expected.
//
// We identify declarations by their facility seal, and compare their contents
// using their safeguards.InventoryHash.
func removed(declarations ...safeguards.DeclarationRef) check {
	return func(changed safeguards.InventoryChanged) string {
		if len(changed.Removed) != len(declarations) {
			return fmt.Sprintf("len(.Removed) = %v, want %v", len(changed.Removed), len(declarations))
		}

		// Slices are not friendly to compare but maps are (using cmp.Diff).
		var (
			want = make(map[safeguards.Seal]safeguards.InventoryHash)
			got  = make(map[safeguards.Seal]safeguards.InventoryHash)
		)
		for _, d := range declarations {
			want[d.FacilitySeal()] = d.InventoryHash()
		}
		for _, d := range changed.Removed {
			got[d.FacilitySeal()] = d.InventoryHash()
		}

		if diff := cmp.Diff(want, got); diff != "" {
			return fmt.Sprintf("Removed mismatch (-want +got):\n%v", diff)
		}
		return ""
	}
}

// A site is used by sequential test-cases to check a sequence of discrete
// site snapshots.
//
// A single site contains a list of declaration refs (facility seal and
// inventory hash) that are expected after a single test-case (set in
// testCase.site).
type site []safeguards.DeclarationRef

// Checks returns the checks to perform on every two consecutive sites.
//
// The returned checks already include an explanation of the expected
// behaviour, regardless of the individual test-case's explanation.
func (after site) Checks(before site) []check {
	// We check that this site directly follows the previous site.
	continuousDiff := func(changed safeguards.InventoryChanged) string {
		if h := safeguards.ComputeSiteHash(before...); changed.SiteBefore != h {
			return fmt.Sprintf(".SiteBefore = %v, want %v: discontinuity", changed.SiteBefore, h)
		}
		return ""
	}

	// We check the site identified by this snapshot was indeed the site on
	// which the given changes were computed.
	expectedSite := func(changed safeguards.InventoryChanged) string {
		if h := safeguards.ComputeSiteHash(after...); changed.SiteAfter != h {
			return fmt.Sprintf(".SiteAfter = %v, want %v: unexpected site", changed.SiteAfter, h)
		}
		return ""
	}

	// Also, we check that the ChangeObserver has set the timestamp to any
	// non-zero value. We do not care about the exact timestamps, just that
	// those are present.
	hasTimestamp := func(changed safeguards.InventoryChanged) string {
		if changed.Timestamp.IsZero() {
			return ".Timestamp is zero: a ChangeObserver should timestamp the changes"
		}
		return ""
	}

	return []check{continuousDiff, expectedSite, hasTimestamp}
}
