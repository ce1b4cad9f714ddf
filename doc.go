// Package safeguards provides a library for building digital twins of nuclear
// waste facilities in support of safeguards activities; A safeguards digital
// twin is a virtual representation of the facilities under supervision -
// maintained by registering every physical element with a monitoring registry
// and recording every command applied to it - in order to produce a
// consistent, verifiable view about the whereabouts of nuclear material.
//
// Specifically, the model is a containment tree: facilities contain rooms,
// rooms contain holding areas, and each holding area holds at most one
// container of nuclear material. Containers move between holding areas only
// through transport commands issued to a Commander, which validates the
// declared origin against the container's actual location before executing
// the move.
//
// Each element is identified by a registry-assigned ID and carries a Seal (a
// content address over its declared identity) that stays stable as the
// element moves. A facility's complete containment tree is captured as a
// Declaration and versioned by its InventoryHash; the whole site is versioned
// by a SiteHash. Comparing declarations between inspections reveals exactly
// which inventories changed since the last one.
package safeguards
