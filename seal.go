package safeguards

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

// A Seal is a consistent hash (i.e., content address) over an element's
// declared identity: its kind, registry ID, name, category and dimensions. It plays the
// role of a tamper-evident tag: the seal of a container stays the same as the
// container moves between holding areas, and changes exactly when the
// declared identity changes.
//
// A Seal is independent of the store engine (e.g. neo4j), meaning it is
// computed over the element's declared content, as opposed to being assigned
// locally inside the engine. Do not include store metadata (created
// timestamps, trace IDs) when computing a seal.
type Seal contentHash

func (h Seal) MarshalText() ([]byte, error)     { return contentHash(h).MarshalText() }
func (h *Seal) UnmarshalText(text []byte) error { return (*contentHash)(h).UnmarshalText(text) }
func (h Seal) String() string                   { return "seal(" + contentHash(h).String() + ")" }
func (h Seal) IsZero() bool                     { return contentHash(h).IsZero() }

// SealOf computes the Seal of the given element record.
//
// The computation covers the record's declared identity only: Kind, ID, Name,
// Category and Dimensions. Position is state, not identity, so two records of
// the same element at different positions carry the same seal.
//
// Since seals are stored permanently, this hashing must remain stable as the
// software evolves.
func SealOf(rec ElementRecord) Seal {
	h := sha1.New()
	h.Write([]byte(rec.Kind))
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(buf, int64(rec.ID))
	h.Write(buf[:n])
	h.Write([]byte(rec.Name))
	h.Write([]byte(rec.Category))
	// The error of binary.Write on a hash.Hash with fixed-size values is always
	// nil.
	_ = binary.Write(h, binary.BigEndian, rec.Dimensions)
	return Seal(h.Sum(nil))
}

// An InventoryHash is a consistent hash over one facility's complete
// containment tree (element seals and containment edges). Two declarations
// with the same InventoryHash describe identical inventories.
//
// Different InventoryHashes are computed when elements appear or disappear
// from the tree, or when containment between them changes. To be explicit: if
// two declarations contain the same elements but different containment, their
// InventoryHash is different.
type InventoryHash contentHash

func (h InventoryHash) MarshalText() ([]byte, error) { return contentHash(h).MarshalText() }
func (h *InventoryHash) UnmarshalText(text []byte) error {
	return (*contentHash)(h).UnmarshalText(text)
}
func (h InventoryHash) String() string { return "inventory(" + contentHash(h).String() + ")" }
func (h InventoryHash) IsZero() bool   { return contentHash(h).IsZero() }

// A SiteHash is a consistent hash over all facilities of a site. A site with
// the same facilities but different inventories results in a different hash.
//
// Although a single facility's inventory is also a tree, it is not hashed by
// a SiteHash, rather by an InventoryHash; likewise its root is identified by
// the facility's Seal.
type SiteHash contentHash

func (h SiteHash) MarshalText() ([]byte, error)     { return contentHash(h).MarshalText() }
func (h *SiteHash) UnmarshalText(text []byte) error { return (*contentHash)(h).UnmarshalText(text) }
func (h SiteHash) String() string                   { return "site(" + contentHash(h).String() + ")" }
func (h SiteHash) IsZero() bool                     { return contentHash(h).IsZero() }

// HashInventories digests the given facility inventories into a SiteHash.
//
// The lexicographic sort keeps the hash reproducible based on the content of
// the inventories, without relying on map iteration order.
func HashInventories(inventories map[Seal]InventoryHash) SiteHash {
	roots := make([]Seal, 0, len(inventories))
	for root := range inventories {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		return bytes.Compare(roots[i][:], roots[j][:]) < 0
	})

	h := sha1.New()
	for _, root := range roots {
		h.Write(root[:])
		x := inventories[root]
		h.Write(x[:])
	}
	return SiteHash(h.Sum(nil))
}

// ComputeSiteHash digests the given declarations into a SiteHash.
//
// The functions DeclarationRef.FacilitySeal() and
// DeclarationRef.InventoryHash() are cached internally, hence they must
// return consistent values during the lifetime of this computation.
func ComputeSiteHash(declarations ...DeclarationRef) SiteHash {
	precomputed := make(map[Seal]InventoryHash, len(declarations))
	for i := range declarations {
		precomputed[declarations[i].FacilitySeal()] = declarations[i].InventoryHash()
	}
	return HashInventories(precomputed)
}

// contentHash is a consistent hash primitive serving as the base for the
// strongly typed hashes Seal, InventoryHash and SiteHash.
type contentHash [sha1.Size]byte

func (h contentHash) MarshalText() ([]byte, error) {
	text := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(text, h[:]) // always returns hex.EncodedLen(len(h)) (see hex.Encode)
	return text, nil
}

func (h *contentHash) UnmarshalText(text []byte) error {
	n, err := hex.Decode(h[:], text)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if n != len(h) { // always n <= len(h[:]) (see hex.Decode)
		return fmt.Errorf("not enough bytes: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

func (h contentHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero value of the type.
func (h contentHash) IsZero() bool {
	return h == contentHash{}
}
