package safeguards

import (
	"testing"
)

func TestSealOf(t *testing.T) {
	base := ElementRecord{
		Kind:       KindContainer,
		ID:         7,
		Name:       "Container 1",
		Category:   "Castor",
		Dimensions: Dimensions{DX: 1, DY: 2, DZ: 3},
		Position:   Position{X: 4, Y: 5, Z: 6},
	}

	if got, want := SealOf(base), SealOf(base); got != want {
		t.Errorf("SealOf is not deterministic: %v != %v", got, want)
	}

	// Every field of the declared identity must influence the seal.
	identity := []struct {
		name   string
		mutate func(r ElementRecord) ElementRecord
	}{
		{"Kind", func(r ElementRecord) ElementRecord { r.Kind = KindHoldingArea; return r }},
		{"ID", func(r ElementRecord) ElementRecord { r.ID++; return r }},
		{"Name", func(r ElementRecord) ElementRecord { r.Name = "Container 2"; return r }},
		{"Category", func(r ElementRecord) ElementRecord { r.Category = "Pollux"; return r }},
		{"Dimensions", func(r ElementRecord) ElementRecord { r.Dimensions.DZ++; return r }},
	}
	for _, tt := range identity {
		t.Run(tt.name, func(t *testing.T) {
			if SealOf(tt.mutate(base)) == SealOf(base) {
				t.Errorf("changing %s did not change the seal", tt.name)
			}
		})
	}

	// Position is state, not identity: a container keeps its seal as it moves.
	t.Run("Position", func(t *testing.T) {
		moved := base
		moved.Position = Position{X: 40, Y: 50, Z: 60}
		if SealOf(moved) != SealOf(base) {
			t.Errorf("changing Position changed the seal")
		}
	})
}

func TestSealText(t *testing.T) {
	seal := SealOf(ElementRecord{Kind: KindFacility, Name: "Facility 1"})

	text, err := seal.MarshalText()
	if err != nil {
		t.Fatal("MarshalText()", err)
	}
	var reconstructed Seal
	if err := reconstructed.UnmarshalText(text); err != nil {
		t.Fatal("UnmarshalText()", err)
	}
	if reconstructed != seal {
		t.Errorf("round trip = %v, want %v", reconstructed, seal)
	}

	var s Seal
	if err := s.UnmarshalText([]byte("not hex at all")); err == nil {
		t.Error("UnmarshalText(garbage) = nil, want error")
	}
	if err := s.UnmarshalText([]byte("abcd")); err == nil {
		t.Error("UnmarshalText(short input) = nil, want error")
	}
}

func TestIsZero(t *testing.T) {
	if !(Seal{}).IsZero() {
		t.Error("zero Seal: IsZero() = false")
	}
	if !(InventoryHash{}).IsZero() {
		t.Error("zero InventoryHash: IsZero() = false")
	}
	if !(SiteHash{}).IsZero() {
		t.Error("zero SiteHash: IsZero() = false")
	}
	if SealOf(ElementRecord{}).IsZero() {
		t.Error("SealOf(zero record): IsZero() = true")
	}
}

func TestHashInventories(t *testing.T) {
	a := Seal(mustDecodeHash(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	b := Seal(mustDecodeHash(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	xa := InventoryHash(mustDecodeHash(t, "0000000000000000000000000000000000000001"))
	xb := InventoryHash(mustDecodeHash(t, "0000000000000000000000000000000000000002"))

	site := HashInventories(map[Seal]InventoryHash{a: xa, b: xb})
	if site.IsZero() {
		t.Fatal("HashInventories returned the zero hash")
	}
	if again := HashInventories(map[Seal]InventoryHash{b: xb, a: xa}); again != site {
		t.Errorf("HashInventories depends on insertion order: %v != %v", again, site)
	}
	if swapped := HashInventories(map[Seal]InventoryHash{a: xb, b: xa}); swapped == site {
		t.Error("swapping inventories between facilities did not change the site hash")
	}
	if fewer := HashInventories(map[Seal]InventoryHash{a: xa}); fewer == site {
		t.Error("removing a facility did not change the site hash")
	}
}

func TestComputeSiteHash(t *testing.T) {
	first := declareChain(t, "Facility 1", "Room 1")
	second := declareChain(t, "Facility 2", "Room 2")

	want := HashInventories(map[Seal]InventoryHash{
		first.FacilitySeal():  first.InventoryHash(),
		second.FacilitySeal(): second.InventoryHash(),
	})
	if got := ComputeSiteHash(first, second); got != want {
		t.Errorf("ComputeSiteHash() = %v, want %v", got, want)
	}
}

// declareChain builds a minimal declaration of a facility containing a single
// room, using synthetic records.
func declareChain(t *testing.T, facility, room string) Declaration {
	t.Helper()
	var b DeclarationBuilder
	root := ElementRecord{Kind: KindFacility, ID: 0, Name: facility}
	b.Facility(root)
	b.Contain(root, ElementRecord{Kind: KindRoom, ID: 1, Name: room})
	return b.Declare()
}

func mustDecodeHash(t *testing.T, text string) contentHash {
	t.Helper()
	var h contentHash
	if err := h.UnmarshalText([]byte(text)); err != nil {
		t.Fatal("UnmarshalText()", err)
	}
	return h
}
