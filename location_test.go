package safeguards

import (
	"errors"
	"sync"
	"testing"
)

// buildChain registers one element of every kind and wires them into a
// complete containment chain.
func buildChain(t *testing.T, m *Monitor) (*Facility, *Room, *HoldingArea, *Container) {
	t.Helper()
	f := NewFacility(m, "Interim storage", "Facility 1", Dimensions{}, Position{})
	r := NewRoom(m, "Storage", "Room 1", Dimensions{}, Position{})
	a := NewHoldingArea(m, "HoldingArea 1", Position{})
	c := NewContainer(m, "Castor", "Container 1", Dimensions{})
	if err := f.AddRoom(r); err != nil {
		t.Fatal("AddRoom()", err)
	}
	if err := r.AddHoldingArea(a); err != nil {
		t.Fatal("AddHoldingArea()", err)
	}
	if err := a.Place(c); err != nil {
		t.Fatal("Place()", err)
	}
	return f, r, a, c
}

func TestPlacementAssignsLocations(t *testing.T) {
	f, r, a, c := buildChain(t, NewMonitor())

	if got := r.Location(); got.Facility() != f || got.Room() != nil || got.HoldingArea() != nil {
		t.Errorf("room location = %v, want facility only", got)
	}
	if got := a.Location(); got.Facility() != f || got.Room() != r || got.HoldingArea() != nil {
		t.Errorf("holding area location = %v, want facility and room", got)
	}
	if got := c.Location(); got.Facility() != f || got.Room() != r || got.HoldingArea() != a {
		t.Errorf("container location = %v, want complete chain", got)
	}
}

func TestPlacementLevelValidation(t *testing.T) {
	m := NewMonitor()
	f, r, a, c := buildChain(t, m)

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{
			name: "RoomAlreadyPlaced",
			op: func() error {
				other := NewFacility(m, "Interim storage", "Facility 2", Dimensions{}, Position{})
				return other.AddRoom(r)
			},
			want: ErrAlreadyPlaced,
		},
		{
			name: "AreaAlreadyPlaced",
			op: func() error {
				other := NewRoom(m, "Storage", "Room 2", Dimensions{}, Position{})
				if err := f.AddRoom(other); err != nil {
					return err
				}
				return other.AddHoldingArea(a)
			},
			want: ErrAlreadyPlaced,
		},
		{
			name: "ContainerAlreadyPlaced",
			op: func() error {
				vacant := NewHoldingArea(m, "HoldingArea 2", Position{})
				if err := r.AddHoldingArea(vacant); err != nil {
					return err
				}
				return vacant.Place(c)
			},
			want: ErrAlreadyPlaced,
		},
		{
			name: "AreaOccupied",
			op: func() error {
				intruder := NewContainer(m, "Castor", "Container 2", Dimensions{})
				return a.Place(intruder)
			},
			want: ErrAreaOccupied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConcurrentPlacement(t *testing.T) {
	const workers = 8
	for range 50 {
		m := NewMonitor()
		f := NewFacility(m, "Interim storage", "Facility 1", Dimensions{}, Position{})
		r := NewRoom(m, "Storage", "Room 1", Dimensions{}, Position{})
		a := NewHoldingArea(m, "HoldingArea 1", Position{})
		if err := f.AddRoom(r); err != nil {
			t.Fatal("AddRoom()", err)
		}
		if err := r.AddHoldingArea(a); err != nil {
			t.Fatal("AddHoldingArea()", err)
		}

		containers := make([]*Container, workers)
		errs := make([]error, workers)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := range workers {
			containers[i] = NewContainer(m, "Castor", "Container", Dimensions{})
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				errs[i] = a.Place(containers[i])
			}()
		}
		close(start)
		wg.Wait()

		winners := 0
		for i, err := range errs {
			if err == nil {
				winners++
				if got := containers[i].Location().HoldingArea(); got != a {
					t.Errorf("winner location = %v, want area %v", containers[i].Location(), a.ElementID())
				}
				if a.Container() != containers[i] {
					t.Errorf("area holds %v, want winner %v", a.Container(), containers[i].ElementID())
				}
				continue
			}
			if !errors.Is(err, ErrAreaOccupied) {
				t.Errorf("loser error = %v, want %v", err, ErrAreaOccupied)
			}
			if !containers[i].Location().IsZero() {
				t.Errorf("loser location = %v, want zero", containers[i].Location())
			}
		}
		if winners != 1 {
			t.Fatalf("%d placements succeeded, want exactly 1", winners)
		}
	}
}

func TestUnplacedParents(t *testing.T) {
	m := NewMonitor()

	// A room must be placed in a facility before it can adopt holding areas.
	orphan := NewRoom(m, "Storage", "Room 1", Dimensions{}, Position{})
	if err := orphan.AddHoldingArea(NewHoldingArea(m, "HoldingArea 1", Position{})); err == nil {
		t.Error("AddHoldingArea(unplaced room) = nil, want error")
	}

	// A holding area must be placed in a room before it can hold containers.
	loose := NewHoldingArea(m, "HoldingArea 2", Position{})
	if err := loose.Place(NewContainer(m, "Castor", "Container 1", Dimensions{})); err == nil {
		t.Error("Place(into unplaced area) = nil, want error")
	}
}

func TestRemovalClearsLocations(t *testing.T) {
	m := NewMonitor()
	f, r, a, c := buildChain(t, m)

	if got := a.Clear(); got != c {
		t.Fatalf("Clear() = %v, want %v", got, c)
	}
	if !c.Location().IsZero() {
		t.Errorf("cleared container location = %v, want zero", c.Location())
	}
	if a.Clear() != nil {
		t.Error("Clear(vacant area) returned a container")
	}

	if err := r.RemoveHoldingArea(a.ElementID()); err != nil {
		t.Fatal("RemoveHoldingArea()", err)
	}
	if !a.Location().IsZero() {
		t.Errorf("removed area location = %v, want zero", a.Location())
	}
	if err := r.RemoveHoldingArea(a.ElementID()); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("RemoveHoldingArea(again) = %v, want %v", err, ErrElementNotFound)
	}

	if err := f.RemoveRoom(r.ElementID()); err != nil {
		t.Fatal("RemoveRoom()", err)
	}
	if !r.Location().IsZero() {
		t.Errorf("removed room location = %v, want zero", r.Location())
	}
	if err := f.RemoveRoom(r.ElementID()); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("RemoveRoom(again) = %v, want %v", err, ErrElementNotFound)
	}
}

func TestLocationString(t *testing.T) {
	if got, want := (Location{}).String(), "(unplaced)"; got != want {
		t.Errorf("zero location String() = %q, want %q", got, want)
	}

	m := NewMonitor()
	f, r, _, c := buildChain(t, m)
	if got, want := c.Location().String(), "Facility 1#0/Room 1#1/HoldingArea 1#2"; got != want {
		t.Errorf("container location String() = %q, want %q", got, want)
	}
	if got, want := RoomLocation(f, r).String(), "Facility 1#0/Room 1#1"; got != want {
		t.Errorf("room-level location String() = %q, want %q", got, want)
	}
}

func TestLocationRecord(t *testing.T) {
	m := NewMonitor()
	f, r, a, c := buildChain(t, m)

	rec := c.Location().Record()
	if rec.Facility != f.Record().Seal() {
		t.Errorf("Record().Facility = %v, want seal of %v", rec.Facility, f.Record())
	}
	if rec.Room != r.Record().Seal() {
		t.Errorf("Record().Room = %v, want seal of %v", rec.Room, r.Record())
	}
	if rec.HoldingArea != a.Record().Seal() {
		t.Errorf("Record().HoldingArea = %v, want seal of %v", rec.HoldingArea, a.Record())
	}

	partial := FacilityLocation(f).Record()
	if partial.Facility.IsZero() || !partial.Room.IsZero() || !partial.HoldingArea.IsZero() {
		t.Errorf("facility-level Record() = %+v, want only the facility seal", partial)
	}
}
