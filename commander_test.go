package safeguards

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gocloud.dev/pubsub/mempubsub"
)

// dummyModel builds the model described by DummyModelSpec and returns the
// handles a transport needs: the first facility, its first room, the occupied
// and the vacant holding areas of that room, and the single container.
func dummyModel(t *testing.T) (*Model, *Facility, *Room, *HoldingArea, *HoldingArea, *Container) {
	t.Helper()
	model, err := NewModelBuilder(NewMonitor()).Build(DummyModelSpec())
	if err != nil {
		t.Fatal("Build()", err)
	}
	f := model.Facilities()[0]
	r := f.Rooms()[0]
	areas := r.HoldingAreas()
	origin, vacant := areas[0], areas[1]
	c := origin.Container()
	if c == nil {
		t.Fatal("dummy model: first holding area is vacant")
	}
	return model, f, r, origin, vacant, c
}

func TestIssueTransport(t *testing.T) {
	model, f, r, origin, vacant, c := dummyModel(t)
	cm := NewCommander(model.Monitor())

	cmd, err := cm.IssueTransport(context.Background(), c, c.Location(), AreaLocation(f, r, vacant))
	if err != nil {
		t.Fatal("IssueTransport()", err)
	}

	if origin.Occupied() {
		t.Error("origin holding area still occupied after transport")
	}
	if vacant.Container() != c {
		t.Errorf("destination holds %v, want %v", vacant.Container(), c)
	}
	if got := c.Location().HoldingArea(); got != vacant {
		t.Errorf("container location = %v, want %v", c.Location(), vacant)
	}

	// The command lands in the history of every element the transport passes
	// through, in cascade order: origin chain bottom-up, destination chain
	// top-down, the container last.
	for _, e := range []Element{origin, r, f, c} {
		records := e.History()
		if len(records) != 1 {
			t.Fatalf("%v history has %d records, want 1", e.Record(), len(records))
		}
		got := records[0]
		if got.Command != cmd.CommandID() || got.Kind != KindTransport || got.Target != c.ElementID() {
			t.Errorf("%v history = %+v, want command %v %s -> %v",
				e.Record(), got, cmd.CommandID(), KindTransport, c.ElementID())
		}
	}
	if records := vacant.History(); len(records) != 1 {
		t.Errorf("destination holding area history has %d records, want 1", len(records))
	}
}

func TestIssueTransportBetweenFacilities(t *testing.T) {
	model, _, _, _, _, c := dummyModel(t)
	cm := NewCommander(model.Monitor())

	// The drift of the second facility has the only holding area outside the
	// first facility.
	other := model.Facilities()[1]
	drift := other.Rooms()[1]
	dest := drift.HoldingAreas()[0]

	if _, err := cm.IssueTransport(context.Background(), c, c.Location(), AreaLocation(other, drift, dest)); err != nil {
		t.Fatal("IssueTransport()", err)
	}
	if dest.Container() != c {
		t.Errorf("destination holds %v, want %v", dest.Container(), c)
	}
	if len(other.History()) != 1 || len(drift.History()) != 1 {
		t.Error("destination facility chain did not record the transport")
	}
}

func TestIssueTransportValidation(t *testing.T) {
	model, f, r, origin, vacant, c := dummyModel(t)
	cm := NewCommander(model.Monitor())

	tests := []struct {
		name                string
		origin, destination Location
		want                error
	}{
		{
			name:        "OriginMismatch",
			origin:      AreaLocation(f, r, vacant),
			destination: AreaLocation(f, r, vacant),
			want:        ErrOriginMismatch,
		},
		{
			name:        "IncompleteOrigin",
			origin:      RoomLocation(f, r),
			destination: AreaLocation(f, r, vacant),
			want:        ErrMissingHoldingArea,
		},
		{
			name:        "IncompleteDestination",
			origin:      c.Location(),
			destination: FacilityLocation(f),
			want:        ErrMissingRoom,
		},
		{
			name:        "OccupiedDestination",
			origin:      c.Location(),
			destination: c.Location(),
			want:        ErrAreaOccupied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cm.IssueTransport(context.Background(), c, tt.origin, tt.destination); !errors.Is(err, tt.want) {
				t.Errorf("IssueTransport() = %v, want %v", err, tt.want)
			}
		})
	}

	// Failed validation must leave the model untouched.
	if origin.Container() != c {
		t.Errorf("origin holds %v after failed transports, want %v", origin.Container(), c)
	}
	if len(c.History()) != 0 {
		t.Errorf("container history has %d records after failed transports, want 0", len(c.History()))
	}
}

func TestTransportNotification(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	model, f, r, _, vacant, c := dummyModel(t)

	topic := mempubsub.NewTopic()
	defer topic.Shutdown(ctx)
	sub := mempubsub.NewSubscription(topic, time.Second)
	defer sub.Shutdown(ctx)

	cm := NewCommander(model.Monitor())
	cm.Notifications = topic

	origin := c.Location()
	cmd, err := cm.IssueTransport(ctx, c, origin, AreaLocation(f, r, vacant))
	if err != nil {
		t.Fatal("IssueTransport()", err)
	}

	msg, err := sub.Receive(ctx)
	if err != nil {
		t.Fatal("Receive()", err)
	}
	defer msg.Ack()

	if got, want := msg.Metadata["containerSeal"], c.Record().Seal().String(); got != want {
		t.Errorf("message metadata containerSeal = %q, want %q", got, want)
	}

	var executed TransportExecuted
	if err := gob.NewDecoder(bytes.NewReader(msg.Body)).Decode(&executed); err != nil {
		t.Fatal("Decode(gob)", err)
	}
	want := TransportExecuted{
		Command:     cmd.CommandID(),
		Container:   c.Record(),
		Origin:      origin.Record(),
		Destination: AreaLocation(f, r, vacant).Record(),
		Timestamp:   executed.Timestamp,
	}
	if diff := cmp.Diff(want, executed); diff != "" {
		t.Errorf("TransportExecuted mismatch (-want +got):\n%s", diff)
	}
	if executed.Timestamp.IsZero() {
		t.Error("TransportExecuted carries the zero timestamp")
	}
}
