package safeguards

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
)

// Register the notification type using gob.Register(). This is required to
// identify the type of the notified event after decoding it using gob.
func init() {
	gob.Register(TransportExecuted{})
}

// ErrOriginMismatch is returned by IssueTransport when the declared origin
// of a transport does not match the targeted container's actual location.
var ErrOriginMismatch = errors.New("declared origin does not match the container's location")

// A Commander validates and executes commands against a safeguards model. It
// is the only way to move material: elements expose no public mutators for
// their whereabouts, so every change of containment passes through here and
// lands in the histories of all involved elements.
//
// A Commander is safe for concurrent use.
type Commander struct {
	monitor *Monitor

	// Notifications, when set, receives a TransportExecuted message after
	// each successful transport. Messages are gob-encoded.
	Notifications *pubsub.Topic
}

// NewCommander returns a commander issuing commands against the model
// registered with the given monitor.
func NewCommander(m *Monitor) *Commander {
	return &Commander{monitor: m}
}

// IssueTransport validates, creates and executes a transport command moving
// the target container from origin to destination.
//
// Validation happens before anything moves: the origin must match the
// container's actual location level by level (ErrOriginMismatch), the
// destination must be complete down to the holding area, and the destination
// holding area must be vacant (ErrAreaOccupied). On success the container
// has been relocated and the command has been recorded in the histories of
// the origin holding area, room and facility, the destination facility, room
// and holding area, and finally the container itself.
func (cm *Commander) IssueTransport(ctx context.Context, target *Container, origin, destination Location) (cmd *TransportCommand, err error) {
	ctx, span := tracer.Start(ctx, "commander.IssueTransport", trace.WithAttributes(
		attribute.Stringer("target.id", target.ElementID()),
	))
	defer span.End()

	defer func(start time.Time) {
		measureTransport(ctx, err == nil, time.Since(start))
	}(time.Now())

	if err := origin.forContainer(); err != nil {
		err := fmt.Errorf("origin: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := validateOrigin(origin, target.Location()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := destination.forContainer(); err != nil {
		err := fmt.Errorf("destination: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if destination.HoldingArea().Occupied() {
		err := fmt.Errorf("destination %v: %w", destination, ErrAreaOccupied)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	cmd = NewTransportCommand(cm.monitor, target, origin, destination)

	origin.HoldingArea().Clear()
	if err := destination.HoldingArea().Place(target); err != nil {
		// A concurrent transport occupied the destination between the vacancy
		// check and the move. Put the container back where it came from.
		_ = origin.HoldingArea().Place(target)
		err := fmt.Errorf("destination %v: %w", destination, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Record the command with every element the transport passes through, in
	// containment order on the origin side and in reverse containment order
	// on the destination side, the target last.
	origin.HoldingArea().activate(cmd)
	origin.Room().activate(cmd)
	origin.Facility().activate(cmd)
	destination.Facility().activate(cmd)
	destination.Room().activate(cmd)
	destination.HoldingArea().activate(cmd)
	target.activate(cmd)

	if cm.Notifications != nil {
		if err := cm.notify(ctx, cmd); err != nil {
			err := fmt.Errorf("notify transport: %w", err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	return cmd, nil
}

// validateOrigin checks the declared origin against the container's current
// location level by level, comparing element identity, not content.
func validateOrigin(origin, current Location) error {
	if origin.Facility() != current.Facility() {
		return fmt.Errorf("origin facility: %w", ErrOriginMismatch)
	}
	if origin.Room() != current.Room() {
		return fmt.Errorf("origin room: %w", ErrOriginMismatch)
	}
	if origin.HoldingArea() != current.HoldingArea() {
		return fmt.Errorf("origin holding area: %w", ErrOriginMismatch)
	}
	return nil
}

func (cm *Commander) notify(ctx context.Context, cmd *TransportCommand) error {
	executed := TransportExecuted{
		Command:     cmd.CommandID(),
		Container:   cmd.Container().Record(),
		Origin:      cmd.Origin().Record(),
		Destination: cmd.Destination().Record(),
		Timestamp:   time.Now().UTC(),
	}

	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(executed); err != nil {
		return fmt.Errorf("encode gob: %w", err)
	}

	// The container's seal is included as metadata on the message to enable
	// key-based partitioning in Kafka, so that consumers observe the moves of
	// any single container in order.
	msg := &pubsub.Message{
		Body:     b.Bytes(),
		Metadata: map[string]string{"containerSeal": executed.Container.Seal().String()},
	}
	if err := cm.Notifications.Send(ctx, msg); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// TransportExecuted notifies about a transport command that was validated
// and executed. The records describe the involved elements at the time of
// the move.
type TransportExecuted struct {
	// The ID of the executed command.
	Command ID
	// The transported container.
	Container ElementRecord
	// Where the container was taken from and where it was put.
	Origin      LocationRecord
	Destination LocationRecord
	// The time, in UTC, the transport was executed.
	Timestamp time.Time
}
