package safeguards

import "fmt"

// CommandKind discriminates the command types applied to elements.
type CommandKind string

// KindTransport moves a container between two holding areas.
const KindTransport CommandKind = "transport"

// Command is the interface implemented by every command directed at a model
// element. Commands are issued through a Commander, never applied directly.
type Command interface {
	// CommandID returns the ID assigned by the Monitor the command was
	// registered with. Commands and elements draw from the same ID sequence.
	CommandID() ID
	// CommandKind returns the kind of the command.
	CommandKind() CommandKind
	// Target returns the element the command is ultimately directed at.
	Target() Element
}

// A TransportCommand moves a container from one holding area to another. The
// declared origin is validated against the container's actual location
// before the command executes; a mismatch means the model and the physical
// world disagree, which is exactly what safeguards must surface.
type TransportCommand struct {
	id          ID
	target      *Container
	origin      Location
	destination Location
}

// NewTransportCommand constructs a transport command and registers it with
// the monitor, consuming an ID from the same sequence as elements.
func NewTransportCommand(m *Monitor, target *Container, origin, destination Location) *TransportCommand {
	return &TransportCommand{
		id:          m.register(nil),
		target:      target,
		origin:      origin,
		destination: destination,
	}
}

func (c *TransportCommand) CommandID() ID            { return c.id }
func (c *TransportCommand) CommandKind() CommandKind { return KindTransport }
func (c *TransportCommand) Target() Element          { return c.target }

// Container returns the transported container, typed.
func (c *TransportCommand) Container() *Container { return c.target }

// Origin returns the declared origin of the transport.
func (c *TransportCommand) Origin() Location { return c.origin }

// Destination returns the declared destination of the transport.
func (c *TransportCommand) Destination() Location { return c.destination }

// FormatCommand returns a human-readable rendition of the command.
func FormatCommand(cmd Command) string {
	switch c := cmd.(type) {
	case *TransportCommand:
		return fmt.Sprintf("transport command %v: container %v\n  origin: %v\n  destination: %v\n",
			c.id, c.target.ElementID(), c.origin, c.destination)
	default:
		return fmt.Sprintf("%s command %v -> %v\n", cmd.CommandKind(), cmd.CommandID(), cmd.Target().ElementID())
	}
}
