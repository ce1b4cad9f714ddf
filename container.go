package safeguards

import "sync"

// A Container holds nuclear material. It is the only element kind that ever
// moves: transport commands issued to a Commander relocate it between
// holding areas, and every move is recorded in its history.
//
// Containers are registered with the Monitor they are constructed with and
// are safe for concurrent use.
type Container struct {
	element
	category   string
	dimensions Dimensions

	mu       sync.Mutex
	location Location
}

// NewContainer constructs a container and registers it with the monitor. The
// category names the cask type, e.g. "Castor". The container is unplaced
// until a holding area adopts it with Place.
func NewContainer(m *Monitor, category, name string, dimensions Dimensions) *Container {
	c := &Container{category: category, dimensions: dimensions}
	c.element = element{kind: KindContainer, name: name}
	c.element.id = m.register(c)
	return c
}

// Category returns the declared cask type of the container.
func (c *Container) Category() string { return c.category }

// Dimensions returns the declared extent of the container.
func (c *Container) Dimensions() Dimensions { return c.dimensions }

// Location returns the container's complete location, or the zero Location
// while the container is unplaced.
func (c *Container) Location() Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// setLocation places the container. The location must be complete (facility,
// room and holding area), and the container must not be placed already.
func (c *Container) setLocation(loc Location) error {
	if err := loc.forContainer(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.location.IsZero() {
		return ErrAlreadyPlaced
	}
	c.location = loc
	return nil
}

func (c *Container) clearLocation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = Location{}
}

// Record returns the serialisable description of the container. Containers
// have no fixed position of their own; their whereabouts are given by their
// location.
func (c *Container) Record() ElementRecord {
	return ElementRecord{
		Kind:       KindContainer,
		ID:         c.id,
		Name:       c.name,
		Category:   c.category,
		Dimensions: c.dimensions,
	}
}
