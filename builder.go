package safeguards

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model spec validation errors.
var (
	ErrNoFacilities = errors.New("model must contain at least one facility")
	ErrNoRooms      = errors.New("facility must contain at least one room")
)

// A ModelSpec describes a complete safeguards model declaratively. Specs are
// typically loaded from YAML or JSON files; see LoadModelSpec.
type ModelSpec struct {
	Facilities []FacilitySpec `yaml:"facilities" json:"facilities"`
}

// A FacilitySpec describes one facility and its containment tree.
type FacilitySpec struct {
	Category   string     `yaml:"category" json:"category"`
	Name       string     `yaml:"name" json:"name"`
	Dimensions Dimensions `yaml:"dimensions" json:"dimensions"`
	Position   Position   `yaml:"position" json:"position"`
	Rooms      []RoomSpec `yaml:"rooms" json:"rooms"`
}

// A RoomSpec describes one room. Rooms may contain any number of holding
// areas, including none.
type RoomSpec struct {
	Category     string            `yaml:"category" json:"category"`
	Name         string            `yaml:"name" json:"name"`
	Dimensions   Dimensions        `yaml:"dimensions" json:"dimensions"`
	Position     Position          `yaml:"position" json:"position"`
	HoldingAreas []HoldingAreaSpec `yaml:"holdingAreas" json:"holdingAreas"`
}

// A HoldingAreaSpec describes one holding area and, optionally, the
// container it initially holds.
type HoldingAreaSpec struct {
	Name      string         `yaml:"name" json:"name"`
	Position  Position       `yaml:"position" json:"position"`
	Container *ContainerSpec `yaml:"container,omitempty" json:"container,omitempty"`
}

// A ContainerSpec describes one container of nuclear material.
type ContainerSpec struct {
	Category   string     `yaml:"category" json:"category"`
	Name       string     `yaml:"name" json:"name"`
	Dimensions Dimensions `yaml:"dimensions" json:"dimensions"`
}

// ParseModelSpec decodes a model spec from YAML. JSON works too, being a
// subset of YAML.
func ParseModelSpec(data []byte) (ModelSpec, error) {
	var spec ModelSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ModelSpec{}, fmt.Errorf("decode model spec: %w", err)
	}
	return spec, nil
}

// LoadModelSpec reads and decodes a model spec file.
func LoadModelSpec(path string) (ModelSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelSpec{}, fmt.Errorf("read model spec: %w", err)
	}
	return ParseModelSpec(data)
}

// A Model is a constructed safeguards model: the facilities built from a
// spec, together with the monitor every element was registered with.
type Model struct {
	monitor    *Monitor
	facilities []*Facility
}

// Monitor returns the monitoring registry of the model.
func (m *Model) Monitor() *Monitor { return m.monitor }

// Facilities returns the model's facilities in construction order.
func (m *Model) Facilities() []*Facility { return m.facilities }

// A ModelBuilder constructs safeguards models from declarative specs,
// registering every element with its monitor.
type ModelBuilder struct {
	monitor *Monitor
}

// NewModelBuilder returns a builder registering elements with the given
// monitor.
func NewModelBuilder(m *Monitor) *ModelBuilder {
	return &ModelBuilder{monitor: m}
}

// Build constructs the model the spec describes. The spec must contain at
// least one facility (ErrNoFacilities) and every facility must contain at
// least one room (ErrNoRooms); rooms and holding areas may be empty.
func (b *ModelBuilder) Build(spec ModelSpec) (*Model, error) {
	if len(spec.Facilities) == 0 {
		return nil, ErrNoFacilities
	}

	model := &Model{monitor: b.monitor}
	for _, fs := range spec.Facilities {
		f, err := b.buildFacility(fs)
		if err != nil {
			return nil, fmt.Errorf("facility %q: %w", fs.Name, err)
		}
		model.facilities = append(model.facilities, f)
	}
	return model, nil
}

// BuildFromFile loads a model spec file and constructs the model it
// describes.
func (b *ModelBuilder) BuildFromFile(path string) (*Model, error) {
	spec, err := LoadModelSpec(path)
	if err != nil {
		return nil, err
	}
	return b.Build(spec)
}

func (b *ModelBuilder) buildFacility(fs FacilitySpec) (*Facility, error) {
	if len(fs.Rooms) == 0 {
		return nil, ErrNoRooms
	}

	f := NewFacility(b.monitor, fs.Category, fs.Name, fs.Dimensions, fs.Position)
	for _, rs := range fs.Rooms {
		r := NewRoom(b.monitor, rs.Category, rs.Name, rs.Dimensions, rs.Position)
		if err := f.AddRoom(r); err != nil {
			return nil, err
		}
		for _, as := range rs.HoldingAreas {
			a := NewHoldingArea(b.monitor, as.Name, as.Position)
			if err := r.AddHoldingArea(a); err != nil {
				return nil, err
			}
			if as.Container == nil {
				continue
			}
			c := NewContainer(b.monitor, as.Container.Category, as.Container.Name, as.Container.Dimensions)
			if err := a.Place(c); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// DummyModelSpec returns a small fixed spec useful for demos and tests: two
// facilities, four rooms, four holding areas and a single container.
func DummyModelSpec() ModelSpec {
	unit := Dimensions{DX: 1, DY: 1, DZ: 1}
	return ModelSpec{
		Facilities: []FacilitySpec{
			{
				Category:   "Interim storage",
				Name:       "Facility 1",
				Dimensions: unit,
				Rooms: []RoomSpec{
					{
						Category:   "Storage",
						Name:       "Room 1",
						Dimensions: unit,
						HoldingAreas: []HoldingAreaSpec{
							{
								Name: "HoldingArea 1",
								Container: &ContainerSpec{
									Category:   "Castor",
									Name:       "Container 1",
									Dimensions: unit,
								},
							},
							{Name: "HoldingArea 2"},
						},
					},
					{
						Category:   "Storage",
						Name:       "Room 1",
						Dimensions: unit,
						HoldingAreas: []HoldingAreaSpec{
							{Name: "HoldingArea 1"},
						},
					},
				},
			},
			{
				Category:   "Geological repository",
				Name:       "Facility 2",
				Dimensions: unit,
				Rooms: []RoomSpec{
					{
						Category:   "Shaft",
						Name:       "Room 1",
						Dimensions: unit,
					},
					{
						Category:   "Drift",
						Name:       "Room 2",
						Dimensions: unit,
						HoldingAreas: []HoldingAreaSpec{
							{Name: "HoldingArea 1"},
						},
					},
				},
			},
		},
	}
}
