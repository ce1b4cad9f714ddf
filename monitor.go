package safeguards

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrElementNotFound is returned by Monitor.Lookup when no instance with the
// requested ID has been registered.
var ErrElementNotFound = errors.New("element not found")

// A Monitor is the monitoring registry at the heart of a safeguards model: it
// lists every registrable instance - physical elements and commands alike -
// indexed by a unique, ordinal ID.
//
// Registration happens implicitly when instances are constructed with one of
// the New* constructors in this package, so the registry is a complete record
// of everything the model has ever known about.
//
// A Monitor is safe for concurrent use. The zero value is not usable; call
// NewMonitor.
type Monitor struct {
	mu       sync.Mutex
	elements map[ID]Element
	nextID   ID
}

// NewMonitor returns an empty monitoring registry.
func NewMonitor() *Monitor {
	return &Monitor{elements: make(map[ID]Element)}
}

// register assigns the next ordinal ID. Elements are recorded in the
// registry; commands only consume an ID (they are referenced from element
// histories instead).
func (m *Monitor) register(e Element) ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	if e != nil {
		m.elements[id] = e
	}
	return id
}

// Lookup retrieves a registered element by its ID. It returns an error
// wrapping ErrElementNotFound when the ID is unknown (commands consume IDs
// but are not retrievable).
func (m *Monitor) Lookup(id ID) (Element, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.elements[id]
	if !ok {
		return nil, fmt.Errorf("id %v: %w", id, ErrElementNotFound)
	}
	return e, nil
}

// VisitRegistry applies fn to every registered element in ID order.
// Iteration stops early when fn returns false.
func (m *Monitor) VisitRegistry(fn func(id ID, e Element) bool) {
	for _, id := range m.ids() {
		m.mu.Lock()
		e, ok := m.elements[id]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if !fn(id, e) {
			return
		}
	}
}

func (m *Monitor) ids() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]ID, 0, len(m.elements))
	for id := range m.elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FormatRegistry returns a human-readable listing of the registry, one
// element per line in ID order.
func (m *Monitor) FormatRegistry() string {
	var b strings.Builder
	m.VisitRegistry(func(id ID, e Element) bool {
		fmt.Fprintf(&b, "%v: %v\n", id, e.Record())
		return true
	})
	if b.Len() == 0 {
		return "registry is empty\n"
	}
	return b.String()
}
