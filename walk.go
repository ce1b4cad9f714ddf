package safeguards

// A Visitor defines a Visit method invoked for each element record
// encountered by Walk. If the result visitor w is not nil, Walk visits each
// contained element with the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(rec *ElementRecord) (w Visitor)
}

// Walk traverses a Declaration in depth-first order, starting at the
// declared facility; the declaration must not be nil.
func Walk(v Visitor, d Declaration) {
	WalkSubtree(v, d, d.FacilitySeal())
}

// WalkSubtree traverses a subtree within a Declaration in depth-first order:
// It starts by calling v.Visit(rec) with the record sealed with node. If the
// visitor w returned by v.Visit(rec) is not nil, walk is invoked recursively
// with visitor w for each element contained in the node, followed by a call
// of w.Visit(nil).
func WalkSubtree(v Visitor, d Declaration, node Seal) {
	// Start by calling v.Visit(rec).
	rec := d.Record(node)
	if v = v.Visit(&rec); v == nil {
		return
	}
	// Then traverse the containment tree of the given node, depth-first.
	for _, child := range d.Contained(node) {
		WalkSubtree(v, d, child)
	}
	// Finally, call v.Visit(nil).
	v.Visit(nil)
}

type inspector func(rec *ElementRecord) bool

func (f inspector) Visit(rec *ElementRecord) Visitor {
	if f(rec) {
		return f
	}
	return nil
}

// Inspect traverses a Declaration in depth-first order: It starts by calling
// f(facility) with the record of the declared facility; the declaration must
// not be nil. If f returns true, Inspect invokes f recursively for each
// element contained in the visited one, followed by a call of f(nil).
func Inspect(d Declaration, f func(rec *ElementRecord) bool) {
	Walk(inspector(f), d)
}
