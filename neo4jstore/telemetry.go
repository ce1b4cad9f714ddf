package neo4jstore

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/dt4safeguards/safeguards/neo4jstore")
var meter = otel.Meter("github.com/dt4safeguards/safeguards/neo4jstore")

var (
	// strayElementCounter counts how many times we encounter an element that
	// roots a containment tree without being a facility while taking a
	// snapshot of the site. This counter will help us monitor the appearances
	// of this scenario.
	strayElementCounter metric.Int64Counter
)

func init() {
	// We're initiating the metric instruments on the otel meter. Encountering
	// an error during an instrument's initialisation triggers a panic. This
	// scenario should not occur; if it does, it is likely related to the
	// attributes applied on the instrument.
	var err error
	strayElementCounter, err = meter.Int64Counter(
		"snapshot_stray_element_counter",
		metric.WithDescription("how many times a site snapshot has returned an inventory not rooted at a facility"),
	)
	if err != nil {
		s := fmt.Sprintf("snapshot: failed to init 'snapshot_stray_element_counter' instrument: %v", err)
		panic(s)
	}
}
