package safeguards

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/dt4safeguards/safeguards")
var meter = otel.Meter("github.com/dt4safeguards/safeguards")

// ---- commander.go ----

const (
	// commandKindAttr is the attribute key used to associate each record with
	// the kind of the executed command. Today only transports exist, but the
	// label keeps the metrics usable once other command kinds are added.
	commandKindAttr = "command"
)

var (
	// transportDuration measures the duration of a single IssueTransport
	// call, including validation, the move, the activation cascade and the
	// optional notification publish.
	transportDuration metric.Float64Histogram
	// transportFailures measures the number of transports rejected or failed.
	transportFailures metric.Int64Counter
)

// ---- declarationfeed.go ----

const (
	// siteNameAttr is the attribute key used to associate each record with
	// the corresponding site. This enables both collective analysis across
	// all supervised sites and individual analysis per site.
	siteNameAttr = "site"
)

var (
	// fanoutDuration measures the duration of handling a single
	// InventoryChanged notification, including the duration it took to
	// produce the entire set of DeclarationChanged messages.
	fanoutDuration metric.Float64Histogram
	// fanoutFailures measures the number of failed fan-out processes.
	fanoutFailures metric.Int64Counter
)

func init() {
	var err error
	transportDuration, err = meter.Float64Histogram(
		"transport.duration",
		metric.WithDescription("The duration of a single transport command, from validation to the optional TransportExecuted publish."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("safeguards: failed to init 'transport.duration' instrument")
	}

	transportFailures, err = meter.Int64Counter(
		"transport.failures",
		metric.WithDescription("The number of transport commands that were rejected or have failed."),
	)
	if err != nil {
		panic("safeguards: failed to init 'transport.failures' instrument")
	}

	fanoutDuration, err = meter.Float64Histogram(
		"inventoryChanged.fanout.duration",
		metric.WithDescription("The duration of handling a single InventoryChanged notification, including the duration it took to produce (to pubsub service) the entire set of DeclarationChanged messages."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("safeguards: failed to init 'inventoryChanged.fanout.duration' instrument")
	}

	fanoutFailures, err = meter.Int64Counter(
		"inventoryChanged.fanout.failures",
		metric.WithDescription("The number of fan-out processes that have failed."),
	)
	if err != nil {
		panic("safeguards: failed to init 'inventoryChanged.fanout.failures' instrument")
	}
}

// measureTransport records a single IssueTransport call on the instruments
// transportDuration and transportFailures. If the transport succeeded, we
// record its duration. If it failed, we increment the failure counter.
func measureTransport(ctx context.Context, succeeded bool, d time.Duration) {
	// According to go.opentelemetry.io/otel/attribute package documentation,
	// attribute.Set should be used instead of attribute.KeyValue directly for
	// performance optimization.
	attrs := attribute.NewSet(attribute.String(commandKindAttr, string(KindTransport)))
	if succeeded {
		// We use floating-point division here for higher precision (instead
		// of the Millisecond method).
		duration := float64(d) / float64(time.Millisecond)
		transportDuration.Record(ctx, duration, metric.WithAttributeSet(attrs))
	} else {
		transportFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}

// measureFanout records the handling of a single InventoryChanged
// notification on the instruments fanoutDuration and fanoutFailures, labeled
// with the name of the supervised site.
func measureFanout(ctx context.Context, site string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(siteNameAttr, site))
	if succeeded {
		duration := float64(d) / float64(time.Millisecond)
		fanoutDuration.Record(ctx, duration, metric.WithAttributeSet(attrs))
	} else {
		fanoutFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
