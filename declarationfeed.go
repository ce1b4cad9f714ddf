package safeguards

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// Register the declaration change types using gob.Register(). This is
// required to identify the type of change in the notified event after
// decoding it using gob.
func init() {
	gob.Register(DeclarationCreated{})
	gob.Register(DeclarationUpdated{})
	gob.Register(DeclarationRemoved{})
}

type declarationFeed struct {
	siteName string
	source   *pubsub.Subscription
	sink     *pubsub.Topic
}

// NewDeclarationFeed returns a [component.Procedure] that fans a site's
// whole-site change notifications (received from the given source) out into
// individual per-facility change notifications and publishes them to the
// specified sink.
//
// It consumes safeguards.InventoryChanged notifications and produces
// safeguards.DeclarationChanged notifications.
//
// The feed measures the duration of processing each InventoryChanged
// notification and labels each measurement record with the provided site
// name (e.g. "gorleben").
func NewDeclarationFeed(siteName string, source *pubsub.Subscription, sink *pubsub.Topic) component.Procedure {
	return declarationFeed{
		siteName: siteName,
		source:   source,
		sink:     sink,
	}
}

func (f declarationFeed) Exec(l *component.L) {
	logger := component.Logger(l.Context())
	for l.Continue() {
		msg, err := f.source.Receive(l.GraceContext())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return
			}

			// Based on the pubsub Receive function documentation, if Receive returns an
			// error, it is either a non-retryable error from the underlying driver or
			// indicates that the provided context is Done. In case of a non-retryable error,
			// we should either recreate the Subscription or exit. Since we currently lack
			// the mechanism to recreate the target Subscription, we opt to trigger a process
			// shutdown.
			panic("cannot receive messages from the pubsub service")
		}

		err = f.handleMessage(l.GraceContext(), logger, msg)
		if err != nil {
			// Inspectors must never observe a facility's declarations out of order, so the
			// feed shall never proceed to fan out additional site changes before publishing
			// messages about all facilities in the previous message. Therefore, if
			// handleMessage fails for any reason, we initiate a process shutdown. The
			// service will then continuously attempt to process the same message until it
			// succeeds.
			logger.Error("Couldn't handle InventoryChanged message",
				slog.Any("error", err),
			)
			panic("cannot proceed to the next InventoryChanged message due to failure")
		}

		// Acknowledge the message only if the handling process is fully successful, as
		// the service maintains an at-least-once delivery constraint.
		msg.Ack()
	}
}

// handleMessage handles an InventoryChanged message by fanning it out into
// DeclarationChanged messages and publishing one message per changed
// facility. It returns an error if it fails to publish even a single
// DeclarationChanged message.
func (f declarationFeed) handleMessage(ctx context.Context, logger *slog.Logger, msg *pubsub.Message) (err error) {
	ctx, span := tracer.Start(ctx, "declarationFeed.handleMessage", trace.WithAttributes(
		attribute.String("msg.id", msg.LoggableID),
	))
	defer span.End()

	defer func(start time.Time) {
		success := err == nil
		elapsed := time.Since(start)
		measureFanout(ctx, f.siteName, success, elapsed)
	}(time.Now())

	logger.Debug("New InventoryChanged message received, starting message handling...")
	logger.Debug("Decoding message using gob...")
	var changed InventoryChanged
	if err := gob.NewDecoder(bytes.NewReader(msg.Body)).Decode(&changed); err != nil {
		err := fmt.Errorf("decode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if changed.IsEmpty() {
		// As noted in the IsEmpty() documentation, it returns true when the site hash
		// before and after are the same, indicating no changes to the declared state.
		// In this case, we put only the site hash before as attribute on the log, as it
		// is identical to the site hash after.
		logger.Info("There are no changes in the InventoryChanged message, message skipped", slog.Any("site-hash", changed.SiteBefore))
		return nil
	}

	logger = logger.With(
		slog.Any("site-before-hash", changed.SiteBefore),
		slog.Any("site-after-hash", changed.SiteAfter),
	)
	logger.Debug("Fanning site change out into per-facility declaration changes...")
	declarationChanges := fanOutChanges(changed)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range declarationChanges {
		c := c
		g.Go(func() error {
			return f.notifyChange(ctx, logger, c)
		})
	}

	// Ensures that any goroutines started by the error group are allowed to finish
	// and that their errors are handled before the function can return, thus
	// maintaining robust error tracking.
	if err := g.Wait(); err != nil {
		return fmt.Errorf("send declaration changes: %w", err)
	}
	logger.Info("InventoryChanged message handled successfully")

	return nil
}

func (f declarationFeed) notifyChange(ctx context.Context, logger *slog.Logger, c DeclarationChanged) error {
	ctx, span := tracer.Start(ctx, "declarationFeed.notifyChange", trace.WithAttributes(
		attribute.Stringer("site.hash", c.SiteHash),
		attribute.Stringer("facility.seal", c.FacilitySeal()),
	))
	defer span.End()

	logger = logger.With(
		slog.Any("facility-seal", c.FacilitySeal()),
	)
	logger.Debug("Encoding DeclarationChanged message using gob...")
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	if err := enc.Encode(c); err != nil {
		err := fmt.Errorf("encode gob: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	logger.Debug("Sending DeclarationChanged message...")
	// To ensure ordered message delivery with the Kafka messaging broker, messages
	// can be produced with a key. Kafka guarantees that messages with the same key
	// are written to the same topic partition. As consumers read messages in order
	// from each partition, the message ordering is preserved.
	//
	// The facility's seal is included as metadata on the message to enable
	// key-based partitioning in Kafka, so that consumers observe the declaration
	// changes of any single facility in the correct order.
	msg := &pubsub.Message{Body: b.Bytes(), Metadata: map[string]string{"facilitySeal": c.FacilitySeal().String()}}
	if err := f.sink.Send(ctx, msg); err != nil {
		err := fmt.Errorf("send: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logger.Debug("DeclarationChanged message sent successfully")

	return nil
}

// DeclarationChanged notifies about changes to a specific facility's
// declared inventory. The changes can be:
//   - A new facility is declared for the first time.
//   - An existing facility's inventory is updated.
//   - An existing facility is removed from the declared state.
//
// Use IsCreated, IsUpdated, and IsRemoved to identify the type of change.
//
// IMPORTANT: Before encoding, register the type that implements the
// Declaration interface (DeclarationCreated, DeclarationUpdated,
// DeclarationRemoved) using gob.Register(). This is critical to identify the
// change type of the notified event.
type DeclarationChanged struct {
	Declaration
	// SiteHash represents the hash of the whole site at the time when the
	// specific declaration was changed. It corresponds to the
	// InventoryChanged.SiteAfter field of the InventoryChanged message that
	// this declaration change is a part of.
	SiteHash SiteHash
	// The time, in UTC, the whole-site change was computed. The information
	// in this message is accurate up to this timestamp, not a moment
	// afterward.
	Timestamp time.Time
}

// IsCreated returns true if a facility is declared for the first time.
func (c DeclarationChanged) IsCreated() bool {
	if _, ok := c.Declaration.(DeclarationCreated); ok {
		return true
	}
	return false
}

// IsUpdated returns true if an existing facility's inventory is updated.
func (c DeclarationChanged) IsUpdated() bool {
	if _, ok := c.Declaration.(DeclarationUpdated); ok {
		return true
	}
	return false
}

// IsRemoved returns true if an existing facility is removed.
func (c DeclarationChanged) IsRemoved() bool {
	if _, ok := c.Declaration.(DeclarationRemoved); ok {
		return true
	}
	return false
}

// fanOutChanges fans the provided InventoryChanged message out into
// individual DeclarationChanged messages, one for each facility change
// (DeclarationCreated, DeclarationUpdated, DeclarationRemoved). It returns a
// slice of DeclarationChanged messages.
func fanOutChanges(site InventoryChanged) (changes []DeclarationChanged) {
	for _, c := range site.Created {
		changes = append(changes, DeclarationChanged{
			Declaration: c,
			SiteHash:    site.SiteAfter,
			Timestamp:   site.Timestamp,
		})
	}

	for _, c := range site.Updated {
		changes = append(changes, DeclarationChanged{
			Declaration: c,
			SiteHash:    site.SiteAfter,
			Timestamp:   site.Timestamp,
		})
	}

	for _, c := range site.Removed {
		changes = append(changes, DeclarationChanged{
			Declaration: c,
			SiteHash:    site.SiteAfter,
			Timestamp:   site.Timestamp,
		})
	}

	return changes
}
