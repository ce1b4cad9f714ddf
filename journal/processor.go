package journal

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"

	"github.com/dt4safeguards/safeguards"
)

// ProcessJournals returns a component.Proc that consumes serialised journals
// from the subscription and applies each one through the given Applier. The
// message body must be a gob stream produced by [Encode].
func ProcessJournals(sub *pubsub.Subscription, applier safeguards.Applier) component.Proc {
	source := safeguards.NewEventSource(sub, reflect.TypeOf([]Step(nil)), func(p []byte, v reflect.Value) error {
		return gob.NewDecoder(bytes.NewReader(p)).DecodeValue(v)
	})
	return source.Stream(applyJournal(applier))
}

func applyJournal(applier safeguards.Applier) safeguards.EventHandler {
	return func(ctx context.Context, msg any) error {
		steps := msg.([]Step)
		if err := applier.Apply(ctx, Replay(steps)); err != nil {
			return fmt.Errorf("apply journal: %w", err)
		}
		return nil
	}
}
