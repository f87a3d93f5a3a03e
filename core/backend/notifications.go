package backend

import (
	"github.com/goccy/go-json"

	"github.com/snabb-tech/dispatch/core"
	"github.com/snabb-tech/dispatch/core/logger"
)

// notify publishes the configured domain events for a successful store
// operation. Dispatch is fire-and-forget: it happens on its own goroutine,
// there is no delivery guarantee and a failing notifier never influences
// the request's response, which is determined by the store result alone.
func (b *Backend) notify(rc collectionConfiguration, operation core.Operation, instance Instance) {
	if b.notifier == nil {
		return
	}
	for _, nc := range rc.Notifications {
		if nc.Operation != operation {
			continue
		}
		payload, err := json.Marshal(map[string]interface{}{rc.Resource: instance})
		if err != nil {
			logger.Default().WithError(err).Errorln("cannot marshal notification payload for", rc.Resource)
			continue
		}
		notifier := b.notifier
		go func(nc notificationConfiguration) {
			defer func() {
				if r := recover(); r != nil {
					logger.Default().Errorf("recovered from notifier panic on %s %s: %v", nc.Channel, nc.Event, r)
				}
			}()
			notifier.Publish(nc.Channel, nc.Event, payload)
		}(nc)
	}
}
