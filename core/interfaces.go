package core

// Notifier publishes domain events to subscribers.
//
// Publish is fire-and-forget: implementations must not block the caller and
// there is no delivery guarantee. Failures are logged by the implementation,
// never returned.
type Notifier interface {
	Publish(channel string, event string, payload []byte)
}
