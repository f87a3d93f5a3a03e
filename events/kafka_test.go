package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNotifier struct {
	channels []string
	events   []string
}

func (f *fakeNotifier) Publish(channel string, event string, payload []byte) {
	f.channels = append(f.channels, channel)
	f.events = append(f.events, event)
}

func TestMultiNotifierFansOut(t *testing.T) {
	first := &fakeNotifier{}
	second := &fakeNotifier{}
	multi := MultiNotifier{first, second}

	multi.Publish("tasks", "new-task", []byte(`{}`))
	multi.Publish("workers", "worker-updated", []byte(`{}`))

	for _, f := range []*fakeNotifier{first, second} {
		assert.Equal(t, []string{"tasks", "workers"}, f.channels)
		assert.Equal(t, []string{"new-task", "worker-updated"}, f.events)
	}
}
