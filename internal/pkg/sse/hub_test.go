package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishIsTenantScoped(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("tenant-a")
	defer cancelA()
	b, cancelB := h.Subscribe("tenant-b")
	defer cancelB()

	assert.Equal(t, 1, h.Publish(Event{TenantID: "tenant-a", Event: "run.status", Data: "r1"}))

	select {
	case ev := <-a:
		assert.Equal(t, "run.status", ev.Event)
	default:
		t.Fatal("tenant-a did not receive its event")
	}
	select {
	case ev := <-b:
		t.Fatalf("tenant-b received %+v", ev)
	default:
	}
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("t")
	require.Equal(t, 1, h.Streams("t"))

	cancel()
	cancel()
	assert.Equal(t, 0, h.Streams("t"))

	_, open := <-ch
	assert.False(t, open)
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("t")
	defer cancel()

	delivered := 0
	for i := 0; i < 100; i++ {
		delivered += h.Publish(Event{TenantID: "t", Event: "run.status"})
	}
	assert.Equal(t, bufferSize, delivered)
}

func TestHub_CloseEndsStreams(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("t")

	h.Close()
	_, open := <-ch
	assert.False(t, open)

	// Cancelling after Close must not close the channel twice.
	assert.NotPanics(t, cancel)

	late, _ := h.Subscribe("t")
	_, open = <-late
	assert.False(t, open)
	assert.Equal(t, 0, h.Publish(Event{TenantID: "t"}))
}
