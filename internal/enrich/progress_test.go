package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/network-buddy-sub000/internal/model"
)

func TestBroker_PublishAndTerminalClose(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("rec-1")
	defer cancel()

	b.Publish("rec-1", model.ProgressEvent{Phase: model.PhaseReputation, Message: "working"})
	b.Publish("rec-1", model.ProgressEvent{Phase: model.PhaseComplete})

	ev := <-ch
	assert.Equal(t, model.PhaseReputation, ev.Phase)

	ev, ok := <-ch
	require.True(t, ok)
	assert.True(t, ev.Terminal())

	_, ok = <-ch
	assert.False(t, ok, "channel should close after the terminal event")
}

func TestBroker_SubscribersAreIsolatedByRecord(t *testing.T) {
	b := NewBroker()
	ch1, cancel1 := b.Subscribe("rec-1")
	ch2, cancel2 := b.Subscribe("rec-2")
	defer cancel1()
	defer cancel2()

	b.Publish("rec-1", model.ProgressEvent{Phase: model.PhaseProfile})

	select {
	case ev := <-ch1:
		assert.Equal(t, model.PhaseProfile, ev.Phase)
	case <-time.After(time.Second):
		t.Fatal("expected an event on the rec-1 stream")
	}

	select {
	case <-ch2:
		t.Fatal("rec-2 must not see rec-1 events")
	default:
	}
}

func TestBroker_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	_, cancel := b.Subscribe("rec-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish("rec-1", model.ProgressEvent{Phase: model.PhaseResearch})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBroker_CancelIsIdempotent(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe("rec-1")

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel reaches nobody and must not panic.
	b.Publish("rec-1", model.ProgressEvent{Phase: model.PhaseComplete})
}
