package enrich

import (
	"sync"

	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/model"
)

// subscriber buffer; a consumer this far behind loses events rather than
// stalling the attempt.
const subscriberBuffer = 16

// Broker fans progress events out to per-record subscribers. Events are
// ephemeral: nothing is replayed to late subscribers, and a stream that
// drops before its terminal event just means the caller should poll the
// record instead.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.ProgressEvent]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan model.ProgressEvent]struct{})}
}

// Subscribe registers for events about one record. The returned cancel
// function is idempotent and must be called when the caller is done;
// the channel is closed on cancel or on a terminal event.
func (b *Broker) Subscribe(recordID string) (<-chan model.ProgressEvent, func()) {
	ch := make(chan model.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[recordID] == nil {
		b.subs[recordID] = make(map[chan model.ProgressEvent]struct{})
	}
	b.subs[recordID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[recordID][ch]; ok {
				b.drop(recordID, ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the record. Delivery
// never blocks; a full subscriber drops the event. A terminal event
// closes and removes all of the record's subscriptions.
func (b *Broker) Publish(recordID string, ev model.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[recordID] {
		select {
		case ch <- ev:
		default:
			zap.L().Debug("progress subscriber full, dropping event",
				zap.String("record_id", recordID),
				zap.String("phase", ev.Phase),
			)
		}
		if ev.Terminal() {
			b.drop(recordID, ch)
		}
	}
}

// drop closes and unregisters one subscription. Caller holds the lock.
func (b *Broker) drop(recordID string, ch chan model.ProgressEvent) {
	delete(b.subs[recordID], ch)
	if len(b.subs[recordID]) == 0 {
		delete(b.subs, recordID)
	}
	close(ch)
}
