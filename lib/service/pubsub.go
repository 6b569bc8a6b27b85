package service

import (
	"sync"

	"github.com/google/uuid"
)

// AllEvents subscribes to every event type.
const AllEvents = "*"

type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan Event
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan Event)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan Event) (subId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan Event)
	}
	subId = uuid.NewString()
	ps.subs[topic][subId] = ch
	return subId
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][id] == nil {
		return
	}
	close(ps.subs[topic][id])
	delete(ps.subs[topic], id)
}

// Publish never blocks, a subscriber that is not ready misses the event.
// It returns the number of subscribers that missed it.
func (ps *Pubsub) Publish(topic string, msg Event) (dropped int) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, t := range []string{topic, AllEvents} {
		for _, ch := range ps.subs[t] {
			select {
			case ch <- msg:
			default:
				dropped++
			}
		}
	}
	return dropped
}
