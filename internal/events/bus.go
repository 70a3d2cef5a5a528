package events

import "sync"

// Subscriber receives fanned-out events at or above its configured level.
type Subscriber struct {
	Level   Level
	Receive func(Event)

	mu   sync.Mutex
	seen map[string]struct{}
}

func (s *Subscriber) accepts(e Event) bool {
	return levelRank[e.Level] >= levelRank[s.Level]
}

func (s *Subscriber) alreadyDelivered(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	key := e.dedupKey()
	if _, ok := s.seen[key]; ok {
		return true
	}
	s.seen[key] = struct{}{}
	return false
}

// Bus fans out published events to registered subscribers, filtering by
// level and suppressing duplicates per subscriber.
type Bus struct {
	mu          sync.Mutex
	subscribers []*Subscriber
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns it, so callers can
// hold a reference for later inspection (tests) without a separate
// lookup.
func (b *Bus) Subscribe(level Level, receive func(Event)) *Subscriber {
	sub := &Subscriber{Level: level, Receive: receive}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()
	return sub
}

// Publish delivers e to every subscriber whose level accepts it, skipping
// subscribers that have already seen an equivalent (by DedupKey) event.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]*Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.accepts(e) {
			continue
		}
		if sub.alreadyDelivered(e) {
			continue
		}
		sub.Receive(e)
	}
}
