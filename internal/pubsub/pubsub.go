package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type Event interface {
}

// DefaultBufferSize is the number of undelivered events a subscription holds before new events
// are dropped for it.
const DefaultBufferSize = 16

type Subscriber[E Event] interface {
	Name() string
	ConsumeEvent(E) error
}

// Publisher fans every published event out to all current subscriptions. Publishing never blocks:
// a subscription whose buffer is full misses the event, and publishing with no subscriptions is a no-op.
type Publisher[E Event] struct {
	mu     sync.RWMutex
	subs   map[int]chan E
	nextID int
	size   int
}

func NewPublisher[E Event]() *Publisher[E] {
	return &Publisher[E]{
		subs: make(map[int]chan E),
		size: DefaultBufferSize,
	}
}

// Subscribe returns a channel of future events and a func that closes it.
func (p *Publisher[E]) Subscribe() (<-chan E, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan E, p.size)
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
}

func (p *Publisher[E]) PublishEvent(e E) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for id, ch := range p.subs {
		select {
		case ch <- e:
		default:
			log.Warn().Msgf("subscription %d is full, dropping event", id)
		}
	}
}

// SubscriberCount returns the number of open subscriptions.
func (p *Publisher[E]) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Channel delivers a publisher's events to a fixed set of subscribers.
type Channel[E Event] struct {
	publisher   *Publisher[E]
	subscribers []Subscriber[E]
}

func NewChannel[E Event](publisher *Publisher[E], subscribers []Subscriber[E]) *Channel[E] {
	return &Channel[E]{
		publisher:   publisher,
		subscribers: subscribers,
	}
}

// Listen consumes events until ctx is cancelled. Subscriber errors are logged and do not stop the channel.
func (c *Channel[E]) Listen(ctx context.Context) error {
	events, unsubscribe := c.publisher.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			for _, sub := range c.subscribers {
				err := sub.ConsumeEvent(e)
				if err != nil {
					log.Error().Err(err).Msgf("Subscriber %s had an error while consuming event: %s", sub.Name(), err.Error())
				}
			}
		}
	}
}
