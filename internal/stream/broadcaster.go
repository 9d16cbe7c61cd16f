// Package stream fans poller events out to any number of consumers.
package stream

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/elecciones-pr/tablero/internal/poller"
)

// UpdatesProvider is anything that emits poller events. *poller.Poller
// satisfies it.
type UpdatesProvider interface {
	Updates() <-chan poller.Event
}

// Broadcaster ingests events from registered providers and distributes them
// to subscribers filtered by event kind and to a unified "all" stream.
type Broadcaster struct {
	sources []<-chan poller.Event

	// Filtered subscribers keyed by event kind.
	mu   sync.RWMutex
	subs map[poller.EventKind][]chan poller.Event

	// allMu guards the unified subscriber list.
	allMu  sync.RWMutex
	allSub []chan poller.Event

	log *log.Entry
}

// NewBroadcaster creates a Broadcaster ready for provider registration.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[poller.EventKind][]chan poller.Event),
		log:  log.WithField("component", "broadcaster"),
	}
}

// Register adds a provider's update channel as a source. Must be called
// before Run.
func (b *Broadcaster) Register(provider UpdatesProvider) {
	b.sources = append(b.sources, provider.Updates())
}

// Subscribe returns a buffered channel that receives events of the given
// kinds. The caller must drain it or events are dropped.
func (b *Broadcaster) Subscribe(kinds ...poller.EventKind) <-chan poller.Event {
	ch := make(chan poller.Event, 64)

	seen := make(map[poller.EventKind]bool, len(kinds))
	b.mu.Lock()
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		b.subs[k] = append(b.subs[k], ch)
	}
	b.mu.Unlock()

	return ch
}

// SubscribeAll returns a buffered channel that receives every event.
func (b *Broadcaster) SubscribeAll() <-chan poller.Event {
	ch := make(chan poller.Event, 128)

	b.allMu.Lock()
	b.allSub = append(b.allSub, ch)
	b.allMu.Unlock()

	return ch
}

// Unsubscribe removes ch from every subscriber list and closes it. Used by
// short-lived consumers such as WebSocket sessions.
func (b *Broadcaster) Unsubscribe(ch <-chan poller.Event) {
	var found chan poller.Event

	b.mu.Lock()
	for k, subs := range b.subs {
		kept := subs[:0:0]
		for _, s := range subs {
			if s == ch {
				found = s
				continue
			}
			kept = append(kept, s)
		}
		b.subs[k] = kept
	}
	b.mu.Unlock()

	b.allMu.Lock()
	kept := b.allSub[:0:0]
	for _, s := range b.allSub {
		if s == ch {
			found = s
			continue
		}
		kept = append(kept, s)
	}
	b.allSub = kept
	b.allMu.Unlock()

	// Closed only after every list has dropped it, so distribute never
	// sends on it.
	if found != nil {
		close(found)
	}
}

// Run consumes every registered source until ctx is cancelled or all
// sources are closed.
func (b *Broadcaster) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, src := range b.sources {
		wg.Add(1)
		go func(ch <-chan poller.Event) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					b.distribute(ev)
				}
			}
		}(src)
	}

	wg.Wait()
}

// distribute never blocks: slow consumers lose events.
func (b *Broadcaster) distribute(ev poller.Event) {
	b.mu.RLock()
	for _, ch := range b.subs[ev.Kind] {
		select {
		case ch <- ev:
		default:
			b.log.WithField("kind", ev.Kind).Warn("dropping event for slow subscriber")
		}
	}
	b.mu.RUnlock()

	b.allMu.RLock()
	for _, ch := range b.allSub {
		select {
		case ch <- ev:
		default:
			// Slow unified subscriber, drop.
		}
	}
	b.allMu.RUnlock()
}
