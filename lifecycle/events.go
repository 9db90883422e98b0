// Copyright © 2018 Barthelemy Vessemont
// GNU General Public License version 3

package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/criteo-forks/essync/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	EventBeforeCreate   = "before:create"
	EventBeforeDrop     = "before:drop"
	EventBeforeRecreate = "before:recreate"
)

// Events lists the lifecycle events, in the order they are usually exposed.
var Events = []string{EventBeforeCreate, EventBeforeDrop, EventBeforeRecreate}

type Handler func(ctx context.Context) error

// Dispatcher is where lifecycle handlers get registered.
type Dispatcher interface {
	Subscribe(event string, handler Handler)
}

// Bus is an in-process Dispatcher. Handlers of an event run one after the
// other, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Emit runs the handlers of event and returns the first error as is; the
// remaining handlers are skipped.
func (b *Bus) Emit(ctx context.Context, event string) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no handler subscribed to %q", event)
	}

	log.WithField("event", event).Info("Dispatching lifecycle event")
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			log.WithField("event", event).Error("Lifecycle handler failed: ", err)
			prometheus.LifecycleEventCount.WithLabelValues(event, "error").Inc()
			return err
		}
	}
	prometheus.LifecycleEventCount.WithLabelValues(event, "ok").Inc()
	return nil
}
