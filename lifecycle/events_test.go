package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusRunsHandlersInOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(EventBeforeCreate, func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	bus.Subscribe(EventBeforeCreate, func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})
	bus.Subscribe(EventBeforeDrop, func(ctx context.Context) error {
		order = append(order, "drop")
		return nil
	})

	assert.NoError(t, bus.Emit(context.Background(), EventBeforeCreate))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBusStopsAtFirstError(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	called := false
	bus.Subscribe(EventBeforeRecreate, func(ctx context.Context) error { return boom })
	bus.Subscribe(EventBeforeRecreate, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Same(t, boom, bus.Emit(context.Background(), EventBeforeRecreate))
	assert.False(t, called)
}

func TestBusWithoutHandler(t *testing.T) {
	err := NewBus().Emit(context.Background(), "before:truncate")
	assert.EqualError(t, err, `no handler subscribed to "before:truncate"`)
}
