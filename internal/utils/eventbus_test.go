package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDispatchesInOrder(t *testing.T) {
	bus := NewEventBus()
	var (
		mu  sync.Mutex
		got []interface{}
	)
	bus.Subscribe("a", func(e Event) {
		mu.Lock()
		got = append(got, e.Data)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	for i := 0; i < 5; i++ {
		require.True(t, bus.Publish("a", i))
	}
	require.True(t, bus.Publish("unrouted", "x"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []interface{}{0, 1, 2, 3, 4}, got)
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus()
	for i := 0; i < eventBufferSize; i++ {
		require.True(t, bus.Publish("a", i))
	}
	assert.False(t, bus.Publish("a", "overflow"))
	assert.Equal(t, uint64(1), bus.Dropped())
}
