package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arzzra/phone_integration/pkg/types"
)

func TestDispatcherDeliversInEnqueueOrder(t *testing.T) {
	bus := NewBus(nil)
	d := NewDispatcher(bus)
	var got []Type
	bus.ListenFunc(func(e Event) { got = append(got, e.Type) })

	d.Enqueue(New(IncomingCallReceived, types.SessionState{}))
	d.Enqueue(New(CallConnected, types.SessionState{}))
	assert.Equal(t, 2, d.Pending())
	assert.Empty(t, got)

	d.Flush()
	assert.Equal(t, []Type{IncomingCallReceived, CallConnected}, got)
	assert.Zero(t, d.Pending())
}

func TestDispatcherReentrantPublishIsDeferred(t *testing.T) {
	bus := NewBus(nil)
	d := NewDispatcher(bus)
	var got []Type

	bus.ListenFunc(func(e Event) {
		got = append(got, e.Type)
		if e.Type == CallConnected {
			d.Publish(New(CallUpdated, types.SessionState{}))
			// событие из обработчика ещё не доставлено
			assert.Equal(t, []Type{CallConnected}, got)
		}
	})
	bus.ListenFunc(func(e Event) {
		got = append(got, -e.Type)
	})

	d.Publish(New(CallConnected, types.SessionState{}))

	assert.Equal(t, []Type{CallConnected, -CallConnected, CallUpdated, -CallUpdated}, got)
}

func TestDispatcherConcurrentPublishersDeliverEverything(t *testing.T) {
	bus := NewBus(nil)
	d := NewDispatcher(bus)

	var mu sync.Mutex
	count := 0
	bus.ListenFunc(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				d.Publish(New(CallStateUpdated, types.SessionState{}))
			}
		}()
	}
	wg.Wait()
	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, workers*perWorker, count)
	assert.Zero(t, d.Pending())
}
