package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type TestEvent struct {
	Message string
}

type AnotherEvent struct {
	Value int
}

func TestEventBus_Subscribe_And_Publish(t *testing.T) {
	bus := New()

	var received TestEvent
	var wg sync.WaitGroup
	wg.Add(1)

	bus.Subscribe("test", func(event any) {
		if e, ok := event.(TestEvent); ok {
			received = e
			wg.Done()
		}
	})

	bus.Publish("test", TestEvent{Message: "hello"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		assert.Equal(t, "hello", received.Message)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventBus_PublishSync(t *testing.T) {
	bus := New()

	var order []int
	bus.Subscribe("test", func(any) { order = append(order, 1) })
	bus.Subscribe("test", func(any) { order = append(order, 2) })

	bus.PublishSync("test", TestEvent{})
	assert.Equal(t, []int{1, 2}, order)
}

func TestEventBus_TopicsAreIsolated(t *testing.T) {
	bus := New()

	called := false
	bus.Subscribe("a", func(any) { called = true })
	bus.PublishSync("b", TestEvent{})

	assert.False(t, called)
}

func TestEventBus_NoSubscribers(t *testing.T) {
	bus := New()
	assert.NotPanics(t, func() {
		bus.Publish("nobody", TestEvent{})
		bus.PublishSync("nobody", TestEvent{})
	})
	bus.Wait()
}

func TestSubscribeTyped(t *testing.T) {
	bus := New()

	var got []int
	SubscribeTyped(bus, "values", func(e AnotherEvent) { got = append(got, e.Value) })

	bus.PublishSync("values", AnotherEvent{Value: 1})
	bus.PublishSync("values", &AnotherEvent{Value: 2})
	bus.PublishSync("values", (*AnotherEvent)(nil))
	bus.PublishSync("values", TestEvent{Message: "ignored"})

	assert.Equal(t, []int{1, 2}, got)
}

func TestEventBus_Wait(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe("test", func(any) {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	bus.Publish("test", TestEvent{})
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, count)
}

func TestEventBus_SubscriberCount(t *testing.T) {
	bus := New()

	assert.False(t, bus.HasSubscribers("test"))
	assert.Equal(t, 0, bus.SubscriberCount("test"))

	bus.Subscribe("test", func(any) {})
	bus.Subscribe("test", func(any) {})

	assert.True(t, bus.HasSubscribers("test"))
	assert.Equal(t, 2, bus.SubscriberCount("test"))
}
