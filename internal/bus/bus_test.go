package bus

import (
	"sync"
	"testing"
)

func TestEmitDeliversToSpecificThenWildcard(t *testing.T) {
	b := New(nil)
	var order []string
	var mu sync.Mutex
	record := func(name string) Handler {
		return func(data any) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}

	b.On("tick", record("specific"))
	b.On("*", record("wildcard"))

	b.Emit("tick", nil)

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Fatalf("unexpected delivery order: %v", order)
	}
}

func TestWildcardNotReemittedOnWildcardName(t *testing.T) {
	b := New(nil)
	calls := 0
	b.On("*", func(data any) { calls++ })

	b.Emit("*", nil)

	if calls != 1 {
		t.Fatalf("expected exactly 1 wildcard delivery, got %d", calls)
	}
}

func TestOnceRemovedAfterFirstDelivery(t *testing.T) {
	b := New(nil)
	calls := 0
	b.Once("x", func(data any) { calls++ })

	b.Emit("x", nil)
	b.Emit("x", nil)

	if calls != 1 {
		t.Fatalf("expected 1 delivery, got %d", calls)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	calls := 0
	unsub := b.On("x", func(data any) { calls++ })
	unsub()

	b.Emit("x", nil)

	if calls != 0 {
		t.Fatalf("expected 0 deliveries after unsubscribe, got %d", calls)
	}
}

func TestHandlerPanicDoesNotBlockOthers(t *testing.T) {
	b := New(nil)
	secondCalled := false
	b.On("x", func(data any) { panic("boom") })
	b.On("x", func(data any) { secondCalled = true })

	b.Emit("x", nil)

	if !secondCalled {
		t.Fatal("second handler should still have been called")
	}
}

func TestPerNameFIFOOrdering(t *testing.T) {
	b := New(nil)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.On("x", func(data any) { order = append(order, i) })
	}

	b.Emit("x", nil)

	for i, v := range order {
		if v != i {
			t.Fatalf("FIFO violated: %v", order)
		}
	}
}
