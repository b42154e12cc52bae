package dcsim

import (
	"sync"
	"testing"
	"time"
)

func TestEventQueueFIFOAtEqualTimes(t *testing.T) {
	q := NewEventQueue()
	q.Push(NewVMRequestEvent(0, &VirtualMachine{ID: 3}))
	q.Push(NewVMRequestEvent(0, &VirtualMachine{ID: 1}))
	q.Push(NewVMRequestEvent(0, &VirtualMachine{ID: 2}))

	var order []VMID
	for i := 0; i < 3; i++ {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("expected event, got none")
		}
		order = append(order, e.VM.ID)
	}
	want := []VMID{3, 1, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
		}
	}
}

func TestEventQueueOrdersByTime(t *testing.T) {
	q := NewEventQueue()
	q.Push(NewVMDepartureEvent(5, 1))
	q.Push(NewVMDepartureEvent(1, 2))
	q.Push(NewVMDepartureEvent(3, 3))

	var times []float64
	for i := 0; i < 3; i++ {
		e, _ := q.Pop()
		times = append(times, e.Time)
	}
	want := []float64{1, 3, 5}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("times = %v, want %v", times, want)
		}
	}
}

func TestEventQueuePopBlocksUntilPush(t *testing.T) {
	q := NewEventQueue()
	result := make(chan *Event, 1)
	go func() {
		e, ok := q.Pop()
		if ok {
			result <- e
		}
	}()

	select {
	case <-result:
		t.Fatal("Pop returned before any event was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(NewVMDepartureEvent(1, 42))

	select {
	case e := <-result:
		if e.VMID != 42 {
			t.Errorf("got VMID %d, want 42", e.VMID)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after push")
	}
}

func TestEventQueueTerminateUnblocksConsumers(t *testing.T) {
	q := NewEventQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.Terminate()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Pop to return false after Terminate on empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked after Terminate")
	}
}

func TestEventQueueTerminateIdempotent(t *testing.T) {
	q := NewEventQueue()
	q.Terminate()
	q.Terminate() // must not panic or deadlock
	_, ok := q.Pop()
	if ok {
		t.Error("expected Pop to report no event on terminated empty queue")
	}
}

func TestEventQueueDrainsPendingAfterTerminate(t *testing.T) {
	q := NewEventQueue()
	q.Push(NewVMDepartureEvent(1, 1))
	q.Push(NewVMDepartureEvent(2, 2))
	q.Terminate()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("drained %d events, want 2", count)
	}
}

func TestEventQueueRemovePredicate(t *testing.T) {
	q := NewEventQueue()
	q.Push(NewMigrationCompleteEvent(10, 1, 0, 1))
	q.Push(NewMigrationCompleteEvent(10, 2, 0, 1))
	q.Push(NewVMDepartureEvent(5, 1))

	removed := q.Remove(func(e *Event) bool {
		return e.Kind == EventMigrationComplete && e.VMID == 1
	})
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if q.Len() != 2 {
		t.Errorf("remaining size = %d, want 2", q.Len())
	}
}

func TestEventQueueCounts(t *testing.T) {
	q := NewEventQueue()
	q.Push(NewVMDepartureEvent(1, 1))
	q.Push(NewVMDepartureEvent(2, 2))
	q.Pop()

	pushed, popped, size := q.Counts()
	if pushed != 2 || popped != 1 || size != 1 {
		t.Errorf("Counts() = (%d, %d, %d), want (2, 1, 1)", pushed, popped, size)
	}
}

func TestEventQueueConcurrentProducers(t *testing.T) {
	q := NewEventQueue()
	const producers = 8
	const perProducer = 50
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(NewVMDepartureEvent(float64(i), VMID(p*perProducer+i)))
			}
		}(p)
	}
	wg.Wait()
	q.Terminate()

	count := 0
	for {
		_, ok := q.Pop()
		if !ok {
			break
		}
		count++
	}
	if count != producers*perProducer {
		t.Errorf("drained %d events, want %d", count, producers*perProducer)
	}
}
