package dispatch

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	var k keyedMutex
	unlock := k.Lock(1)

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		u := k.Lock(1)
		acquired.Store(true)
		u()
	}()

	time.Sleep(30 * time.Millisecond)
	if acquired.Load() {
		t.Fatal("second Lock(1) acquired while first was held")
	}

	// Other keys are independent.
	other := make(chan struct{})
	go func() {
		u := k.Lock(2)
		u()
		close(other)
	}()
	select {
	case <-other:
	case <-time.After(time.Second):
		t.Fatal("Lock(2) blocked behind Lock(1)")
	}

	unlock()
	<-done
	if !acquired.Load() {
		t.Error("second Lock(1) never acquired")
	}
	if n := k.len(); n != 0 {
		t.Errorf("%d lock entries left, want 0", n)
	}
}
