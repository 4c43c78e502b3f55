package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInFlightCancel(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.Register("res_a", func() { cancelled = true })
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}

	if !r.Cancel("res_a") {
		t.Error("Cancel(res_a) = false, want true")
	}
	if !cancelled {
		t.Error("cancel func was not called")
	}
	if r.Cancel("res_a") {
		t.Error("second Cancel(res_a) = true, want false")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after cancel, want 0", r.Len())
	}
}

func TestInFlightCancelUnknown(t *testing.T) {
	if NewInFlightRegistry().Cancel("res_missing") {
		t.Error("Cancel of unknown id = true")
	}
}

func TestInFlightRemoveDoesNotCancel(t *testing.T) {
	r := NewInFlightRegistry()

	cancelled := false
	r.Register("res_a", func() { cancelled = true })
	r.Remove("res_a")
	r.Remove("res_missing")

	if r.Cancel("res_a") {
		t.Error("Cancel after Remove = true")
	}
	if cancelled {
		t.Error("Remove called the cancel func")
	}
}

func TestInFlightConcurrent(t *testing.T) {
	r := NewInFlightRegistry()
	var calls atomic.Int64
	const n = 100

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(fmt.Sprintf("res_%03d", i), func() { calls.Add(1) })
		}()
	}
	wg.Wait()

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("res_%03d", i)
			if i%2 == 0 {
				r.Cancel(id)
			} else {
				r.Remove(id)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != n/2 {
		t.Errorf("cancellations = %d, want %d", calls.Load(), n/2)
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}
