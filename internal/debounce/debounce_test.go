package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBurstCoalescesToOneRun(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	var last atomic.Int32

	// Three rapid triggers within the window: exactly one execution, with
	// the last trigger's function.
	for i := 1; i <= 3; i++ {
		v := int32(i)
		s.Schedule("totals", 30*time.Millisecond, func() {
			runs.Add(1)
			last.Store(v)
		})
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
	if got := last.Load(); got != 3 {
		t.Errorf("last = %d, want 3", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var a, b atomic.Int32
	s.Schedule("a", 5*time.Millisecond, func() { a.Add(1) })
	s.Schedule("b", 5*time.Millisecond, func() { b.Add(1) })

	time.Sleep(60 * time.Millisecond)

	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("a=%d b=%d, want 1 1", a.Load(), b.Load())
	}
}

func TestCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	s.Schedule("totals", 10*time.Millisecond, func() { runs.Add(1) })
	if !s.Pending("totals") {
		t.Error("Pending = false right after Schedule, want true")
	}

	s.Cancel("totals")
	time.Sleep(50 * time.Millisecond)

	if runs.Load() != 0 {
		t.Errorf("runs = %d, want 0 after Cancel", runs.Load())
	}
	if s.Pending("totals") {
		t.Error("Pending = true after Cancel, want false")
	}
}

func TestStopRejectsFurtherScheduling(t *testing.T) {
	s := NewScheduler()

	var runs atomic.Int32
	s.Schedule("x", 10*time.Millisecond, func() { runs.Add(1) })
	s.Stop()
	s.Schedule("y", time.Millisecond, func() { runs.Add(1) })

	time.Sleep(50 * time.Millisecond)

	if runs.Load() != 0 {
		t.Errorf("runs = %d, want 0 after Stop", runs.Load())
	}
}

func TestRescheduleAfterFire(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	s.Schedule("k", time.Millisecond, func() { runs.Add(1) })
	time.Sleep(30 * time.Millisecond)
	s.Schedule("k", time.Millisecond, func() { runs.Add(1) })
	time.Sleep(30 * time.Millisecond)

	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2 (fresh schedule after fire)", got)
	}
}
