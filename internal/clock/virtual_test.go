package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fired(tm Timer) bool {
	select {
	case <-tm.C():
		return true
	default:
		return false
	}
}

func TestVirtualClock_AdvanceMovesNowAndSince(t *testing.T) {
	vc := NewVirtualClock(epoch)
	start := vc.Now()
	vc.Advance(90 * time.Second)
	vc.Advance(500 * time.Millisecond)

	if got, want := vc.Now(), epoch.Add(90500*time.Millisecond); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
	if got := vc.Since(start); got != 90500*time.Millisecond {
		t.Errorf("Since(start) = %v, want 1m30.5s", got)
	}
}

func TestVirtualClock_AdvanceNegativePanics(t *testing.T) {
	vc := NewVirtualClock(epoch)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on negative advance")
		}
	}()
	vc.Advance(-time.Millisecond)
}

func TestVirtualClock_Timer_FiresAtDeadline(t *testing.T) {
	vc := NewVirtualClock(epoch)
	tm := vc.NewTimer(2 * time.Second)

	vc.Advance(1999 * time.Millisecond)
	if fired(tm) {
		t.Fatal("timer fired 1ms early")
	}
	if got := vc.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}

	vc.Advance(time.Millisecond)
	select {
	case got := <-tm.C():
		if want := epoch.Add(2 * time.Second); !got.Equal(want) {
			t.Errorf("timer sent %v, want %v", got, want)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
	if got := vc.Pending(); got != 0 {
		t.Errorf("Pending() after fire = %d, want 0", got)
	}
}

func TestVirtualClock_Timer_NonPositiveFiresImmediately(t *testing.T) {
	vc := NewVirtualClock(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		tm := vc.NewTimer(d)
		if !fired(tm) {
			t.Errorf("NewTimer(%v) did not fire immediately", d)
		}
	}
	if got := vc.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestVirtualClock_Timer_OnlyDueTimersFire(t *testing.T) {
	vc := NewVirtualClock(epoch)
	timers := []Timer{
		vc.NewTimer(time.Second),
		vc.NewTimer(5 * time.Second),
		vc.NewTimer(10 * time.Second),
	}

	vc.Advance(5 * time.Second)
	want := []bool{true, true, false}
	for i, tm := range timers {
		if got := fired(tm); got != want[i] {
			t.Errorf("timer %d fired = %t, want %t", i, got, want[i])
		}
	}
	if got := vc.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
}

func TestVirtualClock_Timer_StopPreventsFire(t *testing.T) {
	vc := NewVirtualClock(epoch)
	tm := vc.NewTimer(time.Second)

	if !tm.Stop() {
		t.Fatal("Stop() = false, want true for a pending timer")
	}
	if got := vc.Pending(); got != 0 {
		t.Fatalf("Pending() after Stop = %d, want 0", got)
	}
	vc.Advance(2 * time.Second)
	if fired(tm) {
		t.Fatal("stopped timer fired")
	}
}

func TestVirtualClock_Timer_StopAfterFire(t *testing.T) {
	vc := NewVirtualClock(epoch)
	tm := vc.NewTimer(time.Second)
	vc.Advance(time.Second)

	if tm.Stop() {
		t.Error("Stop() = true after the timer fired, want false")
	}
	if !fired(tm) {
		t.Fatal("timer did not fire")
	}
}

func TestVirtualClock_Timer_StopOnlyRemovesItself(t *testing.T) {
	vc := NewVirtualClock(epoch)
	a := vc.NewTimer(time.Second)
	b := vc.NewTimer(time.Second)

	a.Stop()
	if got := vc.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
	vc.Advance(time.Second)
	if !fired(b) {
		t.Fatal("remaining timer did not fire")
	}
}

func TestVirtualClock_Timer_ConcurrentStopAndAdvance(t *testing.T) {
	vc := NewVirtualClock(epoch)
	timers := make([]Timer, 50)
	for i := range timers {
		timers[i] = vc.NewTimer(time.Duration(i+1) * time.Millisecond)
	}

	var wg sync.WaitGroup
	for i := 0; i < len(timers); i += 2 {
		wg.Add(1)
		go func(tm Timer) {
			defer wg.Done()
			tm.Stop()
		}(timers[i])
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			vc.Advance(time.Millisecond)
		}
	}()
	wg.Wait()

	if got := vc.Pending(); got != 0 {
		t.Errorf("Pending() = %d after every timer fired or stopped, want 0", got)
	}
	for i := 1; i < len(timers); i += 2 {
		if !fired(timers[i]) {
			t.Errorf("unstopped timer %d did not fire", i)
		}
	}
}

func TestRealClock_Timer(t *testing.T) {
	clk := NewRealClock()
	tm := clk.NewTimer(time.Millisecond)
	select {
	case <-tm.C():
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}

	stopped := clk.NewTimer(time.Hour)
	if !stopped.Stop() {
		t.Error("Stop() = false for a pending real timer")
	}
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = NewRealClock()
	var _ Clock = NewVirtualClock(epoch)
}
