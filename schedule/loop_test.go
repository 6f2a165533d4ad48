package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop(LoopConfig{Frame: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestLoop_Do(t *testing.T) {
	l := startLoop(t)
	x := 0
	if err := l.Do(context.Background(), func() { x = 42 }); err != nil {
		t.Fatal(err)
	}
	if x != 42 {
		t.Fatalf("x: got %d, want 42", x)
	}
}

func TestLoop_AfterFuncStop(t *testing.T) {
	l := startLoop(t)
	var fired atomic.Bool
	var tm Timer
	l.Do(context.Background(), func() {
		tm = l.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })
	})
	l.Do(context.Background(), func() { tm.Stop() })
	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Error("stopped timer fired")
	}
}

func TestLoop_NextFrame(t *testing.T) {
	l := startLoop(t)
	ch := make(chan struct{})
	l.Post(func() { l.NextFrame(func() { close(ch) }) })
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("frame callback did not run")
	}
}

func TestLoop_Every(t *testing.T) {
	l := startLoop(t)
	var n atomic.Int32
	var tm Timer
	l.Do(context.Background(), func() {
		tm = l.Every(5*time.Millisecond, func() { n.Add(1) })
	})
	time.Sleep(60 * time.Millisecond)
	l.Do(context.Background(), func() { tm.Stop() })
	got := n.Load()
	if got == 0 {
		t.Fatal("ticker never fired")
	}
	time.Sleep(30 * time.Millisecond)
	if n.Load() != got {
		t.Errorf("ticks after Stop: got %d, want %d", n.Load(), got)
	}
}

func TestLoop_DoAfterClose(t *testing.T) {
	l := NewLoop(LoopConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Run(ctx)
	if err := l.Do(context.Background(), func() {}); err != ErrClosed {
		t.Fatalf("Do after close: got %v, want ErrClosed", err)
	}
}

func TestLoop_EveryStopClosesQuit(t *testing.T) {
	l := startLoop(t)
	tm := l.Every(time.Hour, func() {}).(*loopTimer)
	if !tm.Stop() {
		t.Fatal("first Stop: got false, want true")
	}
	if tm.Stop() {
		t.Error("second Stop: got true, want false")
	}
	select {
	case <-tm.quit():
	case <-time.After(time.Second):
		t.Fatal("quit channel not closed after Stop")
	}
}
