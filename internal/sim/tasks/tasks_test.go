package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2, nil)
	var running, peak atomic.Int32
	futs := make([]*Future[int], 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		futs = append(futs, Go(p, "job", func() (int, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return i * i, nil
		}))
	}
	p.Wait()
	for i, f := range futs {
		if !f.Ready() {
			t.Fatalf("future %d not ready after Wait", i)
		}
		v, err := f.Result()
		if err != nil || v != i*i {
			t.Fatalf("future %d: v=%d err=%v", i, v, err)
		}
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency=%d want <=2", peak.Load())
	}
	if s := p.Stats(); s.Started != 8 || s.Finished != 8 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestSpawn_RecoversPanic(t *testing.T) {
	f := Spawn("boom", nil, func() (string, error) {
		panic("no biome")
	})
	_, err := f.Result()
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if pe.Task != "boom" || pe.Value != "no biome" {
		t.Fatalf("panic error=%+v", pe)
	}
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	f := Spawn("slow", nil, func() (int, error) {
		<-block
		return 1, nil
	})
	if f.Ready() {
		t.Fatalf("ready before release")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait err=%v", err)
	}
	close(block)
	if v, err := f.Wait(context.Background()); err != nil || v != 1 {
		t.Fatalf("Wait after release: %d %v", v, err)
	}
}
