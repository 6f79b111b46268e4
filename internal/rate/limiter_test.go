package rate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitPacesCalls(t *testing.T) {
	p := NewPacer(100) // 10ms interval
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	// First call is immediate, the next two are spaced one interval apart.
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("three waits took %s, expected pacing of roughly 20ms", elapsed)
	}
}

func TestWaitHonorsCancel(t *testing.T) {
	p := NewPacer(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewPacerClampsRate(t *testing.T) {
	p := NewPacer(0)
	if p.interval != time.Second {
		t.Fatalf("interval = %s, want 1s for clamped rate", p.interval)
	}
}
