package admission

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterBlocksAtCapacity(t *testing.T) {
	l := NewLimiter(2)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if got := l.InUse(); got != 2 {
		t.Errorf("InUse = %d, want 2", got)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error at capacity, got %v", err)
	}

	l.Release()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestLimiterDefaultsOnBadLimit(t *testing.T) {
	if got := NewLimiter(0).Limit(); got != DefaultLimit {
		t.Errorf("Limit = %d, want %d", got, DefaultLimit)
	}
	if got := NewLimiter(-3).Limit(); got != DefaultLimit {
		t.Errorf("Limit = %d, want %d", got, DefaultLimit)
	}
}

type fakeGauge struct{ value int }

func (g *fakeGauge) Inc() { g.value++ }
func (g *fakeGauge) Dec() { g.value-- }

func TestLimiterTracksSlotsInUse(t *testing.T) {
	l := NewLimiter(2)
	gauge := &fakeGauge{}
	l.Instrument(gauge)
	ctx := context.Background()

	l.Acquire(ctx)
	l.Acquire(ctx)
	if gauge.value != 2 {
		t.Errorf("gauge = %d after two acquires, want 2", gauge.value)
	}
	l.Release()
	if gauge.value != 1 {
		t.Errorf("gauge = %d after release, want 1", gauge.value)
	}
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewLimiter(1).Release()
}
