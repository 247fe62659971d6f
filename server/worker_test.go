package server

import (
	"strings"
	"sync"
	"testing"

	"github.com/chazu/pix/pkg/bytecode"
)

func TestWorkerDoReturnsValue(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	v, err := w.Do(func() any { return 42 })
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if v.(int) != 42 {
		t.Errorf("Do = %v, want 42", v)
	}
}

func TestWorkerRecoversFatal(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	_, err := w.Do(func() any { panic(bytecode.Fatalf("boom %d", 7)) })
	if err == nil || !strings.Contains(err.Error(), "boom 7") {
		t.Fatalf("expected fatal error, got %v", err)
	}

	_, err = w.Do(func() any { panic("plain") })
	if err == nil || !strings.Contains(err.Error(), "plain") {
		t.Fatalf("expected panic error, got %v", err)
	}

	// The worker survives panics.
	if v, err := w.Do(func() any { return "ok" }); err != nil || v != "ok" {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorkerSerializes(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(func() any { counter++; return nil })
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}
