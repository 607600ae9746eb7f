package overrides

import (
	"sync"
	"testing"
)

func TestConsumeIsOneShot(t *testing.T) {
	s := NewStore()
	s.Set("conv-1")

	if !s.Consume("conv-1") {
		t.Fatal("first consume should fire")
	}
	if s.Consume("conv-1") {
		t.Fatal("second consume should not fire")
	}
}

func TestConsumeUnarmed(t *testing.T) {
	s := NewStore()
	if s.Consume("never-set") {
		t.Fatal("unarmed conversation should not fire")
	}
}

func TestConversationsAreIndependent(t *testing.T) {
	s := NewStore()
	s.Set("a")

	if s.Consume("b") {
		t.Fatal("conversation b was never armed")
	}
	if !s.Consume("a") {
		t.Fatal("conversation a should still be armed")
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	s := NewStore()
	s.Set("a")

	if !s.Peek("a") {
		t.Fatal("peek should see the armed flag")
	}
	if !s.Consume("a") {
		t.Fatal("peek must not disarm")
	}
}

func TestConcurrentConsumeFiresOnce(t *testing.T) {
	s := NewStore()
	s.Set("conv")

	var wg sync.WaitGroup
	fired := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fired <- s.Consume("conv")
		}()
	}
	wg.Wait()
	close(fired)

	count := 0
	for f := range fired {
		if f {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("override fired %d times, want exactly once", count)
	}
}
