package pubsub

import (
	"sync"
	"testing"
)

func TestEmitReachesAllInOrder(t *testing.T) {
	var b Bus[int]
	var got []string
	b.Subscribe(func(v int) { got = append(got, "a") })
	b.Subscribe(func(v int) { got = append(got, "b") })

	b.Emit(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	var b Bus[string]
	calls := 0
	unsub := b.Subscribe(func(string) { calls++ })

	b.Emit("x")
	unsub()
	unsub() // second call is harmless
	b.Emit("y")

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d, want 0", b.Len())
	}
}

func TestUnsubscribeDuringEmitUsesSnapshot(t *testing.T) {
	var b Bus[int]
	var second int
	var unsubSecond func()
	b.Subscribe(func(int) { unsubSecond() })
	unsubSecond = b.Subscribe(func(int) { second++ })

	b.Emit(1) // second still runs: it was registered when Emit began
	b.Emit(2)

	if second != 1 {
		t.Fatalf("second handler ran %d times, want 1", second)
	}
}

func TestSubscribeDuringEmitDefersToNextEmit(t *testing.T) {
	var b Bus[int]
	late := 0
	added := false
	b.Subscribe(func(int) {
		if !added {
			added = true
			b.Subscribe(func(int) { late++ })
		}
	})

	b.Emit(1)
	if late != 0 {
		t.Fatalf("late subscriber ran during the emit that added it")
	}
	b.Emit(2)
	if late != 1 {
		t.Fatalf("late = %d, want 1", late)
	}
}

func TestConcurrentSubscribeEmit(t *testing.T) {
	var b Bus[int]
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := b.Subscribe(func(int) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			b.Emit(1)
		}()
	}
	wg.Wait()
	if b.Len() != 0 {
		t.Fatalf("Len = %d after all unsubscribed", b.Len())
	}
}

func TestClear(t *testing.T) {
	var b Bus[int]
	b.Subscribe(func(int) { t.Fatal("cleared handler called") })
	b.Clear()
	b.Emit(1)
}
