package eventq

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	if q.Len() != 5 {
		t.Fatalf("len = %d", q.Len())
	}
	got := q.Drain()
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d = %d", i, v)
		}
	}
	if len(q.Drain()) != 0 {
		t.Error("second drain not empty")
	}
}

func TestQueue_ReadySignalsPush(t *testing.T) {
	q := New[string]()
	select {
	case <-q.Ready():
		t.Fatal("ready before any push")
	default:
	}

	q.Push("a")
	q.Push("b")
	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("no ready signal after push")
	}
	if got := q.Drain(); len(got) != 2 {
		t.Errorf("drain = %v", got)
	}
}

func TestQueue_ConcurrentProducer(t *testing.T) {
	q := New[int]()
	const n = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
	}()

	next := 0
	deadline := time.After(5 * time.Second)
	for next < n {
		select {
		case <-q.Ready():
			for _, v := range q.Drain() {
				if v != next {
					t.Fatalf("got %d, want %d", v, next)
				}
				next++
			}
		case <-deadline:
			t.Fatalf("timed out at %d/%d", next, n)
		}
	}
	wg.Wait()
}
