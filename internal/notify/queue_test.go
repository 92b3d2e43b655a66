package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue()

	for _, u := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(Notification{Type: TypeRankChange, UserID: u}))
	}

	for _, want := range []string{"A", "B", "C"} {
		n, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, n.UserID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestQueue_Enqueue_AfterClose(t *testing.T) {
	q := newQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(Notification{UserID: "late"}), "enqueue after close should return false")
}

func TestQueue_WaitSignals(t *testing.T) {
	q := newQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(Notification{UserID: "x"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock")
	}
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := newQueue()
	done := make(chan bool)
	go func() {
		_, open := <-q.Wait()
		done <- open
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case open := <-done:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock after close")
	}
}

func TestQueue_ThreadSafe(t *testing.T) {
	q := newQueue()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Notification{Type: TypeRankChange, NewRank: i})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
	count := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}
