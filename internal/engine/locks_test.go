package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockTable_MutualExclusion(t *testing.T) {
	table := newLockTable()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.lock("c-1")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, table.size())
}

func TestLockTable_KeysAreIndependent(t *testing.T) {
	table := newLockTable()
	unlockA := table.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := table.lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	assert.Equal(t, 1, table.size())
}

func TestLockTable_WaiterKeepsEntry(t *testing.T) {
	table := newLockTable()
	unlock := table.lock("c-1")

	acquired := make(chan func())
	go func() { acquired <- table.lock("c-1") }()

	// The waiter holds a reference, so releasing must not drop the entry
	// out from under it.
	require.Eventually(t, func() bool {
		table.mu.Lock()
		defer table.mu.Unlock()
		return table.locks["c-1"].refs == 2
	}, time.Second, time.Millisecond)
	unlock()

	second := <-acquired
	assert.Equal(t, 1, table.size())
	second()
	assert.Equal(t, 0, table.size())
}
