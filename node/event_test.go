package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalWakesCurrentWaiter(t *testing.T) {
	ev := NewChainEvent()
	ch := ev.Wait()

	done := make(chan struct{})
	go func() {
		<-ch
		close(done)
	}()

	ev.Signal()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Signal")
	}
}

func TestEventReArmsAfterSignal(t *testing.T) {
	ev := NewChainEvent()
	ev.Signal()

	// A waiter arriving after the signal must block until the next one.
	select {
	case <-ev.Wait():
		t.Fatal("event should be unsignaled again after Signal returns")
	default:
	}

	ev.Signal()
	select {
	case <-ev.Wait():
		t.Fatal("each Signal arms a fresh channel")
	default:
	}
}

func TestBroadcastTxnDoesNotBlockOnFullQueue(t *testing.T) {
	q := NewQueues(1)
	for i := 0; i < queueDepth; i++ {
		q.MinerTxn[0] <- nil
	}

	done := make(chan struct{})
	go func() {
		q.BroadcastTxn(nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastTxn blocked on a full miner queue")
	}
	require.Len(t, q.MinerTxn[0], queueDepth)
}
