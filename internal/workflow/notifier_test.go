package workflow_test

import (
	"testing"

	"ticketsync/internal/workflow"
)

func TestBroadcasterWakesAllWaiters(t *testing.T) {
	b := workflow.NewBroadcaster()
	first, second := b.C(), b.C()

	b.Notify()
	for i, ch := range []<-chan struct{}{first, second} {
		select {
		case <-ch:
		default:
			t.Fatalf("waiter %d not woken", i)
		}
	}

	select {
	case <-b.C():
		t.Fatal("fresh channel should block until the next notify")
	default:
	}
}
