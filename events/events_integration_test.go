package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"commitbet/models"

	"github.com/stretchr/testify/assert"
)

// TestEventDeliveryIntegration tests the complete event flow from TransactionalBus to main Bus
func TestEventDeliveryIntegration(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan BalanceChangeEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		defer wg.Done()
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			select {
			case eventReceived <- balanceEvent:
			case <-time.After(1 * time.Second):
				t.Error("Timeout sending event to channel")
			}
		} else {
			t.Errorf("Expected BalanceChangeEvent, got %T", event)
		}
	})

	testEvent := BalanceChangeEvent{
		Principal:       "alice",
		OldBalance:      1000,
		NewBalance:      1500,
		TransactionType: models.TransactionTypeBetPayout,
		ChangeAmount:    500,
	}

	transactionalBus.Publish(testEvent)

	err := transactionalBus.Flush(context.Background())
	assert.NoError(t, err)

	wg.Wait()

	select {
	case receivedEvent := <-eventReceived:
		assert.Equal(t, testEvent, receivedEvent)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

// TestMultipleEventsDelivery tests delivering multiple events in sequence
func TestMultipleEventsDelivery(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan Event, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	mainBus.SubscribeAll(func(ctx context.Context, event Event) {
		defer wg.Done()
		received <- event
	})

	key := models.DeriveMarketKey("creator", 1)
	transactionalBus.Publish(MarketCreatedEvent{MarketKey: key, Creator: "creator", MarketID: 1})
	transactionalBus.Publish(BetCommittedEvent{MarketKey: key, Participant: "alice", Amount: 100, TotalPool: 100})
	transactionalBus.Publish(MarketStatusChangedEvent{MarketKey: key, OldStatus: models.MarketStatusOpen, NewStatus: models.MarketStatusRevealing})
	assert.Len(t, transactionalBus.Pending(), 3)

	err := transactionalBus.Flush(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, transactionalBus.Pending())

	wg.Wait()
	close(received)

	types := make(map[EventType]bool)
	for ev := range received {
		types[ev.Type()] = true
	}

	// Order may vary since handlers run in goroutines
	assert.True(t, types[EventTypeMarketCreated])
	assert.True(t, types[EventTypeBetCommitted])
	assert.True(t, types[EventTypeMarketStatusChanged])
}

// TestTransactionalBusDiscard tests that discarded events are not delivered
func TestTransactionalBusDiscard(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan bool, 1)

	mainBus.Subscribe(EventTypeWinningsClaimed, func(ctx context.Context, event Event) {
		eventReceived <- true
	})

	transactionalBus.Publish(WinningsClaimedEvent{Participant: "alice", Payout: 166})
	transactionalBus.Discard()

	err := transactionalBus.Flush(context.Background())
	assert.NoError(t, err)

	select {
	case <-eventReceived:
		t.Fatal("Event was received despite being discarded")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})

	bus.Subscribe(EventTypeMarketResolved, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeMarketResolved, func(ctx context.Context, event Event) {
		close(done)
	})

	bus.Emit(context.Background(), MarketResolvedEvent{Outcome: models.OutcomeYes})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second handler was not called")
	}
}
