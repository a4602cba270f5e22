package events

import (
	"context"
	"sync"
	"time"

	"commitbet/models"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange       EventType = "balance_change"
	EventTypeMarketCreated       EventType = "market_created"
	EventTypeBetCommitted        EventType = "bet_committed"
	EventTypeBetRevealed         EventType = "bet_revealed"
	EventTypeMarketStatusChanged EventType = "market_status_changed"
	EventTypeMarketResolved      EventType = "market_resolved"
	EventTypeWinningsClaimed     EventType = "winnings_claimed"
)

// AllEventTypes lists every event type emitted by the market services
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypeMarketCreated,
	EventTypeBetCommitted,
	EventTypeBetRevealed,
	EventTypeMarketStatusChanged,
	EventTypeMarketResolved,
	EventTypeWinningsClaimed,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	Principal       models.Principal       `json:"principal"`
	OldBalance      uint64                 `json:"old_balance,string"`
	NewBalance      uint64                 `json:"new_balance,string"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                  `json:"change_amount,string"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// MarketCreatedEvent represents a newly opened market
type MarketCreatedEvent struct {
	MarketKey      models.MarketKey `json:"market_key"`
	Creator        models.Principal `json:"creator"`
	Oracle         models.Principal `json:"oracle"`
	MarketID       uint64           `json:"market_id,string"`
	Question       string           `json:"question"`
	Deadline       time.Time        `json:"deadline"`
	RevealDeadline time.Time        `json:"reveal_deadline"`
}

func (e MarketCreatedEvent) Type() EventType {
	return EventTypeMarketCreated
}

// BetCommittedEvent represents a hidden stake entering a market
type BetCommittedEvent struct {
	MarketKey   models.MarketKey `json:"market_key"`
	BetKey      models.BetKey    `json:"bet_key"`
	Participant models.Principal `json:"participant"`
	Amount      uint64           `json:"amount,string"`
	TotalPool   uint64           `json:"total_pool,string"`
}

func (e BetCommittedEvent) Type() EventType {
	return EventTypeBetCommitted
}

// BetRevealedEvent represents a commitment opened after the deadline
type BetRevealedEvent struct {
	MarketKey   models.MarketKey `json:"market_key"`
	BetKey      models.BetKey    `json:"bet_key"`
	Participant models.Principal `json:"participant"`
	Outcome     models.Outcome   `json:"outcome"`
	Amount      uint64           `json:"amount,string"`
}

func (e BetRevealedEvent) Type() EventType {
	return EventTypeBetRevealed
}

// MarketStatusChangedEvent represents a market lifecycle transition
type MarketStatusChangedEvent struct {
	MarketKey models.MarketKey    `json:"market_key"`
	OldStatus models.MarketStatus `json:"old_status"`
	NewStatus models.MarketStatus `json:"new_status"`
}

func (e MarketStatusChangedEvent) Type() EventType {
	return EventTypeMarketStatusChanged
}

// MarketResolvedEvent represents an oracle or creator declaring the outcome
type MarketResolvedEvent struct {
	MarketKey      models.MarketKey `json:"market_key"`
	Resolver       models.Principal `json:"resolver"`
	Outcome        models.Outcome   `json:"outcome"`
	YesPool        uint64           `json:"yes_pool,string"`
	NoPool         uint64           `json:"no_pool,string"`
	UnrevealedPool uint64           `json:"unrevealed_pool,string"`
}

func (e MarketResolvedEvent) Type() EventType {
	return EventTypeMarketResolved
}

// WinningsClaimedEvent represents a payout to a winning participant
type WinningsClaimedEvent struct {
	MarketKey   models.MarketKey `json:"market_key"`
	BetKey      models.BetKey    `json:"bet_key"`
	Participant models.Principal `json:"participant"`
	Payout      uint64           `json:"payout,string"`
}

func (e WinningsClaimedEvent) Type() EventType {
	return EventTypeWinningsClaimed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Handlers run asynchronously so a slow subscriber cannot stall a request
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the events queued so far
func (b *TransactionalBus) Pending() []Event {
	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Detached from the request context, which may be cancelled once the response is written
	eventCtx := context.WithoutCancel(ctx)

	if b.real != nil {
		for _, ev := range b.pending {
			b.real.Emit(eventCtx, ev)
		}
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
