package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"commitbet/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventEnvelope wraps a market event for the message bus
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// DefaultPublishTimeout bounds a single forwarded publish
const DefaultPublishTimeout = 5 * time.Second

// PublishRecorder counts forwarded messages
type PublishRecorder interface {
	RecordNATSMessagePublished(eventType string)
}

// EventForwarder relays committed events from the local bus to a message bus
type EventForwarder struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	recorder      PublishRecorder
	timeout       time.Duration
	now           func() time.Time
}

// NewEventForwarder creates a forwarder publishing through publisher.
// recorder may be nil.
func NewEventForwarder(publisher MessagePublisher, subjectMapper *EventSubjectMapper, recorder PublishRecorder) *EventForwarder {
	return &EventForwarder{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		recorder:      recorder,
		timeout:       DefaultPublishTimeout,
		now:           time.Now,
	}
}

// Register subscribes the forwarder to every event type on bus
func (f *EventForwarder) Register(bus *events.Bus) {
	bus.SubscribeAll(f.Handle)
}

// Handle forwards a single event within the publish timeout, logging failures
func (f *EventForwarder) Handle(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.Forward(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to forward event to message bus")
	}
}

// Forward wraps the event in an envelope and publishes it on the event's subject
func (f *EventForwarder) Forward(ctx context.Context, event events.Event) error {
	subject := f.subjectMapper.MapEventToSubject(event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     f.now().UTC(),
		SourceService: "commitbet",
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type(), err)
	}

	if f.recorder != nil {
		f.recorder.RecordNATSMessagePublished(string(event.Type()))
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"subject":   subject,
		"eventId":   envelope.EventID,
	}).Debug("Forwarded event to message bus")
	return nil
}
