package infrastructure

import (
	"fmt"

	"commitbet/events"
)

// SubjectPrefix roots every market event subject
const SubjectPrefix = "commitbet"

// StreamName is the JetStream stream holding market events
const StreamName = "commitbet_events"

// EventSubjectMapper maps event types to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject maps an event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return m.SubjectFor(event.Type())
}

// SubjectFor returns the subject of an event type
func (m *EventSubjectMapper) SubjectFor(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// GetAllSubjects returns all subjects that market events may be published to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, 0, len(events.AllEventTypes))
	for _, eventType := range events.AllEventTypes {
		subjects = append(subjects, m.SubjectFor(eventType))
	}
	return subjects
}
