package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DecodeEnvelope parses a pushed event. A missing kind is derived from the
// images and a missing id from the event's identity.
func DecodeEnvelope(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Collection == "" || e.DocumentID == "" {
		return Event{}, errors.New("event needs collection and documentId")
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.Before != nil && e.Before.ID == "" {
		e.Before.ID = e.DocumentID
	}
	if e.After != nil && e.After.ID == "" {
		e.After.ID = e.DocumentID
	}

	derived, ok := NewEvent(e.Collection, e.DocumentID, e.Before, e.After, e.OccurredAt)
	if !ok {
		return Event{}, errors.New("event needs a before or after image")
	}
	if e.Kind == "" {
		e.Kind = derived.Kind
	}
	if e.Kind != derived.Kind {
		return Event{}, fmt.Errorf("kind %q does not match the supplied images", e.Kind)
	}
	if e.ID == "" {
		e.ID = derived.ID
	}
	return e, nil
}
