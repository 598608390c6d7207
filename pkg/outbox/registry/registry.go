// Package registry routes outbox rows to Pub/Sub topics and decodes their
// payloads.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/packagebuilder-backend/pkg/config"
	"github.com/angelmondragon/packagebuilder-backend/pkg/db/models"
	"github.com/angelmondragon/packagebuilder-backend/pkg/enums"
	"github.com/angelmondragon/packagebuilder-backend/pkg/outbox"
	"github.com/angelmondragon/packagebuilder-backend/pkg/outbox/payloads"
)

// EventDescriptor binds an event type to the aggregate it must belong to, the
// topic it goes out on and a constructor for its payload.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	NewPayload    func() any
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// permanentError marks a failure that no retry can fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so IsPermanent reports true for it and anything that
// wraps it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.ConfigurationsTopic == "" {
		return nil, errors.New("configurations topic is required")
	}
	return newEventRegistry(EventDescriptor{
		EventType:     enums.EventConfigurationSubmitted,
		AggregateType: enums.AggregateConfigurationSubmission,
		Topic:         cfg.ConfigurationsTopic,
		NewPayload:    func() any { return &payloads.ConfigurationSubmittedEvent{} },
	})
}

func newEventRegistry(descriptors ...EventDescriptor) (*EventRegistry, error) {
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.NewPayload == nil || d.Topic == "" {
			return nil, fmt.Errorf("incomplete descriptor for %s", d.EventType)
		}
		if _, dup := reg.routes[d.EventType]; dup {
			return nil, fmt.Errorf("duplicate descriptor for %s", d.EventType)
		}
		reg.routes[d.EventType] = d
	}
	return reg, nil
}

// Topics lists the distinct destination topics in sorted order.
func (r *EventRegistry) Topics() []string {
	set := make(map[string]struct{}, len(r.routes))
	for _, d := range r.routes {
		set[d.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for t := range set {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every error it returns is permanent.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	case d.AggregateType != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, d.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload := d.NewPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: d, Envelope: envelope, Payload: payload}, nil
}
