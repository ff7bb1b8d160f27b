package appshell

// Observer pattern for lifecycle events. Events use the CloudEvents
// specification for a standardized format, and are delivered
// synchronously in registration order on the owning application's
// dispatch context.

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// Event type constants for the lifecycle events raised to external
// listeners. Reverse domain notation per the CloudEvents convention.
const (
	// EventTypeLaunched fires when the event page finished loading and
	// the application is awaiting its first window.
	EventTypeLaunched = "com.appshell.application.launched"

	// EventTypeExiting fires when a graceful close begins. The payload
	// carries whether an OS session end triggered it.
	EventTypeExiting = "com.appshell.application.exiting"

	// EventTypeClosed fires exactly once when the application reaches
	// its terminal state.
	EventTypeClosed = "com.appshell.application.closed"

	// EventTypeProtocolInvoke relays an external protocol activation.
	EventTypeProtocolInvoke = "com.appshell.protocol.invoke"

	// EventTypePackageUpdated fires when the package watcher sees the
	// manifest change on disk.
	EventTypePackageUpdated = "com.appshell.package.updated"
)

// ExitingData is the payload of EventTypeExiting.
type ExitingData struct {
	SessionEnding bool `json:"sessionEnding"`
}

// ProtocolInvokeData is the payload of EventTypeProtocolInvoke.
type ProtocolInvokeData struct {
	URI string `json:"uri"`
}

// Observer receives lifecycle events. Delivery is synchronous on the
// application's dispatch context, so handlers must return promptly.
type Observer interface {
	// OnEvent is called for each event the observer subscribed to.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier used for registration
	// tracking and unregistration.
	ObserverID() string
}

// FunctionalObserver adapts a plain function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements Observer by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements Observer.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

// ObserverInfo describes a registered observer, for debugging and
// administrative surfaces.
type ObserverInfo struct {
	// ID is the unique identifier of the observer.
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered.
	RegisteredAt time.Time `json:"registeredAt"`
}

// observerRegistration pairs an observer with its event-type filter.
// Registrations are kept in an ordered slice so delivery is FIFO in
// registration order.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool // empty means all events
	registeredAt time.Time
}

func (r *observerRegistration) wants(eventType string) bool {
	return len(r.eventTypes) == 0 || r.eventTypes[eventType]
}

// NewLifecycleEvent creates a properly formed CloudEvent for the given
// type and source. IDs are UUIDv7 for time-ordered uniqueness.
func NewLifecycleEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

// observerContext is the context observers are invoked with. Delivery
// is synchronous on the dispatch context, so there is no cancellation
// to propagate.
func observerContext() context.Context {
	return context.Background()
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// v7 needs a time source; fall back to random.
		id = uuid.New()
	}
	return id.String()
}

// ValidateLifecycleEvent checks an event against the CloudEvents spec.
func ValidateLifecycleEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}
