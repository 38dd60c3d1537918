package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event describes one completed step of a proxy operation.
type Event struct {
	Type      EventType              `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of event
type EventType string

const (
	TokenRefreshed       EventType = "token_refreshed"
	TokenRefreshFailed   EventType = "token_refresh_failed"
	TokenInvalidated     EventType = "token_invalidated"
	RecognitionCompleted EventType = "recognition_completed"
	RecognitionFailed    EventType = "recognition_failed"
	UploadCompleted      EventType = "upload_completed"
	UploadFailed         EventType = "upload_failed"
	PolicySigned         EventType = "policy_signed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event Event)
}

// NewEvent stamps an event with the current time and the elapsed time since start.
func NewEvent(eventType EventType, start time.Time, err error) Event {
	ev := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// WithMetadata returns a copy of the event with an extra metadata key.
func (e Event) WithMetadata(key string, value interface{}) Event {
	md := make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}

// LoggingObserver logs events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	fields := logrus.Fields{
		"event_type":  event.Type,
		"duration_ms": event.Duration.Milliseconds(),
		"success":     event.Success,
	}

	if event.Error != "" {
		fields["error"] = event.Error
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.Type {
	case TokenRefreshed:
		entry.Info("Recognition token refreshed")
	case TokenRefreshFailed:
		entry.Error("Recognition token refresh failed")
	case TokenInvalidated:
		entry.Warn("Cached recognition token rejected by provider")
	case RecognitionCompleted:
		entry.Info("Plant recognition completed")
	case RecognitionFailed:
		entry.Error("Plant recognition failed")
	case UploadCompleted:
		entry.Info("Upload completed")
	case UploadFailed:
		entry.Error("Upload failed")
	case PolicySigned:
		entry.Debug("Upload policy signed")
	default:
		entry.Info("Event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription order.
// A panicking observer is logged and skipped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event Event) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}()
	}
}

// Nop is a Subject that drops every event.
type Nop struct{}

func (Nop) Subscribe(Observer)                      {}
func (Nop) Unsubscribe(Observer)                    {}
func (Nop) NotifyObservers(context.Context, Event) {}
